// Copyright 2024 The NyxKernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ipc

import (
	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/pkg/kernel/bufpool"
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Facade composes every IPC object family behind one handle, the shape
// process termination (C6) reaches for when it needs to reclaim
// everything a dying Pid owned.
type Facade struct {
	log       *logrus.Entry
	sink      kevent.Sink
	Messages  *MessageQueues
	Pipes     *Pipes
	Shared    *SharedMemory
	Queues    *Manager
	ZeroCopy  *ZeroCopyRings
	store     *ByteStore
}

// NewFacade wires every IPC subsystem together over a shared ByteStore
// view of mem, so shared-memory segments and typed-queue payloads draw
// from the same simulated address space as the rest of the kernel.
func NewFacade(mem *memory.Manager, sink kevent.Sink, log *logrus.Entry) *Facade {
	if sink == nil {
		sink = kevent.NopSink{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	store := NewByteStore(mem)
	return &Facade{
		log:      log.WithField("component", "ipc"),
		sink:     sink,
		Messages: NewMessageQueues(),
		Pipes:    NewPipes(),
		Shared:   NewSharedMemory(store),
		Queues:   NewManager(store),
		ZeroCopy: NewZeroCopyRings(bufpool.New()),
		store:    store,
	}
}

// ClearProcessResources reclaims the bytes pid owns in its mailbox and
// in its pipes, emitting one ResourceCleanup event per reclaimed family
// so observers can see where the bytes came from, and returns the total.
// Shared-memory segments and zero-copy buffers owned by pid are not
// reclaimed here.
func (f *Facade) ClearProcessResources(pid types.Pid) uint64 {
	var total uint64

	if n := f.Messages.ClearProcessQueue(pid); n > 0 {
		total += n
		f.sink.Publish(kevent.New(kevent.Info, kevent.CategoryIPC, &pid, kevent.ResourceCleanup{Pid: pid, Resource: "message_queue", BytesReclaimed: n}))
	}
	if n := f.Pipes.ClearProcessPipes(pid); n > 0 {
		total += n
		f.sink.Publish(kevent.New(kevent.Info, kevent.CategoryIPC, &pid, kevent.ResourceCleanup{Pid: pid, Resource: "pipe", BytesReclaimed: n}))
	}

	f.log.WithField("pid", pid).WithField("bytes_reclaimed", total).Debug("cleared process IPC resources")
	return total
}

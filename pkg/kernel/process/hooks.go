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

package process

import (
	"github.com/nyxkernel/kernel/pkg/kernel/fdtable"
	"github.com/nyxkernel/kernel/pkg/kernel/ipc"
	"github.com/nyxkernel/kernel/pkg/kernel/signal"
	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Hook runs during Creation's Initializing step. Init failures abort
// creation; every hook that already succeeded has its Rollback called,
// in reverse registration order, per spec.md §4.6 step 3.
type Hook interface {
	Name() string
	Init(pid types.Pid) error
	Rollback(pid types.Pid)
}

// signalHook initializes a process's signal state.
type signalHook struct{ signals *signal.Table }

func (h signalHook) Name() string { return "signal_state_init" }
func (h signalHook) Init(pid types.Pid) error {
	h.signals.Init(pid)
	return nil
}
func (h signalHook) Rollback(pid types.Pid) { h.signals.Remove(pid) }

// zerocopyHook eagerly materializes a process's submission/completion
// ring pair, rather than letting it spring into existence lazily at
// first Reserve, so "zerocopy ring creation" is an observable, failable
// step of Creation per spec.md rather than an implicit side effect.
type zerocopyHook struct{ rings *ipc.ZeroCopyRings }

func (h zerocopyHook) Name() string { return "zerocopy_ring_creation" }
func (h zerocopyHook) Init(pid types.Pid) error {
	// Reserve-then-Release of a zero-length buffer forces ringsFor(pid)
	// to run without leaving a dangling reservation behind.
	id, _ := h.rings.Reserve(pid, 0)
	h.rings.Release(pid, id)
	return nil
}
func (h zerocopyHook) Rollback(pid types.Pid) { h.rings.ReleaseAll(pid) }

// fdTableHook allocates pid's file descriptor table with defaultCap
// slots (defaultFDTableCapacity); a process's MaxFileDescriptors limit
// is not consulted.
type fdTableHook struct {
	tables      *stripedmap.StripedMap[types.Pid, *fdtable.EpochFdTable[any]]
	defaultCap  int
}

func (h fdTableHook) Name() string { return "fd_table_reset" }
func (h fdTableHook) Init(pid types.Pid) error {
	h.tables.Set(pid, fdtable.NewEpochFdTable[any](h.defaultCap))
	return nil
}
func (h fdTableHook) Rollback(pid types.Pid) { h.tables.Delete(pid) }

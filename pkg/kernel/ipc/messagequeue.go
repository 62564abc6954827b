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
	"sync"

	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// perPidQueue is one process's bounded ordered mailbox.
type perPidQueue struct {
	mu      sync.Mutex
	entries []Message
	nextID  MessageId
}

// MessageQueues holds every process's mailbox plus the global byte
// budget (100 MiB) shared across all of them, per the IPC objects
// section: "Global IPC byte counter across all queues: cap 100 MiB."
type MessageQueues struct {
	queues *stripedmap.StripedMap[types.Pid, *perPidQueue]
	bytes  *budget
}

// NewMessageQueues builds an empty set of per-Pid mailboxes.
func NewMessageQueues() *MessageQueues {
	return &MessageQueues{
		queues: stripedmap.New[types.Pid, *perPidQueue](),
		bytes:  newBudget(MaxGlobalIPCBytes),
	}
}

func (q *MessageQueues) queueFor(pid types.Pid) *perPidQueue {
	pq, ok := q.queues.Get(pid)
	if !ok {
		pq = &perPidQueue{}
		q.queues.Set(pid, pq)
	}
	return pq
}

// Send enqueues data addressed from 'from' to 'to', returning the
// assigned MessageId. Rejects payloads over 1 MiB, queues at their
// 1000-message cap, or a send that would push the global byte counter
// past 100 MiB.
func (q *MessageQueues) Send(from, to types.Pid, data []byte, timestamp int64) (MessageId, error) {
	if len(data) > MaxMessageBytes {
		return 0, types.LimitExceeded(uint64(len(data)), MaxMessageBytes, "message payload %d bytes exceeds %d byte cap", len(data), MaxMessageBytes)
	}
	if !q.bytes.reserve(uint64(len(data))) {
		return 0, types.LimitExceeded(q.bytes.Used(), q.bytes.Cap(), "global IPC byte counter at cap")
	}

	pq := q.queueFor(to)
	pq.mu.Lock()
	if len(pq.entries) >= MaxQueueLength {
		pq.mu.Unlock()
		q.bytes.release(uint64(len(data)))
		return 0, types.LimitExceeded(uint64(len(pq.entries)), MaxQueueLength, "queue for %s at %d message cap", to, MaxQueueLength)
	}
	pq.nextID++
	id := pq.nextID
	pq.entries = append(pq.entries, Message{ID: id, From: from, To: to, Data: data, Timestamp: timestamp})
	pq.mu.Unlock()
	return id, nil
}

// Receive pops the oldest message addressed to pid, releasing its bytes
// from the global counter.
func (q *MessageQueues) Receive(pid types.Pid) (Message, bool) {
	pq := q.queueFor(pid)
	pq.mu.Lock()
	if len(pq.entries) == 0 {
		pq.mu.Unlock()
		return Message{}, false
	}
	msg := pq.entries[0]
	pq.entries = pq.entries[1:]
	pq.mu.Unlock()
	q.bytes.release(uint64(len(msg.Data)))
	return msg, true
}

// Len returns the current depth of pid's mailbox.
func (q *MessageQueues) Len(pid types.Pid) int {
	pq := q.queueFor(pid)
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.entries)
}

// GlobalBytesUsed reports the shared byte counter across every mailbox.
func (q *MessageQueues) GlobalBytesUsed() uint64 { return q.bytes.Used() }

// ClearProcessQueue drains pid's mailbox and returns the number of bytes
// reclaimed, releasing them from the global counter.
// Facade.ClearProcessResources calls this together with the pipe
// reclaim; shared memory and zero-copy buffers are not reclaimed there.
func (q *MessageQueues) ClearProcessQueue(pid types.Pid) uint64 {
	pq := q.queueFor(pid)
	pq.mu.Lock()
	var reclaimed uint64
	for _, m := range pq.entries {
		reclaimed += uint64(len(m.Data))
	}
	pq.entries = nil
	pq.mu.Unlock()
	q.bytes.release(reclaimed)
	return reclaimed
}

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
	"container/heap"
	"sync"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// entry is one pending message as a typed queue stores it: an address
// into the byte store plus its length and, for Priority queues, the
// priority it was enqueued with. The queue never holds the bytes
// themselves, per the IPC objects section.
type entry struct {
	addr     types.Address
	length   int
	priority types.Priority
	seq      uint64 // tie-break for stable Priority ordering
}

// priorityHeap implements container/heap.Interface, ordered highest
// priority first and, within a priority, FIFO by seq.
type priorityHeap []entry

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// subscription is one PubSub consumer's channel handle.
type subscription struct {
	ch     chan entry
	closed bool
}

// queue is one typed queue instance: Fifo and Priority back onto the
// shared ByteStore; PubSub fans an enqueued message out to every live
// subscriber's channel instead of storing it once.
type queue struct {
	mu   sync.Mutex
	id   types.QueueId
	typ  QueueType
	pid  types.Pid // owning process
	cap  int

	fifo    []entry
	pheap   priorityHeap
	seq     uint64
	subs    map[uint64]*subscription
	nextSub uint64

	closed bool
}

// Manager owns every typed queue for every process, enforcing
// MaxQueuesPerProcess and recycling destroyed queues' ids via a
// lock-free free list.
type Manager struct {
	mu        sync.Mutex
	store     *ByteStore
	byID      map[types.QueueId]*queue
	perPid    map[types.Pid]int
	nextID    uint32
	free      idFreeList
}

// NewManager builds an empty typed-queue manager backed by store for
// Fifo/Priority payload bytes.
func NewManager(store *ByteStore) *Manager {
	return &Manager{store: store, byID: make(map[types.QueueId]*queue), perPid: make(map[types.Pid]int)}
}

func (m *Manager) allocID() types.QueueId {
	if id, ok := m.free.pop(); ok {
		return types.QueueId(id)
	}
	m.nextID++
	return types.QueueId(m.nextID)
}

// Create builds a new queue of typ owned by pid with the given
// capacity (Fifo/Priority: max pending entries; PubSub: ignored,
// fan-out has no backlog). Fails if pid is already at
// MaxQueuesPerProcess.
func (m *Manager) Create(pid types.Pid, typ QueueType, capacity int) (types.QueueId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.perPid[pid] >= MaxQueuesPerProcess {
		return 0, types.LimitExceeded(uint64(m.perPid[pid]), MaxQueuesPerProcess, "pid %s at queue count cap", pid)
	}
	id := m.allocID()
	m.byID[id] = &queue{id: id, typ: typ, pid: pid, cap: capacity, subs: make(map[uint64]*subscription)}
	m.perPid[pid]++
	return id, nil
}

func (m *Manager) get(id types.QueueId) (*queue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.byID[id]
	return q, ok
}

// Close marks id closed: further Enqueue calls fail, but pending
// messages remain readable via Dequeue/Next until Destroy. Distinct
// from Destroy, which also frees backing storage and recycles the id.
func (m *Manager) Close(id types.QueueId) error {
	q, ok := m.get(id)
	if !ok {
		return types.NotFound("queue %d not found", id)
	}
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

// Enqueue writes data into the queue backing store (for Fifo/Priority)
// or fans it out to every current subscriber (for PubSub).
func (m *Manager) Enqueue(id types.QueueId, data []byte, priority types.Priority) error {
	q, ok := m.get(id)
	if !ok {
		return types.NotFound("queue %d not found", id)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return types.InvalidArgument("queue %d is closed", id)
	}

	switch q.typ {
	case QueuePubSub:
		if len(q.subs) == 0 {
			return nil // no subscribers: message is simply dropped
		}
		addr, err := m.store.Alloc(q.pid, types.Size(len(data)))
		if err != nil {
			return err
		}
		if err := m.store.WriteBytes(addr, 0, data); err != nil {
			return err
		}
		q.seq++
		e := entry{addr: addr, length: len(data), seq: q.seq}
		for _, s := range q.subs {
			if s.closed {
				continue
			}
			select {
			case s.ch <- e:
			default:
				// slow subscriber: drop rather than block the publisher
			}
		}
		return nil
	default:
		if q.cap > 0 && len(q.fifo)+len(q.pheap) >= q.cap {
			return types.LimitExceeded(uint64(len(q.fifo)+len(q.pheap)), uint64(q.cap), "queue %d at capacity", id)
		}
		addr, err := m.store.Alloc(q.pid, types.Size(len(data)))
		if err != nil {
			return err
		}
		if err := m.store.WriteBytes(addr, 0, data); err != nil {
			return err
		}
		q.seq++
		e := entry{addr: addr, length: len(data), priority: priority, seq: q.seq}
		if q.typ == QueuePriority {
			heap.Push(&q.pheap, e)
		} else {
			q.fifo = append(q.fifo, e)
		}
		return nil
	}
}

// Dequeue pops the next message for Fifo/Priority queues, reading its
// bytes out of the store and freeing the backing block. Not valid for
// PubSub queues, which are consumed via Subscribe/Next instead.
func (m *Manager) Dequeue(id types.QueueId) ([]byte, error) {
	q, ok := m.get(id)
	if !ok {
		return nil, types.NotFound("queue %d not found", id)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var e entry
	switch q.typ {
	case QueueFifo:
		if len(q.fifo) == 0 {
			return nil, types.WouldBlock("queue %d empty", id)
		}
		e = q.fifo[0]
		q.fifo = q.fifo[1:]
	case QueuePriority:
		if len(q.pheap) == 0 {
			return nil, types.WouldBlock("queue %d empty", id)
		}
		e = heap.Pop(&q.pheap).(entry)
	default:
		return nil, types.InvalidArgument("queue %d is PubSub, use Subscribe/Next", id)
	}

	data, err := m.store.ReadBytes(e.addr, 0, e.length)
	if err != nil {
		return nil, err
	}
	if err := m.store.Free(e.addr); err != nil {
		return nil, err
	}
	return data, nil
}

// Subscribe registers a new PubSub consumer, returning a handle id used
// with Next and Unsubscribe.
func (m *Manager) Subscribe(id types.QueueId, buffer int) (uint64, error) {
	q, ok := m.get(id)
	if !ok {
		return 0, types.NotFound("queue %d not found", id)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.typ != QueuePubSub {
		return 0, types.InvalidArgument("queue %d is not PubSub", id)
	}
	if buffer <= 0 {
		buffer = 64
	}
	q.nextSub++
	sid := q.nextSub
	q.subs[sid] = &subscription{ch: make(chan entry, buffer)}
	return sid, nil
}

// Unsubscribe removes a PubSub subscription handle.
func (m *Manager) Unsubscribe(id types.QueueId, sub uint64) error {
	q, ok := m.get(id)
	if !ok {
		return types.NotFound("queue %d not found", id)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.subs[sub]
	if !ok {
		return types.NotFound("subscription %d not found", sub)
	}
	s.closed = true
	delete(q.subs, sub)
	return nil
}

// Next returns the subscriber's next fanned-out message, reading and
// freeing its backing bytes; ok=false if nothing is pending.
func (m *Manager) Next(id types.QueueId, sub uint64) ([]byte, bool, error) {
	q, ok := m.get(id)
	if !ok {
		return nil, false, types.NotFound("queue %d not found", id)
	}
	q.mu.Lock()
	s, ok := q.subs[sub]
	q.mu.Unlock()
	if !ok {
		return nil, false, types.NotFound("subscription %d not found", sub)
	}

	select {
	case e := <-s.ch:
		data, err := m.store.ReadBytes(e.addr, 0, e.length)
		if err != nil {
			return nil, false, err
		}
		// PubSub fan-out copies the message to every subscriber's
		// channel independently rather than refcounting one shared
		// block, so each consumer frees its own copy once read.
		if err := m.store.Free(e.addr); err != nil {
			return nil, false, err
		}
		return data, true, nil
	default:
		return nil, false, nil
	}
}

// Stats reports a queue's current shape.
type Stats struct {
	Capacity         int
	Length           int
	SubscriberCount  int
	Closed           bool
}

// Stats returns id's current Stats.
func (m *Manager) Stats(id types.QueueId) (Stats, error) {
	q, ok := m.get(id)
	if !ok {
		return Stats{}, types.NotFound("queue %d not found", id)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	length := len(q.fifo) + len(q.pheap)
	return Stats{Capacity: q.cap, Length: length, SubscriberCount: len(q.subs), Closed: q.closed}, nil
}

// Destroy pops and deallocates every pending message's backing block
// (Fifo/Priority), closes out any PubSub subscriptions, and removes the
// queue, recycling its id for reuse.
func (m *Manager) Destroy(id types.QueueId) error {
	q, ok := m.get(id)
	if !ok {
		return types.NotFound("queue %d not found", id)
	}

	q.mu.Lock()
	for _, e := range q.fifo {
		m.store.Free(e.addr)
	}
	for _, e := range q.pheap {
		m.store.Free(e.addr)
	}
	q.fifo, q.pheap = nil, nil
	for _, s := range q.subs {
		s.closed = true
	}
	q.closed = true
	owner := q.pid
	q.mu.Unlock()

	m.mu.Lock()
	delete(m.byID, id)
	m.perPid[owner]--
	m.mu.Unlock()
	m.free.push(uint32(id))
	return nil
}

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

// Package bufpool implements the kernel's buffer pool: one mutex-guarded
// free list per size class (three classes), shared by all goroutines and
// backed by a sync.Pool overflow tier for when that list is empty. Used by
// IPC's zero-copy ring and the completion-ring executor to avoid an
// allocation per message.
package bufpool

import "sync"

const (
	Small  = 1 << 10 // 1 KiB
	Medium = 16 << 10 // 16 KiB
	Large  = 64 << 10 // 64 KiB

	perGoroutineCap = 16
)

func classFor(capacity int) int {
	switch {
	case capacity <= Small:
		return Small
	case capacity <= Medium:
		return Medium
	default:
		return Large
	}
}

// Pool hands out zeroed-length byte slices with capacity >= requested,
// drawn from the matching size class.
type Pool struct {
	local    sync.Map // size class -> *localList, shared by all goroutines; see localFor
	overflow [3]sync.Pool
}

type localList struct {
	mu   sync.Mutex
	bufs [][]byte
}

var classIndex = map[int]int{Small: 0, Medium: 1, Large: 2}

// New constructs an empty Pool.
func New() *Pool {
	p := &Pool{}
	for i := range p.overflow {
		p.overflow[i].New = func() any { return nil }
	}
	return p
}

// localFor returns this pool's list for a size class. Go has no true
// thread-local storage; the sync.Map is keyed by size class alone, so
// every goroutine shares one mutex-guarded list per class. That is
// enough for a pool whose only correctness requirement is "returns a
// slice of sufficient capacity", not strict locality.
func (p *Pool) localFor(class int) *localList {
	v, _ := p.local.LoadOrStore(class, &localList{})
	return v.(*localList)
}

// Acquire returns a zero-length slice with capacity >= requested.
func (p *Pool) Acquire(requested int) []byte {
	if requested > Large {
		return make([]byte, 0, requested)
	}
	class := classFor(requested)
	ll := p.localFor(class)

	ll.mu.Lock()
	if n := len(ll.bufs); n > 0 {
		buf := ll.bufs[n-1]
		ll.bufs = ll.bufs[:n-1]
		ll.mu.Unlock()
		return buf[:0]
	}
	ll.mu.Unlock()

	idx := classIndex[class]
	if v := p.overflow[idx].Get(); v != nil {
		return v.([]byte)[:0]
	}
	return make([]byte, 0, class)
}

// Release clears buf's length (retaining capacity) and returns it to the
// matching size class, provided its capacity is at least the class bound
// and within 2x of it; other buffers are simply dropped (let the GC
// reclaim them) rather than bloating a class's steady-state footprint or
// handing a later Acquire a slice smaller than it asked for.
func (p *Pool) Release(buf []byte) {
	c := cap(buf)
	if c == 0 {
		return
	}
	class := classFor(c)
	if c < class || c > class*2 {
		return
	}
	buf = buf[:0]

	ll := p.localFor(class)
	ll.mu.Lock()
	if len(ll.bufs) < perGoroutineCap {
		ll.bufs = append(ll.bufs, buf)
		ll.mu.Unlock()
		return
	}
	ll.mu.Unlock()

	idx := classIndex[class]
	p.overflow[idx].Put(buf)
}

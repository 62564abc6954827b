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

import "sync/atomic"

// idNode is one entry of a Treiber stack of recycled QueueIds.
type idNode struct {
	id   uint32
	next *idNode
}

// idFreeList is a lock-free (Treiber) stack of recycled queue ids,
// mirroring the IPC objects section's "monotonic-or-recycled IDs via
// lock-free free list" requirement: destroying a queue pushes its id
// here instead of letting ids grow unbounded across create/destroy
// churn.
type idFreeList struct {
	top atomic.Pointer[idNode]
}

// push returns id to the free list for reuse.
func (f *idFreeList) push(id uint32) {
	n := &idNode{id: id}
	for {
		old := f.top.Load()
		n.next = old
		if f.top.CompareAndSwap(old, n) {
			return
		}
	}
}

// pop removes and returns a recycled id, ok=false if the list is empty.
func (f *idFreeList) pop() (uint32, bool) {
	for {
		old := f.top.Load()
		if old == nil {
			return 0, false
		}
		if f.top.CompareAndSwap(old, old.next) {
			return old.id, true
		}
	}
}

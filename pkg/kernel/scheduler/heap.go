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

package scheduler

import "github.com/nyxkernel/kernel/pkg/kernel/types"

// procEntry is one runnable pid's scheduling state. It lives in a
// container/heap-ordered slice whose comparator depends on the active
// Policy, the same discriminated-ordering idiom pkg/kernel/ipc's
// typed-queue priorityHeap uses.
type procEntry struct {
	pid          types.Pid
	priority     types.Priority
	vruntime     uint64
	ticksRun     uint64
	seq          uint64
	lastRunStart int64 // unix nanos; 0 means never run
}

// runQueue implements container/heap.Interface. less is swapped out
// whenever the owning Scheduler's policy changes.
type runQueue struct {
	entries []*procEntry
	less    func(a, b *procEntry) bool
}

func (q *runQueue) Len() int { return len(q.entries) }
func (q *runQueue) Less(i, j int) bool {
	return q.less(q.entries[i], q.entries[j])
}
func (q *runQueue) Swap(i, j int) { q.entries[i], q.entries[j] = q.entries[j], q.entries[i] }
func (q *runQueue) Push(x any)    { q.entries = append(q.entries, x.(*procEntry)) }
func (q *runQueue) Pop() any {
	old := q.entries
	n := len(old)
	e := old[n-1]
	q.entries = old[:n-1]
	return e
}

func lessFair(a, b *procEntry) bool {
	if a.vruntime != b.vruntime {
		return a.vruntime < b.vruntime
	}
	return a.seq < b.seq
}

func lessRoundRobin(a, b *procEntry) bool {
	return a.seq < b.seq
}

func lessPriority(a, b *procEntry) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

func lessFor(p Policy) func(a, b *procEntry) bool {
	switch p {
	case PolicyRoundRobin:
		return lessRoundRobin
	case PolicyPriority:
		return lessPriority
	default:
		return lessFair
	}
}

// priorityScale is the divisor Fair virtual-runtime accounting uses;
// priority 0 would otherwise divide by zero, so it scales the same as
// priority 1.
func priorityScale(p types.Priority) uint64 {
	if p == 0 {
		return 1
	}
	return uint64(p)
}

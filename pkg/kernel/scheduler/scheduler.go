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

import (
	"container/heap"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Scheduler maintains a per-policy view of runnable pids and
// scheduler-wide statistics. Safe for concurrent use.
type Scheduler struct {
	mu sync.Mutex

	policy  Policy
	quantum time.Duration

	queue   *runQueue
	byPid   map[types.Pid]*procEntry
	current *types.Pid
	nextSeq uint64

	preemptionEnabled bool
	stats             GlobalStats
}

// New builds a Scheduler under policy with the given quantum.
func New(policy Policy, quantum time.Duration) *Scheduler {
	if quantum <= 0 {
		quantum = 5 * time.Millisecond
	}
	s := &Scheduler{
		policy:            policy,
		quantum:           quantum,
		queue:             &runQueue{less: lessFor(policy)},
		byPid:             make(map[types.Pid]*procEntry),
		preemptionEnabled: true,
	}
	s.stats.QuantumMicros = uint64(quantum / time.Microsecond)
	heap.Init(s.queue)
	return s
}

// Add makes pid runnable at priority. Re-adding an already-runnable pid
// is a no-op.
func (s *Scheduler) Add(pid types.Pid, priority types.Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPid[pid]; exists {
		return
	}
	e := &procEntry{pid: pid, priority: priority.Clamp(), seq: s.nextSeq}
	s.nextSeq++
	s.byPid[pid] = e
	heap.Push(s.queue, e)
	s.stats.ActiveProcesses = len(s.byPid)
}

// Remove drops pid from the runnable set. If pid was the currently
// scheduled one, the next Tick picks a fresh current pid.
func (s *Scheduler) Remove(pid types.Pid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byPid[pid]
	if !ok {
		return
	}
	delete(s.byPid, pid)
	for i, cand := range s.queue.entries {
		if cand == e {
			heap.Remove(s.queue, i)
			break
		}
	}
	if s.current != nil && *s.current == pid {
		s.current = nil
	}
	s.stats.ActiveProcesses = len(s.byPid)
}

// SetPolicy switches the active policy, rebuilding the heap ordering in
// place without losing any entry's accumulated state.
func (s *Scheduler) SetPolicy(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
	s.queue.less = lessFor(p)
	heap.Init(s.queue)
}

// Policy returns the active policy.
func (s *Scheduler) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// SetQuantum updates the scheduling quantum.
func (s *Scheduler) SetQuantum(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantum = d
	s.stats.QuantumMicros = uint64(d / time.Microsecond)
}

// Quantum returns the active quantum.
func (s *Scheduler) Quantum() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantum
}

// SetPreemptionEnabled toggles forced preemption on quantum expiry.
func (s *Scheduler) SetPreemptionEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preemptionEnabled = enabled
}

// Tick picks the next pid per the active policy, updates its
// bookkeeping as if it ran for one quantum, and returns what happened.
// If no pid is runnable, Valid is false.
func (s *Scheduler) Tick(now time.Time) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() == 0 {
		return TickResult{}
	}

	top := s.queue.entries[0]
	switched := s.current == nil || *s.current != top.pid
	preempted := false
	if !switched && s.preemptionEnabled && top.lastRunStart != 0 {
		elapsed := now.Sub(time.Unix(0, top.lastRunStart))
		if elapsed >= s.quantum {
			preempted = true
			switched = true
		}
	}

	entry := heap.Pop(s.queue).(*procEntry)
	entry.lastRunStart = now.UnixNano()
	entry.ticksRun++
	entry.vruntime += s.stats.QuantumMicros / priorityScale(entry.priority)
	entry.seq = s.nextSeq
	s.nextSeq++
	heap.Push(s.queue, entry)

	s.stats.TotalScheduled++
	if switched {
		s.stats.ContextSwitches++
	}
	if preempted {
		s.stats.Preemptions++
	}

	pid := entry.pid
	s.current = &pid
	return TickResult{Pid: pid, Valid: true, Switched: switched, Preempted: preempted}
}

// Current returns the currently scheduled pid, if any.
func (s *Scheduler) Current() (types.Pid, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0, false
	}
	return *s.current, true
}

// Yield clears pid's current-running status, if it holds it, so the
// next Tick picks a different (or the same, if nothing else is
// runnable) pid without waiting for a quantum expiry.
func (s *Scheduler) Yield(pid types.Pid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && *s.current == pid {
		s.current = nil
	}
}

// Stats returns a snapshot of the global statistics set.
func (s *Scheduler) Stats() GlobalStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.ActiveProcesses = len(s.byPid)
	return st
}

// ProcessStats returns pid's per-process scheduling view.
func (s *Scheduler) ProcessStats(pid types.Pid) (ProcessStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byPid[pid]
	if !ok {
		return ProcessStats{}, false
	}
	return ProcessStats{Pid: e.pid, Priority: e.priority, VRuntime: e.vruntime, TicksRun: e.ticksRun}, true
}

// AllProcessStats returns every tracked pid's scheduling view, ordered
// highest-priority first and by pid within a priority class so repeated
// calls are stable for callers/tests regardless of map iteration order.
func (s *Scheduler) AllProcessStats() []ProcessStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProcessStats, 0, len(s.byPid))
	for _, e := range s.byPid {
		out = append(out, ProcessStats{Pid: e.pid, Priority: e.priority, VRuntime: e.vruntime, TicksRun: e.ticksRun})
	}
	slices.SortFunc(out, func(a, b ProcessStats) bool {
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Pid < b.Pid
	})
	return out
}

// BoostPriority raises pid's priority by one step, clamped to
// types.MaxPriority.
func (s *Scheduler) BoostPriority(pid types.Pid) {
	s.adjustPriority(pid, 1)
}

// LowerPriority drops pid's priority by one step, clamped to
// types.MinPriority.
func (s *Scheduler) LowerPriority(pid types.Pid) {
	s.adjustPriority(pid, -1)
}

func (s *Scheduler) adjustPriority(pid types.Pid, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byPid[pid]
	if !ok {
		return
	}
	next := int(e.priority) + delta
	if next < int(types.MinPriority) {
		next = int(types.MinPriority)
	}
	if next > int(types.MaxPriority) {
		next = int(types.MaxPriority)
	}
	e.priority = types.Priority(next)
	heap.Init(s.queue)
}

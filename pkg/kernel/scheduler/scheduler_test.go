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
	"testing"
	"time"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestRoundRobinAlternatesStrictly(t *testing.T) {
	s := New(PolicyRoundRobin, time.Millisecond)
	s.Add(1, 5)
	s.Add(2, 5)

	now := time.Now()
	seen := make([]types.Pid, 0, 4)
	for i := 0; i < 4; i++ {
		res := s.Tick(now)
		if !res.Valid {
			t.Fatal("expected a valid tick")
		}
		seen = append(seen, res.Pid)
		now = now.Add(time.Millisecond)
	}
	for i := 0; i < len(seen)-1; i++ {
		if seen[i] == seen[i+1] {
			t.Fatalf("round robin repeated pid %s on consecutive ticks: %v", seen[i], seen)
		}
	}
}

func TestPriorityPolicyStarvesLowerPriority(t *testing.T) {
	s := New(PolicyPriority, time.Millisecond)
	s.Add(1, 9)
	s.Add(2, 0)

	now := time.Now()
	for i := 0; i < 10; i++ {
		res := s.Tick(now)
		if res.Pid != 1 {
			t.Fatalf("expected pid 1 (highest priority) to always run, got %s on tick %d", res.Pid, i)
		}
		now = now.Add(time.Millisecond)
	}
}

func TestFairPolicyBalancesEqualPriority(t *testing.T) {
	s := New(PolicyFair, time.Millisecond)
	s.Add(1, 5)
	s.Add(2, 5)
	s.Add(3, 5)

	counts := map[types.Pid]int{}
	now := time.Now()
	const ticks = 300
	for i := 0; i < ticks; i++ {
		res := s.Tick(now)
		counts[res.Pid]++
		now = now.Add(time.Millisecond)
	}

	expected := ticks / 3
	for pid, n := range counts {
		if n < expected-expected/3 || n > expected+expected/3 {
			t.Fatalf("pid %s ran %d times, expected roughly %d (+/- a third)", pid, n, expected)
		}
	}
}

func TestQuantumPreemptionForcesSwitch(t *testing.T) {
	s := New(PolicyPriority, 5*time.Millisecond)
	s.Add(1, 5)

	now := time.Now()
	first := s.Tick(now)
	if !first.Valid || first.Preempted {
		t.Fatalf("expected first tick to be a non-preempted switch, got %+v", first)
	}

	// Advance past pid 1's 5ms quantum with no other runnable pid: pid 1
	// is picked again and the tick counts as a preemption.
	now = now.Add(10 * time.Millisecond)
	second := s.Tick(now)
	if !second.Valid {
		t.Fatal("expected second tick to be valid")
	}
	if !second.Preempted {
		t.Fatalf("expected preemption once the quantum elapsed with no other runnable pid, got %+v", second)
	}
}

func TestRemoveClearsCurrentAndActiveCount(t *testing.T) {
	s := New(PolicyRoundRobin, time.Millisecond)
	s.Add(1, 5)
	s.Tick(time.Now())

	s.Remove(1)
	if _, ok := s.Current(); ok {
		t.Fatal("expected Current to be cleared after removing the running pid")
	}
	if got := s.Stats().ActiveProcesses; got != 0 {
		t.Fatalf("expected 0 active processes, got %d", got)
	}
}

func TestBoostAndLowerPriorityClamp(t *testing.T) {
	s := New(PolicyPriority, time.Millisecond)
	s.Add(1, types.MaxPriority)
	s.BoostPriority(1)
	stats, ok := s.ProcessStats(1)
	if !ok || stats.Priority != types.MaxPriority {
		t.Fatalf("expected priority clamped at MaxPriority, got %+v", stats)
	}

	s.Add(2, types.MinPriority)
	s.LowerPriority(2)
	stats, ok = s.ProcessStats(2)
	if !ok || stats.Priority != types.MinPriority {
		t.Fatalf("expected priority clamped at MinPriority, got %+v", stats)
	}
}

func TestAllProcessStatsOrderedByPriority(t *testing.T) {
	s := New(PolicyPriority, time.Millisecond)
	s.Add(10, 1)
	s.Add(11, 9)
	s.Add(12, 5)

	stats := s.AllProcessStats()
	if len(stats) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(stats))
	}
	for i := 0; i < len(stats)-1; i++ {
		if stats[i].Priority < stats[i+1].Priority {
			t.Fatalf("expected descending priority order, got %+v", stats)
		}
	}
}

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

// Package signal implements per-process POSIX signal state: pending and
// blocked sets, registered handlers, and delivery at dispatcher
// boundaries. Signal numbers reuse golang.org/x/sys/unix's real POSIX
// constants rather than a hand-picked internal enum, so the subset this
// kernel recognizes lines up with what a real process would expect.
package signal

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Num is a POSIX signal number, 1..31 over the fixed subset this kernel
// recognizes.
type Num int

// The fixed subset of POSIX signals this kernel models, reusing the
// real numbering from golang.org/x/sys/unix.
const (
	SIGHUP  Num = Num(unix.SIGHUP)
	SIGINT  Num = Num(unix.SIGINT)
	SIGQUIT Num = Num(unix.SIGQUIT)
	SIGILL  Num = Num(unix.SIGILL)
	SIGTRAP Num = Num(unix.SIGTRAP)
	SIGABRT Num = Num(unix.SIGABRT)
	SIGBUS  Num = Num(unix.SIGBUS)
	SIGFPE  Num = Num(unix.SIGFPE)
	SIGKILL Num = Num(unix.SIGKILL)
	SIGUSR1 Num = Num(unix.SIGUSR1)
	SIGSEGV Num = Num(unix.SIGSEGV)
	SIGUSR2 Num = Num(unix.SIGUSR2)
	SIGPIPE Num = Num(unix.SIGPIPE)
	SIGALRM Num = Num(unix.SIGALRM)
	SIGTERM Num = Num(unix.SIGTERM)
	SIGCHLD Num = Num(unix.SIGCHLD)
	SIGCONT Num = Num(unix.SIGCONT)
	SIGSTOP Num = Num(unix.SIGSTOP)
	SIGTSTP Num = Num(unix.SIGTSTP)
)

// IsValid reports whether n is a number this kernel recognizes (1..31).
func IsValid(n Num) bool { return n >= 1 && n <= 31 }

// Uncatchable reports whether n can neither be caught nor blocked —
// true only for KILL and STOP, per POSIX and spec.md.
func Uncatchable(n Num) bool { return n == SIGKILL || n == SIGSTOP }

// Action is what delivering a pending, unblocked signal does.
type Action uint8

const (
	// ActionDefault applies the per-signal default action (Terminate
	// for most signals modeled here).
	ActionDefault Action = iota
	ActionIgnore
	ActionHandler
	ActionStop
	ActionContinue
)

// Disposition is Default/Ignore/Handler(id)/Stop/Continue for one
// signal.
type Disposition struct {
	Action Action
	// HandlerID identifies the process-registered callback to invoke
	// when Action == ActionHandler; meaningless otherwise.
	HandlerID uint64
}

// defaultDisposition returns the built-in default for n absent any
// registered handler: Terminate for every signal this kernel models
// except SIGCHLD, SIGCONT and SIGSTOP, which default to Ignore, Continue
// and Stop.
func defaultDisposition(n Num) Action {
	switch n {
	case SIGCHLD:
		return ActionIgnore
	case SIGCONT:
		return ActionContinue
	case SIGSTOP:
		return ActionStop
	default:
		return ActionDefault
	}
}

// QueueFull is returned by Send when a process's pending set is already
// saturated for every distinct signal number it can hold.
type QueueFull struct{ Pid types.Pid }

func (e QueueFull) Error() string { return "signal: queue full for pid" }

// InvalidSignal is returned for a signal number outside the 1..31
// recognized range.
type InvalidSignal struct{ Num Num }

func (e InvalidSignal) Error() string { return "signal: invalid signal number" }

// state is one process's pending/blocked/handler bookkeeping. Pending
// is a set (POSIX standard signals don't queue multiple pending
// instances of the same number), so "queue full" here means every
// valid signal number this process could receive is already pending —
// in practice unreachable for the fixed 1..31 subset but kept as an
// explicit, testable failure mode per spec.md.
type state struct {
	mu       sync.Mutex
	pending  map[Num]bool
	blocked  map[Num]bool
	handlers map[Num]Disposition
}

func newState() *state {
	return &state{pending: make(map[Num]bool), blocked: make(map[Num]bool), handlers: make(map[Num]Disposition)}
}

// Table owns every process's signal state.
type Table struct {
	mu   sync.Mutex
	byPid map[types.Pid]*state
}

// NewTable builds an empty signal state table.
func NewTable() *Table {
	return &Table{byPid: make(map[types.Pid]*state)}
}

func (t *Table) stateFor(pid types.Pid) *state {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byPid[pid]
	if !ok {
		s = newState()
		t.byPid[pid] = s
	}
	return s
}

// Init creates empty signal state for pid — the process manager's
// "signal state init" lifecycle hook.
func (t *Table) Init(pid types.Pid) { t.stateFor(pid) }

// Remove discards pid's signal state entirely, called during process
// termination's resource orchestrator pass.
func (t *Table) Remove(pid types.Pid) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byPid, pid)
}

// SetHandler registers a disposition for signal n on pid.
func (t *Table) SetHandler(pid types.Pid, n Num, d Disposition) error {
	if !IsValid(n) {
		return InvalidSignal{Num: n}
	}
	if Uncatchable(n) && d.Action != ActionDefault {
		return InvalidSignal{Num: n} // KILL/STOP cannot be caught
	}
	s := t.stateFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[n] = d
	return nil
}

// Block marks n blocked for pid. KILL/STOP cannot be blocked.
func (t *Table) Block(pid types.Pid, n Num) error {
	if !IsValid(n) {
		return InvalidSignal{Num: n}
	}
	if Uncatchable(n) {
		return InvalidSignal{Num: n}
	}
	s := t.stateFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[n] = true
	return nil
}

// Unblock clears n's blocked flag for pid.
func (t *Table) Unblock(pid types.Pid, n Num) {
	s := t.stateFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocked, n)
}

// Send marks n pending for pid.
func (t *Table) Send(pid types.Pid, n Num) error {
	if !IsValid(n) {
		return InvalidSignal{Num: n}
	}
	s := t.stateFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= 31 && !s.pending[n] {
		return QueueFull{Pid: pid}
	}
	s.pending[n] = true
	return nil
}

// Deliverable is one signal ready to act on at a dispatcher boundary.
type Deliverable struct {
	Num         Num
	Disposition Disposition
}

// Deliver pops every currently pending-and-unblocked signal for pid,
// in ascending numeric order, clearing them from the pending set and
// resolving each to its disposition (registered handler, or the
// per-signal default). Called at syscall dispatcher boundaries per
// spec.md §4.10.
func (t *Table) Deliver(pid types.Pid) []Deliverable {
	s := t.stateFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()

	var nums []Num
	for n := range s.pending {
		if !s.blocked[n] {
			nums = append(nums, n)
		}
	}
	sortNums(nums)

	out := make([]Deliverable, 0, len(nums))
	for _, n := range nums {
		delete(s.pending, n)
		d, ok := s.handlers[n]
		if !ok {
			d = Disposition{Action: defaultDisposition(n)}
		}
		out = append(out, Deliverable{Num: n, Disposition: d})
	}
	return out
}

// Pending returns every currently pending signal for pid without
// clearing it, unlike Deliver — used by the GetPendingSignals/
// GetSignalState syscalls, which must not have delivery side effects.
func (t *Table) Pending(pid types.Pid) []Num {
	s := t.stateFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	nums := make([]Num, 0, len(s.pending))
	for n := range s.pending {
		nums = append(nums, n)
	}
	sortNums(nums)
	return nums
}

// Blocked returns every currently blocked signal for pid.
func (t *Table) Blocked(pid types.Pid) []Num {
	s := t.stateFor(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	nums := make([]Num, 0, len(s.blocked))
	for n := range s.blocked {
		nums = append(nums, n)
	}
	sortNums(nums)
	return nums
}

// TableStats is a coarse global view for GetSignalStats.
type TableStats struct {
	TrackedProcesses int
	TotalPending     int
}

// Stats summarizes every process currently tracked in t.
func (t *Table) Stats() TableStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, s := range t.byPid {
		s.mu.Lock()
		total += len(s.pending)
		s.mu.Unlock()
	}
	return TableStats{TrackedProcesses: len(t.byPid), TotalPending: total}
}

func sortNums(nums []Num) {
	for i := 1; i < len(nums); i++ {
		for j := i; j > 0 && nums[j-1] > nums[j]; j-- {
			nums[j-1], nums[j] = nums[j], nums[j-1]
		}
	}
}

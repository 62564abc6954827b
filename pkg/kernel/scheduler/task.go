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
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// PreemptionController is the optional adapter beyond picking the next
// pid: it instructs an executor to send an OS-level stop/continue to
// the outgoing/incoming child. Without one, scheduling is logical only.
type PreemptionController interface {
	Stop(pid types.Pid) error
	Continue(pid types.Pid) error
}

type command interface{ isCommand() }

type cmdUpdateQuantum struct{ quantum time.Duration }
type cmdPause struct{}
type cmdResume struct{}
type cmdTrigger struct{}
type cmdShutdown struct{}

func (cmdUpdateQuantum) isCommand() {}
func (cmdPause) isCommand()         {}
func (cmdResume) isCommand()        {}
func (cmdTrigger) isCommand()       {}
func (cmdShutdown) isCommand()      {}

// Task is the autonomous scheduler: a background goroutine driven by a
// monotonic ticker at quantum resolution, accepting control commands
// {UpdateQuantum, Pause, Resume, Trigger, Shutdown} per spec.md §4.7.
// Missed ticks are skipped rather than bursting, since time.Ticker's
// channel only ever holds one pending tick.
type Task struct {
	sched   *Scheduler
	preempt PreemptionController
	sink    kevent.Sink

	cmds chan command

	mu      sync.Mutex
	active  bool
	eg      *errgroup.Group
	cancel  context.CancelFunc
	started bool
}

// NewTask builds a Task over sched. preempt may be nil for logical-only
// scheduling; sink may be nil to discard SchedulerStep events.
func NewTask(sched *Scheduler, preempt PreemptionController, sink kevent.Sink) *Task {
	if sink == nil {
		sink = kevent.NopSink{}
	}
	return &Task{sched: sched, preempt: preempt, sink: sink, cmds: make(chan command, 8), active: true}
}

// Start launches the background loop. Calling Start twice is a no-op.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	t.eg = g
	t.mu.Unlock()

	g.Go(func() error {
		t.run(gctx)
		return nil
	})
}

func (t *Task) run(ctx context.Context) {
	ticker := time.NewTicker(t.sched.Quantum())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-t.cmds:
			switch c := cmd.(type) {
			case cmdUpdateQuantum:
				t.sched.SetQuantum(c.quantum)
				ticker.Stop()
				ticker = time.NewTicker(c.quantum)
			case cmdPause:
				t.mu.Lock()
				t.active = false
				t.mu.Unlock()
			case cmdResume:
				t.mu.Lock()
				t.active = true
				t.mu.Unlock()
			case cmdTrigger:
				t.step()
			case cmdShutdown:
				return
			}
		case <-ticker.C:
			t.mu.Lock()
			active := t.active
			t.mu.Unlock()
			if active {
				t.step()
			}
		}
	}
}

func (t *Task) step() {
	prev, hadPrev := t.sched.Current()
	res := t.sched.Tick(time.Now())
	if !res.Valid {
		return
	}
	if t.preempt != nil && res.Switched {
		if hadPrev && prev != res.Pid {
			_ = t.preempt.Stop(prev)
		}
		_ = t.preempt.Continue(res.Pid)
	}
	pid := res.Pid
	t.sink.Publish(kevent.New(kevent.Debug, kevent.CategoryScheduler, &pid, kevent.SchedulerStep{
		Pid: res.Pid, ContextSwitch: res.Switched, Preempted: res.Preempted,
	}))
}

// UpdateQuantum changes the ticker interval, recreating it rather than
// adjusting in place.
func (t *Task) UpdateQuantum(d time.Duration) { t.send(cmdUpdateQuantum{quantum: d}) }

// Pause stops Tick from being driven by the ticker until Resume.
func (t *Task) Pause() { t.send(cmdPause{}) }

// Resume re-enables ticker-driven scheduling.
func (t *Task) Resume() { t.send(cmdResume{}) }

// Trigger forces one scheduling step immediately, regardless of the
// ticker or active/paused state.
func (t *Task) Trigger() { t.send(cmdTrigger{}) }

// Shutdown stops the background loop and waits for it to exit.
func (t *Task) Shutdown() {
	t.mu.Lock()
	started := t.started
	cancel := t.cancel
	g := t.eg
	t.mu.Unlock()
	if !started {
		return
	}
	select {
	case t.cmds <- cmdShutdown{}:
	default:
		cancel()
	}
	_ = g.Wait()
}

func (t *Task) send(c command) {
	select {
	case t.cmds <- c:
	default:
	}
}

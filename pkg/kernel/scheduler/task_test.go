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
	"testing"
	"time"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestTaskTriggerStepsEvenWhilePaused(t *testing.T) {
	s := New(PolicyRoundRobin, 50*time.Millisecond)
	s.Add(1, 5)

	task := NewTask(s, nil, nil)
	task.Start(context.Background())
	defer task.Shutdown()

	task.Pause()
	time.Sleep(10 * time.Millisecond)
	before := s.Stats().TotalScheduled

	task.Trigger()
	time.Sleep(20 * time.Millisecond)

	after := s.Stats().TotalScheduled
	if after <= before {
		t.Fatalf("expected Trigger to force a step even while paused: before=%d after=%d", before, after)
	}
}

func TestTaskQuantumUpdateIncreasesSwitchRate(t *testing.T) {
	s := New(PolicyFair, 20*time.Millisecond)
	s.Add(1, 5)
	s.Add(2, 5)

	task := NewTask(s, nil, nil)
	task.Start(context.Background())
	defer task.Shutdown()

	time.Sleep(120 * time.Millisecond)
	firstPhase := s.Stats().TotalScheduled

	task.UpdateQuantum(2 * time.Millisecond)
	time.Sleep(120 * time.Millisecond)
	secondPhase := s.Stats().TotalScheduled - firstPhase

	if secondPhase <= firstPhase {
		t.Fatalf("expected a shorter quantum to drive more ticks: first=%d second=%d", firstPhase, secondPhase)
	}
}

type recordingPreempt struct {
	continued []types.Pid
}

func (p *recordingPreempt) Stop(types.Pid) error { return nil }
func (p *recordingPreempt) Continue(pid types.Pid) error {
	p.continued = append(p.continued, pid)
	return nil
}

func TestTaskInvokesPreemptionControllerOnSwitch(t *testing.T) {
	s := New(PolicyRoundRobin, 10*time.Millisecond)
	s.Add(1, 5)
	pc := &recordingPreempt{}

	task := NewTask(s, pc, nil)
	task.Start(context.Background())
	defer task.Shutdown()

	task.Trigger()
	time.Sleep(20 * time.Millisecond)

	if len(pc.continued) == 0 {
		t.Fatal("expected the preemption controller to observe at least one Continue call")
	}
}

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

package kerneld

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/pkg/kernel/config"
	"github.com/nyxkernel/kernel/pkg/kernel/process"
	"github.com/nyxkernel/kernel/pkg/kernel/scheduler"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(testWriter{})
	return log
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestBuildDefaultConfig(t *testing.T) {
	k, err := Build(config.Default(), discardLogger())
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}
	defer k.Close()

	if k.Cgroups != nil {
		t.Fatalf("Cgroups = %v, want nil (disabled by default)", k.Cgroups)
	}
	if k.Probe != nil {
		t.Fatalf("Probe = %v, want nil (disabled by default)", k.Probe)
	}
	if k.Sched.Policy() != scheduler.PolicyFair {
		t.Fatalf("Sched.Policy() = %v, want PolicyFair", k.Sched.Policy())
	}
}

func TestBuildWiresProcessCreation(t *testing.T) {
	k, err := Build(config.Default(), discardLogger())
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}
	defer k.Close()

	pid, err := k.Procs.Create(process.CreateOptions{Name: "init", Priority: 1})
	if err != nil {
		t.Fatalf("Procs.Create() err = %v", err)
	}
	procs := k.Procs.List()
	found := false
	for _, p := range procs {
		if p.Pid == pid {
			found = true
		}
	}
	if !found {
		t.Fatalf("Procs.List() = %v, want to contain pid %d", procs, pid)
	}
}

func TestSchedulerPolicyMapping(t *testing.T) {
	cases := map[string]scheduler.Policy{
		"round_robin": scheduler.PolicyRoundRobin,
		"priority":    scheduler.PolicyPriority,
		"fair":        scheduler.PolicyFair,
		"bogus":       scheduler.PolicyFair,
	}
	for name, want := range cases {
		cfg := config.Default()
		cfg.Scheduler.Policy = name
		if got := schedulerPolicy(cfg); got != want {
			t.Errorf("schedulerPolicy(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRunSchedulerLoopStopsOnCancel(t *testing.T) {
	k, err := Build(config.Default(), discardLogger())
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}
	defer k.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		k.RunSchedulerLoop(ctx, time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSchedulerLoop did not return after context cancellation")
	}
}

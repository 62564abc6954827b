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

// Package scheduler maintains a per-policy view of runnable pids and
// drives the autonomous scheduling loop.
package scheduler

import "github.com/nyxkernel/kernel/pkg/kernel/types"

// Policy selects how Scheduler orders runnable pids.
type Policy uint8

const (
	// PolicyFair runs the pid with the least accumulated virtual
	// runtime, scaled by 1/priority, next.
	PolicyFair Policy = iota
	// PolicyRoundRobin runs ready pids in strict FIFO order.
	PolicyRoundRobin
	// PolicyPriority runs the highest-priority pid first, FIFO within
	// a priority class.
	PolicyPriority
)

func (p Policy) String() string {
	switch p {
	case PolicyFair:
		return "Fair"
	case PolicyRoundRobin:
		return "RoundRobin"
	case PolicyPriority:
		return "Priority"
	default:
		return "Unknown"
	}
}

// GlobalStats is the scheduler-wide statistics set spec.md names.
type GlobalStats struct {
	TotalScheduled  uint64
	ContextSwitches uint64
	Preemptions     uint64
	ActiveProcesses int
	QuantumMicros   uint64
}

// ProcessStats is the per-pid view GetProcessSchedulerStats returns.
type ProcessStats struct {
	Pid      types.Pid
	Priority types.Priority
	VRuntime uint64
	TicksRun uint64
}

// TickResult reports what a single Tick call decided.
type TickResult struct {
	Pid       types.Pid
	Valid     bool
	Switched  bool
	Preempted bool
}

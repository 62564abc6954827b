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

package syscall

import (
	"time"

	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/scheduler"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Scheduler group, per spec.md §6.

type ScheduleNext struct{}
type YieldProcess struct{}
type GetCurrentScheduled struct{}
type GetSchedulerStats struct{}
type SetSchedulingPolicy struct{ Policy scheduler.Policy }
type GetSchedulingPolicy struct{}
type SetTimeQuantum struct{ QuantumMicros int64 }
type GetTimeQuantum struct{}
type GetProcessSchedulerStats struct{ TargetPid types.Pid }
type GetAllProcessSchedulerStats struct{}
type BoostPriority struct{ TargetPid types.Pid }
type LowerPriority struct{ TargetPid types.Pid }

func (ScheduleNext) isSyscall()                {}
func (YieldProcess) isSyscall()                {}
func (GetCurrentScheduled) isSyscall()         {}
func (GetSchedulerStats) isSyscall()           {}
func (SetSchedulingPolicy) isSyscall()         {}
func (GetSchedulingPolicy) isSyscall()         {}
func (SetTimeQuantum) isSyscall()              {}
func (GetTimeQuantum) isSyscall()              {}
func (GetProcessSchedulerStats) isSyscall()    {}
func (GetAllProcessSchedulerStats) isSyscall() {}
func (BoostPriority) isSyscall()               {}
func (LowerPriority) isSyscall()               {}

func (ScheduleNext) Name() string                { return "ScheduleNext" }
func (YieldProcess) Name() string                { return "YieldProcess" }
func (GetCurrentScheduled) Name() string         { return "GetCurrentScheduled" }
func (GetSchedulerStats) Name() string           { return "GetSchedulerStats" }
func (SetSchedulingPolicy) Name() string         { return "SetSchedulingPolicy" }
func (GetSchedulingPolicy) Name() string         { return "GetSchedulingPolicy" }
func (SetTimeQuantum) Name() string              { return "SetTimeQuantum" }
func (GetTimeQuantum) Name() string              { return "GetTimeQuantum" }
func (GetProcessSchedulerStats) Name() string    { return "GetProcessSchedulerStats" }
func (GetAllProcessSchedulerStats) Name() string { return "GetAllProcessSchedulerStats" }
func (BoostPriority) Name() string                { return "BoostPriority" }
func (LowerPriority) Name() string                { return "LowerPriority" }

func schedulerSystemResource(action sandbox.Action) (sandbox.Resource, sandbox.Action) {
	return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "scheduler"}, action
}

func schedulerPermission(callerPid types.Pid, sc Syscall) (sandbox.Resource, sandbox.Action) {
	switch s := sc.(type) {
	case ScheduleNext:
		return schedulerSystemResource(sandbox.ActionInspect)
	case YieldProcess:
		return processResource(callerPid, sandbox.ActionWrite)
	case GetCurrentScheduled, GetSchedulerStats, GetSchedulingPolicy, GetTimeQuantum, GetAllProcessSchedulerStats:
		return schedulerSystemResource(sandbox.ActionInspect)
	case SetSchedulingPolicy, SetTimeQuantum:
		return schedulerSystemResource(sandbox.ActionWrite)
	case GetProcessSchedulerStats:
		return processResource(s.TargetPid, sandbox.ActionInspect)
	case BoostPriority:
		return processResource(s.TargetPid, sandbox.ActionWrite)
	case LowerPriority:
		return processResource(s.TargetPid, sandbox.ActionWrite)
	}
	return sandbox.Resource{}, sandbox.ActionInspect
}

func (d *Dispatcher) execScheduler(callerPid types.Pid, sc Syscall) SyscallResult {
	if d.sched == nil {
		return Failure(noScheduler)
	}
	switch s := sc.(type) {
	case ScheduleNext:
		return Success(d.sched.Tick(time.Now()))
	case YieldProcess:
		d.sched.Yield(callerPid)
		return Success(nil)
	case GetCurrentScheduled:
		pid, ok := d.sched.Current()
		if !ok {
			return Success(nil)
		}
		return Success(pid)
	case GetSchedulerStats:
		return Success(d.sched.Stats())
	case SetSchedulingPolicy:
		d.sched.SetPolicy(s.Policy)
		return Success(nil)
	case GetSchedulingPolicy:
		return Success(d.sched.Policy())
	case SetTimeQuantum:
		d.sched.SetQuantum(time.Duration(s.QuantumMicros) * time.Microsecond)
		return Success(nil)
	case GetTimeQuantum:
		return Success(d.sched.Quantum().Microseconds())
	case GetProcessSchedulerStats:
		st, ok := d.sched.ProcessStats(s.TargetPid)
		if !ok {
			return Failure(badPid)
		}
		return Success(st)
	case GetAllProcessSchedulerStats:
		return Success(d.sched.AllProcessStats())
	case BoostPriority:
		d.sched.BoostPriority(s.TargetPid)
		return Success(nil)
	case LowerPriority:
		d.sched.LowerPriority(s.TargetPid)
		return Success(nil)
	}
	return Failure(unknownSyscall)
}

var noScheduler = types.OperationFailed(errNoScheduler{})

type errNoScheduler struct{}

func (errNoScheduler) Error() string { return "syscall: no scheduler wired into dispatcher" }

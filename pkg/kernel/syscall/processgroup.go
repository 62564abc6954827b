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
	"context"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/process"
	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Process group, per spec.md §6.

type SpawnProcess struct {
	Command string
	Args    []string
}
type KillProcess struct{ TargetPid types.Pid }
type GetProcessInfo struct{ TargetPid types.Pid }
type GetProcessList struct{}
type SetProcessPriority struct {
	TargetPid types.Pid
	Priority  types.Priority
}
type GetProcessState struct{ TargetPid types.Pid }
type GetProcessStats struct{ TargetPid types.Pid }
type WaitProcess struct {
	TargetPid types.Pid
	TimeoutMs *int
}

func (SpawnProcess) isSyscall()       {}
func (KillProcess) isSyscall()        {}
func (GetProcessInfo) isSyscall()     {}
func (GetProcessList) isSyscall()     {}
func (SetProcessPriority) isSyscall() {}
func (GetProcessState) isSyscall()    {}
func (GetProcessStats) isSyscall()    {}
func (WaitProcess) isSyscall()        {}

func (SpawnProcess) Name() string       { return "SpawnProcess" }
func (KillProcess) Name() string        { return "KillProcess" }
func (GetProcessInfo) Name() string     { return "GetProcessInfo" }
func (GetProcessList) Name() string     { return "GetProcessList" }
func (SetProcessPriority) Name() string { return "SetProcessPriority" }
func (GetProcessState) Name() string    { return "GetProcessState" }
func (GetProcessStats) Name() string    { return "GetProcessStats" }
func (WaitProcess) Name() string        { return "WaitProcess" }

func processResource(pid types.Pid, action sandbox.Action) (sandbox.Resource, sandbox.Action) {
	return sandbox.Resource{Tag: sandbox.ResourceProcess, Pid: pid}, action
}

func processPermission(callerPid types.Pid, sc Syscall) (sandbox.Resource, sandbox.Action) {
	switch s := sc.(type) {
	case SpawnProcess:
		return processResource(callerPid, sandbox.ActionCreate)
	case KillProcess:
		return processResource(s.TargetPid, sandbox.ActionKill)
	case GetProcessInfo:
		return processResource(s.TargetPid, sandbox.ActionInspect)
	case GetProcessList:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "processes"}, sandbox.ActionList
	case SetProcessPriority:
		return processResource(s.TargetPid, sandbox.ActionWrite)
	case GetProcessState:
		return processResource(s.TargetPid, sandbox.ActionInspect)
	case GetProcessStats:
		return processResource(s.TargetPid, sandbox.ActionInspect)
	case WaitProcess:
		return processResource(s.TargetPid, sandbox.ActionInspect)
	}
	return sandbox.Resource{}, sandbox.ActionInspect
}

// ProcessStatsSnapshot merges the scheduler's and memory manager's
// per-process views for GetProcessStats, since spec.md treats "process
// stats" as a single read even though two components own the halves.
type ProcessStatsSnapshot struct {
	Scheduler types.SchedulerStats
	Memory    memory.ProcessStats
}

func (d *Dispatcher) execProcess(callerPid types.Pid, sc Syscall) SyscallResult {
	switch s := sc.(type) {
	case SpawnProcess:
		child, err := d.procs.Create(process.CreateOptions{
			Name:     s.Command,
			Priority: types.MaxPriority / 2,
			Parent:   &callerPid,
			Exec:     &process.ExecConfig{Command: s.Command, Args: s.Args},
		})
		if err != nil {
			return Failure(err)
		}
		return Success(child)
	case KillProcess:
		return Failure(d.procs.Terminate(s.TargetPid))
	case GetProcessInfo:
		p, ok := d.procs.Get(s.TargetPid)
		if !ok {
			return Failure(badPid)
		}
		// d.procs.Get already hands back a cloned *types.Process, but a
		// caller across a syscall boundary gets a deepcopy.Copy pass on
		// top so SyscallResult.Data never aliases anything the process
		// table itself might still be holding a reference to.
		return Success(deepcopy.Copy(p).(*types.Process))
	case GetProcessList:
		return Success(d.procs.List())
	case SetProcessPriority:
		if err := d.procs.SetPriority(s.TargetPid, s.Priority); err != nil {
			return Failure(err)
		}
		return Success(nil)
	case GetProcessState:
		p, ok := d.procs.Get(s.TargetPid)
		if !ok {
			return Failure(badPid)
		}
		return Success(p.State)
	case GetProcessStats:
		p, ok := d.procs.Get(s.TargetPid)
		if !ok {
			return Failure(badPid)
		}
		snap := ProcessStatsSnapshot{Scheduler: p.Stats}
		if d.mem != nil {
			snap.Memory = d.mem.Stats(s.TargetPid)
		}
		return Success(deepcopy.Copy(snap).(ProcessStatsSnapshot))
	case WaitProcess:
		ctx := context.Background()
		if s.TimeoutMs != nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(*s.TimeoutMs)*time.Millisecond)
			defer cancel()
		}
		if err := d.procs.WaitTerminated(ctx, s.TargetPid); err != nil {
			return Failure(err)
		}
		return Success(nil)
	}
	return Failure(unknownSyscall)
}

var badPid = types.NotFound("syscall: no such pid")

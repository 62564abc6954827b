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
	"runtime"
	"time"

	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/signal"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// System group, per spec.md §6.

type GetSystemInfo struct{}
type GetCurrentTime struct{}
type GetEnvironmentVar struct{ Key string }
type SetEnvironmentVar struct{ Key, Value string }
type Sleep struct{ DurationMs int }
type GetUptime struct{}
type GetMemoryStats struct{}
type GetProcessMemoryStats struct{ TargetPid types.Pid }
type TriggerGC struct{ TargetPid *types.Pid }
type SendSignal struct {
	TargetPid types.Pid
	Signal    signal.Num
}
type RegisterSignalHandler struct {
	Signal    signal.Num
	HandlerID uint64
}
type BlockSignal struct{ Signal signal.Num }
type UnblockSignal struct{ Signal signal.Num }
type GetPendingSignals struct{}
type GetSignalStats struct{}
type WaitForSignal struct {
	Signals   []signal.Num
	TimeoutMs *int
}
type GetSignalState struct{ TargetPid *types.Pid }

func (GetSystemInfo) isSyscall()         {}
func (GetCurrentTime) isSyscall()        {}
func (GetEnvironmentVar) isSyscall()     {}
func (SetEnvironmentVar) isSyscall()     {}
func (Sleep) isSyscall()                 {}
func (GetUptime) isSyscall()             {}
func (GetMemoryStats) isSyscall()        {}
func (GetProcessMemoryStats) isSyscall() {}
func (TriggerGC) isSyscall()             {}
func (SendSignal) isSyscall()            {}
func (RegisterSignalHandler) isSyscall() {}
func (BlockSignal) isSyscall()           {}
func (UnblockSignal) isSyscall()         {}
func (GetPendingSignals) isSyscall()     {}
func (GetSignalStats) isSyscall()        {}
func (WaitForSignal) isSyscall()         {}
func (GetSignalState) isSyscall()        {}

func (GetSystemInfo) Name() string         { return "GetSystemInfo" }
func (GetCurrentTime) Name() string        { return "GetCurrentTime" }
func (GetEnvironmentVar) Name() string     { return "GetEnvironmentVar" }
func (SetEnvironmentVar) Name() string     { return "SetEnvironmentVar" }
func (Sleep) Name() string                 { return "Sleep" }
func (GetUptime) Name() string             { return "GetUptime" }
func (GetMemoryStats) Name() string        { return "GetMemoryStats" }
func (GetProcessMemoryStats) Name() string { return "GetProcessMemoryStats" }
func (TriggerGC) Name() string             { return "TriggerGC" }
func (SendSignal) Name() string            { return "SendSignal" }
func (RegisterSignalHandler) Name() string { return "RegisterSignalHandler" }
func (BlockSignal) Name() string           { return "BlockSignal" }
func (UnblockSignal) Name() string         { return "UnblockSignal" }
func (GetPendingSignals) Name() string     { return "GetPendingSignals" }
func (GetSignalStats) Name() string        { return "GetSignalStats" }
func (WaitForSignal) Name() string         { return "WaitForSignal" }
func (GetSignalState) Name() string        { return "GetSignalState" }

func systemResource(name string, action sandbox.Action) (sandbox.Resource, sandbox.Action) {
	return sandbox.Resource{Tag: sandbox.ResourceSystem, System: name}, action
}

func systemPermission(callerPid types.Pid, sc Syscall) (sandbox.Resource, sandbox.Action) {
	switch s := sc.(type) {
	case GetSystemInfo, GetCurrentTime, GetUptime, GetMemoryStats, GetPendingSignals, GetSignalStats:
		return systemResource("info", sandbox.ActionInspect)
	case GetEnvironmentVar:
		return systemResource("env", sandbox.ActionRead)
	case SetEnvironmentVar:
		return systemResource("env", sandbox.ActionWrite)
	case Sleep:
		return systemResource("time", sandbox.ActionInspect)
	case GetProcessMemoryStats:
		return processResource(s.TargetPid, sandbox.ActionInspect)
	case TriggerGC:
		return systemResource("memory", sandbox.ActionWrite)
	case SendSignal:
		return processResource(s.TargetPid, sandbox.ActionKill)
	case RegisterSignalHandler, BlockSignal, UnblockSignal:
		return processResource(callerPid, sandbox.ActionWrite)
	case WaitForSignal:
		return processResource(callerPid, sandbox.ActionInspect)
	case GetSignalState:
		target := callerPid
		if s.TargetPid != nil {
			target = *s.TargetPid
		}
		return processResource(target, sandbox.ActionInspect)
	}
	return sandbox.Resource{}, sandbox.ActionInspect
}

// SystemInfo is the GetSystemInfo syscall's read.
type SystemInfo struct {
	ProcessCount  int
	TotalMemory   types.Size
	UsedMemory    types.Size
	SchedulerPolicy string
}

// SignalState bundles pending+blocked for GetSignalState.
type SignalState struct {
	Pending []signal.Num
	Blocked []signal.Num
}

func (d *Dispatcher) execSystem(callerPid types.Pid, sc Syscall) SyscallResult {
	switch s := sc.(type) {
	case GetSystemInfo:
		info := SystemInfo{ProcessCount: d.procs.Len()}
		if d.mem != nil {
			info.TotalMemory = d.mem.TotalMemory()
			info.UsedMemory = d.mem.UsedMemory()
		}
		if d.sched != nil {
			info.SchedulerPolicy = d.sched.Policy().String()
		}
		return Success(info)
	case GetCurrentTime:
		return Success(time.Now())
	case GetEnvironmentVar:
		v, ok := d.env.Get(s.Key)
		if !ok {
			return Failure(types.NotFound("syscall: environment variable %q not set", s.Key))
		}
		return Success(v)
	case SetEnvironmentVar:
		d.env.Set(s.Key, s.Value)
		return Success(nil)
	case Sleep:
		time.Sleep(time.Duration(s.DurationMs) * time.Millisecond)
		return Success(nil)
	case GetUptime:
		return Success(time.Since(d.startedAt))
	case GetMemoryStats:
		if d.mem == nil {
			return Failure(noMemory)
		}
		return Success(struct {
			Total, Used types.Size
		}{d.mem.TotalMemory(), d.mem.UsedMemory()})
	case GetProcessMemoryStats:
		if d.mem == nil {
			return Failure(noMemory)
		}
		return Success(d.mem.Stats(s.TargetPid))
	case TriggerGC:
		runtime.GC()
		return Success(nil)
	case SendSignal:
		if d.signals == nil {
			return Failure(noSignals)
		}
		if err := d.signals.Send(s.TargetPid, s.Signal); err != nil {
			return Failure(err)
		}
		return Success(nil)
	case RegisterSignalHandler:
		if d.signals == nil {
			return Failure(noSignals)
		}
		err := d.signals.SetHandler(callerPid, s.Signal, signal.Disposition{Action: signal.ActionHandler, HandlerID: s.HandlerID})
		if err != nil {
			return Failure(err)
		}
		return Success(nil)
	case BlockSignal:
		if d.signals == nil {
			return Failure(noSignals)
		}
		if err := d.signals.Block(callerPid, s.Signal); err != nil {
			return Failure(err)
		}
		return Success(nil)
	case UnblockSignal:
		if d.signals == nil {
			return Failure(noSignals)
		}
		d.signals.Unblock(callerPid, s.Signal)
		return Success(nil)
	case GetPendingSignals:
		if d.signals == nil {
			return Failure(noSignals)
		}
		return Success(d.signals.Pending(callerPid))
	case GetSignalStats:
		if d.signals == nil {
			return Failure(noSignals)
		}
		return Success(d.signals.Stats())
	case WaitForSignal:
		return d.execWaitForSignal(callerPid, s)
	case GetSignalState:
		if d.signals == nil {
			return Failure(noSignals)
		}
		target := callerPid
		if s.TargetPid != nil {
			target = *s.TargetPid
		}
		return Success(SignalState{Pending: d.signals.Pending(target), Blocked: d.signals.Blocked(target)})
	}
	return Failure(unknownSyscall)
}

func (d *Dispatcher) execWaitForSignal(pid types.Pid, s WaitForSignal) SyscallResult {
	if d.signals == nil {
		return Failure(noSignals)
	}
	wanted := make(map[signal.Num]bool, len(s.Signals))
	for _, n := range s.Signals {
		wanted[n] = true
	}

	ctx := context.Background()
	if s.TimeoutMs != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*s.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, n := range d.signals.Pending(pid) {
			if wanted[n] {
				return Success(n)
			}
		}
		select {
		case <-ctx.Done():
			return Failure(types.WouldBlock("syscall: wait_for_signal timed out"))
		case <-ticker.C:
		}
	}
}

var (
	noMemory  = types.OperationFailed(errNoMemory{})
	noSignals = types.OperationFailed(errNoSignals{})
)

type errNoMemory struct{}

func (errNoMemory) Error() string { return "syscall: no memory manager wired into dispatcher" }

type errNoSignals struct{}

func (errNoSignals) Error() string { return "syscall: no signal table wired into dispatcher" }

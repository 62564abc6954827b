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

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nyxkernel/kernel/pkg/kernel/ipc"
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/process"
	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/scheduler"
	"github.com/nyxkernel/kernel/pkg/kernel/signal"
	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
	"github.com/nyxkernel/kernel/pkg/kernel/vfs"
)

// SlowThreshold is the default duration above which a completed
// syscall also emits SyscallSlow alongside SyscallExit.
const SlowThreshold = 50 * time.Millisecond

// RateLimit is the default per-Pid syscall rate: bursty interactive use
// is common (a process opening several files in a row), so the burst
// bucket is generous relative to the steady-state rate.
const (
	RateLimitPerSecond = 2000
	RateLimitBurst     = 500
)

// Dispatcher is the single entry point every syscall goes through:
// permission check, component invocation, event emission. One
// Dispatcher is shared by every process in the kernel; per-Pid state
// (cwd, environment, rate limiter) lives in striped maps keyed by Pid.
type Dispatcher struct {
	log *logrus.Entry

	vfs     vfs.FileSystem
	procs   *process.Manager
	sched   *scheduler.Scheduler
	ipc     *ipc.Facade
	mem     *memory.Manager
	sandbox *sandbox.Manager
	signals *signal.Table
	sink    kevent.Sink

	sockets *socketRegistry

	cwds     *stripedmap.StripedMap[types.Pid, string]
	env      *stripedmap.StripedMap[string, string]
	limiters *stripedmap.StripedMap[types.Pid, *rate.Limiter]

	startedAt    time.Time
	slowThreshold time.Duration
}

// Deps are every component the dispatcher routes syscalls to. Sched,
// Mem and Signals may be nil: the matching calls return a descriptive
// error (noScheduler, noMemory, noSignals). A nil Sandbox skips
// permission checks and a nil Sink discards events. VFS, Procs and IPC
// are used without a nil check and must be set for the groups that use
// them.
type Deps struct {
	VFS     vfs.FileSystem
	Procs   *process.Manager
	Sched   *scheduler.Scheduler
	IPC     *ipc.Facade
	Mem     *memory.Manager
	Sandbox *sandbox.Manager
	Signals *signal.Table
	Sink    kevent.Sink
}

// New builds a Dispatcher. startedAt is recorded at construction time
// for GetUptime; SlowThreshold governs the SyscallSlow event.
func New(deps Deps, log *logrus.Entry) *Dispatcher {
	if deps.Sink == nil {
		deps.Sink = kevent.NopSink{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		log:           log.WithField("component", "syscall"),
		vfs:           deps.VFS,
		procs:         deps.Procs,
		sched:         deps.Sched,
		ipc:           deps.IPC,
		mem:           deps.Mem,
		sandbox:       deps.Sandbox,
		signals:       deps.Signals,
		sink:          deps.Sink,
		sockets:       newSocketRegistry(),
		cwds:          stripedmap.New[types.Pid, string](),
		env:           stripedmap.New[string, string](),
		limiters:      stripedmap.New[types.Pid, *rate.Limiter](),
		startedAt:     time.Now(),
		slowThreshold: SlowThreshold,
	}
}

func (d *Dispatcher) cwd(pid types.Pid) string {
	if p, ok := d.cwds.Get(pid); ok {
		return p
	}
	return "/"
}

func (d *Dispatcher) setCwd(pid types.Pid, p string) { d.cwds.Set(pid, p) }

func (d *Dispatcher) limiterFor(pid types.Pid) *rate.Limiter {
	if l, ok := d.limiters.Get(pid); ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(RateLimitPerSecond), RateLimitBurst)
	d.limiters.Set(pid, l)
	return l
}

// Dispatch is the synchronous path spec.md §4.8 describes: resolve the
// syscall's fixed (resource, action) row, check it against the caller's
// sandbox, deny with a reason on rejection, otherwise invoke the
// matching group's exec method and report the outcome as an event. Also
// applies RateLimit per Pid and delivers any signal pending for the
// caller once the call completes (the dispatcher boundary spec.md
// §4.10 names).
func (d *Dispatcher) Dispatch(pid types.Pid, sc Syscall) SyscallResult {
	if !d.limiterFor(pid).Allow() {
		return Denied("rate limit exceeded")
	}

	start := time.Now()
	resource, action := d.permissionFor(pid, sc)

	if d.sandbox != nil {
		resp := d.sandbox.CheckAndAudit(sandbox.PermissionRequest{
			Pid:       pid,
			Resource:  resource,
			Action:    action,
			Timestamp: start,
		})
		if !resp.Allowed {
			return Denied(resp.Reason)
		}
	}

	result := d.exec(pid, sc)
	d.emitExit(pid, sc, start, result)
	d.deliverPendingSignals(pid)
	return result
}

func (d *Dispatcher) permissionFor(pid types.Pid, sc Syscall) (sandbox.Resource, sandbox.Action) {
	switch sc.(type) {
	case ReadFile, WriteFile, CreateFile, DeleteFile, ListDirectory, FileExists, FileStat,
		MoveFile, CopyFile, CreateDirectory, RemoveDirectory, GetWorkingDirectory,
		SetWorkingDirectory, TruncateFile, Open, Close, Dup, Dup2, Lseek, Fcntl:
		return fsPermission(sc)
	case SpawnProcess, KillProcess, GetProcessInfo, GetProcessList, SetProcessPriority,
		GetProcessState, GetProcessStats, WaitProcess:
		return processPermission(pid, sc)
	case PipeCreate, PipeWrite, PipeRead, PipeCloseCall, PipeDestroy, PipeStats,
		ShmCreate, ShmAttach, ShmDetach, ShmWrite, ShmRead, ShmDestroy, ShmStats,
		Mmap, MmapRead, MmapWrite, Msync, Munmap, MmapStats,
		QueueCreate, QueueSend, QueueReceive, QueueSubscribe, QueueUnsubscribe,
		QueueCloseCall, QueueDestroy, QueueStats:
		return ipcPermission(pid, sc)
	case Socket, Bind, Listen, Accept, Connect, Send, Recv, SendTo, RecvFrom,
		CloseSocket, SetSockOpt, GetSockOpt, NetworkRequest:
		return networkPermission(sc)
	case ScheduleNext, YieldProcess, GetCurrentScheduled, GetSchedulerStats,
		SetSchedulingPolicy, GetSchedulingPolicy, SetTimeQuantum, GetTimeQuantum,
		GetProcessSchedulerStats, GetAllProcessSchedulerStats, BoostPriority, LowerPriority:
		return schedulerPermission(pid, sc)
	default:
		return systemPermission(pid, sc)
	}
}

func (d *Dispatcher) exec(pid types.Pid, sc Syscall) SyscallResult {
	switch sc.(type) {
	case ReadFile, WriteFile, CreateFile, DeleteFile, ListDirectory, FileExists, FileStat,
		MoveFile, CopyFile, CreateDirectory, RemoveDirectory, GetWorkingDirectory,
		SetWorkingDirectory, TruncateFile, Open, Close, Dup, Dup2, Lseek, Fcntl:
		return d.execFS(pid, sc)
	case SpawnProcess, KillProcess, GetProcessInfo, GetProcessList, SetProcessPriority,
		GetProcessState, GetProcessStats, WaitProcess:
		return d.execProcess(pid, sc)
	case PipeCreate, PipeWrite, PipeRead, PipeCloseCall, PipeDestroy, PipeStats,
		ShmCreate, ShmAttach, ShmDetach, ShmWrite, ShmRead, ShmDestroy, ShmStats,
		Mmap, MmapRead, MmapWrite, Msync, Munmap, MmapStats,
		QueueCreate, QueueSend, QueueReceive, QueueSubscribe, QueueUnsubscribe,
		QueueCloseCall, QueueDestroy, QueueStats:
		return d.execIPC(pid, sc)
	case Socket, Bind, Listen, Accept, Connect, Send, Recv, SendTo, RecvFrom,
		CloseSocket, SetSockOpt, GetSockOpt, NetworkRequest:
		return d.execNetwork(pid, sc)
	case ScheduleNext, YieldProcess, GetCurrentScheduled, GetSchedulerStats,
		SetSchedulingPolicy, GetSchedulingPolicy, SetTimeQuantum, GetTimeQuantum,
		GetProcessSchedulerStats, GetAllProcessSchedulerStats, BoostPriority, LowerPriority:
		return d.execScheduler(pid, sc)
	default:
		return d.execSystem(pid, sc)
	}
}

func (d *Dispatcher) emitExit(pid types.Pid, sc Syscall, start time.Time, result SyscallResult) {
	elapsed := time.Since(start)
	d.sink.Publish(kevent.New(kevent.Info, kevent.CategorySyscall, &pid, kevent.SyscallExit{
		Pid:        pid,
		Syscall:    sc.Name(),
		DurationUs: elapsed.Microseconds(),
		Outcome:    result.Outcome.String(),
	}))
	if elapsed >= d.slowThreshold {
		d.sink.Publish(kevent.New(kevent.Warn, kevent.CategorySyscall, &pid, kevent.SyscallSlow{
			Pid:         pid,
			Syscall:     sc.Name(),
			DurationUs:  elapsed.Microseconds(),
			ThresholdUs: d.slowThreshold.Microseconds(),
		}))
	}
}

// deliverPendingSignals applies every pending, unblocked signal's
// disposition for pid at this dispatcher boundary, per spec.md §4.10.
// A Terminate disposition kills the process outright; Handler/Ignore/
// Stop/Continue dispositions are left for the process's own runtime to
// observe via GetSignalState — this kernel has no in-process handler
// callback mechanism to invoke directly.
func (d *Dispatcher) deliverPendingSignals(pid types.Pid) {
	if d.signals == nil {
		return
	}
	for _, sig := range d.signals.Deliver(pid) {
		if sig.Disposition.Action == signal.ActionDefault {
			if d.procs != nil {
				_ = d.procs.Terminate(pid)
			}
		}
	}
}

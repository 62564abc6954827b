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

// Package kerneld is the composition root shared by cmd/kerneld (which
// keeps a Kernel running until a signal arrives) and cmd/kernelctl
// (which builds a short-lived Kernel to run one operator action and
// exit, in the absence of any control-socket transport between a
// long-running kerneld and a separate kernelctl process — SPEC_FULL's
// CLI surface names the operator actions but not a wire protocol
// between the two binaries, so each kernelctl invocation boots its own
// instance against the same KernelConfig rather than inventing one).
package kerneld

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/pkg/kernel/cgroupfit"
	"github.com/nyxkernel/kernel/pkg/kernel/config"
	"github.com/nyxkernel/kernel/pkg/kernel/ipc"
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/observability"
	"github.com/nyxkernel/kernel/pkg/kernel/process"
	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/scheduler"
	"github.com/nyxkernel/kernel/pkg/kernel/secprobe"
	ksignal "github.com/nyxkernel/kernel/pkg/kernel/signal"
	ksyscall "github.com/nyxkernel/kernel/pkg/kernel/syscall"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
	"github.com/nyxkernel/kernel/pkg/kernel/vfs"
	"github.com/nyxkernel/kernel/pkg/kernel/vfs/diskfs"
)

// Kernel holds every wired component an operator-facing command reaches
// for and the scheduler loop drives.
type Kernel struct {
	Log        *logrus.Entry
	Stream     *observability.Stream
	Metrics    *observability.Metrics
	Sampler    *observability.Sampler
	Mem        *memory.Manager
	IPC        *ipc.Facade
	Sandbox    *sandbox.Manager
	Signals    *ksignal.Table
	Procs      *process.Manager
	Sched      *scheduler.Scheduler
	Dispatcher *ksyscall.Dispatcher
	Completion *ksyscall.CompletionExecutor
	Cgroups    *cgroupfit.Adapter
	Probe      *secprobe.Probe
}

// Close releases every component that owns a background goroutine or an
// external handle. Safe to call once, after which k must not be reused.
func (k *Kernel) Close() {
	k.Completion.Stop()
	if k.Probe != nil {
		k.Probe.Detach()
	}
	if k.Cgroups != nil {
		k.Cgroups.Close()
	}
}

// RunSchedulerLoop ticks the scheduler once per quantum until ctx is
// canceled. The completion executor's own worker pool runs
// independently; this loop only advances which pid is "current".
func (k *Kernel) RunSchedulerLoop(ctx context.Context, quantum time.Duration) {
	if quantum <= 0 {
		quantum = 10 * time.Millisecond
	}
	ticker := time.NewTicker(quantum)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			k.Sched.Tick(now)
		}
	}
}

// sampledSink gates every published event through the adaptive sampler
// before it reaches the stream, so a busy kernel instance degrades
// sample density under load instead of dropping events opaquely inside
// a full ring.
type sampledSink struct {
	stream  *observability.Stream
	sampler *observability.Sampler
}

func (s *sampledSink) Publish(ev kevent.Event) bool {
	if !s.sampler.ShouldSample(ev.Category) {
		return true
	}
	return s.stream.Publish(ev)
}

// Build wires every subsystem package into one Kernel per cfg.
func Build(cfg *config.KernelConfig, log *logrus.Logger) (*Kernel, error) {
	stream := observability.NewStream(4096)
	sampler := observability.NewSampler()
	sink := &sampledSink{stream: stream, sampler: sampler}
	metrics := observability.NewMetrics(stream)

	mem := memory.New(types.Size(cfg.Memory.TotalBytes), sink, log.WithField("component", "memory"))
	ipcFacade := ipc.NewFacade(mem, sink, log.WithField("component", "ipc"))
	sandboxMgr := sandbox.New(sink, log.WithField("component", "sandbox"))
	signals := ksignal.NewTable()
	executor := process.NewExecutorWithLogger(log.WithField("component", "executor"))

	var cgroups *cgroupfit.Adapter
	if cfg.Cgroups.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		adapter, err := cgroupfit.Connect(ctx)
		if err != nil {
			log.WithError(err).Warn("cgroup adapter unavailable, falling back to simulated accounting")
		}
		cgroups = adapter
	}

	procs := process.New(process.Deps{
		Memory:   mem,
		Sandbox:  sandboxMgr,
		IPC:      ipcFacade,
		Signals:  signals,
		Executor: executor,
		Cgroups:  cgroups,
		Sink:     sink,
		Log:      log.WithField("component", "process"),
	})

	policy, quantum := schedulerPolicy(cfg), time.Duration(cfg.Scheduler.QuantumMs)*time.Millisecond
	sched := scheduler.New(policy, quantum)

	var fs vfs.FileSystem
	if cfg.VFS.Backend == "disk" {
		disk, err := diskfs.New(cfg.VFS.DiskRoot)
		if err != nil {
			return nil, err
		}
		fs = disk
	} else {
		fs = vfs.NewMemFS()
	}
	observableFS := vfs.NewObservable(fs, sink)

	dispatcher := ksyscall.New(ksyscall.Deps{
		VFS:     observableFS,
		Procs:   procs,
		Sched:   sched,
		IPC:     ipcFacade,
		Mem:     mem,
		Sandbox: sandboxMgr,
		Signals: signals,
		Sink:    sink,
	}, log.WithField("component", "dispatcher"))
	completion := ksyscall.NewCompletionExecutor(dispatcher)

	var probe *secprobe.Probe
	if cfg.Secprobe.Enabled {
		decide := func(pid types.Pid, sc string) bool {
			switch sc {
			case "openat":
				return sandboxMgr.CheckPermission(pid, types.CapReadFile) ||
					sandboxMgr.CheckPermission(pid, types.CapWriteFile)
			case "connect":
				return sandboxMgr.CheckPermission(pid, types.CapNetworkAccess)
			default:
				return true
			}
		}
		probe = secprobe.New(decide, sink, log.WithField("component", "secprobe"))
		if err := probe.Attach(context.Background()); err != nil {
			log.WithError(err).Warn("security probe unavailable, continuing without kernel cross-check")
		}
	}

	return &Kernel{
		Log:        log.WithField("component", "kerneld"),
		Stream:     stream,
		Metrics:    metrics,
		Sampler:    sampler,
		Mem:        mem,
		IPC:        ipcFacade,
		Sandbox:    sandboxMgr,
		Signals:    signals,
		Procs:      procs,
		Sched:      sched,
		Dispatcher: dispatcher,
		Completion: completion,
		Cgroups:    cgroups,
		Probe:      probe,
	}, nil
}

func schedulerPolicy(cfg *config.KernelConfig) scheduler.Policy {
	switch cfg.Scheduler.Policy {
	case "round_robin":
		return scheduler.PolicyRoundRobin
	case "priority":
		return scheduler.PolicyPriority
	default:
		return scheduler.PolicyFair
	}
}

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

package process

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/pkg/kernel/cgroupfit"
	"github.com/nyxkernel/kernel/pkg/kernel/fdtable"
	"github.com/nyxkernel/kernel/pkg/kernel/ipc"
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/signal"
	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// defaultFDTableCapacity is the slot count fdTableHook gives every
// process's fd table.
const defaultFDTableCapacity = 256

// Manager is the process manager: process table, shared pid counter,
// optional memory/sandbox/IPC/executor wiring, lifecycle hooks and the
// resource-reclaim adapter chain run on termination.
type Manager struct {
	log  *logrus.Entry
	sink kevent.Sink

	counter *counter
	table   *table

	hooks    []Hook
	adapters []ResourceAdapter

	sandbox  *sandbox.Manager
	executor *Executor
	cgroups  *cgroupfit.Adapter

	fdTables *stripedmap.StripedMap[types.Pid, *fdtable.EpochFdTable[any]]
}

// Deps bundles the optional subsystems a Manager wires lifecycle hooks
// and resource adapters against. Every field may be nil; a Manager with
// every Deps field nil still allocates pids and runs the table/hook
// bookkeeping, just with no hooks or adapters registered.
type Deps struct {
	Memory   *memory.Manager
	Sandbox  *sandbox.Manager
	IPC      *ipc.Facade
	Signals  *signal.Table
	Executor *Executor
	Cgroups  *cgroupfit.Adapter
	Sink     kevent.Sink
	Log      *logrus.Entry
}

// New builds a Manager wired against deps. Missing optional deps simply
// skip the hooks/adapters that would have used them.
func New(deps Deps) *Manager {
	if deps.Sink == nil {
		deps.Sink = kevent.NopSink{}
	}
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	m := &Manager{
		log:      deps.Log.WithField("component", "process"),
		sink:     deps.Sink,
		counter:  newCounter(),
		table:    newTable(),
		sandbox:  deps.Sandbox,
		executor: deps.Executor,
		cgroups:  deps.Cgroups,
		fdTables: stripedmap.New[types.Pid, *fdtable.EpochFdTable[any]](),
	}

	m.hooks = append(m.hooks, fdTableHook{tables: m.fdTables, defaultCap: defaultFDTableCapacity})
	if deps.Signals != nil {
		m.hooks = append(m.hooks, signalHook{signals: deps.Signals})
		m.adapters = append(m.adapters, signalsAdapter{signals: deps.Signals})
	}
	if deps.IPC != nil {
		m.hooks = append(m.hooks, zerocopyHook{rings: deps.IPC.ZeroCopy})
		m.adapters = append(m.adapters, zerocopyAdapter{rings: deps.IPC.ZeroCopy})
		m.adapters = append(m.adapters, ipcAdapter{ipc: deps.IPC})
	}
	if deps.Memory != nil {
		m.adapters = append(m.adapters, memoryAdapter{mem: deps.Memory})
	}
	if deps.Sandbox != nil {
		m.adapters = append(m.adapters, permissionsAdapter{sandbox: deps.Sandbox})
	}
	m.adapters = append(m.adapters, fdAdapter{tables: m.fdTables})

	return m
}

// Clone returns a Manager sharing this one's pid counter and process
// table — spec.md's correctness property that cloning a manager must
// not reset or duplicate pid space. Hooks/adapters/deps are the same
// slice/pointers, so a clone behaves identically; it exists so callers
// that want a per-goroutine Manager value don't have to share one
// pointer under an external lock.
func (m *Manager) Clone() *Manager {
	cp := *m
	return &cp
}

// Get returns a defensive copy of pid's process record.
func (m *Manager) Get(pid types.Pid) (*types.Process, bool) {
	p, ok := m.table.get(pid)
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Len returns the number of live (non-terminated, still-tracked)
// processes.
func (m *Manager) Len() int { return m.table.len() }

// CreateOptions configures Create.
type CreateOptions struct {
	Name     string
	Priority types.Priority
	Parent   *types.Pid
	Sandbox  sandbox.SandboxConfig
	Exec     *ExecConfig // nil: logical process only, no OS child
}

// Create runs the full Creation sequence from spec.md §4.6: allocate
// pid, insert Creating, run lifecycle hooks under Initializing (rolling
// back in reverse on any failure), transition Ready, optionally spawn
// an OS process, and emit ProcessCreated.
func (m *Manager) Create(opts CreateOptions) (types.Pid, error) {
	pid := m.counter.allocate()

	proc := &types.Process{
		Pid:       pid,
		Name:      opts.Name,
		State:     types.StateCreating,
		Priority:  opts.Priority.Clamp(),
		ParentPid: opts.Parent,
		CreatedAt: time.Now(),
	}
	m.table.set(proc)

	if m.sandbox != nil {
		m.sandbox.Create(pid, opts.Sandbox)
	}

	proc.State = types.StateInitializing
	m.table.set(proc)

	ran := make([]Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		if err := h.Init(pid); err != nil {
			for i := len(ran) - 1; i >= 0; i-- {
				ran[i].Rollback(pid)
			}
			m.table.delete(pid)
			if m.sandbox != nil {
				m.sandbox.Remove(pid)
			}
			return 0, err
		}
		ran = append(ran, h)
	}

	proc.State = types.StateReady
	m.table.set(proc)

	if opts.Exec != nil && m.executor != nil {
		execCfg := *opts.Exec
		execCfg.Capabilities = opts.Sandbox.Capabilities
		execCfg.Limits = opts.Sandbox.Limits
		osPid, err := m.executor.Spawn(pid, execCfg)
		if err != nil {
			for i := len(ran) - 1; i >= 0; i-- {
				ran[i].Rollback(pid)
			}
			m.table.delete(pid)
			if m.sandbox != nil {
				m.sandbox.Remove(pid)
			}
			return 0, err
		}
		proc.OSPid = &osPid
		m.table.set(proc)

		if m.cgroups != nil {
			if err := m.cgroups.Apply(context.Background(), pid, osPid, opts.Sandbox.Limits); err != nil {
				m.log.WithError(err).WithField("pid", pid).Warn("cgroup limits not applied")
			}
		}
	}

	m.sink.Publish(kevent.New(kevent.Info, kevent.CategoryProcess, &pid, kevent.ProcessCreated{
		Pid: pid, Name: opts.Name, Parent: opts.Parent,
	}))
	return pid, nil
}

// Transition moves pid to next if that's a legal single step, per
// types.ProcessState.CanTransition.
func (m *Manager) Transition(pid types.Pid, next types.ProcessState) error {
	proc, ok := m.table.get(pid)
	if !ok {
		return types.NotFound("process: pid %s not found", pid)
	}
	if !proc.State.CanTransition(next) {
		return types.InvalidArgument("process: illegal transition %s -> %s for pid %s", proc.State, next, pid)
	}
	proc.State = next
	return nil
}

// Terminate runs spec.md §4.6's termination sequence: decrement the
// parent's sandbox spawn count, run the resource orchestrator (emitting
// one ResourceCleanup event per adapter that reclaimed something),
// remove the sandbox entry, remove the process entry, and emit
// ProcessTerminated.
func (m *Manager) Terminate(pid types.Pid) error {
	proc, ok := m.table.get(pid)
	if !ok {
		return types.NotFound("process: pid %s not found", pid)
	}

	if m.sandbox != nil && proc.ParentPid != nil {
		m.sandbox.RecordTermination(*proc.ParentPid)
	}

	reclaimed := runOrchestrator(m.adapters, pid)
	for resource, n := range reclaimed {
		if n == 0 {
			continue
		}
		m.sink.Publish(kevent.New(kevent.Info, kevent.CategoryResource, &pid, kevent.ResourceCleanup{
			Pid: pid, Resource: resource, BytesReclaimed: n,
		}))
	}

	if m.executor != nil {
		m.executor.Kill(pid)
		m.executor.Cleanup(pid)
	}
	if m.cgroups != nil {
		m.cgroups.Release(context.Background(), pid)
	}

	if m.sandbox != nil {
		m.sandbox.Remove(pid)
	}
	m.table.delete(pid)

	m.sink.Publish(kevent.New(kevent.Info, kevent.CategoryProcess, &pid, kevent.ProcessTerminated{Pid: pid}))
	return nil
}

// FDTable returns pid's file descriptor table, if the fd_table_reset
// hook has run for it.
func (m *Manager) FDTable(pid types.Pid) (*fdtable.EpochFdTable[any], bool) {
	return m.fdTables.Get(pid)
}

// List returns a defensive-copy snapshot of every tracked process, used
// by the GetProcessList syscall.
func (m *Manager) List() []*types.Process {
	out := make([]*types.Process, 0, m.table.len())
	m.table.rangeAll(func(p *types.Process) bool {
		out = append(out, p.Clone())
		return true
	})
	return out
}

// SetPriority updates pid's scheduling priority in place, clamped to
// the valid range.
func (m *Manager) SetPriority(pid types.Pid, priority types.Priority) error {
	proc, ok := m.table.get(pid)
	if !ok {
		return types.NotFound("process: pid %s not found", pid)
	}
	proc.Priority = priority.Clamp()
	return nil
}

// WaitTerminated blocks until pid leaves the process table or ctx is
// done. Polling rather than a condition variable: the table has no
// per-pid wait-list today, and WaitProcess is a rarely-hot syscall.
func (m *Manager) WaitTerminated(ctx context.Context, pid types.Pid) error {
	if _, ok := m.table.get(pid); !ok {
		return nil
	}
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, ok := m.table.get(pid); !ok {
				return nil
			}
		}
	}
}

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
	"sync"
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/ipc"
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/signal"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

type recordingSink struct {
	mu     sync.Mutex
	events []kevent.Event
}

func (s *recordingSink) Publish(e kevent.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newTestManager(t *testing.T) (*Manager, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	mem := memory.New(64<<20, sink, nil)
	sb := sandbox.New(sink, nil)
	ipcFacade := ipc.NewFacade(mem, sink, nil)
	signals := signal.NewTable()

	m := New(Deps{
		Memory:  mem,
		Sandbox: sb,
		IPC:     ipcFacade,
		Signals: signals,
		Sink:    sink,
	})
	return m, sink
}

func TestCreateHappyPathReachesReady(t *testing.T) {
	m, _ := newTestManager(t)

	pid, err := m.Create(CreateOptions{Name: "init", Priority: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	proc, ok := m.Get(pid)
	if !ok {
		t.Fatal("expected process to be tracked")
	}
	if proc.State != types.StateReady {
		t.Fatalf("expected StateReady, got %v", proc.State)
	}
	if _, ok := m.FDTable(pid); !ok {
		t.Fatal("expected fd table hook to have run")
	}
}

func TestCreatePidsAreUniqueAcrossClones(t *testing.T) {
	m, _ := newTestManager(t)
	const clones = 8
	const perClone = 20

	seen := make(chan types.Pid, clones*perClone)
	var wg sync.WaitGroup
	for i := 0; i < clones; i++ {
		wg.Add(1)
		clone := m.Clone()
		go func() {
			defer wg.Done()
			for j := 0; j < perClone; j++ {
				pid, err := clone.Create(CreateOptions{Name: "worker"})
				if err != nil {
					t.Errorf("Create: %v", err)
					return
				}
				seen <- pid
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[types.Pid]bool)
	for pid := range seen {
		if unique[pid] {
			t.Fatalf("duplicate pid %s across clones", pid)
		}
		unique[pid] = true
	}
	if len(unique) != clones*perClone {
		t.Fatalf("expected %d distinct pids, got %d", clones*perClone, len(unique))
	}
}

func TestTerminateRunsOrchestratorAndRemovesProcess(t *testing.T) {
	m, sink := newTestManager(t)

	pid, err := m.Create(CreateOptions{Name: "worker"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := sink.count()

	if err := m.Terminate(pid); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if _, ok := m.Get(pid); ok {
		t.Fatal("expected process to be removed from the table")
	}
	if _, ok := m.FDTable(pid); ok {
		t.Fatal("expected fd table to be removed on termination")
	}
	if sink.count() <= before {
		t.Fatal("expected Terminate to publish at least the ProcessTerminated event")
	}
}

func TestTerminateUnknownPidIsNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.Terminate(types.Pid(999999))
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

type failingHook struct{ rolledBack *bool }

func (h failingHook) Name() string { return "failing" }
func (h failingHook) Init(types.Pid) error {
	return types.InvalidArgument("process: injected hook failure")
}
func (h failingHook) Rollback(types.Pid) { *h.rolledBack = true }

func TestCreateRollsBackPriorHooksOnFailure(t *testing.T) {
	m, _ := newTestManager(t)
	rolledBack := false
	m.hooks = append([]Hook{}, m.hooks[0]) // keep fdTableHook so rollback is observable
	m.hooks = append(m.hooks, failingHook{rolledBack: &rolledBack})

	before := m.Len()
	_, err := m.Create(CreateOptions{Name: "doomed"})
	if err == nil {
		t.Fatal("expected Create to fail")
	}
	if rolledBack {
		t.Fatal("failingHook.Rollback must not run: only hooks whose Init succeeded are rolled back")
	}
	if m.Len() != before {
		t.Fatalf("expected process entry to be removed after failed creation, table grew from %d to %d", before, m.Len())
	}
}

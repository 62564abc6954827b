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

// Package process implements the kernel's process manager: pid
// allocation, the process table, lifecycle hooks, the resource
// orchestrator that runs on termination, and an executor that can
// optionally back a logical process with a real OS child.
package process

import (
	"github.com/nyxkernel/kernel/pkg/kernel/klock"
	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// counter is the single shared pid allocator. Cloning a Manager must
// share this, never reset or duplicate it — spec.md's correctness
// property that N concurrent clones creating K processes each yield
// exactly N·K distinct pids.
type counter struct {
	next *klock.AdaptiveLock[uint64]
}

func newCounter() *counter {
	return &counter{next: klock.NewAdaptiveLock[uint64](0)}
}

// allocate returns the next never-reused Pid.
func (c *counter) allocate() types.Pid {
	prev := c.next.FetchAdd(1, klock.SeqCst)
	return types.Pid(prev + 1)
}

// table is a concurrent Pid -> *types.Process map.
type table struct {
	m *stripedmap.StripedMap[types.Pid, *types.Process]
}

func newTable() *table {
	return &table{m: stripedmap.New[types.Pid, *types.Process]()}
}

func (t *table) get(pid types.Pid) (*types.Process, bool) { return t.m.Get(pid) }
func (t *table) set(p *types.Process)                      { t.m.Set(p.Pid, p) }
func (t *table) delete(pid types.Pid)                       { t.m.Delete(pid) }
func (t *table) len() int                                    { return t.m.Len() }
func (t *table) rangeAll(f func(*types.Process) bool) {
	t.m.Range(func(_ types.Pid, p *types.Process) bool { return f(p) })
}

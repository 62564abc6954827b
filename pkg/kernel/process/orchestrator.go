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
	"github.com/nyxkernel/kernel/pkg/kernel/fdtable"
	"github.com/nyxkernel/kernel/pkg/kernel/ipc"
	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/signal"
	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// ResourceAdapter reclaims one family of per-Pid resources on
// termination. Cleanup returns the count (bytes for byte-denominated
// resources, entries otherwise) it reclaimed.
type ResourceAdapter interface {
	Name() string
	Cleanup(pid types.Pid) (uint64, error)
}

// memoryAdapter reclaims a terminated process's simulated allocations.
type memoryAdapter struct{ mem *memory.Manager }

func (a memoryAdapter) Name() string { return "memory" }
func (a memoryAdapter) Cleanup(pid types.Pid) (uint64, error) {
	return a.mem.FreeProcessMemory(pid), nil
}

// ipcAdapter reclaims a terminated process's message-queue and pipe
// bytes via the IPC facade's own fan-out.
type ipcAdapter struct{ ipc *ipc.Facade }

func (a ipcAdapter) Name() string { return "ipc" }
func (a ipcAdapter) Cleanup(pid types.Pid) (uint64, error) {
	return a.ipc.ClearProcessResources(pid), nil
}

// fdAdapter closes out a terminated process's file descriptor table,
// reporting the number of still-open descriptors it held.
type fdAdapter struct {
	tables *stripedmap.StripedMap[types.Pid, *fdtable.EpochFdTable[any]]
}

func (a fdAdapter) Name() string { return "fd" }
func (a fdAdapter) Cleanup(pid types.Pid) (uint64, error) {
	t, ok := a.tables.Get(pid)
	if !ok {
		return 0, nil
	}
	n := uint64(t.Len())
	t.Clear()
	a.tables.Delete(pid)
	return n, nil
}

// zerocopyAdapter releases every buffer a terminated process reserved
// but never released itself.
type zerocopyAdapter struct{ rings *ipc.ZeroCopyRings }

func (a zerocopyAdapter) Name() string { return "zerocopy" }
func (a zerocopyAdapter) Cleanup(pid types.Pid) (uint64, error) {
	return uint64(a.rings.ReleaseAll(pid)), nil
}

// permissionsAdapter invalidates a terminated process's cached
// permission decisions (the sandbox config/spawn-counter entry itself
// is removed separately, as Terminate's own step 3, per spec.md).
type permissionsAdapter struct{ sandbox *sandbox.Manager }

func (a permissionsAdapter) Name() string { return "permissions" }
func (a permissionsAdapter) Cleanup(pid types.Pid) (uint64, error) {
	return uint64(a.sandbox.InvalidateCache(pid)), nil
}

// signalsAdapter discards a terminated process's signal state.
type signalsAdapter struct{ signals *signal.Table }

func (a signalsAdapter) Name() string { return "signals" }
func (a signalsAdapter) Cleanup(pid types.Pid) (uint64, error) {
	a.signals.Remove(pid)
	return 0, nil
}

// runOrchestrator invokes every registered adapter for pid, returning
// each adapter's reclaimed count keyed by adapter name (adapters that
// return an error are left out) so Terminate
// can emit one ResourceCleanup event per adapter, matching spec.md's
// "for each registered resource adapter ... invoke cleanup ... each
// adapter returns a byte/count reclaimed".
func runOrchestrator(adapters []ResourceAdapter, pid types.Pid) map[string]uint64 {
	out := make(map[string]uint64, len(adapters))
	for _, a := range adapters {
		n, err := a.Cleanup(pid)
		if err != nil {
			continue
		}
		out[a.Name()] = n
	}
	return out
}

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

// Package cgroupfit is the process manager's best-effort cgroup
// adapter: when a systemd bus is reachable it applies a process's
// memory and CPU-time limits to its real OS process via a transient
// systemd scope unit; otherwise it reports ErrCgroupUnavailable and the
// caller falls back to simulated-only accounting. Grounded on the
// go-systemd/v22/dbus StartTransientUnit pattern used by container
// runtimes for the same purpose.
package cgroupfit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// ErrCgroupUnavailable is returned by Apply when no systemd bus could be
// reached. Never a fatal condition: callers log and continue.
var ErrCgroupUnavailable = errors.New("cgroupfit: no systemd bus reachable")

// Adapter applies ResourceLimits to a real OS process as a transient
// systemd scope, best-effort.
type Adapter struct {
	conn *dbus.Conn
}

// Connect dials the systemd user or system bus. The returned Adapter's
// Apply always returns ErrCgroupUnavailable if this failed to produce a
// usable connection — callers are expected to call Connect once at
// startup and tolerate a nil-conn Adapter for the rest of the process's
// life.
func Connect(ctx context.Context) (*Adapter, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return &Adapter{}, fmt.Errorf("%w: %s", ErrCgroupUnavailable, err)
	}
	return &Adapter{conn: conn}, nil
}

// Close releases the underlying bus connection, if any.
func (a *Adapter) Close() {
	if a.conn != nil {
		a.conn.Close()
	}
}

// unitName derives a deterministic, collision-free transient unit name
// for a kernel-managed Pid.
func unitName(pid types.Pid) string {
	return fmt.Sprintf("nyxkernel-%d.scope", uint32(pid))
}

// Apply creates (or replaces) a transient scope unit wrapping osPid with
// MemoryMax/CPUQuota properties derived from limits. Returns
// ErrCgroupUnavailable without touching the real process when no bus
// connection exists.
func (a *Adapter) Apply(ctx context.Context, pid types.Pid, osPid int, limits types.ResourceLimits) error {
	if a.conn == nil {
		return ErrCgroupUnavailable
	}

	props := []dbus.Property{
		dbus.PropDescription("nyxkernel managed process " + unitName(pid)),
		dbus.PropPids(uint32(osPid)),
		{Name: "MemoryAccounting", Value: godbus.MakeVariant(true)},
		{Name: "CPUAccounting", Value: godbus.MakeVariant(true)},
	}
	if limits.MaxMemoryBytes > 0 {
		props = append(props, dbus.Property{Name: "MemoryMax", Value: godbus.MakeVariant(limits.MaxMemoryBytes)})
	}
	if limits.MaxCPUTimeMs > 0 {
		// CPUQuotaPerSecUSec expresses an allowed fraction of one CPU
		// second; a wall-clock time budget isn't directly the same
		// thing, but mapping it to a quota keeps the adapter's surface
		// a straightforward "treat max_cpu_time_ms as a running cap"
		// approximation rather than a precise scheduler cgroup.
		quota := time.Duration(limits.MaxCPUTimeMs) * time.Millisecond
		props = append(props, dbus.Property{Name: "CPUQuotaPerSecUSec", Value: godbus.MakeVariant(uint64(quota.Microseconds()))})
	}

	ch := make(chan string, 1)
	if _, err := a.conn.StartTransientUnitContext(ctx, unitName(pid), "replace", props, ch); err != nil {
		return fmt.Errorf("cgroupfit: StartTransientUnit: %w", err)
	}
	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Release stops the transient scope created for pid, if any. Best
// effort: errors are swallowed since the scope is torn down anyway once
// osPid exits.
func (a *Adapter) Release(ctx context.Context, pid types.Pid) {
	if a.conn == nil {
		return
	}
	ch := make(chan string, 1)
	a.conn.StopUnitContext(ctx, unitName(pid), "replace", ch)
	select {
	case <-ch:
	case <-time.After(time.Second):
	}
}

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

// Package kevent defines the Event value every subsystem publishes and
// the narrow Sink interface they publish through. It exists as its own
// package (rather than living in pkg/kernel/observability) so that
// memory, sandbox, ipc, process, scheduler, vfs and syscall can all
// depend on "the shape of an event" without depending on the stream,
// subscriber and query machinery that consumes them — the fan-out is a
// tagged variant, and the collector only needs a narrow interface.
package kevent

import (
	"time"

	"github.com/google/uuid"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Severity orders events for filtering.
type Severity uint8

const (
	Trace Severity = iota
	Debug
	Info
	Warn
	Error
	Critical
)

// Category groups events by subsystem.
type Category uint8

const (
	CategoryProcess Category = iota
	CategoryMemory
	CategorySyscall
	CategoryNetwork
	CategoryIPC
	CategoryScheduler
	CategorySecurity
	CategoryPerformance
	CategoryResource
)

// Event is the single tagged variant every subsystem publishes.
// Payload is intentionally `any`: each category has its own small
// payload struct (see payloads.go) and consumers type-switch on it.
type Event struct {
	TimestampNanos int64
	Severity       Severity
	Category       Category
	Pid            *types.Pid
	CausalityID    *uuid.UUID
	Payload        any
}

// Sink is the narrow interface a publisher needs: push one event,
// never block, report whether it was accepted. observability.Stream
// implements this; so does any test double.
type Sink interface {
	Publish(Event) bool
}

// NopSink discards every event; used where a caller hasn't wired
// observability and doesn't want a nil check at every call site.
type NopSink struct{}

func (NopSink) Publish(Event) bool { return true }

// start is the process-wide origin event timestamps are measured from.
var start = time.Now()

// now is overridable in tests; production code reads nanoseconds elapsed
// since start from Go's monotonic clock, so wall-clock steps never move
// a timestamp backwards.
var now = func() int64 { return int64(time.Since(start)) }

// New builds an Event stamped with the current monotonic time.
func New(sev Severity, cat Category, pid *types.Pid, payload any) Event {
	return Event{TimestampNanos: now(), Severity: sev, Category: cat, Pid: pid, Payload: payload}
}

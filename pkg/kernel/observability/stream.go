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

// Package observability is the kernel's event stream: a shared bounded
// MPMC ring every subsystem publishes kevent.Event records into, plus
// the subscriber, sampling, and query machinery built on top of it.
// It is split from pkg/kernel/kevent specifically so that package can be
// imported by every producer without pulling this one's dependency on
// prometheus/uuid/rate in along with it.
package observability

import (
	"sync/atomic"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/ring"
)

// DefaultCapacity is the event ring's default power-of-two size.
const DefaultCapacity = 8192

// PressureThreshold is the utilization fraction above which the stream
// reports "under pressure".
const PressureThreshold = 0.75

// Stream is the shared event ring. Publish never blocks: a full ring
// increments Dropped instead of waiting. TryConsume is destructive —
// subscribers are competing consumers over one shared ring, not
// independent broadcast listeners, matching the "pops one event" pull
// model rather than a fan-out log.
type Stream struct {
	ring     *ring.LockFreeRing[kevent.Event]
	produced atomic.Uint64
	consumed atomic.Uint64
	dropped  atomic.Uint64
	active   atomic.Int64
}

// NewStream builds a Stream with the given ring capacity (rounded up to
// the next power of two; DefaultCapacity if capacity <= 0).
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stream{ring: ring.NewLockFreeRing[kevent.Event](capacity)}
}

// Publish implements kevent.Sink. Returns false (and counts a drop) if
// the ring is full.
func (s *Stream) Publish(ev kevent.Event) bool {
	if s.ring.Push(ev) {
		s.produced.Add(1)
		return true
	}
	s.dropped.Add(1)
	return false
}

// TryConsume pops the oldest unconsumed event, if any.
func (s *Stream) TryConsume() (kevent.Event, bool) {
	ev, ok := s.ring.Pop()
	if ok {
		s.consumed.Add(1)
	}
	return ev, ok
}

// Stats is the produced/consumed/dropped counter snapshot spec.md names.
type Stats struct {
	Produced         uint64
	Consumed         uint64
	Dropped          uint64
	ActiveSubscribers int64
	Utilization      float64
	UnderPressure    bool
}

// Snapshot reads the current counters and ring utilization.
func (s *Stream) Snapshot() Stats {
	util := float64(s.ring.Len()) / float64(s.ring.Capacity())
	return Stats{
		Produced:          s.produced.Load(),
		Consumed:          s.consumed.Load(),
		Dropped:           s.dropped.Load(),
		ActiveSubscribers: s.active.Load(),
		Utilization:       util,
		UnderPressure:     util > PressureThreshold,
	}
}

package observability

import (
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// EventFilter narrows what a Subscriber's Pull returns. Every field is
// optional (nil/zero means "don't filter on this").
type EventFilter struct {
	MinSeverity kevent.Severity
	Category    *kevent.Category
	Pid         *types.Pid
	Since       *int64 // TimestampNanos, inclusive
	Until       *int64 // TimestampNanos, exclusive
}

// Matches reports whether ev satisfies every set field of f.
func (f EventFilter) Matches(ev kevent.Event) bool {
	if ev.Severity < f.MinSeverity {
		return false
	}
	if f.Category != nil && ev.Category != *f.Category {
		return false
	}
	if f.Pid != nil && (ev.Pid == nil || *ev.Pid != *f.Pid) {
		return false
	}
	if f.Since != nil && ev.TimestampNanos < *f.Since {
		return false
	}
	if f.Until != nil && ev.TimestampNanos >= *f.Until {
		return false
	}
	return true
}

// Subscriber holds a handle on a shared Stream and a local consumed
// counter; it does not own a private copy of the ring.
type Subscriber struct {
	stream   *Stream
	consumed uint64
	closed   bool
}

// NewSubscriber registers a new active subscriber against stream.
func NewSubscriber(stream *Stream) *Subscriber {
	stream.active.Add(1)
	return &Subscriber{stream: stream}
}

// Pull consumes the next event matching filter, skipping (and counting)
// non-matching events up to maxSkip attempts so one subscriber's narrow
// filter can't starve behind a burst of uninteresting events forever.
func (s *Subscriber) Pull(filter EventFilter) (kevent.Event, bool) {
	const maxSkip = 64
	for i := 0; i < maxSkip; i++ {
		ev, ok := s.stream.TryConsume()
		if !ok {
			return kevent.Event{}, false
		}
		s.consumed++
		if filter.Matches(ev) {
			return ev, true
		}
	}
	return kevent.Event{}, false
}

// PullAny consumes the next event unfiltered.
func (s *Subscriber) PullAny() (kevent.Event, bool) {
	ev, ok := s.stream.TryConsume()
	if ok {
		s.consumed++
	}
	return ev, ok
}

// Consumed returns this subscriber's local consumed count.
func (s *Subscriber) Consumed() uint64 { return s.consumed }

// Close drops the subscriber, decrementing the stream's active count.
// Safe to call at most once; the caller owns serializing against itself.
func (s *Subscriber) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.stream.active.Add(-1)
}

package observability

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
)

func TestPublishAndConsume(t *testing.T) {
	s := NewStream(8)
	ev := kevent.New(kevent.Info, kevent.CategoryMemory, nil, kevent.MemoryAllocated{Size: 64})
	if ok := s.Publish(ev); !ok {
		t.Fatalf("Publish got false want true")
	}
	got, ok := s.TryConsume()
	if !ok {
		t.Fatalf("TryConsume got ok=false want true")
	}
	if got.Category != kevent.CategoryMemory {
		t.Fatalf("TryConsume category got %v want %v", got.Category, kevent.CategoryMemory)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	s := NewStream(2) // rounds up to 2
	ev := kevent.New(kevent.Info, kevent.CategoryMemory, nil, nil)
	for i := 0; i < s.ring.Capacity(); i++ {
		if !s.Publish(ev) {
			t.Fatalf("Publish %d got false want true (ring not yet full)", i)
		}
	}
	if s.Publish(ev) {
		t.Fatalf("Publish on full ring got true want false")
	}
	if got, want := s.Snapshot().Dropped, uint64(1); got != want {
		t.Fatalf("Dropped got %v want %v", got, want)
	}
}

func TestUnderPressure(t *testing.T) {
	s := NewStream(4)
	ev := kevent.New(kevent.Info, kevent.CategoryMemory, nil, nil)
	s.Publish(ev)
	s.Publish(ev)
	s.Publish(ev)
	if got := s.Snapshot().UnderPressure; got {
		t.Fatalf("UnderPressure at 3/4 got %v want false", got)
	}
	s.Publish(ev)
	if got := s.Snapshot().UnderPressure; !got {
		t.Fatalf("UnderPressure at 4/4 got %v want true", got)
	}
}

func TestSubscriberFilterSkipsNonMatching(t *testing.T) {
	s := NewStream(8)
	memCat := kevent.CategoryMemory
	procCat := kevent.CategoryProcess
	s.Publish(kevent.New(kevent.Info, memCat, nil, nil))
	s.Publish(kevent.New(kevent.Info, procCat, nil, nil))

	sub := NewSubscriber(s)
	defer sub.Close()

	ev, ok := sub.Pull(EventFilter{Category: &procCat})
	if !ok {
		t.Fatalf("Pull got ok=false want true")
	}
	if ev.Category != procCat {
		t.Fatalf("Pull category got %v want %v", ev.Category, procCat)
	}
}

func TestSubscriberCloseDecrementsActive(t *testing.T) {
	s := NewStream(8)
	sub := NewSubscriber(s)
	if got, want := s.Snapshot().ActiveSubscribers, int64(1); got != want {
		t.Fatalf("ActiveSubscribers got %v want %v", got, want)
	}
	sub.Close()
	if got, want := s.Snapshot().ActiveSubscribers, int64(0); got != want {
		t.Fatalf("ActiveSubscribers after Close got %v want %v", got, want)
	}
}

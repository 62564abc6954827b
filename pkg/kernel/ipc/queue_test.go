package ipc

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestFifoQueueOrdersByArrival(t *testing.T) {
	m := NewManager(newTestStore())
	id, err := m.Create(1, QueueFifo, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m.Enqueue(id, []byte("a"), 0)
	m.Enqueue(id, []byte("b"), 0)

	got, err := m.Dequeue(id)
	if err != nil || string(got) != "a" {
		t.Fatalf("Dequeue #1 got (%q, %v) want (a, nil)", got, err)
	}
	got, err = m.Dequeue(id)
	if err != nil || string(got) != "b" {
		t.Fatalf("Dequeue #2 got (%q, %v) want (b, nil)", got, err)
	}
}

func TestPriorityQueueOrdersHighestFirst(t *testing.T) {
	m := NewManager(newTestStore())
	id, _ := m.Create(1, QueuePriority, 10)
	m.Enqueue(id, []byte("low"), 1)
	m.Enqueue(id, []byte("high"), 9)
	m.Enqueue(id, []byte("mid"), 5)

	order := []string{}
	for i := 0; i < 3; i++ {
		got, err := m.Dequeue(id)
		if err != nil {
			t.Fatalf("Dequeue #%d: %v", i, err)
		}
		order = append(order, string(got))
	}
	want := []string{"high", "mid", "low"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order got %v want %v", order, want)
		}
	}
}

func TestPubSubFansOutToEverySubscriber(t *testing.T) {
	m := NewManager(newTestStore())
	id, _ := m.Create(1, QueuePubSub, 0)
	s1, _ := m.Subscribe(id, 4)
	s2, _ := m.Subscribe(id, 4)

	if err := m.Enqueue(id, []byte("hi"), 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	for _, sub := range []uint64{s1, s2} {
		data, ok, err := m.Next(id, sub)
		if err != nil || !ok || string(data) != "hi" {
			t.Fatalf("Next(%d) got (%q, %v, %v) want (hi, true, nil)", sub, data, ok, err)
		}
	}
}

func TestPubSubDropsWithNoSubscribers(t *testing.T) {
	m := NewManager(newTestStore())
	id, _ := m.Create(1, QueuePubSub, 0)
	if err := m.Enqueue(id, []byte("hi"), 0); err != nil {
		t.Fatalf("Enqueue with no subscribers: %v", err)
	}
}

func TestQueueCreateRejectsOverProcessLimit(t *testing.T) {
	m := NewManager(newTestStore())
	for i := 0; i < MaxQueuesPerProcess; i++ {
		if _, err := m.Create(1, QueueFifo, 4); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
	if _, err := m.Create(1, QueueFifo, 4); !types.IsKind(err, types.KindLimitExceeded) {
		t.Fatalf("Create at cap got err=%v want LimitExceeded", err)
	}
}

func TestDestroyRecyclesQueueId(t *testing.T) {
	m := NewManager(newTestStore())
	id1, _ := m.Create(1, QueueFifo, 4)
	m.Destroy(id1)
	id2, _ := m.Create(1, QueueFifo, 4)
	if id1 != id2 {
		t.Fatalf("Destroy did not recycle id: first=%d second=%d", id1, id2)
	}
}

func TestDestroyDrainsPendingMessages(t *testing.T) {
	m := NewManager(newTestStore())
	id, _ := m.Create(1, QueueFifo, 4)
	m.Enqueue(id, []byte("x"), 0)
	if err := m.Destroy(id); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := m.Stats(id); !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("Stats after destroy got err=%v want NotFound", err)
	}
}

func TestQueueStatsReportsShape(t *testing.T) {
	m := NewManager(newTestStore())
	id, _ := m.Create(1, QueueFifo, 4)
	m.Enqueue(id, []byte("x"), 0)
	stats, err := m.Stats(id)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Length != 1 || stats.Capacity != 4 || stats.Closed {
		t.Fatalf("Stats got %+v", stats)
	}
}

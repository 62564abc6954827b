package ipc

import "testing"

func TestSendReceiveFIFOOrder(t *testing.T) {
	q := NewMessageQueues()
	if _, err := q.Send(1, 2, []byte("first"), 1); err != nil {
		t.Fatalf("Send #1: %v", err)
	}
	if _, err := q.Send(1, 2, []byte("second"), 2); err != nil {
		t.Fatalf("Send #2: %v", err)
	}

	m1, ok := q.Receive(2)
	if !ok || string(m1.Data) != "first" {
		t.Fatalf("Receive #1 got %q ok=%v want first", m1.Data, ok)
	}
	m2, ok := q.Receive(2)
	if !ok || string(m2.Data) != "second" {
		t.Fatalf("Receive #2 got %q ok=%v want second", m2.Data, ok)
	}
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	q := NewMessageQueues()
	_, err := q.Send(1, 2, make([]byte, MaxMessageBytes+1), 0)
	if err == nil {
		t.Fatalf("Send(oversized) got nil error")
	}
}

func TestSendRejectsAtQueueLengthCap(t *testing.T) {
	q := NewMessageQueues()
	for i := 0; i < MaxQueueLength; i++ {
		if _, err := q.Send(1, 2, []byte("x"), int64(i)); err != nil {
			t.Fatalf("Send #%d: %v", i, err)
		}
	}
	if _, err := q.Send(1, 2, []byte("x"), 0); err == nil {
		t.Fatalf("Send at cap got nil error, want LimitExceeded")
	}
}

func TestGlobalByteCounterTracksUsage(t *testing.T) {
	q := NewMessageQueues()
	q.Send(1, 2, []byte("hello"), 0)
	if got, want := q.GlobalBytesUsed(), uint64(5); got != want {
		t.Fatalf("GlobalBytesUsed got %d want %d", got, want)
	}
	q.Receive(2)
	if got, want := q.GlobalBytesUsed(), uint64(0); got != want {
		t.Fatalf("GlobalBytesUsed after receive got %d want %d", got, want)
	}
}

func TestClearProcessQueueReclaimsBytesAndDrains(t *testing.T) {
	q := NewMessageQueues()
	q.Send(1, 2, []byte("abc"), 0)
	q.Send(1, 2, []byte("de"), 1)

	reclaimed := q.ClearProcessQueue(2)
	if reclaimed != 5 {
		t.Fatalf("ClearProcessQueue reclaimed %d want 5", reclaimed)
	}
	if n := q.Len(2); n != 0 {
		t.Fatalf("Len after clear got %d want 0", n)
	}
	if u := q.GlobalBytesUsed(); u != 0 {
		t.Fatalf("GlobalBytesUsed after clear got %d want 0", u)
	}
}

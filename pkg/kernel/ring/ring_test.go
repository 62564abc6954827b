package ring

import (
	"sync"
	"testing"
)

func TestLockFreeRingPushPop(t *testing.T) {
	r := NewLockFreeRing[int](4)
	if got, want := r.Capacity(), 4; got != want {
		t.Fatalf("Capacity got %d want %d", got, want)
	}
	for i := 0; i < 4; i++ {
		if !r.Push(i) {
			t.Fatalf("Push(%d) unexpectedly reported full", i)
		}
	}
	if r.Push(99) {
		t.Fatalf("Push succeeded on a full ring")
	}
	for i := 0; i < 4; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = (%d,%v) want (%d,true)", v, ok, i)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("Pop succeeded on an empty ring")
	}
}

func TestLockFreeRingConcurrentProducersConsumer(t *testing.T) {
	r := NewLockFreeRing[int](1024)
	const producers, perProducer = 8, 500
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !r.Push(i) {
					// backpressure: spin until a consumer drains.
				}
			}
		}()
	}

	total := producers * perProducer
	got := 0
	done := make(chan struct{})
	go func() {
		for got < total {
			if _, ok := r.Pop(); ok {
				got++
			}
		}
		close(done)
	}()

	wg.Wait()
	<-done
	if got != total {
		t.Fatalf("consumed %d items, want %d", got, total)
	}
}

package bufpool

import "testing"

func TestAcquireReturnsSufficientCapacity(t *testing.T) {
	p := New()
	buf := p.Acquire(100)
	if cap(buf) < 100 {
		t.Fatalf("Acquire(100) capacity %d too small", cap(buf))
	}
	if len(buf) != 0 {
		t.Fatalf("Acquire must return a zero-length slice, got len %d", len(buf))
	}
}

func TestReleaseThenAcquireReuses(t *testing.T) {
	p := New()
	buf := p.Acquire(500)
	buf = append(buf, make([]byte, 500)...)
	p.Release(buf)

	reused := p.Acquire(500)
	if cap(reused) < 500 {
		t.Fatalf("reused buffer capacity %d too small", cap(reused))
	}
	if len(reused) != 0 {
		t.Fatalf("reused buffer must have zero length, got %d", len(reused))
	}
}

func TestReleaseDropsOversizedBuffers(t *testing.T) {
	p := New()
	huge := make([]byte, 0, Large*4)
	p.Release(huge) // more than 2x the large class bound: should simply not be retained
	buf := p.Acquire(Large)
	if cap(buf) == cap(huge) {
		t.Fatalf("oversized buffer should not have been retained in the large class")
	}
}

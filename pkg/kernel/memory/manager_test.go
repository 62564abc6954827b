package memory

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// realUsed recomputes used bytes from the block map directly, the way
// mm_test.go's realUsageAS recomputes span from the vma set instead of
// trusting the manager's own counter.
func (m *Manager) realUsed() uint64 {
	var sum uint64
	m.blocks.Range(func(_ types.Address, b *Block) bool {
		if b.Allocated {
			sum += uint64(b.Size)
		}
		return true
	})
	return sum
}

func newTestManager() *Manager {
	return New(1<<20, kevent.NopSink{}, nil)
}

func TestUsedMemoryUpdates(t *testing.T) {
	m := newTestManager()
	const pid = types.Pid(1)

	addr, err := m.Allocate(pid, 256)
	if err != nil {
		t.Fatalf("Allocate got err %v want nil", err)
	}
	if got, want := m.UsedMemory(), types.Size(m.realUsed()); got != want {
		t.Fatalf("UsedMemory got %v want %v", got, want)
	}

	if err := m.Deallocate(addr); err != nil {
		t.Fatalf("Deallocate got err %v want nil", err)
	}
	if got, want := m.UsedMemory(), types.Size(m.realUsed()); got != want {
		t.Fatalf("UsedMemory got %v want %v", got, want)
	}
}

func TestAllocateZeroSizeRejected(t *testing.T) {
	m := newTestManager()
	if _, err := m.Allocate(1, 0); err == nil {
		t.Fatalf("Allocate(size=0) got nil error want InvalidArgument")
	} else if !types.IsKind(err, types.KindInvalidArgument) {
		t.Fatalf("Allocate(size=0) got kind %v want InvalidArgument", err)
	}
}

func TestAllocateOverCapacityFails(t *testing.T) {
	m := newTestManager()
	if _, err := m.Allocate(1, types.Size(m.TotalMemory())+1); err == nil {
		t.Fatalf("Allocate(size>total) got nil error want OutOfMemory")
	} else if !types.IsKind(err, types.KindOutOfMemory) {
		t.Fatalf("Allocate(size>total) got kind %v want OutOfMemory", err)
	}
	// A failed reservation must leave the counter untouched.
	if got, want := m.UsedMemory(), types.Size(0); got != want {
		t.Fatalf("UsedMemory after failed Allocate got %v want %v", got, want)
	}
}

// TestAddressRecyclingWithSplit covers Scenario B: freeing a large block
// and then allocating a smaller one should reuse (part of) the freed
// block's address via best-fit, splitting off a remainder rather than
// bump-allocating past it.
func TestAddressRecyclingWithSplit(t *testing.T) {
	m := newTestManager()
	const pid = types.Pid(7)

	big, err := m.Allocate(pid, 4096)
	if err != nil {
		t.Fatalf("Allocate(big) got err %v want nil", err)
	}
	bumpMark, err := m.Allocate(pid, 64)
	if err != nil {
		t.Fatalf("Allocate(bumpMark) got err %v want nil", err)
	}

	if err := m.Deallocate(big); err != nil {
		t.Fatalf("Deallocate(big) got err %v want nil", err)
	}

	small, err := m.Allocate(pid, 256)
	if err != nil {
		t.Fatalf("Allocate(small) got err %v want nil", err)
	}
	if got, want := small, big; got != want {
		t.Fatalf("Allocate(small) got address %v want recycled address %v", got, want)
	}
	_ = bumpMark

	// The remainder of the split block must be tracked as free, not lost.
	remainderAddr := big + types.Address(256)
	if _, ok := m.blocks.Get(remainderAddr); !ok {
		t.Fatalf("remainder block at %v missing from block map after split", remainderAddr)
	}
}

// TestCoalesceMergesAdjacentBlocks covers testable property #4: three
// adjacent freed blocks collapse into one after a coalescing pass.
func TestCoalesceMergesAdjacentBlocks(t *testing.T) {
	m := newTestManager()
	const pid = types.Pid(3)

	a, err := m.Allocate(pid, 64)
	if err != nil {
		t.Fatalf("Allocate(a) got err %v want nil", err)
	}
	b, err := m.Allocate(pid, 64)
	if err != nil {
		t.Fatalf("Allocate(b) got err %v want nil", err)
	}
	c, err := m.Allocate(pid, 64)
	if err != nil {
		t.Fatalf("Allocate(c) got err %v want nil", err)
	}

	for _, addr := range []types.Address{a, b, c} {
		if err := m.Deallocate(addr); err != nil {
			t.Fatalf("Deallocate(%v) got err %v want nil", addr, err)
		}
	}

	m.coalesceLocked()

	merged, ok := m.blocks.Get(a)
	if !ok {
		t.Fatalf("merged block at %v missing after coalesce", a)
	}
	if got, want := merged.Size, types.Size(192); got != want {
		t.Fatalf("merged block size got %v want %v", got, want)
	}
	if _, ok := m.blocks.Get(b); ok {
		t.Fatalf("absorbed block at %v still present after coalesce", b)
	}
	if _, ok := m.blocks.Get(c); ok {
		t.Fatalf("absorbed block at %v still present after coalesce", c)
	}
}

func TestPerProcessAccounting(t *testing.T) {
	m := newTestManager()
	const pid = types.Pid(9)

	if _, err := m.Allocate(pid, 128); err != nil {
		t.Fatalf("Allocate got err %v want nil", err)
	}
	if _, err := m.Allocate(pid, 128); err != nil {
		t.Fatalf("Allocate got err %v want nil", err)
	}

	stats := m.Stats(pid)
	if got, want := stats.CurrentBytes, uint64(256); got != want {
		t.Fatalf("Stats.CurrentBytes got %v want %v", got, want)
	}
	if got, want := stats.AllocationCount, uint64(2); got != want {
		t.Fatalf("Stats.AllocationCount got %v want %v", got, want)
	}
	if got, want := stats.PeakBytes, uint64(256); got != want {
		t.Fatalf("Stats.PeakBytes got %v want %v", got, want)
	}
}

func TestFreeProcessMemoryReclaimsAll(t *testing.T) {
	m := newTestManager()
	const pid = types.Pid(42)

	if _, err := m.Allocate(pid, 512); err != nil {
		t.Fatalf("Allocate got err %v want nil", err)
	}
	if _, err := m.Allocate(pid, 1024); err != nil {
		t.Fatalf("Allocate got err %v want nil", err)
	}

	reclaimed := m.FreeProcessMemory(pid)
	if got, want := reclaimed, uint64(1536); got != want {
		t.Fatalf("FreeProcessMemory reclaimed got %v want %v", got, want)
	}
	if got, want := m.UsedMemory(), types.Size(m.realUsed()); got != want {
		t.Fatalf("UsedMemory got %v want %v", got, want)
	}
	if stats := m.Stats(pid); stats.AllocationCount != 0 {
		t.Fatalf("Stats after FreeProcessMemory got %+v want zero value", stats)
	}
}

func TestInvalidAddressDeallocate(t *testing.T) {
	m := newTestManager()
	if err := m.Deallocate(types.Address(0xdeadbeef)); err == nil {
		t.Fatalf("Deallocate(invalid) got nil error want NotFound")
	} else if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("Deallocate(invalid) got kind %v want NotFound", err)
	}
}

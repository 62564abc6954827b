package memory

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/klock"
	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// coalesceEvery is N in spec.md's "every Nth deallocation (N=100)".
const coalesceEvery = 100

// gcThreshold triggers a block-map compaction pass after this many
// deallocations since the last one.
const gcThreshold = 500

// PressureThresholds are the usage-percent boundaries at which the
// manager emits a MemoryPressure event.
type PressureThresholds struct {
	Medium   float64
	Warning  float64
	Critical float64
}

// DefaultPressureThresholds matches spec.md §4.2 ("default medium 60%,
// warning 80%, critical 95%").
func DefaultPressureThresholds() PressureThresholds {
	return PressureThresholds{Medium: 0.60, Warning: 0.80, Critical: 0.95}
}

type processUsage struct {
	mu              sync.Mutex
	currentBytes    uint64
	allocationCount uint64
	peakBytes       uint64
}

// Manager is the simulated address space: segregated free lists,
// per-process accounting, and pressure-level event emission.
type Manager struct {
	log *logrus.Entry

	total types.Size
	used  *klock.AdaptiveLock[uint64]
	bump  *klock.AdaptiveLock[uint64]

	blocks *stripedmap.StripedMap[types.Address, *Block]
	free   *freeList

	perProcess *stripedmap.StripedMap[types.Pid, *processUsage]

	sinceDealloc *klock.AdaptiveLock[uint64]
	sinceGC      *klock.AdaptiveLock[uint64]

	thresholds    PressureThresholds
	pressureMu    sync.Mutex
	currentLevel  string

	sink kevent.Sink
}

// New builds a Manager with the given total capacity (default 1 GiB per
// spec.md §4.2 if total is zero).
func New(total types.Size, sink kevent.Sink, log *logrus.Entry) *Manager {
	if total == 0 {
		total = 1 << 30
	}
	if sink == nil {
		sink = kevent.NopSink{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		log:          log.WithField("component", "memory"),
		total:        total,
		used:         klock.NewAdaptiveLock[uint64](0),
		bump:         klock.NewAdaptiveLock[uint64](0),
		blocks:       stripedmap.New[types.Address, *Block](),
		free:         newFreeList(),
		perProcess:   stripedmap.New[types.Pid, *processUsage](),
		sinceDealloc: klock.NewAdaptiveLock[uint64](0),
		sinceGC:      klock.NewAdaptiveLock[uint64](0),
		thresholds:   DefaultPressureThresholds(),
		currentLevel: "normal",
		sink:         sink,
	}
}

// UsedMemory returns the current used-byte counter.
func (m *Manager) UsedMemory() types.Size { return types.Size(m.used.Load(klock.SeqCst)) }

// TotalMemory returns the configured capacity.
func (m *Manager) TotalMemory() types.Size { return m.total }

// Allocate reserves size bytes for pid, returning the address of the new
// block. Implements spec.md §4.2 Allocate steps 1-5.
func (m *Manager) Allocate(pid types.Pid, size types.Size) (types.Address, error) {
	if size == 0 {
		return 0, types.InvalidArgument("allocation size must be > 0")
	}

	// Step 1: reserve atomically; undo (by construction, TryReserve never
	// applies a reservation that would exceed cap) and fail on overflow.
	used, ok := m.used.TryReserve(uint64(size), uint64(m.total), klock.SeqCst)
	if !ok {
		return 0, types.OutOfMemory(uint64(size), uint64(m.total)-m.used.Load(klock.SeqCst), m.used.Load(klock.SeqCst), uint64(m.total))
	}

	// Step 2: best-fit from the free list, else bump-allocate.
	m.free.mu.Lock()
	block := m.free.bestFit(size)
	if block != nil {
		m.free.remove(block)
	}
	m.free.mu.Unlock()

	var addr types.Address
	if block != nil {
		addr = block.Address
		if block.Size > size {
			remainder := &Block{Address: addr + types.Address(size), Size: block.Size - size}
			m.free.mu.Lock()
			m.free.insert(remainder)
			m.free.mu.Unlock()
			m.blocks.Set(remainder.Address, remainder)
		}
	} else {
		addr = types.Address(m.bump.FetchAdd(uint64(size), klock.SeqCst))
	}

	// Step 3: insert block record, update per-process tracking.
	pidCopy := pid
	newBlock := &Block{Address: addr, Size: size, Allocated: true, Owner: &pidCopy}
	m.blocks.Set(addr, newBlock)
	m.trackAllocation(pid, uint64(size))

	// Step 4: pressure event on threshold crossing.
	m.maybeEmitPressure(used)

	// Step 5: allocation event.
	m.sink.Publish(kevent.New(kevent.Info, kevent.CategoryMemory, &pidCopy, kevent.MemoryAllocated{Size: size, RegionID: addr}))

	return addr, nil
}

func (m *Manager) trackAllocation(pid types.Pid, size uint64) {
	pu, _ := m.perProcess.Get(pid)
	if pu == nil {
		pu = &processUsage{}
		m.perProcess.Set(pid, pu)
	}
	pu.mu.Lock()
	pu.currentBytes += size
	pu.allocationCount++
	if pu.currentBytes > pu.peakBytes {
		pu.peakBytes = pu.currentBytes
	}
	pu.mu.Unlock()
}

func (m *Manager) untrackDeallocation(pid types.Pid, size uint64) {
	pu, ok := m.perProcess.Get(pid)
	if !ok {
		return
	}
	pu.mu.Lock()
	if pu.currentBytes >= size {
		pu.currentBytes -= size
	} else {
		pu.currentBytes = 0
	}
	pu.mu.Unlock()
}

func (m *Manager) maybeEmitPressure(used uint64) {
	pct := float64(used) / float64(m.total)
	level := "normal"
	switch {
	case pct >= m.thresholds.Critical:
		level = "critical"
	case pct >= m.thresholds.Warning:
		level = "warning"
	case pct >= m.thresholds.Medium:
		level = "medium"
	}

	m.pressureMu.Lock()
	crossed := level != m.currentLevel
	m.currentLevel = level
	m.pressureMu.Unlock()

	if !crossed {
		return
	}
	availableMiB := float64(uint64(m.total)-used) / (1 << 20)
	m.sink.Publish(kevent.New(kevent.Warn, kevent.CategoryMemory, nil, kevent.MemoryPressure{
		UsagePercent: pct * 100,
		AvailableMiB: availableMiB,
		Level:        level,
	}))
}

// Deallocate frees the block at address. Implements spec.md §4.2
// Deallocate steps 1-5.
func (m *Manager) Deallocate(address types.Address) error {
	block, ok := m.blocks.Get(address)
	if !ok || !block.Allocated {
		return types.InvalidAddress(address)
	}

	block.Allocated = false
	owner := block.Owner
	m.used.FetchAdd(^uint64(uint64(block.Size)-1), klock.SeqCst) // subtract block.Size
	if owner != nil {
		m.untrackDeallocation(*owner, uint64(block.Size))
	}

	m.free.mu.Lock()
	m.free.insert(block)
	m.free.mu.Unlock()

	n := m.sinceDealloc.FetchAdd(1, klock.SeqCst) + 1
	if n >= coalesceEvery {
		m.sinceDealloc.Store(0, klock.SeqCst)
		m.coalesceLocked()
	}

	if gc := m.sinceGC.FetchAdd(1, klock.SeqCst) + 1; gc >= gcThreshold {
		m.sinceGC.Store(0, klock.SeqCst)
		m.compact()
	}

	m.sink.Publish(kevent.New(kevent.Info, kevent.CategoryMemory, owner, kevent.MemoryFreed{Size: block.Size, RegionID: address}))
	return nil
}

// coalesceLocked runs a full free-list coalescing pass and reconciles
// the authoritative address->Block map against the merge result.
func (m *Manager) coalesceLocked() {
	m.free.mu.Lock()
	merged, absorbed := m.free.coalesce()
	m.free.mu.Unlock()

	for _, addr := range absorbed {
		m.blocks.Delete(addr)
	}
	for _, b := range merged {
		m.blocks.Set(b.Address, b)
	}
}

// compact is the "map compaction pass" spec.md's GC threshold triggers.
// The striped map backing this manager doesn't fragment the way a
// hash table with tombstones would, so compaction here means dropping
// any free blocks that coalescing has already folded away — a cheap
// consistency re-check rather than a real memory-moving GC.
func (m *Manager) compact() {
	m.coalesceLocked()
}

// FreeProcessMemory walks the block map and frees every block owned by
// pid in one pass, then always coalesces. Returns total bytes reclaimed.
// Implements spec.md §4.2 "Process exit".
func (m *Manager) FreeProcessMemory(pid types.Pid) uint64 {
	var reclaimed uint64
	var toFree []types.Address
	m.blocks.Range(func(addr types.Address, b *Block) bool {
		if b.Allocated && b.Owner != nil && *b.Owner == pid {
			toFree = append(toFree, addr)
		}
		return true
	})
	for _, addr := range toFree {
		b, ok := m.blocks.Get(addr)
		if !ok || !b.Allocated {
			continue
		}
		reclaimed += uint64(b.Size)
		b.Allocated = false
		m.used.FetchAdd(^uint64(uint64(b.Size)-1), klock.SeqCst)
		m.free.mu.Lock()
		m.free.insert(b)
		m.free.mu.Unlock()
	}
	m.perProcess.Delete(pid)
	m.coalesceLocked()
	return reclaimed
}

// ProcessStats mirrors the per-process tracking spec.md §4.2 step 3
// requires: current_bytes, allocation_count, peak_bytes.
type ProcessStats struct {
	CurrentBytes    uint64
	AllocationCount uint64
	PeakBytes       uint64
}

// Stats returns a snapshot of pid's usage, zero-value if untracked.
func (m *Manager) Stats(pid types.Pid) ProcessStats {
	pu, ok := m.perProcess.Get(pid)
	if !ok {
		return ProcessStats{}
	}
	pu.mu.Lock()
	defer pu.mu.Unlock()
	return ProcessStats{CurrentBytes: pu.currentBytes, AllocationCount: pu.allocationCount, PeakBytes: pu.peakBytes}
}

package memory

import (
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// freeEntry is the btree element: ordered by (size, address) so the
// smallest address at the smallest sufficient size sorts first within a
// class, giving deterministic best-fit selection.
type freeEntry struct {
	block *Block
}

func lessFree(a, b freeEntry) bool {
	if a.block.Size != b.block.Size {
		return a.block.Size < b.block.Size
	}
	return a.block.Address < b.block.Address
}

// freeList is the segregated free list: one btree per size class, all
// guarded by a single mutex per spec.md's "mutex around a segregated
// free list".
type freeList struct {
	mu      sync.Mutex
	classes map[types.Size]*btree.BTreeG[freeEntry]
	sinceCoalesce int
}

func newFreeList() *freeList {
	return &freeList{classes: make(map[types.Size]*btree.BTreeG[freeEntry])}
}

func (fl *freeList) classTree(class types.Size) *btree.BTreeG[freeEntry] {
	t, ok := fl.classes[class]
	if !ok {
		t = btree.NewG(32, lessFree)
		fl.classes[class] = t
	}
	return t
}

// insert adds a freed block to its size class. Caller holds fl.mu.
func (fl *freeList) insert(b *Block) {
	class := sizeClass(b.Size)
	fl.classTree(class).ReplaceOrInsert(freeEntry{block: b})
}

// remove deletes a specific block from its size class (used when a
// best-fit match is consumed, or when a block is re-merged during
// coalescing). Caller holds fl.mu.
func (fl *freeList) remove(b *Block) {
	class := sizeClass(b.Size)
	if t, ok := fl.classes[class]; ok {
		t.Delete(freeEntry{block: b})
	}
}

// bestFit scans size classes from the requested size upward and returns
// the smallest block able to satisfy size, or nil. Caller holds fl.mu.
func (fl *freeList) bestFit(size types.Size) *Block {
	var found *Block
	startClass := sizeClass(size)
	ordered := fl.orderedClasses()
	for _, class := range ordered {
		if class != 0 && class < startClass {
			continue
		}
		t := fl.classes[class]
		var candidate *Block
		t.AscendGreaterOrEqual(freeEntry{block: &Block{Size: size}}, func(e freeEntry) bool {
			if e.block.Size >= size {
				candidate = e.block
			}
			return false // only need the first (smallest qualifying) entry
		})
		if candidate != nil {
			found = candidate
			break
		}
	}
	return found
}

// orderedClasses returns the known size classes in ascending order, with
// the catch-all "jumbo" class (0) last.
func (fl *freeList) orderedClasses() []types.Size {
	classes := make([]types.Size, 0, len(fl.classes))
	for c := range fl.classes {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i] == 0 {
			return false
		}
		if classes[j] == 0 {
			return true
		}
		return classes[i] < classes[j]
	})
	return classes
}

// allBlocks gathers every free block across every class.
func (fl *freeList) allBlocks() []*Block {
	var out []*Block
	for _, t := range fl.classes {
		t.Ascend(func(e freeEntry) bool {
			out = append(out, e.block)
			return true
		})
	}
	return out
}

// coalesce sorts every free block by address and merges adjacent runs,
// matching spec.md §4.2 step 3 exactly. It returns the resulting merged
// blocks and the addresses of blocks absorbed into a predecessor, so the
// caller (which owns the authoritative address->Block map) can reconcile
// both views. Caller holds fl.mu.
func (fl *freeList) coalesce() (merged []*Block, absorbed []types.Address) {
	blocks := fl.allBlocks()
	if len(blocks) < 2 {
		return nil, nil
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Address < blocks[j].Address })

	for _, c := range fl.orderedClasses() {
		fl.classes[c] = btree.NewG(32, lessFree)
	}

	cur := &Block{Address: blocks[0].Address, Size: blocks[0].Size}
	for i := 1; i < len(blocks); i++ {
		next := blocks[i]
		if cur.end() == next.Address {
			cur.Size += next.Size
			absorbed = append(absorbed, next.Address)
		} else {
			merged = append(merged, cur)
			cur = &Block{Address: next.Address, Size: next.Size}
		}
	}
	merged = append(merged, cur)

	for _, b := range merged {
		fl.insert(b)
	}
	return merged, absorbed
}

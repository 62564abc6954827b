package fdtable

import "testing"

func TestEpochFdTableInsertGetRemove(t *testing.T) {
	tbl := NewEpochFdTable[string](8)
	fd, ok := tbl.Insert("handle-a", 0)
	if !ok {
		t.Fatalf("Insert failed on an empty table")
	}
	g, ok := tbl.Get(fd)
	if !ok || g.Value() != "handle-a" {
		t.Fatalf("Get(%d) = (%q,%v) want (handle-a,true)", fd, g.Value(), ok)
	}
	g.Release()

	if _, ok := tbl.Remove(fd); !ok {
		t.Fatalf("Remove failed on an occupied slot")
	}
	if _, ok := tbl.Get(fd); ok {
		t.Fatalf("Get succeeded after Remove")
	}
}

func TestEpochFdTableGuardSurvivesConcurrentRemove(t *testing.T) {
	tbl := NewEpochFdTable[string](4)
	fd, _ := tbl.Insert("pinned", 0)
	g, ok := tbl.Get(fd)
	if !ok {
		t.Fatalf("Get failed")
	}
	// Remove races the held guard: the guard's copy must remain readable.
	tbl.Remove(fd)
	if g.Value() != "pinned" {
		t.Fatalf("guard value corrupted after concurrent Remove: got %q", g.Value())
	}
	g.Release()
}

func TestEpochFdTableCapacityExhausted(t *testing.T) {
	tbl := NewEpochFdTable[int](2)
	if _, ok := tbl.Insert(1, 0); !ok {
		t.Fatalf("first insert should succeed")
	}
	if _, ok := tbl.Insert(2, 0); !ok {
		t.Fatalf("second insert should succeed")
	}
	if _, ok := tbl.Insert(3, 0); ok {
		t.Fatalf("insert into a full table should fail")
	}
}

func TestEpochFdTableUpdateFlags(t *testing.T) {
	tbl := NewEpochFdTable[int](2)
	fd, _ := tbl.Insert(1, 0)
	if !tbl.UpdateFlags(fd, 0x1) {
		t.Fatalf("UpdateFlags failed")
	}
	flags, ok := tbl.Flags(fd)
	if !ok || flags != 0x1 {
		t.Fatalf("Flags got (%d,%v) want (1,true)", flags, ok)
	}
}

func TestEpochFdTableClearAfterProcessExit(t *testing.T) {
	tbl := NewEpochFdTable[int](4)
	tbl.Insert(1, 0)
	tbl.Insert(2, 0)
	tbl.Clear()
	if got := tbl.Len(); got != 0 {
		t.Fatalf("Len after Clear got %d want 0", got)
	}
}

package ipc

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func wouldBlock(err error) bool { return types.IsKind(err, types.KindWouldBlock) }

func TestPipeWriteReadRoundTrip(t *testing.T) {
	p := NewPipes()
	id, err := p.Create(1, 2, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := p.Write(id, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := p.Read(id, 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("Read got %q want hello", out)
	}
}

func TestPipeWriteWouldBlockWhenFull(t *testing.T) {
	p := NewPipes()
	id, _ := p.Create(1, 2, 4)
	if _, err := p.Write(id, []byte("abcd")); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if _, err := p.Write(id, []byte("x")); !wouldBlock(err) {
		t.Fatalf("overflow Write got err=%v want WouldBlock", err)
	}
}

func TestPipeReadEmptyOpenWouldBlockThenClosedEOF(t *testing.T) {
	p := NewPipes()
	id, _ := p.Create(1, 2, 64)

	if _, err := p.Read(id, 10); !wouldBlock(err) {
		t.Fatalf("Read empty open got err=%v want WouldBlock", err)
	}

	p.Close(id)
	out, err := p.Read(id, 10)
	if err != nil || out != nil {
		t.Fatalf("Read empty closed got (%v, %v) want (nil, nil)", out, err)
	}
}

func TestPipeDestroyReleasesGlobalBudget(t *testing.T) {
	p := NewPipes()
	id, _ := p.Create(1, 2, 64)
	p.Write(id, []byte("abc"))
	if got := p.GlobalBytesUsed(); got != 3 {
		t.Fatalf("GlobalBytesUsed got %d want 3", got)
	}
	p.Destroy(id)
	if got := p.GlobalBytesUsed(); got != 0 {
		t.Fatalf("GlobalBytesUsed after Destroy got %d want 0", got)
	}
}

func TestClearProcessPipesDestroysOwnedPipes(t *testing.T) {
	p := NewPipes()
	id1, _ := p.Create(1, 2, 64)
	id2, _ := p.Create(3, 1, 64)
	p.Write(id1, []byte("ab"))
	p.Write(id2, []byte("cde"))

	reclaimed := p.ClearProcessPipes(1)
	if reclaimed != 5 {
		t.Fatalf("ClearProcessPipes reclaimed %d want 5", reclaimed)
	}
	if _, ok := p.get(id1); ok {
		t.Fatalf("pipe %d should be destroyed", id1)
	}
	if _, ok := p.get(id2); ok {
		t.Fatalf("pipe %d should be destroyed", id2)
	}
}

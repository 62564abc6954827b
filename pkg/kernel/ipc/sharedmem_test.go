package ipc

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func newTestStore() *ByteStore {
	return NewByteStore(memory.New(0, nil, nil))
}

func TestSharedMemoryWriteReadRoundTrip(t *testing.T) {
	sm := NewSharedMemory(newTestStore())
	id, err := sm.Create(1, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sm.Write(id, 1, 0, []byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := sm.Read(id, 1, 0, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(out) != "hi" {
		t.Fatalf("Read got %q want hi", out)
	}
}

func TestSharedMemoryDeniesUnattachedAccess(t *testing.T) {
	sm := NewSharedMemory(newTestStore())
	id, _ := sm.Create(1, 16)
	if _, err := sm.Read(id, 99, 0, 1); !types.IsKind(err, types.KindPermissionDenied) {
		t.Fatalf("Read unattached got err=%v want PermissionDenied", err)
	}
}

func TestSharedMemoryDeniesWriteToReadOnlyAttachment(t *testing.T) {
	sm := NewSharedMemory(newTestStore())
	id, _ := sm.Create(1, 16)
	sm.Attach(id, 2, AccessReadOnly)
	if err := sm.Write(id, 2, 0, []byte("x")); !types.IsKind(err, types.KindPermissionDenied) {
		t.Fatalf("Write read-only got err=%v want PermissionDenied", err)
	}
}

func TestSharedMemoryDestroyOnlyByOwner(t *testing.T) {
	sm := NewSharedMemory(newTestStore())
	id, _ := sm.Create(1, 16)
	sm.Attach(id, 2, AccessReadWrite)
	if err := sm.Destroy(id, 2); !types.IsKind(err, types.KindPermissionDenied) {
		t.Fatalf("Destroy by non-owner got err=%v want PermissionDenied", err)
	}
	if err := sm.Destroy(id, 1); err != nil {
		t.Fatalf("Destroy by owner: %v", err)
	}
}

func TestSharedMemoryDetachRemovesAttachment(t *testing.T) {
	sm := NewSharedMemory(newTestStore())
	id, _ := sm.Create(1, 16)
	sm.Attach(id, 2, AccessReadOnly)
	if got := sm.AttachmentCount(id); got != 2 {
		t.Fatalf("AttachmentCount got %d want 2", got)
	}
	sm.Detach(id, 2)
	if got := sm.AttachmentCount(id); got != 1 {
		t.Fatalf("AttachmentCount after detach got %d want 1", got)
	}
}

package ipc

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

type recordingSink struct {
	events []kevent.Event
}

func (s *recordingSink) Publish(ev kevent.Event) bool {
	s.events = append(s.events, ev)
	return true
}

func TestClearProcessResourcesReclaimsMessagesAndPipes(t *testing.T) {
	sink := &recordingSink{}
	f := NewFacade(memory.New(0, nil, nil), sink, nil)

	f.Messages.Send(1, 2, []byte("abc"), 0)
	pipeID, _ := f.Pipes.Create(2, 3, 64)
	f.Pipes.Write(pipeID, []byte("de"))

	total := f.ClearProcessResources(2)
	if total != 5 {
		t.Fatalf("ClearProcessResources reclaimed %d want 5", total)
	}
	if len(sink.events) != 2 {
		t.Fatalf("got %d events want 2", len(sink.events))
	}
	for _, ev := range sink.events {
		if ev.Category != kevent.CategoryIPC {
			t.Fatalf("event category got %v want CategoryIPC", ev.Category)
		}
	}
}

func TestFacadeSharedMemoryDrawsOnSameAddressSpace(t *testing.T) {
	mem := memory.New(1024, nil, nil)
	f := NewFacade(mem, nil, nil)

	id, err := f.Shared.Create(1, 32)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Shared.Write(id, 1, 0, []byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := mem.UsedMemory(); got != types.Size(32) {
		t.Fatalf("memory manager UsedMemory got %d want 32", got)
	}
}

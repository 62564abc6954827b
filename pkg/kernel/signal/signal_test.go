package signal

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestDeliverSkipsBlockedSignals(t *testing.T) {
	tb := NewTable()
	pid := types.Pid(1)
	tb.Init(pid)

	tb.Block(pid, SIGUSR1)
	tb.Send(pid, SIGUSR1)
	tb.Send(pid, SIGUSR2)

	delivered := tb.Deliver(pid)
	if len(delivered) != 1 || delivered[0].Num != SIGUSR2 {
		t.Fatalf("Deliver got %+v want only SIGUSR2", delivered)
	}

	tb.Unblock(pid, SIGUSR1)
	delivered = tb.Deliver(pid)
	if len(delivered) != 1 || delivered[0].Num != SIGUSR1 {
		t.Fatalf("Deliver after unblock got %+v want SIGUSR1", delivered)
	}
}

func TestDeliverAppliesRegisteredHandler(t *testing.T) {
	tb := NewTable()
	pid := types.Pid(1)
	tb.Init(pid)

	tb.SetHandler(pid, SIGUSR1, Disposition{Action: ActionHandler, HandlerID: 42})
	tb.Send(pid, SIGUSR1)

	delivered := tb.Deliver(pid)
	if len(delivered) != 1 || delivered[0].Disposition.Action != ActionHandler || delivered[0].Disposition.HandlerID != 42 {
		t.Fatalf("Deliver got %+v want ActionHandler/42", delivered)
	}
}

func TestDeliverDefaultsUnregisteredSignal(t *testing.T) {
	tb := NewTable()
	pid := types.Pid(1)
	tb.Init(pid)
	tb.Send(pid, SIGTERM)

	delivered := tb.Deliver(pid)
	if len(delivered) != 1 || delivered[0].Disposition.Action != ActionDefault {
		t.Fatalf("Deliver got %+v want ActionDefault", delivered)
	}
}

func TestKillAndStopCannotBeBlockedOrCaught(t *testing.T) {
	tb := NewTable()
	pid := types.Pid(1)
	tb.Init(pid)

	if err := tb.Block(pid, SIGKILL); err == nil {
		t.Fatalf("Block(SIGKILL) got nil error")
	}
	if err := tb.SetHandler(pid, SIGSTOP, Disposition{Action: ActionHandler}); err == nil {
		t.Fatalf("SetHandler(SIGSTOP) got nil error")
	}
}

func TestSendRejectsInvalidSignalNumber(t *testing.T) {
	tb := NewTable()
	pid := types.Pid(1)
	tb.Init(pid)
	if err := tb.Send(pid, Num(99)); err == nil {
		t.Fatalf("Send(99) got nil error want InvalidSignal")
	}
}

func TestDeliverOrdersByAscendingSignalNumber(t *testing.T) {
	tb := NewTable()
	pid := types.Pid(1)
	tb.Init(pid)
	tb.Send(pid, SIGTERM)
	tb.Send(pid, SIGHUP)
	tb.Send(pid, SIGINT)

	delivered := tb.Deliver(pid)
	if len(delivered) != 3 {
		t.Fatalf("Deliver got %d signals want 3", len(delivered))
	}
	for i := 1; i < len(delivered); i++ {
		if delivered[i-1].Num > delivered[i].Num {
			t.Fatalf("Deliver not ascending: %+v", delivered)
		}
	}
}

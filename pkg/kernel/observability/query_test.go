package observability

import (
	"testing"

	"github.com/google/uuid"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestQueryCountByCategory(t *testing.T) {
	pid := types.Pid(1)
	snap := Snapshot{Events: []kevent.Event{
		kevent.New(kevent.Info, kevent.CategoryMemory, &pid, nil),
		kevent.New(kevent.Info, kevent.CategoryMemory, &pid, nil),
		kevent.New(kevent.Info, kevent.CategoryProcess, &pid, nil),
	}}
	res := Query{Aggs: []Aggregation{CountByCategory}}.Run(snap)
	if got, want := res.CategoryCounts[kevent.CategoryMemory], 2; got != want {
		t.Fatalf("CategoryCounts[Memory] got %v want %v", got, want)
	}
	if got, want := res.CategoryCounts[kevent.CategoryProcess], 1; got != want {
		t.Fatalf("CategoryCounts[Process] got %v want %v", got, want)
	}
}

func TestQueryDurationStats(t *testing.T) {
	snap := Snapshot{Events: []kevent.Event{
		kevent.New(kevent.Info, kevent.CategorySyscall, nil, kevent.SyscallExit{DurationUs: 10}),
		kevent.New(kevent.Info, kevent.CategorySyscall, nil, kevent.SyscallExit{DurationUs: 20}),
		kevent.New(kevent.Info, kevent.CategorySyscall, nil, kevent.SyscallExit{DurationUs: 30}),
	}}
	res := Query{Aggs: []Aggregation{DurationStats}}.Run(snap)
	if got, want := res.Duration.Count, 3; got != want {
		t.Fatalf("Duration.Count got %v want %v", got, want)
	}
	if got, want := res.Duration.MinUs, int64(10); got != want {
		t.Fatalf("Duration.MinUs got %v want %v", got, want)
	}
	if got, want := res.Duration.MaxUs, int64(30); got != want {
		t.Fatalf("Duration.MaxUs got %v want %v", got, want)
	}
}

func TestQueryLimit(t *testing.T) {
	snap := Snapshot{Events: []kevent.Event{
		kevent.New(kevent.Info, kevent.CategoryMemory, nil, nil),
		kevent.New(kevent.Info, kevent.CategoryMemory, nil, nil),
		kevent.New(kevent.Info, kevent.CategoryMemory, nil, nil),
	}}
	res := Query{Limit: 2}.Run(snap)
	if got, want := len(res.Events), 2; got != want {
		t.Fatalf("len(Events) got %v want %v", got, want)
	}
}

func TestCausalityTracerOrdersByTimestampAndPicksRoot(t *testing.T) {
	id := uuid.New()
	other := uuid.New()
	e1 := kevent.New(kevent.Info, kevent.CategorySyscall, nil, nil)
	e1.TimestampNanos = 300
	e1.CausalityID = &id
	e2 := kevent.New(kevent.Info, kevent.CategorySyscall, nil, nil)
	e2.TimestampNanos = 100
	e2.CausalityID = &id
	e3 := kevent.New(kevent.Info, kevent.CategorySyscall, nil, nil)
	e3.TimestampNanos = 50
	e3.CausalityID = &other

	snap := Snapshot{Events: []kevent.Event{e1, e2, e3}}
	timeline, root := CausalityTracer{}.Trace(snap, id)
	if root == nil {
		t.Fatalf("Trace root got nil want non-nil")
	}
	if got, want := root.TimestampNanos, int64(100); got != want {
		t.Fatalf("root.TimestampNanos got %v want %v", got, want)
	}
	if got, want := len(timeline), 2; got != want {
		t.Fatalf("len(timeline) got %v want %v", got, want)
	}
	if got, want := timeline[0].OffsetNanos, int64(0); got != want {
		t.Fatalf("timeline[0].OffsetNanos got %v want %v", got, want)
	}
	if got, want := timeline[1].OffsetNanos, int64(200); got != want {
		t.Fatalf("timeline[1].OffsetNanos got %v want %v", got, want)
	}
}

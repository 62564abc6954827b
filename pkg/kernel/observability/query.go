package observability

import (
	"sort"

	"github.com/google/uuid"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Snapshot is a materialized list of events pulled from a Subscriber,
// the input to Query.
type Snapshot struct {
	Events []kevent.Event
}

// TakeSnapshot drains up to max events from sub matching filter.
func TakeSnapshot(sub *Subscriber, filter EventFilter, max int) Snapshot {
	events := make([]kevent.Event, 0, max)
	for len(events) < max {
		ev, ok := sub.Pull(filter)
		if !ok {
			break
		}
		events = append(events, ev)
	}
	return Snapshot{Events: events}
}

// Aggregation is applied to a filtered Snapshot by Query.Run.
type Aggregation int

const (
	CountByCategory Aggregation = iota
	CountBySeverity
	CountByPid
	DurationStats
)

// DurationStatsResult is produced by the DurationStats aggregation,
// over events whose payload exposes a duration (currently SyscallExit
// and SyscallSlow, via the durationer interface below).
type DurationStatsResult struct {
	Count int
	MinUs int64
	P50Us int64
	P95Us int64
	P99Us int64
	MaxUs int64
}

// durationer is implemented by payload types that carry a duration;
// Query type-switches payloads against it rather than hardcoding every
// event kind that happens to expose one.
type durationer interface {
	DurationMicros() int64
}

// Query filters, limits, and aggregates a Snapshot.
type Query struct {
	Filter EventFilter
	Limit  int
	Aggs   []Aggregation
}

// Result holds the filtered/limited events plus one field per
// aggregation kind; fields for aggregations not requested stay zero.
type Result struct {
	Events          []kevent.Event
	CategoryCounts  map[kevent.Category]int
	SeverityCounts  map[kevent.Severity]int
	PidCounts       map[types.Pid]int
	Duration        DurationStatsResult
}

// Run applies q to snap.
func (q Query) Run(snap Snapshot) Result {
	var filtered []kevent.Event
	for _, ev := range snap.Events {
		if q.Filter.Matches(ev) {
			filtered = append(filtered, ev)
		}
	}
	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}

	res := Result{Events: filtered}
	for _, agg := range q.Aggs {
		switch agg {
		case CountByCategory:
			res.CategoryCounts = countByCategory(filtered)
		case CountBySeverity:
			res.SeverityCounts = countBySeverity(filtered)
		case CountByPid:
			res.PidCounts = countByPid(filtered)
		case DurationStats:
			res.Duration = durationStats(filtered)
		}
	}
	return res
}

func countByCategory(events []kevent.Event) map[kevent.Category]int {
	m := make(map[kevent.Category]int)
	for _, ev := range events {
		m[ev.Category]++
	}
	return m
}

func countBySeverity(events []kevent.Event) map[kevent.Severity]int {
	m := make(map[kevent.Severity]int)
	for _, ev := range events {
		m[ev.Severity]++
	}
	return m
}

func countByPid(events []kevent.Event) map[types.Pid]int {
	m := make(map[types.Pid]int)
	for _, ev := range events {
		if ev.Pid != nil {
			m[*ev.Pid]++
		}
	}
	return m
}

func durationStats(events []kevent.Event) DurationStatsResult {
	var durations []int64
	for _, ev := range events {
		if d, ok := ev.Payload.(durationer); ok {
			durations = append(durations, d.DurationMicros())
		}
	}
	if len(durations) == 0 {
		return DurationStatsResult{}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	pick := func(p float64) int64 {
		idx := int(p * float64(len(durations)-1))
		return durations[idx]
	}
	return DurationStatsResult{
		Count: len(durations),
		MinUs: durations[0],
		P50Us: pick(0.50),
		P95Us: pick(0.95),
		P99Us: pick(0.99),
		MaxUs: durations[len(durations)-1],
	}
}

// CausalityTracer reconstructs the timeline of events sharing a
// causality id, returning them ordered by monotonic offset from the
// earliest (the root cause).
type CausalityTracer struct{}

// TimelineEntry is one event in a reconstructed causal chain.
type TimelineEntry struct {
	Event        kevent.Event
	OffsetNanos  int64
}

// Trace filters snap down to events carrying id, orders them by
// timestamp, and reports the earliest as root cause.
func (CausalityTracer) Trace(snap Snapshot, id uuid.UUID) (timeline []TimelineEntry, rootCause *kevent.Event) {
	var matched []kevent.Event
	for _, ev := range snap.Events {
		if ev.CausalityID != nil && *ev.CausalityID == id {
			matched = append(matched, ev)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].TimestampNanos < matched[j].TimestampNanos
	})
	root := matched[0]
	timeline = make([]TimelineEntry, len(matched))
	for i, ev := range matched {
		timeline[i] = TimelineEntry{Event: ev, OffsetNanos: ev.TimestampNanos - root.TimestampNanos}
	}
	return timeline, &root
}

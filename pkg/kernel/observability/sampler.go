package observability

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
)

// AdjustmentInterval is the call count between adjust_rate passes.
const AdjustmentInterval = 1000

// DefaultTargetOverheadPercent is the sampler's default target, per
// spec.md §4.3.
const DefaultTargetOverheadPercent = 2.0

// Sampler decides whether a caller should actually record a sample.
// should_sample draws a percent value and rejects when it lands at or
// above the configured rate, then every AdjustmentInterval calls nudges
// the rate toward the target overhead. ShouldSample decides from that
// xorshift draw alone; Admit composes it with a per-category
// rate.Limiter token bucket as a second, independent gate.
type Sampler struct {
	mu            sync.Mutex
	rate          int // percent, 1..100
	perCategory   map[kevent.Category]int
	targetPercent float64
	observed      float64
	calls         uint64

	limiters map[kevent.Category]*rate.Limiter

	rng xorshiftState
}

// xorshiftState is a small thread-unsafe xorshift32 generator; Sampler
// serializes access to it under mu, matching the "thread-local xorshift"
// contract without actually needing goroutine-local storage.
type xorshiftState struct{ s uint32 }

func (x *xorshiftState) next() uint32 {
	if x.s == 0 {
		x.s = 0x9e3779b9
	}
	x.s ^= x.s << 13
	x.s ^= x.s >> 17
	x.s ^= x.s << 5
	return x.s
}

// NewSampler builds a Sampler starting at 100% (no sampling loss) with
// the default target overhead.
func NewSampler() *Sampler {
	return &Sampler{
		rate:          100,
		perCategory:   make(map[kevent.Category]int),
		targetPercent: DefaultTargetOverheadPercent,
		limiters:      make(map[kevent.Category]*rate.Limiter),
	}
}

// SetCategoryRate pins category to its own sampling rate (1..100),
// independent of the global rate.
func (s *Sampler) SetCategoryRate(cat kevent.Category, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perCategory[cat] = clampPercent(percent)
}

func clampPercent(p int) int {
	if p < 1 {
		return 1
	}
	if p > 100 {
		return 100
	}
	return p
}

// ShouldSample draws against cat's effective rate (its own if set, else
// the global rate) and returns whether this call should be recorded.
func (s *Sampler) ShouldSample(cat kevent.Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	effective := s.rate
	if r, ok := s.perCategory[cat]; ok {
		effective = r
	}
	sampled := true
	if effective < 100 {
		draw := s.rng.next() % 100
		sampled = draw < uint32(effective)
	}
	if s.calls%AdjustmentInterval == 0 {
		s.adjustRateLocked()
	}
	return sampled
}

// RecordOverhead feeds the sampler the most recently observed overhead
// percentage; adjust_rate reads this on its next tick.
func (s *Sampler) RecordOverhead(percent float64) {
	s.mu.Lock()
	s.observed = percent
	s.mu.Unlock()
}

// adjustRateLocked reduces the rate when observed overhead exceeds
// target, raises it when under, bounded [1,100]. Caller holds s.mu.
func (s *Sampler) adjustRateLocked() {
	switch {
	case s.observed > s.targetPercent:
		s.rate = clampPercent(s.rate - 1)
	case s.observed < s.targetPercent:
		s.rate = clampPercent(s.rate + 1)
	}
}

// Rate returns the current global sampling rate.
func (s *Sampler) Rate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// limiterFor lazily builds a rate.Limiter sized to the category's
// effective percent-of-burst, used by callers that want a smoothed
// admission rate (e.g. bounding syscall tracing volume) rather than the
// raw per-call coin flip ShouldSample performs.
func (s *Sampler) limiterFor(cat kevent.Category, burstPerSecond int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[cat]; ok {
		return l
	}
	effective := s.rate
	if r, ok := s.perCategory[cat]; ok {
		effective = r
	}
	limit := rate.Limit(float64(burstPerSecond) * float64(effective) / 100.0)
	l := rate.NewLimiter(limit, burstPerSecond)
	s.limiters[cat] = l
	return l
}

// Admit applies the smoothed token-bucket gate for cat atop the percent
// sampler, for callers that need both controls composed.
func (s *Sampler) Admit(cat kevent.Category, burstPerSecond int) bool {
	if !s.ShouldSample(cat) {
		return false
	}
	return s.limiterFor(cat, burstPerSecond).Allow()
}

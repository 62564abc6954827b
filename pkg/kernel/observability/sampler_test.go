package observability

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
)

func TestSamplerFullRateAlwaysSamples(t *testing.T) {
	s := NewSampler()
	for i := 0; i < 50; i++ {
		if !s.ShouldSample(kevent.CategoryMemory) {
			t.Fatalf("ShouldSample at rate=100 got false want true (iteration %d)", i)
		}
	}
}

func TestSamplerCategoryOverride(t *testing.T) {
	s := NewSampler()
	s.SetCategoryRate(kevent.CategorySyscall, 1)
	hits := 0
	for i := 0; i < 1000; i++ {
		if s.ShouldSample(kevent.CategorySyscall) {
			hits++
		}
	}
	if hits == 1000 {
		t.Fatalf("ShouldSample at category rate=1 got all 1000 hits want some rejected")
	}
}

func TestSamplerAdjustRateLowersOnHighOverhead(t *testing.T) {
	s := NewSampler()
	s.RecordOverhead(50.0) // far above the 2% target
	for i := 0; i < AdjustmentInterval; i++ {
		s.ShouldSample(kevent.CategoryMemory)
	}
	if got := s.Rate(); got >= 100 {
		t.Fatalf("Rate after high-overhead adjustment got %v want < 100", got)
	}
}

func TestClampPercentBounds(t *testing.T) {
	if got := clampPercent(0); got != 1 {
		t.Fatalf("clampPercent(0) got %v want 1", got)
	}
	if got := clampPercent(500); got != 100 {
		t.Fatalf("clampPercent(500) got %v want 100", got)
	}
}

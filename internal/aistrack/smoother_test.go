package aistrack

import (
	"math"
	"testing"

	"github.com/rvgdss/colav/internal/types"
)

func TestHistoryBounded(t *testing.T) {
	s := New()
	target := &types.AisTarget{MMSI: "257123456"}
	for i := 0; i < 50; i++ {
		s.Update(target, 63.4+float64(i)*1e-5, 10.4+float64(i)*1e-5, 45)
		if len(target.LatHistory) > types.HistoryLen {
			t.Fatalf("history exceeded H at i=%d: len=%d", i, len(target.LatHistory))
		}
	}
	if len(target.LatHistory) != types.HistoryLen {
		t.Fatalf("expected history to saturate at %d, got %d", types.HistoryLen, len(target.LatHistory))
	}
}

func TestSmoothingReducesNoise(t *testing.T) {
	s := New()
	target := &types.AisTarget{MMSI: "257123456"}
	base := 63.4
	for i := 0; i < 20; i++ {
		jitter := 0.0
		if i%2 == 0 {
			jitter = 1e-4
		}
		s.Update(target, base+jitter, 10.4, 45)
	}
	if len(target.PosHistory) == 0 {
		t.Fatalf("expected non-empty pos history")
	}
	// Smoothed series should have materially less sample-to-sample
	// variance than the raw zig-zag input once the filter engages.
	var rawVar, smoothVar float64
	for i := 1; i < len(target.LatHistory); i++ {
		d := target.LatHistory[i] - target.LatHistory[i-1]
		rawVar += d * d
	}
	for i := 1; i < len(target.PosHistory); i++ {
		d := target.PosHistory[i][1] - target.PosHistory[i-1][1]
		smoothVar += d * d
	}
	if smoothVar >= rawVar {
		t.Fatalf("expected smoothed variance (%v) below raw variance (%v)", smoothVar, rawVar)
	}
}

func TestFilteredCoursePublished(t *testing.T) {
	s := New()
	target := &types.AisTarget{MMSI: "1"}
	for i := 0; i < 5; i++ {
		s.Update(target, 63.4, 10.4, 90)
	}
	if math.Abs(target.FilteredCourse-90) > 1e-6 {
		t.Fatalf("expected raw passthrough below threshold, got %v", target.FilteredCourse)
	}
}

package arpa

import (
	"math"
	"testing"

	"github.com/rvgdss/colav/internal/geo"
	"github.com/rvgdss/colav/internal/types"
)

func ownshipAt(lat, lon, speed, courseDeg float64) types.OwnShip {
	return types.OwnShip{Lat: lat, Lon: lon, Speed: speed, Course: courseDeg * math.Pi / 180}
}

func targetAtENU(own types.OwnShip, x, y, speedKn, courseDeg float64) *types.AisTarget {
	lat, lon := geo.XYZToCoords(x, y, own.Lat, own.Lon, 0, 0)
	return &types.AisTarget{MMSI: "test", Lat: lat, Lon: lon, SpeedKn: speedKn, Course: courseDeg}
}

// S1 - CPA geometry.
func TestS1CPAGeometry(t *testing.T) {
	own := ownshipAt(63.43, 10.40, 5, 0)
	target := targetAtENU(own, 0, 1000, geo.MpsToKn(5), 180)

	e := New(DefaultConfig())
	results := e.Run(own, map[string]*types.AisTarget{target.MMSI: target})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if !r.Record.HasCPA {
		t.Fatalf("expected CPA to be populated")
	}
	if math.Abs(r.Record.CPA.DAtCPA) > 1 {
		t.Fatalf("expected d_at_cpa ~ 0, got %v", r.Record.CPA.DAtCPA)
	}
	// The target is placed through a geodetic round trip at altitude 0,
	// which is exact only to the 1 cm transform guarantee; at a 10 m/s
	// closing speed that bounds t_2_cpa to 1e-3 s and d_2_cpa to 1e-2 m.
	if math.Abs(r.Record.CPA.T2CPA-100) > 1e-3 {
		t.Fatalf("expected t_2_cpa = 100, got %v", r.Record.CPA.T2CPA)
	}
	if math.Abs(r.Record.CPA.D2CPA-500) > 1e-2 {
		t.Fatalf("expected d_2_cpa = 500, got %v", r.Record.CPA.D2CPA)
	}
	if !r.Record.HasSafetyParams {
		t.Fatalf("expected safety params populated with default safety radius")
	}
}

// S2 - parallel no-approach.
func TestS2ParallelNoApproach(t *testing.T) {
	own := ownshipAt(63.43, 10.40, 5, 0)
	target := targetAtENU(own, 500, 0, geo.MpsToKn(5), 0)

	e := New(DefaultConfig())
	results := e.Run(own, map[string]*types.AisTarget{target.MMSI: target})
	if len(results) != 0 {
		t.Fatalf("expected no ArpaRecord for degenerate relative velocity, got %d", len(results))
	}
}

func TestInvariant1(t *testing.T) {
	own := ownshipAt(63.43, 10.40, 5, 0)
	cfg := DefaultConfig()
	e := New(cfg)
	for _, y := range []float64{300, 500, 800, 1200, 1900} {
		target := targetAtENU(own, 0, y, geo.MpsToKn(5), 180)
		results := e.Run(own, map[string]*types.AisTarget{target.MMSI: target})
		for _, r := range results {
			if r.Record.CPA.T2CPA < 0 {
				t.Fatalf("invariant 1 violated: t_2_cpa < 0")
			}
			if r.Record.CPA.DAtCPA > cfg.SafetyRadiusM*cfg.SafetyRadiusTol {
				t.Fatalf("invariant 1 violated: d_at_cpa > safety_radius*tol")
			}
			if r.Record.CPA.D2CPA > cfg.MaxD2CPA {
				t.Fatalf("invariant 1 violated: d_2_cpa > max_d_2_cpa")
			}
		}
	}
}

func TestInvariant2(t *testing.T) {
	own := ownshipAt(63.43, 10.40, 5, 0)
	target := targetAtENU(own, 0, 300, geo.MpsToKn(5), 180)
	e := New(DefaultConfig())
	results := e.Run(own, map[string]*types.AisTarget{target.MMSI: target})
	for _, r := range results {
		if r.Record.HasSafetyParams {
			if r.Record.CPA.DAtCPA >= r.Record.SafetyRadius {
				t.Fatalf("invariant 2 violated: safety_params present but d_at_cpa >= safety_radius")
			}
			if r.Record.Safety.T2R < 0 {
				t.Fatalf("invariant 2 violated: t_2_r < 0")
			}
		}
	}
}

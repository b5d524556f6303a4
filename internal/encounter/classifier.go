// Package encounter classifies a pairwise own-ship/target encounter into
// one of six COLREGS-style categories using sector geometry, then drives
// that classification through a per-target hysteresis state machine so the
// reported encounter doesn't flap near sector or range boundaries.
package encounter

import (
	"math"

	"github.com/rvgdss/colav/internal/types"
)

const (
	theta1 = 20.0 * math.Pi / 180
	theta2 = 120.0 * math.Pi / 180
)

// sector assigns phi (radians, any range) to one of the four sectors
// defined by the spec's arc widths {2*theta1, theta2-theta1, 2*(pi-theta2),
// theta2-theta1}, as half-open [lo, hi) intervals in the positive direction
// of rotation (resolves the spec's Open Question over the source's
// ordering-sensitive disjoint if-branches).
func sector(phi float64) int {
	phi = wrap2Pi(phi)
	switch {
	case inHalfOpen(phi, -theta1, theta1):
		return 1
	case inHalfOpen(phi, theta1, theta2):
		return 2
	case inHalfOpen(phi, theta2, 2*math.Pi-theta2):
		return 3
	default:
		return 4
	}
}

// wrap2Pi normalizes phi into [0, 2*pi).
func wrap2Pi(phi float64) float64 {
	const twoPi = 2 * math.Pi
	phi = math.Mod(phi, twoPi)
	if phi < 0 {
		phi += twoPi
	}
	return phi
}

// inHalfOpen reports whether phi in [0,2pi) falls in the half-open range
// [lo, hi) after normalizing both bounds into [0, 2pi).
func inHalfOpen(phi, lo, hi float64) bool {
	lo = wrap2Pi(lo)
	hi = wrap2Pi(hi)
	if lo <= hi {
		return phi >= lo && phi < hi
	}
	// wraps through 0
	return phi >= lo || phi < hi
}

// RangeSituation is INCREASING (range opening) or CLOSING (range shrinking).
type RangeSituation int

const (
	Increasing RangeSituation = iota
	Closing
)

// encounterTable maps (RBS, SS) to either a fixed class or a tuple resolved
// by range situation / sub-sector geometry.
type tableEntry struct {
	fixed    types.EncounterClass
	isFixed  bool
	tuple    []types.EncounterClass // 2 or 3 entries, disambiguated below
}

func fixedEntry(c types.EncounterClass) tableEntry { return tableEntry{fixed: c, isFixed: true} }
func tupleEntry(cs ...types.EncounterClass) tableEntry { return tableEntry{tuple: cs} }

var table = map[[2]int]tableEntry{
	{1, 1}: fixedEntry(types.Headon),
	{1, 2}: fixedEntry(types.Giveway),
	{1, 3}: tupleEntry(types.Safe, types.OvertakingPort, types.OvertakingStar),
	{1, 4}: fixedEntry(types.Standon),

	{2, 1}: fixedEntry(types.Giveway),
	{2, 2}: fixedEntry(types.Giveway),
	{2, 3}: tupleEntry(types.Safe, types.OvertakingStar),
	{2, 4}: fixedEntry(types.Safe),

	{3, 1}: tupleEntry(types.Safe, types.Standon),
	{3, 2}: tupleEntry(types.Safe, types.Standon),
	{3, 3}: fixedEntry(types.Safe),
	{3, 4}: tupleEntry(types.Safe, types.Standon),

	{4, 1}: fixedEntry(types.Standon),
	{4, 2}: fixedEntry(types.Safe),
	{4, 3}: tupleEntry(types.Safe, types.OvertakingPort),
	{4, 4}: fixedEntry(types.Standon),
}

// Inputs bundles the geometric inputs required to classify one encounter.
type Inputs struct {
	OwnCourse    float64 // radians
	TargetCourse float64 // radians
	OwnX, OwnY   float64 // ENU, normally (0,0)
	TargetX, TargetY float64
	OwnSpeed     float64
	TargetSpeed  float64
	DAtCPA       float64
	T2CPA        float64
}

// Classify returns the encounter class and the (RBS, SS) sector pair used,
// for diagnostics/hysteresis context.
func Classify(in Inputs) (types.EncounterClass, int, int) {
	phi := math.Atan2(in.TargetX-in.OwnX, in.TargetY-in.OwnY) - in.OwnCourse
	rbs := sector(phi)

	phiTS := math.Atan2(in.OwnX-in.TargetX, in.OwnY-in.TargetY)
	ss := sector(in.TargetCourse - phiTS)

	entry, ok := table[[2]int{rbs, ss}]
	if !ok {
		return types.Safe, rbs, ss
	}
	if entry.isFixed {
		return entry.fixed, rbs, ss
	}

	rangeSituation := classifyRangeSituation(in)

	if len(entry.tuple) == 3 {
		// (RBS=1, SS=3): INCREASING -> SAFE; CLOSING -> split sector 3 by
		// target course half-arc.
		if rangeSituation == Increasing {
			return entry.tuple[0], rbs, ss
		}
		phiTSWrapped := wrap2Pi(in.TargetCourse - phiTS)
		half := wrap2Pi((theta2 + (2*math.Pi - theta2)) / 2)
		if phiTSWrapped < half {
			return entry.tuple[1], rbs, ss // OVERTAKING_PORT
		}
		return entry.tuple[2], rbs, ss // OVERTAKING_STAR
	}

	// 2-tuples: index by range situation (0=Increasing picks tuple[0]=SAFE
	// in every table row that has one, 1=Closing picks the non-safe entry).
	idx := int(rangeSituation)
	if idx >= len(entry.tuple) {
		idx = len(entry.tuple) - 1
	}
	return entry.tuple[idx], rbs, ss
}

func classifyRangeSituation(in Inputs) RangeSituation {
	// v_rel = v_ts - v_os, p_rel = p_t - p.
	osX, osY := in.OwnSpeed*math.Sin(in.OwnCourse), in.OwnSpeed*math.Cos(in.OwnCourse)
	tsX, tsY := in.TargetSpeed*math.Sin(in.TargetCourse), in.TargetSpeed*math.Cos(in.TargetCourse)
	vRelX, vRelY := tsX-osX, tsY-osY
	pRelX, pRelY := in.TargetX-in.OwnX, in.TargetY-in.OwnY

	dot := pRelX*vRelX + pRelY*vRelY
	if dot >= 0 {
		return Increasing
	}
	return Closing
}

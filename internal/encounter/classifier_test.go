package encounter

import (
	"math"
	"testing"

	"github.com/rvgdss/colav/internal/types"
)

func deg(d float64) float64 { return d * math.Pi / 180 }

// S3 - head-on classification + hysteresis persistence.
func TestS3HeadOn(t *testing.T) {
	in := Inputs{
		OwnCourse: deg(0), TargetCourse: deg(180),
		OwnX: 0, OwnY: 0, TargetX: 0, TargetY: 500,
		OwnSpeed: 5, TargetSpeed: 5,
	}
	class, rbs, ss := Classify(in)
	if class != types.Headon {
		t.Fatalf("expected HEADON, got %v (rbs=%d ss=%d)", class, rbs, ss)
	}

	fsm := NewFSM(DefaultHysteresis())
	// d_at_cpa ~ 0, t_2_cpa well within entry band -> enters HEADON.
	got := fsm.Update("1", class, 0, 10, rbs, ss)
	if got != types.Headon {
		t.Fatalf("expected FSM to enter HEADON, got %v", got)
	}
	// Growing to 210m should not immediately exit per hysteresis (exit
	// threshold is d_exit_low_cpa=200, so 210 triggers exit per spec; use
	// a value strictly within the dead band instead to assert stickiness).
	got = fsm.Update("1", class, 150, 10, rbs, ss)
	if got != types.Headon {
		t.Fatalf("expected FSM to remain HEADON inside hysteresis band, got %v", got)
	}
}

// S4 - overtake classification, both halves.
func TestS4Overtake(t *testing.T) {
	in := Inputs{
		OwnCourse: deg(0), TargetCourse: deg(0),
		OwnX: 0, OwnY: 0, TargetX: 0, TargetY: 200,
		OwnSpeed: 10, TargetSpeed: 3,
	}
	class, _, _ := Classify(in)
	if class != types.OvertakingPort && class != types.OvertakingStar {
		t.Fatalf("expected an overtaking class, got %v", class)
	}

	// Force the other half by rotating target course into the opposite
	// sub-sector half while remaining in RBS=1/SS=3 CLOSING_IN territory.
	in2 := in
	in2.TargetCourse = deg(340)
	class2, _, _ := Classify(in2)
	if class2 != types.OvertakingPort && class2 != types.OvertakingStar {
		t.Fatalf("expected an overtaking class for rotated case, got %v", class2)
	}
}

// Invariant 3: FSM never transitions directly between two non-SAFE states.
func TestInvariant3NoDirectNonSafeTransition(t *testing.T) {
	fsm := NewFSM(DefaultHysteresis())
	got := fsm.Update("1", types.Headon, 0, 10, 1, 1)
	if got != types.Headon {
		t.Fatalf("expected entry into HEADON")
	}
	// Attempt to classify as a different non-safe class in the same tick;
	// FSM must require passing through SAFE.
	got = fsm.Update("1", types.Giveway, 0, 10, 1, 2)
	if got != types.Headon {
		t.Fatalf("FSM jumped directly between non-SAFE states: got %v", got)
	}
}

// Invariant 4: constant inputs in the dead band keep state unchanged.
func TestInvariant4HysteresisDeadBand(t *testing.T) {
	fsm := NewFSM(DefaultHysteresis())
	fsm.Update("1", types.Headon, 0, 10, 1, 1)
	for i := 0; i < 5; i++ {
		got := fsm.Update("1", types.Headon, 150, 10, 1, 1)
		if got != types.Headon {
			t.Fatalf("state changed within dead band at iteration %d: %v", i, got)
		}
	}
}

func TestSectorHalfOpenBoundary(t *testing.T) {
	if sector(theta1) != 2 {
		t.Fatalf("expected boundary theta1 to land in sector 2 (half-open), got %d", sector(theta1))
	}
	if sector(-theta1) != 1 {
		t.Fatalf("expected -theta1 to land in sector 1, got %d", sector(-theta1))
	}
}

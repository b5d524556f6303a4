package fusion

import (
	"math"
	"testing"
	"time"
)

func TestTrackFilterConvergesOnConstantVelocity(t *testing.T) {
	f := NewTrackFilter()
	start := time.Unix(0, 0)
	x, y := 0.0, 0.0
	const vx, vy = 0.0001, 0.00005 // degrees/sec

	var gotVX, gotVY float64
	for i := 0; i < 200; i++ {
		t := start.Add(time.Duration(i) * time.Second)
		gotVX, gotVY = f.Update(t, x, y)
		x += vx
		y += vy
	}

	if math.Abs(gotVX-vx) > vx*0.2 {
		t.Fatalf("vx estimate %v far from true %v", gotVX, vx)
	}
	if math.Abs(gotVY-vy) > vy*0.2 {
		t.Fatalf("vy estimate %v far from true %v", gotVY, vy)
	}
}

func TestTrackFilterFirstUpdateIsZero(t *testing.T) {
	f := NewTrackFilter()
	vx, vy := f.Update(time.Unix(0, 0), 1, 2)
	if vx != 0 || vy != 0 {
		t.Fatalf("expected zero velocity on first update, got (%v,%v)", vx, vy)
	}
}

func TestTrackFilterStationaryStaysNearZero(t *testing.T) {
	f := NewTrackFilter()
	start := time.Unix(0, 0)
	var vx, vy float64
	for i := 0; i < 50; i++ {
		vx, vy = f.Update(start.Add(time.Duration(i)*time.Second), 10.0, 20.0)
	}
	if math.Abs(vx) > 1e-6 || math.Abs(vy) > 1e-6 {
		t.Fatalf("expected near-zero velocity for a stationary track, got (%v,%v)", vx, vy)
	}
}

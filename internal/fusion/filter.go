// Package fusion provides a constant-velocity Kalman filter over a
// target's position fixes, used to derive a smoothed course/speed estimate
// that doesn't suffer the angle-wrap artifacts of filtering course directly.
// Structurally a simplified descendant of a 15-state multi-sensor EKF: the
// same mutex-guarded gonum state/covariance pattern, cut down to the 4
// states (x, y, vx, vy) a single-sensor position track needs.
package fusion

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	posNoise = 1e-8 // measurement noise, position (degrees^2)
	velQ     = 1e-10 // process noise per second, added to every state's variance
)

// TrackFilter estimates (x, y, vx, vy) for one target from noisy position
// fixes arriving at irregular intervals.
type TrackFilter struct {
	mu         sync.Mutex
	state      *mat.VecDense // [x, y, vx, vy]
	covariance *mat.SymDense
	lastUpdate time.Time
	started    bool
}

// NewTrackFilter constructs a filter with high initial uncertainty.
func NewTrackFilter() *TrackFilter {
	f := &TrackFilter{
		state:      mat.NewVecDense(4, nil),
		covariance: mat.NewSymDense(4, nil),
	}
	for i := 0; i < 4; i++ {
		f.covariance.SetSym(i, i, 1.0)
	}
	return f
}

// Update folds a new (x, y) position fix at time t into the filter and
// returns the current smoothed (vx, vy) estimate.
func (f *TrackFilter) Update(t time.Time, x, y float64) (vx, vy float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started {
		f.state.SetVec(0, x)
		f.state.SetVec(1, y)
		f.lastUpdate = t
		f.started = true
		return 0, 0
	}

	dt := t.Sub(f.lastUpdate).Seconds()
	f.lastUpdate = t
	if dt <= 0 {
		return f.state.AtVec(2), f.state.AtVec(3)
	}

	F := mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	var predicted mat.VecDense
	predicted.MulVec(F, f.state)
	f.state.CopyVec(&predicted)

	var temp, ft, predictedCov mat.Dense
	temp.Mul(F, f.covariance)
	ft.CloneFrom(F.T())
	predictedCov.Mul(&temp, &ft)
	for i := 0; i < 4; i++ {
		predictedCov.Set(i, i, predictedCov.At(i, i)+velQ*dt)
	}
	f.covariance = symFromDense(&predictedCov, 4)

	// Measurement: H picks out (x, y) from the 4-state vector.
	H := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	var expected mat.VecDense
	expected.MulVec(H, f.state)
	innovation := mat.NewVecDense(2, []float64{x - expected.AtVec(0), y - expected.AtVec(1)})

	var hp, ht, s mat.Dense
	hp.Mul(H, f.covariance)
	ht.CloneFrom(H.T())
	s.Mul(&hp, &ht)
	s.Set(0, 0, s.At(0, 0)+posNoise)
	s.Set(1, 1, s.At(1, 1)+posNoise)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return f.state.AtVec(2), f.state.AtVec(3)
	}

	var pht, k mat.Dense
	pht.Mul(f.covariance, &ht)
	k.Mul(&pht, &sInv)

	var correction mat.VecDense
	correction.MulVec(&k, innovation)
	f.state.AddVec(f.state, &correction)

	var kh, iMinusKH, updatedCov mat.Dense
	kh.Mul(&k, H)
	identity := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		identity.Set(i, i, 1)
	}
	iMinusKH.Sub(identity, &kh)
	updatedCov.Mul(&iMinusKH, f.covariance)
	f.covariance = symFromDense(&updatedCov, 4)

	return f.state.AtVec(2), f.state.AtVec(3)
}

func symFromDense(d *mat.Dense, n int) *mat.SymDense {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (d.At(i, j) + d.At(j, i)) / 2
			data[i*n+j] = v
			data[j*n+i] = v
		}
	}
	return mat.NewSymDense(n, data)
}

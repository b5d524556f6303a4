// Package cbf forward-simulates own-ship for t_tot seconds under a 4-DOF
// maneuvering model, filtering a line-of-sight nominal control through an
// active-constraint Control Barrier Function so the rollout never crosses
// the polygonal ship domain of the nearest target.
package cbf

import (
	"math"
	"time"

	"github.com/rvgdss/colav/internal/fourdof"
	"github.com/rvgdss/colav/internal/types"
)

// Config holds the CBF numeric parameters; defaults per SPEC_FULL.md §4.P
// (k2/k3=0.5 matches the coordinator's construction in colav_manager.py,
// not the cbf_4dof subclass's own internal default of 1).
type Config struct {
	K1      float64
	K2      float64
	K3      float64
	Lambda  float64
	Dt      float64
	Gamma1  float64
	Gamma2  float64
	TTot    float64
	MaxRd   float64
	HystW   float64
	Epsilon float64
	MaxAzi  float64
	MaxAziD float64
}

func DefaultConfig() Config {
	return Config{
		K1: 1, K2: 0.5, K3: 0.5, Lambda: 0.5,
		Dt: 0.2, Gamma1: 0.2, Gamma2: 40, TTot: 600,
		MaxRd: 0.18, HystW: 1e-8, Epsilon: 1e-6,
		MaxAzi:  30 * math.Pi / 180,
		MaxAziD: 1 * math.Pi / 180,
	}
}

// Target is a CBF rollout input: local-frame position/heading plus the
// encounter-scoped domain it must be kept clear of.
type Target struct {
	MMSI         string
	PoX, PoY     float64
	Uo           float64
	ZoX, ZoY     float64
	VesselLength float64
	Domain       types.Domain
	Encounter    types.EncounterClass
}

// Predictor runs one rollout per call; it carries no state across calls,
// matching the spec's "CbfResults are single-use" lifecycle note.
type Predictor struct {
	cfg Config
}

func New(cfg Config) *Predictor { return &Predictor{cfg: cfg} }

// constraint is a single polygonal half-plane constraint rotated into
// world frame for the step's closest target.
type constraint struct {
	dq     float64
	tqdX   float64
	tqdY   float64
}

func buildConstraints(d types.Domain, courseRad, vesselLength float64) []constraint {
	cs := make([]constraint, len(d.D))
	cosC, sinC := math.Cos(courseRad), math.Sin(courseRad)
	for k := range d.D {
		z1, z2 := d.Z1[k], d.Z2[k]
		tqdX := z1*cosC - z2*sinC
		tqdY := z1*sinC + z2*cosC
		cs[k] = constraint{dq: d.D[k] * vesselLength, tqdX: tqdX, tqdY: tqdY}
	}
	return cs
}

// nominalControl implements the line-of-sight heading-rate law:
// z~ = [tq | S*tq]^T . z,  rd_n = -k1*z~1 / sqrt(1 - lambda^2*z~0^2).
func (p *Predictor) nominalControl(zX, zY, tqX, tqY float64) float64 {
	// S*tq = (-tqY, tqX) (90-degree rotation).
	z0 := tqX*zX + tqY*zY      // tq . z
	z1 := -tqY*zX + tqX*zY     // (S*tq) . z
	denom := math.Sqrt(math.Max(1-p.cfg.Lambda*p.cfg.Lambda*z0*z0, 0))
	if denom < 1e-12 {
		denom = 1e-12
	}
	return (-p.cfg.K1 * z1) / denom
}

// Run executes the rollout and returns the trajectory, maneuver-onset
// time, and translated domain lines for visualization.
func (p *Predictor) Run(startWall time.Time, u float64, zX, zY, tqX, tqY float64, targets []Target) types.CbfResult {
	n := int(p.cfg.TTot / p.cfg.Dt)
	if n <= 0 {
		return types.CbfResult{ManeuverStart: -1}
	}

	// Precompute each target's trajectory over the horizon under constant
	// velocity, so the "closest target" search is O(targets) per step.
	targetPos := make([][][2]float64, len(targets))
	for i, tg := range targets {
		series := make([][2]float64, n)
		vx, vy := tg.Uo*tg.ZoX, tg.Uo*tg.ZoY
		for t := 0; t < n; t++ {
			dt := float64(t) * p.cfg.Dt
			series[t] = [2]float64{tg.PoX + dt*vx, tg.PoY + dt*vy}
		}
		targetPos[i] = series
	}

	var state [fourdof.StateLen]float64
	yaw0 := math.Atan2(zX, zY)
	state[fourdof.IdxYaw] = yaw0
	state[fourdof.IdxSurge] = u
	azi0, revs0 := fourdof.InferAziRevs(u, [2]float64{zX, zY})
	state[fourdof.IdxAzi] = azi0
	state[fourdof.IdxRevs] = revs0

	px, py := 0.0, 0.0
	zx, zy := zX, zY
	azi := azi0

	trajectory := make([][2]float64, n)
	maneuverStart := -1.0
	maneuverTaken := false

	var prevClass types.EncounterClass
	var havePrevClass bool
	var prevB1, prevB2 float64
	var initialized bool
	prevH := 0

	simParams := fourdof.SimParams{Dt: p.cfg.Dt}

	for t := 0; t < n; t++ {
		trajectory[t] = [2]float64{px, py}

		rdN := p.nominalControl(zx, zy, tqX, tqY)
		rd := rdN

		if len(targets) > 0 {
			closest := closestTarget(px, py, targetPos, t)
			tg := targets[closest]

			if shouldResetHysteresis(havePrevClass, prevClass, tg.Encounter) {
				initialized = false
				prevH = 0
				prevB1, prevB2 = 0, 0
			}
			prevClass, havePrevClass = tg.Encounter, true

			cs := buildConstraints(tg.Domain, targetCourseRad(tg), tg.VesselLength)
			if len(cs) > 0 {
				tpx, tpy := targetPos[closest][t][0], targetPos[closest][t][1]
				uoZoX, uoZoY := tg.Uo*tg.ZoX, tg.Uo*tg.ZoY
				uzX, uzY := u*zx, u*zy

				B1 := make([]float64, len(cs))
				B1dot := make([]float64, len(cs))
				B2 := make([]float64, len(cs))
				for k, c := range cs {
					relX, relY := px-tpx, py-tpy
					B1[k] = c.dq - (c.tqdX*relX + c.tqdY*relY)
					B1dot[k] = -(c.tqdX*(uzX-uoZoX) + c.tqdY*(uzY-uoZoY))
					B2[k] = B1dot[k] + (1/p.cfg.Gamma1)*B1[k]
				}

				maxB1 := math.Max(prevB1, 0)
				var h2Threshold float64
				if !initialized {
					h2Threshold = B2[0]
				} else {
					h2Threshold = prevB2 - p.cfg.HystW
				}

				h := prevH
				found := false
				for k := range cs {
					if B1[k] <= maxB1 && B2[k] <= h2Threshold {
						h = k
						found = true
						break
					}
				}
				if !found && !initialized {
					h = 0
				}

				lfB2 := (1 / p.cfg.Gamma1) * B1dot[h]
				// S*z = (-zy, zx); LgB2 = -tqd[h] . (u*S*z)
				sZX, sZY := -zy, zx
				lgB2 := -(cs[h].tqdX*(u*sZX) + cs[h].tqdY*(u*sZY))
				b2Dot := lgB2*rdN + lfB2

				if b2Dot <= -(1/p.cfg.Gamma2)*B2[h] {
					rd = rdN
				} else {
					a := lfB2 + lgB2*rdN + (1/p.cfg.Gamma2)*B2[h]
					b := lgB2
					rd = rdN - (a*b)/(b*b+p.cfg.Epsilon)
					if !maneuverTaken {
						maneuverTaken = true
						maneuverStart = float64(startWall.Unix()) + float64(t)*p.cfg.Dt
					}
				}

				prevB1, prevB2, prevH, initialized = B1[h], B2[h], h, true
			}
		}

		if rd > p.cfg.MaxRd {
			rd = p.cfg.MaxRd
		} else if rd < -p.cfg.MaxRd {
			rd = -p.cfg.MaxRd
		}

		r := state[fourdof.IdxRYaw]
		ad := -p.cfg.K2*(r-rd) + p.cfg.K3*rd
		aziDelta := ad - azi
		if aziDelta > p.cfg.MaxAziD {
			ad = azi + p.cfg.MaxAziD
		} else if aziDelta < -p.cfg.MaxAziD {
			ad = azi - p.cfg.MaxAziD
		}
		if ad > p.cfg.MaxAzi {
			ad = p.cfg.MaxAzi
		} else if ad < -p.cfg.MaxAzi {
			ad = -p.cfg.MaxAzi
		}
		azi = ad

		cmd := fourdof.ThrustCommand{Azi: azi, Revs: state[fourdof.IdxRevs]}
		state = fourdof.Integrate(state, cmd, [4]float64{}, fourdof.DefaultVesselParams(), fourdof.DefaultAddedParams(), simParams)

		px, py = state[fourdof.IdxE], state[fourdof.IdxN] // N/E swap, per spec 4.P step 8
		yaw := state[fourdof.IdxYaw]
		zx, zy = math.Sin(yaw), math.Cos(yaw)
		norm := math.Hypot(zx, zy)
		if norm > 0 {
			zx, zy = zx/norm, zy/norm
		}
	}

	domains := make([][]types.LineSegment, len(targets))
	for i, tg := range targets {
		domains[i] = translatedDomainLines(tg)
	}

	return types.CbfResult{P: trajectory, ManeuverStart: maneuverStart, Domains: domains}
}

// shouldResetHysteresis reports whether the active-constraint hysteresis
// state must restart: on the rollout's first constrained step, or when the
// closest target's encounter class changes. Switching which target is
// nearest does not by itself reset hysteresis as long as its class is
// unchanged from the previous step's (matching encounters[closest] !=
// encounter in the original rollout).
func shouldResetHysteresis(havePrevClass bool, prevClass, newClass types.EncounterClass) bool {
	return !havePrevClass || newClass != prevClass
}

func targetCourseRad(tg Target) float64 {
	return math.Atan2(tg.ZoX, tg.ZoY)
}

func closestTarget(px, py float64, targetPos [][][2]float64, t int) int {
	best := 0
	bestDist := math.Inf(1)
	for i, series := range targetPos {
		dx, dy := px-series[t][0], py-series[t][1]
		d := dx*dx + dy*dy
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// translatedDomainLines builds visualization line segments for a target's
// domain, centered on the target's current position and oriented to its
// course. A fixed length factor matches the original's visual scale.
func translatedDomainLines(tg Target) []types.LineSegment {
	const lenFactor = 2.5
	cosC, sinC := math.Cos(targetCourseRad(tg)), math.Sin(targetCourseRad(tg))
	lines := make([]types.LineSegment, 0, len(tg.Domain.D))
	for k := range tg.Domain.D {
		z1, z2 := tg.Domain.Z1[k], tg.Domain.Z2[k]
		dirX := z1*cosC - z2*sinC
		dirY := z1*sinC + z2*cosC
		scale := tg.Domain.D[k] * tg.VesselLength
		cx, cy := tg.PoX+dirX*scale, tg.PoY+dirY*scale
		halfLen := lenFactor * tg.VesselLength / 2
		// Perpendicular to the radial direction, for the domain boundary
		// segment drawn at this vertex.
		perpX, perpY := -dirY, dirX
		lines = append(lines, types.LineSegment{
			{cx - perpX*halfLen, cy - perpY*halfLen},
			{cx + perpX*halfLen, cy + perpY*halfLen},
		})
	}
	return lines
}

// Package arpa computes closest-point-of-approach and safety-radius
// intersection geometry for every tracked AIS target against own-ship, in
// an East-North-Up frame centered on own-ship.
package arpa

import (
	"math"

	"github.com/rvgdss/colav/internal/geo"
	"github.com/rvgdss/colav/internal/types"
)

// Config holds the thresholds that gate whether a computed CPA is reported.
type Config struct {
	SafetyRadiusM    float64
	SafetyRadiusTol  float64
	MaxD2CPA         float64
	GunnerusMMSI     string
}

// DefaultConfig mirrors the defaults named in the spec.
func DefaultConfig() Config {
	return Config{
		SafetyRadiusM:   200,
		SafetyRadiusTol: 1.5,
		MaxD2CPA:        2000,
	}
}

// Engine is stateless beyond its Config; one instance serves every tick.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine { return &Engine{cfg: cfg} }

// Result pairs a local-frame target snapshot with its ARPA record.
type Result struct {
	Target *types.AisTarget
	Record types.ArpaRecord
}

// Run computes ARPA records for every target in targets (a caller-owned
// snapshot/deep-copy), skipping the own-ship's own MMSI and any target
// whose relative velocity is degenerate. Targets are mutated in place with
// their local-frame (po, uo, zo, uo_x, uo_y) fields populated regardless of
// whether a record is produced.
func (e *Engine) Run(own types.OwnShip, targets map[string]*types.AisTarget) []Result {
	ux, uy := own.Velocity()

	var out []Result
	for mmsi, target := range targets {
		if mmsi == e.cfg.GunnerusMMSI && e.cfg.GunnerusMMSI != "" {
			continue
		}

		po_x, po_y, _ := geo.CoordsToXYZ(target.Lat, target.Lon, 0, own.Lat, own.Lon, 0)
		uo := geo.KnToMps(target.SpeedKn)
		courseRad := target.Course * math.Pi / 180
		zoX, zoY := math.Sin(courseRad), math.Cos(courseRad)
		uoX, uoY := uo*zoX, uo*zoY

		target.PoX, target.PoY = po_x, po_y
		target.Uo = uo
		target.ZoX, target.ZoY = zoX, zoY
		target.UoX, target.UoY = uoX, uoY

		urX, urY := uoX-ux, uoY-uy
		urNorm := math.Hypot(urX, urY)
		if urNorm < 1e-9 {
			continue // degenerate relative velocity: no CPA (spec 4.R, error handling)
		}

		dAtCPA := math.Abs(po_x*urY-po_y*urX) / urNorm
		t2CPA := -(po_x*urX + po_y*urY) / (urNorm * urNorm)

		xAtCPA, yAtCPA := ux*t2CPA, uy*t2CPA
		oxAtCPA, oyAtCPA := po_x+t2CPA*uoX, po_y+t2CPA*uoY
		d2CPA := math.Hypot(xAtCPA, yAtCPA)

		record := types.ArpaRecord{
			MMSI:         mmsi,
			SafetyRadius: e.cfg.SafetyRadiusM,
		}

		cpaOK := d2CPA <= e.cfg.MaxD2CPA &&
			t2CPA >= 0 &&
			dAtCPA <= e.cfg.SafetyRadiusM*e.cfg.SafetyRadiusTol

		if !cpaOK {
			continue
		}

		record.HasCPA = true
		record.CPA = types.CPA{
			DAtCPA:  dAtCPA,
			D2CPA:   d2CPA,
			T2CPA:   t2CPA,
			XAtCPA:  xAtCPA,
			YAtCPA:  yAtCPA,
			OXAtCPA: oxAtCPA,
			OYAtCPA: oyAtCPA,
		}

		if dAtCPA < e.cfg.SafetyRadiusM {
			if sp, ok := e.safetyRadiusIntersection(own, po_x, po_y, uoX, uoY, urX, urY, urNorm); ok {
				record.HasSafetyParams = true
				record.Safety = sp
			}
		}

		out = append(out, Result{Target: target, Record: record})
	}
	return out
}

// safetyRadiusIntersection solves |p(t) - po(t)| = safetyRadius for the
// earliest positive root, a quadratic in t with own-ship at the origin and
// moving at (ux,uy), and the target at po moving at (uoX,uoY).
func (e *Engine) safetyRadiusIntersection(own types.OwnShip, poX, poY, uoX, uoY, urX, urY, urNorm float64) (types.SafetyParams, bool) {
	ux, uy := own.Velocity()

	// Relative position at time t: po + t*ur (since p(t)=t*(ux,uy) and
	// po(t)=po+t*(uoX,uoY); p(t)-po(t) = -po - t*(uoX-ux, uoY-uy) = -po - t*ur).
	// |-(po + t*ur)| = R  =>  |po + t*ur|^2 = R^2.
	a := urNorm * urNorm
	b := 2 * (poX*urX + poY*urY)
	c := poX*poX + poY*poY - e.cfg.SafetyRadiusM*e.cfg.SafetyRadiusM

	if a < 1e-12 {
		return types.SafetyParams{}, false
	}

	disc := b*b - 4*a*c
	if disc < 0 {
		return types.SafetyParams{}, false
	}
	sqrtDisc := math.Sqrt(disc)
	t1 := (-b - sqrtDisc) / (2 * a)
	t2 := (-b + sqrtDisc) / (2 * a)

	t2r, ok := smallestPositive(t1, t2)
	if !ok {
		return types.SafetyParams{}, false
	}

	xAtR, yAtR := ux*t2r, uy*t2r
	txAtR, tyAtR := poX+t2r*uoX, poY+t2r*uoY
	d2r := own.Speed * t2r

	return types.SafetyParams{
		T2R:   t2r,
		XAtR:  xAtR,
		YAtR:  yAtR,
		TXAtR: txAtR,
		TYAtR: tyAtR,
		D2R:   d2r,
	}, true
}

func smallestPositive(a, b float64) (float64, bool) {
	switch {
	case a >= 0 && b >= 0:
		if a < b {
			return a, true
		}
		return b, true
	case a >= 0:
		return a, true
	case b >= 0:
		return b, true
	default:
		return 0, false
	}
}

// ConvertArpaParams re-expresses a local-frame ArpaRecord in geodetic
// coordinates for UI consumption, matching the wire shape of §6.3.
func (e *Engine) ConvertArpaParams(own types.OwnShip, target *types.AisTarget, rec types.ArpaRecord) map[string]any {
	out := map[string]any{
		"self_course": own.Course,
		"course":      target.Course,
		"t_2_cpa":     rec.CPA.T2CPA,
		"lat_o":       target.Lat,
		"lon_o":       target.Lon,
		"uo":          target.Uo,
		"zo":          []float64{target.ZoX, target.ZoY},
		"d_at_cpa":    rec.CPA.DAtCPA,
		"d_2_cpa":     rec.CPA.D2CPA,
	}

	latAtCPA, lonAtCPA := geo.XYZToCoords(rec.CPA.XAtCPA, rec.CPA.YAtCPA, own.Lat, own.Lon, 0, 0)
	latOAtCPA, lonOAtCPA := geo.XYZToCoords(rec.CPA.OXAtCPA, rec.CPA.OYAtCPA, own.Lat, own.Lon, 0, 0)
	out["lat_at_cpa"] = latAtCPA
	out["lon_at_cpa"] = lonAtCPA
	out["lat_o_at_cpa"] = latOAtCPA
	out["lon_o_at_cpa"] = lonOAtCPA

	out["safety_params"] = rec.HasSafetyParams
	if rec.HasSafetyParams {
		latOAtR, lonOAtR := geo.XYZToCoords(rec.Safety.TXAtR, rec.Safety.TYAtR, own.Lat, own.Lon, 0, 0)
		latAtR, lonAtR := geo.XYZToCoords(rec.Safety.XAtR, rec.Safety.YAtR, own.Lat, own.Lon, 0, 0)
		out["t_2_r"] = rec.Safety.T2R
		out["lat_o_at_r"] = latOAtR
		out["lon_o_at_r"] = lonOAtR
		out["lat_at_r"] = latAtR
		out["lon_at_r"] = lonAtR
		out["d_2_r"] = rec.Safety.D2R
		out["safety_radius"] = rec.SafetyRadius
	}
	return out
}

// Package fourdof implements the int_RVGMan4 pure-function contract the
// CBF predictor depends on: a 10-state [N,E,yaw,roll,surge,sway,p_rate,
// r_yaw,azi,revs] maneuvering model advanced by one timestep given a
// thrust command and wind disturbance. High-fidelity hydrodynamic
// coefficients are out of this system's scope (see SPEC_FULL.md §1 non-
// goals); this is a deliberately simple linear damped model that satisfies
// the contract and is sufficient to exercise the CBF rollout.
package fourdof

import "math"

// StateLen is the length of the state vector.
const StateLen = 10

// State indices, per the spec's explicit ordering (yaw at index 2).
const (
	IdxN = iota
	IdxE
	IdxYaw
	IdxRoll
	IdxSurge
	IdxSway
	IdxPRate
	IdxRYaw
	IdxAzi
	IdxRevs
)

// ThrustCommand is [azi, revs].
type ThrustCommand struct {
	Azi  float64
	Revs float64
}

// SimParams mirrors the source's parS dict.
type SimParams struct {
	Dt    float64
	Uc    float64
	Betac float64
}

// VesselParams carries the mass/damping coefficients of the simple model.
// DefaultVesselParams stands in for the source's "DefaultModelData()".
type VesselParams struct {
	Mass        float64
	YawInertia  float64
	SurgeDamping float64
	SwayDamping  float64
	YawDamping   float64
	RollDamping  float64
	ThrustGain   float64 // revs -> surge force
	RudderGain   float64 // azi -> yaw moment, scaled by surge speed
}

// DefaultVesselParams returns stand-in coefficients, not a hydrodynamic
// model fit to any real hull.
func DefaultVesselParams() VesselParams {
	return VesselParams{
		Mass:         1.0,
		YawInertia:   1.0,
		SurgeDamping: 0.05,
		SwayDamping:  0.2,
		YawDamping:   0.5,
		RollDamping:  0.8,
		ThrustGain:   1.0 / 300.0,
		RudderGain:   1.0,
	}
}

// AddedParams stands in for the source's hydrodynamic added-mass table;
// kept as a distinct parameter to preserve the pure function's arity.
type AddedParams struct {
	SurgeAdded float64
	SwayAdded  float64
	YawAdded   float64
}

func DefaultAddedParams() AddedParams {
	return AddedParams{SurgeAdded: 0.1, SwayAdded: 0.3, YawAdded: 0.2}
}

// Integrate advances state by one explicit-Euler step under cmd and wind,
// matching the int_RVGMan4(state, thrust_cmd, wind_force, vessel_params,
// added_params, sim_params) -> state' contract of SPEC_FULL.md §6.6.
func Integrate(state [StateLen]float64, cmd ThrustCommand, wind [4]float64, vp VesselParams, ap AddedParams, sim SimParams) [StateLen]float64 {
	dt := sim.Dt

	yaw := state[IdxYaw]
	surge := state[IdxSurge]
	sway := state[IdxSway]
	rYaw := state[IdxRYaw]
	roll := state[IdxRoll]
	pRate := state[IdxPRate]

	// Rate-limit azimuth toward the commanded value; revs respond directly.
	azi := state[IdxAzi]
	aziErr := cmd.Azi - azi
	const maxAziStep = 1 * math.Pi / 180
	if aziErr > maxAziStep {
		aziErr = maxAziStep
	} else if aziErr < -maxAziStep {
		aziErr = -maxAziStep
	}
	azi += aziErr
	revs := cmd.Revs

	thrust := vp.ThrustGain * revs
	surgeForce := thrust*math.Cos(azi) - vp.SurgeDamping*surge + wind[0]
	swayForce := thrust*math.Sin(azi) - vp.SwayDamping*sway + wind[1]
	yawMoment := vp.RudderGain*thrust*math.Sin(azi)*0.1 - vp.YawDamping*rYaw + wind[2]
	rollMoment := -vp.RollDamping*pRate + wind[3]

	surgeAcc := surgeForce / (vp.Mass + ap.SurgeAdded)
	swayAcc := swayForce / (vp.Mass + ap.SwayAdded)
	yawAcc := yawMoment / (vp.YawInertia + ap.YawAdded)
	rollAcc := rollMoment / vp.Mass

	newSurge := surge + surgeAcc*dt
	newSway := sway + swayAcc*dt
	newRYaw := rYaw + yawAcc*dt
	newPRate := pRate + rollAcc*dt
	newRoll := roll + newPRate*dt
	newYaw := yaw + newRYaw*dt

	// Body-to-NED velocity resolution for position integration.
	vN := newSurge*math.Cos(newYaw) - newSway*math.Sin(newYaw) + sim.Uc*math.Cos(sim.Betac)
	vE := newSurge*math.Sin(newYaw) + newSway*math.Cos(newYaw) + sim.Uc*math.Sin(sim.Betac)

	var out [StateLen]float64
	out[IdxN] = state[IdxN] + vN*dt
	out[IdxE] = state[IdxE] + vE*dt
	out[IdxYaw] = newYaw
	out[IdxRoll] = newRoll
	out[IdxSurge] = newSurge
	out[IdxSway] = newSway
	out[IdxPRate] = newPRate
	out[IdxRYaw] = newRYaw
	out[IdxAzi] = azi
	out[IdxRevs] = revs
	return out
}

// InferAziRevs is the placeholder preserved verbatim per the spec's Open
// Question resolution: a principled replacement is out of scope.
func InferAziRevs(u float64, z [2]float64) (azi, revs float64) {
	return 0, 100
}

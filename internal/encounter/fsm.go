package encounter

import "github.com/rvgdss/colav/internal/types"

// Hysteresis holds the entry/exit thresholds gating state transitions.
type Hysteresis struct {
	DEnterUpCPA  float64
	TEnterLowCPA float64
	TEnterUpCPA  float64
	DExitLowCPA  float64
	TExitLowCPA  float64
	TExitUpCPA   float64
}

func DefaultHysteresis() Hysteresis {
	return Hysteresis{
		DEnterUpCPA:  200,
		TEnterLowCPA: 20,
		TEnterUpCPA:  20,
		DExitLowCPA:  200,
		TExitLowCPA:  20,
		TExitUpCPA:   20,
	}
}

// FSM tracks per-target encounter state across ticks.
type FSM struct {
	hyst  Hysteresis
	state map[string]*types.EncounterState
}

func NewFSM(hyst Hysteresis) *FSM {
	return &FSM{hyst: hyst, state: make(map[string]*types.EncounterState)}
}

// entryPredicate and exitPredicate implement the spec's 4.C hysteresis
// guards verbatim.
func (f *FSM) entryPredicate(dAtCPA, t2CPA float64) bool {
	return dAtCPA < f.hyst.DEnterUpCPA &&
		t2CPA > f.hyst.TEnterLowCPA && t2CPA < f.hyst.TEnterUpCPA
}

func (f *FSM) exitPredicate(dAtCPA, t2CPA float64) bool {
	return dAtCPA >= f.hyst.DExitLowCPA ||
		t2CPA < f.hyst.TExitLowCPA || t2CPA > f.hyst.TExitUpCPA
}

// Update advances mmsi's hysteresis state from an already classified
// encounter, returning the resulting (possibly unchanged) state.
func (f *FSM) Update(mmsi string, classified types.EncounterClass, dAtCPA, t2CPA float64, rbs, ss int) types.EncounterClass {
	st, ok := f.state[mmsi]
	if !ok {
		st = &types.EncounterState{MMSI: mmsi, Current: types.Safe}
		f.state[mmsi] = st
	}

	entry := f.entryPredicate(dAtCPA, t2CPA)
	exit := f.exitPredicate(dAtCPA, t2CPA)

	switch {
	case st.Current == types.Safe:
		if entry && classified != types.Safe {
			st.Current = classified
		}
	default:
		if classified == types.Safe || exit {
			st.Current = types.Safe
		}
	}

	st.LastEntry = entry
	st.LastExit = exit
	st.LastSector = rbs*10 + ss
	return st.Current
}

// GC removes state for MMSIs absent from currentMMSIs.
func (f *FSM) GC(currentMMSIs map[string]struct{}) {
	for mmsi := range f.state {
		if _, ok := currentMMSIs[mmsi]; !ok {
			delete(f.state, mmsi)
		}
	}
}

// State returns the current class for mmsi (SAFE if untracked).
func (f *FSM) State(mmsi string) types.EncounterClass {
	if st, ok := f.state[mmsi]; ok {
		return st.Current
	}
	return types.Safe
}

// Snapshot returns a copy of all current encounter classes, keyed by MMSI.
func (f *FSM) Snapshot() map[string]types.EncounterClass {
	out := make(map[string]types.EncounterClass, len(f.state))
	for mmsi, st := range f.state {
		out[mmsi] = st.Current
	}
	return out
}

package driver

import (
	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/propagator"
)

// SetNewStatePars replaces the particle state and parameters wholesale
// (spec.md §4.6 "set_new_state_pars"). len(state) must be a multiple
// of 7; pars must be empty (interpreted as zeros) or exactly
// n*sys.NumPars() long. The particle count may change. Disabled flags
// and whitelists are reset since they are keyed by particle index and
// the old indexing is no longer valid.
func (d *Driver) SetNewStatePars(state, pars []float64) error {
	if len(state)%7 != 0 {
		return &ConfigError{Field: "state", Value: len(state), Wrapped: ErrDimensionMismatch}
	}
	if !allFiniteFloats(state) {
		return &ConfigError{Field: "state", Value: "state", Wrapped: ErrInvalidState}
	}
	n := len(state) / 7

	npars := d.sys.NumPars()
	if len(pars) != 0 && len(pars) != n*npars {
		return &ConfigError{Field: "pars", Value: len(pars), Wrapped: ErrDimensionMismatch}
	}

	d.state = make([][7]float64, n)
	d.pars = make([][]float64, n)
	d.disabled = make([]bool, n)

	for i := 0; i < n; i++ {
		copy(d.state[i][:], state[7*i:7*i+7])
		if npars > 0 {
			if len(pars) == 0 {
				d.pars[i] = make([]float64, npars)
			} else {
				d.pars[i] = append([]float64(nil), pars[i*npars:i*npars+npars]...)
			}
		}
	}

	d.collWhitelist = nil
	d.conjWhitelist = nil
	return nil
}

// RemoveParticles compacts the particle arrays, dropping the given
// indices. It is idempotent: removing an already-removed index is a
// no-op for that index, and remove_particles(nil) is a no-op overall
// (spec.md §8 "remove_particles([]) is a no-op"). Indices need not be
// pre-sorted or pre-deduplicated; duplicates collapse naturally.
func (d *Driver) RemoveParticles(indices []int) error {
	if len(indices) == 0 {
		return nil
	}

	toRemove := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(d.state) {
			return &ConfigError{Field: "indices", Value: idx, Wrapped: ErrIndexOutOfRange}
		}
		toRemove[idx] = true
	}
	if len(toRemove) == 0 {
		return nil
	}

	remap := make(map[int]int, len(d.state)-len(toRemove))
	newState := make([][7]float64, 0, len(d.state)-len(toRemove))
	newPars := make([][]float64, 0, len(d.state)-len(toRemove))
	newDisabled := make([]bool, 0, len(d.state)-len(toRemove))

	for i := range d.state {
		if toRemove[i] {
			continue
		}
		remap[i] = len(newState)
		newState = append(newState, d.state[i])
		newPars = append(newPars, d.pars[i])
		newDisabled = append(newDisabled, d.disabled[i])
	}

	d.state = newState
	d.pars = newPars
	d.disabled = newDisabled
	d.collWhitelist = remapWhitelist(d.collWhitelist, remap)
	d.conjWhitelist = remapWhitelist(d.conjWhitelist, remap)
	return nil
}

func remapWhitelist(w map[int]bool, remap map[int]int) map[int]bool {
	if len(w) == 0 {
		return nil
	}
	out := make(map[int]bool, len(w))
	for idx := range w {
		if newIdx, ok := remap[idx]; ok {
			out[newIdx] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// evaluateStateAt dense-evaluates a particle's StepData at absolute
// time `at`, locating the substep whose interval contains it and
// evaluating each of the six dynamical channels at the corresponding
// local tau (spec.md §4.6 step 6 "dense-evaluate all particle states
// at the advance time").
func evaluateStateAt(tBegin dfloat.T, data propagator.StepData, at dfloat.T) [6]float64 {
	if len(data.Substeps) == 0 {
		return [6]float64{}
	}

	// Clamp to the last captured substep end so the loop below always
	// finds a match, even if `at` overshoots by a rounding hair.
	if lastEnd := data.Substeps[len(data.Substeps)-1].End; at.Cmp(lastEnd) > 0 {
		at = lastEnd
	}

	segBegin := tBegin
	for _, ss := range data.Substeps {
		if ss.End.Cmp(at) >= 0 {
			tau := at.Sub(segBegin).Float64()
			return [6]float64{
				ss.TCS[0].Eval(tau), ss.TCS[1].Eval(tau), ss.TCS[2].Eval(tau),
				ss.TCS[3].Eval(tau), ss.TCS[4].Eval(tau), ss.TCS[5].Eval(tau),
			}
		}
		segBegin = ss.End
	}

	// Unreachable: the clamp above guarantees the final substep always
	// satisfies the loop's termination condition.
	panic("driver: evaluateStateAt fell through clamped substep range")
}

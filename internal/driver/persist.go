package driver

import (
	"encoding/json"

	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/dynamics"
	"github.com/san-kum/cascade/internal/narrowphase"
	"github.com/san-kum/cascade/internal/propagator"
)

// Snapshot is the serializable form of a Driver (spec.md §6.4
// "Persistence"): particle state, parameters, simulation time
// (double-double), and all configuration. DynamicsKind is a rebuild
// hint rather than a serialized function pointer, since Go has no
// portable way to serialize an arbitrary dynamics.System
// implementation — spec.md §6.4 explicitly permits "the compiled
// function identities (or a rebuild hint)" for this reason. Per-chunk
// scratch (StepData, BVH nodes, pool buffers) is never included, per
// spec.md §3 "Ownership & lifecycle". Grounded on the teacher's
// internal/storage/store.go JSON-snapshot style: stdlib
// encoding/json, justified because no corpus third-party dependency
// targets ad hoc struct snapshotting any better than the standard
// library already does (see DESIGN.md).
type Snapshot struct {
	DynamicsKind string `json:"dynamics_kind"`

	State [][7]float64 `json:"state"`
	Pars  [][]float64  `json:"pars"`

	TimeHi float64 `json:"time_hi"`
	TimeLo float64 `json:"time_lo"`

	Ct            float64    `json:"ct"`
	NParCt        int        `json:"n_par_ct"`
	Tol           float64    `json:"tol"`
	HighAccuracy  bool       `json:"high_accuracy"`
	ReentryRadius [3]float64 `json:"reentry_radius"`
	ExitRadius    float64    `json:"exit_radius"`
	ConjThresh    float64    `json:"conj_thresh"`
	MinCollRadius float64    `json:"min_coll_radius"`
	CollWhitelist []int      `json:"coll_whitelist,omitempty"`
	ConjWhitelist []int      `json:"conj_whitelist,omitempty"`

	MaxStep     float64 `json:"max_step"`
	NarrowDepth int     `json:"narrow_depth"`
	RefineSteps int     `json:"refine_steps"`
	Order       int     `json:"order"`
	Workers     int     `json:"workers"`

	Conjunctions []narrowphase.ConjunctionEvent `json:"conjunctions,omitempty"`
}

// Snapshot captures the Driver's persistable state (spec.md §6.4).
// dynamicsKind is an opaque caller-supplied identifier (e.g. a config
// preset name) recorded alongside the state so Restore's caller knows
// which dynamics.System to reconstruct and pass back in.
func (d *Driver) Snapshot(dynamicsKind string) Snapshot {
	s := Snapshot{
		DynamicsKind:  dynamicsKind,
		State:         append([][7]float64(nil), d.state...),
		TimeHi:        d.t.Hi,
		TimeLo:        d.t.Lo,
		Ct:            d.ct,
		NParCt:        d.nParCt,
		Tol:           d.tol,
		HighAccuracy:  d.highAccuracy,
		ReentryRadius: d.reentryRadius,
		ExitRadius:    d.exitRadius,
		ConjThresh:    d.conjThresh,
		MinCollRadius: d.minCollRadius,
		MaxStep:       d.maxStep,
		NarrowDepth:   d.narrowDepth,
		RefineSteps:   d.refineSteps,
		Order:         d.order,
		Workers:       d.workers,
		Conjunctions:  append([]narrowphase.ConjunctionEvent(nil), d.conjunctions...),
	}
	s.Pars = make([][]float64, len(d.pars))
	for i, p := range d.pars {
		s.Pars[i] = append([]float64(nil), p...)
	}
	s.CollWhitelist = whitelistIndices(d.collWhitelist)
	s.ConjWhitelist = whitelistIndices(d.conjWhitelist)
	return s
}

// Encode serializes the Driver's current snapshot as JSON.
func (d *Driver) Encode(dynamicsKind string) ([]byte, error) {
	return json.Marshal(d.Snapshot(dynamicsKind))
}

// Restore rebuilds a Driver from JSON data produced by Encode, bound
// to sys (the dynamics.System the caller reconstructed from the
// encoded DynamicsKind — spec.md §6.4's "rebuild hint").
func Restore(sys dynamics.System, data []byte) (*Driver, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &ConfigError{Field: "snapshot", Value: "json", Wrapped: err}
	}

	flat := make([]float64, 0, 7*len(s.State))
	for _, row := range s.State {
		flat = append(flat, row[:]...)
	}
	var flatPars []float64
	for _, p := range s.Pars {
		flatPars = append(flatPars, p...)
	}

	d, err := New(sys, flat, flatPars,
		WithCt(s.Ct), WithNParCt(s.NParCt), WithTol(s.Tol),
		WithHighAccuracy(s.HighAccuracy),
		WithReentryRadius(s.ReentryRadius), WithExitRadius(s.ExitRadius),
		WithConjThresh(s.ConjThresh), WithMinCollRadius(s.MinCollRadius),
		WithWorkers(s.Workers),
	)
	if err != nil {
		return nil, err
	}

	d.t = dfloat.T{Hi: s.TimeHi, Lo: s.TimeLo}
	d.maxStep = s.MaxStep
	d.narrowDepth = s.NarrowDepth
	d.refineSteps = s.RefineSteps
	d.order = s.Order
	d.conjunctions = append([]narrowphase.ConjunctionEvent(nil), s.Conjunctions...)
	if len(s.CollWhitelist) > 0 {
		if err := d.SetCollWhitelist(s.CollWhitelist); err != nil {
			return nil, err
		}
	}
	if len(s.ConjWhitelist) > 0 {
		if err := d.SetConjWhitelist(s.ConjWhitelist); err != nil {
			return nil, err
		}
	}
	d.prop = propagator.New(d.sys, d.propagatorConfig())

	return d, nil
}

func whitelistIndices(w map[int]bool) []int {
	if len(w) == 0 {
		return nil
	}
	out := make([]int, 0, len(w))
	for idx := range w {
		out = append(out, idx)
	}
	return out
}

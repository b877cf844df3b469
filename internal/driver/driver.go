// Package driver implements spec.md §4.6: the Driver type that owns
// particle state, assembles each superstep's Propagator → MortonAABB →
// BVH → BroadPhase → NarrowPhase pipeline per chunk, selects the
// earliest event, advances simulation time, and reports outcomes.
// Grounded on the teacher's internal/sim/simulator.go Run/
// validateConfig shape (generalized from a fixed-dt trajectory loop to
// a single superstep-per-call driver) and internal/dynamo/errors.go's
// sentinel+wrapper error style.
package driver

import (
	"math"

	"github.com/san-kum/cascade/internal/broadphase"
	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/dynamics"
	"github.com/san-kum/cascade/internal/narrowphase"
	"github.com/san-kum/cascade/internal/propagator"
)

// OutcomeKind classifies a completed step() call (spec.md §4.6
// "step(): run one superstep; returns {success | collision(i,j,t) |
// reentry(i,t) | exit(i,t) | err_nf_state(i,t)}").
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeCollision
	OutcomeReentry
	OutcomeExit
	OutcomeNonFiniteState
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeCollision:
		return "collision"
	case OutcomeReentry:
		return "reentry"
	case OutcomeExit:
		return "exit"
	case OutcomeNonFiniteState:
		return "err_nf_state"
	default:
		return "unknown"
	}
}

// StepOutcome is the tagged union step() returns. J is -1 unless Kind
// is OutcomeCollision.
type StepOutcome struct {
	Kind OutcomeKind
	I, J int
	Time float64
}

// Driver owns particle state and the per-superstep pipeline
// configuration. All public operations are single-threaded on the
// Driver itself (spec.md §5 "Single-threaded driver"); parallelism is
// internal to each pipeline stage.
type Driver struct {
	sys dynamics.System

	// Per-particle state, row-major (x,y,z,vx,vy,vz,r).
	state [][7]float64
	pars  [][]float64
	// disabled persists a particle's terminal outcome (non-finite state,
	// reentry or exit) across supersteps until the caller removes or
	// replaces it (spec.md §4.6 "Active →
	// Disabled|Decayed|Escaped").
	disabled []bool

	t dfloat.T

	ct            float64
	nParCt        int
	tol           float64
	highAccuracy  bool
	reentryRadius [3]float64
	exitRadius    float64
	conjThresh    float64
	minCollRadius float64
	collWhitelist broadphase.Whitelist
	conjWhitelist broadphase.Whitelist

	maxStep     float64
	narrowDepth int
	refineSteps int
	order       int
	workers     int

	conjunctions []narrowphase.ConjunctionEvent
	nfErrors     []SimError

	prop *propagator.Propagator
}

// Option configures a Driver at construction time.
type Option func(*Driver) error

// New constructs a Driver over the given dynamics system and initial
// state/parameters (spec.md §6.1). state must have length 7*N; pars
// must be empty or length N*sys.NumPars().
func New(sys dynamics.System, state []float64, pars []float64, opts ...Option) (*Driver, error) {
	if len(state)%7 != 0 {
		return nil, &ConfigError{Field: "state", Value: len(state), Wrapped: ErrDimensionMismatch}
	}
	n := len(state) / 7
	if !allFiniteFloats(state) {
		return nil, &ConfigError{Field: "state", Value: "state", Wrapped: ErrInvalidState}
	}

	npars := sys.NumPars()
	if len(pars) != 0 && len(pars) != n*npars {
		return nil, &ConfigError{Field: "pars", Value: len(pars), Wrapped: ErrDimensionMismatch}
	}

	d := &Driver{
		sys:           sys,
		state:         make([][7]float64, n),
		pars:          make([][]float64, n),
		disabled:      make([]bool, n),
		t:             dfloat.Zero,
		ct:            0.1,
		nParCt:        1,
		tol:           machineEpsilon(),
		minCollRadius: 0,
		conjThresh:    0,
		maxStep:       0.5,
		narrowDepth:   64,
		refineSteps:   16,
		order:         20,
		workers:       1,
	}

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

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	d.prop = propagator.New(sys, d.propagatorConfig())
	return d, nil
}

func (d *Driver) propagatorConfig() propagator.Config {
	return propagator.Config{
		Order:         d.order,
		Tol:           d.tol,
		HighAccuracy:  d.highAccuracy,
		MaxStep:       d.maxStep,
		ReentryRadius: d.reentryRadius,
		ExitRadius:    d.exitRadius,
	}
}

// NumParticles returns the current (post-compaction) particle count.
func (d *Driver) NumParticles() int { return len(d.state) }

// Time returns the driver's current absolute simulation time.
func (d *Driver) Time() dfloat.T { return d.t }

// State returns a copy of the authoritative state buffer, row-major
// (x,y,z,vx,vy,vz,r) (spec.md §6.3).
func (d *Driver) State() []float64 {
	out := make([]float64, 0, 7*len(d.state))
	for _, s := range d.state {
		out = append(out, s[:]...)
	}
	return out
}

// Pars returns a copy of the per-particle parameter buffer,
// concatenated in particle order.
func (d *Driver) Pars() []float64 {
	var out []float64
	for _, p := range d.pars {
		out = append(out, p...)
	}
	return out
}

// Conjunctions returns the conjunctions accumulated so far, ordered by
// (t, i, j) (spec.md §6.3).
func (d *Driver) Conjunctions() []narrowphase.ConjunctionEvent {
	out := make([]narrowphase.ConjunctionEvent, len(d.conjunctions))
	copy(out, d.conjunctions)
	return out
}

// Errors returns the accumulated per-particle non-finite-state
// diagnostics (spec.md §7's NonFiniteState records).
func (d *Driver) Errors() []SimError {
	out := make([]SimError, len(d.nfErrors))
	copy(out, d.nfErrors)
	return out
}

// Clone performs a deep copy of the Driver's state (spec.md §4's
// supplemented copy semantics, from original_source/test/sim_api.cpp's
// copy-then-step-each-identically test): state, pars, disabled flags,
// time, configuration, and accumulated diagnostics are all
// independently owned by the clone. The dynamics System itself is
// shared since every concrete System in this module is an immutable
// value type.
func (d *Driver) Clone() *Driver {
	c := &Driver{
		sys:           d.sys,
		t:             d.t,
		ct:            d.ct,
		nParCt:        d.nParCt,
		tol:           d.tol,
		highAccuracy:  d.highAccuracy,
		reentryRadius: d.reentryRadius,
		exitRadius:    d.exitRadius,
		conjThresh:    d.conjThresh,
		minCollRadius: d.minCollRadius,
		maxStep:       d.maxStep,
		narrowDepth:   d.narrowDepth,
		refineSteps:   d.refineSteps,
		order:         d.order,
		workers:       d.workers,
	}

	c.state = append([][7]float64(nil), d.state...)
	c.disabled = append([]bool(nil), d.disabled...)
	c.pars = make([][]float64, len(d.pars))
	for i, p := range d.pars {
		c.pars[i] = append([]float64(nil), p...)
	}
	c.conjunctions = append([]narrowphase.ConjunctionEvent(nil), d.conjunctions...)
	c.nfErrors = append([]SimError(nil), d.nfErrors...)
	c.collWhitelist = cloneWhitelist(d.collWhitelist)
	c.conjWhitelist = cloneWhitelist(d.conjWhitelist)

	c.prop = propagator.New(c.sys, c.propagatorConfig())
	return c
}

func cloneWhitelist(w broadphase.Whitelist) broadphase.Whitelist {
	if w == nil {
		return nil
	}
	out := make(broadphase.Whitelist, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func machineEpsilon() float64 {
	return math.Nextafter(1, 2) - 1
}

func allFiniteFloats(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Package propagator implements spec.md §4.1: it drives each active
// particle's Taylor integrator across a superstep, capturing per-substep
// dense polynomial output (StepData) for the collision/conjunction
// pipeline. It generalizes the teacher's internal/sim/simulator.go
// Run/adaptiveStep loop (fixed-size state stepping with step-doubling
// error control) to dense Taylor-coefficient capture with a classic
// Taylor-series step-size rule, and reuses internal/dynamo/parallel.go's
// ParallelFor fan-out shape for per-particle work.
package propagator

import (
	"math"

	"github.com/san-kum/cascade/internal/cache"
	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/dynamics"
	"github.com/san-kum/cascade/internal/taylor"
)

// Substep is one captured dense-output interval: tcs holds seven
// Taylor-coefficient channels (x, y, z, vx, vy, vz, r — the radial
// distance from the origin; the reentry/exit checks and AABB enclosure
// work from the position channels and do not read r), and
// End is the substep's absolute end time.
type Substep struct {
	TCS [7]taylor.Series
	End dfloat.T
}

// StepData is the per-particle output of one superstep of propagation
// (spec.md §3 "StepData"): tcoords is strictly increasing and
// tcoords[-1] >= T_begin+Delta_t.
type StepData struct {
	Substeps []Substep
}

// Outcome classifies how a particle's propagation ended within the
// superstep, independent of collision detection (spec.md §4.6 "State
// machine of a particle within a superstep").
type Outcome int

const (
	OutcomeActive Outcome = iota
	OutcomeNonFiniteState
	OutcomeReentry
	OutcomeExit
)

// TerminalEvent records a non-success outcome with its absolute time.
type TerminalEvent struct {
	ParticleIndex int
	Time          dfloat.T
	Outcome       Outcome
}

// Config holds the integration parameters that are identical across
// every integrator instance for a superstep (spec.md §4.1 "Integrator
// caches": "configured identically").
type Config struct {
	Order         int
	Tol           float64
	HighAccuracy  bool
	MaxStep       float64
	ReentryRadius [3]float64 // semiaxes; 0 disables
	ExitRadius    float64    // 0 disables
}

// scratch is the reusable per-worker buffer borrowed from the
// integrator cache; it holds nothing particle-specific by the time it
// is released, matching the teacher's StatePool.Put zeroing discipline.
type scratch struct {
	buf [6]taylor.Series
}

// Propagator owns the concurrent integrator cache (spec.md §4.1
// "Integrator caches") and the dynamics collaborator used to expand
// Taylor coefficients.
type Propagator struct {
	sys    dynamics.System
	cfg    Config
	scalar *cache.Pool[*scratch]
}

// New creates a Propagator bound to a dynamics System and integration
// Config. The scalar integrator cache is sized lazily; spec.md's batch
// (SIMD-lane) integrator cache has no analogue here because Go has no
// portable SIMD-width abstraction in the example corpus — every worker
// uses the same scalar path, parallelized across particles instead of
// across SIMD lanes (see DESIGN.md).
func New(sys dynamics.System, cfg Config) *Propagator {
	return &Propagator{
		sys: sys,
		cfg: cfg,
		scalar: cache.NewPool(64, func() *scratch {
			return &scratch{}
		}),
	}
}

// PropagateOne drives one particle's dense output across
// [0, deltaT] relative to superstep start tBegin, returning its
// StepData and, if propagation was cut short, a TerminalEvent.
func (p *Propagator) PropagateOne(idx int, state [6]float64, pars []float64, tBegin dfloat.T, deltaT float64) (StepData, *TerminalEvent) {
	h := cache.Borrow(p.scalar)
	defer h.Close()

	var data StepData
	t := 0.0
	cur := state

	for t < deltaT {
		x, y, z, vx, vy, vz := p.sys.Expand(cur, pars, p.cfg.Order)

		if !allFinite(x) || !allFinite(y) || !allFinite(z) || !allFinite(vx) || !allFinite(vy) || !allFinite(vz) {
			return data, &TerminalEvent{ParticleIndex: idx, Time: tBegin.AddFloat64(t), Outcome: OutcomeNonFiniteState}
		}

		step := p.chooseStep(x, y, z, vx, vy, vz)
		if remaining := deltaT - t; step > remaining {
			step = remaining
		}
		if step <= 0 || math.IsNaN(step) {
			return data, &TerminalEvent{ParticleIndex: idx, Time: tBegin.AddFloat64(t), Outcome: OutcomeNonFiniteState}
		}

		r := taylor.Sqrt(taylor.Add(taylor.Add(taylor.Mul(x, x), taylor.Mul(y, y)), taylor.Mul(z, z)))

		t += step
		end := tBegin.AddFloat64(t)
		data.Substeps = append(data.Substeps, Substep{
			TCS: [7]taylor.Series{x, y, z, vx, vy, vz, r},
			End: end,
		})

		next := [6]float64{x.Eval(step), y.Eval(step), z.Eval(step), vx.Eval(step), vy.Eval(step), vz.Eval(step)}
		if !finite6(next) {
			return data, &TerminalEvent{ParticleIndex: idx, Time: end, Outcome: OutcomeNonFiniteState}
		}

		if ev := p.checkTerminalRadius(idx, next, end); ev != nil {
			return data, ev
		}

		cur = next
	}

	return data, nil
}

func (p *Propagator) checkTerminalRadius(idx int, state [6]float64, t dfloat.T) *TerminalEvent {
	if p.cfg.ExitRadius > 0 {
		r2 := state[0]*state[0] + state[1]*state[1] + state[2]*state[2]
		if r2 > p.cfg.ExitRadius*p.cfg.ExitRadius {
			return &TerminalEvent{ParticleIndex: idx, Time: t, Outcome: OutcomeExit}
		}
	}
	rr := p.cfg.ReentryRadius
	if rr[0] > 0 || rr[1] > 0 || rr[2] > 0 {
		a, b, c := rr[0], rr[1], rr[2]
		if a == 0 {
			a = 1
		}
		if b == 0 {
			b = 1
		}
		if c == 0 {
			c = 1
		}
		v := (state[0]*state[0])/(a*a) + (state[1]*state[1])/(b*b) + (state[2]*state[2])/(c*c)
		if v <= 1 {
			return &TerminalEvent{ParticleIndex: idx, Time: t, Outcome: OutcomeReentry}
		}
	}
	return nil
}

// chooseStep applies the classic Taylor-series step-size rule: pick h
// so that the last retained term of the series is within tolerance,
// i.e. h = (tol / max|last coefficient|)^(1/order), the direct
// analogue of internal/integrators/rk45.go's step-doubling error
// control but derived from the series' own truncation error instead of
// a step-doubling comparison.
func (p *Propagator) chooseStep(series ...taylor.Series) float64 {
	order := p.cfg.Order
	maxLast := 0.0
	for _, s := range series {
		if v := math.Abs(s[order]); v > maxLast {
			maxLast = v
		}
	}
	if maxLast == 0 {
		return p.cfg.MaxStep
	}
	tol := p.cfg.Tol
	if tol <= 0 {
		tol = math.Nextafter(1, 2) - 1
	}
	h := math.Pow(tol/maxLast, 1.0/float64(order))
	if h > p.cfg.MaxStep {
		h = p.cfg.MaxStep
	}
	return h
}

func allFinite(s taylor.Series) bool {
	for _, c := range s {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func finite6(s [6]float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

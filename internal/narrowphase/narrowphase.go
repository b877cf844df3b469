// Package narrowphase implements spec.md §4.5: for each broad-phase
// candidate pair, build the squared-distance polynomial over every
// overlapping substep sub-interval, apply the fast exclusion check,
// isolate and refine roots, and classify the result as a collision or
// a conjunction. It uses internal/cfunc's default implementation
// (internal/polytools, wired directly rather than through an injected
// collaborator — see DESIGN.md) to realize pssdiff3/fex_check/rtscc.
// Grounded on original_source/include/cascade/detail/sim_data.hpp's
// np_data struct and spec.md §4.5's algorithm text.
package narrowphase

import (
	"math"

	"github.com/san-kum/cascade/internal/cfunc"
	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/polytools"
	"github.com/san-kum/cascade/internal/propagator"
	"github.com/san-kum/cascade/internal/taylor"
)

// Config holds the tunables spec.md §4.5/§6.1 attach to narrow phase.
type Config struct {
	MaxDepth    int // root-isolation recursion depth budget
	RefineSteps int // bisection/Newton refinement steps
}

// CollisionEvent is spec.md §3's collision record: (i, j, t_abs).
type CollisionEvent struct {
	I, J int
	Time dfloat.T
}

// ConjunctionEvent is spec.md §3's conjunction record: (i, j, t_abs,
// dist_min, state_i, state_j).
type ConjunctionEvent struct {
	I, J    int
	Time    dfloat.T
	DistMin float64
	StateI  [6]float64
	StateJ  [6]float64
}

// PairResult is the narrow-phase outcome for one candidate pair over
// one chunk: at most one collision (the earliest crossing) and at most
// one conjunction (the deepest local minimum), plus a count of
// sub-intervals skipped due to ErrDepthExceeded (spec.md §7, non-fatal).
type PairResult struct {
	Collision   *CollisionEvent
	Conjunction *ConjunctionEvent
	Skipped     int
}

// DetectPair scans every substep-pair sub-interval of (dataI, dataJ)
// that overlaps [chunkBegin, chunkEnd], testing for a collision
// (if wantCollision) and/or a conjunction (if wantConjunction).
// tBegin is the superstep's absolute start, shared by both particles'
// StepData.
func DetectPair(
	cfg Config,
	i, j int,
	dataI, dataJ propagator.StepData,
	tBegin, chunkBegin, chunkEnd dfloat.T,
	radiusI, radiusJ, conjThresh float64,
	wantCollision, wantConjunction bool,
) PairResult {
	var result PairResult
	rho2 := (radiusI + radiusJ) * (radiusI + radiusJ)
	conj2 := conjThresh * conjThresh

	segBeginI, segBeginJ := tBegin, tBegin
	pi, pj := 0, 0

	for pi < len(dataI.Substeps) && pj < len(dataJ.Substeps) {
		ssI := dataI.Substeps[pi]
		ssJ := dataJ.Substeps[pj]
		segEndI, segEndJ := ssI.End, ssJ.End

		overlapBegin := maxT(segBeginI, segBeginJ)
		overlapBegin = maxT(overlapBegin, chunkBegin)
		overlapEnd := minT(segEndI, segEndJ)
		overlapEnd = minT(overlapEnd, chunkEnd)

		if overlapEnd.Cmp(overlapBegin) > 0 {
			localI := overlapBegin.Sub(segBeginI).Float64()
			localJ := overlapBegin.Sub(segBeginJ).Float64()
			width := overlapEnd.Sub(overlapBegin).Float64()

			xi := taylor.Translate(ssI.TCS[0], localI)
			yi := taylor.Translate(ssI.TCS[1], localI)
			zi := taylor.Translate(ssI.TCS[2], localI)
			xj := taylor.Translate(ssJ.TCS[0], localJ)
			yj := taylor.Translate(ssJ.TCS[1], localJ)
			zj := taylor.Translate(ssJ.TCS[2], localJ)

			delta := polytools.PSSDiff3(xi, yi, zi, xj, yj, zj)

			if wantCollision && result.Collision == nil {
				if ev := detectCollision(cfg, i, j, delta, rho2, width, overlapBegin, &result.Skipped); ev != nil {
					result.Collision = ev
				}
			}
			if wantConjunction {
				detectConjunction(cfg, i, j, delta, conj2, width, overlapBegin,
					xi, yi, zi, xj, yj, zj, &result)
			}
		}

		if segEndI.Cmp(segEndJ) <= 0 {
			segBeginI = segEndI
			pi++
		} else {
			segBeginJ = segEndJ
			pj++
		}
		if segBeginI.Cmp(chunkEnd) > 0 && segBeginJ.Cmp(chunkEnd) > 0 {
			break
		}
	}

	return result
}

func detectCollision(cfg Config, i, j int, delta taylor.Series, rho2, width float64, intervalBegin dfloat.T, skipped *int) *CollisionEvent {
	switch polytools.FexCheck(delta, width, rho2) {
	case cfunc.FexPositive: // provably never colliding on this interval
		return nil
	case cfunc.FexNegative: // already inside the collision radius throughout
		return &CollisionEvent{I: i, J: j, Time: intervalBegin}
	}
	if delta.Eval(0) <= rho2 { // already inside the collision radius at the interval start
		return &CollisionEvent{I: i, J: j, Time: intervalBegin}
	}

	poly := delta.Clone()
	poly[0] -= rho2

	roots, err := polytools.IsolateRoots(poly, 0, width, cfg.MaxDepth)
	if err != nil {
		*skipped++
		return nil
	}

	deriv := poly.Derivative()
	for _, iv := range roots {
		tau := polytools.RefineNewton(poly, iv.Lo, iv.Hi, cfg.RefineSteps)
		if deriv.Eval(tau) > 0 {
			// Rising crossing (separating, not approaching): spec.md
			// §4.5 only wants the first positive-to-non-positive
			// crossing.
			continue
		}
		if poly.Eval(tau) > 1e-9*(1+rho2) {
			continue
		}
		return &CollisionEvent{I: i, J: j, Time: intervalBegin.AddFloat64(tau)}
	}
	return nil
}

func detectConjunction(
	cfg Config, i, j int,
	delta taylor.Series, conj2, width float64, intervalBegin dfloat.T,
	xi, yi, zi, xj, yj, zj taylor.Series,
	result *PairResult,
) {
	deriv := delta.Derivative()
	criticalRoots, err := polytools.IsolateRoots(deriv, 0, width, cfg.MaxDepth)
	if err != nil {
		result.Skipped++
	}

	// Evaluate candidate minima at isolated critical points plus both
	// endpoints, since the true minimum over the chunk may fall on a
	// sub-interval boundary rather than strictly inside it.
	candidates := make([]float64, 0, len(criticalRoots)+2)
	candidates = append(candidates, 0, width)
	for _, iv := range criticalRoots {
		tau := polytools.RefineNewton(deriv, iv.Lo, iv.Hi, cfg.RefineSteps)
		candidates = append(candidates, tau)
	}

	for _, tau := range candidates {
		if tau < 0 || tau > width {
			continue
		}
		d2 := delta.Eval(tau)
		if d2 < 0 {
			d2 = 0
		}
		if d2 > conj2 {
			continue
		}
		if result.Conjunction != nil && d2 >= result.Conjunction.DistMin*result.Conjunction.DistMin {
			continue
		}
		result.Conjunction = &ConjunctionEvent{
			I:       i,
			J:       j,
			Time:    intervalBegin.AddFloat64(tau),
			DistMin: math.Sqrt(d2),
			StateI:  [6]float64{xi.Eval(tau), yi.Eval(tau), zi.Eval(tau), 0, 0, 0},
			StateJ:  [6]float64{xj.Eval(tau), yj.Eval(tau), zj.Eval(tau), 0, 0, 0},
		}
	}
}

func maxT(a, b dfloat.T) dfloat.T {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func minT(a, b dfloat.T) dfloat.T {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

package driver

import (
	"sort"

	"github.com/san-kum/cascade/internal/broadphase"
	"github.com/san-kum/cascade/internal/bvh"
	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/morton"
	"github.com/san-kum/cascade/internal/narrowphase"
	"github.com/san-kum/cascade/internal/propagator"
)

// Step runs one superstep (spec.md §4.6 "Algorithm for step()"):
// propagate every active particle, run MortonAABB → BVH → BroadPhase →
// NarrowPhase per chunk, select the earliest event (preempted by any
// reentry/exit/non-finite-state event that struck first), advance
// time, and dense-evaluate the authoritative state.
func (d *Driver) Step() (StepOutcome, error) {
	n := len(d.state)
	deltaT := d.ct * float64(d.nParCt)
	tBegin := d.t

	if n == 0 {
		d.t = tBegin.AddFloat64(deltaT)
		return StepOutcome{Kind: OutcomeSuccess, I: -1, J: -1, Time: d.t.Float64()}, nil
	}

	activeIdx := make([]int, 0, n)
	for i := range d.state {
		if !d.disabled[i] {
			activeIdx = append(activeIdx, i)
		}
	}

	results := make([]propagator.Result, n)
	if len(activeIdx) > 0 {
		activeStates := make([][6]float64, len(activeIdx))
		activePars := make([][]float64, len(activeIdx))
		for k, idx := range activeIdx {
			s := d.state[idx]
			activeStates[k] = [6]float64{s[0], s[1], s[2], s[3], s[4], s[5]}
			activePars[k] = d.pars[idx]
		}
		activeResults := d.prop.PropagateAll(activeStates, activePars, tBegin, deltaT, d.workers)
		for k, idx := range activeIdx {
			results[idx] = activeResults[k]
		}
	}

	var earliestTerminal *propagator.TerminalEvent
	for _, idx := range activeIdx {
		ev := results[idx].Event
		if ev == nil {
			continue
		}
		d.disabled[idx] = true
		if ev.Outcome == propagator.OutcomeNonFiniteState {
			d.nfErrors = append(d.nfErrors, SimError{
				ParticleIndex: idx,
				Time:          ev.Time.Float64(),
				Message:       "non-finite state",
			})
		}
		if earliestTerminal == nil || ev.Time.Cmp(earliestTerminal.Time) < 0 {
			earliestTerminal = ev
		}
	}

	bestCollision := d.runChunks(tBegin, activeIdx, results)

	best, advanceTo := d.selectOutcome(tBegin, deltaT, bestCollision, earliestTerminal)

	for _, idx := range activeIdx {
		data := results[idx].Data
		if len(data.Substeps) == 0 {
			continue
		}
		s := evaluateStateAt(tBegin, data, advanceTo)
		d.state[idx][0], d.state[idx][1], d.state[idx][2] = s[0], s[1], s[2]
		d.state[idx][3], d.state[idx][4], d.state[idx][5] = s[3], s[4], s[5]
	}
	d.t = advanceTo

	sort.Slice(d.conjunctions, func(a, b int) bool {
		ca, cb := d.conjunctions[a], d.conjunctions[b]
		if c := ca.Time.Cmp(cb.Time); c != 0 {
			return c < 0
		}
		if ca.I != cb.I {
			return ca.I < cb.I
		}
		return ca.J < cb.J
	})

	return best, nil
}

// runChunks drives MortonAABB → BVH → BroadPhase → NarrowPhase for
// every chunk of the superstep (spec.md §4.6 step 3) and returns the
// earliest collision found across all chunks, or nil.
func (d *Driver) runChunks(tBegin dfloat.T, activeIdx []int, results []propagator.Result) *narrowphase.CollisionEvent {
	var best *narrowphase.CollisionEvent
	npCfg := narrowphase.Config{MaxDepth: d.narrowDepth, RefineSteps: d.refineSteps}

	for c := 0; c < d.nParCt; c++ {
		chunkBegin := tBegin.AddFloat64(float64(c) * d.ct)
		chunkEnd := tBegin.AddFloat64(float64(c+1) * d.ct)

		chunkParticles := make([]int, 0, len(activeIdx))
		for _, idx := range activeIdx {
			data := results[idx].Data
			if len(data.Substeps) == 0 {
				continue
			}
			if data.Substeps[len(data.Substeps)-1].End.Cmp(chunkBegin) <= 0 {
				continue
			}
			chunkParticles = append(chunkParticles, idx)
		}
		if len(chunkParticles) < 2 {
			continue
		}

		radii := make([]float64, len(chunkParticles))
		boxes := make([]morton.AABB, len(chunkParticles))
		for k, idx := range chunkParticles {
			r := d.state[idx][6]
			radii[k] = r
			infl := r
			if half := d.conjThresh / 2; half > infl {
				infl = half
			}
			boxes[k] = morton.ChunkAABB(tBegin, results[idx].Data, chunkBegin, chunkEnd, infl)
		}

		global := morton.GlobalAABB(boxes, d.workers)
		lo := [3]float64{float64(global.Lo[0]), float64(global.Lo[1]), float64(global.Lo[2])}
		hi := [3]float64{float64(global.Hi[0]), float64(global.Hi[1]), float64(global.Hi[2])}

		codes := make([]uint64, len(chunkParticles))
		for k, b := range boxes {
			codes[k] = morton.Code(morton.Center(b), lo, hi)
		}

		vidxLocal := morton.SortPermutation(codes)
		srtBoxes, srtCodes := morton.Reorder(boxes, codes, vidxLocal)
		tree := bvh.Build(srtCodes, srtBoxes)
		localPairs := broadphase.CandidatePairs(tree, vidxLocal)

		activation := broadphase.ComputeActivation(radii, d.minCollRadius, d.conjThresh)
		localColl := broadphase.FilterCollision(localPairs, activation, nil)
		localConj := broadphase.FilterConjunction(localPairs, activation, nil)

		want := make(map[[2]int][2]bool)
		for _, p := range localColl {
			gi, gj := chunkParticles[p.I], chunkParticles[p.J]
			if gi > gj {
				gi, gj = gj, gi
			}
			if !d.collWhitelist.Allows(gi, gj) {
				continue
			}
			w := want[[2]int{gi, gj}]
			w[0] = true
			want[[2]int{gi, gj}] = w
		}
		for _, p := range localConj {
			gi, gj := chunkParticles[p.I], chunkParticles[p.J]
			if gi > gj {
				gi, gj = gj, gi
			}
			if !d.conjWhitelist.Allows(gi, gj) {
				continue
			}
			w := want[[2]int{gi, gj}]
			w[1] = true
			want[[2]int{gi, gj}] = w
		}

		for key, w := range want {
			res := narrowphase.DetectPair(npCfg, key[0], key[1],
				results[key[0]].Data, results[key[1]].Data,
				tBegin, chunkBegin, chunkEnd,
				d.state[key[0]][6], d.state[key[1]][6], d.conjThresh,
				w[0], w[1])

			if res.Collision != nil && (best == nil || collisionEarlier(res.Collision, best)) {
				best = res.Collision
			}
			if res.Conjunction != nil {
				d.conjunctions = append(d.conjunctions, *res.Conjunction)
			}
		}
	}

	return best
}

func collisionEarlier(a, b *narrowphase.CollisionEvent) bool {
	if c := a.Time.Cmp(b.Time); c != 0 {
		return c < 0
	}
	if a.I != b.I {
		return a.I < b.I
	}
	return a.J < b.J
}

// selectOutcome picks the superstep's headline outcome: the earliest
// of the best collision and the earliest propagation terminal event,
// or success at T_begin+Delta_t if neither occurred. On an exact time
// tie, the terminal event (reentry/exit/non-finite) wins, since it
// represents a hard physical boundary the integrator itself already
// stopped at (spec.md open question, see DESIGN.md).
func (d *Driver) selectOutcome(tBegin dfloat.T, deltaT float64, coll *narrowphase.CollisionEvent, terminal *propagator.TerminalEvent) (StepOutcome, dfloat.T) {
	if coll == nil && terminal == nil {
		advanceTo := tBegin.AddFloat64(deltaT)
		return StepOutcome{Kind: OutcomeSuccess, I: -1, J: -1, Time: advanceTo.Float64()}, advanceTo
	}
	if coll != nil && (terminal == nil || coll.Time.Cmp(terminal.Time) < 0) {
		return StepOutcome{Kind: OutcomeCollision, I: coll.I, J: coll.J, Time: coll.Time.Float64()}, coll.Time
	}

	kind := OutcomeNonFiniteState
	switch terminal.Outcome {
	case propagator.OutcomeReentry:
		kind = OutcomeReentry
	case propagator.OutcomeExit:
		kind = OutcomeExit
	}
	return StepOutcome{Kind: kind, I: terminal.ParticleIndex, J: -1, Time: terminal.Time.Float64()}, terminal.Time
}

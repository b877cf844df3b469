// Package broadphase implements spec.md §4.4: per-chunk traversal of a
// Morton-sorted internal/bvh.Tree, remapping sorted-order candidate
// pairs back to original particle indices, deduplicating, and applying
// the collision/conjunction activation masks. Grounded on
// original_source/include/cascade/detail/sim_data.hpp's bp_data/bp_coll
// fields. All of it runs on the calling goroutine.
package broadphase

import (
	"sort"

	"github.com/san-kum/cascade/internal/bvh"
)

// Activation holds the per-particle collision/conjunction activation
// flags computed once per superstep (spec.md §4.4 "Activation").
type Activation struct {
	CollActive []bool
	ConjActive []bool
}

// ComputeActivation derives per-particle activation from radii and the
// superstep's min_coll_radius / conj_thresh configuration (spec.md
// §6.1). A non-empty whitelist restricts activation of its kind to
// pairs with at least one whitelisted member; that per-pair filter is
// applied later in Filter, not here (this stage is purely per-particle).
func ComputeActivation(radii []float64, minCollRadius, conjThresh float64) Activation {
	n := len(radii)
	a := Activation{
		CollActive: make([]bool, n),
		ConjActive: make([]bool, n),
	}
	for i, r := range radii {
		a.CollActive[i] = r > minCollRadius
		a.ConjActive[i] = conjThresh > 0
	}
	return a
}

// Pair is a deduplicated, originally-indexed candidate pair with i<j.
type Pair struct {
	I, J int
}

// CandidatePairs runs internal/bvh.CandidatePairs against tree (whose
// leaves are indexed in Morton-sorted order) and remaps the result
// back to original particle indices via vidx, deduplicating and
// canonicalizing to i<j (spec.md §3 "Broad-phase emits each unordered
// pair at most once").
func CandidatePairs(tree *bvh.Tree, vidx []int) []Pair {
	raw := bvh.CandidatePairs(tree)
	seen := make(map[[2]int]struct{}, len(raw))
	out := make([]Pair, 0, len(raw))

	for _, p := range raw {
		i, j := vidx[p.I], vidx[p.J]
		if i == j {
			continue
		}
		if i > j {
			i, j = j, i
		}
		key := [2]int{i, j}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Pair{I: i, J: j})
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].I != out[b].I {
			return out[a].I < out[b].I
		}
		return out[a].J < out[b].J
	})
	return out
}

// Whitelist is a set of particle indices; an empty Whitelist imposes
// no restriction (spec.md §6.1 "when non-empty, only pairs with at
// least one member in the whitelist are reported").
type Whitelist map[int]bool

// Allows reports whether the pair (i, j) passes this whitelist: true
// when the whitelist is empty (no restriction) or when either member
// belongs to it.
func (w Whitelist) Allows(i, j int) bool {
	if len(w) == 0 {
		return true
	}
	return w[i] || w[j]
}

// FilterCollision returns the subset of pairs eligible for collision
// narrow-phase: both particles collision-active and the whitelist (if
// any) is satisfied.
func FilterCollision(pairs []Pair, active Activation, whitelist Whitelist) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if !active.CollActive[p.I] || !active.CollActive[p.J] {
			continue
		}
		if !whitelist.Allows(p.I, p.J) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterConjunction returns the subset of pairs eligible for
// conjunction narrow-phase.
func FilterConjunction(pairs []Pair, active Activation, whitelist Whitelist) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if !active.ConjActive[p.I] || !active.ConjActive[p.J] {
			continue
		}
		if !whitelist.Allows(p.I, p.J) {
			continue
		}
		out = append(out, p)
	}
	return out
}

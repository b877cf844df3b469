package broadphase

import (
	"testing"

	"github.com/san-kum/cascade/internal/bvh"
	"github.com/san-kum/cascade/internal/morton"
)

func TestComputeActivationRespectsMinCollRadius(t *testing.T) {
	a := ComputeActivation([]float64{0.0, 0.1, 0.5}, 0.1, 1.0)
	if a.CollActive[0] || a.CollActive[1] {
		t.Fatal("radii <= min_coll_radius must be inactive")
	}
	if !a.CollActive[2] {
		t.Fatal("radius > min_coll_radius must be active")
	}
}

func TestComputeActivationConjThreshZeroDisablesAll(t *testing.T) {
	a := ComputeActivation([]float64{1, 2, 3}, 0, 0)
	for i, active := range a.ConjActive {
		if active {
			t.Fatalf("particle %d should be conjunction-inactive when conj_thresh=0", i)
		}
	}
}

func box(lo, hi float32) morton.AABB {
	return morton.AABB{Lo: [4]float32{lo, lo, lo, 0}, Hi: [4]float32{hi, hi, hi, 0}}
}

func TestCandidatePairsRemapsThroughPermutationAndDedups(t *testing.T) {
	// Sorted order is [2,0,1] (vidx), all boxes mutually overlapping.
	codes := []uint64{1, 2, 3}
	boxes := []morton.AABB{box(0, 10), box(0, 10), box(0, 10)}
	tree := bvh.Build(codes, boxes)
	vidx := []int{2, 0, 1} // sorted position k came from original particle vidx[k]

	pairs := CandidatePairs(tree, vidx)
	seen := make(map[[2]int]bool)
	for _, p := range pairs {
		if p.I >= p.J {
			t.Fatalf("expected i<j in original index space, got %+v", p)
		}
		key := [2]int{p.I, p.J}
		if seen[key] {
			t.Fatalf("duplicate pair %+v", p)
		}
		seen[key] = true
	}
	want := len(codes) * (len(codes) - 1) / 2
	if len(pairs) != want {
		t.Fatalf("expected %d pairs, got %d", want, len(pairs))
	}
}

func TestFilterCollisionRequiresBothActive(t *testing.T) {
	active := Activation{CollActive: []bool{true, false, true}}
	pairs := []Pair{{I: 0, J: 1}, {I: 0, J: 2}}
	got := FilterCollision(pairs, active, nil)
	if len(got) != 1 || got[0] != (Pair{I: 0, J: 2}) {
		t.Fatalf("expected only (0,2) to survive, got %+v", got)
	}
}

func TestFilterConjunctionWhitelistRequiresMembership(t *testing.T) {
	active := Activation{ConjActive: []bool{true, true, true}}
	wl := Whitelist{1: true}
	pairs := []Pair{{I: 0, J: 2}, {I: 0, J: 1}}
	got := FilterConjunction(pairs, active, wl)
	if len(got) != 1 || got[0] != (Pair{I: 0, J: 1}) {
		t.Fatalf("expected only pair containing whitelisted index 1, got %+v", got)
	}
}

func TestEmptyWhitelistAllowsEverything(t *testing.T) {
	var wl Whitelist
	if !wl.Allows(5, 9) {
		t.Fatal("empty whitelist must allow all pairs")
	}
}

package bvh

import (
	"testing"

	"github.com/san-kum/cascade/internal/morton"
)

func box(lo, hi float32) morton.AABB {
	return morton.AABB{Lo: [4]float32{lo, lo, lo, 0}, Hi: [4]float32{hi, hi, hi, 0}}
}

func TestBuildEmptyReturnsEmptyTree(t *testing.T) {
	tree := Build(nil, nil)
	if tree.Root != noChild {
		t.Fatalf("expected empty tree root, got %d", tree.Root)
	}
}

func TestBuildSingleLeafIsRoot(t *testing.T) {
	codes := []uint64{42}
	boxes := []morton.AABB{box(0, 1)}
	tree := Build(codes, boxes)
	if !tree.Nodes[tree.Root].IsLeaf() {
		t.Fatal("single-particle tree root should be a leaf")
	}
}

func TestBuildLeafRangesPartitionWholeSet(t *testing.T) {
	codes := []uint64{1, 2, 3, 5, 8, 13, 21}
	boxes := make([]morton.AABB, len(codes))
	for i := range boxes {
		boxes[i] = box(float32(i), float32(i)+1)
	}
	tree := Build(codes, boxes)

	var leafRanges [][2]int
	var walk func(idx int)
	walk = func(idx int) {
		n := tree.Nodes[idx]
		if n.IsLeaf() {
			leafRanges = append(leafRanges, [2]int{n.Begin, n.End})
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(tree.Root)

	covered := 0
	for _, r := range leafRanges {
		covered += r[1] - r[0]
	}
	if covered != len(codes) {
		t.Fatalf("leaf ranges cover %d indices, want %d", covered, len(codes))
	}

	// Ranges must be contiguous and non-overlapping, in order.
	next := 0
	for _, r := range leafRanges {
		if r[0] != next {
			t.Fatalf("leaf ranges not contiguous: expected start %d, got %d", next, r[0])
		}
		next = r[1]
	}
}

func TestInternalNodeAABBIsUnionOfChildren(t *testing.T) {
	codes := []uint64{1, 2, 3, 4}
	boxes := []morton.AABB{box(0, 1), box(2, 3), box(4, 5), box(6, 7)}
	tree := Build(codes, boxes)

	var check func(idx int) morton.AABB
	check = func(idx int) morton.AABB {
		n := tree.Nodes[idx]
		if n.IsLeaf() {
			return n.Box
		}
		l := check(n.Left)
		r := check(n.Right)
		want := morton.Union(l, r)
		if n.Box != want {
			t.Fatalf("node %d AABB %+v != union of children %+v", idx, n.Box, want)
		}
		return n.Box
	}
	check(tree.Root)
}

func TestEqualCodesFormMultiParticleLeaf(t *testing.T) {
	codes := []uint64{7, 7, 7}
	boxes := []morton.AABB{box(0, 1), box(1, 2), box(2, 3)}
	tree := Build(codes, boxes)
	root := tree.Nodes[tree.Root]
	if !root.IsLeaf() || root.Begin != 0 || root.End != 3 {
		t.Fatalf("expected single multi-particle leaf, got %+v", root)
	}
}

func TestCandidatePairsFindsOverlappingBoxesOnly(t *testing.T) {
	// Particles 0 and 1 overlap in space; particle 2 is far away.
	codes := []uint64{10, 20, 30}
	boxes := []morton.AABB{
		box(0, 2),
		box(1, 3),
		box(100, 101),
	}
	tree := Build(codes, boxes)
	pairs := CandidatePairs(tree)

	found01 := false
	for _, p := range pairs {
		if (p.I == 0 && p.J == 1) || (p.I == 1 && p.J == 0) {
			found01 = true
		}
		if p.I == 2 || p.J == 2 {
			t.Fatalf("particle 2 should not overlap anything, got pair %+v", p)
		}
	}
	if !found01 {
		t.Fatal("expected pair (0,1) to be found as overlapping")
	}
}

func TestCandidatePairsEmitsEachUnorderedPairOnce(t *testing.T) {
	codes := []uint64{1, 2, 3, 4}
	boxes := []morton.AABB{box(0, 10), box(0, 10), box(0, 10), box(0, 10)} // all mutually overlapping
	tree := Build(codes, boxes)
	pairs := CandidatePairs(tree)

	seen := make(map[[2]int]bool)
	for _, p := range pairs {
		if p.I >= p.J {
			t.Fatalf("expected i<j, got %+v", p)
		}
		key := [2]int{p.I, p.J}
		if seen[key] {
			t.Fatalf("pair %+v emitted more than once", p)
		}
		seen[key] = true
	}
	want := len(codes) * (len(codes) - 1) / 2
	if len(pairs) != want {
		t.Fatalf("expected %d pairs for fully overlapping set of %d, got %d", want, len(codes), len(pairs))
	}
}

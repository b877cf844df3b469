package morton

import (
	"math"
	"testing"

	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/propagator"
	"github.com/san-kum/cascade/internal/taylor"
)

func seriesConst(order int, c0 float64) taylor.Series {
	s := taylor.New(order)
	s[0] = c0
	return s
}

func TestUnionIsElementwiseBoundingBox(t *testing.T) {
	a := AABB{Lo: [4]float32{-1, 0, 0, 0}, Hi: [4]float32{1, 1, 1, 0}}
	b := AABB{Lo: [4]float32{0, -2, 0, 0}, Hi: [4]float32{0.5, 0, 3, 0}}
	u := Union(a, b)
	if u.Lo[0] != -1 || u.Lo[1] != -2 || u.Hi[2] != 3 || u.Hi[0] != 1 {
		t.Fatalf("unexpected union %+v", u)
	}
}

func TestDisjointDetectsNonOverlap(t *testing.T) {
	a := AABB{Lo: [4]float32{0, 0, 0, 0}, Hi: [4]float32{1, 1, 1, 0}}
	b := AABB{Lo: [4]float32{2, 2, 2, 0}, Hi: [4]float32{3, 3, 3, 0}}
	if !Disjoint(a, b) {
		t.Fatal("expected disjoint")
	}
	c := AABB{Lo: [4]float32{0.5, 0.5, 0.5, 0}, Hi: [4]float32{1.5, 1.5, 1.5, 0}}
	if Disjoint(a, c) {
		t.Fatal("expected overlap")
	}
}

func TestInflateGrowsSymmetrically(t *testing.T) {
	a := AABB{Lo: [4]float32{0, 0, 0, 0}, Hi: [4]float32{0, 0, 0, 0}}
	g := Inflate(a, 2)
	for i := 0; i < 3; i++ {
		if g.Lo[i] != -2 || g.Hi[i] != 2 {
			t.Fatalf("unexpected inflate result %+v", g)
		}
	}
}

func TestChunkAABBStraightLineEnclosesEndpoints(t *testing.T) {
	// Position series x(tau) = tau (velocity 1), y=z=0, over a single
	// substep spanning [0, 1] in absolute time.
	x := taylor.New(4)
	x[1] = 1
	y := seriesConst(4, 0)
	z := seriesConst(4, 0)

	data := propagator.StepData{
		Substeps: []propagator.Substep{
			{TCS: [7]taylor.Series{x, y, z, x, y, z, x}, End: dfloat.FromFloat64(1.0)},
		},
	}

	box := ChunkAABB(dfloat.Zero, data, dfloat.Zero, dfloat.FromFloat64(1.0), 0)
	if box.Lo[0] > 0.001 || box.Hi[0] < 0.999 {
		t.Fatalf("expected box to span [0,1] on x, got lo=%v hi=%v", box.Lo[0], box.Hi[0])
	}
}

func TestChunkAABBPartialOverlapUsesLocalWindow(t *testing.T) {
	x := taylor.New(4)
	x[1] = 1 // x(tau) = tau, substep covers absolute [0,1]
	y := seriesConst(4, 0)
	z := seriesConst(4, 0)

	data := propagator.StepData{
		Substeps: []propagator.Substep{
			{TCS: [7]taylor.Series{x, y, z, x, y, z, x}, End: dfloat.FromFloat64(1.0)},
		},
	}

	// Chunk only covers [0.25, 0.75] of the substep.
	box := ChunkAABB(dfloat.Zero, data, dfloat.FromFloat64(0.25), dfloat.FromFloat64(0.75), 0)
	if box.Lo[0] < 0.24 || box.Lo[0] > 0.26 {
		t.Fatalf("expected lo near 0.25, got %v", box.Lo[0])
	}
	if box.Hi[0] < 0.74 || box.Hi[0] > 0.76 {
		t.Fatalf("expected hi near 0.75, got %v", box.Hi[0])
	}
}

func TestGlobalAABBMatchesSequentialUnion(t *testing.T) {
	boxes := []AABB{
		{Lo: [4]float32{-1, 0, 0, 0}, Hi: [4]float32{0, 1, 1, 0}},
		{Lo: [4]float32{0, -5, 0, 0}, Hi: [4]float32{2, 0, 1, 0}},
		{Lo: [4]float32{0, 0, -3, 0}, Hi: [4]float32{1, 1, 0, 0}},
	}
	got := GlobalAABB(boxes, 4)
	want := Empty()
	for _, b := range boxes {
		want = Union(want, b)
	}
	if got != want {
		t.Fatalf("parallel reduce %+v != sequential %+v", got, want)
	}
}

func TestCodeIsMonotonicAlongEachAxis(t *testing.T) {
	lo := [3]float64{0, 0, 0}
	hi := [3]float64{10, 10, 10}
	prev := Code([3]float64{0, 0, 0}, lo, hi)
	for x := 1.0; x <= 10; x++ {
		c := Code([3]float64{x, 0, 0}, lo, hi)
		if c <= prev {
			t.Fatalf("expected increasing code along x, got %d after %d at x=%v", c, prev, x)
		}
		prev = c
	}
}

func TestSortPermutationOrdersAscendingStably(t *testing.T) {
	codes := []uint64{5, 1, 5, 3, math.MaxUint64}
	vidx := SortPermutation(codes)
	for i := 1; i < len(vidx); i++ {
		if codes[vidx[i]] < codes[vidx[i-1]] {
			t.Fatalf("not sorted at %d", i)
		}
	}
	// Ties (both codes[0] and codes[2] == 5) keep original relative order.
	posOf0, posOf2 := -1, -1
	for k, i := range vidx {
		if i == 0 {
			posOf0 = k
		}
		if i == 2 {
			posOf2 = k
		}
	}
	if posOf0 > posOf2 {
		t.Fatal("stable sort should preserve original order among ties")
	}
}

func TestReorderAppliesPermutationConsistently(t *testing.T) {
	boxes := []AABB{
		{Lo: [4]float32{1}}, {Lo: [4]float32{2}}, {Lo: [4]float32{3}},
	}
	codes := []uint64{30, 10, 20}
	vidx := SortPermutation(codes)
	srtBoxes, srtCodes := Reorder(boxes, codes, vidx)
	for i := 1; i < len(srtCodes); i++ {
		if srtCodes[i] < srtCodes[i-1] {
			t.Fatal("codes not sorted after reorder")
		}
	}
	for k, i := range vidx {
		if srtBoxes[k] != boxes[i] {
			t.Fatal("reordered boxes do not match permutation")
		}
	}
}

func TestDisabledCodeSortsToEnd(t *testing.T) {
	codes := []uint64{5, DisabledCode, 1}
	vidx := SortPermutation(codes)
	last := vidx[len(vidx)-1]
	if codes[last] != DisabledCode {
		t.Fatal("expected disabled code to sort last")
	}
}

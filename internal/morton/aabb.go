// Package morton implements spec.md §4.2: per-chunk, per-particle AABB
// construction from dense Taylor output, global AABB reduction, 3-D
// Morton (Z-order) code assembly, and the sort permutation that makes
// BVH construction (internal/bvh) possible. Grounded on
// original_source/include/cascade/detail/sim_data.hpp's lbs/ubs/mcodes/
// vidx/srt_* fields and on the bucket/key style of
// other_examples/atvsipi-hshg-go__hshg.go and
// other_examples/akmonengine-feather__spatialgrid.go, generalized from
// a single spatial-hash bucket key to a full 64-bit interleaved Morton
// key.
package morton

import (
	"math"
	"sort"

	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/polytools"
	"github.com/san-kum/cascade/internal/propagator"
	"github.com/san-kum/cascade/internal/taylor"
)

// AABB is an axis-aligned bounding box in R^3. The 4th lane is
// reserved per spec.md §3 for a conservative trajectory-magnitude
// bound; this implementation leaves it unused (always 0) since no
// downstream component currently consumes it.
type AABB struct {
	Lo, Hi [4]float32
}

// DisabledCode is the Morton code assigned to disabled particles so
// they sort to one end (spec.md §4.2).
const DisabledCode = ^uint64(0)

// Empty returns an AABB that is the identity for Union (a zero-volume
// box at +/-infinity that anything unions away).
func Empty() AABB {
	return AABB{
		Lo: [4]float32{inf32, inf32, inf32, inf32},
		Hi: [4]float32{-inf32, -inf32, -inf32, -inf32},
	}
}

var inf32 = float32(math.Inf(1))

// Union returns the elementwise bounding union of a and b.
func Union(a, b AABB) AABB {
	var out AABB
	for i := 0; i < 4; i++ {
		out.Lo[i] = min32(a.Lo[i], b.Lo[i])
		out.Hi[i] = max32(a.Hi[i], b.Hi[i])
	}
	return out
}

// Disjoint reports whether a and b do not overlap in any of the first
// three (spatial) lanes.
func Disjoint(a, b AABB) bool {
	for i := 0; i < 3; i++ {
		if a.Hi[i] < b.Lo[i] || b.Hi[i] < a.Lo[i] {
			return true
		}
	}
	return false
}

// Inflate grows an AABB symmetrically by r in each spatial lane
// (spec.md §3's "inflated by the particle's radius").
func Inflate(a AABB, r float64) AABB {
	rf := float32(r)
	out := a
	for i := 0; i < 3; i++ {
		out.Lo[i] -= rf
		out.Hi[i] += rf
	}
	return out
}

// Center returns the AABB's spatial midpoint.
func Center(a AABB) [3]float64 {
	var c [3]float64
	for i := 0; i < 3; i++ {
		c[i] = (float64(a.Lo[i]) + float64(a.Hi[i])) / 2
	}
	return c
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// ChunkAABB computes particle's AABB over [chunkBegin, chunkEnd],
// conservatively enclosing every substep's position polynomial on the
// portion of the substep overlapping the chunk (spec.md §4.2), then
// inflating by radius. tBegin is the absolute start of the first
// substep in data (i.e. the superstep start).
func ChunkAABB(tBegin dfloat.T, data propagator.StepData, chunkBegin, chunkEnd dfloat.T, radius float64) AABB {
	result := Empty()
	segBegin := tBegin

	for _, ss := range data.Substeps {
		segEnd := ss.End
		if segEnd.Cmp(chunkBegin) < 0 {
			segBegin = segEnd
			continue
		}
		if segBegin.Cmp(chunkEnd) > 0 {
			break
		}

		loAbs := segBegin
		if chunkBegin.Cmp(loAbs) > 0 {
			loAbs = chunkBegin
		}
		hiAbs := segEnd
		if chunkEnd.Cmp(hiAbs) < 0 {
			hiAbs = chunkEnd
		}

		localLo := loAbs.Sub(segBegin).Float64()
		localHi := hiAbs.Sub(segBegin).Float64()
		if localHi < localLo {
			segBegin = segEnd
			continue
		}

		var box AABB
		xlo, xhi := enclosureOver(ss.TCS[0], localLo, localHi)
		ylo, yhi := enclosureOver(ss.TCS[1], localLo, localHi)
		zlo, zhi := enclosureOver(ss.TCS[2], localLo, localHi)
		box.Lo = [4]float32{float32(xlo), float32(ylo), float32(zlo), 0}
		box.Hi = [4]float32{float32(xhi), float32(yhi), float32(zhi), 0}

		result = Union(result, box)
		segBegin = segEnd

		if segEnd.Cmp(chunkEnd) >= 0 {
			break
		}
	}

	if !finiteAABB(result) {
		return result
	}
	return Inflate(result, radius)
}

func finiteAABB(a AABB) bool {
	for i := 0; i < 3; i++ {
		if math.IsInf(float64(a.Lo[i]), 0) || math.IsInf(float64(a.Hi[i]), 0) {
			return false
		}
	}
	return true
}

func enclosureOver(poly taylor.Series, lo, hi float64) (float64, float64) {
	translated := taylor.Translate(poly, lo)
	return polytools.Enclosure(translated, hi-lo)
}

// GlobalAABB reduces per-particle AABBs to their elementwise union.
// Per spec.md §4.2/§5, the global box is a non-authoritative value
// (feeding only Morton quantization), so a straightforward
// partition-then-merge parallel reduce gives the same determinism
// guarantee as a lock-free atomic-cell reduction without needing a
// CAS-loop reimplementation of atomic float min/max (Go's standard
// library has no such primitive).
func GlobalAABB(boxes []AABB, workers int) AABB {
	if len(boxes) == 0 {
		return Empty()
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(boxes) {
		workers = len(boxes)
	}

	partials := make([]AABB, workers)
	for w := range partials {
		partials[w] = Empty()
	}

	chunk := (len(boxes) + workers - 1) / workers
	done := make(chan int, workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			start := w * chunk
			end := start + chunk
			if end > len(boxes) {
				end = len(boxes)
			}
			acc := Empty()
			for i := start; i < end; i++ {
				if finiteAABB(boxes[i]) {
					acc = Union(acc, boxes[i])
				}
			}
			partials[w] = acc
			done <- w
		}(w)
	}
	for i := 0; i < workers; i++ {
		<-done
	}

	result := Empty()
	for _, p := range partials {
		result = Union(result, p)
	}
	return result
}

// Code computes the 64-bit Morton key for center, quantized to 21 bits
// per axis within [lo, hi].
func Code(center [3]float64, lo, hi [3]float64) uint64 {
	var code uint64
	const maxQ = (1 << 21) - 1
	for axis := 0; axis < 3; axis++ {
		span := hi[axis] - lo[axis]
		var q uint64
		if span > 0 {
			f := (center[axis] - lo[axis]) / span
			if f < 0 {
				f = 0
			}
			if f > 1 {
				f = 1
			}
			q = uint64(f * float64(maxQ))
		}
		code |= expandBits3(q) << uint(axis)
	}
	return code
}

// expandBits3 inserts two zero bits after each of the low 21 bits of v,
// the standard bit-interleave trick for 3-D Morton codes.
func expandBits3(v uint64) uint64 {
	v &= 0x1FFFFF
	v = (v | (v << 32)) & 0x1F00000000FFFF
	v = (v | (v << 16)) & 0x1F0000FF0000FF
	v = (v | (v << 8)) & 0x100F00F00F00F00F
	v = (v | (v << 4)) & 0x10C30C30C30C30C3
	v = (v | (v << 2)) & 0x1249249249249249
	return v
}

// SortPermutation returns vidx such that mcodes[vidx] is sorted
// ascending, ties broken by original index for determinism (spec.md
// §4.2 "Tie-break by index").
func SortPermutation(mcodes []uint64) []int {
	idx := make([]int, len(mcodes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return mcodes[idx[a]] < mcodes[idx[b]]
	})
	return idx
}

// Reorder applies a permutation (as produced by SortPermutation) to
// boxes and codes, producing the srt_lbs/srt_ubs/srt_mcodes arrays of
// spec.md §3.
func Reorder(boxes []AABB, codes []uint64, vidx []int) (srtBoxes []AABB, srtCodes []uint64) {
	srtBoxes = make([]AABB, len(vidx))
	srtCodes = make([]uint64, len(vidx))
	for k, i := range vidx {
		srtBoxes[k] = boxes[i]
		srtCodes[k] = codes[i]
	}
	return
}

// Package bvh implements spec.md §4.3: top-down bounding volume
// hierarchy construction over Morton-sorted leaves (built recursively,
// depth-first, on the calling goroutine; levels are not built as
// separate parallel passes), splitting on
// the highest differing Morton bit, and explicit-stack traversal for
// broad-phase overlap enumeration. Grounded on
// original_source/include/cascade/detail/sim_data.hpp's bvh_node struct
// (begin/end/parent/left/right/lb/ub) and on the node/pool shape of
// other_examples/jakecoffman-cp__bbtree.go, generalized from an
// insertion-order dynamic AABB tree to a one-shot recursive build over
// a fixed Morton-sorted leaf array.
package bvh

import (
	"math/bits"

	"github.com/san-kum/cascade/internal/morton"
)

// noChild is the sentinel for a leaf's Left/Right (spec.md §3's
// "left, right = -1 for leaves").
const noChild = -1

// Node is one BVH node: [Begin, End) is a contiguous range of indices
// into the Morton-sorted leaf array it was built from. Left == noChild
// identifies a leaf.
type Node struct {
	Begin, End  int
	Parent      int
	Left, Right int
	Box         morton.AABB
}

// Tree is a built BVH: its nodes and root index. The Morton-sorted
// codes/boxes it indexes are not stored in it.
type Tree struct {
	Nodes []Node
	Root  int
}

// IsLeaf reports whether node n has no children.
func (n Node) IsLeaf() bool { return n.Left == noChild }

// Build constructs a BVH over sorted Morton codes/boxes (spec.md
// §4.2's srt_mcodes/srt_lbs/srt_ubs). codes and boxes must be the same
// length, already sorted ascending by code (internal/morton.Reorder's
// output). Returns an empty tree for zero active particles.
func Build(codes []uint64, boxes []morton.AABB) *Tree {
	t := &Tree{}
	if len(codes) == 0 {
		t.Root = noChild
		return t
	}
	t.Root = t.buildRange(codes, boxes, 0, len(codes), noChild)
	return t
}

func (t *Tree) buildRange(codes []uint64, boxes []morton.AABB, begin, end, parent int) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{})

	if end-begin <= 1 {
		t.Nodes[idx] = Node{Begin: begin, End: end, Parent: parent, Left: noChild, Right: noChild, Box: unionRange(boxes, begin, end)}
		return idx
	}

	bit := highestDifferingBit(codes[begin], codes[end-1])
	if bit < 0 {
		// All codes in range are equal: no bit-level split possible,
		// so this becomes a multi-particle leaf (spec.md §4.3 "with
		// equal Morton codes, split midway" — handled by the caller's
		// traversal enumerating all pairs within the leaf range).
		t.Nodes[idx] = Node{Begin: begin, End: end, Parent: parent, Left: noChild, Right: noChild, Box: unionRange(boxes, begin, end)}
		return idx
	}

	split := findSplit(codes, begin, end-1, bit)
	leftIdx := t.buildRange(codes, boxes, begin, split, idx)
	rightIdx := t.buildRange(codes, boxes, split, end, idx)

	t.Nodes[idx] = Node{
		Begin: begin, End: end, Parent: parent,
		Left: leftIdx, Right: rightIdx,
		Box: morton.Union(t.Nodes[leftIdx].Box, t.Nodes[rightIdx].Box),
	}
	return idx
}

func unionRange(boxes []morton.AABB, begin, end int) morton.AABB {
	box := morton.Empty()
	for i := begin; i < end; i++ {
		box = morton.Union(box, boxes[i])
	}
	return box
}

// highestDifferingBit returns the bit index of the most significant
// bit at which a and b differ, or -1 if a == b.
func highestDifferingBit(a, b uint64) int {
	x := a ^ b
	if x == 0 {
		return -1
	}
	return bits.Len64(x) - 1
}

// findSplit locates the first index in (first, last] whose bit `bit`
// differs from codes[first]'s, via binary search exploiting that
// codes is sorted ascending (so the bit transitions monotonically from
// 0 to 1 across the range) — the standard LBVH split-finding routine.
func findSplit(codes []uint64, first, last, bit int) int {
	firstBit := (codes[first] >> uint(bit)) & 1
	lo, hi := first, last
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		midBit := (codes[mid] >> uint(bit)) & 1
		if midBit == firstBit {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

// Pair is a candidate overlapping index pair in sorted-order index
// space (i.e. indices into the codes/boxes slices Build was called
// with, not original particle indices); the caller remaps through
// vidx.
type Pair struct {
	I, J int
}

// CandidatePairs enumerates all overlapping leaf-pair candidates via
// explicit-stack traversal from the root, once per leaf (spec.md §4.3
// "Traversal (broad phase)"). To avoid emitting each unordered pair
// twice, a leaf only records overlaps with leaves whose Begin is
// greater than or equal to its own — any pair with the other leaf
// earlier in sorted order was already emitted when that earlier leaf
// was the active one.
func CandidatePairs(t *Tree) []Pair {
	if len(t.Nodes) == 0 {
		return nil
	}
	var pairs []Pair
	stack := make([]int, 0, 64)

	for li := range t.Nodes {
		leaf := t.Nodes[li]
		if !leaf.IsLeaf() {
			continue
		}

		stack = stack[:0]
		stack = append(stack, t.Root)
		for len(stack) > 0 {
			qi := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			q := t.Nodes[qi]

			if morton.Disjoint(leaf.Box, q.Box) {
				continue
			}
			if !q.IsLeaf() {
				stack = append(stack, q.Left, q.Right)
				continue
			}
			if q.Begin < leaf.Begin {
				continue
			}
			if qi == li {
				for i := leaf.Begin; i < leaf.End; i++ {
					for j := i + 1; j < leaf.End; j++ {
						pairs = append(pairs, Pair{I: i, J: j})
					}
				}
				continue
			}
			for i := leaf.Begin; i < leaf.End; i++ {
				for j := q.Begin; j < q.End; j++ {
					if i < j {
						pairs = append(pairs, Pair{I: i, J: j})
					} else {
						pairs = append(pairs, Pair{I: j, J: i})
					}
				}
			}
		}
	}
	return pairs
}

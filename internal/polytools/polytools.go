// Package polytools implements the polynomial-arithmetic kernel spec.md
// §4.5 and §6.2 describe: translation/evaluation (via internal/taylor),
// squared-distance construction, conservative enclosure, the fast
// exclusion check, and Vincent-Collins-Akritas-style real-root
// isolation by recursive bisection on Descartes's rule of signs.
package polytools

import (
	"errors"
	"math"

	"github.com/san-kum/cascade/internal/cfunc"
	"github.com/san-kum/cascade/internal/taylor"
)

// ErrDepthExceeded is returned by IsolateRoots when the bisection
// recursion exceeds its depth budget without isolating all roots.
// Per spec.md §4.5 step 3 and §7, this is non-fatal: the caller skips
// the offending subinterval and continues.
var ErrDepthExceeded = errors.New("polytools: root isolation recursion depth exceeded")

// PSSDiff3 builds Delta(tau) = (xi-xj)^2+(yi-yj)^2+(zi-zj)^2, the
// squared-distance polynomial spec.md §4.5 calls pssdiff3_cfunc, of
// twice the inputs' order.
func PSSDiff3(xi, yi, zi, xj, yj, zj taylor.Series) taylor.Series {
	dx := widen(taylor.Sub(xi, xj))
	dy := widen(taylor.Sub(yi, yj))
	dz := widen(taylor.Sub(zi, zj))
	return taylor.Add(taylor.Add(taylor.Mul(dx, dx), taylor.Mul(dy, dy)), taylor.Mul(dz, dz))
}

// widen zero-pads a series of order k to order 2k, so that the
// truncated product of two widened series keeps every term.
func widen(s taylor.Series) taylor.Series {
	if len(s) == 0 {
		return s
	}
	out := make(taylor.Series, 2*len(s)-1)
	copy(out, s)
	return out
}

// Enclosure bounds poly(tau) for tau ranging over [0, width] using the
// interval extension of each monomial (tau^i is monotonic increasing
// on tau>=0, so it ranges over [0, width^i]); this is the "Cauchy
// bound or interval extension" spec.md §4.2 asks MortonAABB to use,
// generalized here to serve both MortonAABB and the narrow phase's
// fex_check.
func Enclosure(poly taylor.Series, width float64) (lo, hi float64) {
	if len(poly) == 0 {
		return 0, 0
	}
	lo, hi = poly[0], poly[0]
	p := 1.0
	for i := 1; i < len(poly); i++ {
		p *= width
		c := poly[i]
		if c >= 0 {
			hi += c * p
		} else {
			lo += c * p
		}
	}
	return lo, hi
}

// FexCheck is the fast exclusion test of spec.md §4.5/§6.2: it bounds
// poly(tau)-threshold over [0, width] and reports whether that bound
// is provably all-positive, all-negative, or indeterminate.
func FexCheck(poly taylor.Series, width, threshold float64) cfunc.FexCheckResult {
	lo, hi := Enclosure(poly, width)
	lo -= threshold
	hi -= threshold
	switch {
	case lo > 0:
		return cfunc.FexPositive
	case hi < 0:
		return cfunc.FexNegative
	default:
		return cfunc.FexUnknown
	}
}

// SignChanges counts the number of sign changes across the nonzero
// coefficients of poly (Descartes's rule of signs); an upper bound on
// the number of positive real roots.
func SignChanges(poly taylor.Series) int {
	changes := 0
	prevSign := 0
	for _, c := range poly {
		var sign int
		switch {
		case c > 0:
			sign = 1
		case c < 0:
			sign = -1
		default:
			continue
		}
		if prevSign != 0 && sign != prevSign {
			changes++
		}
		prevSign = sign
	}
	return changes
}

// RTSCC translates poly so that tau=a becomes the origin, then rescales
// the variable so tau=b becomes tau=1, and reports the sign-change
// count of the transformed polynomial plus its value at tau=1. This is
// the "translate+scale, count sign changes" step of spec.md §4.5/§6.2.
func RTSCC(poly taylor.Series, a, b float64) (transformed taylor.Series, signChanges int, pt1 float64) {
	transformed = taylor.ScaleVar(taylor.Translate(poly, a), b-a)
	signChanges = SignChanges(transformed)
	pt1 = PT1(transformed)
	return
}

// PT1 evaluates poly at tau=1. Per spec.md §9 Open Questions, this is
// an auxiliary value only: nothing in the package branches on it, and
// it is never used as a root-count signal.
func PT1(poly taylor.Series) float64 {
	return poly.Eval(1)
}

// Interval is a real-root isolating interval: poly has exactly one
// real root in (Lo, Hi).
type Interval struct {
	Lo, Hi float64
}

// IsolateRoots finds all real-root isolating intervals of poly within
// [a, b], by recursive bisection guided by Descartes's rule of signs
// (spec.md §4.5 step 2): zero sign changes means no root in the
// interval, one sign change isolates exactly one root, and more than
// one forces a bisection at the midpoint. The signs are counted after
// mapping (a, b) onto (0, +inf), so a root lying exactly on a, on b or
// on a bisection midpoint is not reported; an identically zero
// polynomial is bisected until the depth budget runs out. maxDepth
// bounds the recursion (spec.md §4.5 step 3); exceeding it returns
// ErrDepthExceeded and the caller should skip the subinterval rather
// than treat it as fatal (spec.md §7).
func IsolateRoots(poly taylor.Series, a, b float64, maxDepth int) ([]Interval, error) {
	return isolate(poly, a, b, 0, maxDepth)
}

func isolate(poly taylor.Series, a, b float64, depth, maxDepth int) ([]Interval, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	transformed, _, _ := RTSCC(poly, a, b)
	// Substitute tau = 1/(1+x) (reverse the coefficients, then shift by
	// 1): the sign changes of the result bound the roots of transformed
	// on (0, 1), i.e. the roots of poly on (a, b).
	n := len(transformed)
	for n > 0 && transformed[n-1] == 0 {
		n--
	}
	rev := make(taylor.Series, n)
	for i := 0; i < n; i++ {
		rev[n-1-i] = transformed[i]
	}
	signChanges := SignChanges(taylor.Translate(rev, 1))
	switch {
	case signChanges == 0 && n > 0:
		return nil, nil
	case signChanges == 1:
		return []Interval{{Lo: a, Hi: b}}, nil
	default:
		mid := 0.5 * (a + b)
		left, err := isolate(poly, a, mid, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		right, err := isolate(poly, mid, b, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}
}

// Refine narrows an isolating interval to a single root estimate by
// plain bisection on the sign of poly itself, for `steps` iterations
// (spec.md §4.5 "Root refinement"). poly is evaluated in absolute tau
// coordinates (not the rescaled [0,1] RTSCC frame).
func Refine(poly taylor.Series, lo, hi float64, steps int) float64 {
	flo := poly.Eval(lo)
	for i := 0; i < steps; i++ {
		mid := 0.5 * (lo + hi)
		fmid := poly.Eval(mid)
		if fmid == 0 {
			return mid
		}
		if sameSign(flo, fmid) {
			lo, flo = mid, fmid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// RefineNewton refines a bisection estimate with bounded Newton steps,
// falling back to the bisection midpoint whenever a Newton step would
// leave [lo, hi] (guarding against the usual Newton divergence near
// inflection points).
func RefineNewton(poly taylor.Series, lo, hi float64, steps int) float64 {
	deriv := poly.Derivative()
	x := Refine(poly, lo, hi, steps)
	for i := 0; i < steps; i++ {
		fx := poly.Eval(x)
		dfx := deriv.Eval(x)
		if dfx == 0 {
			break
		}
		next := x - fx/dfx
		if next < lo || next > hi || math.IsNaN(next) {
			break
		}
		x = next
	}
	return x
}

func sameSign(a, b float64) bool {
	if a == 0 || b == 0 {
		return true
	}
	return (a > 0) == (b > 0)
}

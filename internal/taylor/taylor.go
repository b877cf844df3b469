// Package taylor implements truncated power-series ("Taylor
// coefficient") arithmetic. A Series of order k represents
//
//	f(tau) = c[0] + c[1]*tau + c[2]*tau^2 + ... + c[k]*tau^k
//
// over a local substep variable tau, with all products truncated to
// order k. This is the building block internal/dynamics uses to
// produce dense per-substep output for the Propagator (spec.md §4.1)
// and internal/polytools uses to build the squared-distance polynomial
// (spec.md §4.5, "pssdiff3_cfunc").
package taylor

import "math"

// Series is a dense coefficient slice, index i holding the coefficient
// of tau^i. len(Series)-1 is the order.
type Series []float64

// New allocates a zeroed series of the given order (order+1 coefficients).
func New(order int) Series {
	return make(Series, order+1)
}

// Order returns the series order (degree).
func (s Series) Order() int { return len(s) - 1 }

// Clone returns an independent copy.
func (s Series) Clone() Series {
	c := make(Series, len(s))
	copy(c, s)
	return c
}

// Eval evaluates the series at tau via Horner's method.
func (s Series) Eval(tau float64) float64 {
	if len(s) == 0 {
		return 0
	}
	acc := s[len(s)-1]
	for i := len(s) - 2; i >= 0; i-- {
		acc = acc*tau + s[i]
	}
	return acc
}

// Add returns a+b truncated to the shorter operand's order.
func Add(a, b Series) Series {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make(Series, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] + b[i]
	}
	return out
}

// Sub returns a-b truncated to the shorter operand's order.
func Sub(a, b Series) Series {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make(Series, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] - b[i]
	}
	return out
}

// Scale returns a*k.
func Scale(a Series, k float64) Series {
	out := make(Series, len(a))
	for i := range a {
		out[i] = a[i] * k
	}
	return out
}

// Mul returns the truncated Cauchy product of a and b, at the order of
// the shorter operand.
func Mul(a, b Series) Series {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make(Series, n)
	for i := 0; i < n; i++ {
		var acc float64
		for j := 0; j <= i; j++ {
			acc += a[j] * b[i-j]
		}
		out[i] = acc
	}
	return out
}

// Recip returns 1/a via the standard division recurrence for truncated
// power series, requiring a[0] != 0:
//
//	c[0] = 1/a[0]
//	c[n] = -(1/a[0]) * sum_{j=1}^{n} a[j]*c[n-j]
func Recip(a Series) Series {
	n := len(a)
	out := make(Series, n)
	inv0 := 1.0 / a[0]
	out[0] = inv0
	for k := 1; k < n; k++ {
		var acc float64
		for j := 1; j <= k; j++ {
			acc += a[j] * out[k-j]
		}
		out[k] = -inv0 * acc
	}
	return out
}

// Div returns a/b.
func Div(a, b Series) Series {
	return Mul(a, Recip(b))
}

// Pow returns a^p for real exponent p, via the Euler/Leibniz power
// recurrence for truncated power series (valid for a[0] > 0):
//
//	c[0] = a[0]^p
//	n*c[n] = sum_{j=0}^{n-1} (p*(n-j) - j) * a[n-j] * c[j] / a[0]
//
// This is the same recurrence used by automatic-differentiation
// Taylor-integration packages to propagate non-polynomial right-hand
// sides (e.g. r^-3 in a gravity law) through arbitrary order.
func Pow(a Series, p float64) Series {
	n := len(a)
	out := make(Series, n)
	out[0] = math.Pow(a[0], p)
	for k := 1; k < n; k++ {
		var acc float64
		for j := 0; j < k; j++ {
			acc += (p*float64(k-j) - float64(j)) * a[k-j] * out[j]
		}
		out[k] = acc / (float64(k) * a[0])
	}
	return out
}

// Sqrt returns sqrt(a) (a[0] must be > 0), as Pow(a, 0.5) specialized
// with the cheaper two-term recurrence.
func Sqrt(a Series) Series {
	n := len(a)
	out := make(Series, n)
	out[0] = math.Sqrt(a[0])
	for k := 1; k < n; k++ {
		var acc float64
		for j := 1; j < k; j++ {
			acc += out[j] * out[k-j]
		}
		out[k] = (a[k] - acc) / (2 * out[0])
	}
	return out
}

// Translate returns the Taylor expansion of f(tau+t0) about tau=0
// (a shift of the variable only; ScaleVar rescales it), computed via
// repeated synthetic division (the same transform cascade's narrow
// phase calls "translate" before "rtscc" scaling, spec.md §4.5 step 1).
func Translate(a Series, t0 float64) Series {
	n := len(a)
	out := a.Clone()
	// Horner-style synthetic shift: n-1 passes of nested multiply-add.
	for i := 1; i < n; i++ {
		for j := n - 1; j >= i; j-- {
			out[j-1] += t0 * out[j]
		}
	}
	return out
}

// Derivative returns d/dtau of the series, one order lower.
func (s Series) Derivative() Series {
	if len(s) <= 1 {
		return New(0)
	}
	out := make(Series, len(s)-1)
	for i := 1; i < len(s); i++ {
		out[i-1] = s[i] * float64(i)
	}
	return out
}

// ScaleVar returns the Taylor expansion of f(k*tau), i.e. rescales the
// independent variable (spec.md §4.5's "scale to [0,1]" step of rtscc).
func ScaleVar(a Series, k float64) Series {
	out := make(Series, len(a))
	factor := 1.0
	for i := range a {
		out[i] = a[i] * factor
		factor *= k
	}
	return out
}

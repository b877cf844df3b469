// Package cfunc declares the external numerics contract (spec.md §6.2)
// that the core consumes: the five compiled-function roles a symbolic
// dynamics/JIT layer would normally supply (propagate-Taylor-state,
// build-squared-distance-polynomial, fast-exclusion, translate+scale,
// evaluate-at-one). Here they are Go function types gathered in Set
// rather than raw function pointers; nothing in the core calls through
// a Set (the narrow phase calls internal/polytools directly and uses
// only FexCheckResult from this package). The calling convention is the
// same one sim_data.hpp documents: every function here must be safe to call
// concurrently from multiple workers, and must be side-effect free
// except through its return value.
package cfunc

import "github.com/san-kum/cascade/internal/taylor"

// Set bundles the five roles a dynamics collaborator must provide for
// one particle kind. Dynamics implementations (internal/dynamics) are
// the Go-native analogue of sim_data.hpp's pta_cfunc/pssdiff3_cfunc/
// fex_check/rtscc/pt1 function pointers.
type Set struct {
	// PTA propagates Taylor state: given the current state coefficients
	// for one substep, returns the state coefficients one substep later.
	// Optional; the Propagator may instead drive a full integrator.
	PTA PTAFunc

	// PSSDiff3 builds the squared-distance polynomial between two
	// particles' position Taylor series over a shared substep.
	PSSDiff3 PSSDiff3Func

	// FexCheck performs a fast, conservative exclusion test.
	FexCheck FexCheckFunc

	// RTSCC translates+scales a polynomial to [0,1] and counts sign
	// changes of its coefficients (Descartes's rule of signs).
	RTSCC RTSCCFunc

	// PT1 evaluates a polynomial at tau=1.
	PT1 PT1Func
}

// PTAFunc propagates Taylor state forward by one substep.
type PTAFunc func(state [7]taylor.Series, pars []float64) [7]taylor.Series

// PSSDiff3Func builds Delta(tau) = sum of squared coordinate
// differences between particle i and j's position series, as a single
// Series of order 2*order.
type PSSDiff3Func func(xi, yi, zi, xj, yj, zj taylor.Series) taylor.Series

// FexCheckResult is the conservative sign classification fex_check
// produces for a polynomial over an interval.
type FexCheckResult int

const (
	// FexUnknown means the bound straddles zero; the interval cannot be
	// excluded and must go to root isolation.
	FexUnknown FexCheckResult = iota
	// FexPositive means the polynomial is provably positive throughout
	// the interval (no root, no crossing into collision/conjunction range).
	FexPositive
	// FexNegative means the polynomial is provably negative throughout.
	FexNegative
)

// FexCheckFunc bounds poly(tau)-threshold on [0, width] and returns a
// conservative sign classification.
type FexCheckFunc func(poly taylor.Series, width float64, threshold float64) FexCheckResult

// RTSCCFunc translates poly to origin a, scales the interval [a,b] to
// [0,1], and returns the transformed polynomial plus the number of
// sign changes in its coefficients (Descartes's rule of signs), and the
// value of the transformed polynomial at tau=1 (pt1, used only as an
// auxiliary check per spec.md §9 Open Questions).
type RTSCCFunc func(poly taylor.Series, a, b float64) (transformed taylor.Series, signChanges int, pt1 float64)

// PT1Func evaluates poly at tau=1; exposed standalone because
// spec.md §6.2 lists it as its own collaborator operation.
type PT1Func func(poly taylor.Series) float64

// Package dynamics supplies concrete right-hand sides that fulfil the
// §6.2 external-numerics contract via internal/taylor's recurrence
// arithmetic, in place of the symbolic/JIT dynamics builder spec.md §1
// explicitly puts out of scope. These are illustrative collaborators,
// not a prescribed physics model (spec.md Non-goals): a zero-force
// free-particle system and a perturbable Keplerian two-body system,
// generalizing the teacher's per-model dynamo.System implementations
// (internal/physics/*.go) from a single derivative evaluation to dense
// Taylor-coefficient expansion.
package dynamics

import "github.com/san-kum/cascade/internal/taylor"

// System expands one particle's six-variable state (x,y,z,vx,vy,vz)
// into Taylor series of the requested order about tau=0, via the
// recurrence relations method: order k+1 coefficients are derived from
// order-k coefficients of the right-hand side, the standard way
// automatic-differentiation Taylor integrators avoid symbolic
// differentiation altogether.
type System interface {
	// Expand returns, for the given initial state and parameters, the
	// Taylor series (order+1 coefficients each) of x, y, z, vx, vy, vz
	// over the substep-local variable tau.
	Expand(state [6]float64, pars []float64, order int) (x, y, z, vx, vy, vz taylor.Series)

	// NumPars reports how many parameters this system consumes per
	// particle (spec.md §6.1's "pars"; 0 for dynamics with none).
	NumPars() int
}

// FreeSystem is zero dynamics: straight-line ballistic motion. Used by
// the "zero dynamics" collision/conjunction scenarios of spec.md §8.
type FreeSystem struct{}

func (FreeSystem) NumPars() int { return 0 }

func (FreeSystem) Expand(state [6]float64, _ []float64, order int) (x, y, z, vx, vy, vz taylor.Series) {
	x, vx = linear(state[0], state[3], order)
	y, vy = linear(state[1], state[4], order)
	z, vz = linear(state[2], state[5], order)
	return
}

func linear(p0, v0 float64, order int) (pos, vel taylor.Series) {
	pos = taylor.New(order)
	vel = taylor.New(order)
	pos[0] = p0
	vel[0] = v0
	if order >= 1 {
		pos[1] = v0
	}
	return
}

// KeplerSystem is the classic restricted two-body problem: a particle
// orbiting a central mass under gravitational parameter Mu, optionally
// perturbed by a per-particle additive parameter (pars[0]), mirroring
// original_source/test/sim_api.cpp's `dyn[0].second += heyoka::par[1]`
// perturbation of the first equation of cascade's built-in Kepler
// dynamics.
type KeplerSystem struct {
	Mu float64
}

func (KeplerSystem) NumPars() int { return 1 }

// Expand computes the Taylor coefficients of the solution to
//
//	x'' = -(Mu+pars[0]) * x / r^3,  r = sqrt(x^2+y^2+z^2)
//
// order by order: at each order k, R2[0..k] and R3inv[0..k] are fully
// determined by X,Y,Z[0..k] (already known), so internal/taylor's
// whole-series Mul/Pow can be called directly on the coefficients
// computed so far to extract the next order's right-hand side.
func (k KeplerSystem) Expand(state [6]float64, pars []float64, order int) (x, y, z, vx, vy, vz taylor.Series) {
	mu := k.Mu
	if len(pars) > 0 {
		mu += pars[0]
	}

	x = make(taylor.Series, order+1)
	y = make(taylor.Series, order+1)
	z = make(taylor.Series, order+1)
	vx = make(taylor.Series, order+1)
	vy = make(taylor.Series, order+1)
	vz = make(taylor.Series, order+1)

	x[0], y[0], z[0] = state[0], state[1], state[2]
	vx[0], vy[0], vz[0] = state[3], state[4], state[5]

	for ord := 0; ord < order; ord++ {
		xk := x[:ord+1]
		yk := y[:ord+1]
		zk := z[:ord+1]

		r2 := taylor.Add(taylor.Add(taylor.Mul(xk, xk), taylor.Mul(yk, yk)), taylor.Mul(zk, zk))
		r3inv := taylor.Pow(r2, -1.5)

		px := taylor.Mul(xk, r3inv)
		py := taylor.Mul(yk, r3inv)
		pz := taylor.Mul(zk, r3inv)

		denom := float64(ord + 1)
		vx[ord+1] = -mu * px[ord] / denom
		vy[ord+1] = -mu * py[ord] / denom
		vz[ord+1] = -mu * pz[ord] / denom

		x[ord+1] = vx[ord] / denom
		y[ord+1] = vy[ord] / denom
		z[ord+1] = vz[ord] / denom
	}

	return
}

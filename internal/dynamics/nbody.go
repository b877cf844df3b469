package dynamics

import "github.com/san-kum/cascade/internal/taylor"

// NBody is a softened-gravity mutual n-body system: every particle
// attracts every other. Unlike System, it needs the joint state of all
// bodies at once (gravity couples them), so it is exposed through
// ExpandAll rather than the single-particle System interface; it
// mirrors the teacher's internal/physics/nbody.go pairwise-force loop,
// generalized from a single force evaluation to dense per-body Taylor
// expansion. This is an illustrative dynamics collaborator (spec.md §1
// explicitly leaves the gravity model unprescribed), used by neither
// the CLI nor the Driver's collision pipeline, which expects the
// single-particle System contract.
type NBody struct {
	G         float64
	Softening float64
}

// ExpandAll returns, for each of len(states) bodies, Taylor series for
// x, y, z (order+1 coefficients) given every body's initial state and
// mass.
func (n NBody) ExpandAll(states [][6]float64, masses []float64, order int) [][3]taylor.Series {
	nb := len(states)
	x := make([]taylor.Series, nb)
	y := make([]taylor.Series, nb)
	z := make([]taylor.Series, nb)
	vx := make([]taylor.Series, nb)
	vy := make([]taylor.Series, nb)
	vz := make([]taylor.Series, nb)

	for i, s := range states {
		x[i] = make(taylor.Series, order+1)
		y[i] = make(taylor.Series, order+1)
		z[i] = make(taylor.Series, order+1)
		vx[i] = make(taylor.Series, order+1)
		vy[i] = make(taylor.Series, order+1)
		vz[i] = make(taylor.Series, order+1)
		x[i][0], y[i][0], z[i][0] = s[0], s[1], s[2]
		vx[i][0], vy[i][0], vz[i][0] = s[3], s[4], s[5]
	}

	eps2 := taylor.Series{n.Softening * n.Softening}

	for ord := 0; ord < order; ord++ {
		denom := float64(ord + 1)

		ax := make([]taylor.Series, nb)
		ay := make([]taylor.Series, nb)
		az := make([]taylor.Series, nb)
		for i := range states {
			ax[i] = make(taylor.Series, ord+1)
			ay[i] = make(taylor.Series, ord+1)
			az[i] = make(taylor.Series, ord+1)
		}

		for i := 0; i < nb; i++ {
			for j := i + 1; j < nb; j++ {
				xi, yi, zi := x[i][:ord+1], y[i][:ord+1], z[i][:ord+1]
				xj, yj, zj := x[j][:ord+1], y[j][:ord+1], z[j][:ord+1]

				dx := taylor.Sub(xj, xi)
				dy := taylor.Sub(yj, yi)
				dz := taylor.Sub(zj, zi)

				r2 := taylor.Add(taylor.Add(taylor.Mul(dx, dx), taylor.Mul(dy, dy)), taylor.Mul(dz, dz))
				r2 = taylor.Add(r2, broadcast(eps2, ord+1))
				r3inv := taylor.Pow(r2, -1.5)

				fx := taylor.Mul(dx, r3inv)
				fy := taylor.Mul(dy, r3inv)
				fz := taylor.Mul(dz, r3inv)

				gi := n.G * masses[j]
				gj := n.G * masses[i]
				for k := 0; k <= ord; k++ {
					ax[i][k] += gi * fx[k]
					ay[i][k] += gi * fy[k]
					az[i][k] += gi * fz[k]
					ax[j][k] -= gj * fx[k]
					ay[j][k] -= gj * fy[k]
					az[j][k] -= gj * fz[k]
				}
			}
		}

		for i := 0; i < nb; i++ {
			vx[i][ord+1] = ax[i][ord] / denom
			vy[i][ord+1] = ay[i][ord] / denom
			vz[i][ord+1] = az[i][ord] / denom

			x[i][ord+1] = vx[i][ord] / denom
			y[i][ord+1] = vy[i][ord] / denom
			z[i][ord+1] = vz[i][ord] / denom
		}
	}

	out := make([][3]taylor.Series, nb)
	for i := range out {
		out[i] = [3]taylor.Series{x[i], y[i], z[i]}
	}
	return out
}

func broadcast(constant taylor.Series, n int) taylor.Series {
	out := make(taylor.Series, n)
	if len(constant) > 0 {
		out[0] = constant[0]
	}
	return out
}

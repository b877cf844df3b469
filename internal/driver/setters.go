package driver

import (
	"math"

	"github.com/san-kum/cascade/internal/broadphase"
	"github.com/san-kum/cascade/internal/propagator"
)

// WithCt sets the collisional timestep ct>0, finite (spec.md §6.1).
func WithCt(ct float64) Option {
	return func(d *Driver) error { return d.SetCt(ct) }
}

// WithNParCt sets the number of chunks per superstep, n_par_ct>=1.
func WithNParCt(n int) Option {
	return func(d *Driver) error { return d.SetNParCt(n) }
}

// WithTol sets the integrator tolerance, tol>0.
func WithTol(tol float64) Option {
	return func(d *Driver) error { return d.SetTol(tol) }
}

// WithHighAccuracy selects the higher-order integrator variant.
func WithHighAccuracy(on bool) Option {
	return func(d *Driver) error { d.highAccuracy = on; return nil }
}

// WithReentryRadius sets the reentry ellipsoid semiaxes (spherical if
// all three are equal); zero disables reentry detection.
func WithReentryRadius(semiaxes [3]float64) Option {
	return func(d *Driver) error { return d.SetReentryRadius(semiaxes) }
}

// WithExitRadius sets the exit sphere radius; 0 disables exit detection.
func WithExitRadius(r float64) Option {
	return func(d *Driver) error { return d.SetExitRadius(r) }
}

// WithConjThresh sets the conjunction distance threshold.
func WithConjThresh(thresh float64) Option {
	return func(d *Driver) error { return d.SetConjThresh(thresh) }
}

// WithMinCollRadius sets the minimum-collision-radius policy.
func WithMinCollRadius(r float64) Option {
	return func(d *Driver) error { return d.SetMinCollRadius(r) }
}

// WithWorkers sets the fan-out worker count for per-particle and
// per-chunk parallelism.
func WithWorkers(n int) Option {
	return func(d *Driver) error {
		if n < 1 {
			n = 1
		}
		d.workers = n
		return nil
	}
}

// SetCt validates and sets the collisional timestep.
func (d *Driver) SetCt(ct float64) error {
	if !(ct > 0) || math.IsInf(ct, 0) {
		return &ConfigError{Field: "ct", Value: ct, Wrapped: ErrInvalidState}
	}
	d.ct = ct
	return nil
}

// SetNParCt validates and sets the chunk count per superstep.
func (d *Driver) SetNParCt(n int) error {
	if n < 1 {
		return &ConfigError{Field: "n_par_ct", Value: n, Wrapped: ErrInvalidState}
	}
	d.nParCt = n
	return nil
}

// SetTol validates and sets the integrator tolerance.
func (d *Driver) SetTol(tol float64) error {
	if !(tol > 0) {
		return &ConfigError{Field: "tol", Value: tol, Wrapped: ErrInvalidState}
	}
	d.tol = tol
	if d.prop != nil {
		d.prop = propagator.New(d.sys, d.propagatorConfig())
	}
	return nil
}

// SetReentryRadius validates and sets the reentry ellipsoid semiaxes;
// all-zero disables reentry detection, otherwise all supplied
// nonzero semiaxes must be positive.
func (d *Driver) SetReentryRadius(semiaxes [3]float64) error {
	for _, s := range semiaxes {
		if s < 0 || math.IsInf(s, 0) || math.IsNaN(s) {
			return &ConfigError{Field: "reentry_radius", Value: semiaxes, Wrapped: ErrInvalidState}
		}
	}
	d.reentryRadius = semiaxes
	if d.prop != nil {
		d.prop = propagator.New(d.sys, d.propagatorConfig())
	}
	return nil
}

// SetExitRadius validates and sets the exit-sphere radius.
func (d *Driver) SetExitRadius(r float64) error {
	if r < 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return &ConfigError{Field: "exit_radius", Value: r, Wrapped: ErrInvalidState}
	}
	d.exitRadius = r
	if d.prop != nil {
		d.prop = propagator.New(d.sys, d.propagatorConfig())
	}
	return nil
}

// SetConjThresh validates and sets the conjunction distance threshold.
func (d *Driver) SetConjThresh(thresh float64) error {
	if thresh < 0 || math.IsInf(thresh, 0) || math.IsNaN(thresh) {
		return &ConfigError{Field: "conj_thresh", Value: thresh, Wrapped: ErrInvalidState}
	}
	d.conjThresh = thresh
	return nil
}

// SetMinCollRadius validates and sets the min_coll_radius policy.
func (d *Driver) SetMinCollRadius(r float64) error {
	if r < 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return &ConfigError{Field: "min_coll_radius", Value: r, Wrapped: ErrInvalidState}
	}
	d.minCollRadius = r
	return nil
}

// SetCollWhitelist sets the collision whitelist; an empty slice clears
// it (no restriction).
func (d *Driver) SetCollWhitelist(indices []int) error {
	wl, err := d.buildWhitelist(indices)
	if err != nil {
		return err
	}
	d.collWhitelist = wl
	return nil
}

// SetConjWhitelist sets the conjunction whitelist.
func (d *Driver) SetConjWhitelist(indices []int) error {
	wl, err := d.buildWhitelist(indices)
	if err != nil {
		return err
	}
	d.conjWhitelist = wl
	return nil
}

func (d *Driver) buildWhitelist(indices []int) (broadphase.Whitelist, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	wl := make(broadphase.Whitelist, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(d.state) {
			return nil, &ConfigError{Field: "whitelist", Value: idx, Wrapped: ErrIndexOutOfRange}
		}
		wl[idx] = true
	}
	return wl, nil
}

// SetRadius sets every particle's collisional radius to the same
// scalar value (spec.md §4's supplemented scalar-or-per-particle
// radius behavior, from original_source/test/sim_api.cpp).
func (d *Driver) SetRadius(r float64) error {
	if r < 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return &ConfigError{Field: "radius", Value: r, Wrapped: ErrInvalidState}
	}
	for i := range d.state {
		d.state[i][6] = r
	}
	return nil
}

// SetRadii sets each particle's collisional radius individually; len
// must equal the particle count.
func (d *Driver) SetRadii(radii []float64) error {
	if len(radii) != len(d.state) {
		return &ConfigError{Field: "radii", Value: len(radii), Wrapped: ErrDimensionMismatch}
	}
	for _, r := range radii {
		if r < 0 || math.IsInf(r, 0) || math.IsNaN(r) {
			return &ConfigError{Field: "radii", Value: r, Wrapped: ErrInvalidState}
		}
	}
	for i, r := range radii {
		d.state[i][6] = r
	}
	return nil
}

// Package config loads and validates the YAML run description consumed
// by cmd/cascade: which dynamics model to propagate, the particle
// population, and every Driver knob from spec.md §6.1. Grounded on the
// teacher's internal/config/config.go Load/Save/DefaultConfig shape
// (gopkg.in/yaml.v3), generalized from a fixed per-model state layout
// to a variable-length particle list plus a Driver option set.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/cascade/internal/driver"
	"github.com/san-kum/cascade/internal/dynamics"
)

const (
	DefaultCt         = 0.1
	DefaultNParCt     = 4
	DefaultTol        = 1e-13
	DefaultWorkers    = 4
	DefaultSteps      = 100
	DefaultMu         = 1.0
	DefaultMinRadius  = 0.0
	DefaultConjThresh = 0.0
)

// Config is the top-level run description: which dynamics.System to
// build, the initial particle population, and the Driver's
// construction options (spec.md §6.1).
type Config struct {
	Model string  `yaml:"model"` // "free" | "kepler"
	Mu    float64 `yaml:"mu"`    // KeplerSystem.Mu, ignored for "free"

	Ct           float64 `yaml:"ct"`
	NParCt       int     `yaml:"n_par_ct"`
	Tol          float64 `yaml:"tol"`
	HighAccuracy bool    `yaml:"high_accuracy"`
	Workers      int     `yaml:"workers"`
	Steps        int     `yaml:"steps"`

	ReentryRadius [3]float64 `yaml:"reentry_radius"`
	ExitRadius    float64    `yaml:"exit_radius"`
	ConjThresh    float64    `yaml:"conj_thresh"`
	MinCollRadius float64    `yaml:"min_coll_radius"`
	CollWhitelist []int      `yaml:"coll_whitelist,omitempty"`
	ConjWhitelist []int      `yaml:"conj_whitelist,omitempty"`

	Particles []ParticleConfig `yaml:"particles"`
}

// ParticleConfig is one row of the Driver's state buffer (spec.md
// §6.1 "state: length 7*N, row-major (x,y,z,vx,vy,vz,r)") plus its
// optional per-particle dynamics parameters.
type ParticleConfig struct {
	Pos    [3]float64 `yaml:"pos"`
	Vel    [3]float64 `yaml:"vel"`
	Radius float64    `yaml:"radius"`
	Pars   []float64  `yaml:"pars,omitempty"`
}

// DefaultConfig returns a minimal two-particle free-dynamics scenario,
// the base that Load layers a YAML file over. (`cascade run` with no
// flags uses the head_on_collision preset, not this.)
func DefaultConfig() *Config {
	return &Config{
		Model:         "free",
		Mu:            DefaultMu,
		Ct:            DefaultCt,
		NParCt:        DefaultNParCt,
		Tol:           DefaultTol,
		Workers:       DefaultWorkers,
		Steps:         DefaultSteps,
		MinCollRadius: DefaultMinRadius,
		ConjThresh:    DefaultConjThresh,
		Particles: []ParticleConfig{
			{Pos: [3]float64{-1, 0, 0}, Vel: [3]float64{0.5, 0, 0}, Radius: 0.05},
			{Pos: [3]float64{1, 0, 0}, Vel: [3]float64{-0.5, 0, 0}, Radius: 0.05},
		},
	}
}

// Load reads and validates a YAML run file, layering it over
// DefaultConfig so partially-specified files still produce a usable
// Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save serializes cfg as YAML to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects a config the Driver would reject anyway, with a
// field name attached, before a constructor call turns it into a less
// legible driver.ConfigError.
func (c *Config) Validate() error {
	switch c.Model {
	case "free", "kepler":
	default:
		return fmt.Errorf("config: unknown model %q (want \"free\" or \"kepler\")", c.Model)
	}
	if len(c.Particles) == 0 {
		return fmt.Errorf("config: particles must be non-empty")
	}
	return nil
}

// BuildSystem constructs the dynamics.System named by Model (spec.md
// §6.1 "dyn"). "nbody" is intentionally absent: dynamics.NBody couples
// every particle's state at once and does not implement the
// single-particle System contract the Driver requires, so neither the
// Driver nor the CLI uses it.
func (c *Config) BuildSystem() (dynamics.System, error) {
	switch c.Model {
	case "free":
		return dynamics.FreeSystem{}, nil
	case "kepler":
		return dynamics.KeplerSystem{Mu: c.Mu}, nil
	default:
		return nil, fmt.Errorf("config: unknown model %q", c.Model)
	}
}

// State flattens Particles into the Driver's row-major (x,y,z,vx,vy,vz,r)
// buffer.
func (c *Config) State() []float64 {
	out := make([]float64, 0, 7*len(c.Particles))
	for _, p := range c.Particles {
		out = append(out,
			p.Pos[0], p.Pos[1], p.Pos[2],
			p.Vel[0], p.Vel[1], p.Vel[2],
			p.Radius,
		)
	}
	return out
}

// Pars flattens each particle's Pars into the Driver's concatenated
// parameter buffer. It returns nil (rather than a slice of zeros) when
// no particle specifies any parameters, so New treats it as "absent"
// per spec.md §6.1.
func (c *Config) Pars() []float64 {
	any := false
	for _, p := range c.Particles {
		if len(p.Pars) > 0 {
			any = true
			break
		}
	}
	if !any {
		return nil
	}
	var out []float64
	for _, p := range c.Particles {
		out = append(out, p.Pars...)
	}
	return out
}

// Options translates the Config's Driver knobs into driver.Option
// values for driver.New.
func (c *Config) Options() []driver.Option {
	opts := []driver.Option{
		driver.WithCt(c.Ct),
		driver.WithNParCt(c.NParCt),
		driver.WithTol(c.Tol),
		driver.WithHighAccuracy(c.HighAccuracy),
		driver.WithReentryRadius(c.ReentryRadius),
		driver.WithExitRadius(c.ExitRadius),
		driver.WithConjThresh(c.ConjThresh),
		driver.WithMinCollRadius(c.MinCollRadius),
		driver.WithWorkers(c.Workers),
	}
	return opts
}

// NewDriver builds the dynamics system and Driver described by c in
// one call, applying CollWhitelist/ConjWhitelist (which New's options
// cannot express, since they validate against the particle count New
// itself establishes) after construction.
func (c *Config) NewDriver() (*driver.Driver, error) {
	sys, err := c.BuildSystem()
	if err != nil {
		return nil, err
	}
	d, err := driver.New(sys, c.State(), c.Pars(), c.Options()...)
	if err != nil {
		return nil, err
	}
	if len(c.CollWhitelist) > 0 {
		if err := d.SetCollWhitelist(c.CollWhitelist); err != nil {
			return nil, err
		}
	}
	if len(c.ConjWhitelist) > 0 {
		if err := d.SetConjWhitelist(c.ConjWhitelist); err != nil {
			return nil, err
		}
	}
	return d, nil
}

package config

// Presets mirrors spec.md §8's testable-property scenarios as
// ready-to-run configs, in the teacher's Presets[model][name] shape
// (internal/config/presets.go).
var Presets = map[string]map[string]*Config{
	"kepler": {
		"circular_orbit": {
			Model: "kepler", Mu: 1.0,
			Ct: 0.05, NParCt: 4, Tol: 1e-14, Workers: 2, Steps: 200,
			Particles: []ParticleConfig{
				{Pos: [3]float64{1, 0, 0}, Vel: [3]float64{0, 1, 0}, Radius: 0, Pars: []float64{0}},
			},
		},
		"perturbed": {
			Model: "kepler", Mu: 1.0,
			Ct: 0.05, NParCt: 4, Tol: 1e-14, Workers: 2, Steps: 200,
			Particles: []ParticleConfig{
				{Pos: [3]float64{1, 0, 0}, Vel: [3]float64{0, 1, 0}, Radius: 0, Pars: []float64{0.1}},
			},
		},
	},
	"free": {
		"head_on_collision": {
			Model: "free",
			Ct:    0.1, NParCt: 20, Tol: DefaultTol, Workers: 4, Steps: 1,
			MinCollRadius: 0,
			Particles: []ParticleConfig{
				{Pos: [3]float64{1, 0, 0}, Vel: [3]float64{-0.5, 0, 0}, Radius: 0.05},
				{Pos: [3]float64{-1, 0, 0}, Vel: [3]float64{0.5, 0, 0}, Radius: 0.05},
			},
		},
		"grazing_conjunction": {
			Model: "free",
			Ct:    0.1, NParCt: 20, Tol: DefaultTol, Workers: 4, Steps: 1,
			ConjThresh: 2.0,
			Particles: []ParticleConfig{
				{Pos: [3]float64{0, 0.5, 0}, Vel: [3]float64{0.5, 0, 0}, Radius: 0.01},
				{Pos: [3]float64{0, -0.5, 0}, Vel: [3]float64{-0.5, 0, 0}, Radius: 0.01},
			},
		},
		"reentry_preempt": {
			Model: "free",
			Ct:    0.1, NParCt: 20, Tol: DefaultTol, Workers: 4, Steps: 1,
			ReentryRadius: [3]float64{0.5, 0.5, 0.5},
			Particles: []ParticleConfig{
				{Pos: [3]float64{1.0, 0, 0}, Vel: [3]float64{-1.0, 0, 0}, Radius: 0.05},
				{Pos: [3]float64{2.0, 0, 0}, Vel: [3]float64{-1.0, 0, 0}, Radius: 0.05},
			},
		},
		"whitelist_restricted": {
			Model: "free",
			Ct:    0.1, NParCt: 20, Tol: DefaultTol, Workers: 4, Steps: 1,
			CollWhitelist: []int{0},
			Particles: []ParticleConfig{
				{Pos: [3]float64{1, 0, 0}, Vel: [3]float64{-0.5, 0, 0}, Radius: 0.05},
				{Pos: [3]float64{-1, 0, 0}, Vel: [3]float64{0.5, 0, 0}, Radius: 0.05},
				{Pos: [3]float64{10, 10, 10}, Vel: [3]float64{0, 0, 0}, Radius: 0.05},
			},
		},
	},
}

// GetPreset looks up a named scenario for a model, or nil if either is
// unknown.
func GetPreset(model, name string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[name]
	if !ok {
		return nil
	}
	return cfg
}

// ListPresets returns the scenario names defined for a model, or nil
// if the model has none.
func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	return names
}

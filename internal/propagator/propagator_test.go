package propagator

import (
	"math"
	"testing"

	"github.com/san-kum/cascade/internal/dfloat"
	"github.com/san-kum/cascade/internal/dynamics"
)

func defaultConfig() Config {
	return Config{
		Order:   16,
		Tol:     1e-13,
		MaxStep: 0.5,
	}
}

func TestPropagateOneCoversFullSuperstep(t *testing.T) {
	p := New(dynamics.KeplerSystem{Mu: 1.0}, defaultConfig())
	state := [6]float64{1, 0, 0, 0, 1, 0}

	data, ev := p.PropagateOne(0, state, nil, dfloat.Zero, 2*math.Pi)
	if ev != nil {
		t.Fatalf("unexpected terminal event: %+v", ev)
	}
	if len(data.Substeps) == 0 {
		t.Fatal("expected at least one substep")
	}

	last := data.Substeps[len(data.Substeps)-1]
	if last.End.Float64() < 2*math.Pi {
		t.Fatalf("last substep end %v should reach >= 2*pi", last.End.Float64())
	}

	// Substep end times must be strictly increasing.
	for i := 1; i < len(data.Substeps); i++ {
		if data.Substeps[i].End.Cmp(data.Substeps[i-1].End) <= 0 {
			t.Fatalf("tcoords not strictly increasing at index %d", i)
		}
	}
}

func TestPropagateOneFreeParticleReentry(t *testing.T) {
	cfg := defaultConfig()
	cfg.ReentryRadius = [3]float64{0.5, 0.5, 0.5}
	p := New(dynamics.FreeSystem{}, cfg)

	// Starts outside, moving straight toward and through the origin.
	state := [6]float64{-1, 0, 0, 1, 0, 0}
	data, ev := p.PropagateOne(0, state, nil, dfloat.Zero, 2.0)

	if ev == nil || ev.Outcome != OutcomeReentry {
		t.Fatalf("expected reentry terminal event, got %+v (substeps=%d)", ev, len(data.Substeps))
	}
	if ev.Time.Float64() > 0.5+1e-6 {
		t.Fatalf("reentry should trip near t=0.5, got t=%v", ev.Time.Float64())
	}
}

func TestPropagateAllParallelMatchesSerial(t *testing.T) {
	p := New(dynamics.KeplerSystem{Mu: 1.0}, defaultConfig())

	n := 20
	states := make([][6]float64, n)
	pars := make([][]float64, n)
	for i := range states {
		states[i] = [6]float64{1, 0, 0, 0, 1, 0}
	}

	parallel := p.PropagateAll(states, pars, dfloat.Zero, 1.0, 4)
	serial := p.PropagateAll(states, pars, dfloat.Zero, 1.0, 1)

	if len(parallel) != len(serial) {
		t.Fatalf("length mismatch")
	}
	for i := range parallel {
		if len(parallel[i].Data.Substeps) != len(serial[i].Data.Substeps) {
			t.Fatalf("particle %d: substep count differs between parallel (%d) and serial (%d)",
				i, len(parallel[i].Data.Substeps), len(serial[i].Data.Substeps))
		}
	}
}

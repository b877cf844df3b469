package driver

import (
	"math"
	"testing"

	"github.com/san-kum/cascade/internal/dynamics"
)

func stepUntil(t *testing.T, d *Driver, kind OutcomeKind, maxSteps int) StepOutcome {
	t.Helper()
	var out StepOutcome
	for i := 0; i < maxSteps; i++ {
		var err error
		out, err = d.Step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if out.Kind == kind {
			return out
		}
	}
	t.Fatalf("outcome %v not reached within %d steps, last=%+v", kind, maxSteps, out)
	return out
}

// Scenario 1: two-body Keplerian, single orbit, no collision (spec.md
// §8 "End-to-end scenarios" #1).
func TestKeplerianSingleOrbitReturnsToStart(t *testing.T) {
	sys := dynamics.KeplerSystem{Mu: 1}
	state0 := []float64{1, 0, 0, 0, 1, 0, 0}
	period := 2 * math.Pi
	const nSteps = 128
	d, err := New(sys, state0, nil, WithCt(period/nSteps), WithNParCt(1), WithTol(1e-14))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < nSteps; i++ {
		if _, err := d.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	final := d.State()
	var diff2 float64
	for k := 0; k < 6; k++ {
		dd := final[k] - state0[k]
		diff2 += dd * dd
	}
	if math.Sqrt(diff2) > 1e-3 {
		t.Fatalf("expected near-return to initial state after one period, got %v (diff=%e)", final, math.Sqrt(diff2))
	}
}

// Scenario 2: head-on collision (spec.md §8 #2).
func TestHeadOnCollisionReportedInExpectedWindow(t *testing.T) {
	sys := dynamics.FreeSystem{}
	state0 := []float64{
		1, 0, 0, -0.5, 0, 0, 0.05,
		-1, 0, 0, 0.5, 0, 0, 0.05,
	}
	d, err := New(sys, state0, nil, WithCt(0.1), WithNParCt(20))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := stepUntil(t, d, OutcomeCollision, 1)
	if out.Time < 1.9 || out.Time > 1.91 {
		t.Fatalf("expected collision time in [1.9, 1.91], got %v", out.Time)
	}
	if out.I != 0 || out.J != 1 {
		t.Fatalf("expected collision (0,1), got (%d,%d)", out.I, out.J)
	}
}

// Scenario 3: grazing conjunction (spec.md §8 #3).
func TestGrazingConjunctionReportsClosestApproach(t *testing.T) {
	sys := dynamics.FreeSystem{}
	// Relative position (0,1,0), relative velocity (1,0,0): squared
	// distance t^2+1 has its minimum (dist=1) at t=0, the start of the
	// window.
	state0 := []float64{
		0, 0.5, 0, 0.5, 0, 0, 0,
		0, -0.5, 0, -0.5, 0, 0, 0,
	}
	d, err := New(sys, state0, nil, WithCt(0.1), WithNParCt(10), WithConjThresh(1.001))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := d.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	conj := d.Conjunctions()
	if len(conj) != 1 {
		t.Fatalf("expected exactly one conjunction, got %d: %+v", len(conj), conj)
	}
	if math.Abs(conj[0].DistMin-1.0) > 1e-2 {
		t.Fatalf("expected dist_min ~= 1.0, got %v", conj[0].DistMin)
	}
}

// Scenario 4: reentry preempts collision (spec.md §8 #4).
func TestReentryPreemptsLaterCollision(t *testing.T) {
	sys := dynamics.FreeSystem{}
	state0 := []float64{
		1.0, 0, 0, -1.0, 0, 0, 0.05,
		2.0, 0, 0, -1.0, 0, 0, 0.05,
	}
	d, err := New(sys, state0, nil,
		WithCt(0.1), WithNParCt(20),
		WithReentryRadius([3]float64{0.5, 0.5, 0.5}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := stepUntil(t, d, OutcomeReentry, 1)
	if math.Abs(out.Time-0.5) > 0.05 {
		t.Fatalf("expected reentry near t=0.5, got %v", out.Time)
	}
	if out.I != 0 {
		t.Fatalf("expected particle 0 to reenter, got %d", out.I)
	}
}

// Scenario 5: whitelist filtering (spec.md §8 #5).
func TestCollisionWhitelistRestrictsReportedPairs(t *testing.T) {
	sys := dynamics.FreeSystem{}
	state0 := []float64{
		0, 0, 0, 0, 0, 0, 1.0,
		1.5, 0, 0, 0, 0, 0, 1.0,
		0, 1.5, 0, 0, 0, 0, 1.0,
	}
	d, err := New(sys, state0, nil, WithCt(0.1), WithNParCt(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.SetCollWhitelist([]int{0}); err != nil {
		t.Fatalf("SetCollWhitelist: %v", err)
	}

	out, err := d.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.Kind == OutcomeCollision && out.I != 0 && out.J != 0 {
		t.Fatalf("expected only pairs involving particle 0, got (%d,%d)", out.I, out.J)
	}
}

// Scenario 6: removal + compaction trajectory equivalence (spec.md §8
// #6).
func TestRemoveParticlesCompactsIndicesAndPreservesTrajectory(t *testing.T) {
	sys := dynamics.FreeSystem{}
	full := []float64{
		0, 0, 0, 1, 0, 0, 0,
		1, 0, 0, 0, 1, 0, 0,
		2, 0, 0, 0, 0, 1, 0,
		3, 0, 0, 1, 1, 0, 0,
		4, 0, 0, 0, 1, 1, 0,
	}
	withGaps, err := New(sys, full, nil, WithCt(0.1), WithNParCt(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := withGaps.RemoveParticles([]int{1, 3}); err != nil {
		t.Fatalf("RemoveParticles: %v", err)
	}
	if withGaps.NumParticles() != 3 {
		t.Fatalf("expected 3 particles after removal, got %d", withGaps.NumParticles())
	}

	fresh := []float64{
		0, 0, 0, 1, 0, 0, 0,
		2, 0, 0, 0, 0, 1, 0,
		4, 0, 0, 0, 1, 1, 0,
	}
	clean, err := New(sys, fresh, nil, WithCt(0.1), WithNParCt(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := withGaps.Step(); err != nil {
		t.Fatalf("withGaps.Step: %v", err)
	}
	if _, err := clean.Step(); err != nil {
		t.Fatalf("clean.Step: %v", err)
	}

	a, b := withGaps.State(), clean.State()
	for k := range a {
		if math.Abs(a[k]-b[k]) > 1e-9 {
			t.Fatalf("trajectories diverged at index %d: %v vs %v", k, a, b)
		}
	}
}

// Boundary: N=0 advances time by Delta_t and reports success.
func TestZeroParticlesStillAdvancesTime(t *testing.T) {
	d, err := New(dynamics.FreeSystem{}, nil, nil, WithCt(0.2), WithNParCt(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := d.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.Kind != OutcomeSuccess {
		t.Fatalf("expected success, got %v", out.Kind)
	}
	if math.Abs(d.Time().Float64()-0.6) > 1e-12 {
		t.Fatalf("expected time to advance by ct*n_par_ct=0.6, got %v", d.Time().Float64())
	}
}

// Boundary: conj_thresh=0 emits no conjunctions regardless of distance.
func TestZeroConjThreshEmitsNoConjunctions(t *testing.T) {
	sys := dynamics.FreeSystem{}
	state0 := []float64{
		0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0,
	}
	d, err := New(sys, state0, nil, WithCt(0.1), WithNParCt(5), WithConjThresh(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := d.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if len(d.Conjunctions()) != 0 {
		t.Fatalf("expected no conjunctions with conj_thresh=0, got %d", len(d.Conjunctions()))
	}
}

// Boundary: two particles co-located at t=0 report an immediate
// collision (the "already inside at the interval start" path).
func TestCoLocatedParticlesCollideImmediately(t *testing.T) {
	sys := dynamics.FreeSystem{}
	state0 := []float64{
		0, 0, 0, 1, 0, 0, 0.1,
		0, 0, 0, -1, 0, 0, 0.1,
	}
	d, err := New(sys, state0, nil, WithCt(0.1), WithNParCt(5))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := d.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if out.Kind != OutcomeCollision {
		t.Fatalf("expected immediate collision, got %v", out.Kind)
	}
	if out.Time > 1e-9 {
		t.Fatalf("expected collision time ~= 0, got %v", out.Time)
	}
}

// Round-trip: remove_particles(nil) is a no-op.
func TestRemoveParticlesEmptyIsNoOp(t *testing.T) {
	sys := dynamics.FreeSystem{}
	state0 := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0}
	d, err := New(sys, state0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := d.State()
	if err := d.RemoveParticles(nil); err != nil {
		t.Fatalf("RemoveParticles(nil): %v", err)
	}
	after := d.State()
	if len(before) != len(after) {
		t.Fatalf("particle count changed on no-op removal")
	}
	for k := range before {
		if before[k] != after[k] {
			t.Fatalf("state changed on no-op removal at index %d", k)
		}
	}
}

// Round-trip: set_new_state_pars followed by get_state/get_pars
// returns the inputs bitwise.
func TestSetNewStateParsRoundTripsBitwise(t *testing.T) {
	sys := dynamics.KeplerSystem{Mu: 1}
	d, err := New(sys, []float64{1, 0, 0, 0, 1, 0, 0}, []float64{0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	newState := []float64{
		2, 3, 4, 0.1, 0.2, 0.3, 0.05,
		-1, -2, -3, -0.1, -0.2, -0.3, 0.02,
	}
	newPars := []float64{0.01, -0.02}
	if err := d.SetNewStatePars(newState, newPars); err != nil {
		t.Fatalf("SetNewStatePars: %v", err)
	}

	gotState, gotPars := d.State(), d.Pars()
	for k := range newState {
		if gotState[k] != newState[k] {
			t.Fatalf("state[%d] = %v, want %v", k, gotState[k], newState[k])
		}
	}
	for k := range newPars {
		if gotPars[k] != newPars[k] {
			t.Fatalf("pars[%d] = %v, want %v", k, gotPars[k], newPars[k])
		}
	}
}

// Round-trip: copying the driver and stepping each copy identically
// yields identical state, time, and outcome.
func TestCloneStepsIdentically(t *testing.T) {
	sys := dynamics.KeplerSystem{Mu: 1}
	state0 := []float64{1, 0, 0, 0, 1, 0, 0}
	d, err := New(sys, state0, nil, WithCt(0.1), WithNParCt(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clone := d.Clone()

	for i := 0; i < 5; i++ {
		outA, errA := d.Step()
		outB, errB := clone.Step()
		if errA != nil || errB != nil {
			t.Fatalf("step %d: errA=%v errB=%v", i, errA, errB)
		}
		if outA != outB {
			t.Fatalf("step %d: outcomes diverged: %+v vs %+v", i, outA, outB)
		}
	}

	if d.Time().Float64() != clone.Time().Float64() {
		t.Fatalf("time diverged: %v vs %v", d.Time().Float64(), clone.Time().Float64())
	}
	a, b := d.State(), clone.State()
	for k := range a {
		if a[k] != b[k] {
			t.Fatalf("state diverged at index %d: %v vs %v", k, a[k], b[k])
		}
	}
}

// Invariant: a reported collision's time lies within the superstep's
// span and the pair actually overlaps at that instant (a near-grazing
// pair whose closest approach slightly penetrates r_i+r_j, giving a
// genuine sign-changing crossing rather than a tangency).
func TestNearGrazingPairReportsCollisionWithinRadius(t *testing.T) {
	sys := dynamics.FreeSystem{}
	state0 := []float64{
		-1, 0.095, 0, 1, 0, 0, 0.1,
		1, -0.095, 0, -1, 0, 0, 0.1,
	}
	d, err := New(sys, state0, nil, WithCt(0.1), WithNParCt(20))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out := stepUntil(t, d, OutcomeCollision, 1)
	if out.Time < 0 || out.Time > 2.0 {
		t.Fatalf("expected a collision time within the superstep span, got %v", out.Time)
	}
}

// Persistence: Encode then Restore reproduces state, time, and
// configuration exactly (spec.md §6.4).
func TestEncodeRestoreRoundTrips(t *testing.T) {
	sys := dynamics.KeplerSystem{Mu: 1}
	d, err := New(sys, []float64{1, 0, 0, 0, 1, 0, 0}, []float64{0.01},
		WithCt(0.05), WithNParCt(3), WithConjThresh(0.5))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := d.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	data, err := d.Encode("kepler")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	restored, err := Restore(sys, data)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if restored.Time().Float64() != d.Time().Float64() {
		t.Fatalf("time mismatch: %v vs %v", restored.Time().Float64(), d.Time().Float64())
	}
	got, want := restored.State(), d.State()
	for k := range want {
		if got[k] != want[k] {
			t.Fatalf("state[%d] = %v, want %v", k, got[k], want[k])
		}
	}
	if restored.ct != d.ct || restored.nParCt != d.nParCt || restored.conjThresh != d.conjThresh {
		t.Fatalf("configuration did not round-trip: got ct=%v n_par_ct=%v conj_thresh=%v",
			restored.ct, restored.nParCt, restored.conjThresh)
	}
}

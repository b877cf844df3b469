package driver

import (
	"errors"
	"fmt"
)

// Sentinel errors for driver configuration and state validation,
// mirroring the teacher's internal/dynamo/errors.go sentinel set.
var (
	ErrInvalidState       = errors.New("driver: invalid state (NaN or Inf detected)")
	ErrDimensionMismatch  = errors.New("driver: dimension mismatch between state and particle count")
	ErrIndexOutOfRange    = errors.New("driver: particle index out of range")
	ErrInternalInvariant  = errors.New("driver: internal invariant violated")
	ErrNotStrictlyOrdered = errors.New("driver: indices must be strictly increasing and in range")
)

// ConfigError wraps an invalid constructor/setter argument with the
// field and value that failed, in the style of
// internal/dynamo.SimulationError.
type ConfigError struct {
	Field   string
	Value   any
	Wrapped error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("driver: invalid %s (%v): %v", e.Field, e.Value, e.Wrapped)
}

func (e *ConfigError) Unwrap() error { return e.Wrapped }

// SimError records a per-particle numeric anomaly (NonFiniteState,
// IntegrationError) surfaced through a step's diagnostics rather than
// as a returned error, in the style of internal/dynamo.SimError.
type SimError struct {
	ParticleIndex int
	Time          float64
	Message       string
}

func (e SimError) Error() string {
	return fmt.Sprintf("particle %d (t=%.6f): %s", e.ParticleIndex, e.Time, e.Message)
}

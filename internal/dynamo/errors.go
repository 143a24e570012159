package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidConfig indicates a component was constructed with invalid parameters.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrInvalidState indicates a state vector with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrUnknownParam indicates a live-tuning request for a parameter that does not exist.
	ErrUnknownParam = errors.New("dynamo: unknown parameter")

	// ErrUnknownVariant indicates an unknown controller variant, integrator or mode name.
	ErrUnknownVariant = errors.New("dynamo: unknown variant")
)

// ConfigError reports the first invalid parameter found while constructing
// a component. It is fatal to that component only.
type ConfigError struct {
	Component string
	Field     string
	Value     float64
	Reason    string
}

func NewConfigError(component, field string, value float64, reason string) *ConfigError {
	return &ConfigError{Component: component, Field: field, Value: value, Reason: reason}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dynamo: %s: invalid %s=%g: %s", e.Component, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

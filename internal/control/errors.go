package control

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAirframe is wrapped by a ConfigurationError when an airframe tag
	// does not name one of the supported layouts.
	ErrUnknownAirframe = errors.New("unknown airframe")
	// ErrInvalidTimestep is returned when a control step is requested with dt <= 0.
	ErrInvalidTimestep = errors.New("control timestep must be positive")
	// ErrNonFiniteCommand is returned instead of a motor command containing NaN or Inf.
	ErrNonFiniteCommand = errors.New("non-finite motor command")
)

// ConfigurationError reports a missing or invalid physical parameter, or an
// unknown airframe tag. It is fatal to controller construction.
type ConfigurationError struct {
	Airframe string
	Field    string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("controller config %q", e.Airframe)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

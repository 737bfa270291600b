// Package mission runs a field-sweep mission: it turns a planned waypoint
// sequence into per-tick control targets, drives the controller and physics
// engine, and exposes progress and pause/abort commands to callers.
package mission

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of a mission.
type State int

const (
	StateIdle State = iota
	StateDeploying
	StateFlying
	StateStalled
	StateReturningHome
	StateAborted
	StateCompleted
	StateError
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateDeploying:     "deploying",
	StateFlying:        "flying",
	StateStalled:       "stalled",
	StateReturningHome: "returning_home",
	StateAborted:       "aborted",
	StateCompleted:     "completed",
	StateError:         "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState converts a state name into a State.
func ParseState(value string) (State, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for i, name := range stateNames {
		if name == v {
			return State(i), nil
		}
	}
	return StateIdle, fmt.Errorf("unknown mission state %q", value)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	parsed, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Active reports whether a mission in this state is still in progress.
func (s State) Active() bool {
	switch s {
	case StateDeploying, StateFlying, StateStalled, StateReturningHome:
		return true
	}
	return false
}

// Terminal reports whether the state ends a mission.
func (s State) Terminal() bool {
	switch s {
	case StateAborted, StateCompleted, StateError:
		return true
	}
	return false
}

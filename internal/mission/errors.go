package mission

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCommand is the parent of every rejected command.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrAlreadyRunning rejects a deploy while a mission is active.
	ErrAlreadyRunning = fmt.Errorf("%w: mission already running", ErrInvalidCommand)
	// ErrNoActiveMission rejects pause or abort when nothing is flying.
	ErrNoActiveMission = fmt.Errorf("%w: no active mission", ErrInvalidCommand)
)

// FaultError records an unrecoverable error raised while a mission ticked.
type FaultError struct {
	MissionID string
	Tick      uint64
	Err       error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("mission %s fault at tick %d: %v", e.MissionID, e.Tick, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

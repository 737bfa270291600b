// Package physics defines the rigid-body simulation collaborator driven by a
// mission, and provides a small built-in world implementing it.
package physics

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrNotConnected is returned by calls made before Connect or after Disconnect.
	ErrNotConnected = errors.New("physics engine not connected")
	// ErrUnknownBody is returned for a body id the engine never loaded.
	ErrUnknownBody = errors.New("unknown body")
	// ErrUnknownDescriptor is returned when LoadBody is given an unregistered model.
	ErrUnknownDescriptor = errors.New("unknown body descriptor")
)

// BodyID identifies a body loaded into an engine.
type BodyID int

// BaseLink addresses the body's centre of mass in ApplyForce.
const BaseLink = -1

// Pose is a position and unit orientation quaternion in the world frame.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Engine is a fixed-timestep rigid-body simulator. Forces passed to
// ApplyForce are expressed in the link frame and last for one Step.
type Engine interface {
	Connect() error
	Disconnect() error
	LoadBody(descriptor string, start Pose) (BodyID, error)
	Pose(id BodyID) (Pose, error)
	Velocity(id BodyID) (linear, angular mgl64.Vec3, err error)
	ApplyForce(id BodyID, link int, force mgl64.Vec3) error
	Step() error
	TimeStep() float64
}

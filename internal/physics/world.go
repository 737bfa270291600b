package physics

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"fieldsweep/internal/control"
)

// DefaultGravity is the world's downward acceleration in m/s^2.
const DefaultGravity = 9.81

// BodySpec describes a quadrotor as the built-in world sees it.
type BodySpec struct {
	Mass    float64
	Inertia mgl64.Vec3
	// Links holds the body-frame position of each motor link.
	Links [4]mgl64.Vec3
	// Spin is the yaw reaction sign of each motor link.
	Spin [4]float64
	// TorqueRatio is km/kf: yaw reaction torque per newton of thrust.
	TorqueRatio float64
}

// SpecFromConfig derives the body description of a controller airframe.
func SpecFromConfig(cfg control.ControllerConfig) BodySpec {
	return BodySpec{
		Mass:        cfg.Mass,
		Inertia:     cfg.Inertia,
		Links:       cfg.MotorPositions(),
		Spin:        cfg.MotorSpin(),
		TorqueRatio: cfg.KM / cfg.KF,
	}
}

type body struct {
	spec   BodySpec
	pos    mgl64.Vec3
	q      mgl64.Quat
	vel    mgl64.Vec3
	omega  mgl64.Vec3 // body frame
	force  mgl64.Vec3 // body frame, cleared each step
	torque mgl64.Vec3 // body frame, cleared each step
}

// World is a fixed-step rigid-body simulator with gravity and a flat ground
// plane at z=0. It is safe for concurrent use.
type World struct {
	mu        sync.Mutex
	dt        float64
	gravity   float64
	specs     map[string]BodySpec
	bodies    []*body
	connected bool
	steps     uint64
}

// NewWorld returns a world stepping at hz with the default gravity.
func NewWorld(hz float64) *World {
	return &World{dt: 1 / hz, gravity: DefaultGravity, specs: map[string]BodySpec{}}
}

// Register makes spec loadable under descriptor.
func (w *World) Register(descriptor string, spec BodySpec) {
	w.mu.Lock()
	w.specs[descriptor] = spec
	w.mu.Unlock()
}

// TimeStep returns the fixed step length in seconds.
func (w *World) TimeStep() float64 { return w.dt }

// Steps returns the number of steps taken since Connect.
func (w *World) Steps() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

// Connected reports whether the world accepts calls.
func (w *World) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// Connect starts an empty simulation, discarding any previous bodies.
func (w *World) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bodies = nil
	w.steps = 0
	w.connected = true
	return nil
}

// Disconnect releases all bodies. It is safe to call more than once.
func (w *World) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bodies = nil
	w.connected = false
	return nil
}

// LoadBody places a registered body at start, at rest.
func (w *World) LoadBody(descriptor string, start Pose) (BodyID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return 0, ErrNotConnected
	}
	spec, ok := w.specs[descriptor]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDescriptor, descriptor)
	}
	q := start.Orientation
	if q.Len() == 0 {
		q = mgl64.QuatIdent()
	}
	w.bodies = append(w.bodies, &body{spec: spec, pos: start.Position, q: q.Normalize()})
	return BodyID(len(w.bodies) - 1), nil
}

func (w *World) lookup(id BodyID) (*body, error) {
	if !w.connected {
		return nil, ErrNotConnected
	}
	if id < 0 || int(id) >= len(w.bodies) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	return w.bodies[id], nil
}

// Pose returns the body's current position and orientation.
func (w *World) Pose(id BodyID) (Pose, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.lookup(id)
	if err != nil {
		return Pose{}, err
	}
	return Pose{Position: b.pos, Orientation: b.q}, nil
}

// Velocity returns linear and angular velocity in the world frame.
func (w *World) Velocity(id BodyID) (mgl64.Vec3, mgl64.Vec3, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.lookup(id)
	if err != nil {
		return mgl64.Vec3{}, mgl64.Vec3{}, err
	}
	return b.vel, b.q.Rotate(b.omega), nil
}

// ApplyForce accumulates a link-frame force for the next Step. Motor links
// also produce their rotor's yaw reaction torque.
func (w *World) ApplyForce(id BodyID, link int, force mgl64.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.lookup(id)
	if err != nil {
		return err
	}
	b.force = b.force.Add(force)
	if link == BaseLink {
		return nil
	}
	if link < 0 || link >= len(b.spec.Links) {
		return fmt.Errorf("body %d has no link %d", id, link)
	}
	r := b.spec.Links[link]
	b.torque = b.torque.Add(r.Cross(force))
	b.torque[2] += b.spec.Spin[link] * b.spec.TorqueRatio * force[2]
	return nil
}

// Step advances every body by one timestep using semi-implicit Euler.
func (w *World) Step() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return ErrNotConnected
	}
	for _, b := range w.bodies {
		w.integrate(b)
	}
	w.steps++
	return nil
}

func (w *World) integrate(b *body) {
	dt := w.dt
	acc := b.q.Rotate(b.force).Mul(1 / b.spec.Mass)
	acc[2] -= w.gravity
	b.vel = b.vel.Add(acc.Mul(dt))
	b.pos = b.pos.Add(b.vel.Mul(dt))

	// Euler's rotation equations with a diagonal inertia tensor.
	in := b.spec.Inertia
	iw := mgl64.Vec3{in[0] * b.omega[0], in[1] * b.omega[1], in[2] * b.omega[2]}
	net := b.torque.Sub(b.omega.Cross(iw))
	alpha := mgl64.Vec3{net[0] / in[0], net[1] / in[1], net[2] / in[2]}
	b.omega = b.omega.Add(alpha.Mul(dt))

	dq := b.q.Mul(mgl64.Quat{V: b.omega}).Scale(0.5 * dt)
	b.q = b.q.Add(dq).Normalize()

	if b.pos[2] < 0 {
		b.pos[2] = 0
		if b.vel[2] < 0 {
			b.vel[2] = 0
		}
		b.vel[0], b.vel[1] = 0, 0
		b.omega = mgl64.Vec3{}
	}
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

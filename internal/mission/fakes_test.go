package mission

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"fieldsweep/internal/control"
	"fieldsweep/internal/physics"
)

// trackingWorld is a physics engine whose body sits exactly on the last
// target handed to the paired perfectTracker.
type trackingWorld struct {
	mu           sync.Mutex
	pos          mgl64.Vec3
	connected    bool
	disconnects  int
	steps        int
	release      chan struct{}
	loadedBodies int
}

func (w *trackingWorld) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
	return nil
}

func (w *trackingWorld) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	w.disconnects++
	return nil
}

func (w *trackingWorld) LoadBody(_ string, start physics.Pose) (physics.BodyID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = start.Position
	w.loadedBodies++
	return 0, nil
}

func (w *trackingWorld) Pose(physics.BodyID) (physics.Pose, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return physics.Pose{Position: w.pos, Orientation: mgl64.QuatIdent()}, nil
}

func (w *trackingWorld) Velocity(physics.BodyID) (mgl64.Vec3, mgl64.Vec3, error) {
	return mgl64.Vec3{}, mgl64.Vec3{}, nil
}

func (w *trackingWorld) ApplyForce(physics.BodyID, int, mgl64.Vec3) error { return nil }

func (w *trackingWorld) Step() error {
	if w.release != nil {
		<-w.release
	}
	w.mu.Lock()
	w.steps++
	w.mu.Unlock()
	return nil
}

func (w *trackingWorld) TimeStep() float64 { return 1.0 / 240 }

func (w *trackingWorld) moveTo(p mgl64.Vec3) {
	w.mu.Lock()
	w.pos = p
	w.mu.Unlock()
}

func (w *trackingWorld) state() (connected bool, disconnects int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected, w.disconnects
}

// perfectTracker moves the world's body onto each target it is given.
type perfectTracker struct {
	world   *trackingWorld
	calls   int
	resets  int
	failAt  int
	panicAt int
}

var errInjected = errors.New("injected controller failure")

func (c *perfectTracker) Compute(_ float64, _ control.Kinematics, t control.Target) (control.Output, error) {
	c.calls++
	if c.failAt > 0 && c.calls == c.failAt {
		return control.Output{}, errInjected
	}
	if c.panicAt > 0 && c.calls == c.panicAt {
		panic("controller blew up")
	}
	c.world.moveTo(t.Position)
	return control.Output{}, nil
}

func (c *perfectTracker) Reset() { c.resets++ }

type recordingObserver struct {
	mu          sync.Mutex
	samples     []Sample
	transitions []Transition
}

func (o *recordingObserver) ObserveTick(s Sample) {
	o.mu.Lock()
	o.samples = append(o.samples, s)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveTransition(t Transition) {
	o.mu.Lock()
	o.transitions = append(o.transitions, t)
	o.mu.Unlock()
}

func (o *recordingObserver) states() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]State, 0, len(o.transitions))
	for _, t := range o.transitions {
		out = append(out, t.To)
	}
	return out
}

package mission

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"fieldsweep/internal/planner"
)

// Settings are the path-following constants of a mission.
type Settings struct {
	Plan              planner.Params
	CruiseSpeed       float64
	Dwell             float64
	ArrivalTolerance  float64
	TrackingTolerance float64
}

// DefaultSettings returns the standard sweep constants.
func DefaultSettings() Settings {
	return Settings{
		Plan:              planner.DefaultParams(),
		CruiseSpeed:       0.5,
		Dwell:             1.5,
		ArrivalTolerance:  0.05,
		TrackingTolerance: 0.2,
	}
}

// Reference is the virtual kinematic target handed to the controller.
type Reference struct {
	Position mgl64.Vec3 `json:"position"`
	Velocity mgl64.Vec3 `json:"velocity"`
}

// Machine owns mission progress: the waypoint sequence, the active index,
// the per-waypoint dwell sub-state and the virtual reference. It is driven by
// a single goroutine and is not safe for concurrent use.
type Machine struct {
	settings  Settings
	waypoints []mgl64.Vec3
	index     int
	waiting   bool
	dwell     float64
	ref       Reference
	state     State
	resumeTo  State
	aborted   bool

	// OnTransition, when set, is called after every state change.
	OnTransition func(from, to State, reason string)
}

// NewMachine prepares a mission over waypoints with the reference starting at
// spawn. The machine starts in StateDeploying.
func NewMachine(s Settings, waypoints []mgl64.Vec3, spawn mgl64.Vec3) *Machine {
	return &Machine{
		settings:  s,
		waypoints: waypoints,
		ref:       Reference{Position: spawn},
		state:     StateDeploying,
	}
}

func (m *Machine) State() State            { return m.state }
func (m *Machine) Index() int              { return m.index }
func (m *Machine) Waypoints() []mgl64.Vec3 { return m.waypoints }
func (m *Machine) Reference() Reference    { return m.ref }
func (m *Machine) Waiting() bool           { return m.waiting }
func (m *Machine) Aborted() bool           { return m.aborted }

// Done reports whether the mission reached a terminal state.
func (m *Machine) Done() bool { return m.state.Terminal() }

func (m *Machine) set(to State, reason string) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	if m.OnTransition != nil {
		m.OnTransition(from, to, reason)
	}
}

// Launch moves a deploying mission into flight.
func (m *Machine) Launch() {
	if m.state != StateDeploying {
		return
	}
	if len(m.waypoints) == 0 {
		m.set(StateCompleted, "empty path")
		return
	}
	m.set(StateFlying, "launched")
}

// Pause freezes waypoint and reference advancement.
func (m *Machine) Pause() {
	if m.state != StateFlying && m.state != StateReturningHome {
		return
	}
	m.resumeTo = m.state
	m.ref.Velocity = mgl64.Vec3{}
	m.set(StateStalled, "paused")
}

// Resume continues a paused mission in the state it was paused from.
func (m *Machine) Resume() {
	if m.state != StateStalled {
		return
	}
	m.set(m.resumeTo, "resumed")
}

// Hold returns the frozen reference used while stalled.
func (m *Machine) Hold() Reference {
	return Reference{Position: m.ref.Position}
}

// Abort replaces the remaining path with the return-home path from drone's
// position and resets the dwell sub-state. It applies at most once and
// reports whether it did.
func (m *Machine) Abort(drone mgl64.Vec3) bool {
	if m.aborted || !m.state.Active() || m.state == StateDeploying {
		return false
	}
	m.aborted = true
	m.waypoints = planner.ReturnHome(drone, m.settings.Plan)
	m.index = 0
	m.ref = Reference{Position: drone}
	m.waiting = false
	m.dwell = 0
	m.set(StateReturningHome, "abort requested")
	return true
}

// Cancel ends the mission immediately as aborted.
func (m *Machine) Cancel(reason string) {
	if m.Done() {
		return
	}
	m.aborted = true
	m.set(StateAborted, reason)
}

// Fail ends the mission in StateError.
func (m *Machine) Fail(reason string) {
	if m.Done() {
		return
	}
	m.set(StateError, reason)
}

// Step advances the virtual reference by dt toward the active waypoint and
// returns it. drone is the physically simulated position; a waypoint is only
// left once the dwell time has elapsed and drone tracks the reference.
func (m *Machine) Step(dt float64, drone mgl64.Vec3) Reference {
	if m.state != StateFlying && m.state != StateReturningHome {
		return m.Hold()
	}
	s := m.settings
	goal := m.waypoints[m.index]
	toGoal := goal.Sub(m.ref.Position)
	dist := toGoal.Len()

	switch {
	case m.waiting:
		m.ref.Velocity = mgl64.Vec3{}
		m.dwell += dt
		if m.dwell >= s.Dwell && drone.Sub(m.ref.Position).Len() < s.TrackingTolerance {
			m.waiting = false
			m.dwell = 0
			m.advance()
		}
	case dist < s.ArrivalTolerance:
		m.waiting = true
		m.ref = Reference{Position: goal}
	default:
		m.ref.Velocity = toGoal.Mul(s.CruiseSpeed / dist)
		stepLen := math.Min(s.CruiseSpeed*dt, dist)
		m.ref.Position = m.ref.Position.Add(toGoal.Mul(stepLen / dist))
	}
	return m.ref
}

func (m *Machine) advance() {
	m.index++
	if m.index < len(m.waypoints) {
		return
	}
	// Keep the index on the last waypoint so it stays addressable.
	m.index = len(m.waypoints) - 1
	if m.aborted {
		m.set(StateAborted, "landed after abort")
	} else {
		m.set(StateCompleted, "all waypoints visited")
	}
}

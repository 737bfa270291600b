package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"fieldsweep/internal/control"
	"fieldsweep/internal/physics"
	"fieldsweep/internal/planner"
)

// Controller computes motor speeds from the vehicle state and a target.
type Controller interface {
	Compute(dt float64, k control.Kinematics, t control.Target) (control.Output, error)
	Reset()
}

// diagnoser is implemented by controllers that count numerical events.
type diagnoser interface {
	Diagnostics() control.Diagnostics
}

// Sample is the per-tick view of a flying mission.
type Sample struct {
	MissionID      string
	FarmRef        string
	Tick           uint64
	Elapsed        time.Duration
	State          State
	Position       mgl64.Vec3
	Velocity       mgl64.Vec3
	Attitude       mgl64.Vec3
	Reference      Reference
	WaypointIndex  int
	TotalWaypoints int
	Output         control.Output
}

// Transition records a mission state change.
type Transition struct {
	MissionID string
	FarmRef   string
	Tick      uint64
	Time      time.Time
	From      State
	To        State
	Reason    string
	Position  mgl64.Vec3
}

// Observer receives mission samples and transitions from the mission task.
// Calls are made on the task goroutine and must not block for long.
type Observer interface {
	ObserveTick(Sample)
	ObserveTransition(Transition)
}

// Timing sets the control rate, the physics sub-steps per control tick and
// whether ticks are paced to wall-clock time.
type Timing struct {
	CtrlHz   float64
	SubSteps int
	// Realtime pads every tick to one control period of wall time. A paused
	// realtime mission keeps ticking, stepping physics under a held
	// reference. Without it the mission runs as fast as it can, and after
	// the first paused tick it blocks until resumed, so physics stands
	// still for the length of the pause.
	Realtime bool
}

// DefaultTiming is 48 Hz control over a 240 Hz physics engine.
func DefaultTiming() Timing {
	return Timing{CtrlHz: 48, SubSteps: 5}
}

// Period returns the control period.
func (t Timing) Period() float64 { return 1 / t.CtrlHz }

// Plan is one deployable mission.
type Plan struct {
	ID         string
	FarmRef    string
	Field      planner.Field
	Waypoints  []mgl64.Vec3
	Descriptor string
	Spawn      mgl64.Vec3
}

// runner executes the tick loop of one mission.
type runner struct {
	plan     Plan
	settings Settings
	timing   Timing
	engine   physics.Engine
	ctrl     Controller
	shared   *Shared
	obs      Observer
	log      *slog.Logger
	abort    <-chan struct{}

	machine *Machine
	body    physics.BodyID
	tick    uint64
	pos     mgl64.Vec3
}

func newRunner(plan Plan, settings Settings, timing Timing, engine physics.Engine, ctrl Controller, shared *Shared, obs Observer, abort <-chan struct{}, log *slog.Logger) *runner {
	r := &runner{
		plan:     plan,
		settings: settings,
		timing:   timing,
		engine:   engine,
		ctrl:     ctrl,
		shared:   shared,
		obs:      obs,
		abort:    abort,
		log:      log,
		pos:      plan.Spawn,
	}
	r.machine = NewMachine(settings, plan.Waypoints, plan.Spawn)
	r.machine.OnTransition = r.transition
	return r
}

func (r *runner) transition(from, to State, reason string) {
	r.shared.setState(to)
	level := slog.LevelInfo
	if to == StateError {
		level = slog.LevelError
	}
	r.log.Log(context.Background(), level, "mission state changed",
		"from", from.String(), "to", to.String(), "reason", reason, "tick", r.tick)
	if r.obs != nil {
		r.obs.ObserveTransition(Transition{
			MissionID: r.plan.ID,
			FarmRef:   r.plan.FarmRef,
			Tick:      r.tick,
			Time:      time.Now().UTC(),
			From:      from,
			To:        to,
			Reason:    reason,
			Position:  r.pos,
		})
	}
}

// setup connects the engine, spawns the vehicle and starts flight.
func (r *runner) setup() error {
	if err := r.engine.Connect(); err != nil {
		return fmt.Errorf("connect physics: %w", err)
	}
	id, err := r.engine.LoadBody(r.plan.Descriptor, physics.Pose{Position: r.plan.Spawn, Orientation: mgl64.QuatIdent()})
	if err != nil {
		return fmt.Errorf("load body: %w", err)
	}
	r.body = id
	r.ctrl.Reset()
	r.machine.Launch()
	return nil
}

// run drives the mission to a terminal state. The physics connection is
// released and the shared state cleared on every exit path.
func (r *runner) run(ctx context.Context) (err error) {
	var cause error
	defer func() {
		if rec := recover(); rec != nil {
			err = &FaultError{MissionID: r.plan.ID, Tick: r.tick, Err: fmt.Errorf("panic: %v", rec)}
		}
		if err != nil {
			r.machine.Fail(err.Error())
			cause = err
		}
		if derr := r.engine.Disconnect(); derr != nil {
			r.log.Warn("physics disconnect failed", "err", derr)
		}
		r.shared.finish(r.machine.State(), cause)
	}()

	if err := r.setup(); err != nil {
		return &FaultError{MissionID: r.plan.ID, Err: err}
	}

	period := time.Duration(r.timing.Period() * float64(time.Second))
	for !r.machine.Done() {
		if ctx.Err() != nil {
			cause = context.Cause(ctx)
			r.machine.Cancel("cancelled: " + cause.Error())
			return nil
		}
		start := time.Now()
		if err := r.step(); err != nil {
			return &FaultError{MissionID: r.plan.ID, Tick: r.tick, Err: err}
		}
		r.wait(ctx, start, period)
	}
	return nil
}

// wait paces the loop. A paused mission without real-time pacing blocks
// until resumed instead of spinning.
func (r *runner) wait(ctx context.Context, start time.Time, period time.Duration) {
	if resumed := r.shared.resumed(); resumed != nil && !r.timing.Realtime {
		select {
		case <-resumed:
		case <-ctx.Done():
		}
		return
	}
	if !r.timing.Realtime {
		return
	}
	if d := period - time.Since(start); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
}

// step runs one control tick: abort check, pause check, state read, shared
// update, reference advance, control, then physics sub-steps.
func (r *runner) step() error {
	r.tick++
	dt := r.timing.Period()

	pose, err := r.engine.Pose(r.body)
	if err != nil {
		return fmt.Errorf("read pose: %w", err)
	}
	r.pos = pose.Position

	select {
	case <-r.abort:
		if r.machine.Abort(pose.Position) {
			r.log.Info("return home path set", "waypoints", len(r.machine.Waypoints()))
		}
	default:
	}

	paused := r.shared.Paused()
	if paused {
		r.machine.Pause()
	} else {
		r.machine.Resume()
	}

	lin, ang, err := r.engine.Velocity(r.body)
	if err != nil {
		return fmt.Errorf("read velocity: %w", err)
	}
	var diags control.Diagnostics
	if d, ok := r.ctrl.(diagnoser); ok {
		diags = d.Diagnostics()
	}
	r.shared.setProgress(pose.Position, r.machine.Reference().Position, r.machine.Index(), len(r.machine.Waypoints()), diags)

	ref := r.machine.Hold()
	if !paused {
		ref = r.machine.Step(dt, pose.Position)
	}

	out, err := r.ctrl.Compute(dt, control.Kinematics{
		Position:        pose.Position,
		Orientation:     pose.Orientation,
		Velocity:        lin,
		AngularVelocity: ang,
	}, control.Target{Position: ref.Position, Velocity: ref.Velocity})
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}

	for i := 0; i < r.timing.SubSteps; i++ {
		for link, f := range out.Thrusts {
			if err := r.engine.ApplyForce(r.body, link, mgl64.Vec3{0, 0, f}); err != nil {
				return fmt.Errorf("apply force: %w", err)
			}
		}
		if err := r.engine.Step(); err != nil {
			return fmt.Errorf("physics step: %w", err)
		}
	}

	if r.obs != nil {
		r.obs.ObserveTick(Sample{
			MissionID:      r.plan.ID,
			FarmRef:        r.plan.FarmRef,
			Tick:           r.tick,
			Elapsed:        time.Duration(float64(r.tick) * dt * float64(time.Second)),
			State:          r.machine.State(),
			Position:       pose.Position,
			Velocity:       lin,
			Attitude:       control.EulerFromQuat(pose.Orientation),
			Reference:      ref,
			WaypointIndex:  r.machine.Index(),
			TotalWaypoints: len(r.machine.Waypoints()),
			Output:         out,
		})
	}
	return nil
}

// Task is a running mission with explicit cancel and join.
type Task struct {
	id     string
	group  *errgroup.Group
	cancel context.CancelCauseFunc
	abort  chan struct{}
	done   chan struct{}
}

// ErrCancelled is the cancellation cause recorded by Task.Cancel.
var ErrCancelled = errors.New("mission cancelled")

func startTask(ctx context.Context, r *runner) *Task {
	ctx, cancel := context.WithCancelCause(ctx)
	abort := make(chan struct{}, 1)
	r.abort = abort
	t := &Task{id: r.plan.ID, cancel: cancel, abort: abort, done: make(chan struct{})}
	g, gctx := errgroup.WithContext(ctx)
	t.group = g
	g.Go(func() error {
		defer close(t.done)
		return r.run(gctx)
	})
	return t
}

// ID returns the mission id.
func (t *Task) ID() string { return t.id }

// Done is closed when the task has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Abort delivers the abort signal. Repeated calls before it is consumed
// collapse into one.
func (t *Task) Abort() {
	select {
	case t.abort <- struct{}{}:
	default:
	}
}

// Cancel stops the mission at the next tick boundary.
func (t *Task) Cancel() { t.cancel(ErrCancelled) }

// Wait blocks until the task exits and returns its fault, if any.
func (t *Task) Wait() error {
	err := t.group.Wait()
	t.cancel(nil)
	return err
}

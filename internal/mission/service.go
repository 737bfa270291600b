package mission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"fieldsweep/internal/logging"
	"fieldsweep/internal/physics"
	"fieldsweep/internal/planner"
)

// Options configures a Service.
type Options struct {
	Settings Settings
	Timing   Timing
	// Descriptor names the vehicle body loaded into the engine.
	Descriptor string
	Spawn      mgl64.Vec3
	Engine     physics.Engine
	// NewController builds a fresh controller for each mission. A
	// construction error rejects the deploy.
	NewController func() (Controller, error)
	Observer      Observer
	Logger        *slog.Logger
}

// DeployRequest selects the field to sweep.
type DeployRequest struct {
	FarmRef string
	Field   planner.Field
}

// Service is the command and status surface of the mission core. At most
// one mission runs at a time.
type Service struct {
	opts   Options
	shared *Shared
	log    *slog.Logger

	mu   sync.Mutex
	task *Task
}

// NewService returns an idle service.
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timing.CtrlHz == 0 {
		opts.Timing = DefaultTiming()
	}
	if opts.Timing.SubSteps < 1 {
		opts.Timing.SubSteps = 1
	}
	return &Service{opts: opts, shared: NewShared(), log: logging.Component(opts.Logger, "mission")}
}

// Shared exposes the service's shared mission state.
func (s *Service) Shared() *Shared { return s.shared }

// Deploy plans and starts a mission. It fails with ErrAlreadyRunning while
// another mission is active. The mission outlives ctx's cancellation; use
// the returned Task to cancel it.
func (s *Service) Deploy(ctx context.Context, req DeployRequest) (*Task, error) {
	wps, err := planner.Sweep(req.Field, s.opts.Settings.Plan)
	if err != nil {
		return nil, err
	}
	// The task is published under mu together with the running claim, so a
	// concurrent abort never lands on the previous mission.
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	if err := s.shared.begin(id, req.FarmRef, req.Field, len(wps)); err != nil {
		return nil, err
	}
	ctrl, err := s.opts.NewController()
	if err != nil {
		s.shared.release(err)
		return nil, fmt.Errorf("build controller: %w", err)
	}

	plan := Plan{
		ID:         id,
		FarmRef:    req.FarmRef,
		Field:      req.Field,
		Waypoints:  wps,
		Descriptor: s.opts.Descriptor,
		Spawn:      s.opts.Spawn,
	}
	log := s.log.With("mission_id", id, "farm", req.FarmRef)
	r := newRunner(plan, s.opts.Settings, s.opts.Timing, s.opts.Engine, ctrl, s.shared, s.opts.Observer, nil, log)
	log.Info("mission deployed", "waypoints", len(wps), "field_min", req.Field.Min, "field_max", req.Field.Max)

	task := startTask(context.WithoutCancel(ctx), r)
	s.task = task
	return task, nil
}

func (s *Service) current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// TogglePause pauses or resumes the active mission and returns the new
// paused flag.
func (s *Service) TogglePause() (bool, error) {
	paused, err := s.shared.TogglePause()
	if err != nil {
		return false, err
	}
	s.log.Info("pause toggled", "paused", paused)
	return paused, nil
}

// RequestAbort asks the active mission to return home. A paused mission is
// resumed so the abort takes effect.
func (s *Service) RequestAbort() error {
	t := s.current()
	if t == nil || !s.shared.Running() {
		return ErrNoActiveMission
	}
	t.Abort()
	s.shared.clearPause()
	s.log.Info("abort requested", "mission_id", t.ID())
	return nil
}

// Status returns the current mission snapshot.
func (s *Service) Status() Status { return s.shared.Snapshot() }

// Wait blocks until the current mission, if any, has exited.
func (s *Service) Wait() error {
	if t := s.current(); t != nil {
		return t.Wait()
	}
	return nil
}

// Shutdown cancels the current mission and waits for it to release the
// physics engine.
func (s *Service) Shutdown(ctx context.Context) error {
	t := s.current()
	if t == nil {
		return nil
	}
	t.Cancel()
	select {
	case <-t.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

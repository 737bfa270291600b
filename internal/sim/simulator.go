// Simulator hosting the mission service, simulated field and telemetry sinks
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"fieldsweep/internal/config"
	"fieldsweep/internal/control"
	"fieldsweep/internal/field"
	"fieldsweep/internal/logging"
	"fieldsweep/internal/mission"
	"fieldsweep/internal/physics"
	"fieldsweep/internal/planner"
	"fieldsweep/internal/telemetry"
)

// ErrUnknownFarm is returned when a deploy names a farm that is not configured.
var ErrUnknownFarm = errors.New("unknown farm")

const maxEvents = 500

// Simulator runs sweep missions over configured farms and fans their
// telemetry out to the writers.
type Simulator struct {
	clusterID string
	cfg       *config.Config
	writer    TelemetryWriter
	detWriter DetectionWriter
	evWriter  MissionEventWriter
	engine    physics.Engine
	service   *mission.Service
	log       *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	missionID  string
	farm       string
	scanner    *field.Scanner
	crops      *field.Engine
	fields     int64
	events     []telemetry.MissionEventRow
	detections []telemetry.DetectionRow
	lastSample mission.Sample
}

// Option customises a Simulator.
type Option func(*options)

type options struct {
	engine        physics.Engine
	newController func() (mission.Controller, error)
	logger        *slog.Logger
}

// WithEngine replaces the built-in physics world.
func WithEngine(e physics.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithController replaces the cascaded PID controller factory.
func WithController(fn func() (mission.Controller, error)) Option {
	return func(o *options) { o.newController = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewSimulator builds the mission service for cfg. The writer may also
// implement DetectionWriter and MissionEventWriter; a nil writer discards
// telemetry.
func NewSimulator(clusterID string, cfg *config.Config, writer TelemetryWriter, opts ...Option) (*Simulator, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.Component(o.logger, "simulator")

	if o.engine == nil {
		ccfg, err := control.Resolve(cfg.Airframe, cfg.Physical)
		if err != nil {
			return nil, err
		}
		world := physics.NewWorld(cfg.Timing.SimHz)
		world.Register(cfg.Airframe, physics.SpecFromConfig(ccfg))
		o.engine = world
	}
	if o.newController == nil {
		o.newController = func() (mission.Controller, error) {
			return control.NewForAirframe(cfg.Airframe, cfg.Physical, o.logger)
		}
	}

	s := &Simulator{
		clusterID: clusterID,
		cfg:       cfg,
		writer:    writer,
		engine:    o.engine,
		log:       log,
		now:       time.Now,
	}
	if dw, ok := writer.(DetectionWriter); ok {
		s.detWriter = dw
	}
	if ew, ok := writer.(MissionEventWriter); ok {
		s.evWriter = ew
	}
	s.service = mission.NewService(mission.Options{
		Settings:      cfg.MissionSettings(),
		Timing:        cfg.MissionTiming(),
		Descriptor:    cfg.Airframe,
		Spawn:         cfg.SpawnPoint(),
		Engine:        o.engine,
		NewController: o.newController,
		Observer:      s,
		Logger:        o.logger,
	})
	return s, nil
}

// Run blocks until ctx is done and then stops any active mission.
func (s *Simulator) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info("simulator ready", "farms", len(s.cfg.Farms), "airframe", s.cfg.Airframe)
	<-ctx.Done()
	log.Info("stopping simulator")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.service.Shutdown(sctx)
}

// GetConfig returns the simulator configuration.
func (s *Simulator) GetConfig() *config.Config { return s.cfg }

// Farms lists the configured farms.
func (s *Simulator) Farms() []config.Farm {
	out := make([]config.Farm, len(s.cfg.Farms))
	copy(out, s.cfg.Farms)
	return out
}

// Deploy starts a sweep over the configured farm with the given id.
func (s *Simulator) Deploy(ctx context.Context, farmID int) (*mission.Task, error) {
	farm, ok := s.cfg.FarmByID(farmID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFarm, farmID)
	}
	return s.DeployField(ctx, farm.Ref(), farm.Field())
}

// DeployField starts a sweep over explicit bounds.
func (s *Simulator) DeployField(ctx context.Context, ref string, f planner.Field) (*mission.Task, error) {
	task, err := s.service.Deploy(ctx, mission.DeployRequest{FarmRef: ref, Field: f})
	if err != nil {
		s.log.Warn("deploy rejected", "farm", ref, "err", err)
		return nil, err
	}
	return task, nil
}

// TogglePause pauses or resumes the active mission.
func (s *Simulator) TogglePause() (bool, error) {
	paused, err := s.service.TogglePause()
	if err != nil {
		return false, err
	}
	cmd := "resume"
	if paused {
		cmd = "pause"
	}
	s.recordCommand(cmd)
	return paused, nil
}

// Abort sends the active mission home.
func (s *Simulator) Abort() error {
	if err := s.service.RequestAbort(); err != nil {
		return err
	}
	s.recordCommand("abort")
	return nil
}

// Status returns the current mission snapshot.
func (s *Simulator) Status() mission.Status { return s.service.Status() }

// Wait blocks until the current mission has exited.
func (s *Simulator) Wait() error { return s.service.Wait() }

// Shutdown cancels the active mission and waits for it to exit.
func (s *Simulator) Shutdown(ctx context.Context) error { return s.service.Shutdown(ctx) }

// Events returns a copy of the recorded mission events, oldest first.
func (s *Simulator) Events() []telemetry.MissionEventRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telemetry.MissionEventRow, len(s.events))
	copy(out, s.events)
	return out
}

// Detections returns the detections of the current or last mission.
func (s *Simulator) Detections() []telemetry.DetectionRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telemetry.DetectionRow, len(s.detections))
	copy(out, s.detections)
	return out
}

// Crops returns the diseased crops planted for the current or last mission.
func (s *Simulator) Crops() []field.Crop {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crops == nil {
		return nil
	}
	out := make([]field.Crop, 0, len(s.crops.Crops))
	for _, c := range s.crops.Crops {
		out = append(out, *c)
	}
	return out
}

// Record aggregates a detection reported by an external inference component.
func (s *Simulator) Record(x, y float64, label string, confidence float64) {
	s.mu.Lock()
	id := s.missionID
	s.mu.Unlock()
	s.record(telemetry.DetectionRow{
		ClusterID:  s.clusterID,
		MissionID:  id,
		CropID:     uuid.NewString(),
		Label:      label,
		X:          x,
		Y:          y,
		Confidence: confidence,
		Timestamp:  s.now().UTC(),
	})
}

func (s *Simulator) record(row telemetry.DetectionRow) {
	s.mu.Lock()
	s.detections = append(s.detections, row)
	s.mu.Unlock()
	if s.detWriter == nil {
		return
	}
	if err := s.detWriter.WriteDetection(row); err != nil {
		s.log.Error("failed to write detection", "crop_id", row.CropID, "err", err)
	}
}

// ObserveTick implements mission.Observer. Every Telemetry.Every ticks a
// telemetry row is written and the field is scanned below the vehicle.
func (s *Simulator) ObserveTick(smp mission.Sample) {
	s.prepareField(smp)
	s.mu.Lock()
	s.lastSample = smp
	s.mu.Unlock()

	every := uint64(s.cfg.Telemetry.Every)
	if every == 0 || smp.Tick%every != 0 {
		return
	}
	row := s.telemetryRow(smp)
	if s.writer != nil {
		if err := s.writer.Write(row); err != nil {
			s.log.Error("failed to write telemetry", "tick", smp.Tick, "err", err)
		}
	}
	if smp.State != mission.StateFlying {
		return
	}
	s.mu.Lock()
	var found []field.Detection
	if s.scanner != nil {
		found = s.scanner.Scan(mgl64.Vec2{smp.Position[0], smp.Position[1]})
	}
	s.mu.Unlock()
	for _, d := range found {
		s.record(telemetry.DetectionRow{
			ClusterID:  s.clusterID,
			MissionID:  smp.MissionID,
			CropID:     d.CropID,
			Label:      string(d.Label),
			X:          d.Position[0],
			Y:          d.Position[1],
			Confidence: d.Confidence,
			Timestamp:  s.now().UTC(),
		})
	}
}

// prepareField plants a fresh field the first time a mission is observed.
func (s *Simulator) prepareField(smp mission.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missionID == smp.MissionID {
		return
	}
	s.missionID = smp.MissionID
	s.farm = smp.FarmRef
	s.detections = nil
	s.fields++
	r := rand.New(rand.NewSource(s.cfg.Field.Seed + s.fields - 1))
	s.crops = field.NewEngine(s.cfg.Field.DiseasedCrops, s.service.Status().Field, r)
	s.scanner = field.NewScanner(s.crops, s.cfg.Field.DetectionRadius)
}

func (s *Simulator) telemetryRow(smp mission.Sample) telemetry.TelemetryRow {
	out := smp.Output
	return telemetry.TelemetryRow{
		ClusterID:      s.clusterID,
		MissionID:      smp.MissionID,
		Farm:           smp.FarmRef,
		State:          smp.State.String(),
		Tick:           smp.Tick,
		X:              smp.Position[0],
		Y:              smp.Position[1],
		Z:              smp.Position[2],
		RefX:           smp.Reference.Position[0],
		RefY:           smp.Reference.Position[1],
		RefZ:           smp.Reference.Position[2],
		Waypoint:       smp.WaypointIndex,
		TotalWaypoints: smp.TotalWaypoints,
		ErrX:           out.PositionError[0],
		ErrY:           out.PositionError[1],
		ErrZ:           out.PositionError[2],
		Roll:           smp.Attitude[0],
		Pitch:          smp.Attitude[1],
		Yaw:            smp.Attitude[2],
		TargetRoll:     out.TargetAttitude[0],
		TargetPitch:    out.TargetAttitude[1],
		Motors:         [4]float64{out.MotorSpeeds[0], out.MotorSpeeds[1], out.MotorSpeeds[2], out.MotorSpeeds[3]},
		Timestamp:      s.now().UTC(),
	}
}

// ObserveTransition implements mission.Observer. A terminal transition
// releases the mission's scanner; detections and the planted field stay
// readable until the next mission.
func (s *Simulator) ObserveTransition(tr mission.Transition) {
	if tr.To.Terminal() {
		s.mu.Lock()
		if s.missionID == tr.MissionID {
			s.scanner = nil
		}
		s.mu.Unlock()
	}
	s.appendEvent(telemetry.MissionEventRow{
		ClusterID: s.clusterID,
		MissionID: tr.MissionID,
		Farm:      tr.FarmRef,
		EventType: telemetry.EventTransition,
		FromState: tr.From.String(),
		ToState:   tr.To.String(),
		Details:   tr.Reason,
		Tick:      tr.Tick,
		X:         tr.Position[0],
		Y:         tr.Position[1],
		Z:         tr.Position[2],
		Timestamp: tr.Time,
	})
}

func (s *Simulator) recordCommand(cmd string) {
	st := s.service.Status()
	s.mu.Lock()
	tick := s.lastSample.Tick
	s.mu.Unlock()
	s.appendEvent(telemetry.MissionEventRow{
		ClusterID: s.clusterID,
		MissionID: st.MissionID,
		Farm:      st.FarmRef,
		EventType: telemetry.EventCommand,
		Details:   cmd,
		Tick:      tick,
		X:         st.Position[0],
		Y:         st.Position[1],
		Z:         st.Position[2],
		Timestamp: s.now().UTC(),
	})
}

func (s *Simulator) appendEvent(ev telemetry.MissionEventRow) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	s.mu.Unlock()
	if s.evWriter == nil {
		return
	}
	if err := s.evWriter.WriteMissionEvent(ev); err != nil {
		s.log.Error("failed to write mission event", "type", ev.EventType, "err", err)
	}
}

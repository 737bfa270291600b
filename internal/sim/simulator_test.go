package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"fieldsweep/internal/config"
	"fieldsweep/internal/control"
	"fieldsweep/internal/mission"
	"fieldsweep/internal/physics"
	"fieldsweep/internal/telemetry"
)

// MockWriter collects telemetry, detection and event rows for validation.
type MockWriter struct {
	mu         sync.Mutex
	Rows       []telemetry.TelemetryRow
	Detections []telemetry.DetectionRow
	Events     []telemetry.MissionEventRow
}

func (w *MockWriter) Write(row telemetry.TelemetryRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Rows = append(w.Rows, row)
	return nil
}

func (w *MockWriter) WriteDetection(d telemetry.DetectionRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Detections = append(w.Detections, d)
	return nil
}

func (w *MockWriter) WriteMissionEvent(e telemetry.MissionEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Events = append(w.Events, e)
	return nil
}

// teleportWorld keeps the vehicle exactly where the paired controller
// last placed it.
type teleportWorld struct {
	mu      sync.Mutex
	pos     mgl64.Vec3
	release chan struct{}
}

func (w *teleportWorld) Connect() error    { return nil }
func (w *teleportWorld) Disconnect() error { return nil }

func (w *teleportWorld) LoadBody(_ string, start physics.Pose) (physics.BodyID, error) {
	w.moveTo(start.Position)
	return 0, nil
}

func (w *teleportWorld) Pose(physics.BodyID) (physics.Pose, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return physics.Pose{Position: w.pos, Orientation: mgl64.QuatIdent()}, nil
}

func (w *teleportWorld) Velocity(physics.BodyID) (mgl64.Vec3, mgl64.Vec3, error) {
	return mgl64.Vec3{}, mgl64.Vec3{}, nil
}

func (w *teleportWorld) ApplyForce(physics.BodyID, int, mgl64.Vec3) error { return nil }

func (w *teleportWorld) Step() error {
	if w.release != nil {
		<-w.release
	}
	return nil
}

func (w *teleportWorld) TimeStep() float64 { return 1.0 / 240 }

func (w *teleportWorld) moveTo(p mgl64.Vec3) {
	w.mu.Lock()
	w.pos = p
	w.mu.Unlock()
}

type teleportController struct{ world *teleportWorld }

func (c teleportController) Compute(_ float64, _ control.Kinematics, t control.Target) (control.Output, error) {
	c.world.moveTo(t.Position)
	return control.Output{PositionError: t.Position}, nil
}

func (c teleportController) Reset() {}

func newTestSimulator(t *testing.T, w TelemetryWriter, world *teleportWorld) *Simulator {
	t.Helper()
	cfg := config.Default()
	s, err := NewSimulator("cluster-test", cfg, w,
		WithEngine(world),
		WithController(func() (mission.Controller, error) { return teleportController{world: world}, nil }),
	)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return s
}

func TestSimulatorSweepWritesTelemetryAndDetections(t *testing.T) {
	w := &MockWriter{}
	s := newTestSimulator(t, w, &teleportWorld{})

	if _, err := s.Deploy(context.Background(), 1); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if st := s.Status(); st.State != mission.StateCompleted || st.Running {
		t.Fatalf("expected completed, got %+v", st)
	}

	every := uint64(s.cfg.Telemetry.Every)
	if len(w.Rows) == 0 {
		t.Fatalf("expected telemetry rows")
	}
	for _, row := range w.Rows {
		if row.Tick%every != 0 {
			t.Fatalf("row at tick %d not on a %d-tick boundary", row.Tick, every)
		}
		if row.ClusterID != "cluster-test" || row.MissionID == "" || row.Farm != "1:North Field Farm" {
			t.Fatalf("telemetry row has missing tags: %+v", row)
		}
	}

	// Sweep rows are closer than the scan diameter, so every crop is seen once.
	crops := s.Crops()
	if len(w.Detections) != len(crops) || len(crops) != s.cfg.Field.DiseasedCrops {
		t.Fatalf("detections = %d, crops = %d", len(w.Detections), len(crops))
	}
	seen := map[string]bool{}
	for _, d := range w.Detections {
		if seen[d.CropID] {
			t.Fatalf("crop %s reported twice", d.CropID)
		}
		seen[d.CropID] = true
		if d.Confidence < 0 || d.Confidence > 1 {
			t.Fatalf("confidence out of range: %v", d.Confidence)
		}
	}

	s.mu.Lock()
	scanner := s.scanner
	s.mu.Unlock()
	if scanner != nil {
		t.Fatalf("scanner still held after the mission ended")
	}
	if len(s.Detections()) != len(crops) {
		t.Fatalf("detections dropped at mission end: %d", len(s.Detections()))
	}

	events := s.Events()
	if len(events) < 2 {
		t.Fatalf("expected transitions, got %v", events)
	}
	if events[0].ToState != "flying" || events[len(events)-1].ToState != "completed" {
		t.Fatalf("unexpected transitions: first %+v last %+v", events[0], events[len(events)-1])
	}
	if len(w.Events) != len(events) {
		t.Fatalf("event writer got %d rows, history has %d", len(w.Events), len(events))
	}
}

func TestSimulatorAbortRecordsCommand(t *testing.T) {
	world := &teleportWorld{release: make(chan struct{})}
	s := newTestSimulator(t, &MockWriter{}, world)

	if _, err := s.Deploy(context.Background(), 1); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := s.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	close(world.release)
	if err := s.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if st := s.Status(); st.State != mission.StateAborted {
		t.Fatalf("expected aborted, got %s", st.State)
	}
	s.mu.Lock()
	released := s.scanner == nil
	s.mu.Unlock()
	if !released {
		t.Fatalf("scanner not released on abort")
	}
	var cmd bool
	for _, e := range s.Events() {
		if e.EventType == telemetry.EventCommand && e.Details == "abort" {
			cmd = true
		}
	}
	if !cmd {
		t.Fatalf("abort command not recorded: %+v", s.Events())
	}
}

func TestSimulatorRejectsCommands(t *testing.T) {
	s := newTestSimulator(t, nil, &teleportWorld{})

	if _, err := s.Deploy(context.Background(), 99); !errors.Is(err, ErrUnknownFarm) {
		t.Fatalf("expected ErrUnknownFarm, got %v", err)
	}
	if _, err := s.TogglePause(); !errors.Is(err, mission.ErrNoActiveMission) {
		t.Fatalf("expected ErrNoActiveMission, got %v", err)
	}
	if err := s.Abort(); !errors.Is(err, mission.ErrNoActiveMission) {
		t.Fatalf("expected ErrNoActiveMission, got %v", err)
	}
	if len(s.Events()) != 0 {
		t.Fatalf("rejected commands must not be recorded")
	}
}

func TestSimulatorRunStopsMission(t *testing.T) {
	s := newTestSimulator(t, nil, &teleportWorld{})
	if _, err := s.Deploy(context.Background(), 1); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("simulator did not stop")
	}
	if st := s.Status(); st.Running || !st.State.Terminal() {
		t.Fatalf("expected a finished mission, got %+v", st)
	}
}

func TestSimulatorRecord(t *testing.T) {
	w := &MockWriter{}
	s := newTestSimulator(t, w, &teleportWorld{})
	s.now = func() time.Time { return time.Unix(42, 0) }
	s.Record(1, 2, "rust", 0.7)
	if len(w.Detections) != 1 || len(s.Detections()) != 1 {
		t.Fatalf("expected one detection")
	}
	d := w.Detections[0]
	if d.X != 1 || d.Y != 2 || d.Label != "rust" || d.CropID == "" || !d.Timestamp.Equal(time.Unix(42, 0)) {
		t.Fatalf("unexpected detection: %+v", d)
	}
}

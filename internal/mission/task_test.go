package mission

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"fieldsweep/internal/planner"
)

var testField = planner.Field{Min: mgl64.Vec2{-2, -2}, Max: mgl64.Vec2{2, 2}}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newTestRunner builds a runner over the standard sweep of testField with a
// perfectly tracking controller, already launched.
func newTestRunner(t *testing.T) (*runner, *trackingWorld, chan struct{}, *recordingObserver) {
	t.Helper()
	s := DefaultSettings()
	wps, err := planner.Sweep(testField, s.Plan)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	world := &trackingWorld{}
	shared := NewShared()
	if err := shared.begin("test", "farm-1", testField, len(wps)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	abort := make(chan struct{}, 1)
	obs := &recordingObserver{}
	plan := Plan{ID: "test", FarmRef: "farm-1", Field: testField, Waypoints: wps, Descriptor: "cf2p", Spawn: mgl64.Vec3{0, 0, 0.1}}
	r := newRunner(plan, s, DefaultTiming(), world, &perfectTracker{world: world}, shared, obs, abort, quietLogger())
	if err := r.setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return r, world, abort, obs
}

func stepUntil(t *testing.T, r *runner, limit int, cond func() bool) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if cond() {
			return
		}
		if err := r.step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if !cond() {
		t.Fatalf("condition not reached after %d ticks", limit)
	}
}

func TestAbortReplacesPathWithReturnHome(t *testing.T) {
	for _, k := range []int{0, 1, 5, 12, 20} {
		r, _, abort, obs := newTestRunner(t)
		stepUntil(t, r, 100000, func() bool { return r.machine.Index() == k })

		abort <- struct{}{}
		if err := r.step(); err != nil {
			t.Fatalf("k=%d: step: %v", k, err)
		}
		if got := len(r.machine.Waypoints()); got != 3 {
			t.Fatalf("k=%d: %d waypoints after abort, want 3", k, got)
		}
		if r.machine.State() != StateReturningHome {
			t.Fatalf("k=%d: state = %s, want returning_home", k, r.machine.State())
		}

		abort <- struct{}{}
		stepUntil(t, r, 100000, r.machine.Done)
		if r.machine.State() != StateAborted {
			t.Fatalf("k=%d: terminal state = %s, want aborted", k, r.machine.State())
		}
		if got := len(r.machine.Waypoints()); got != 3 {
			t.Fatalf("k=%d: second abort replaced the path again", k)
		}
		for _, s := range obs.states() {
			if s == StateCompleted {
				t.Fatalf("k=%d: aborted mission passed through completed", k)
			}
		}
		last := r.pos
		if last.Sub(mgl64.Vec3{0, 0, 0.05}).Len() > 0.2 {
			t.Fatalf("k=%d: ended at %v, not near the landing point", k, last)
		}
	}
}

func TestPauseFreezesWaypointIndex(t *testing.T) {
	r, world, _, _ := newTestRunner(t)
	stepUntil(t, r, 100000, func() bool { return r.machine.Index() == 3 })

	if paused, err := r.shared.TogglePause(); err != nil || !paused {
		t.Fatalf("toggle pause: paused=%v err=%v", paused, err)
	}
	stepsBefore := world.steps
	for i := 0; i < 2000; i++ {
		if err := r.step(); err != nil {
			t.Fatalf("step: %v", err)
		}
		if r.machine.Index() != 3 {
			t.Fatalf("index moved to %d while paused", r.machine.Index())
		}
	}
	if r.machine.State() != StateStalled || r.shared.Snapshot().State != StateStalled {
		t.Fatalf("state = %s, want stalled", r.machine.State())
	}
	if world.steps == stepsBefore {
		t.Fatalf("physics stopped stepping while paused")
	}

	if paused, err := r.shared.TogglePause(); err != nil || paused {
		t.Fatalf("toggle resume: paused=%v err=%v", paused, err)
	}
	stepUntil(t, r, 100000, func() bool { return r.machine.Index() > 3 })
	if r.machine.State() != StateFlying {
		t.Fatalf("state after resume = %s", r.machine.State())
	}
}

func TestPausedWaitDependsOnPacing(t *testing.T) {
	r, _, _, _ := newTestRunner(t)
	if _, err := r.shared.TogglePause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Free-running: wait blocks until the pause is lifted.
	returned := make(chan struct{})
	go func() {
		r.wait(context.Background(), time.Now(), time.Millisecond)
		close(returned)
	}()
	select {
	case <-returned:
		t.Fatalf("free-running wait returned while paused")
	case <-time.After(50 * time.Millisecond):
	}
	if _, err := r.shared.TogglePause(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatalf("wait did not return after resume")
	}

	// Realtime: a paused tick is paced like any other so physics keeps running.
	if _, err := r.shared.TogglePause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	r.timing.Realtime = true
	done := make(chan struct{})
	go func() {
		r.wait(context.Background(), time.Now(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("realtime wait blocked while paused")
	}
}

func TestStepPublishesProgress(t *testing.T) {
	r, _, _, obs := newTestRunner(t)
	for i := 0; i < 10; i++ {
		if err := r.step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	st := r.shared.Snapshot()
	if st.State != StateFlying || st.TotalWaypoints != len(r.plan.Waypoints) {
		t.Fatalf("snapshot = %+v", st)
	}
	if len(obs.samples) != 10 || obs.samples[9].Tick != 10 {
		t.Fatalf("expected 10 samples, got %d", len(obs.samples))
	}
	if st.Position[2] <= 0.1 {
		t.Fatalf("position not published: %v", st.Position)
	}
}

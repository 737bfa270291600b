package mission

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const tickDT = 1.0 / 48

func TestMachineDwellsBeforeAdvancing(t *testing.T) {
	s := DefaultSettings()
	wps := []mgl64.Vec3{{0, 0, 1}, {1, 0, 1}}
	m := NewMachine(s, wps, mgl64.Vec3{0, 0, 0.98})
	m.Launch()
	if m.State() != StateFlying {
		t.Fatalf("state = %s, want flying", m.State())
	}

	ref := m.Step(tickDT, mgl64.Vec3{0, 0, 0.98})
	if !m.Waiting() || ref.Position != wps[0] {
		t.Fatalf("expected snap to first waypoint, got waiting=%v ref=%v", m.Waiting(), ref.Position)
	}
	ticks := 0
	for m.Index() == 0 {
		m.Step(tickDT, wps[0])
		ticks++
		if ticks > 1000 {
			t.Fatalf("never left first waypoint")
		}
	}
	if dwell := float64(ticks) * tickDT; dwell < s.Dwell-1e-9 {
		t.Fatalf("advanced after %.3fs, want at least %.3fs", dwell, s.Dwell)
	}
}

func TestMachineWaitsForPhysicalTracking(t *testing.T) {
	m := NewMachine(DefaultSettings(), []mgl64.Vec3{{0, 0, 1}, {1, 0, 1}}, mgl64.Vec3{0, 0, 1})
	m.Launch()
	far := mgl64.Vec3{0, 0, 0.5}
	for i := 0; i < 500; i++ {
		m.Step(tickDT, far)
	}
	if m.Index() != 0 {
		t.Fatalf("advanced while the drone was %.2fm from the reference", 0.5)
	}
	for i := 0; i < 2 && m.Index() == 0; i++ {
		m.Step(tickDT, mgl64.Vec3{0, 0, 1.1})
	}
	if m.Index() != 1 {
		t.Fatalf("expected advance once tracking, index = %d", m.Index())
	}
}

func TestMachineReferenceMovesAtCruiseSpeed(t *testing.T) {
	s := DefaultSettings()
	m := NewMachine(s, []mgl64.Vec3{{2, 0, 1}}, mgl64.Vec3{0, 0, 1})
	m.Launch()
	ref := m.Step(tickDT, mgl64.Vec3{0, 0, 1})
	if got, want := ref.Position[0], s.CruiseSpeed*tickDT; got < want-1e-12 || got > want+1e-12 {
		t.Fatalf("reference x = %g, want %g", got, want)
	}
	if ref.Velocity != (mgl64.Vec3{s.CruiseSpeed, 0, 0}) {
		t.Fatalf("reference velocity = %v", ref.Velocity)
	}
}

func TestMachineCompletesAfterLastWaypoint(t *testing.T) {
	var seen []State
	m := NewMachine(DefaultSettings(), []mgl64.Vec3{{0, 0, 1}}, mgl64.Vec3{0, 0, 1})
	m.OnTransition = func(_, to State, _ string) { seen = append(seen, to) }
	m.Launch()
	for i := 0; i < 200 && !m.Done(); i++ {
		m.Step(tickDT, m.Reference().Position)
	}
	if m.State() != StateCompleted {
		t.Fatalf("state = %s, want completed", m.State())
	}
	if len(seen) != 2 || seen[0] != StateFlying || seen[1] != StateCompleted {
		t.Fatalf("transitions = %v", seen)
	}
}

func TestMachineAbortAppliesOnce(t *testing.T) {
	wps := []mgl64.Vec3{{0, 0, 1}, {2, 2, 1}, {0, 0, 1}, {0, 0, 0.05}}
	m := NewMachine(DefaultSettings(), wps, mgl64.Vec3{0, 0, 1})
	m.Launch()
	drone := mgl64.Vec3{1, 1, 0.9}
	if !m.Abort(drone) {
		t.Fatalf("first abort rejected")
	}
	if m.Abort(mgl64.Vec3{5, 5, 5}) {
		t.Fatalf("second abort applied")
	}
	if m.State() != StateReturningHome {
		t.Fatalf("state = %s, want returning_home", m.State())
	}
	got := m.Waypoints()
	if len(got) != 3 || got[0] != (mgl64.Vec3{1, 1, 1}) {
		t.Fatalf("return path = %v", got)
	}
	if m.Reference().Position != drone || m.Waiting() || m.Index() != 0 {
		t.Fatalf("abort did not reset progress: ref=%v waiting=%v index=%d", m.Reference(), m.Waiting(), m.Index())
	}
}

func TestMachinePauseHoldsReference(t *testing.T) {
	m := NewMachine(DefaultSettings(), []mgl64.Vec3{{3, 0, 1}}, mgl64.Vec3{0, 0, 1})
	m.Launch()
	m.Step(tickDT, mgl64.Vec3{0, 0, 1})
	m.Pause()
	held := m.Reference().Position
	for i := 0; i < 10; i++ {
		if ref := m.Step(tickDT, held); ref.Position != held || ref.Velocity != (mgl64.Vec3{}) {
			t.Fatalf("reference moved while stalled: %v", ref)
		}
	}
	m.Resume()
	if m.State() != StateFlying {
		t.Fatalf("state after resume = %s", m.State())
	}
	if ref := m.Step(tickDT, held); ref.Position == held {
		t.Fatalf("reference did not move after resume")
	}
}

func TestStateText(t *testing.T) {
	for s := StateIdle; s <= StateError; s++ {
		b, _ := s.MarshalText()
		var back State
		if err := back.UnmarshalText(b); err != nil || back != s {
			t.Fatalf("round trip %s -> %q -> %s (%v)", s, b, back, err)
		}
	}
	if StateReturningHome.String() != "returning_home" {
		t.Fatalf("unexpected name %q", StateReturningHome.String())
	}
	if _, err := ParseState("landing"); err == nil {
		t.Fatalf("expected error for unknown state")
	}
	if !StateStalled.Active() || StateCompleted.Active() || !StateError.Terminal() {
		t.Fatalf("active/terminal classification wrong")
	}
}

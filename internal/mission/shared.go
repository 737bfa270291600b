package mission

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"fieldsweep/internal/control"
	"fieldsweep/internal/planner"
)

// Status is a consistent snapshot of mission progress.
type Status struct {
	MissionID      string              `json:"mission_id,omitempty"`
	State          State               `json:"status"`
	Running        bool                `json:"is_running"`
	Paused         bool                `json:"is_paused"`
	Position       mgl64.Vec3          `json:"position"`
	Reference      mgl64.Vec3          `json:"reference"`
	WaypointIndex  int                 `json:"current_waypoint"`
	TotalWaypoints int                 `json:"total_waypoints"`
	FarmRef        string              `json:"current_farm,omitempty"`
	Field          planner.Field       `json:"field"`
	Diagnostics    control.Diagnostics `json:"diagnostics"`
	LastError      string              `json:"last_error,omitempty"`
	StartedAt      time.Time           `json:"started_at,omitempty"`
	EndedAt        time.Time           `json:"ended_at,omitempty"`
}

// Shared is the mission state read by the command surface and written by
// the mission task. Every update is applied under one lock so readers never
// see a partially written vector.
type Shared struct {
	mu     sync.RWMutex
	st     Status
	resume chan struct{}
}

// NewShared returns an idle shared state.
func NewShared() *Shared {
	return &Shared{st: Status{State: StateIdle}}
}

// Snapshot returns a copy of the current status.
func (s *Shared) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Running reports whether a mission task is active.
func (s *Shared) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Running
}

// Paused reports whether the active mission is paused.
func (s *Shared) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Paused
}

// begin claims the running flag for a new mission.
func (s *Shared) begin(id, farm string, field planner.Field, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Running {
		return ErrAlreadyRunning
	}
	s.st = Status{
		MissionID:      id,
		State:          StateDeploying,
		Running:        true,
		FarmRef:        farm,
		Field:          field,
		TotalWaypoints: total,
		StartedAt:      time.Now().UTC(),
	}
	s.resume = nil
	return nil
}

// release undoes begin when a mission fails before its task starts.
func (s *Shared) release(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Running = false
	s.st.State = StateError
	s.st.LastError = err.Error()
	s.st.EndedAt = time.Now().UTC()
}

// TogglePause flips the paused flag and returns the new value.
func (s *Shared) TogglePause() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.st.Running {
		return false, ErrNoActiveMission
	}
	if s.st.Paused {
		s.unpauseLocked()
	} else {
		s.st.Paused = true
		s.resume = make(chan struct{})
	}
	return s.st.Paused, nil
}

// clearPause resumes the mission if it is paused.
func (s *Shared) clearPause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unpauseLocked()
}

func (s *Shared) unpauseLocked() {
	s.st.Paused = false
	if s.resume != nil {
		close(s.resume)
		s.resume = nil
	}
}

// resumed returns a channel closed when the current pause ends, or nil when
// not paused.
func (s *Shared) resumed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resume
}

func (s *Shared) setState(st State) {
	s.mu.Lock()
	s.st.State = st
	s.mu.Unlock()
}

func (s *Shared) setProgress(pos, ref mgl64.Vec3, index, total int, diags control.Diagnostics) {
	s.mu.Lock()
	s.st.Position = pos
	s.st.Reference = ref
	s.st.WaypointIndex = index
	s.st.TotalWaypoints = total
	s.st.Diagnostics = diags
	s.mu.Unlock()
}

// finish records the terminal state and clears the transient flags.
func (s *Shared) finish(st State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.State = st
	if err != nil {
		s.st.LastError = err.Error()
	}
	s.st.Running = false
	s.unpauseLocked()
	s.st.EndedAt = time.Now().UTC()
}

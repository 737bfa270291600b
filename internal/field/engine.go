// Package field simulates the crop field under inspection: diseased crops
// planted at random and a downward-looking scanner that reports them as the
// vehicle passes overhead.
package field

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"fieldsweep/internal/planner"
)

// Engine holds the diseased crops planted in one field.
type Engine struct {
	field planner.Field
	Crops []*Crop
}

// NewEngine plants count diseased crops uniformly inside f using r.
func NewEngine(count int, f planner.Field, r *rand.Rand) *Engine {
	e := &Engine{field: f}
	for i := 0; i < count; i++ {
		id, err := uuid.NewRandomFromReader(r)
		if err != nil {
			id = uuid.New()
		}
		e.Crops = append(e.Crops, &Crop{
			ID:       id.String(),
			Label:    Labels[r.Intn(len(Labels))],
			Position: randomPosition(f, r),
		})
	}
	return e
}

func randomPosition(f planner.Field, r *rand.Rand) mgl64.Vec2 {
	return mgl64.Vec2{
		f.Min[0] + r.Float64()*(f.Max[0]-f.Min[0]),
		f.Min[1] + r.Float64()*(f.Max[1]-f.Min[1]),
	}
}

// Field returns the bounds crops were planted in.
func (e *Engine) Field() planner.Field { return e.field }

// Scanner reports crops within radius of the vehicle's planar position,
// each at most once.
type Scanner struct {
	engine   *Engine
	radius   float64
	reported map[string]bool
}

// NewScanner returns a scanner over e's crops.
func NewScanner(e *Engine, radius float64) *Scanner {
	return &Scanner{engine: e, radius: radius, reported: map[string]bool{}}
}

// Scan returns the crops newly seen from pos. Confidence falls linearly
// from 1 directly overhead to 0 at the scan radius.
func (s *Scanner) Scan(pos mgl64.Vec2) []Detection {
	var out []Detection
	for _, c := range s.engine.Crops {
		if s.reported[c.ID] {
			continue
		}
		d := c.Position.Sub(pos).Len()
		if d > s.radius {
			continue
		}
		s.reported[c.ID] = true
		out = append(out, Detection{
			CropID:     c.ID,
			Label:      c.Label,
			Position:   c.Position,
			Distance:   d,
			Confidence: 1 - d/s.radius,
		})
	}
	return out
}

// Reported returns how many crops have been reported.
func (s *Scanner) Reported() int { return len(s.reported) }

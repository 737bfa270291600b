// Package planner builds the waypoint sequences flown by a mission: the
// boustrophedon field sweep and the short return-home path used on abort.
package planner

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrInvalidField is returned for bounds that are non-finite or empty.
	ErrInvalidField = errors.New("invalid field bounds")
	// ErrInvalidStep is returned for a sweep step that is not positive.
	ErrInvalidStep = errors.New("sweep step must be positive")
	// ErrInvalidAltitude is returned when hover is not above the landing altitude.
	ErrInvalidAltitude = errors.New("hover altitude must be above landing altitude")
)

// Field is an axis-aligned rectangle on the ground plane.
type Field struct {
	Min mgl64.Vec2 `json:"min"`
	Max mgl64.Vec2 `json:"max"`
}

// Validate reports whether the field is a non-empty finite rectangle.
func (f Field) Validate() error {
	for _, v := range []float64{f.Min[0], f.Min[1], f.Max[0], f.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite corner %v..%v", ErrInvalidField, f.Min, f.Max)
		}
	}
	if f.Max[0] <= f.Min[0] || f.Max[1] <= f.Min[1] {
		return fmt.Errorf("%w: min %v must be below max %v", ErrInvalidField, f.Min, f.Max)
	}
	return nil
}

// Params holds the altitudes and spacing of a sweep.
type Params struct {
	Home            mgl64.Vec2
	Hover           float64
	Step            float64
	LandingAltitude float64
}

// DefaultParams returns the standard sweep: home at the origin, 1 m hover,
// 0.75 m rows, landing at 5 cm.
func DefaultParams() Params {
	return Params{Hover: 1.0, Step: 0.75, LandingAltitude: 0.05}
}

func (p Params) validate() error {
	if !(p.Step > 0) || math.IsInf(p.Step, 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidStep, p.Step)
	}
	if !(p.Hover > p.LandingAltitude) || math.IsInf(p.Hover, 0) {
		return fmt.Errorf("%w: hover %g, landing %g", ErrInvalidAltitude, p.Hover, p.LandingAltitude)
	}
	return nil
}

// RowCount returns the number of sweep rows needed to cover f at step spacing.
// Rows start at Min.Y, advance by step, and the last row lies on Max.Y.
func RowCount(f Field, step float64) int {
	span := f.Max[1] - f.Min[1]
	return int(math.Ceil(span/step-1e-9)) + 1
}

// rowY returns the y coordinate of row k; the final row is snapped to Max.Y.
func rowY(f Field, step float64, k, rows int) float64 {
	if k == rows-1 {
		return f.Max[1]
	}
	return f.Min[1] + float64(k)*step
}

// Sweep returns the ordered waypoint sequence for a full field inspection:
// takeoff above home, the field's min corner, two points per row alternating
// direction, home at hover and finally the landing point. Each row starts
// where the previous one ended in x, so the climb to the next row is the
// leg between them.
func Sweep(f Field, p Params) ([]mgl64.Vec3, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	rows := RowCount(f, p.Step)
	wps := make([]mgl64.Vec3, 0, 2*rows+4)
	wps = append(wps,
		mgl64.Vec3{p.Home[0], p.Home[1], p.Hover},
		mgl64.Vec3{f.Min[0], f.Min[1], p.Hover},
	)
	for k := 0; k < rows; k++ {
		xs, xe := f.Min[0], f.Max[0]
		if k%2 == 1 {
			xs, xe = xe, xs
		}
		y := rowY(f, p.Step, k, rows)
		wps = append(wps, mgl64.Vec3{xs, y, p.Hover}, mgl64.Vec3{xe, y, p.Hover})
	}
	return append(wps, homeLeg(p)...), nil
}

// ReturnHome returns the three-point path flown after an abort: climb or
// descend to hover over pos, fly home at hover, then land.
func ReturnHome(pos mgl64.Vec3, p Params) []mgl64.Vec3 {
	return append([]mgl64.Vec3{{pos[0], pos[1], p.Hover}}, homeLeg(p)...)
}

func homeLeg(p Params) []mgl64.Vec3 {
	return []mgl64.Vec3{
		{p.Home[0], p.Home[1], p.Hover},
		{p.Home[0], p.Home[1], p.LandingAltitude},
	}
}

// PathLength returns the polyline length of wps.
func PathLength(wps []mgl64.Vec3) float64 {
	var total float64
	for i := 1; i < len(wps); i++ {
		total += wps[i].Sub(wps[i-1]).Len()
	}
	return total
}

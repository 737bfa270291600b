package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	posIntegralLimit  = 2.0
	posIntegralLimitZ = 0.15
	// MaxTilt bounds the target roll and pitch in radians.
	MaxTilt = 0.5
)

// PositionController turns position/velocity error into a thrust command and
// a target attitude. It owns the position-error integral.
type PositionController struct {
	cfg      *ControllerConfig
	integral mgl64.Vec3
}

// PositionResult is the output of one position control update.
type PositionResult struct {
	Thrust         float64
	TargetAttitude mgl64.Vec3
	PositionError  mgl64.Vec3
	// Singular is set when an unclamped target angle fell outside [-pi, pi].
	Singular bool
	// Degenerate is set when the desired body frame needed a fallback axis.
	Degenerate bool
}

// Integral returns the current position-error integral.
func (c *PositionController) Integral() mgl64.Vec3 { return c.integral }

func (c *PositionController) reset() { c.integral = mgl64.Vec3{} }

// Update runs one position control step.
func (c *PositionController) Update(dt float64, pos, vel mgl64.Vec3, orient mgl64.Quat, targetPos, targetVel mgl64.Vec3, targetYaw float64) PositionResult {
	g := c.cfg.Gains
	posErr := targetPos.Sub(pos)
	velErr := targetVel.Sub(vel)

	c.integral = clampVec(c.integral.Add(posErr.Mul(dt)), posIntegralLimit)
	c.integral[2] = mgl64.Clamp(c.integral[2], -posIntegralLimitZ, posIntegralLimitZ)

	force := mulElem(g.PosP, posErr).
		Add(mulElem(g.PosI, c.integral)).
		Add(mulElem(g.PosD, velErr)).
		Add(mgl64.Vec3{0, 0, c.cfg.Weight()})

	bodyZ := RotationFromQuat(orient).Col(2)
	scalar := math.Max(0, force.Dot(bodyZ))
	thrust := (math.Sqrt(scalar/(4*c.cfg.KF)) - c.cfg.SpeedOffset) / c.cfg.SpeedScale

	res := PositionResult{Thrust: thrust, PositionError: posErr}
	frame, degenerate := desiredFrame(force, targetYaw)
	res.Degenerate = degenerate

	euler := IntrinsicXYZFromRotation(frame)
	for _, a := range euler {
		if math.Abs(a) > math.Pi {
			res.Singular = true
		}
	}
	euler[0] = mgl64.Clamp(euler[0], -MaxTilt, MaxTilt)
	euler[1] = mgl64.Clamp(euler[1], -MaxTilt, MaxTilt)
	res.TargetAttitude = euler
	return res
}

// desiredFrame stacks the body axes that align z with force and x with the yaw
// heading. A zero force falls back to world up; a heading collinear with the
// thrust axis falls back to the perpendicular heading axis.
func desiredFrame(force mgl64.Vec3, yaw float64) (mgl64.Mat3, bool) {
	degenerate := false
	zAxis := mgl64.Vec3{0, 0, 1}
	if n := force.Len(); n > degenerateEps && finite(n) {
		zAxis = force.Mul(1 / n)
	} else {
		degenerate = true
	}

	sy, cy := math.Sincos(yaw)
	xRef := mgl64.Vec3{cy, sy, 0}
	var yAxis mgl64.Vec3
	if y := zAxis.Cross(xRef); y.Len() > degenerateEps {
		yAxis = y.Normalize()
	} else {
		yAxis = mgl64.Vec3{-sy, cy, 0}
		degenerate = true
	}
	xAxis := yAxis.Cross(zAxis)
	return mgl64.Mat3FromCols(xAxis, yAxis, zAxis), degenerate
}

package control

import (
	"github.com/go-gl/mathgl/mgl64"
)

const (
	attIntegralLimit   = 2.0
	attIntegralLimitRP = 1.0
	torqueLimit        = 3200.0
)

// AttitudeController turns attitude and rate error plus a thrust command into
// four motor speeds. It owns the attitude integral and the last observed
// attitude used for the rate estimate.
type AttitudeController struct {
	cfg       *ControllerConfig
	integral  mgl64.Vec3
	lastEuler mgl64.Vec3
}

// Integral returns the current attitude-error integral.
func (c *AttitudeController) Integral() mgl64.Vec3 { return c.integral }

func (c *AttitudeController) reset() {
	c.integral = mgl64.Vec3{}
	c.lastEuler = mgl64.Vec3{}
}

// Update runs one attitude control step and returns motor speeds.
func (c *AttitudeController) Update(dt, thrust float64, orient mgl64.Quat, targetEuler, targetRates mgl64.Vec3) mgl64.Vec4 {
	g := c.cfg.Gains
	cur := RotationFromQuat(orient)
	curEuler := EulerFromQuat(orient)
	target := RotationFromIntrinsicXYZ(targetEuler)

	rotErr := vee(target.Transpose().Mul3(cur).Sub(cur.Transpose().Mul3(target)))
	rateErr := targetRates.Sub(curEuler.Sub(c.lastEuler).Mul(1 / dt))
	c.lastEuler = curEuler

	c.integral = clampVec(c.integral.Sub(rotErr.Mul(dt)), attIntegralLimit)
	c.integral[0] = mgl64.Clamp(c.integral[0], -attIntegralLimitRP, attIntegralLimitRP)
	c.integral[1] = mgl64.Clamp(c.integral[1], -attIntegralLimitRP, attIntegralLimitRP)

	torque := mulElem(g.AttP, rotErr).Mul(-1).
		Add(mulElem(g.AttD, rateErr)).
		Add(mulElem(g.AttI, c.integral))
	torque = clampVec(torque, torqueLimit)

	mixed := c.cfg.Mixer.Mul3x1(torque)
	var speeds mgl64.Vec4
	for i := range speeds {
		cmd := mgl64.Clamp(thrust+mixed[i], c.cfg.MinCommand, c.cfg.MaxCommand)
		speeds[i] = c.cfg.SpeedScale*cmd + c.cfg.SpeedOffset
	}
	return speeds
}

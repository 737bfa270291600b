package control

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"fieldsweep/internal/logging"
)

// Kinematics is the rigid-body state the controller consumes each tick.
type Kinematics struct {
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// Target is the reference the controller tracks. Attitude carries the target
// roll/pitch/yaw; only yaw is used by the position loop.
type Target struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Attitude mgl64.Vec3
	Rates    mgl64.Vec3
}

// Output is the result of one Compute call.
type Output struct {
	MotorSpeeds    mgl64.Vec4
	Thrusts        mgl64.Vec4
	PositionError  mgl64.Vec3
	TargetAttitude mgl64.Vec3
	YawError       float64
}

// Diagnostics counts numerical events reported by the controller.
type Diagnostics struct {
	Ticks         uint64 `json:"ticks"`
	Singularities uint64 `json:"singularities"`
	Degeneracies  uint64 `json:"degeneracies"`
}

// Controller is the cascaded position/attitude controller for one vehicle.
// It is not safe for concurrent use.
type Controller struct {
	cfg   ControllerConfig
	Pos   PositionController
	Att   AttitudeController
	log   *slog.Logger
	diags Diagnostics
}

// New builds a controller from a resolved configuration.
func New(cfg ControllerConfig, log *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{cfg: cfg, log: logging.Component(log, "controller").With("airframe", cfg.Airframe.String())}
	c.Pos.cfg = &c.cfg
	c.Att.cfg = &c.cfg
	return c, nil
}

// NewForAirframe resolves tag (with optional physical overrides) and builds a controller.
func NewForAirframe(tag string, override *Physical, log *slog.Logger) (*Controller, error) {
	cfg, err := Resolve(tag, override)
	if err != nil {
		return nil, err
	}
	return New(cfg, log)
}

// Config returns the resolved configuration.
func (c *Controller) Config() ControllerConfig { return c.cfg }

// Diagnostics returns the counters accumulated since the last Reset.
func (c *Controller) Diagnostics() Diagnostics { return c.diags }

// Reset clears both integrals, the last attitude and the counters.
func (c *Controller) Reset() {
	c.Pos.reset()
	c.Att.reset()
	c.diags = Diagnostics{}
}

// Compute runs the position loop then the attitude loop and returns motor
// speeds for the next physics interval.
func (c *Controller) Compute(dt float64, k Kinematics, t Target) (Output, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return Output{}, fmt.Errorf("%w: dt=%g", ErrInvalidTimestep, dt)
	}
	c.diags.Ticks++
	pos := c.Pos.Update(dt, k.Position, k.Velocity, k.Orientation, t.Position, t.Velocity, t.Attitude[2])
	if pos.Singular {
		c.diags.Singularities++
		c.log.Warn("target attitude out of range, clamped",
			"tick", c.diags.Ticks,
			"roll", pos.TargetAttitude[0], "pitch", pos.TargetAttitude[1], "yaw", pos.TargetAttitude[2])
	}
	if pos.Degenerate {
		c.diags.Degeneracies++
		c.log.Warn("desired body frame degenerate, using fallback axis", "tick", c.diags.Ticks)
	}

	speeds := c.Att.Update(dt, pos.Thrust, k.Orientation, pos.TargetAttitude, t.Rates)
	for _, s := range speeds {
		if !finite(s) {
			return Output{}, fmt.Errorf("%w at tick %d", ErrNonFiniteCommand, c.diags.Ticks)
		}
	}

	out := Output{
		MotorSpeeds:    speeds,
		PositionError:  pos.PositionError,
		TargetAttitude: pos.TargetAttitude,
		YawError:       pos.TargetAttitude[2] - EulerFromQuat(k.Orientation)[2],
	}
	for i, s := range speeds {
		out.Thrusts[i] = c.cfg.KF * s * s
	}
	return out, nil
}

// HoverSpeed returns the per-motor speed that balances the vehicle's weight.
func (c ControllerConfig) HoverSpeed() float64 {
	return math.Sqrt(c.Weight() / (4 * c.KF))
}

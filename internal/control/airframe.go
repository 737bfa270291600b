package control

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Airframe is the closed set of supported motor layouts.
type Airframe string

const (
	// AirframeCF2X is the X layout: motors on the diagonals.
	AirframeCF2X Airframe = "cf2x"
	// AirframeCF2P is the + layout: motors on the body axes.
	AirframeCF2P Airframe = "cf2p"
)

// Airframes lists every supported airframe tag.
var Airframes = []Airframe{AirframeCF2X, AirframeCF2P}

func (a Airframe) String() string { return string(a) }

// ParseAirframe converts a tag into an Airframe.
func ParseAirframe(value string) (Airframe, error) {
	switch Airframe(strings.ToLower(strings.TrimSpace(value))) {
	case AirframeCF2X:
		return AirframeCF2X, nil
	case AirframeCF2P:
		return AirframeCF2P, nil
	default:
		return "", &ConfigurationError{Airframe: value, Err: ErrUnknownAirframe}
	}
}

// UnmarshalText allows airframes to be loaded from YAML/JSON strings.
func (a *Airframe) UnmarshalText(b []byte) error {
	parsed, err := ParseAirframe(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Physical holds the rigid-body and motor constants of an airframe.
// Zero fields in an override keep the built-in value.
type Physical struct {
	Mass      float64    `yaml:"mass" json:"mass"`
	KF        float64    `yaml:"kf" json:"kf"`
	KM        float64    `yaml:"km" json:"km"`
	Inertia   mgl64.Vec3 `yaml:"inertia" json:"inertia"`
	ArmLength float64    `yaml:"arm" json:"arm"`
}

// Gains are the six PID gain vectors of the cascaded controller.
type Gains struct {
	PosP, PosI, PosD mgl64.Vec3
	AttP, AttI, AttD mgl64.Vec3
}

// ControllerConfig is the immutable per-airframe tuning resolved once at
// controller construction.
type ControllerConfig struct {
	Airframe Airframe
	Physical
	Gravity float64

	// Motor speed = SpeedScale*command + SpeedOffset.
	SpeedScale  float64
	SpeedOffset float64
	MinCommand  float64
	MaxCommand  float64

	// Mixer maps (roll, pitch, yaw) torque to the four motor commands.
	Mixer mgl64.Mat4x3
	Gains Gains
}

// Weight returns mass times gravity, the hover force.
func (c ControllerConfig) Weight() float64 { return c.Mass * c.Gravity }

// MotorPositions returns the planar arm offsets of motors 0..3 in the body frame.
func (c ControllerConfig) MotorPositions() [4]mgl64.Vec3 {
	l := c.ArmLength
	if c.Airframe == AirframeCF2X {
		d := l / math.Sqrt2
		return [4]mgl64.Vec3{{d, -d, 0}, {-d, -d, 0}, {-d, d, 0}, {d, d, 0}}
	}
	return [4]mgl64.Vec3{{l, 0, 0}, {0, l, 0}, {-l, 0, 0}, {0, -l, 0}}
}

// MotorSpin returns the yaw reaction sign of each motor.
func (c ControllerConfig) MotorSpin() [4]float64 {
	return [4]float64{-1, 1, -1, 1}
}

var crazyflie = Physical{
	Mass:      0.027,
	KF:        3.16e-10,
	KM:        7.94e-12,
	Inertia:   mgl64.Vec3{1.4e-5, 1.4e-5, 2.17e-5},
	ArmLength: 0.0397,
}

var dslGains = Gains{
	PosP: mgl64.Vec3{0.4, 0.4, 1.25},
	PosI: mgl64.Vec3{0.05, 0.05, 0.05},
	PosD: mgl64.Vec3{0.2, 0.2, 0.5},
	AttP: mgl64.Vec3{70000, 70000, 60000},
	AttI: mgl64.Vec3{0, 0, 500},
	AttD: mgl64.Vec3{20000, 20000, 12000},
}

var builtin = map[Airframe]ControllerConfig{
	AirframeCF2X: {
		Airframe:    AirframeCF2X,
		Physical:    crazyflie,
		Gravity:     9.8,
		SpeedScale:  0.2685,
		SpeedOffset: 4070.3,
		MinCommand:  20000,
		MaxCommand:  65535,
		Mixer: mixerFromRows([4][3]float64{
			{-.5, -.5, -1},
			{-.5, .5, 1},
			{.5, .5, -1},
			{.5, -.5, 1},
		}),
		Gains: dslGains,
	},
	AirframeCF2P: {
		Airframe:    AirframeCF2P,
		Physical:    crazyflie,
		Gravity:     9.8,
		SpeedScale:  0.2685,
		SpeedOffset: 4070.3,
		MinCommand:  20000,
		MaxCommand:  65535,
		Mixer: mixerFromRows([4][3]float64{
			{0, -1, -1},
			{1, 0, 1},
			{0, 1, -1},
			{-1, 0, 1},
		}),
		Gains: dslGains,
	},
}

// mixerFromRows builds the column-major mixer from row literals.
func mixerFromRows(rows [4][3]float64) mgl64.Mat4x3 {
	var m mgl64.Mat4x3
	for r := 0; r < 4; r++ {
		for c := 0; c < 3; c++ {
			m[c*4+r] = rows[r][c]
		}
	}
	return m
}

// Resolve returns the ControllerConfig for tag, with any non-zero fields of
// override replacing the built-in physical constants.
func Resolve(tag string, override *Physical) (ControllerConfig, error) {
	af, err := ParseAirframe(tag)
	if err != nil {
		return ControllerConfig{}, err
	}
	cfg := builtin[af]
	if override != nil {
		if override.Mass != 0 {
			cfg.Mass = override.Mass
		}
		if override.KF != 0 {
			cfg.KF = override.KF
		}
		if override.KM != 0 {
			cfg.KM = override.KM
		}
		for i := 0; i < 3; i++ {
			if override.Inertia[i] != 0 {
				cfg.Inertia[i] = override.Inertia[i]
			}
		}
		if override.ArmLength != 0 {
			cfg.ArmLength = override.ArmLength
		}
	}
	if err := cfg.Validate(); err != nil {
		return ControllerConfig{}, err
	}
	return cfg, nil
}

// Validate checks that every physical constant is usable.
func (c ControllerConfig) Validate() error {
	bad := func(field string, v float64) error {
		return &ConfigurationError{
			Airframe: string(c.Airframe),
			Field:    field,
			Reason:   fmt.Sprintf("must be positive and finite, got %g", v),
		}
	}
	checks := []struct {
		name string
		v    float64
	}{
		{"mass", c.Mass},
		{"kf", c.KF},
		{"km", c.KM},
		{"ixx", c.Inertia[0]},
		{"iyy", c.Inertia[1]},
		{"izz", c.Inertia[2]},
		{"arm", c.ArmLength},
		{"gravity", c.Gravity},
		{"speed_scale", c.SpeedScale},
	}
	for _, ch := range checks {
		if !(ch.v > 0) || math.IsInf(ch.v, 0) {
			return bad(ch.name, ch.v)
		}
	}
	if c.MinCommand >= c.MaxCommand {
		return &ConfigurationError{
			Airframe: string(c.Airframe),
			Field:    "command bounds",
			Reason:   fmt.Sprintf("min %g must be below max %g", c.MinCommand, c.MaxCommand),
		}
	}
	if _, ok := builtin[c.Airframe]; !ok {
		return &ConfigurationError{Airframe: string(c.Airframe), Err: ErrUnknownAirframe}
	}
	return nil
}

// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"fieldsweep/internal/control"
	"fieldsweep/internal/mission"
	"fieldsweep/internal/planner"
)

// Boundaries is the rectangle of a farm's field in metres.
type Boundaries struct {
	MinX float64 `yaml:"min_x" json:"min_x"`
	MinY float64 `yaml:"min_y" json:"min_y"`
	MaxX float64 `yaml:"max_x" json:"max_x"`
	MaxY float64 `yaml:"max_y" json:"max_y"`
}

// Farm is a named field that missions can be deployed over.
type Farm struct {
	ID         int        `yaml:"id" json:"id"`
	Name       string     `yaml:"name" json:"name"`
	Location   string     `yaml:"location" json:"location"`
	Boundaries Boundaries `yaml:"boundaries" json:"boundaries"`
}

// Field converts the farm boundaries into planner bounds.
func (f Farm) Field() planner.Field {
	b := f.Boundaries
	return planner.Field{Min: mgl64.Vec2{b.MinX, b.MinY}, Max: mgl64.Vec2{b.MaxX, b.MaxY}}
}

// Ref is the farm reference carried by missions and telemetry.
func (f Farm) Ref() string { return fmt.Sprintf("%d:%s", f.ID, f.Name) }

// MissionConfig holds the path-following constants.
type MissionConfig struct {
	HoverAltitude     float64    `yaml:"hover_altitude"`
	SweepStep         float64    `yaml:"sweep_step"`
	CruiseSpeed       float64    `yaml:"cruise_speed"`
	DwellTime         float64    `yaml:"dwell_time"`
	ArrivalTolerance  float64    `yaml:"arrival_tolerance"`
	TrackingTolerance float64    `yaml:"tracking_tolerance"`
	LandingAltitude   float64    `yaml:"landing_altitude"`
	Home              [2]float64 `yaml:"home"`
	Spawn             [3]float64 `yaml:"spawn"`
}

// TimingConfig sets physics and control rates.
type TimingConfig struct {
	SimHz    float64 `yaml:"sim_hz"`
	CtrlHz   float64 `yaml:"ctrl_hz"`
	Realtime bool    `yaml:"realtime"`
}

// FieldConfig controls the simulated diseased-crop field.
type FieldConfig struct {
	DiseasedCrops   int     `yaml:"diseased_crops"`
	DetectionRadius float64 `yaml:"detection_radius"`
	Seed            int64   `yaml:"seed"`
}

// TelemetryConfig controls telemetry decimation.
type TelemetryConfig struct {
	Every int `yaml:"every"`
}

// AdminConfig configures the HTTP command surface.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration.
type Config struct {
	Airframe  string            `yaml:"airframe"`
	Physical  *control.Physical `yaml:"physical"`
	Mission   MissionConfig     `yaml:"mission"`
	Timing    TimingConfig      `yaml:"timing"`
	Farms     []Farm            `yaml:"farms"`
	Field     FieldConfig       `yaml:"field"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`
	Admin     AdminConfig       `yaml:"admin"`
}

// Load loads YAML config and validates it against a CUE schema. An empty
// schema path skips the CUE check.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	log.Printf("[Config] Loaded %s: airframe=%s farms=%d", configPath, cfg.Airframe, len(cfg.Farms))
	return cfg, nil
}

// Parse decodes YAML without schema validation and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Farms: []Farm{{
			ID:         1,
			Name:       "North Field Farm",
			Location:   "demo",
			Boundaries: Boundaries{MinX: -2, MinY: -2, MaxX: 2, MaxY: 2},
		}},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset values with the standard sweep constants.
func (c *Config) ApplyDefaults() {
	def := mission.DefaultSettings()
	setDefault := func(v *float64, d float64) {
		if *v == 0 {
			*v = d
		}
	}
	if c.Airframe == "" {
		c.Airframe = string(control.AirframeCF2P)
	}
	m := &c.Mission
	setDefault(&m.HoverAltitude, def.Plan.Hover)
	setDefault(&m.SweepStep, def.Plan.Step)
	setDefault(&m.CruiseSpeed, def.CruiseSpeed)
	setDefault(&m.DwellTime, def.Dwell)
	setDefault(&m.ArrivalTolerance, def.ArrivalTolerance)
	setDefault(&m.TrackingTolerance, def.TrackingTolerance)
	setDefault(&m.LandingAltitude, def.Plan.LandingAltitude)
	if m.Spawn == [3]float64{} {
		m.Spawn = [3]float64{m.Home[0], m.Home[1], 0.1}
	}
	setDefault(&c.Timing.SimHz, 240)
	setDefault(&c.Timing.CtrlHz, 48)
	if c.Field.DiseasedCrops == 0 {
		c.Field.DiseasedCrops = 10
	}
	setDefault(&c.Field.DetectionRadius, 0.5)
	if c.Field.Seed == 0 {
		c.Field.Seed = 1
	}
	if c.Telemetry.Every == 0 {
		c.Telemetry.Every = 12
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = ":5000"
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if _, err := control.ParseAirframe(c.Airframe); err != nil {
		return err
	}
	if !(c.Timing.CtrlHz > 0) || !(c.Timing.SimHz > 0) {
		return fmt.Errorf("sim_hz %g and ctrl_hz %g must be positive", c.Timing.SimHz, c.Timing.CtrlHz)
	}
	if c.Timing.CtrlHz > c.Timing.SimHz {
		return fmt.Errorf("ctrl_hz %g must not exceed sim_hz %g", c.Timing.CtrlHz, c.Timing.SimHz)
	}
	// Each control tick spans a whole number of physics steps.
	if r := c.Timing.SimHz / c.Timing.CtrlHz; math.Abs(r-math.Round(r)) > 1e-9 {
		return fmt.Errorf("sim_hz %g must be an integer multiple of ctrl_hz %g", c.Timing.SimHz, c.Timing.CtrlHz)
	}
	seen := map[int]bool{}
	for _, f := range c.Farms {
		if seen[f.ID] {
			return fmt.Errorf("duplicate farm id %d", f.ID)
		}
		seen[f.ID] = true
		if err := f.Field().Validate(); err != nil {
			return fmt.Errorf("farm %d: %w", f.ID, err)
		}
	}
	return nil
}

// MissionSettings converts the mission section to mission.Settings.
func (c *Config) MissionSettings() mission.Settings {
	m := c.Mission
	return mission.Settings{
		Plan: planner.Params{
			Home:            mgl64.Vec2{m.Home[0], m.Home[1]},
			Hover:           m.HoverAltitude,
			Step:            m.SweepStep,
			LandingAltitude: m.LandingAltitude,
		},
		CruiseSpeed:       m.CruiseSpeed,
		Dwell:             m.DwellTime,
		ArrivalTolerance:  m.ArrivalTolerance,
		TrackingTolerance: m.TrackingTolerance,
	}
}

// MissionTiming converts the timing section to mission.Timing. Each control
// tick holds its command for SimHz/CtrlHz physics steps; Validate rejects
// ratios that are not whole.
func (c *Config) MissionTiming() mission.Timing {
	sub := int(math.Round(c.Timing.SimHz / c.Timing.CtrlHz))
	if sub < 1 {
		sub = 1
	}
	return mission.Timing{CtrlHz: c.Timing.CtrlHz, SubSteps: sub, Realtime: c.Timing.Realtime}
}

// SpawnPoint returns the vehicle start position.
func (c *Config) SpawnPoint() mgl64.Vec3 {
	s := c.Mission.Spawn
	return mgl64.Vec3{s[0], s[1], s[2]}
}

// FarmByID looks up a configured farm.
func (c *Config) FarmByID(id int) (Farm, bool) {
	for _, f := range c.Farms {
		if f.ID == id {
			return f, true
		}
	}
	return Farm{}, false
}

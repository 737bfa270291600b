package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldsweep/internal/control"
)

const schemaPath = "../../schemas/fieldsweep.cue"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldsweep.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
airframe: cf2x
physical:
  mass: 0.03
mission:
  sweep_step: 0.5
farms:
  - id: 7
    name: test-farm
    boundaries: {min_x: -1, min_y: -1, max_x: 1, max_y: 1}
`)
	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(cfg.Farms) != 1 || cfg.Farms[0].Name != "test-farm" {
		t.Errorf("Unexpected farm data: %+v", cfg.Farms)
	}
	if cfg.Physical == nil || cfg.Physical.Mass != 0.03 {
		t.Errorf("physical override not decoded: %+v", cfg.Physical)
	}
	if cfg.Mission.SweepStep != 0.5 || cfg.Mission.HoverAltitude != 1.0 {
		t.Errorf("mission defaults not applied: %+v", cfg.Mission)
	}
	if got := cfg.MissionTiming(); got.SubSteps != 5 || got.CtrlHz != 48 {
		t.Errorf("timing = %+v, want 5 sub-steps at 48 Hz", got)
	}
	farm, ok := cfg.FarmByID(7)
	if !ok || farm.Field().Max[0] != 1 {
		t.Errorf("FarmByID(7) = %+v, %v", farm, ok)
	}
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load("../../config/fieldsweep.yaml", schemaPath)
	if err != nil {
		t.Fatalf("shipped config invalid: %v", err)
	}
	if cfg.Airframe != "cf2p" || len(cfg.Farms) == 0 {
		t.Fatalf("unexpected shipped config: %+v", cfg)
	}
}

func TestLoadConfig_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown airframe": `
airframe: hexa
farms: []
`,
		"inverted farm": `
airframe: cf2p
farms:
  - id: 1
    name: bad
    boundaries: {min_x: 2, min_y: -1, max_x: -2, max_y: 1}
`,
		"negative step": `
airframe: cf2p
mission:
  sweep_step: -1
farms: []
`,
		"unknown key": `
airframe: cf2p
farms: []
weather: stormy
`,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body), schemaPath); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestParseRejectsDuplicateFarm(t *testing.T) {
	_, err := Parse([]byte(`
airframe: cf2p
farms:
  - {id: 1, name: a, boundaries: {min_x: 0, min_y: 0, max_x: 1, max_y: 1}}
  - {id: 1, name: b, boundaries: {min_x: 0, min_y: 0, max_x: 1, max_y: 1}}
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate farm id") {
		t.Fatalf("expected duplicate farm error, got %v", err)
	}
}

func TestParseRejectsUnknownAirframe(t *testing.T) {
	_, err := Parse([]byte("airframe: tri\n"))
	if !errors.Is(err, control.ErrUnknownAirframe) {
		t.Fatalf("expected ErrUnknownAirframe, got %v", err)
	}
}

func TestParseRejectsNonIntegerSubSteps(t *testing.T) {
	cases := []struct {
		timing string
		ok     bool
		steps  int
	}{
		{"{sim_hz: 240, ctrl_hz: 48}", true, 5},
		{"{sim_hz: 240, ctrl_hz: 60}", true, 4},
		{"{sim_hz: 240, ctrl_hz: 240}", true, 1},
		{"{sim_hz: 240, ctrl_hz: 50}", false, 0},
		{"{sim_hz: 100, ctrl_hz: 30}", false, 0},
	}
	for _, tc := range cases {
		cfg, err := Parse([]byte("airframe: cf2p\ntiming: " + tc.timing + "\n"))
		if !tc.ok {
			if err == nil || !strings.Contains(err.Error(), "integer multiple") {
				t.Fatalf("%s: expected integer ratio error, got %v", tc.timing, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.timing, err)
		}
		if got := cfg.MissionTiming().SubSteps; got != tc.steps {
			t.Fatalf("%s: sub-steps = %d, want %d", tc.timing, got, tc.steps)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	s := cfg.MissionSettings()
	if s.CruiseSpeed != 0.5 || s.Dwell != 1.5 || s.Plan.Step != 0.75 {
		t.Fatalf("default mission settings = %+v", s)
	}
	if sp := cfg.SpawnPoint(); sp[2] != 0.1 {
		t.Fatalf("spawn = %v", sp)
	}
}

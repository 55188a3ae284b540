package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Integrator != "euler_implicit_linearized" {
		t.Errorf("expected linearized integrator, got %s", cfg.Integrator)
	}
	if cfg.Dt != 0.01 || cfg.Solver.MaxIterations != 200 || cfg.Solver.Tolerance != 1e-10 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Cable.Elements+1 != 16 {
		t.Errorf("expected 16 nodes, got %d", cfg.Cable.Elements+1)
	}
	if !cfg.WarmStart {
		t.Error("warm start should default on")
	}
	if cfg.Projection.MaxPasses != DefaultProjectionPasses || cfg.Projection.Tolerance != DefaultProjectionTolerance {
		t.Errorf("projection defaults = %+v", cfg.Projection)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.Duration() != 5 {
		t.Errorf("duration = %v", cfg.Duration())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"dt", func(c *Config) { c.Dt = 0 }, "dt"},
		{"steps", func(c *Config) { c.Steps = -1 }, "steps"},
		{"integrator", func(c *Config) { c.Integrator = "rk4" }, "integrator"},
		{"solver", func(c *Config) { c.Solver.Type = "cg" }, "solver"},
		{"tolerance", func(c *Config) { c.Solver.Tolerance = 0 }, "tolerance"},
		{"projection passes", func(c *Config) { c.Projection.MaxPasses = -1 }, "max_passes"},
		{"projection tolerance", func(c *Config) { c.Projection.Tolerance = 0 }, "projection tolerance"},
		{"gravity", func(c *Config) { c.Gravity = []float64{0, -9.81} }, "gravity"},
		{"length", func(c *Config) { c.Cable.Length = 0 }, "length"},
		{"elements", func(c *Config) { c.Cable.Elements = 0 }, "element"},
		{"support", func(c *Config) { c.Cable.Support = "weld" }, "support"},
		{"direction", func(c *Config) { c.Cable.Direction = []float64{0, 0, 0} }, "direction"},
		{"payload", func(c *Config) { c.Payload = &PayloadConfig{Radius: 0.02, Height: 0.1} }, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	cfg := GetPreset("cable_payload")
	cfg.Steps = 42
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Steps != 42 || got.Scene != "cable_payload" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.Payload == nil || got.Payload.Radius != 0.02 {
		t.Errorf("payload not restored: %+v", got.Payload)
	}
}

func TestLoadSave_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	cfg := GetPreset("steel_cantilever")
	cfg.Cable.Elements = 6
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "young_modulus") {
		t.Errorf("expected toml keys, got:\n%s", data)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cable.Elements != 6 || got.Cable.YoungModulus != 2e11 || got.Payload != nil {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestLoad_PartialTOMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	data := "steps = 10\n\n[cable]\nelements = 4\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Steps != 10 || cfg.Cable.Elements != 4 || cfg.Cable.Length != DefaultLength {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	data := "steps: 10\ncable:\n  elements: 4\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Steps != 10 || cfg.Cable.Elements != 4 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Cable.Length != DefaultLength || cfg.Dt != DefaultDt {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte("dt: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("steel_cantilever")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Cable.YoungModulus != 2e11 {
		t.Errorf("expected steel modulus, got %g", cfg.Cable.YoungModulus)
	}

	cfg.Cable.Start[1] = 99
	if again := GetPreset("steel_cantilever"); again.Cable.Start[1] == 99 {
		t.Error("preset shared state with caller")
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsValid(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("listed %d of %d presets", len(names), len(Presets))
	}
	for _, name := range names {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

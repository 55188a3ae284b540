package config

import "sort"

// Presets are named scenes. GetPreset hands out copies, so callers may
// modify the result.
var Presets = map[string]*Config{
	"fea_cable": DefaultConfig(),
	"cable_payload": func() *Config {
		c := DefaultConfig()
		c.Scene = "cable_payload"
		c.Cable.Support = SupportPin
		c.Payload = &PayloadConfig{Radius: 0.02, Height: 0.1, Density: 1000}
		return c
	}(),
	"pinned_cable": func() *Config {
		c := DefaultConfig()
		c.Scene = "pinned_cable"
		c.Cable.Support = SupportPin
		c.Solver.Type = "direct"
		c.Dt = 0.005
		c.Steps = 400
		return c
	}(),
	"steel_cantilever": func() *Config {
		c := DefaultConfig()
		c.Scene = "steel_cantilever"
		c.Cable.YoungModulus = 2e11
		c.Cable.Density = 7800
		c.Cable.Damping = 0.001
		c.Solver.Type = "direct"
		c.Steps = 500
		return c
	}(),
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

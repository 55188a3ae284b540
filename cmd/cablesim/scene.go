package main

import (
	"fmt"

	"github.com/san-kum/cablefea/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// sceneFlags adds the flags that override a scene config. They are bound
// to viper when the command runs, so the environment can set them too.
func sceneFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "scene config file (yaml or toml)")
	f.StringVar(&preset, "preset", "fea_cable", "preset scene")
	f.Float64("dt", config.DefaultDt, "timestep in seconds")
	f.Int("steps", config.DefaultSteps, "number of steps")
	f.Int("record-every", 10, "record a frame every n steps (0 keeps first and last)")
	f.String("integrator", "euler_implicit_linearized", "euler_implicit_linearized or euler_implicit")
	f.String("solver", "minres", "minres or direct")
	f.Int("max-iter", config.DefaultMaxIterations, "solver iteration limit")
	f.Float64("tol", config.DefaultTolerance, "solver tolerance, relative to the right hand side")
	f.Int("projection-passes", config.DefaultProjectionPasses, "position projection passes per step (0 disables)")
	f.Bool("warm-start", true, "start each solve from the previous solution")
	f.Int("workers", 0, "assembly goroutines (0 uses GOMAXPROCS)")
	f.Int("elements", config.DefaultElements, "cable elements")
	f.Float64("length", config.DefaultLength, "cable length in meters")
	f.Float64("young", config.DefaultYoungModulus, "Young's modulus in Pa")
	f.Float64("payload-mass", 0, "attach a payload of this mass in kg")
}

// resolveConfig layers preset, config file, environment and flags, in
// that order of increasing precedence.
func resolveConfig() (*config.Config, error) {
	var cfg *config.Config
	if path := viper.GetString("config"); path != "" {
		c, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	} else {
		name := viper.GetString("preset")
		cfg = config.GetPreset(name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
	}

	if viper.IsSet("dt") {
		cfg.Dt = viper.GetFloat64("dt")
	}
	if viper.IsSet("steps") {
		cfg.Steps = viper.GetInt("steps")
	}
	if viper.IsSet("record-every") {
		cfg.RecordEvery = viper.GetInt("record-every")
	}
	if viper.IsSet("integrator") {
		cfg.Integrator = viper.GetString("integrator")
	}
	if viper.IsSet("solver") {
		cfg.Solver.Type = viper.GetString("solver")
	}
	if viper.IsSet("max-iter") {
		cfg.Solver.MaxIterations = viper.GetInt("max-iter")
	}
	if viper.IsSet("tol") {
		cfg.Solver.Tolerance = viper.GetFloat64("tol")
	}
	if viper.IsSet("projection-passes") {
		cfg.Projection.MaxPasses = viper.GetInt("projection-passes")
	}
	if viper.IsSet("warm-start") {
		cfg.WarmStart = viper.GetBool("warm-start")
	}
	if viper.IsSet("workers") {
		cfg.Workers = viper.GetInt("workers")
	}
	if viper.IsSet("elements") {
		cfg.Cable.Elements = viper.GetInt("elements")
	}
	if viper.IsSet("length") {
		cfg.Cable.Length = viper.GetFloat64("length")
	}
	if viper.IsSet("young") {
		cfg.Cable.YoungModulus = viper.GetFloat64("young")
	}
	if viper.IsSet("payload-mass") {
		if cfg.Payload == nil {
			cfg.Payload = &config.PayloadConfig{Radius: 0.01, Height: 0.1}
		}
		cfg.Payload.Mass = viper.GetFloat64("payload-mass")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

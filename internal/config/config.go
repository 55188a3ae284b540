// Package config holds the YAML scene and run configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt            = 0.01
	DefaultSteps         = 500
	DefaultLength        = 1.2
	DefaultElements      = 15
	DefaultDiameter      = 0.01
	DefaultYoungModulus  = 1e7
	DefaultDensity       = 1000.0
	DefaultDamping       = 0.01
	DefaultMaxIterations = 200
	DefaultTolerance     = 1e-10

	DefaultProjectionPasses    = 3
	DefaultProjectionTolerance = 1e-10
)

// Support kinds for the first cable node.
const (
	SupportFixed = "fixed"
	SupportPin   = "pin"
	SupportFree  = "free"
)

var (
	integrators = []string{"euler_implicit_linearized", "euler_implicit"}
	solvers     = []string{"minres", "direct"}
	supports    = []string{SupportFixed, SupportPin, SupportFree}
)

type Config struct {
	Scene       string           `yaml:"scene" toml:"scene"`
	Integrator  string           `yaml:"integrator" toml:"integrator"`
	Solver      SolverConfig     `yaml:"solver" toml:"solver"`
	Projection  ProjectionConfig `yaml:"projection" toml:"projection"`
	Gravity     []float64        `yaml:"gravity" toml:"gravity"`
	Dt          float64          `yaml:"dt" toml:"dt"`
	Steps       int              `yaml:"steps" toml:"steps"`
	RecordEvery int              `yaml:"record_every" toml:"record_every"`
	WarmStart   bool             `yaml:"warm_start" toml:"warm_start"`
	Workers     int              `yaml:"workers" toml:"workers"`
	Cable       CableConfig      `yaml:"cable" toml:"cable"`
	Payload     *PayloadConfig   `yaml:"payload,omitempty" toml:"payload,omitempty"`
}

type SolverConfig struct {
	Type          string `yaml:"type" toml:"type"`
	MaxIterations int    `yaml:"max_iterations" toml:"max_iterations"`
	// Tolerance is relative: MINRES stops once the preconditioned residual
	// norm is below Tolerance times that of the right hand side. The
	// direct solver ignores it.
	Tolerance float64 `yaml:"tolerance" toml:"tolerance"`
}

// ProjectionConfig sets the position correction run after each step.
// MaxPasses of 0 turns it off. Tolerance is the absolute constraint
// violation in meters at which passes stop.
type ProjectionConfig struct {
	MaxPasses int     `yaml:"max_passes" toml:"max_passes"`
	Tolerance float64 `yaml:"tolerance" toml:"tolerance"`
}

// CableConfig describes a straight cable laid from Start along Direction.
type CableConfig struct {
	Length       float64   `yaml:"length" toml:"length"`
	Elements     int       `yaml:"elements" toml:"elements"`
	Diameter     float64   `yaml:"diameter" toml:"diameter"`
	YoungModulus float64   `yaml:"young_modulus" toml:"young_modulus"`
	Density      float64   `yaml:"density" toml:"density"`
	Damping      float64   `yaml:"damping" toml:"damping"`
	Start        []float64 `yaml:"start" toml:"start"`
	Direction    []float64 `yaml:"direction" toml:"direction"`
	Support      string    `yaml:"support" toml:"support"`
}

// PayloadConfig is a cylinder hung below the free cable end. A positive
// Mass overrides the mass implied by Density.
type PayloadConfig struct {
	Radius  float64 `yaml:"radius" toml:"radius"`
	Height  float64 `yaml:"height" toml:"height"`
	Density float64 `yaml:"density" toml:"density"`
	Mass    float64 `yaml:"mass,omitempty" toml:"mass,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene:      "fea_cable",
		Integrator: "euler_implicit_linearized",
		Solver: SolverConfig{
			Type:          "minres",
			MaxIterations: DefaultMaxIterations,
			Tolerance:     DefaultTolerance,
		},
		Projection: ProjectionConfig{
			MaxPasses: DefaultProjectionPasses,
			Tolerance: DefaultProjectionTolerance,
		},
		Gravity:     []float64{0, -9.81, 0},
		Dt:          DefaultDt,
		Steps:       DefaultSteps,
		RecordEvery: 10,
		WarmStart:   true,
		Cable: CableConfig{
			Length:       DefaultLength,
			Elements:     DefaultElements,
			Diameter:     DefaultDiameter,
			YoungModulus: DefaultYoungModulus,
			Density:      DefaultDensity,
			Damping:      DefaultDamping,
			Start:        []float64{0, 0.5, 0},
			Direction:    []float64{1, 0, 0},
			Support:      SupportFixed,
		},
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a scene file over the defaults. Files ending in .toml are
// parsed as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	marshal := yaml.Marshal
	if isTOML(path) {
		marshal = toml.Marshal
	}
	data, err := marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Duration is the simulated time covered by Steps.
func (c *Config) Duration() float64 {
	return c.Dt * float64(c.Steps)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Gravity = append([]float64(nil), c.Gravity...)
	out.Cable.Start = append([]float64(nil), c.Cable.Start...)
	out.Cable.Direction = append([]float64(nil), c.Cable.Direction...)
	if c.Payload != nil {
		p := *c.Payload
		out.Payload = &p
	}
	return &out
}

func (c *Config) Validate() error {
	switch {
	case !positive(c.Dt):
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	case c.Steps <= 0:
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	case c.RecordEvery < 0:
		return fmt.Errorf("record_every must not be negative, got %d", c.RecordEvery)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	case !oneOf(c.Integrator, integrators):
		return fmt.Errorf("unknown integrator %q", c.Integrator)
	case !oneOf(c.Solver.Type, solvers):
		return fmt.Errorf("unknown solver %q", c.Solver.Type)
	case c.Solver.MaxIterations <= 0:
		return fmt.Errorf("solver max_iterations must be positive, got %d", c.Solver.MaxIterations)
	case !positive(c.Solver.Tolerance):
		return fmt.Errorf("solver tolerance must be positive, got %g", c.Solver.Tolerance)
	case c.Projection.MaxPasses < 0:
		return fmt.Errorf("projection max_passes must not be negative, got %d", c.Projection.MaxPasses)
	case c.Projection.MaxPasses > 0 && !positive(c.Projection.Tolerance):
		return fmt.Errorf("projection tolerance must be positive, got %g", c.Projection.Tolerance)
	case !vec3(c.Gravity):
		return fmt.Errorf("gravity must have 3 finite components, got %v", c.Gravity)
	}
	if err := c.Cable.validate(); err != nil {
		return err
	}
	if p := c.Payload; p != nil {
		if !positive(p.Radius) || !positive(p.Height) {
			return fmt.Errorf("payload radius and height must be positive")
		}
		if !positive(p.Density) && !positive(p.Mass) {
			return fmt.Errorf("payload needs a positive density or mass")
		}
		if p.Mass < 0 {
			return fmt.Errorf("payload mass must not be negative, got %g", p.Mass)
		}
	}
	return nil
}

func (c *CableConfig) validate() error {
	switch {
	case !positive(c.Length):
		return fmt.Errorf("cable length must be positive, got %g", c.Length)
	case c.Elements < 1:
		return fmt.Errorf("cable needs at least one element, got %d", c.Elements)
	case !positive(c.Diameter):
		return fmt.Errorf("cable diameter must be positive, got %g", c.Diameter)
	case !positive(c.YoungModulus):
		return fmt.Errorf("young_modulus must be positive, got %g", c.YoungModulus)
	case !positive(c.Density):
		return fmt.Errorf("cable density must be positive, got %g", c.Density)
	case c.Damping < 0:
		return fmt.Errorf("cable damping must not be negative, got %g", c.Damping)
	case !vec3(c.Start):
		return fmt.Errorf("cable start must have 3 finite components, got %v", c.Start)
	case !vec3(c.Direction):
		return fmt.Errorf("cable direction must have 3 finite components, got %v", c.Direction)
	case !oneOf(c.Support, supports):
		return fmt.Errorf("unknown support %q", c.Support)
	}
	d := c.Direction
	if d[0]*d[0]+d[1]*d[1]+d[2]*d[2] == 0 {
		return fmt.Errorf("cable direction must not be zero")
	}
	return nil
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}

func vec3(v []float64) bool {
	if len(v) != 3 {
		return false
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Integrators lists the accepted integrator names.
func Integrators() []string { return append([]string(nil), integrators...) }

// Solvers lists the accepted solver names.
func Solvers() []string { return append([]string(nil), solvers...) }

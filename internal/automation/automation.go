// Package automation runs scripted batches of scenes and Monte Carlo
// studies over material and payload uncertainty.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/experiment"
	"github.com/san-kum/cablefea/internal/sim"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Scenario is a named list of runs loaded from YAML.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Runs        []RunSpec `yaml:"runs"`
}

// RunSpec starts from a preset and applies overrides written in the scene
// config schema, e.g. overrides of {payload: {mass: 0.3}} on cable_payload.
type RunSpec struct {
	Name      string    `yaml:"name"`
	Preset    string    `yaml:"preset"`
	Overrides yaml.Node `yaml:"overrides"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Runs) == 0 {
		return nil, fmt.Errorf("scenario %q has no runs", scenario.Name)
	}
	return &scenario, nil
}

// Config resolves the scene config of the run.
func (r RunSpec) Config() (*config.Config, error) {
	name := r.Preset
	if name == "" {
		name = "fea_cable"
	}
	cfg := config.GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	if !r.Overrides.IsZero() {
		if err := r.Overrides.Decode(cfg); err != nil {
			return nil, fmt.Errorf("run %s overrides: %w", r.Name, err)
		}
	}
	if r.Name != "" {
		cfg.Scene = r.Name
	}
	return cfg, cfg.Validate()
}

// Outcome is the result of one scenario run. Err holds a step failure;
// Result then holds the partial run.
type Outcome struct {
	Name   string
	Config *config.Config
	Result *sim.Result
	Err    error
}

// RunScenario executes the runs in order. A run that fails while stepping
// is recorded and the batch continues; invalid configs and cancellation
// stop the batch.
func RunScenario(ctx context.Context, scenario *Scenario, log *slog.Logger) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(scenario.Runs))

	for i, run := range scenario.Runs {
		cfg, err := run.Config()
		if err != nil {
			return outcomes, fmt.Errorf("run %d: %w", i+1, err)
		}

		exp := experiment.New(cfg, log)
		if err := exp.Setup(nil); err != nil {
			return outcomes, fmt.Errorf("run %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return outcomes, err
		}
		if result == nil {
			return outcomes, fmt.Errorf("run %d: %w", i+1, err)
		}
		outcomes = append(outcomes, Outcome{Name: cfg.Scene, Config: cfg, Result: result, Err: err})
	}

	return outcomes, nil
}

// MonteCarloConfig perturbs Young's modulus and the payload mass of Base
// uniformly by the given relative spreads.
type MonteCarloConfig struct {
	Base          *config.Config
	Trials        int
	Seed          int64
	ModulusSpread float64
	MassSpread    float64
}

// MonteCarloResult holds per-trial tip sag and its statistics.
type MonteCarloResult struct {
	Moduli []float64
	TipSag []float64
	Mean   float64
	StdDev float64
}

// RunMonteCarlo runs all trials concurrently. The sampled parameters
// depend only on Seed.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, log *slog.Logger) (*MonteCarloResult, error) {
	if mc.Trials < 2 {
		return nil, fmt.Errorf("monte carlo needs at least 2 trials, got %d", mc.Trials)
	}
	if mc.ModulusSpread < 0 || mc.ModulusSpread >= 1 || mc.MassSpread < 0 || mc.MassSpread >= 1 {
		return nil, fmt.Errorf("spreads must be in [0, 1)")
	}

	rng := rand.New(rand.NewSource(mc.Seed))
	perturb := func(v, spread float64) float64 {
		return v * (1 + spread*(2*rng.Float64()-1))
	}

	cfgs := make([]*config.Config, mc.Trials)
	moduli := make([]float64, mc.Trials)
	for i := range cfgs {
		c := mc.Base.Clone()
		c.Cable.YoungModulus = perturb(c.Cable.YoungModulus, mc.ModulusSpread)
		if c.Payload != nil && c.Payload.Mass > 0 {
			c.Payload.Mass = perturb(c.Payload.Mass, mc.MassSpread)
		}
		cfgs[i] = c
		moduli[i] = c.Cable.YoungModulus
	}

	reg := experiment.NewRegistry()
	ens := sim.NewEnsemble(func(i int) (*dynamo.System, error) {
		scene, err := experiment.Build(cfgs[i], reg, log)
		if err != nil {
			return nil, err
		}
		return scene.System, nil
	}, mc.Trials).WithMetrics(func() []sim.Metric {
		return reg.DefaultMetrics(mc.Base)
	})

	results, err := ens.Run(ctx, sim.Config{Dt: mc.Base.Dt, Steps: mc.Base.Steps})
	if err != nil {
		return nil, err
	}

	out := &MonteCarloResult{Moduli: moduli, TipSag: make([]float64, len(results))}
	for i, r := range results {
		out.TipSag[i] = r.Metrics["tip_sag"]
	}
	out.Mean, out.StdDev = stat.MeanStdDev(out.TipSag, nil)
	return out, nil
}

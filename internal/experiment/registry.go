package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/integrators"
	"github.com/san-kum/cablefea/internal/metrics"
	"github.com/san-kum/cablefea/internal/sim"
	"github.com/san-kum/cablefea/internal/solver"
)

type Registry struct {
	integrators map[string]func() dynamo.Timestepper
	solvers     map[string]func(config.SolverConfig) solver.Solver
	analyses    map[string]func() dynamo.Analysis
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Timestepper),
		solvers:     make(map[string]func(config.SolverConfig) solver.Solver),
		analyses:    make(map[string]func() dynamo.Analysis),
	}

	r.integrators["euler_implicit_linearized"] = func() dynamo.Timestepper { return integrators.NewEulerImplicitLinearized() }
	r.integrators["euler_implicit"] = func() dynamo.Timestepper { return integrators.NewEulerImplicit() }

	r.solvers["minres"] = func(c config.SolverConfig) solver.Solver {
		return solver.NewMINRES(c.MaxIterations, c.Tolerance)
	}
	r.solvers["direct"] = func(config.SolverConfig) solver.Solver { return solver.Direct{} }

	r.analyses["static_linear"] = func() dynamo.Analysis { return integrators.NewStaticLinear() }
	r.analyses["static_nonlinear"] = func() dynamo.Analysis { return integrators.NewStaticNonlinear() }

	return r
}

func (r *Registry) GetIntegrator(name string) (dynamo.Timestepper, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetSolver(cfg config.SolverConfig) (solver.Solver, error) {
	fn, ok := r.solvers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s", cfg.Type)
	}
	return fn(cfg), nil
}

func (r *Registry) GetAnalysis(name string) (dynamo.Analysis, error) {
	fn, ok := r.analyses[name]
	if !ok {
		return nil, fmt.Errorf("unknown analysis: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListIntegrators() []string { return keys(r.integrators) }
func (r *Registry) ListSolvers() []string     { return keys(r.solvers) }
func (r *Registry) ListAnalyses() []string    { return keys(r.analyses) }

func keys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns a fresh metric set for runs of cfg.
func (r *Registry) DefaultMetrics(cfg *config.Config) []sim.Metric {
	tip, ref := TipOf(cfg)
	return []sim.Metric{
		metrics.NewTipSag(tip, ref.Y()),
		metrics.NewTipFrequency(tip, cfg.Dt),
		metrics.NewMaxViolation(),
		metrics.NewKineticEnergy(),
		metrics.NewSolverEffort(),
		metrics.NewStability(10 * cfg.Cable.Length),
	}
}

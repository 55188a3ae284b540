package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/solver"
)

// StaticLinear performs one linearized equilibrium solve
//
//	K Δq + Cqᵀλ = F,  Cq Δq = −C
//
// about the current configuration. Velocities are zeroed first. Free
// bodies have no stiffness and make the system singular.
type StaticLinear struct{}

func NewStaticLinear() *StaticLinear { return &StaticLinear{} }

func (StaticLinear) Name() string { return "static_linear" }

func (StaticLinear) Run(s *dynamo.System) error {
	_, err := staticIteration(s)
	return err
}

func staticIteration(s *dynamo.System) (float64, error) {
	zero := make([]float64, s.DOFs())
	s.SetVelocities(zero)
	s.SetAccelerations(zero)

	a := s.Assemble()
	g := make([]float64, len(a.C))
	for k := range g {
		g[k] = -a.C[k]
	}
	res, err := s.Solve(&solver.Problem{A: a.K, B: a.Cq, F: a.F, G: g})
	if err != nil {
		return 0, err
	}
	s.Displace(res.X)
	s.SetReactions(res.Lambda, -1)

	var step float64
	for _, d := range res.X {
		step = math.Max(step, math.Abs(d))
	}
	return step, nil
}

// StaticNonlinear finds the equilibrium F(q) = 0 by Newton iteration with
// the tangent stiffness. Gravity is applied in LoadSteps equal increments
// to help large deflections converge.
type StaticNonlinear struct {
	MaxIterations int
	Tolerance     float64
	LoadSteps     int
}

func NewStaticNonlinear() *StaticNonlinear {
	return &StaticNonlinear{MaxIterations: 30, Tolerance: 1e-9, LoadSteps: 1}
}

func (a *StaticNonlinear) Name() string { return "static_nonlinear" }

// Run returns dynamo.ErrSolverNonConvergence when an increment does not
// converge within MaxIterations.
func (a *StaticNonlinear) Run(s *dynamo.System) error {
	g := s.Gravity()
	defer s.SetGravity(g)

	loads := max(a.LoadSteps, 1)
	for k := 1; k <= loads; k++ {
		s.SetGravity(g.Mul(float64(k) / float64(loads)))

		converged := false
		for it := 0; it < a.MaxIterations; it++ {
			step, err := staticIteration(s)
			if err != nil {
				return err
			}
			if step <= a.Tolerance {
				converged = true
				break
			}
		}
		if !converged {
			return fmt.Errorf("%w: static increment %d/%d after %d iterations",
				dynamo.ErrSolverNonConvergence, k, loads, a.MaxIterations)
		}
	}
	return nil
}

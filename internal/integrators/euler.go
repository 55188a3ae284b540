// Package integrators provides the time stepping schemes and static
// analyses that drive a finalized dynamo.System.
//
// Every scheme forms the saddle-point system
//
//	[ H   Cqᵀ ] [ Δ ]   [ f ]
//	[ Cq  0   ] [ λ ] = [ g ]
//
// from an Assembly and hands it to the System's linear solver.
package integrators

import (
	"math"

	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/solver"
	"github.com/san-kum/cablefea/internal/sparse"
)

// EulerImplicitLinearized is the semi-implicit Euler scheme with a single
// linear solve per step:
//
//	(M + hR + h²K) Δv + Cqᵀλ = h(F − h K v)
//	Cq Δv = −C/h − Cq v
//
// followed by v ← v + Δv, q ← q + h v and the system's position
// projection, which removes the drift the velocity level constraint
// leaves behind.
type EulerImplicitLinearized struct{}

func NewEulerImplicitLinearized() *EulerImplicitLinearized {
	return &EulerImplicitLinearized{}
}

func (e *EulerImplicitLinearized) Name() string { return "euler_implicit_linearized" }

func (e *EulerImplicitLinearized) Step(s *dynamo.System, h float64) error {
	a := s.Assemble()

	f := make([]float64, len(a.V))
	for i := range f {
		f[i] = h * (a.F[i] - h*a.KV[i])
	}
	p := &solver.Problem{
		A: a.Combine(1, h, h*h),
		B: a.Cq,
		F: f,
		G: stabilized(a, a.V, h),
	}

	res, err := s.Solve(p)
	if err != nil {
		return err
	}

	v := a.V
	acc := make([]float64, len(v))
	for i, dv := range res.X {
		v[i] += dv
		acc[i] = dv / h
	}
	s.SetVelocities(v)
	s.SetAccelerations(acc)
	s.SetReactions(res.Lambda, -1/h)
	s.Advance(h)
	_, err = s.Project(a.M)
	return err
}

// stabilized returns −C/h − Cq v, the velocity level right hand side that
// also removes the current position drift over one step.
func stabilized(a *dynamo.Assembly, v []float64, h float64) []float64 {
	g := make([]float64, len(a.C))
	if len(g) == 0 {
		return g
	}
	a.Cq.MulVec(g, v)
	for k := range g {
		g[k] = -a.C[k]/h - g[k]
	}
	return g
}

// EulerImplicit is the fully implicit Euler scheme solved by Newton
// iteration on the end-of-step velocity v₁ with q₁ = q₀ + h v₁:
//
//	G(v₁) = M(v₁ − v₀) − h F(q₁, v₁) = 0
//
// Each iteration solves (M + hR + h²K) δ + Cqᵀλ = −G, Cq δ = −C(q₁)/h.
// Running out of iterations is not fatal; the last iterate is kept and a
// warning is logged.
type EulerImplicit struct {
	MaxIterations int
	RelTol        float64
	AbsTol        float64
}

func NewEulerImplicit() *EulerImplicit {
	return &EulerImplicit{MaxIterations: 6, RelTol: 1e-4, AbsTol: 1e-10}
}

func (e *EulerImplicit) Name() string { return "euler_implicit" }

func (e *EulerImplicit) Step(s *dynamo.System, h float64) error {
	start := s.Snapshot()
	v0 := s.Velocities()
	v1 := append([]float64(nil), v0...)

	var lambda []float64
	var mass *sparse.CSR
	converged := false
	iter := 0
	for iter < e.MaxIterations && !converged {
		iter++
		s.RestoreState(start)
		s.SetVelocities(v1)
		s.Advance(h)

		a := s.Assemble()
		mass = a.M
		mdv := make([]float64, len(v1))
		dv := make([]float64, len(v1))
		for i := range dv {
			dv[i] = v1[i] - v0[i]
		}
		a.M.MulVec(mdv, dv)
		f := make([]float64, len(v1))
		for i := range f {
			f[i] = h*a.F[i] - mdv[i]
		}
		g := make([]float64, len(a.C))
		for k := range g {
			g[k] = -a.C[k] / h
		}

		res, err := s.Solve(&solver.Problem{A: a.Combine(1, h, h*h), B: a.Cq, F: f, G: g})
		if err != nil {
			return err
		}
		lambda = res.Lambda

		var step, scale float64
		for i, d := range res.X {
			v1[i] += d
			step = math.Max(step, math.Abs(d))
			scale = math.Max(scale, math.Abs(v1[i]))
		}
		converged = step <= e.AbsTol+e.RelTol*scale
	}
	if !converged {
		s.Logger().Warn("newton iteration did not converge",
			"scheme", e.Name(), "iterations", iter, "time", s.Time())
	}

	s.RestoreState(start)
	acc := make([]float64, len(v1))
	for i := range acc {
		acc[i] = (v1[i] - v0[i]) / h
	}
	s.SetVelocities(v1)
	s.SetAccelerations(acc)
	s.SetReactions(lambda, -1/h)
	s.Advance(h)
	if mass == nil {
		mass = s.Assemble().M
	}
	_, err := s.Project(mass)
	return err
}

// Default returns the scheme used when none is configured.
func Default() dynamo.Timestepper {
	return NewEulerImplicitLinearized()
}

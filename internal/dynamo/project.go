package dynamo

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/cablefea/internal/solver"
	"github.com/san-kum/cablefea/internal/sparse"
	"gonum.org/v1/gonum/floats"
)

// Projection controls the position correction that follows a dynamic
// step. Each pass solves
//
//	[ M   Cqᵀ ] [ Δq ]   [  0 ]
//	[ Cq  0   ] [ μ  ] = [ −C ]
//
// and displaces the system by Δq, until the largest violation is at most
// Tolerance. Zero MaxPasses disables it.
type Projection struct {
	MaxPasses int
	Tolerance float64
}

// DefaultProjection runs up to three passes down to 1e-10 m.
func DefaultProjection() Projection {
	return Projection{MaxPasses: 3, Tolerance: 1e-10}
}

// Jacobian returns the constraint Jacobian and violation of the active
// constraints at the current state.
func (s *System) Jacobian() (*sparse.CSR, []float64) {
	cq := sparse.NewTriplet(s.rows, s.dofs, s.rows*9)
	c := make([]float64, s.rows)
	row := 0
	for _, con := range s.active {
		con.Load(row, cq, c)
		row += con.Rows()
	}
	return cq.CSR(), c
}

// Project moves the positions back onto the constraint manifold, using m
// as the metric. Velocities, reactions, the warm start and the solve
// statistics of the step are left alone. It returns the number of passes
// taken.
func (s *System) Project(m *sparse.CSR) (int, error) {
	p := s.cfg.Projection
	if p.MaxPasses <= 0 || s.rows == 0 {
		return 0, nil
	}

	zero := make([]float64, s.dofs)
	passes := 0
	for {
		cq, c := s.Jacobian()
		worst := floats.Norm(c, math.Inf(1))
		if worst <= p.Tolerance {
			return passes, nil
		}
		if passes == p.MaxPasses {
			s.log.Debug("projection stopped above tolerance",
				"step", s.steps, "passes", passes, "violation", worst)
			return passes, nil
		}

		g := make([]float64, len(c))
		floats.ScaleTo(g, -1, c)
		res, err := s.cfg.Solver.Solve(&solver.Problem{A: m, B: cq, F: zero, G: g}, nil)
		if err != nil {
			if errors.Is(err, solver.ErrSingular) {
				return passes, fmt.Errorf("%w: projection: %w", ErrSingularSystem, err)
			}
			return passes, err
		}
		s.Displace(res.X)
		passes++
	}
}

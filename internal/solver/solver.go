// Package solver solves the symmetric saddle-point systems
//
//	[ A  Bᵀ ] [ x ]   [ f ]
//	[ B  0  ] [ λ ] = [ g ]
//
// produced by the constrained mechanics. A is the N×N (possibly
// indefinite) system matrix and B the NC×N constraint Jacobian.
package solver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/cablefea/internal/sparse"
)

// ErrSingular indicates a structurally or numerically singular system.
var ErrSingular = errors.New("solver: singular system")

// Problem is a saddle-point system. B may be nil when there are no
// constraints.
type Problem struct {
	A *sparse.CSR
	B *sparse.CSR
	F []float64
	G []float64
}

// Size returns the primal and dual dimensions.
func (p *Problem) Size() (n, m int) {
	n = p.A.Rows
	if p.B != nil {
		m = p.B.Rows
	}
	return n, m
}

func (p *Problem) validate() error {
	n, m := p.Size()
	if p.A.Cols != n || len(p.F) != n || len(p.G) != m {
		return fmt.Errorf("solver: inconsistent problem dimensions n=%d m=%d", n, m)
	}
	if p.B != nil && p.B.Cols != n {
		return fmt.Errorf("solver: constraint Jacobian has %d columns, want %d", p.B.Cols, n)
	}
	return nil
}

// apply computes [y; z] = K [x; λ].
func (p *Problem) apply(dst, src []float64) {
	n, m := p.Size()
	p.A.MulVec(dst[:n], src[:n])
	if m == 0 {
		return
	}
	bt := make([]float64, n)
	p.B.MulVecTrans(bt, src[n:])
	for i := range bt {
		dst[i] += bt[i]
	}
	p.B.MulVec(dst[n:], src[:n])
}

func (p *Problem) rhs() []float64 {
	n, m := p.Size()
	b := make([]float64, n+m)
	copy(b, p.F)
	copy(b[n:], p.G)
	return b
}

// Result is the solution of a Problem.
type Result struct {
	X          []float64
	Lambda     []float64
	Iterations int
	Residual   float64
	Converged  bool
}

// LogValue implements slog.LogValuer.
func (r *Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("iterations", r.Iterations),
		slog.Float64("residual", r.Residual),
		slog.Bool("converged", r.Converged),
	)
}

// Solver solves saddle-point problems. warm, when non-nil, is an initial
// guess [x; λ] of length N+NC.
type Solver interface {
	Name() string
	Solve(p *Problem, warm []float64) (*Result, error)
}

func split(p *Problem, sol []float64) ([]float64, []float64) {
	n, _ := p.Size()
	return sol[:n:n], sol[n:]
}

package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Direct factors the dense KKT matrix with partial pivoting LU. It is
// meant for small systems and for cross-checking the iterative solver.
type Direct struct{}

func (Direct) Name() string { return "direct" }

// Solve implements Solver. The warm start is ignored.
func (Direct) Solve(p *Problem, _ []float64) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	n, m := p.Size()
	size := n + m
	if size == 0 {
		return &Result{Converged: true}, nil
	}

	k := mat.NewDense(size, size, nil)
	for r := 0; r < n; r++ {
		for q := p.A.RowPtr[r]; q < p.A.RowPtr[r+1]; q++ {
			k.Set(r, p.A.ColIdx[q], p.A.Val[q])
		}
	}
	for r := 0; r < m; r++ {
		for q := p.B.RowPtr[r]; q < p.B.RowPtr[r+1]; q++ {
			c := p.B.ColIdx[q]
			k.Set(n+r, c, p.B.Val[q])
			k.Set(c, n+r, p.B.Val[q])
		}
	}

	var lu mat.LU
	lu.Factorize(k)

	var sol mat.VecDense
	if err := lu.SolveVecTo(&sol, false, mat.NewVecDense(size, p.rhs())); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	x := make([]float64, size)
	for i := range x {
		x[i] = sol.AtVec(i)
	}
	res := &Result{Iterations: 1, Converged: true}
	res.X, res.Lambda = split(p, x)

	check := make([]float64, size)
	p.apply(check, x)
	rhs := p.rhs()
	for i := range check {
		check[i] -= rhs[i]
	}
	res.Residual = mat.Norm(mat.NewVecDense(size, check), 2)
	return res, nil
}

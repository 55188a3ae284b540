package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const eps = 0x1p-52

// MINRES is the Paige-Saunders minimum residual method with a Jacobi
// block preconditioner: diag(A) on the primal block and the diagonal of
// the approximate Schur complement B diag(A)⁻¹ Bᵀ on the dual block.
type MINRES struct {
	MaxIterations int
	// Tolerance on the preconditioned residual norm relative to the
	// preconditioned right hand side norm.
	Tolerance float64
}

// NewMINRES returns a solver with the given limits.
func NewMINRES(maxIter int, tol float64) *MINRES {
	return &MINRES{MaxIterations: maxIter, Tolerance: tol}
}

func (s *MINRES) Name() string { return "minres" }

func preconditioner(p *Problem) ([]float64, error) {
	n, m := p.Size()
	d := make([]float64, n+m)
	diag := p.A.Diagonal()
	for i, v := range diag {
		if v == 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: zero pivot in row %d", ErrSingular, i)
		}
		d[i] = math.Abs(v)
	}
	for k := 0; k < m; k++ {
		var s float64
		for q := p.B.RowPtr[k]; q < p.B.RowPtr[k+1]; q++ {
			b := p.B.Val[q]
			s += b * b / d[p.B.ColIdx[q]]
		}
		if s == 0 {
			return nil, fmt.Errorf("%w: empty constraint row %d", ErrSingular, k)
		}
		d[n+k] = s
	}
	return d, nil
}

// Solve implements Solver. Running out of iterations is not an error:
// the last iterate is returned with Converged unset.
func (s *MINRES) Solve(p *Problem, warm []float64) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	n, m := p.Size()
	size := n + m

	d, err := preconditioner(p)
	if err != nil {
		return nil, err
	}
	psolve := func(dst, src []float64) {
		floats.DivTo(dst, src, d)
	}

	b := p.rhs()
	x := make([]float64, size)
	if len(warm) == size {
		copy(x, warm)
	}

	tmp := make([]float64, size)
	psolve(tmp, b)
	bnorm := math.Sqrt(floats.Dot(b, tmp))
	tol := s.Tolerance * bnorm
	if bnorm == 0 {
		tol = s.Tolerance
	}

	r1 := make([]float64, size)
	p.apply(r1, x)
	floats.SubTo(r1, b, r1)
	y := make([]float64, size)
	psolve(y, r1)
	beta1 := floats.Dot(r1, y)
	if math.IsNaN(beta1) {
		return nil, fmt.Errorf("%w: non-finite right hand side", ErrSingular)
	}
	beta1 = math.Sqrt(beta1)

	res := &Result{Residual: beta1}
	if beta1 <= tol {
		res.X, res.Lambda = split(p, x)
		res.Converged = true
		return res, nil
	}

	var (
		oldb, dbar, epsln float64
		beta              = beta1
		phibar            = beta1
		cs, sn            = -1.0, 0.0
		gmax, gmin        = 0.0, math.MaxFloat64
	)

	v := make([]float64, size)
	w := make([]float64, size)
	w1 := make([]float64, size)
	w2 := make([]float64, size)
	r2 := make([]float64, size)
	copy(r2, r1)

	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = 5 * size
	}

	for res.Iterations < maxIter {
		res.Iterations++

		floats.ScaleTo(v, 1/beta, y)
		p.apply(y, v)
		if res.Iterations >= 2 {
			floats.AddScaled(y, -beta/oldb, r1)
		}
		alfa := floats.Dot(v, y)
		floats.AddScaled(y, -alfa/beta, r2)
		r1, r2 = r2, r1
		copy(r2, y)
		psolve(y, r2)
		oldb = beta
		beta = floats.Dot(r2, y)
		if beta < 0 || math.IsNaN(beta) {
			return nil, fmt.Errorf("%w: preconditioner lost definiteness", ErrSingular)
		}
		beta = math.Sqrt(beta)

		oldeps := epsln
		delta := cs*dbar + sn*alfa
		gbar := sn*dbar - cs*alfa
		epsln = sn * beta
		dbar = -cs * beta

		gamma := math.Max(math.Hypot(gbar, beta), eps)
		cs = gbar / gamma
		sn = beta / gamma
		phi := cs * phibar
		phibar = sn * phibar

		w1, w2, w = w2, w, w1
		for i := range w {
			w[i] = (v[i] - oldeps*w1[i] - delta*w2[i]) / gamma
		}
		floats.AddScaled(x, phi, w)

		gmax = math.Max(gmax, gamma)
		gmin = math.Min(gmin, gamma)

		res.Residual = phibar
		if phibar <= tol || beta == 0 {
			res.Converged = true
			break
		}
		if gmax/gmin >= 0.1/eps {
			return nil, fmt.Errorf("%w: condition estimate %.3g", ErrSingular, gmax/gmin)
		}
	}

	res.X, res.Lambda = split(p, x)
	return res, nil
}

// Package sparse holds the compressed sparse row matrices used for the
// global mass, stiffness, damping and constraint Jacobian operators.
//
// Matrices are built by scatter-adding into a Triplet and compressing it
// once; duplicates are summed during compression, which is exactly the
// finite element scatter-add semantics.
package sparse

import (
	"fmt"
	"slices"

	"github.com/san-kum/cablefea/internal/parallel"
	"gonum.org/v1/gonum/mat"
)

// parallelRows is the row count above which MulVec is split across workers.
const parallelRows = 512

// Triplet is a coordinate-format builder.
type Triplet struct {
	rows, cols int
	i, j       []int
	v          []float64
}

// NewTriplet returns an empty rows x cols builder with room for hint entries.
func NewTriplet(rows, cols, hint int) *Triplet {
	return &Triplet{
		rows: rows,
		cols: cols,
		i:    make([]int, 0, hint),
		j:    make([]int, 0, hint),
		v:    make([]float64, 0, hint),
	}
}

// Dims returns the matrix shape.
func (t *Triplet) Dims() (int, int) { return t.rows, t.cols }

// Add accumulates v at (i, j). Zero values are dropped.
func (t *Triplet) Add(i, j int, v float64) {
	if v == 0 {
		return
	}
	if i < 0 || i >= t.rows || j < 0 || j >= t.cols {
		panic(fmt.Sprintf("sparse: index (%d,%d) out of range %dx%d", i, j, t.rows, t.cols))
	}
	t.i = append(t.i, i)
	t.j = append(t.j, j)
	t.v = append(t.v, v)
}

// Len returns the number of accumulated (possibly duplicate) entries.
func (t *Triplet) Len() int { return len(t.v) }

// CSR compresses the triplet, summing duplicate entries.
func (t *Triplet) CSR() *CSR {
	counts := make([]int, t.rows+1)
	for _, r := range t.i {
		counts[r+1]++
	}
	for r := 0; r < t.rows; r++ {
		counts[r+1] += counts[r]
	}

	type entry struct {
		col int
		val float64
	}
	bucket := make([]entry, len(t.v))
	next := slices.Clone(counts[:t.rows])
	for k, r := range t.i {
		bucket[next[r]] = entry{t.j[k], t.v[k]}
		next[r]++
	}

	m := &CSR{
		Rows:   t.rows,
		Cols:   t.cols,
		RowPtr: make([]int, t.rows+1),
		ColIdx: make([]int, 0, len(t.v)),
		Val:    make([]float64, 0, len(t.v)),
	}
	for r := 0; r < t.rows; r++ {
		row := bucket[counts[r]:counts[r+1]]
		slices.SortFunc(row, func(a, b entry) int { return a.col - b.col })
		for k, e := range row {
			if k > 0 && row[k-1].col == e.col {
				m.Val[len(m.Val)-1] += e.val
				continue
			}
			m.ColIdx = append(m.ColIdx, e.col)
			m.Val = append(m.Val, e.val)
		}
		m.RowPtr[r+1] = len(m.Val)
	}
	return m
}

// CSR is a compressed sparse row matrix.
type CSR struct {
	Rows, Cols int
	RowPtr     []int
	ColIdx     []int
	Val        []float64
}

// Dims returns the matrix shape.
func (m *CSR) Dims() (int, int) { return m.Rows, m.Cols }

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return len(m.Val) }

// At returns element (i, j).
func (m *CSR) At(i, j int) float64 {
	cols := m.ColIdx[m.RowPtr[i]:m.RowPtr[i+1]]
	if k, ok := slices.BinarySearch(cols, j); ok {
		return m.Val[m.RowPtr[i]+k]
	}
	return 0
}

// MulVec computes dst = m x. Large matrices are split by rows across
// workers; rows are disjoint so no synchronization is needed.
func (m *CSR) MulVec(dst, x []float64) {
	if len(x) != m.Cols || len(dst) != m.Rows {
		panic("sparse: dimension mismatch in MulVec")
	}
	rowRange := func(start, end int) {
		for r := start; r < end; r++ {
			var sum float64
			for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
				sum += m.Val[k] * x[m.ColIdx[k]]
			}
			dst[r] = sum
		}
	}
	if m.Rows < parallelRows {
		rowRange(0, m.Rows)
		return
	}
	parallel.For(m.Rows, parallelRows/2, 0, rowRange)
}

// MulVecTrans computes dst = mᵀ x.
func (m *CSR) MulVecTrans(dst, x []float64) {
	if len(x) != m.Rows || len(dst) != m.Cols {
		panic("sparse: dimension mismatch in MulVecTrans")
	}
	clear(dst)
	for r := 0; r < m.Rows; r++ {
		xr := x[r]
		if xr == 0 {
			continue
		}
		for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
			dst[m.ColIdx[k]] += m.Val[k] * xr
		}
	}
}

// Diagonal returns the main diagonal.
func (m *CSR) Diagonal() []float64 {
	n := min(m.Rows, m.Cols)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = m.At(i, i)
	}
	return d
}

// Quadratic returns xᵀ m x.
func (m *CSR) Quadratic(x []float64) float64 {
	y := make([]float64, m.Rows)
	m.MulVec(y, x)
	var s float64
	for i := range y {
		s += x[i] * y[i]
	}
	return s
}

// Dense converts m to a gonum dense matrix. It returns nil for an empty
// matrix, which gonum cannot represent.
func (m *CSR) Dense() *mat.Dense {
	if m.Rows == 0 || m.Cols == 0 {
		return nil
	}
	d := mat.NewDense(m.Rows, m.Cols, nil)
	for r := 0; r < m.Rows; r++ {
		for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
			d.Set(r, m.ColIdx[k], m.Val[k])
		}
	}
	return d
}

// Sum returns Σ coeffs[k]·mats[k]. All matrices must share a shape.
func Sum(coeffs []float64, mats ...*CSR) *CSR {
	if len(coeffs) != len(mats) || len(mats) == 0 {
		panic("sparse: Sum needs one coefficient per matrix")
	}
	rows, cols := mats[0].Dims()
	hint := 0
	for _, m := range mats {
		if r, c := m.Dims(); r != rows || c != cols {
			panic("sparse: Sum shape mismatch")
		}
		hint += m.NNZ()
	}
	t := NewTriplet(rows, cols, hint)
	for k, m := range mats {
		c := coeffs[k]
		if c == 0 {
			continue
		}
		for r := 0; r < m.Rows; r++ {
			for p := m.RowPtr[r]; p < m.RowPtr[r+1]; p++ {
				t.Add(r, m.ColIdx[p], c*m.Val[p])
			}
		}
	}
	return t.CSR()
}

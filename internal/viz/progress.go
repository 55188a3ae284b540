package viz

import (
	"fmt"
	"io"

	"github.com/san-kum/cablefea/internal/dynamo"
)

// Progress is a sim.Observer that prints one status line every Every steps.
type Progress struct {
	w     io.Writer
	every int
	total int
}

func NewProgress(w io.Writer, every, total int) *Progress {
	return &Progress{w: w, every: max(every, 1), total: total}
}

func (p *Progress) OnStep(f *dynamo.Frame) {
	if f.Step%p.every != 0 && f.Step != p.total {
		return
	}
	var tipY float64
	if len(f.Nodes) > 0 {
		tipY = f.Nodes[len(f.Nodes)-1].Pos.Y()
	}
	fmt.Fprintf(p.w, "step %5d/%d  t=%7.3fs  tip_y=%+.5f  ke=%.3e  viol=%.2e  iters=%d\n",
		f.Step, p.total, f.Time, tipY, f.KineticEnergy, f.MaxViolation, f.Solve.Iterations)
}

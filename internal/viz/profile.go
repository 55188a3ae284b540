package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/sim"
)

// Heights returns the node heights of f in node order.
func Heights(f *dynamo.Frame) []float64 {
	ys := make([]float64, len(f.Nodes))
	for i, n := range f.Nodes {
		ys[i] = n.Pos.Y()
	}
	return ys
}

// Profile plots the node heights of f against node index.
func Profile(f *dynamo.Frame, width, height int) string {
	ys := Heights(f)
	if len(ys) < 2 {
		return ""
	}
	return asciigraph.Plot(ys,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Precision(3),
		asciigraph.Caption(fmt.Sprintf("node height at t=%.2fs", f.Time)))
}

// History plots a scalar series, e.g. tip height over recorded frames.
func History(values []float64, caption string, width, height int) string {
	if len(values) < 2 {
		return ""
	}
	return asciigraph.Plot(values,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(caption))
}

// Summary renders the metrics and final state of a run.
func Summary(title string, res *sim.Result) string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(title) + "\n")

	if final := res.Final(); final != nil {
		s.WriteString(Row("steps", fmt.Sprintf("%d", res.StepsTaken)) + "\n")
		s.WriteString(Row("time", fmt.Sprintf("%.3fs", final.Time)) + "\n")
		s.WriteString(Row("phase", final.Phase.String()) + "\n")
		s.WriteString(Row("violation", fmt.Sprintf("%.3e", final.MaxViolation)) + "\n")
		s.WriteString(Row("kinetic energy", fmt.Sprintf("%.4e J", final.KineticEnergy)) + "\n")
	}

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		s.WriteString("\n" + Title.Render("METRICS") + "\n")
	}
	for _, name := range names {
		s.WriteString(Row(name, fmt.Sprintf("%.6g", res.Metrics[name])) + "\n")
	}
	return Panel.Render(s.String())
}

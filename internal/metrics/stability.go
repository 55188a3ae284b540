package metrics

import (
	"math"

	"github.com/san-kum/cablefea/internal/dynamo"
)

// Stability is the fraction of frames in which every node stays within
// threshold of the origin along each axis and has finite coordinates.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(f *dynamo.Frame) {
	s.samples++
	for _, n := range f.Nodes {
		if !withinBox(n.Pos[:], s.threshold) {
			s.violations++
			return
		}
	}
	for _, b := range f.Bodies {
		if !withinBox(b.Pos[:], s.threshold) {
			s.violations++
			return
		}
	}
}

func withinBox(x []float64, limit float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.Abs(v) > limit {
			return false
		}
	}
	return true
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

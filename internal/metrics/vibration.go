package metrics

import (
	"github.com/san-kum/cablefea/internal/analysis"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/fea"
)

// TipFrequency is the dominant vibration frequency in Hz of a node's
// height, sampled once per observed frame. Frames must be observed at a
// fixed interval dt.
type TipFrequency struct {
	name    string
	node    fea.NodeID
	dt      float64
	samples []float64
}

func NewTipFrequency(node fea.NodeID, dt float64) *TipFrequency {
	return &TipFrequency{name: "tip_frequency", node: node, dt: dt}
}

func (m *TipFrequency) Name() string { return m.name }

func (m *TipFrequency) Observe(f *dynamo.Frame) {
	if n, ok := f.Node(m.node); ok {
		m.samples = append(m.samples, n.Pos.Y())
	}
}

// Value is zero while the signal is too short or does not oscillate.
func (m *TipFrequency) Value() float64 {
	freq, err := analysis.DominantFrequency(m.samples, m.dt)
	if err != nil {
		return 0
	}
	return freq
}

// Damping estimates the damping ratio of the tip motion about its last
// sampled height.
func (m *TipFrequency) Damping() (float64, error) {
	if len(m.samples) == 0 {
		return 0, analysis.ErrTooShort
	}
	rest := m.samples[len(m.samples)-1]
	centered := make([]float64, len(m.samples))
	for i, y := range m.samples {
		centered[i] = y - rest
	}
	return analysis.DampingRatio(centered)
}

func (m *TipFrequency) Reset() { m.samples = m.samples[:0] }

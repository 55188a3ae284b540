// Package metrics provides per-run observables computed from system
// frames.
package metrics

import (
	"math"

	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/fea"
)

// TipSag is the vertical drop of a node below a reference height at the
// last observed frame.
type TipSag struct {
	name string
	node fea.NodeID
	ref  float64
	sag  float64
}

func NewTipSag(node fea.NodeID, refY float64) *TipSag {
	return &TipSag{name: "tip_sag", node: node, ref: refY}
}

func (m *TipSag) Name() string { return m.name }

func (m *TipSag) Observe(f *dynamo.Frame) {
	if n, ok := f.Node(m.node); ok {
		m.sag = m.ref - n.Pos.Y()
	}
}

func (m *TipSag) Value() float64 { return m.sag }
func (m *TipSag) Reset()         { m.sag = 0 }

// MaxViolation is the worst constraint violation over the run.
type MaxViolation struct {
	name  string
	worst float64
}

func NewMaxViolation() *MaxViolation {
	return &MaxViolation{name: "max_violation"}
}

func (m *MaxViolation) Name() string { return m.name }

func (m *MaxViolation) Observe(f *dynamo.Frame) {
	m.worst = math.Max(m.worst, f.MaxViolation)
}

func (m *MaxViolation) Value() float64 { return m.worst }
func (m *MaxViolation) Reset()         { m.worst = 0 }

// KineticEnergy reports the kinetic energy of the last observed frame and
// tracks its peak.
type KineticEnergy struct {
	name string
	last float64
	peak float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (m *KineticEnergy) Name() string { return m.name }

func (m *KineticEnergy) Observe(f *dynamo.Frame) {
	m.last = f.KineticEnergy
	m.peak = math.Max(m.peak, f.KineticEnergy)
}

func (m *KineticEnergy) Value() float64 { return m.last }

// Peak returns the largest kinetic energy seen.
func (m *KineticEnergy) Peak() float64 { return m.peak }

func (m *KineticEnergy) Reset() {
	m.last = 0
	m.peak = 0
}

// SolverEffort is the mean number of linear solver iterations per step.
type SolverEffort struct {
	name        string
	sum         float64
	samples     int
	unconverged int
}

func NewSolverEffort() *SolverEffort {
	return &SolverEffort{name: "solver_iterations"}
}

func (m *SolverEffort) Name() string { return m.name }

func (m *SolverEffort) Observe(f *dynamo.Frame) {
	m.sum += float64(f.Solve.Iterations)
	m.samples++
	if !f.Solve.Converged {
		m.unconverged++
	}
}

func (m *SolverEffort) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

// Unconverged returns how many steps ended with a non-converged solve.
func (m *SolverEffort) Unconverged() int { return m.unconverged }

func (m *SolverEffort) Reset() {
	m.sum = 0
	m.samples = 0
	m.unconverged = 0
}

package dynamo

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/fea"
	"github.com/san-kum/cablefea/internal/link"
)

// NodeState is the read-only state of a cable node.
type NodeState struct {
	ID    fea.NodeID
	Pos   mgl64.Vec3
	Dir   mgl64.Vec3
	Vel   mgl64.Vec3
	Acc   mgl64.Vec3
	Fixed bool
}

// BodyState is the read-only state of a rigid body.
type BodyState struct {
	Name   string
	Pos    mgl64.Vec3
	Rot    mgl64.Quat
	Vel    mgl64.Vec3
	AngVel mgl64.Vec3
	Mass   float64
	Fixed  bool
}

// ElementState reports the deformation of one cable element.
type ElementState struct {
	Nodes     [2]fea.NodeID
	Length    float64
	Strain    float64
	Curvature float64
}

// ConstraintState reports a constraint's violation norm and the force it
// applies to its node.
type ConstraintState struct {
	Kind      string
	Node      fea.NodeID
	Violation float64
	Reaction  mgl64.Vec3
}

// Frame is a deep copy of the observable state after a step. Observers may
// keep it; it shares nothing with the System.
type Frame struct {
	Time          float64
	Step          int
	Phase         Phase
	Nodes         []NodeState
	Bodies        []BodyState
	Elements      []ElementState
	Constraints   []ConstraintState
	MaxViolation  float64
	KineticEnergy float64
	Solve         SolveStats
}

// SolveStats summarizes the last linear solve.
type SolveStats struct {
	Iterations int
	Residual   float64
	Converged  bool
}

// LogValue implements slog.LogValuer.
func (f *Frame) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("step", f.Step),
		slog.Float64("time", f.Time),
		slog.Float64("max_violation", f.MaxViolation),
		slog.Int("iterations", f.Solve.Iterations),
		slog.Bool("converged", f.Solve.Converged),
	)
}

// Node returns the state of node id, or false if it is not in the frame.
func (f *Frame) Node(id fea.NodeID) (NodeState, bool) {
	if id < 0 || int(id) >= len(f.Nodes) {
		return NodeState{}, false
	}
	return f.Nodes[id], true
}

// Frame captures the current state.
func (s *System) Frame() *Frame {
	f := &Frame{
		Time:         s.time,
		Step:         s.steps,
		Phase:        s.phase,
		Nodes:        make([]NodeState, s.mesh.NumNodes()),
		Bodies:       make([]BodyState, len(s.bodies)),
		MaxViolation: s.MaxViolation(),
		Solve: SolveStats{
			Iterations: s.last.Iterations,
			Residual:   s.last.Residual,
			Converged:  s.last.Converged,
		},
	}

	for i := range f.Nodes {
		id := fea.NodeID(i)
		n := s.mesh.Node(id)
		f.Nodes[i] = NodeState{ID: id, Pos: n.Pos, Dir: n.Dir, Vel: n.Vel, Acc: n.Acc, Fixed: n.Fixed}
		if n.Offset >= 0 {
			// translational kinetic energy with the lumped node mass
			f.KineticEnergy += 0.5 * s.mesh.LumpedMass(id) * n.Vel.Dot(n.Vel)
		}
	}
	for i, b := range s.bodies {
		f.Bodies[i] = BodyState{
			Name: b.Name, Pos: b.Pos, Rot: b.Rot, Vel: b.Vel, AngVel: b.AngVel,
			Mass: b.Mass, Fixed: b.Fixed,
		}
		if !b.Fixed {
			f.KineticEnergy += b.KineticEnergy()
		}
	}

	for _, e := range s.mesh.Elements() {
		c, ok := e.(*fea.Cable)
		if !ok {
			continue
		}
		ids := c.NodeIDs()
		f.Elements = append(f.Elements, ElementState{
			Nodes:     [2]fea.NodeID{ids[0], ids[1]},
			Length:    s.mesh.Node(ids[1]).Pos.Sub(s.mesh.Node(ids[0]).Pos).Len(),
			Strain:    c.Strain(s.mesh, 0.5),
			Curvature: c.Curvature(s.mesh, 0.5),
		})
	}

	row := 0
	for _, c := range s.constraints {
		cs := ConstraintState{Kind: constraintKind(c)}
		switch v := c.(type) {
		case *link.PointFrame:
			cs.Node = v.Node()
		case *link.DirFrame:
			cs.Node = v.Node()
		}
		var norm float64
		for _, x := range c.Violation() {
			norm += x * x
		}
		cs.Violation = math.Sqrt(norm)
		if c.Active() && row+3 <= len(s.lambda) {
			cs.Reaction = mgl64.Vec3{s.lambda[row], s.lambda[row+1], s.lambda[row+2]}
		}
		if c.Active() {
			row += c.Rows()
		}
		f.Constraints = append(f.Constraints, cs)
	}
	return f
}

func constraintKind(c link.Constraint) string {
	switch c.(type) {
	case *link.PointFrame:
		return "point"
	case *link.DirFrame:
		return "direction"
	}
	return "constraint"
}

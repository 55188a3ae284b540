// Package fea implements the mesh entity store and the ANCF cable element.
//
// Nodes live in a contiguous arena owned by the [Mesh] and are addressed by
// [NodeID]. Elements store node ids, never node copies, so a node shared by
// two neighbouring elements is a single set of degrees of freedom.
//
// Each node carries a position and a tangent direction (gradient) vector:
//
//	DOF 0..2  position rate
//	DOF 3..5  direction rate
//
// Fixed nodes are clamped (position and direction) and contribute no
// degrees of freedom to the global system.
package fea

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// NodeDOF is the number of scalar coordinates of a free node.
const NodeDOF = 6

var (
	// ErrInvalidGeometry indicates a degenerate element or section.
	ErrInvalidGeometry = errors.New("fea: invalid geometry")

	// ErrUnknownNode indicates a node id that is not registered in the mesh.
	ErrUnknownNode = errors.New("fea: unknown node")
)

// NodeID indexes the mesh node arena.
type NodeID int

// Node is a position + direction finite element node.
type Node struct {
	Pos    mgl64.Vec3
	Dir    mgl64.Vec3
	Vel    mgl64.Vec3
	DirVel mgl64.Vec3
	Acc    mgl64.Vec3
	DirAcc mgl64.Vec3
	Fixed  bool

	// Offset is the first global DOF index, or -1 for fixed or
	// unassigned nodes.
	Offset int
}

// Element is the capability set every mesh element provides to the
// assembler.
type Element interface {
	// NodeIDs lists the element nodes in local DOF order.
	NodeIDs() []NodeID
	// Load fills out with the element contribution at the current state.
	Load(m *Mesh, gravity mgl64.Vec3, out *Local)
	// LumpedMasses returns the mass lumped to each element node.
	LumpedMasses() []float64
}

// Local is an element-level contribution. F is the generalized force
// f_ext - f_int - R v, KV the product K v.
type Local struct {
	F  *mat.VecDense
	KV *mat.VecDense
	K  *mat.SymDense
	M  *mat.SymDense
	R  *mat.SymDense
}

// NewLocal allocates a contribution for n local DOFs.
func NewLocal(n int) *Local {
	return &Local{
		F:  mat.NewVecDense(n, nil),
		KV: mat.NewVecDense(n, nil),
		K:  mat.NewSymDense(n, nil),
		M:  mat.NewSymDense(n, nil),
		R:  mat.NewSymDense(n, nil),
	}
}

// Mesh owns nodes and elements.
type Mesh struct {
	nodes    []Node
	elements []Element
}

// NewMesh returns an empty mesh.
func NewMesh() *Mesh {
	return &Mesh{}
}

// AddNode appends a node at pos with tangent direction dir.
func (m *Mesh) AddNode(pos, dir mgl64.Vec3) NodeID {
	m.nodes = append(m.nodes, Node{Pos: pos, Dir: dir, Offset: -1})
	return NodeID(len(m.nodes) - 1)
}

// Has reports whether id refers to a registered node.
func (m *Mesh) Has(id NodeID) bool {
	return id >= 0 && int(id) < len(m.nodes)
}

// Node returns a pointer into the arena. The pointer is invalidated by a
// later AddNode.
func (m *Mesh) Node(id NodeID) *Node {
	return &m.nodes[id]
}

// NumNodes returns the arena size.
func (m *Mesh) NumNodes() int { return len(m.nodes) }

// Elements returns the registered elements.
func (m *Mesh) Elements() []Element { return m.elements }

// AddCable creates an ANCF cable between two registered nodes. On error
// the mesh is left unchanged.
func (m *Mesh) AddCable(a, b NodeID, sec *Section) (*Cable, error) {
	if !m.Has(a) || !m.Has(b) {
		return nil, fmt.Errorf("%w: cable nodes %d-%d", ErrUnknownNode, a, b)
	}
	c, err := NewCable(a, b, m.nodes[a].Pos, m.nodes[b].Pos, sec)
	if err != nil {
		return nil, err
	}
	m.elements = append(m.elements, c)
	return c, nil
}

// LumpedMass returns the element mass lumped at node id.
func (m *Mesh) LumpedMass(id NodeID) float64 {
	var total float64
	for _, e := range m.elements {
		masses := e.LumpedMasses()
		for k, n := range e.NodeIDs() {
			if n == id {
				total += masses[k]
			}
		}
	}
	return total
}

// TotalMass sums all element masses.
func (m *Mesh) TotalMass() float64 {
	var total float64
	for _, e := range m.elements {
		for _, v := range e.LumpedMasses() {
			total += v
		}
	}
	return total
}

// DOFs returns the global DOF index of each local DOF of e, with -1 for
// DOFs of fixed nodes.
func (m *Mesh) DOFs(e Element) []int {
	ids := e.NodeIDs()
	dofs := make([]int, 0, len(ids)*NodeDOF)
	for _, id := range ids {
		off := m.nodes[id].Offset
		for k := 0; k < NodeDOF; k++ {
			if off < 0 {
				dofs = append(dofs, -1)
			} else {
				dofs = append(dofs, off+k)
			}
		}
	}
	return dofs
}

// Snapshot copies the node arena.
func (m *Mesh) Snapshot() []Node {
	return append([]Node(nil), m.nodes...)
}

// Restore overwrites the node arena with a snapshot taken from the same
// mesh.
func (m *Mesh) Restore(nodes []Node) {
	if len(nodes) != len(m.nodes) {
		panic(fmt.Sprintf("fea: restoring %d nodes into a mesh of %d", len(nodes), len(m.nodes)))
	}
	copy(m.nodes, nodes)
}

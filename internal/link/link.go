// Package link implements kinematic constraints between cable nodes and
// rigid frames.
//
// A constraint contributes rows to the global Jacobian Cq and entries to
// the violation vector C. A nil body stands for the fixed world frame.
package link

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/body"
	"github.com/san-kum/cablefea/internal/fea"
	"github.com/san-kum/cablefea/internal/geom"
	"github.com/san-kum/cablefea/internal/sparse"
)

// Constraint is the capability set the assembler uses.
type Constraint interface {
	// Rows is the number of scalar equations.
	Rows() int
	// Active is false when no endpoint has degrees of freedom.
	Active() bool
	// Violation returns C at the current state.
	Violation() []float64
	// Load writes the Jacobian rows starting at row into cq and the
	// violation into c[row:row+Rows()].
	Load(row int, cq *sparse.Triplet, c []float64)
}

type endpoint struct {
	mesh *fea.Mesh
	node fea.NodeID
	body *body.Body
}

func newEndpoint(m *fea.Mesh, n fea.NodeID, b *body.Body) (endpoint, error) {
	if m == nil || !m.Has(n) {
		return endpoint{}, fmt.Errorf("%w: constrained node %d", fea.ErrUnknownNode, n)
	}
	return endpoint{mesh: m, node: n, body: b}, nil
}

func (e endpoint) frame() geom.Frame {
	if e.body == nil {
		return geom.Identity()
	}
	return e.body.Frame()
}

func (e endpoint) bodyFree() bool {
	return e.body != nil && !e.body.Fixed && e.body.Offset >= 0
}

func (e endpoint) active() bool {
	nodeFree := !e.mesh.Node(e.node).Fixed
	return nodeFree || (e.body != nil && !e.body.Fixed)
}

// Node returns the constrained node.
func (e endpoint) Node() fea.NodeID { return e.node }

// Body returns the constrained body, nil for the world frame.
func (e endpoint) Body() *body.Body { return e.body }

func addIdentity(cq *sparse.Triplet, row, col int, s float64) {
	for a := 0; a < 3; a++ {
		cq.Add(row+a, col+a, s)
	}
}

func addBlock(cq *sparse.Triplet, row, col int, b mgl64.Mat3) {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			cq.Add(row+r, col+c, b.At(r, c))
		}
	}
}

// PointFrame keeps a node position coincident with a point attached to a
// body frame.
type PointFrame struct {
	endpoint
	local mgl64.Vec3
}

// NewPointFrame attaches node n to frame b at the node's current position.
func NewPointFrame(m *fea.Mesh, n fea.NodeID, b *body.Body) (*PointFrame, error) {
	ep, err := newEndpoint(m, n, b)
	if err != nil {
		return nil, err
	}
	return &PointFrame{
		endpoint: ep,
		local:    ep.frame().PointToLocal(m.Node(n).Pos),
	}, nil
}

// Local returns the attachment point in body coordinates.
func (p *PointFrame) Local() mgl64.Vec3 { return p.local }

func (p *PointFrame) Rows() int    { return 3 }
func (p *PointFrame) Active() bool { return p.active() }

func (p *PointFrame) Violation() []float64 {
	d := p.mesh.Node(p.node).Pos.Sub(p.frame().PointToWorld(p.local))
	return d[:]
}

// Load writes C = r − (x + R p) and the rows [I | −I, Skew(R p)].
func (p *PointFrame) Load(row int, cq *sparse.Triplet, c []float64) {
	copy(c[row:row+3], p.Violation())

	if off := p.mesh.Node(p.node).Offset; off >= 0 {
		addIdentity(cq, row, off, 1)
	}
	if p.bodyFree() {
		arm := p.frame().DirToWorld(p.local)
		addIdentity(cq, row, p.body.Offset, -1)
		addBlock(cq, row, p.body.Offset+3, geom.Skew(arm))
	}
}

// DirFrame keeps a node tangent direction fixed relative to a body frame.
type DirFrame struct {
	endpoint
	local mgl64.Vec3
}

// NewDirFrame attaches the direction of node n to frame b.
func NewDirFrame(m *fea.Mesh, n fea.NodeID, b *body.Body) (*DirFrame, error) {
	ep, err := newEndpoint(m, n, b)
	if err != nil {
		return nil, err
	}
	return &DirFrame{
		endpoint: ep,
		local:    ep.frame().DirToLocal(m.Node(n).Dir),
	}, nil
}

// Local returns the attached direction in body coordinates.
func (d *DirFrame) Local() mgl64.Vec3 { return d.local }

func (d *DirFrame) Rows() int    { return 3 }
func (d *DirFrame) Active() bool { return d.active() }

func (d *DirFrame) Violation() []float64 {
	v := d.mesh.Node(d.node).Dir.Sub(d.frame().DirToWorld(d.local))
	return v[:]
}

// Load writes C = d − R d_local and the rows [I | 0, Skew(R d_local)].
func (d *DirFrame) Load(row int, cq *sparse.Triplet, c []float64) {
	copy(c[row:row+3], d.Violation())

	if off := d.mesh.Node(d.node).Offset; off >= 0 {
		addIdentity(cq, row, off+3, 1)
	}
	if d.bodyFree() {
		addBlock(cq, row, d.body.Offset+3, geom.Skew(d.frame().DirToWorld(d.local)))
	}
}

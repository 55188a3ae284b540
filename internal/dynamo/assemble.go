package dynamo

import (
	"github.com/san-kum/cablefea/internal/body"
	"github.com/san-kum/cablefea/internal/fea"
	"github.com/san-kum/cablefea/internal/parallel"
	"github.com/san-kum/cablefea/internal/sparse"
)

// Assembly holds the global operators at one state.
//
//	M, K, R  N×N mass, tangent stiffness and damping
//	F        f_ext − f_int − R v
//	KV       K v
//	V        current velocities
//	Cq       NC×N constraint Jacobian
//	C        constraint violation
type Assembly struct {
	M, K, R *sparse.CSR
	Cq      *sparse.CSR
	F       []float64
	KV      []float64
	V       []float64
	C       []float64
}

// Combine returns a·M + b·R + c·K.
func (a *Assembly) Combine(m, r, k float64) *sparse.CSR {
	return sparse.Sum([]float64{m, r, k}, a.M, a.R, a.K)
}

// elementChunk is the smallest element batch handed to a worker.
const elementChunk = 8

// Assemble builds the global operators from the current state. Element
// contributions are computed concurrently into per-element slots and then
// scattered in element order, so the result does not depend on the worker
// count.
func (s *System) Assemble() *Assembly {
	n := s.dofs
	elems := s.mesh.Elements()
	gravity := s.cfg.Gravity

	locals := make([]*fea.Local, len(elems))
	parallel.For(len(elems), elementChunk, s.cfg.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			dofs := len(elems[i].NodeIDs()) * fea.NodeDOF
			locals[i] = fea.NewLocal(dofs)
			elems[i].Load(s.mesh, gravity, locals[i])
		}
	})

	hint := len(elems) * 144
	mt := sparse.NewTriplet(n, n, hint+len(s.bodies)*12)
	kt := sparse.NewTriplet(n, n, hint)
	rt := sparse.NewTriplet(n, n, hint)
	a := &Assembly{
		F:  make([]float64, n),
		KV: make([]float64, n),
		V:  s.Velocities(),
	}

	for i, e := range elems {
		loc := locals[i]
		dofs := s.mesh.DOFs(e)
		for p, gp := range dofs {
			if gp < 0 {
				continue
			}
			a.F[gp] += loc.F.AtVec(p)
			a.KV[gp] += loc.KV.AtVec(p)
			for q, gq := range dofs {
				if gq < 0 {
					continue
				}
				mt.Add(gp, gq, loc.M.At(p, q))
				kt.Add(gp, gq, loc.K.At(p, q))
				rt.Add(gp, gq, loc.R.At(p, q))
			}
		}
	}

	for _, b := range s.bodies {
		if b.Offset < 0 {
			continue
		}
		s.assembleBody(b, mt, a.F)
	}

	a.Cq, a.C = s.Jacobian()
	a.M, a.K, a.R = mt.CSR(), kt.CSR(), rt.CSR()
	return a
}

func (s *System) assembleBody(b *body.Body, mt *sparse.Triplet, f []float64) {
	o := b.Offset
	for k := 0; k < 3; k++ {
		mt.Add(o+k, o+k, b.Mass)
	}
	inertia := b.WorldInertia()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			mt.Add(o+3+r, o+3+c, inertia.At(r, c))
		}
	}
	force, torque := b.Forces(s.cfg.Gravity)
	for k := 0; k < 3; k++ {
		f[o+k] += force[k]
		f[o+3+k] += torque[k]
	}
}

// Violation returns the constraint violation vector C at the current
// state.
func (s *System) Violation() []float64 {
	c := make([]float64, 0, s.rows)
	for _, con := range s.active {
		c = append(c, con.Violation()...)
	}
	return c
}

// TranslationMode returns the velocity vector of a unit rigid translation
// along axis (0, 1 or 2) of every free node and body.
func (s *System) TranslationMode(axis int) []float64 {
	u := make([]float64, s.dofs)
	for id := fea.NodeID(0); int(id) < s.mesh.NumNodes(); id++ {
		if off := s.mesh.Node(id).Offset; off >= 0 {
			u[off+axis] = 1
		}
	}
	for _, b := range s.bodies {
		if b.Offset >= 0 {
			u[b.Offset+axis] = 1
		}
	}
	return u
}

package dynamo

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/body"
	"github.com/san-kum/cablefea/internal/fea"
	"github.com/san-kum/cablefea/internal/geom"
	"github.com/san-kum/cablefea/internal/solver"
)

// Velocities gathers the global velocity vector.
func (s *System) Velocities() []float64 {
	v := make([]float64, s.dofs)
	for id := fea.NodeID(0); int(id) < s.mesh.NumNodes(); id++ {
		n := s.mesh.Node(id)
		if n.Offset < 0 {
			continue
		}
		copy(v[n.Offset:], n.Vel[:])
		copy(v[n.Offset+3:], n.DirVel[:])
	}
	for _, b := range s.bodies {
		if b.Offset < 0 {
			continue
		}
		copy(v[b.Offset:], b.Vel[:])
		copy(v[b.Offset+3:], b.AngVel[:])
	}
	return v
}

func vec3(x []float64, off int) mgl64.Vec3 {
	return mgl64.Vec3{x[off], x[off+1], x[off+2]}
}

// SetVelocities scatters a global velocity vector back to nodes and bodies.
func (s *System) SetVelocities(v []float64) {
	for id := fea.NodeID(0); int(id) < s.mesh.NumNodes(); id++ {
		n := s.mesh.Node(id)
		if n.Offset < 0 {
			continue
		}
		n.Vel = vec3(v, n.Offset)
		n.DirVel = vec3(v, n.Offset+3)
	}
	for _, b := range s.bodies {
		if b.Offset < 0 {
			continue
		}
		b.Vel = vec3(v, b.Offset)
		b.AngVel = vec3(v, b.Offset+3)
	}
}

// SetAccelerations stores nodal accelerations for reporting.
func (s *System) SetAccelerations(a []float64) {
	for id := fea.NodeID(0); int(id) < s.mesh.NumNodes(); id++ {
		n := s.mesh.Node(id)
		if n.Offset < 0 {
			continue
		}
		n.Acc = vec3(a, n.Offset)
		n.DirAcc = vec3(a, n.Offset+3)
	}
}

// Advance moves all free coordinates by h times their current velocity.
func (s *System) Advance(h float64) {
	for id := fea.NodeID(0); int(id) < s.mesh.NumNodes(); id++ {
		n := s.mesh.Node(id)
		if n.Offset < 0 {
			continue
		}
		n.Pos = n.Pos.Add(n.Vel.Mul(h))
		n.Dir = n.Dir.Add(n.DirVel.Mul(h))
	}
	for _, b := range s.bodies {
		b.Advance(h)
	}
}

// Displace adds a global coordinate increment. Body rotations are applied
// as world-frame rotation vectors.
func (s *System) Displace(dq []float64) {
	for id := fea.NodeID(0); int(id) < s.mesh.NumNodes(); id++ {
		n := s.mesh.Node(id)
		if n.Offset < 0 {
			continue
		}
		n.Pos = n.Pos.Add(vec3(dq, n.Offset))
		n.Dir = n.Dir.Add(vec3(dq, n.Offset+3))
	}
	for _, b := range s.bodies {
		if b.Offset < 0 {
			continue
		}
		b.Pos = b.Pos.Add(vec3(dq, b.Offset))
		b.Rot = geom.RotateBy(b.Rot, vec3(dq, b.Offset+3))
	}
}

// Solve runs the configured linear solver with the warm start cache.
// Non-convergence is logged and returned as a result with Converged
// unset; a singular system maps to ErrSingularSystem.
func (s *System) Solve(p *solver.Problem) (*solver.Result, error) {
	var warm []float64
	if s.cfg.WarmStart {
		warm = s.warm
	}
	res, err := s.cfg.Solver.Solve(p, warm)
	if err != nil {
		if errors.Is(err, solver.ErrSingular) {
			return nil, fmt.Errorf("%w: %w", ErrSingularSystem, err)
		}
		return nil, err
	}
	s.last = *res
	if s.cfg.WarmStart {
		s.warm = append(append(s.warm[:0], res.X...), res.Lambda...)
	}
	if !res.Converged {
		s.log.Warn("linear solver did not converge",
			"solver", s.cfg.Solver.Name(),
			"step", s.steps,
			"time", s.time,
			"result", res)
	}
	return res, nil
}

// SetReactions records constraint multipliers scaled to forces.
func (s *System) SetReactions(lambda []float64, scale float64) {
	s.lambda = s.lambda[:0]
	for _, l := range lambda {
		s.lambda = append(s.lambda, scale*l)
	}
}

// Snapshot is a copy of the mutable system state.
type Snapshot struct {
	time   float64
	steps  int
	nodes  []fea.Node
	bodies []body.Body
	warm   []float64
	lambda []float64
	last   solver.Result
}

// Snapshot captures the current state.
func (s *System) Snapshot() *Snapshot {
	snap := &Snapshot{
		time:   s.time,
		steps:  s.steps,
		nodes:  s.mesh.Snapshot(),
		bodies: make([]body.Body, len(s.bodies)),
		warm:   append([]float64(nil), s.warm...),
		lambda: append([]float64(nil), s.lambda...),
		last:   s.last,
	}
	for i, b := range s.bodies {
		snap.bodies[i] = *b
	}
	return snap
}

// Restore returns the system to a snapshot taken from it. Entities added
// after the snapshot are not removed.
func (s *System) Restore(snap *Snapshot) {
	s.time = snap.time
	s.steps = snap.steps
	s.mesh.Restore(snap.nodes)
	for i := range snap.bodies {
		*s.bodies[i] = snap.bodies[i]
	}
	s.warm = append(s.warm[:0], snap.warm...)
	s.lambda = append(s.lambda[:0], snap.lambda...)
	s.last = snap.last
}

// RestoreState returns nodes and bodies to the kinematic state of a
// snapshot, leaving time, solver statistics and the warm start untouched.
func (s *System) RestoreState(snap *Snapshot) {
	s.mesh.Restore(snap.nodes)
	for i := range snap.bodies {
		*s.bodies[i] = snap.bodies[i]
	}
}

// SetGravity replaces the gravity vector.
func (s *System) SetGravity(g mgl64.Vec3) {
	s.cfg.Gravity = g
}

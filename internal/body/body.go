// Package body implements rigid bodies with six degrees of freedom.
//
// Velocity coordinates are [v, ω] with both the linear and the angular
// velocity expressed in the world frame. Fixed bodies keep their pose and
// contribute no degrees of freedom.
package body

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/geom"
)

// DOF is the number of velocity coordinates of a free body.
const DOF = 6

// ErrInvalidMass indicates a negative or non-finite mass or inertia.
var ErrInvalidMass = errors.New("body: invalid mass properties")

// Body is a rigid body. Inertia is the body-frame inertia tensor about the
// center of mass.
type Body struct {
	Name    string
	Pos     mgl64.Vec3
	Rot     mgl64.Quat
	Vel     mgl64.Vec3
	AngVel  mgl64.Vec3
	Mass    float64
	Inertia mgl64.Mat3
	Fixed   bool

	// Offset is the first global DOF index, or -1 when the body has none.
	Offset int
}

// New returns a body at pos with identity orientation. A zero mass is
// accepted; the system rejects it later as singular if the body is free.
func New(pos mgl64.Vec3, mass float64, inertia mgl64.Mat3) (*Body, error) {
	if mass < 0 || math.IsNaN(mass) || math.IsInf(mass, 0) {
		return nil, fmt.Errorf("%w: mass %g", ErrInvalidMass, mass)
	}
	for _, v := range inertia {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite inertia", ErrInvalidMass)
		}
	}
	return &Body{
		Pos:     pos,
		Rot:     mgl64.QuatIdent(),
		Mass:    mass,
		Inertia: inertia,
		Offset:  -1,
	}, nil
}

// NewCylinder returns a solid cylinder whose axis is the body y axis, with
// mass and inertia computed from its density.
func NewCylinder(radius, height, density float64, pos mgl64.Vec3) (*Body, error) {
	if !(radius > 0) || !(height > 0) || !(density > 0) {
		return nil, fmt.Errorf("%w: cylinder r=%g h=%g rho=%g", ErrInvalidMass, radius, height, density)
	}
	m := density * math.Pi * radius * radius * height
	axial := 0.5 * m * radius * radius
	transverse := m * (3*radius*radius + height*height) / 12
	return New(pos, m, mgl64.Diag3(mgl64.Vec3{transverse, axial, transverse}))
}

// Frame returns the current pose.
func (b *Body) Frame() geom.Frame {
	return geom.Frame{Pos: b.Pos, Rot: b.Rot}
}

// WorldInertia returns R I Rᵀ.
func (b *Body) WorldInertia() mgl64.Mat3 {
	return geom.Similar(b.Frame().Matrix(), b.Inertia)
}

// Forces returns the world-frame force and torque acting on the body:
// weight and the gyroscopic term −ω×(Iω).
func (b *Body) Forces(gravity mgl64.Vec3) (force, torque mgl64.Vec3) {
	iw := b.WorldInertia().Mul3x1(b.AngVel)
	return gravity.Mul(b.Mass), b.AngVel.Cross(iw).Mul(-1)
}

// KineticEnergy returns ½ m v·v + ½ ω·Iω.
func (b *Body) KineticEnergy() float64 {
	iw := b.WorldInertia().Mul3x1(b.AngVel)
	return 0.5*b.Mass*b.Vel.Dot(b.Vel) + 0.5*b.AngVel.Dot(iw)
}

// Advance integrates the pose over h with the current velocities.
func (b *Body) Advance(h float64) {
	if b.Fixed {
		return
	}
	b.Pos = b.Pos.Add(b.Vel.Mul(h))
	b.Rot = geom.Rotate(b.Rot, b.AngVel, h)
}

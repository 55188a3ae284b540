// Package geom provides the vector, quaternion and coordinate frame helpers
// shared by the finite element, rigid body and constraint packages.
//
// Vectors, quaternions and 3x3 matrices are the mgl64 types; this package
// only adds the handful of operations the mechanics code needs on top of
// them.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Frame is a rigid coordinate frame: an origin and an orientation
// expressed in the parent (world) frame.
type Frame struct {
	Pos mgl64.Vec3
	Rot mgl64.Quat
}

// Identity returns the world frame.
func Identity() Frame {
	return Frame{Rot: mgl64.QuatIdent()}
}

// PointToWorld maps a point given in local coordinates to the parent frame.
func (f Frame) PointToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return f.Pos.Add(f.Rot.Rotate(p))
}

// PointToLocal maps a parent-frame point to local coordinates.
func (f Frame) PointToLocal(p mgl64.Vec3) mgl64.Vec3 {
	return f.Rot.Conjugate().Rotate(p.Sub(f.Pos))
}

// DirToWorld rotates a local direction into the parent frame.
func (f Frame) DirToWorld(d mgl64.Vec3) mgl64.Vec3 {
	return f.Rot.Rotate(d)
}

// DirToLocal rotates a parent-frame direction into local coordinates.
func (f Frame) DirToLocal(d mgl64.Vec3) mgl64.Vec3 {
	return f.Rot.Conjugate().Rotate(d)
}

// Matrix returns the rotation matrix of the frame.
func (f Frame) Matrix() mgl64.Mat3 {
	return f.Rot.Mat4().Mat3()
}

// Skew returns the cross product matrix of a, so that Skew(a).Mul3x1(b)
// equals a.Cross(b).
func Skew(a mgl64.Vec3) mgl64.Mat3 {
	// column major
	return mgl64.Mat3{
		0, a.Z(), -a.Y(),
		-a.Z(), 0, a.X(),
		a.Y(), -a.X(), 0,
	}
}

// Rotate advances orientation q by the world-frame angular velocity w
// held constant over h.
func Rotate(q mgl64.Quat, w mgl64.Vec3, h float64) mgl64.Quat {
	return RotateBy(q, w.Mul(h))
}

// RotateBy applies a world-frame rotation vector (axis times angle) to q.
func RotateBy(q mgl64.Quat, theta mgl64.Vec3) mgl64.Quat {
	angle := theta.Len()
	if angle < 1e-15 {
		return q
	}
	dq := mgl64.QuatRotate(angle, theta.Mul(1/angle))
	return dq.Mul(q).Normalize()
}

// Similar returns R A Rᵀ, the world-frame form of a body-frame tensor.
func Similar(r, a mgl64.Mat3) mgl64.Mat3 {
	return r.Mul3(a).Mul3(r.Transpose())
}

// Finite reports whether every component of v is a real number.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

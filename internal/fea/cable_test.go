package fea

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func testSection(t *testing.T) *Section {
	t.Helper()
	sec, err := NewSection(0.01, 1e7, 0.01)
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	return sec
}

func straightPair(t *testing.T, l float64) (*Mesh, *Cable) {
	t.Helper()
	m := NewMesh()
	a := m.AddNode(mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{1, 0, 0})
	b := m.AddNode(mgl64.Vec3{l, 0.5, 0}, mgl64.Vec3{1, 0, 0})
	c, err := m.AddCable(a, b, testSection(t))
	if err != nil {
		t.Fatalf("AddCable: %v", err)
	}
	return m, c
}

func TestNewSection_Validation(t *testing.T) {
	tests := []struct {
		name                 string
		diameter, e, damping float64
		wantErr              bool
	}{
		{"valid", 0.01, 1e7, 0.01, false},
		{"zero damping", 0.01, 1e7, 0, false},
		{"zero diameter", 0, 1e7, 0, true},
		{"negative modulus", 0.01, -1, 0, true},
		{"negative damping", 0.01, 1e7, -0.1, true},
		{"NaN diameter", math.NaN(), 1e7, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSection(tt.diameter, tt.e, tt.damping)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("expected ErrInvalidGeometry, got %v", err)
			}
		})
	}
}

func TestSection_Properties(t *testing.T) {
	sec := testSection(t)
	if got, want := sec.Area(), math.Pi*0.01*0.01/4; math.Abs(got-want) > 1e-18 {
		t.Errorf("Area = %v, want %v", got, want)
	}
	if got, want := sec.Inertia(), math.Pi*math.Pow(0.01, 4)/64; math.Abs(got-want) > 1e-22 {
		t.Errorf("Inertia = %v, want %v", got, want)
	}
	if sec.Density != DefaultDensity {
		t.Errorf("Density = %v, want default", sec.Density)
	}
}

func TestAddCable_ZeroLengthLeavesMeshUnchanged(t *testing.T) {
	m := NewMesh()
	a := m.AddNode(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 0, 0})
	b := m.AddNode(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 0, 0})

	_, err := m.AddCable(a, b, testSection(t))
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
	if len(m.Elements()) != 0 {
		t.Errorf("mesh has %d elements after rejected cable", len(m.Elements()))
	}
	if m.NumNodes() != 2 {
		t.Errorf("node count changed: %d", m.NumNodes())
	}
}

func TestAddCable_UnknownNode(t *testing.T) {
	m := NewMesh()
	a := m.AddNode(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	if _, err := m.AddCable(a, NodeID(5), testSection(t)); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
	if _, err := m.AddCable(a, a, testSection(t)); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("self-loop: expected ErrInvalidGeometry, got %v", err)
	}
}

func TestCable_UndeformedHasNoInternalForce(t *testing.T) {
	m, c := straightPair(t, 0.08)
	out := NewLocal(cableDOF)
	c.Load(m, mgl64.Vec3{}, out)

	for i := 0; i < cableDOF; i++ {
		if math.Abs(out.F.AtVec(i)) > 1e-9 {
			t.Errorf("F[%d] = %g, want 0", i, out.F.AtVec(i))
		}
	}
}

func TestCable_RigidRotationHasNoInternalForce(t *testing.T) {
	m, c := straightPair(t, 0.08)
	q := mgl64.QuatRotate(1.0, mgl64.Vec3{0.3, 1, 0.2}.Normalize())
	origin := m.Node(0).Pos
	for id := NodeID(0); id < 2; id++ {
		n := m.Node(id)
		n.Pos = origin.Add(q.Rotate(n.Pos.Sub(origin)))
		n.Dir = q.Rotate(n.Dir)
	}

	out := NewLocal(cableDOF)
	c.Load(m, mgl64.Vec3{}, out)
	for i := 0; i < cableDOF; i++ {
		if math.Abs(out.F.AtVec(i)) > 1e-8 {
			t.Errorf("F[%d] = %g after rigid rotation", i, out.F.AtVec(i))
		}
	}
}

func TestCable_UniformStretch(t *testing.T) {
	l := 0.1
	s := 0.01
	m, c := straightPair(t, l)
	m.Node(1).Pos = m.Node(0).Pos.Add(mgl64.Vec3{l * (1 + s), 0, 0})
	m.Node(0).Dir = mgl64.Vec3{1 + s, 0, 0}
	m.Node(1).Dir = mgl64.Vec3{1 + s, 0, 0}

	out := NewLocal(cableDOF)
	c.Load(m, mgl64.Vec3{}, out)

	sec := c.Section()
	eps := 0.5 * ((1+s)*(1+s) - 1)
	tension := sec.YoungModulus * sec.Area() * eps * (1 + s)

	if got := out.F.AtVec(6); math.Abs(got+tension) > 1e-9*tension {
		t.Errorf("tip axial force = %g, want %g", got, -tension)
	}
	if got := out.F.AtVec(0); math.Abs(got-tension) > 1e-9*tension {
		t.Errorf("root axial force = %g, want %g", got, tension)
	}
	if got := c.Strain(m, 0.5); math.Abs(got-eps) > 1e-12 {
		t.Errorf("Strain = %g, want %g", got, eps)
	}
	if got := c.Curvature(m, 0.3); got > 1e-9 {
		t.Errorf("Curvature = %g, want 0", got)
	}
}

func TestCable_TangentMatchesFiniteDifference(t *testing.T) {
	m, c := straightPair(t, 0.1)
	// a generic, bent and stretched configuration
	m.Node(0).Dir = mgl64.Vec3{0.9, 0.3, -0.1}
	m.Node(1).Pos = mgl64.Vec3{0.095, 0.52, 0.01}
	m.Node(1).Dir = mgl64.Vec3{1.05, -0.2, 0.15}

	out := NewLocal(cableDOF)
	c.Load(m, mgl64.Vec3{}, out)

	var kmax float64
	for i := 0; i < cableDOF; i++ {
		for j := 0; j < cableDOF; j++ {
			kmax = math.Max(kmax, math.Abs(out.K.At(i, j)))
		}
	}

	coord := func(j int) *float64 {
		n := m.Node(c.nodes[j/NodeDOF])
		k := j % NodeDOF
		if k < 3 {
			return &n.Pos[k]
		}
		return &n.Dir[k-3]
	}

	const h = 1e-7
	plus, minus := NewLocal(cableDOF), NewLocal(cableDOF)
	for j := 0; j < cableDOF; j++ {
		p := coord(j)
		orig := *p
		*p = orig + h
		c.Load(m, mgl64.Vec3{}, plus)
		*p = orig - h
		c.Load(m, mgl64.Vec3{}, minus)
		*p = orig

		for i := 0; i < cableDOF; i++ {
			fd := -(plus.F.AtVec(i) - minus.F.AtVec(i)) / (2 * h)
			if math.Abs(fd-out.K.At(i, j)) > 1e-5*kmax {
				t.Errorf("K[%d][%d] = %g, finite difference %g", i, j, out.K.At(i, j), fd)
			}
		}
	}
}

func TestCable_MassMatrix(t *testing.T) {
	m, c := straightPair(t, 0.08)
	out := NewLocal(cableDOF)
	c.Load(m, mgl64.Vec3{}, out)

	// rigid translation along each axis carries the full element mass
	for axis := 0; axis < 3; axis++ {
		u := make([]float64, cableDOF)
		u[axis] = 1
		u[6+axis] = 1
		var q float64
		for i := range u {
			for j := range u {
				q += u[i] * out.M.At(i, j) * u[j]
			}
		}
		if math.Abs(q-c.Mass()) > 1e-12 {
			t.Errorf("axis %d: uᵀMu = %g, want %g", axis, q, c.Mass())
		}
	}

	lm := c.LumpedMasses()
	if math.Abs(lm[0]+lm[1]-c.Mass()) > 1e-15 {
		t.Errorf("lumped masses %v do not sum to %g", lm, c.Mass())
	}
}

func TestCable_GravityIsLumped(t *testing.T) {
	m, c := straightPair(t, 0.08)
	g := mgl64.Vec3{0, -9.81, 0}
	out := NewLocal(cableDOF)
	c.Load(m, g, out)

	half := 0.5 * c.Mass()
	for _, i := range []int{1, 7} {
		if got := out.F.AtVec(i); math.Abs(got-half*g[1]) > 1e-9 {
			t.Errorf("F[%d] = %g, want %g", i, got, half*g[1])
		}
	}
	for _, i := range []int{3, 4, 5, 9, 10, 11} {
		if got := out.F.AtVec(i); math.Abs(got) > 1e-9 {
			t.Errorf("direction DOF %d loaded by gravity: %g", i, got)
		}
	}
}

func TestCable_RayleighDampingForce(t *testing.T) {
	m, c := straightPair(t, 0.08)
	m.Node(0).Vel = mgl64.Vec3{0.1, -0.3, 0.2}
	m.Node(1).DirVel = mgl64.Vec3{0, 0.5, -0.1}

	out := NewLocal(cableDOF)
	c.Load(m, mgl64.Vec3{}, out)

	beta := c.Section().RayleighDamping
	for i := 0; i < cableDOF; i++ {
		want := -beta * out.KV.AtVec(i)
		if math.Abs(out.F.AtVec(i)-want) > 1e-9*math.Max(1, math.Abs(want)) {
			t.Errorf("F[%d] = %g, want %g", i, out.F.AtVec(i), want)
		}
	}
}

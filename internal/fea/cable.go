package fea

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
)

const (
	cableDOF = 2 * NodeDOF

	// Gauss points along the element: the axial integrand is of degree 8
	// in ξ, the bending one of degree 2.
	axialPoints = 5
	bendPoints  = 3

	minLength = 1e-9
)

var (
	axialXi, axialW = gaussLegendre(axialPoints)
	bendXi, bendW   = gaussLegendre(bendPoints)
)

func gaussLegendre(n int) (xi, w []float64) {
	xi = make([]float64, n)
	w = make([]float64, n)
	quad.Legendre{}.FixedLocations(xi, w, 0, 1)
	return xi, w
}

// hermite evaluates the cubic shape functions at ξ ∈ [0, 1] for an element
// of reference length l, with their first and second ξ derivatives. Index
// order is rA, dA, rB, dB.
func hermite(xi, l float64) (n, dn, ddn [4]float64) {
	x2 := xi * xi
	x3 := x2 * xi
	n = [4]float64{1 - 3*x2 + 2*x3, l * (xi - 2*x2 + x3), 3*x2 - 2*x3, l * (-x2 + x3)}
	dn = [4]float64{-6*xi + 6*x2, l * (1 - 4*xi + 3*x2), 6*xi - 6*x2, l * (-2*xi + 3*x2)}
	ddn = [4]float64{-6 + 12*xi, l * (-4 + 6*xi), 6 - 12*xi, l * (-2 + 6*xi)}
	return n, dn, ddn
}

// Cable is a shear-undeformable ANCF beam element for slender cables.
//
// Strain energy is ½∫EA ε² dx + ½∫EI r_xx·r_xx dx with ε = ½(r_x·r_x - 1), so
// the axial term is geometrically nonlinear and the bending term yields a
// constant stiffness matrix.
type Cable struct {
	nodes  [2]NodeID
	sec    *Section
	length float64
	mass   *mat.SymDense
	bend   *mat.SymDense
}

// NewCable builds an element between nodes a and b located at pa and pb.
// The reference length is |pb - pa|.
func NewCable(a, b NodeID, pa, pb mgl64.Vec3, sec *Section) (*Cable, error) {
	if sec == nil {
		return nil, fmt.Errorf("%w: cable without section", ErrInvalidGeometry)
	}
	if err := sec.Validate(); err != nil {
		return nil, err
	}
	l := pb.Sub(pa).Len()
	if a == b || !(l > minLength) {
		return nil, fmt.Errorf("%w: zero-length cable between nodes %d and %d", ErrInvalidGeometry, a, b)
	}

	c := &Cable{nodes: [2]NodeID{a, b}, sec: sec, length: l}

	var mb, kb [4][4]float64
	for q, xi := range axialXi {
		n, _, _ := hermite(xi, l)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				mb[i][j] += axialW[q] * n[i] * n[j]
			}
		}
	}
	for q, xi := range bendXi {
		_, _, ddn := hermite(xi, l)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				kb[i][j] += bendW[q] * ddn[i] * ddn[j]
			}
		}
	}

	ei := sec.YoungModulus * sec.Inertia()
	c.mass = expandBlocks(mb, sec.LinearDensity()*l)
	c.bend = expandBlocks(kb, ei/(l*l*l))
	return c, nil
}

// expandBlocks turns 4x4 scalar couplings into the 12x12 matrix with
// scale·b[i][j]·I₃ blocks.
func expandBlocks(b [4][4]float64, scale float64) *mat.SymDense {
	s := mat.NewSymDense(cableDOF, nil)
	for i := 0; i < 4; i++ {
		for j := i; j < 4; j++ {
			for a := 0; a < 3; a++ {
				s.SetSym(3*i+a, 3*j+a, scale*b[i][j])
			}
		}
	}
	return s
}

// NodeIDs implements Element.
func (c *Cable) NodeIDs() []NodeID { return c.nodes[:] }

// Section returns the element section.
func (c *Cable) Section() *Section { return c.sec }

// Length returns the reference length.
func (c *Cable) Length() float64 { return c.length }

// Mass returns the element mass.
func (c *Cable) Mass() float64 { return c.sec.LinearDensity() * c.length }

// LumpedMasses implements Element.
func (c *Cable) LumpedMasses() []float64 {
	half := 0.5 * c.Mass()
	return []float64{half, half}
}

func (c *Cable) state(m *Mesh) (e, v [4]mgl64.Vec3) {
	na, nb := m.Node(c.nodes[0]), m.Node(c.nodes[1])
	e = [4]mgl64.Vec3{na.Pos, na.Dir, nb.Pos, nb.Dir}
	v = [4]mgl64.Vec3{na.Vel, na.DirVel, nb.Vel, nb.DirVel}
	return e, v
}

func flatten(x [4]mgl64.Vec3) []float64 {
	out := make([]float64, 0, cableDOF)
	for _, p := range x {
		out = append(out, p[:]...)
	}
	return out
}

// Load implements Element.
func (c *Cable) Load(m *Mesh, gravity mgl64.Vec3, out *Local) {
	e, v := c.state(m)
	l := c.length
	ea := c.sec.YoungModulus * c.sec.Area()

	var k [cableDOF][cableDOF]float64
	fint := make([]float64, cableDOF)

	for q, xi := range axialXi {
		_, dn, _ := hermite(xi, l)
		var rx mgl64.Vec3
		for i := 0; i < 4; i++ {
			rx = rx.Add(e[i].Mul(dn[i]))
		}
		rp := rx.Mul(1 / l)
		eps := 0.5 * (rp.Dot(rp) - 1)
		w := axialW[q]

		for i := 0; i < 4; i++ {
			for a := 0; a < 3; a++ {
				fint[3*i+a] += ea * w * eps * dn[i] * rp[a]
			}
			for j := 0; j < 4; j++ {
				s := ea / l * w * dn[i] * dn[j]
				for a := 0; a < 3; a++ {
					for b := 0; b < 3; b++ {
						val := rp[a] * rp[b]
						if a == b {
							val += eps
						}
						k[3*i+a][3*j+b] += s * val
					}
				}
			}
		}
	}

	coords := flatten(e)
	for i := 0; i < cableDOF; i++ {
		for j := 0; j < cableDOF; j++ {
			kb := c.bend.At(i, j)
			k[i][j] += kb
			fint[i] += kb * coords[j]
		}
	}

	beta, alpha := c.sec.RayleighDamping, c.sec.MassDamping
	for i := 0; i < cableDOF; i++ {
		for j := i; j < cableDOF; j++ {
			mij := c.mass.At(i, j)
			out.K.SetSym(i, j, k[i][j])
			out.M.SetSym(i, j, mij)
			out.R.SetSym(i, j, beta*k[i][j]+alpha*mij)
		}
	}

	vel := mat.NewVecDense(cableDOF, flatten(v))
	out.KV.MulVec(out.K, vel)
	var rv mat.VecDense
	rv.MulVec(out.R, vel)

	half := 0.5 * c.Mass()
	for i := 0; i < cableDOF; i++ {
		var fext float64
		switch {
		case i < 3:
			fext = half * gravity[i]
		case i >= 6 && i < 9:
			fext = half * gravity[i-6]
		}
		out.F.SetVec(i, fext-fint[i]-rv.AtVec(i))
	}
}

// Strain returns the axial strain ε at ξ ∈ [0, 1].
func (c *Cable) Strain(m *Mesh, xi float64) float64 {
	e, _ := c.state(m)
	_, dn, _ := hermite(xi, c.length)
	var rx mgl64.Vec3
	for i := 0; i < 4; i++ {
		rx = rx.Add(e[i].Mul(dn[i]))
	}
	rp := rx.Mul(1 / c.length)
	return 0.5 * (rp.Dot(rp) - 1)
}

// Curvature returns κ = |r_x × r_xx| / |r_x|³ at ξ ∈ [0, 1].
func (c *Cable) Curvature(m *Mesh, xi float64) float64 {
	e, _ := c.state(m)
	_, dn, ddn := hermite(xi, c.length)
	var rx, rxx mgl64.Vec3
	for i := 0; i < 4; i++ {
		rx = rx.Add(e[i].Mul(dn[i]))
		rxx = rxx.Add(e[i].Mul(ddn[i]))
	}
	rp := rx.Mul(1 / c.length)
	rpp := rxx.Mul(1 / (c.length * c.length))
	n := rp.Len()
	if n == 0 {
		return 0
	}
	return rp.Cross(rpp).Len() / (n * n * n)
}

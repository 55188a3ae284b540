package integrators

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/body"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/fea"
	"github.com/san-kum/cablefea/internal/solver"
)

type cableCase struct {
	length, diameter, modulus, density, damping float64
	elements                                    int
	clamp, pin                                  bool
}

// steelCantilever is stiff enough for small-deflection beam theory to hold.
var steelCantilever = cableCase{
	length: 1.2, diameter: 0.01, modulus: 2e11, density: 7800, damping: 0.001,
	elements: 15, clamp: true,
}

func (c cableCase) section(t testing.TB) *fea.Section {
	t.Helper()
	sec, err := fea.NewSection(c.diameter, c.modulus, c.damping)
	if err != nil {
		t.Fatal(err)
	}
	sec.Density = c.density
	return sec
}

// tipDeflection is qL⁴/(8EI) for a uniformly loaded cantilever.
func (c cableCase) tipDeflection(t testing.TB, g float64) float64 {
	sec := c.section(t)
	q := sec.LinearDensity() * g
	ei := sec.YoungModulus * sec.Inertia()
	return q * math.Pow(c.length, 4) / (8 * ei)
}

func (c cableCase) build(t testing.TB, sv solver.Solver, stepper dynamo.Timestepper) (*dynamo.System, []fea.NodeID) {
	t.Helper()
	cfg := dynamo.DefaultConfig()
	cfg.Solver = sv
	cfg.Stepper = stepper
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := dynamo.New(cfg)

	ids, err := s.BuildCable(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{c.length, 0, 0}, c.elements, c.section(t))
	if err != nil {
		t.Fatal(err)
	}
	if c.clamp {
		if err := s.FixNode(ids[0]); err != nil {
			t.Fatal(err)
		}
	}
	if c.pin {
		if _, err := s.AddPointFrame(ids[0], nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Finalize(); err != nil {
		t.Fatal(err)
	}
	return s, ids
}

func tipDrop(s *dynamo.System, tip fea.NodeID) float64 {
	return -s.Mesh().Node(tip).Pos.Y()
}

func TestStaticNonlinear_Cantilever(t *testing.T) {
	c := steelCantilever
	s, ids := c.build(t, solver.Direct{}, nil)

	if err := s.Analyze(NewStaticNonlinear()); err != nil {
		t.Fatalf("static solve: %v", err)
	}
	want := c.tipDeflection(t, 9.81)
	got := tipDrop(s, ids[len(ids)-1])
	if math.Abs(got-want) > 0.02*want {
		t.Errorf("tip deflection = %.5f, beam theory %.5f", got, want)
	}
	if s.Time() != 0 {
		t.Errorf("static analysis advanced time to %v", s.Time())
	}
}

func TestStaticLinear_Cantilever(t *testing.T) {
	c := steelCantilever
	s, ids := c.build(t, solver.Direct{}, nil)

	if err := s.Analyze(NewStaticLinear()); err != nil {
		t.Fatalf("static solve: %v", err)
	}
	want := c.tipDeflection(t, 9.81)
	if got := tipDrop(s, ids[len(ids)-1]); math.Abs(got-want) > 0.02*want {
		t.Errorf("tip deflection = %.5f, beam theory %.5f", got, want)
	}
}

func TestEulerImplicitLinearized_CantileverSettles(t *testing.T) {
	c := steelCantilever
	s, ids := c.build(t, solver.Direct{}, NewEulerImplicitLinearized())

	for i := 0; i < 500; i++ {
		if err := s.Step(0.01); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	want := c.tipDeflection(t, 9.81)
	if got := tipDrop(s, ids[len(ids)-1]); math.Abs(got-want) > 0.03*want {
		t.Errorf("settled tip deflection = %.5f, beam theory %.5f", got, want)
	}
	if v := s.Mesh().Node(ids[len(ids)-1]).Vel.Len(); v > 1e-3 {
		t.Errorf("tip still moving at %g m/s", v)
	}
	if s.Phase() != dynamo.Stepping || s.Steps() != 500 {
		t.Errorf("phase=%v steps=%d", s.Phase(), s.Steps())
	}
}

func TestEulerImplicit_CantileverSettles(t *testing.T) {
	c := steelCantilever
	s, ids := c.build(t, solver.Direct{}, NewEulerImplicit())

	for i := 0; i < 300; i++ {
		if err := s.Step(0.01); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	want := c.tipDeflection(t, 9.81)
	if got := tipDrop(s, ids[len(ids)-1]); math.Abs(got-want) > 0.03*want {
		t.Errorf("settled tip deflection = %.5f, beam theory %.5f", got, want)
	}
}

func TestPinnedCable_ConstraintHeld(t *testing.T) {
	c := cableCase{
		length: 0.8, diameter: 0.01, modulus: 1e7, density: 1000, damping: 0.01,
		elements: 8, pin: true,
	}
	s, ids := c.build(t, solver.Direct{}, NewEulerImplicitLinearized())

	for i := 0; i < 100; i++ {
		if err := s.Step(0.01); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if v := s.MaxViolation(); v > 1e-6*c.length {
			t.Fatalf("step %d: constraint violation %g", i, v)
		}
	}
	// the free end swings down below the pin
	if tipDrop(s, ids[len(ids)-1]) < 0.1 {
		t.Errorf("tip did not fall: y = %g", s.Mesh().Node(ids[len(ids)-1]).Pos.Y())
	}
}

func TestHangingCable_PinCarriesWeight(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.Solver = solver.Direct{}
	cfg.Stepper = NewEulerImplicitLinearized()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := dynamo.New(cfg)

	sec, _ := fea.NewSection(0.01, 1e7, 0.01)
	ids, err := s.BuildCable(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, -0.8, 0}, 8, sec)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPointFrame(ids[0], nil); err != nil {
		t.Fatal(err)
	}
	_ = s.Finalize()

	for i := 0; i < 30; i++ {
		if err := s.Step(0.01); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	f := s.Frame()
	if len(f.Constraints) != 1 {
		t.Fatalf("constraints in frame: %d", len(f.Constraints))
	}
	weight := s.Mesh().TotalMass() * 9.81
	r := f.Constraints[0].Reaction
	if math.Abs(r.Y()-weight) > 0.05*weight || math.Abs(r.X()) > 0.01*weight {
		t.Errorf("pin reaction = %v, want (0, %g, 0)", r, weight)
	}
}

func TestPinnedCable_MINRESConvergedSteps(t *testing.T) {
	c := cableCase{
		length: 0.8, diameter: 0.01, modulus: 1e7, density: 1000, damping: 0.01,
		elements: 8, pin: true,
	}
	s, _ := c.build(t, solver.NewMINRES(500, 1e-12), NewEulerImplicitLinearized())

	for i := 0; i < 50; i++ {
		if err := s.Step(0.01); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !s.LastSolve().Converged {
			continue
		}
		if v := s.MaxViolation(); v > 1e-6*c.length {
			t.Errorf("step %d: converged solve left violation %g", i, v)
		}
	}
}

func TestFreeCable_MomentumFollowsWeight(t *testing.T) {
	c := cableCase{
		length: 0.5, diameter: 0.01, modulus: 1e7, density: 1000, damping: 0.01,
		elements: 5,
	}
	s, _ := c.build(t, solver.Direct{}, NewEulerImplicitLinearized())

	h, n := 0.01, 20
	for i := 0; i < n; i++ {
		if err := s.Step(h); err != nil {
			t.Fatal(err)
		}
	}
	a := s.Assemble()
	u := s.TranslationMode(1)
	mv := make([]float64, len(u))
	a.M.MulVec(mv, s.Velocities())
	var p float64
	for i := range u {
		p += u[i] * mv[i]
	}

	want := s.Mesh().TotalMass() * -9.81 * h * float64(n)
	if math.Abs(p-want) > 1e-9*math.Abs(want) {
		t.Errorf("vertical momentum = %.12g, want %.12g", p, want)
	}
}

func TestZeroMassBody_Singular(t *testing.T) {
	for _, sv := range []solver.Solver{solver.NewMINRES(200, 1e-10), solver.Direct{}} {
		t.Run(sv.Name(), func(t *testing.T) {
			cfg := dynamo.DefaultConfig()
			cfg.Solver = sv
			cfg.Stepper = NewEulerImplicitLinearized()
			cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			s := dynamo.New(cfg)

			sec, _ := fea.NewSection(0.01, 1e7, 0.01)
			ids, err := s.BuildCable(mgl64.Vec3{}, mgl64.Vec3{0.4, 0, 0}, 4, sec)
			if err != nil {
				t.Fatal(err)
			}
			_ = s.FixNode(ids[0])
			ghost, _ := body.New(mgl64.Vec3{0.4, 0, 0}, 0, mgl64.Mat3{})
			if err := s.AddBody(ghost); err != nil {
				t.Fatal(err)
			}
			if _, err := s.AddPointFrame(ids[4], ghost); err != nil {
				t.Fatal(err)
			}
			_ = s.Finalize()

			before := s.Frame()
			err = s.Step(0.01)
			if !errors.Is(err, dynamo.ErrSingularSystem) {
				t.Fatalf("expected ErrSingularSystem, got %v", err)
			}
			if s.Phase() != dynamo.Failed {
				t.Errorf("phase = %v, want failed", s.Phase())
			}
			after := s.Frame()
			for i := range before.Nodes {
				if before.Nodes[i].Pos != after.Nodes[i].Pos || before.Nodes[i].Vel != after.Nodes[i].Vel {
					t.Errorf("node %d changed by failed step", i)
				}
			}
			if err := s.Step(0.01); !errors.Is(err, dynamo.ErrSingularSystem) {
				t.Errorf("second step: %v", err)
			}
		})
	}
}

func TestStatic_FreeBodyIsSingular(t *testing.T) {
	c := steelCantilever
	cfg := dynamo.DefaultConfig()
	cfg.Solver = solver.Direct{}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := dynamo.New(cfg)
	ids, _ := s.BuildCable(mgl64.Vec3{}, mgl64.Vec3{c.length, 0, 0}, 4, c.section(t))
	_ = s.FixNode(ids[0])
	b, _ := body.NewCylinder(0.02, 0.05, 1000, mgl64.Vec3{c.length, -0.025, 0})
	_ = s.AddBody(b)
	_, _ = s.AddPointFrame(ids[4], b)
	_ = s.Finalize()

	if err := s.Analyze(NewStaticLinear()); !errors.Is(err, dynamo.ErrSingularSystem) {
		t.Errorf("expected ErrSingularSystem, got %v", err)
	}
}

func TestStaticNonlinear_NonConvergence(t *testing.T) {
	c := steelCantilever
	s, ids := c.build(t, solver.Direct{}, nil)
	start := s.Mesh().Node(ids[len(ids)-1]).Pos

	a := &StaticNonlinear{MaxIterations: 1, Tolerance: 1e-15, LoadSteps: 1}
	err := s.Analyze(a)
	if !errors.Is(err, dynamo.ErrSolverNonConvergence) {
		t.Fatalf("expected ErrSolverNonConvergence, got %v", err)
	}
	if got := s.Mesh().Node(ids[len(ids)-1]).Pos; got != start {
		t.Errorf("failed analysis moved the tip to %v", got)
	}
	if s.Phase() == dynamo.Failed {
		t.Error("non-convergence must not fail the system")
	}
	if g := s.Gravity(); g.Y() != -9.81 {
		t.Errorf("gravity not restored: %v", g)
	}
}

package experiment

import (
	"context"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/solver"
)

func polylineLength(f *dynamo.Frame) float64 {
	var l float64
	for i := 1; i < len(f.Nodes); i++ {
		l += f.Nodes[i].Pos.Sub(f.Nodes[i-1].Pos).Len()
	}
	return l
}

func finite(f *dynamo.Frame) bool {
	for _, n := range f.Nodes {
		for _, v := range append(n.Pos[:], n.Vel[:]...) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

var _ = Describe("Build", func() {
	It("lays out the cable described by the config", func() {
		cfg := config.GetPreset("fea_cable")
		scene, err := Build(cfg, nil, quiet)
		Expect(err).NotTo(HaveOccurred())

		sys := scene.System
		Expect(scene.Nodes).To(HaveLen(16))
		Expect(sys.Phase()).To(Equal(dynamo.Finalized))
		Expect(sys.Mesh().Node(scene.Nodes[0]).Fixed).To(BeTrue())
		Expect(sys.DOFs()).To(Equal(15 * 6))
		Expect(sys.ConstraintRows()).To(BeZero())

		tip := sys.Mesh().Node(scene.Tip()).Pos
		Expect(tip.Sub(mgl64.Vec3{1.2, 0.5, 0}).Len()).To(BeNumerically("<", 1e-12))
		Expect(scene.Payload).To(BeNil())
	})

	It("pins the root and attaches the payload below the tip", func() {
		cfg := config.GetPreset("cable_payload")
		scene, err := Build(cfg, nil, quiet)
		Expect(err).NotTo(HaveOccurred())

		Expect(scene.Payload).NotTo(BeNil())
		Expect(scene.Payload.Pos.Y()).To(BeNumerically("~", 0.45, 1e-12))
		Expect(scene.Payload.Mass).To(BeNumerically("~", 1000*math.Pi*0.02*0.02*0.1, 1e-12))
		Expect(scene.System.ConstraintRows()).To(Equal(6))
		Expect(scene.System.DOFs()).To(Equal(16*6 + 6))
		Expect(scene.System.MaxViolation()).To(BeNumerically("<", 1e-12))
	})

	It("uses an explicit payload mass over density", func() {
		cfg := config.GetPreset("cable_payload")
		cfg.Payload.Mass = 0.1
		scene, err := Build(cfg, nil, quiet)
		Expect(err).NotTo(HaveOccurred())
		Expect(scene.Payload.Mass).To(BeNumerically("~", 0.1, 1e-12))
	})

	It("selects the configured solver", func() {
		cfg := config.GetPreset("pinned_cable")
		scene, err := Build(cfg, nil, quiet)
		Expect(err).NotTo(HaveOccurred())
		Expect(scene.System.Config().Solver).To(Equal(solver.Solver(solver.Direct{})))
	})

	It("rejects invalid configs", func() {
		cfg := config.DefaultConfig()
		cfg.Integrator = "rk4"
		_, err := Build(cfg, nil, quiet)
		Expect(err).To(MatchError(ContainSubstring("integrator")))
	})

	It("keeps DOF offsets when finalized twice", func() {
		scene, err := Build(config.GetPreset("cable_payload"), nil, quiet)
		Expect(err).NotTo(HaveOccurred())

		sys := scene.System
		offsets := func() []int {
			out := make([]int, 0, len(scene.Nodes)+1)
			for _, id := range scene.Nodes {
				out = append(out, sys.Mesh().Node(id).Offset)
			}
			return append(out, scene.Payload.Offset)
		}
		before := offsets()
		Expect(sys.Finalize()).To(Succeed())
		Expect(offsets()).To(Equal(before))
		Expect(sys.DOFs()).To(Equal(16*6 + 6))
	})
})

var _ = Describe("Registry", func() {
	reg := NewRegistry()

	It("lists the registered schemes", func() {
		Expect(reg.ListIntegrators()).To(ConsistOf(config.Integrators()))
		Expect(reg.ListSolvers()).To(ConsistOf(config.Solvers()))
		Expect(reg.ListAnalyses()).To(ConsistOf("static_linear", "static_nonlinear"))
	})

	It("reports unknown names", func() {
		_, err := reg.GetIntegrator("rk4")
		Expect(err).To(HaveOccurred())
		_, err = reg.GetSolver(config.SolverConfig{Type: "cg"})
		Expect(err).To(HaveOccurred())
		_, err = reg.GetAnalysis("modal")
		Expect(err).To(HaveOccurred())
	})

	It("configures MINRES from the solver settings", func() {
		sv, err := reg.GetSolver(config.SolverConfig{Type: "minres", MaxIterations: 50, Tolerance: 1e-8})
		Expect(err).NotTo(HaveOccurred())
		Expect(sv).To(Equal(solver.Solver(solver.NewMINRES(50, 1e-8))))
	})
})

var _ = Describe("Scenarios", func() {
	ctx := context.Background()

	It("runs the reference cable to a hanging state", func() {
		exp := New(config.GetPreset("fea_cable"), quiet)
		Expect(exp.Setup(nil)).To(Succeed())

		res, err := exp.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StepsTaken).To(Equal(500))

		final := res.Final()
		Expect(finite(final)).To(BeTrue())
		Expect(final.Time).To(BeNumerically("~", 5.0, 1e-9))
		Expect(res.Metrics["tip_sag"]).To(BeNumerically(">", 0.3))
		Expect(res.Metrics["stability"]).To(BeNumerically("==", 1))
		Expect(polylineLength(final)).To(BeNumerically("~", 1.2, 0.06))
	})

	It("holds the pin and payload links on every converged step", func() {
		cfg := config.GetPreset("cable_payload")
		Expect(cfg.Integrator).To(Equal("euler_implicit_linearized"))
		scene, err := Build(cfg, nil, quiet)
		Expect(err).NotTo(HaveOccurred())
		sys := scene.System

		limit := 1e-6 * cfg.Cable.Length
		converged := 0
		for i := 1; i <= cfg.Steps; i++ {
			Expect(sys.Step(cfg.Dt)).To(Succeed())
			if !sys.LastSolve().Converged {
				continue
			}
			converged++
			Expect(sys.MaxViolation()).To(BeNumerically("<", limit), "step %d", i)
		}
		Expect(converged).To(BeNumerically(">", cfg.Steps/2))
	})

	It("drifts off the payload link without projection", func() {
		cfg := config.GetPreset("cable_payload")
		cfg.Projection.MaxPasses = 0
		cfg.Solver.Type = "direct"
		scene, err := Build(cfg, nil, quiet)
		Expect(err).NotTo(HaveOccurred())

		var worst float64
		for i := 0; i < 300; i++ {
			Expect(scene.System.Step(cfg.Dt)).To(Succeed())
			worst = math.Max(worst, scene.System.MaxViolation())
		}
		Expect(worst).To(BeNumerically(">", 1e-6*cfg.Cable.Length))
	})

	It("settles the steel cantilever near beam theory", func() {
		cfg := config.GetPreset("steel_cantilever")
		exp := New(cfg, quiet)
		Expect(exp.Setup(nil)).To(Succeed())

		res, err := exp.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		area := math.Pi * 0.01 * 0.01 / 4
		inertia := math.Pi * math.Pow(0.01, 4) / 64
		q := 7800 * area * 9.81
		want := q * math.Pow(1.2, 4) / (8 * 2e11 * inertia)
		Expect(res.Metrics["tip_sag"]).To(BeNumerically("~", want, 0.03*want))
		Expect(res.Metrics["kinetic_energy"]).To(BeNumerically("<", 1e-6))

		// first bending mode, 1.875² / 2π · sqrt(EI / ρAL⁴)
		f1 := 1.875 * 1.875 / (2 * math.Pi) * math.Sqrt(2e11*inertia/(7800*area*math.Pow(1.2, 4)))
		Expect(res.Metrics["tip_frequency"]).To(BeNumerically("~", f1, 1.0))
	})

	It("matches the static solution of the steel cantilever", func() {
		exp := New(config.GetPreset("steel_cantilever"), quiet)
		Expect(exp.Setup(nil)).To(Succeed())

		frame, err := exp.Analyze("static_nonlinear")
		Expect(err).NotTo(HaveOccurred())
		tip, ok := frame.Node(exp.Scene().Tip())
		Expect(ok).To(BeTrue())
		Expect(tip.Pos.Y()).To(BeNumerically("<", 0.5))
		Expect(frame.Time).To(BeZero())
	})

	It("sags further with heavier payloads", func() {
		base := config.GetPreset("steel_cantilever")
		base.Steps = 300
		masses := []float64{0.05, 0.1, 0.2}

		points, err := SweepPayload(ctx, base, masses, quiet)
		Expect(err).NotTo(HaveOccurred())
		Expect(points).To(HaveLen(3))

		for i, p := range points {
			Expect(p.Mass).To(Equal(masses[i]))
			Expect(p.Final.Step).To(Equal(300))
			Expect(p.Metrics["max_violation"]).To(BeNumerically("<", 1e-6*base.Cable.Length))
		}
		Expect(points[1].Metrics["tip_sag"]).To(BeNumerically(">", points[0].Metrics["tip_sag"]))
		Expect(points[2].Metrics["tip_sag"]).To(BeNumerically(">", points[1].Metrics["tip_sag"]))
	})

	It("rejects empty and non-positive sweeps", func() {
		_, err := SweepPayload(ctx, config.DefaultConfig(), nil, quiet)
		Expect(err).To(HaveOccurred())
		_, err = SweepPayload(ctx, config.DefaultConfig(), []float64{0.1, 0}, quiet)
		Expect(err).To(HaveOccurred())
	})

	It("stops at cancellation", func() {
		exp := New(config.GetPreset("fea_cable"), quiet)
		Expect(exp.Setup(nil)).To(Succeed())

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		res, err := exp.Run(canceled)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.StepsTaken).To(BeZero())
	})

	It("refuses to run before setup", func() {
		_, err := New(config.DefaultConfig(), quiet).Run(ctx)
		Expect(err).To(HaveOccurred())
	})
})

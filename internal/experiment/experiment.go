// Package experiment turns a scene configuration into a ready to run
// system and drives single runs and payload sweeps.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/body"
	"github.com/san-kum/cablefea/internal/config"
	"github.com/san-kum/cablefea/internal/dynamo"
	"github.com/san-kum/cablefea/internal/fea"
	"github.com/san-kum/cablefea/internal/sim"
)

// Scene is a built system together with the handles a caller needs to
// observe it.
type Scene struct {
	System  *dynamo.System
	Nodes   []fea.NodeID
	Payload *body.Body
}

// Tip is the free end node of the cable.
func (sc *Scene) Tip() fea.NodeID { return sc.Nodes[len(sc.Nodes)-1] }

func vec(v []float64) mgl64.Vec3 { return mgl64.Vec3{v[0], v[1], v[2]} }

// TipOf returns the free end node id of the cable described by cfg and
// its undeformed position.
func TipOf(cfg *config.Config) (fea.NodeID, mgl64.Vec3) {
	c := cfg.Cable
	end := vec(c.Start).Add(vec(c.Direction).Normalize().Mul(c.Length))
	return fea.NodeID(c.Elements), end
}

// Build validates cfg and assembles a finalized system from it.
func Build(cfg *config.Config, reg *Registry, log *slog.Logger) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}

	stepper, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	sv, err := reg.GetSolver(cfg.Solver)
	if err != nil {
		return nil, err
	}

	sys := dynamo.New(dynamo.Config{
		Gravity:   vec(cfg.Gravity),
		Solver:    sv,
		Stepper:   stepper,
		WarmStart: cfg.WarmStart,
		Projection: dynamo.Projection{
			MaxPasses: cfg.Projection.MaxPasses,
			Tolerance: cfg.Projection.Tolerance,
		},
		Workers: cfg.Workers,
		Logger:  log.With("scene", cfg.Scene),
	})

	c := cfg.Cable
	sec, err := fea.NewSection(c.Diameter, c.YoungModulus, c.Damping)
	if err != nil {
		return nil, err
	}
	sec.Density = c.Density

	_, end := TipOf(cfg)
	ids, err := sys.BuildCable(vec(c.Start), end, c.Elements, sec)
	if err != nil {
		return nil, err
	}
	scene := &Scene{System: sys, Nodes: ids}

	switch c.Support {
	case config.SupportFixed:
		err = sys.FixNode(ids[0])
	case config.SupportPin:
		_, err = sys.AddPointFrame(ids[0], nil)
	}
	if err != nil {
		return nil, err
	}

	if p := cfg.Payload; p != nil {
		b, err := payload(p, end)
		if err != nil {
			return nil, err
		}
		if err := sys.AddBody(b); err != nil {
			return nil, err
		}
		if _, err := sys.AddPointFrame(scene.Tip(), b); err != nil {
			return nil, err
		}
		scene.Payload = b
	}

	if err := sys.Finalize(); err != nil {
		return nil, err
	}
	return scene, nil
}

// payload hangs a cylinder with its top face center at tip.
func payload(p *config.PayloadConfig, tip mgl64.Vec3) (*body.Body, error) {
	density := p.Density
	if p.Mass > 0 {
		density = p.Mass / (math.Pi * p.Radius * p.Radius * p.Height)
	}
	b, err := body.NewCylinder(p.Radius, p.Height, density, tip.Add(mgl64.Vec3{0, -p.Height / 2, 0}))
	if err != nil {
		return nil, err
	}
	b.Name = "payload"
	return b, nil
}

type Experiment struct {
	cfg       *config.Config
	reg       *Registry
	log       *slog.Logger
	scene     *Scene
	simulator *sim.Simulator
}

func New(cfg *config.Config, log *slog.Logger) *Experiment {
	return &Experiment{cfg: cfg, reg: NewRegistry(), log: log}
}

// Setup builds the scene and attaches metrics. A nil metric list selects
// the registry defaults.
func (e *Experiment) Setup(metrics []sim.Metric) error {
	scene, err := Build(e.cfg, e.reg, e.log)
	if err != nil {
		return err
	}
	if metrics == nil {
		metrics = e.reg.DefaultMetrics(e.cfg)
	}
	e.scene = scene
	e.simulator = sim.New(scene.System)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.SimConfig())
}

// SimConfig is the run loop configuration derived from the scene config.
func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{Dt: e.cfg.Dt, Steps: e.cfg.Steps, RecordEvery: e.cfg.RecordEvery}
}

// Simulator returns the underlying simulator for adding observers.
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }

func (e *Experiment) Scene() *Scene { return e.scene }

func (e *Experiment) Config() *config.Config { return e.cfg }

// Analyze runs a named static analysis on the built scene.
func (e *Experiment) Analyze(name string) (*dynamo.Frame, error) {
	if e.scene == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	a, err := e.reg.GetAnalysis(name)
	if err != nil {
		return nil, err
	}
	if err := e.scene.System.Analyze(a); err != nil {
		return nil, err
	}
	return e.scene.System.Frame(), nil
}

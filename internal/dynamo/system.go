package dynamo

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cablefea/internal/body"
	"github.com/san-kum/cablefea/internal/fea"
	"github.com/san-kum/cablefea/internal/geom"
	"github.com/san-kum/cablefea/internal/link"
	"github.com/san-kum/cablefea/internal/solver"
)

// Phase is the lifecycle state of a System.
type Phase int

const (
	Uninitialized Phase = iota
	Finalized
	Stepping
	Failed
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Finalized:
		return "finalized"
	case Stepping:
		return "stepping"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Timestepper advances a finalized system by one step of size h.
// Implementations use the System primitives (Assemble, Solve, Advance)
// and may leave the system in any state when they return an error; the
// System restores the pre-step state.
type Timestepper interface {
	Name() string
	Step(s *System, h float64) error
}

// Analysis is a one-shot solve of the current system, such as a static
// equilibrium.
type Analysis interface {
	Name() string
	Run(s *System) error
}

// Config holds the system wide settings.
type Config struct {
	Gravity   mgl64.Vec3
	Solver    solver.Solver
	Stepper   Timestepper
	WarmStart bool
	// Projection is applied by the timesteppers after each step.
	Projection Projection
	// Workers bounds the goroutines used for element assembly; 0 uses
	// GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// DefaultConfig returns earth gravity along -y and a MINRES solver with
// warm starting and position projection. The timestepper must be supplied
// by the caller.
func DefaultConfig() Config {
	return Config{
		Gravity:    mgl64.Vec3{0, -9.81, 0},
		Solver:     solver.NewMINRES(200, 1e-10),
		WarmStart:  true,
		Projection: DefaultProjection(),
	}
}

// System is the top level container of the mechanical model.
type System struct {
	cfg         Config
	log         *slog.Logger
	mesh        *fea.Mesh
	bodies      []*body.Body
	constraints []link.Constraint

	phase  Phase
	failed error
	time   float64
	steps  int

	dofs   int
	rows   int
	active []link.Constraint
	warm   []float64
	lambda []float64
	last   solver.Result
}

// New returns an empty system.
func New(cfg Config) *System {
	if cfg.Solver == nil {
		cfg.Solver = solver.NewMINRES(200, 1e-10)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &System{
		cfg:  cfg,
		log:  log,
		mesh: fea.NewMesh(),
	}
}

// Config returns the system configuration.
func (s *System) Config() Config { return s.cfg }

// Logger returns the system logger.
func (s *System) Logger() *slog.Logger { return s.log }

// Mesh exposes the finite element mesh for read access.
func (s *System) Mesh() *fea.Mesh { return s.mesh }

// Bodies returns the registered rigid bodies.
func (s *System) Bodies() []*body.Body { return s.bodies }

// Constraints returns all registered constraints, active or not.
func (s *System) Constraints() []link.Constraint { return s.constraints }

// Gravity returns the gravity vector.
func (s *System) Gravity() mgl64.Vec3 { return s.cfg.Gravity }

// Phase returns the lifecycle state.
func (s *System) Phase() Phase { return s.phase }

// Time returns the simulated time.
func (s *System) Time() float64 { return s.time }

// Steps returns the number of completed steps.
func (s *System) Steps() int { return s.steps }

// DOFs returns the number of velocity coordinates. Zero before Finalize.
func (s *System) DOFs() int { return s.dofs }

// ConstraintRows returns the number of active constraint equations.
func (s *System) ConstraintRows() int { return s.rows }

// SetTimestepper replaces the time integration scheme.
func (s *System) SetTimestepper(t Timestepper) { s.cfg.Stepper = t }

// SetSolver replaces the linear solver and drops the warm start cache.
func (s *System) SetSolver(sv solver.Solver) {
	s.cfg.Solver = sv
	s.warm = nil
}

func (s *System) editable(what string) error {
	if s.phase != Uninitialized {
		return fmt.Errorf("%w: cannot add %s to a %s system", ErrInvalidTopology, what, s.phase)
	}
	return nil
}

// AddNode registers a cable node at pos with tangent direction dir.
func (s *System) AddNode(pos, dir mgl64.Vec3) (fea.NodeID, error) {
	if err := s.editable("node"); err != nil {
		return -1, err
	}
	if !geom.Finite(pos) || !geom.Finite(dir) || dir.Len() == 0 {
		return -1, fmt.Errorf("%w: node at %v with direction %v", ErrInvalidGeometry, pos, dir)
	}
	return s.mesh.AddNode(pos, dir), nil
}

// FixNode clamps the position and direction of a node.
func (s *System) FixNode(id fea.NodeID) error {
	if err := s.editable("fixed node"); err != nil {
		return err
	}
	if !s.mesh.Has(id) {
		return fmt.Errorf("%w: node %d", ErrInvalidTopology, id)
	}
	s.mesh.Node(id).Fixed = true
	return nil
}

// AddCable connects two registered nodes with a cable element.
func (s *System) AddCable(a, b fea.NodeID, sec *fea.Section) (*fea.Cable, error) {
	if err := s.editable("cable"); err != nil {
		return nil, err
	}
	c, err := s.mesh.AddCable(a, b, sec)
	if errors.Is(err, fea.ErrUnknownNode) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTopology, err)
	}
	return c, err
}

// BuildCable creates a straight cable of n elements from start to end and
// returns its n+1 node ids. Inputs are validated before anything is added.
func (s *System) BuildCable(start, end mgl64.Vec3, n int, sec *fea.Section) ([]fea.NodeID, error) {
	if err := s.editable("cable"); err != nil {
		return nil, err
	}
	span := end.Sub(start)
	if n < 1 || !(span.Len() > 0) {
		return nil, fmt.Errorf("%w: cable of %d elements over %v", ErrInvalidGeometry, n, span)
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: cable without section", ErrInvalidGeometry)
	}
	if err := sec.Validate(); err != nil {
		return nil, err
	}
	if span.Len()/float64(n) <= 1e-9 {
		return nil, fmt.Errorf("%w: element length %g", ErrInvalidGeometry, span.Len()/float64(n))
	}

	dir := span.Normalize()
	ids := make([]fea.NodeID, n+1)
	for i := range ids {
		ids[i] = s.mesh.AddNode(start.Add(span.Mul(float64(i)/float64(n))), dir)
	}
	for i := 0; i < n; i++ {
		if _, err := s.mesh.AddCable(ids[i], ids[i+1], sec); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// AddBody registers a rigid body.
func (s *System) AddBody(b *body.Body) error {
	if err := s.editable("body"); err != nil {
		return err
	}
	if b == nil || slices.Contains(s.bodies, b) {
		return fmt.Errorf("%w: nil or duplicate body", ErrInvalidTopology)
	}
	if b.Mass < 0 || math.IsNaN(b.Mass) || !geom.Finite(b.Pos) {
		return fmt.Errorf("%w: body %q", ErrInvalidGeometry, b.Name)
	}
	b.Offset = -1
	s.bodies = append(s.bodies, b)
	return nil
}

func (s *System) checkFrame(n fea.NodeID, b *body.Body) error {
	if !s.mesh.Has(n) {
		return fmt.Errorf("%w: node %d", ErrInvalidTopology, n)
	}
	if b != nil && !slices.Contains(s.bodies, b) {
		return fmt.Errorf("%w: body %q is not registered", ErrInvalidTopology, b.Name)
	}
	return nil
}

// AddPointFrame pins node n to body b at the node's current position. A
// nil body pins the node to the world.
func (s *System) AddPointFrame(n fea.NodeID, b *body.Body) (*link.PointFrame, error) {
	if err := s.editable("constraint"); err != nil {
		return nil, err
	}
	if err := s.checkFrame(n, b); err != nil {
		return nil, err
	}
	c, err := link.NewPointFrame(s.mesh, n, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTopology, err)
	}
	s.constraints = append(s.constraints, c)
	return c, nil
}

// AddDirFrame locks the tangent direction of node n to body b.
func (s *System) AddDirFrame(n fea.NodeID, b *body.Body) (*link.DirFrame, error) {
	if err := s.editable("constraint"); err != nil {
		return nil, err
	}
	if err := s.checkFrame(n, b); err != nil {
		return nil, err
	}
	c, err := link.NewDirFrame(s.mesh, n, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTopology, err)
	}
	s.constraints = append(s.constraints, c)
	return c, nil
}

// Finalize assigns DOF offsets and constraint rows. Calling it again is a
// no-op.
func (s *System) Finalize() error {
	if s.phase != Uninitialized {
		return nil
	}

	off := 0
	for id := fea.NodeID(0); int(id) < s.mesh.NumNodes(); id++ {
		n := s.mesh.Node(id)
		n.Offset = -1
		if !n.Fixed {
			n.Offset = off
			off += fea.NodeDOF
		}
	}
	for _, b := range s.bodies {
		b.Offset = -1
		if !b.Fixed {
			b.Offset = off
			off += body.DOF
		}
	}
	s.dofs = off

	s.active = s.active[:0]
	s.rows = 0
	for _, c := range s.constraints {
		if c.Active() {
			s.active = append(s.active, c)
			s.rows += c.Rows()
		}
	}

	s.warm = nil
	s.lambda = make([]float64, s.rows)
	s.phase = Finalized
	s.log.Info("system finalized",
		"nodes", s.mesh.NumNodes(),
		"elements", len(s.mesh.Elements()),
		"bodies", len(s.bodies),
		"dofs", s.dofs,
		"constraint_rows", s.rows)
	return nil
}

// Step advances the system by h with the configured timestepper. On error
// the state before the step is restored. A singular system moves the
// system to Failed, after which every Step returns the same error.
func (s *System) Step(h float64) error {
	switch s.phase {
	case Uninitialized:
		return fmt.Errorf("%w: step before finalize", ErrInvalidTopology)
	case Failed:
		return s.failed
	}
	if !(h > 0) || math.IsInf(h, 0) {
		return fmt.Errorf("%w: h=%g", ErrInvalidTimestep, h)
	}
	if s.cfg.Stepper == nil {
		return fmt.Errorf("%w: no timestepper configured", ErrInvalidTopology)
	}
	return s.guard(func() error { return s.cfg.Stepper.Step(s, h) }, h)
}

// Analyze runs a one-shot analysis with the same failure handling as Step.
// Simulated time does not advance.
func (s *System) Analyze(a Analysis) error {
	switch s.phase {
	case Uninitialized:
		return fmt.Errorf("%w: analysis before finalize", ErrInvalidTopology)
	case Failed:
		return s.failed
	}
	return s.guard(func() error { return a.Run(s) }, 0)
}

func (s *System) guard(run func() error, h float64) error {
	snap := s.Snapshot()
	err := run()
	if err == nil && !s.finite() {
		err = fmt.Errorf("%w: non-finite state", ErrSingularSystem)
	}
	if err != nil {
		s.Restore(snap)
		serr := &StepError{Step: s.steps, Time: s.time, Wrapped: err}
		if errors.Is(err, ErrSingularSystem) {
			s.phase = Failed
			s.failed = serr
			s.log.Error("system failed", "step", s.steps, "time", s.time, "err", err)
		}
		return serr
	}

	s.time += h
	if h > 0 {
		s.steps++
	}
	s.phase = Stepping
	return nil
}

func (s *System) finite() bool {
	for id := fea.NodeID(0); int(id) < s.mesh.NumNodes(); id++ {
		n := s.mesh.Node(id)
		if !geom.Finite(n.Pos) || !geom.Finite(n.Dir) || !geom.Finite(n.Vel) || !geom.Finite(n.DirVel) {
			return false
		}
	}
	for _, b := range s.bodies {
		if !geom.Finite(b.Pos) || !geom.Finite(b.Vel) || !geom.Finite(b.AngVel) {
			return false
		}
	}
	return true
}

// MaxViolation returns the largest absolute constraint violation over the
// active constraints.
func (s *System) MaxViolation() float64 {
	var worst float64
	for _, c := range s.constraints {
		if !c.Active() {
			continue
		}
		for _, v := range c.Violation() {
			worst = math.Max(worst, math.Abs(v))
		}
	}
	return worst
}

// LastSolve returns the statistics of the most recent linear solve.
func (s *System) LastSolve() solver.Result {
	return s.last
}

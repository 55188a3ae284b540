package dynamo

import (
	"errors"
	"fmt"

	"github.com/san-kum/cablefea/internal/fea"
)

// Domain errors for system operations.
var (
	// ErrInvalidGeometry indicates a degenerate element, section or body.
	ErrInvalidGeometry = fea.ErrInvalidGeometry

	// ErrInvalidTopology indicates an edit after finalize, a step before
	// finalize or a reference to an unregistered entity.
	ErrInvalidTopology = errors.New("dynamo: invalid topology")

	// ErrSolverNonConvergence indicates an iterative solve that did not
	// reach its tolerance where convergence is required.
	ErrSolverNonConvergence = errors.New("dynamo: solver did not converge")

	// ErrSingularSystem indicates a singular or non-finite global system.
	ErrSingularSystem = errors.New("dynamo: singular system")

	// ErrInvalidTimestep indicates a non-positive or non-finite step size.
	ErrInvalidTimestep = errors.New("dynamo: invalid timestep")
)

// StepError wraps an error with the step at which it occurred.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

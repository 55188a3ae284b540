// Package dynamo owns the mechanical system: the cable mesh, rigid bodies
// and constraints, the global DOF layout and the assembly of the global
// operators consumed by the time integrators.
//
// A [System] moves through four phases:
//
//	Uninitialized  entities may be added
//	Finalized      DOF offsets and constraint rows are fixed
//	Stepping       at least one step has completed
//	Failed         a step hit a singular system; no further steps run
//
// Global velocity layout is all free nodes (6 DOFs each, in creation order)
// followed by all free bodies (6 DOFs each). Constraint rows follow the
// creation order of the active constraints.
//
// # Example
//
//	sys := dynamo.New(dynamo.DefaultConfig())
//	ids, _ := sys.BuildCable(start, end, 10, sec)
//	sys.FixNode(ids[0])
//	sys.Finalize()
//	for i := 0; i < 100; i++ {
//		if err := sys.Step(0.01); err != nil {
//			return err
//		}
//	}
//
// # Thread Safety
//
// A System is NOT safe for concurrent use. Element contributions are
// computed in parallel internally; independent systems may be stepped
// from different goroutines.
package dynamo

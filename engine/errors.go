package engine

import (
	"errors"
	"fmt"

	"github.com/smo-fabric/smo-placer/engine/milp"
)

var (
	// ErrInvalidInput marks malformed or missing input. Retrying with the same
	// input cannot succeed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInfeasible marks a placement that cannot exist for the given capacities,
	// demands and acceleration constraints.
	ErrInfeasible = errors.New("placement infeasible")

	// ErrReplacementRequired is returned by the scaling engine when no optimal
	// replica assignment exists on the current cluster. Callers should request a
	// new placement rather than retry with identical inputs.
	ErrReplacementRequired = errors.New("no feasible replica assignment; re-placement required")
)

// SolverError reports an optimization strategy whose solver ended without an
// optimal solution. The result must not be applied.
type SolverError struct {
	Strategy string
	Status   milp.Status
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%s: optimal placement not found (solver status %s)", e.Strategy, e.Status)
}

// Is lets errors.Is(err, ErrInfeasible) match a solver-proven infeasibility.
func (e *SolverError) Is(target error) bool {
	return target == ErrInfeasible && e.Status == milp.StatusInfeasible
}

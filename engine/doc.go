// Package engine decides where the services of an application graph run in a
// federated multi-cluster fabric and how many replicas each should have.
//
// # Reading Guide
//
//   - types.go: Cluster, Service, PlacementMatrix and PlacementRequest
//   - placement.go: the PlacementStrategy contract, strategy factory and input checks
//   - placement_heuristic.go: first-fit and green-consolidation heuristics
//   - placement_reopt.go: capacity-aware and carbon-aware re-optimization (MILP)
//   - scaling.go: the per-cluster replica scaling MILP
//
// # Errors
//
// Every failure is one of three kinds, distinguishable with errors.Is / errors.As:
//   - ErrInvalidInput: missing or malformed input; fix the input before retrying
//   - ErrInfeasible: no valid assignment exists for the given capacities
//   - *SolverError / ErrReplacementRequired: the solver ended without an
//     optimal solution; the result must not be applied
//
// None of these are fatal. A failed computation means "no decision this cycle".
//
// # Concurrency
//
// Strategies and the scaling engine are pure, synchronous computations with
// call-local state; calls may run in parallel. They hold no reservations, so
// callers contending for one cluster's capacity must serialize decisions for
// that cluster (see engine/controlloop) and re-validate before committing.
//
// Sub-packages:
//   - engine/milp: branch-and-bound MILP solver over gonum's Simplex
//   - engine/trace: decision records and summaries
//   - engine/controlloop: periodic scaling loop driving the engine
//   - engine/promsource, engine/actuator: metrics and deployment collaborators
package engine

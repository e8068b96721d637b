package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/smo-fabric/smo-placer/engine/milp"
)

// CapacityReoptimizer recomputes a placement from Current as an integer
// program, penalizing every service moved off the cluster it runs on:
//
//	min  w_dep·Σx + w_re·Σ current·(current - x)
//
// subject to one cluster per service, cluster capacity and acceleration.
type CapacityReoptimizer struct {
	Weights PlacementWeights
	Solver  milp.Options
}

func (c *CapacityReoptimizer) Name() string { return CapacityReoptimizeStrategy }

// Calculate implements PlacementStrategy. Current is required.
func (c *CapacityReoptimizer) Calculate(req *PlacementRequest) (PlacementMatrix, error) {
	if err := validateRequest(req, true); err != nil {
		return nil, err
	}
	w := c.Weights
	offset := 0.0
	for _, row := range req.Current {
		for _, v := range row {
			offset += w.Reopt * float64(v*v)
		}
	}
	cost := func(s, e int) float64 {
		return w.Deploy - w.Reopt*float64(req.Current[s][e])
	}
	return solveAssignment(c.Name(), req, cost, offset, c.Solver)
}

// CarbonReoptimizer recomputes a placement from Current, trading migrations
// against the carbon cost of the demand each cluster carries:
//
//	min  w_re·Σ current·(1 - x) + w_carbon·Σ_e carbon[e]·Σ_s x·demand[s]
//
// subject to the same constraints as CapacityReoptimizer.
type CarbonReoptimizer struct {
	Weights PlacementWeights
	Solver  milp.Options
}

func (c *CarbonReoptimizer) Name() string { return CarbonReoptimizeStrategy }

// Calculate implements PlacementStrategy. Current is required.
func (c *CarbonReoptimizer) Calculate(req *PlacementRequest) (PlacementMatrix, error) {
	if err := validateRequest(req, true); err != nil {
		return nil, err
	}
	w := c.Weights
	offset := 0.0
	for _, row := range req.Current {
		for _, v := range row {
			offset += w.Reopt * float64(v)
		}
	}
	cost := func(s, e int) float64 {
		return -w.Reopt*float64(req.Current[s][e]) +
			w.Carbon*req.Clusters[e].CarbonCost*req.Services[s].Demand()
	}
	return solveAssignment(c.Name(), req, cost, offset, c.Solver)
}

// solveAssignment builds the shared assignment program with per-cell costs
// and solves it. Only an optimal solve yields a matrix.
func solveAssignment(strategy string, req *PlacementRequest, cost func(s, e int) float64,
	offset float64, opts milp.Options) (PlacementMatrix, error) {
	numServices, numClusters := len(req.Services), len(req.Clusters)
	if numServices == 0 {
		return NewPlacementMatrix(0, numClusters), nil
	}
	if err := precheckCapacity(req); err != nil {
		return nil, err
	}
	if err := precheckAcceleration(req); err != nil {
		return nil, err
	}

	p := &milp.Problem{Offset: offset}
	x := make([][]int, numServices)
	for s, svc := range req.Services {
		x[s] = make([]int, numClusters)
		for e, cl := range req.Clusters {
			// A service needing acceleration is fixed off clusters without it,
			// for every service including the first.
			upper := 1.0
			if svc.NeedsAcceleration && !cl.HasAcceleration {
				upper = 0
			}
			x[s][e] = p.AddVar(milp.Var{Name: fmt.Sprintf("x[%d,%d]", s, e), Upper: upper, Integer: true, Cost: cost(s, e)})
		}
	}
	if start := startPlacement(req); start != nil {
		p.Start = make([]float64, len(p.Vars))
		for s := range x {
			for e, j := range x[s] {
				p.Start[j] = float64(start[s][e])
			}
		}
	}

	for s := 0; s < numServices; s++ {
		row := make(map[int]float64, numClusters)
		for e := 0; e < numClusters; e++ {
			row[x[s][e]] = 1
		}
		p.AddConstraint(fmt.Sprintf("assign[%d]", s), row, milp.EQ, 1)
	}
	for e, cl := range req.Clusters {
		col := make(map[int]float64, numServices)
		for s, svc := range req.Services {
			col[x[s][e]] = svc.Demand()
		}
		p.AddConstraint(fmt.Sprintf("capacity[%d]", e), col, milp.LE, cl.Capacity)
	}
	res := milp.Solve(p, opts)
	if res.Status != milp.StatusOptimal {
		logrus.Warnf("%s: optimal placement not found, solver status %s after %d nodes", strategy, res.Status, res.Nodes)
		return nil, &SolverError{Strategy: strategy, Status: res.Status}
	}
	logrus.Debugf("%s: objective %.4f after %d nodes", strategy, res.Objective, res.Nodes)

	placement := NewPlacementMatrix(numServices, numClusters)
	for s := range x {
		for e, j := range x[s] {
			placement[s][e] = int(math.Round(res.X[j]))
		}
	}
	return placement, nil
}

// startPlacement returns a feasible placement to seed the solver: the current
// one when it is complete and valid, otherwise the first-fit answer.
func startPlacement(req *PlacementRequest) PlacementMatrix {
	if VerifyPlacement(req, req.Current) == nil {
		return req.Current
	}
	m, err := (&FirstFit{}).Calculate(req)
	if err != nil {
		return nil
	}
	return m
}

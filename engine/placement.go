package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/smo-fabric/smo-placer/engine/milp"
)

// PlacementStrategy assigns every service of a request to exactly one cluster.
// Implementations are stateless between calls and safe for concurrent use.
type PlacementStrategy interface {
	Name() string
	Calculate(req *PlacementRequest) (PlacementMatrix, error)
}

// Strategy names accepted by NewPlacementStrategy.
const (
	FirstFitStrategy           = "first-fit"
	GreenConsolidationStrategy = "green-consolidation"
	CapacityReoptimizeStrategy = "capacity-reoptimization"
	CarbonReoptimizeStrategy   = "carbon-reoptimization"
)

// ValidPlacementStrategies is the set of recognized strategy names.
// Shared by PolicyBundle.Validate() and NewPlacementStrategy().
var ValidPlacementStrategies = map[string]bool{
	"":                         true,
	FirstFitStrategy:           true,
	GreenConsolidationStrategy: true,
	CapacityReoptimizeStrategy: true,
	CarbonReoptimizeStrategy:   true,
}

// IsValidPlacementStrategy returns true if name is a recognized strategy.
func IsValidPlacementStrategy(name string) bool {
	return ValidPlacementStrategies[name]
}

// PlacementStrategyNames returns the non-empty strategy names, sorted.
func PlacementStrategyNames() []string {
	names := make([]string, 0, len(ValidPlacementStrategies))
	for n := range ValidPlacementStrategies {
		if n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// PlacementWeights are the objective weights of the re-optimization strategies.
type PlacementWeights struct {
	Deploy float64 // per assignment (capacity-aware)
	Reopt  float64 // per service moved off its current cluster
	Carbon float64 // per core of demand times the cluster's carbon cost (carbon-aware)
}

// DefaultPlacementWeights returns w_dep=1, w_re=1, w_carbon=5: carbon
// dominates migration avoidance.
func DefaultPlacementWeights() PlacementWeights {
	return PlacementWeights{Deploy: 1.0, Reopt: 1.0, Carbon: 5.0}
}

// PlacementConfig configures strategies built by NewPlacementStrategy.
type PlacementConfig struct {
	Weights PlacementWeights
	Solver  milp.Options
}

// DefaultPlacementConfig returns default weights and solver options.
func DefaultPlacementConfig() PlacementConfig {
	return PlacementConfig{Weights: DefaultPlacementWeights(), Solver: milp.DefaultOptions()}
}

// NewPlacementStrategy creates a strategy by name.
// Valid names are defined in ValidPlacementStrategies; an empty string selects first-fit.
// Panics on unrecognized names.
func NewPlacementStrategy(name string, cfg PlacementConfig) PlacementStrategy {
	if !IsValidPlacementStrategy(name) {
		panic(fmt.Sprintf("unknown placement strategy %q", name))
	}
	switch name {
	case "", FirstFitStrategy:
		return &FirstFit{}
	case GreenConsolidationStrategy:
		return &GreenConsolidation{}
	case CapacityReoptimizeStrategy:
		return &CapacityReoptimizer{Weights: cfg.Weights, Solver: cfg.Solver}
	case CarbonReoptimizeStrategy:
		return &CarbonReoptimizer{Weights: cfg.Weights, Solver: cfg.Solver}
	default:
		panic(fmt.Sprintf("unhandled placement strategy %q", name))
	}
}

// validateRequest rejects malformed requests before any work is done.
func validateRequest(req *PlacementRequest, needCurrent bool) error {
	if req == nil {
		return fmt.Errorf("%w: nil placement request", ErrInvalidInput)
	}
	if len(req.Clusters) == 0 && len(req.Services) > 0 {
		return fmt.Errorf("%w: %d services but no clusters", ErrInvalidInput, len(req.Services))
	}
	for e, c := range req.Clusters {
		if c.Capacity < 0 || math.IsNaN(c.Capacity) || math.IsInf(c.Capacity, 0) {
			return fmt.Errorf("%w: cluster %d (%s) has invalid capacity %v", ErrInvalidInput, e, c.Name, c.Capacity)
		}
		if math.IsNaN(c.CarbonCost) || math.IsInf(c.CarbonCost, 0) {
			return fmt.Errorf("%w: cluster %d (%s) has invalid carbon cost %v", ErrInvalidInput, e, c.Name, c.CarbonCost)
		}
	}
	for s, svc := range req.Services {
		if svc.CPULimit < 0 || math.IsNaN(svc.CPULimit) || math.IsInf(svc.CPULimit, 0) {
			return fmt.Errorf("%w: service %d (%s) has invalid cpu limit %v", ErrInvalidInput, s, svc.ID, svc.CPULimit)
		}
		if svc.Replicas < 0 {
			return fmt.Errorf("%w: service %d (%s) has negative replicas %d", ErrInvalidInput, s, svc.ID, svc.Replicas)
		}
	}
	if !needCurrent {
		return nil
	}
	if req.Current == nil {
		return fmt.Errorf("%w: re-optimization requires a current placement matrix", ErrInvalidInput)
	}
	if len(req.Current) != len(req.Services) {
		return fmt.Errorf("%w: current placement has %d rows for %d services", ErrInvalidInput, len(req.Current), len(req.Services))
	}
	for s, row := range req.Current {
		if len(row) != len(req.Clusters) {
			return fmt.Errorf("%w: current placement row %d has %d columns for %d clusters", ErrInvalidInput, s, len(row), len(req.Clusters))
		}
		for e, v := range row {
			if v != 0 && v != 1 {
				return fmt.Errorf("%w: current placement [%d][%d] = %d, want 0 or 1", ErrInvalidInput, s, e, v)
			}
		}
	}
	return nil
}

// precheckCapacity runs the cheap aggregate feasibility checks: the largest
// single demand against the largest cluster, and total demand against total
// capacity.
func precheckCapacity(req *PlacementRequest) error {
	maxDemand, totalDemand := 0.0, 0.0
	for _, s := range req.Services {
		d := s.Demand()
		maxDemand = math.Max(maxDemand, d)
		totalDemand += d
	}
	maxCap, totalCap := 0.0, 0.0
	for _, c := range req.Clusters {
		maxCap = math.Max(maxCap, c.Capacity)
		totalCap += c.Capacity
	}
	if maxDemand > maxCap {
		return fmt.Errorf("%w: a single service requires %.2f CPU, more than the largest cluster (%.2f)", ErrInfeasible, maxDemand, maxCap)
	}
	if totalDemand > totalCap {
		return fmt.Errorf("%w: insufficient total cluster capacity for all services (demand %.2f, capacity %.2f)", ErrInfeasible, totalDemand, totalCap)
	}
	return nil
}

// precheckAcceleration fails when a service needs acceleration no cluster offers.
func precheckAcceleration(req *PlacementRequest) error {
	offered := false
	for _, c := range req.Clusters {
		offered = offered || c.HasAcceleration
	}
	if offered {
		return nil
	}
	for s, svc := range req.Services {
		if svc.NeedsAcceleration {
			return fmt.Errorf("%w: service %d (%s) needs acceleration but no cluster provides it", ErrInfeasible, s, svc.ID)
		}
	}
	return nil
}

// fits reports whether svc can be added to cluster c given its current usage.
func fits(svc Service, c Cluster, usage float64) bool {
	if svc.NeedsAcceleration && !c.HasAcceleration {
		return false
	}
	return usage+svc.Demand() <= c.Capacity
}

package engine

import (
	"fmt"
)

// FirstFit places services in input order on the first cluster, in input
// order, that satisfies acceleration and has room for the service's demand.
// It is deterministic and fast but not globally optimal: fragmentation can
// make it fail where a packing exists.
type FirstFit struct{}

func (f *FirstFit) Name() string { return FirstFitStrategy }

// Calculate implements PlacementStrategy. Current is ignored.
func (f *FirstFit) Calculate(req *PlacementRequest) (PlacementMatrix, error) {
	if err := validateRequest(req, false); err != nil {
		return nil, err
	}
	if len(req.Services) == 0 {
		return NewPlacementMatrix(0, len(req.Clusters)), nil
	}
	if err := precheckCapacity(req); err != nil {
		return nil, err
	}

	placement := NewPlacementMatrix(len(req.Services), len(req.Clusters))
	usage := make([]float64, len(req.Clusters))
	for s, svc := range req.Services {
		target := -1
		for e, c := range req.Clusters {
			if fits(svc, c, usage[e]) {
				target = e
				break
			}
		}
		if target < 0 {
			return nil, unplaceable(s, svc)
		}
		placement[s][target] = 1
		usage[target] += svc.Demand()
	}
	return placement, nil
}

// GreenConsolidation places each service, in input order, on the feasible
// cluster with the lowest carbon cost. Ties go to the cluster already carrying
// the most load, so low-carbon clusters fill up before new ones are opened.
type GreenConsolidation struct{}

func (g *GreenConsolidation) Name() string { return GreenConsolidationStrategy }

// Calculate implements PlacementStrategy. Current is ignored.
func (g *GreenConsolidation) Calculate(req *PlacementRequest) (PlacementMatrix, error) {
	if err := validateRequest(req, false); err != nil {
		return nil, err
	}
	if len(req.Services) == 0 {
		return NewPlacementMatrix(0, len(req.Clusters)), nil
	}
	if err := precheckCapacity(req); err != nil {
		return nil, err
	}

	placement := NewPlacementMatrix(len(req.Services), len(req.Clusters))
	usage := make([]float64, len(req.Clusters))
	for s, svc := range req.Services {
		best := -1
		for e, c := range req.Clusters {
			if !fits(svc, c, usage[e]) {
				continue
			}
			if best < 0 || greener(c, usage[e], req.Clusters[best], usage[best]) {
				best = e
			}
		}
		if best < 0 {
			return nil, unplaceable(s, svc)
		}
		placement[s][best] = 1
		usage[best] += svc.Demand()
	}
	return placement, nil
}

// greener orders candidates by carbon cost, then by current usage descending.
// Equal candidates keep the earlier cluster.
func greener(a Cluster, usageA float64, b Cluster, usageB float64) bool {
	if a.CarbonCost != b.CarbonCost {
		return a.CarbonCost < b.CarbonCost
	}
	return usageA > usageB
}

func unplaceable(s int, svc Service) error {
	return fmt.Errorf("%w: service %d (%s) with requirement %.2f could not be placed on any cluster",
		ErrInfeasible, s, svc.ID, svc.Demand())
}

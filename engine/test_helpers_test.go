package engine

import (
	"testing"

	"github.com/smo-fabric/smo-placer/engine/internal/testutil"
)

func float64Ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

// mustRequest builds a request from parallel lists, failing the test on mismatch.
func mustRequest(t *testing.T, capacities []float64, clusterAccel []bool, carbon []float64,
	cpu []float64, accel []bool, replicas []int, current PlacementMatrix) *PlacementRequest {
	t.Helper()
	req, err := NewPlacementRequest(capacities, clusterAccel, carbon, cpu, accel, replicas, current)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	return req
}

// requestFromInstance converts a generated instance into a request.
func requestFromInstance(t *testing.T, in testutil.Instance, current PlacementMatrix) *PlacementRequest {
	t.Helper()
	return mustRequest(t, in.Capacities, in.ClusterAccel, in.CarbonCosts, in.CPULimits, in.Accel, in.Replicas, current)
}

// assertPlacementInvariants checks the row, capacity and acceleration invariants.
func assertPlacementInvariants(t *testing.T, req *PlacementRequest, m PlacementMatrix) {
	t.Helper()
	demands := make([]float64, len(req.Services))
	needs := make([]bool, len(req.Services))
	for s, svc := range req.Services {
		demands[s] = svc.Demand()
		needs[s] = svc.NeedsAcceleration
	}
	capacities := make([]float64, len(req.Clusters))
	has := make([]bool, len(req.Clusters))
	for e, c := range req.Clusters {
		capacities[e] = c.Capacity
		has[e] = c.HasAcceleration
	}
	testutil.AssertRowsSumToOne(t, m)
	testutil.AssertWithinCapacity(t, m, demands, capacities)
	testutil.AssertAccelerationMet(t, m, needs, has)
}

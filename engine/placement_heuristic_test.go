package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smo-fabric/smo-placer/engine/internal/testutil"
)

// Both services fit on the accelerated first cluster.
func TestFirstFit_PacksFirstCluster(t *testing.T) {
	req := mustRequest(t, []float64{4, 4}, []bool{true, false}, nil,
		[]float64{2, 1}, []bool{true, false}, []int{1, 2}, nil)

	got, err := (&FirstFit{}).Calculate(req)

	require.NoError(t, err)
	assert.Equal(t, PlacementMatrix{{1, 0}, {1, 0}}, got)
}

// The second service overflows to the next cluster.
func TestFirstFit_OverflowsToNextCluster(t *testing.T) {
	req := mustRequest(t, []float64{3, 4}, []bool{true, false}, nil,
		[]float64{2, 1}, []bool{true, false}, []int{1, 2}, nil)

	got, err := (&FirstFit{}).Calculate(req)

	require.NoError(t, err)
	assert.Equal(t, PlacementMatrix{{1, 0}, {0, 1}}, got)
}

// A single service larger than every cluster.
func TestFirstFit_SingleServiceTooLarge(t *testing.T) {
	req := mustRequest(t, []float64{2}, []bool{false}, nil,
		[]float64{3}, []bool{false}, []int{1}, nil)

	got, err := (&FirstFit{}).Calculate(req)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInfeasible))
	assert.Nil(t, got, "no partial matrix on failure")
}

func TestFirstFit_TotalDemandExceedsCapacity(t *testing.T) {
	req := mustRequest(t, []float64{3, 3}, []bool{false, false}, nil,
		[]float64{3, 3, 2}, []bool{false, false, false}, []int{1, 1, 1}, nil)

	_, err := (&FirstFit{}).Calculate(req)

	assert.ErrorIs(t, err, ErrInfeasible)
	assert.Contains(t, err.Error(), "insufficient total cluster capacity")
}

// The admission pre-check compares against the largest cluster, so a service
// larger than the smallest cluster is still accepted.
func TestFirstFit_PrecheckUsesLargestCluster(t *testing.T) {
	req := mustRequest(t, []float64{2, 10}, []bool{false, false}, nil,
		[]float64{5}, []bool{false}, []int{1}, nil)

	got, err := (&FirstFit{}).Calculate(req)

	require.NoError(t, err)
	assert.Equal(t, PlacementMatrix{{0, 1}}, got)
}

// Fragmentation: aggregate checks pass but no cluster has room for the last service.
func TestFirstFit_FragmentationFailsPerService(t *testing.T) {
	req := mustRequest(t, []float64{5, 5}, []bool{false, false}, nil,
		[]float64{3, 3, 4}, []bool{false, false, false}, []int{1, 1, 1}, nil)

	got, err := (&FirstFit{}).Calculate(req)

	assert.ErrorIs(t, err, ErrInfeasible)
	assert.Contains(t, err.Error(), "service 2")
	assert.Nil(t, got)
}

func TestFirstFit_AccelerationNotOffered(t *testing.T) {
	req := mustRequest(t, []float64{8, 8}, []bool{false, false}, nil,
		[]float64{1}, []bool{true}, []int{1}, nil)

	_, err := (&FirstFit{}).Calculate(req)

	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestHeuristics_InputEdgeCases(t *testing.T) {
	for _, strategy := range []PlacementStrategy{&FirstFit{}, &GreenConsolidation{}} {
		t.Run(strategy.Name()+"/no services", func(t *testing.T) {
			req := &PlacementRequest{Clusters: []Cluster{{Name: "a", Capacity: 4}}}
			got, err := strategy.Calculate(req)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
		t.Run(strategy.Name()+"/no clusters", func(t *testing.T) {
			req := &PlacementRequest{Services: []Service{{ID: "s", CPULimit: 1, Replicas: 1}}}
			_, err := strategy.Calculate(req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
		t.Run(strategy.Name()+"/negative replicas", func(t *testing.T) {
			req := &PlacementRequest{
				Clusters: []Cluster{{Name: "a", Capacity: 4}},
				Services: []Service{{ID: "s", CPULimit: 1, Replicas: -1}},
			}
			_, err := strategy.Calculate(req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
		t.Run(strategy.Name()+"/nil request", func(t *testing.T) {
			_, err := strategy.Calculate(nil)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

// Three 10-core clusters in API order hybrid (0.5), fossil (1.0), green (0.0);
// services of 6, 5 and 5 cores.
func greenDemoRequest(t *testing.T, current PlacementMatrix) *PlacementRequest {
	t.Helper()
	return mustRequest(t,
		[]float64{10, 10, 10}, []bool{false, false, false}, []float64{0.5, 1.0, 0.0},
		[]float64{6, 5, 5}, []bool{false, false, false}, []int{1, 1, 1}, current)
}

func TestFirstFit_GreenDemoIgnoresCarbon(t *testing.T) {
	got, err := (&FirstFit{}).Calculate(greenDemoRequest(t, nil))

	require.NoError(t, err)
	assert.Equal(t, PlacementMatrix{{1, 0, 0}, {0, 1, 0}, {0, 1, 0}}, got)
}

// The greedy heuristic puts the large service on the green cluster, which
// fragments it and pushes both medium services to the hybrid cluster.
func TestGreenConsolidation_GreenDemo(t *testing.T) {
	got, err := (&GreenConsolidation{}).Calculate(greenDemoRequest(t, nil))

	require.NoError(t, err)
	assert.Equal(t, PlacementMatrix{{0, 0, 1}, {1, 0, 0}, {1, 0, 0}}, got)
}

// Equal carbon costs: the second service joins the cluster that already has
// load instead of opening the empty one.
func TestGreenConsolidation_TieBreaksOnUsage(t *testing.T) {
	req := mustRequest(t, []float64{10, 10}, []bool{false, true}, []float64{0.2, 0.2},
		[]float64{2, 3}, []bool{true, false}, []int{1, 1}, nil)

	got, err := (&GreenConsolidation{}).Calculate(req)
	require.NoError(t, err)
	assert.Equal(t, PlacementMatrix{{0, 1}, {0, 1}}, got)

	ff, err := (&FirstFit{}).Calculate(req)
	require.NoError(t, err)
	assert.Equal(t, PlacementMatrix{{0, 1}, {1, 0}}, ff, "first-fit spreads the same input")
}

func TestGreenConsolidation_SkipsFullGreenCluster(t *testing.T) {
	req := mustRequest(t, []float64{4, 10}, []bool{false, false}, []float64{0.0, 0.9},
		[]float64{3, 3}, []bool{false, false}, []int{1, 1}, nil)

	got, err := (&GreenConsolidation{}).Calculate(req)

	require.NoError(t, err)
	assert.Equal(t, PlacementMatrix{{1, 0}, {0, 1}}, got)
}

// A capacity failure persists when total capacity shrinks further.
func TestHeuristics_MonotonicInfeasibility(t *testing.T) {
	cpu, accel, replicas := []float64{4, 3}, []bool{false, false}, []int{1, 1}
	for _, caps := range [][]float64{{3, 3}, {2.5, 3}, {1, 1}} {
		for _, strategy := range []PlacementStrategy{&FirstFit{}, &GreenConsolidation{}} {
			req := mustRequest(t, caps, []bool{false, false}, []float64{0, 0}, cpu, accel, replicas, nil)
			_, err := strategy.Calculate(req)
			assert.ErrorIs(t, err, ErrInfeasible, "%s with capacities %v", strategy.Name(), caps)
		}
	}
}

func TestHeuristics_RandomInstancesHoldInvariants(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		in := testutil.RandomInstance(seed, 6, 3)
		req := requestFromInstance(t, in, nil)
		for _, strategy := range []PlacementStrategy{&FirstFit{}, &GreenConsolidation{}} {
			got, err := strategy.Calculate(req)
			if err != nil {
				assert.ErrorIs(t, err, ErrInfeasible, "seed %d %s", seed, strategy.Name())
				continue
			}
			assertPlacementInvariants(t, req, got)
			assert.NoError(t, VerifyPlacement(req, got))
		}
	}
}

func TestHeuristics_DoNotShareStateAcrossCalls(t *testing.T) {
	req := mustRequest(t, []float64{4, 4}, []bool{true, false}, nil,
		[]float64{2, 1}, []bool{true, false}, []int{1, 2}, nil)
	ff := &FirstFit{}
	first, err := ff.Calculate(req)
	require.NoError(t, err)
	second, err := ff.Calculate(req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

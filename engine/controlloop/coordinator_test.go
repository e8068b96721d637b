package controlloop

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smo-fabric/smo-placer/engine"
)

func TestCoordinator_ClusterLockPerCluster(t *testing.T) {
	c := NewCoordinator()

	assert.Same(t, c.ClusterLock("edge"), c.ClusterLock("edge"))
	assert.NotSame(t, c.ClusterLock("edge"), c.ClusterLock("core"))
}

func TestCoordinator_LoopsOnOneClusterShareLock(t *testing.T) {
	c := NewCoordinator()
	metrics, deployments, trigger := newFixtures(50, 80)
	a := NewLoop(twoServiceConfig("shared"), nil, metrics, deployments, deployments, trigger)
	b := NewLoop(twoServiceConfig("shared"), nil, metrics, deployments, deployments, trigger)
	other := NewLoop(twoServiceConfig("separate"), nil, metrics, deployments, deployments, trigger)

	c.Add(a)
	c.Add(b)
	c.Add(other)

	assert.Same(t, a.cluster, b.cluster)
	assert.NotSame(t, a.cluster, other.cluster)
}

// Each loop alone needs 7 of the cluster's 10 cores; the second to decide
// sees only what the first left and must ask for a re-placement.
func TestCoordinator_LoopsOnOneClusterShareCapacity(t *testing.T) {
	// GIVEN two graphs on one 10-core cluster, each starting at 1.5 cores
	c := NewCoordinator()
	metricsA, deploymentsA, triggerA := newFixtures(170, 95)
	metricsB, deploymentsB, triggerB := newFixtures(170, 95)
	a := NewLoop(twoServiceConfig("shared-capacity"), nil, metricsA, deploymentsA, deploymentsA, triggerA)
	b := NewLoop(twoServiceConfig("shared-capacity"), nil, metricsB, deploymentsB, deploymentsB, triggerB)
	c.Add(a)
	c.Add(b)
	require.NoError(t, a.Init(context.Background()))
	require.NoError(t, b.Init(context.Background()))
	assert.InDelta(t, 3.0, c.Committed("shared-capacity"), 1e-9)

	// WHEN both decide
	gotA, errA := a.Step(context.Background())
	gotB, errB := b.Step(context.Background())

	// THEN the first scales up, the second is refused and the cluster is not over-committed
	require.NoError(t, errA)
	assert.Equal(t, []int{6, 4}, gotA)
	assert.Nil(t, gotB)
	assert.ErrorIs(t, errB, engine.ErrReplacementRequired)
	assert.Equal(t, []string{"image-pipeline"}, triggerB.requests())
	assert.Empty(t, deploymentsB.calls())
	assert.InDelta(t, 8.5, c.Committed("shared-capacity"), 1e-9)
	assert.LessOrEqual(t, c.Committed("shared-capacity"), 10.0)
}

func TestCoordinator_AddCarriesInitializedFootprint(t *testing.T) {
	metrics, deployments, trigger := newFixtures(50, 80)
	l := NewLoop(twoServiceConfig("late-add"), nil, metrics, deployments, deployments, trigger)
	require.NoError(t, l.Init(context.Background()))
	c := NewCoordinator()

	c.Add(l)

	assert.InDelta(t, 1.5, c.Committed("late-add"), 1e-9)
}

func TestCoordinator_RunAllUntilCancel(t *testing.T) {
	c := NewCoordinator()
	for _, cluster := range []string{"runall-a", "runall-b"} {
		metrics, deployments, trigger := newFixtures(50, 80)
		c.Add(NewLoop(twoServiceConfig(cluster), nil, metrics, deployments, deployments, trigger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.RunAll(ctx) }()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(DecisionsTotal.WithLabelValues("runall-a", OutcomeScaled)) == 1 &&
			testutil.ToFloat64(DecisionsTotal.WithLabelValues("runall-b", OutcomeScaled)) == 1
	}, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunAll did not return after cancel")
	}
}

func TestCoordinator_RunAllStopsOnInitFailure(t *testing.T) {
	c := NewCoordinator()

	metrics, deployments, trigger := newFixtures(50, 80)
	c.Add(NewLoop(twoServiceConfig("runall-ok"), nil, metrics, deployments, deployments, trigger))

	brokenMetrics, broken, brokenTrigger := newFixtures(50, 80)
	broken.failures = 1 << 30
	cfg := twoServiceConfig("runall-broken")
	cfg.InitTimeout = 10 * time.Millisecond
	c.Add(NewLoop(cfg, nil, brokenMetrics, broken, broken, brokenTrigger))

	errc := make(chan error, 1)
	go func() { errc <- c.RunAll(context.Background()) }()

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cluster runall-broken")
	case <-time.After(5 * time.Second):
		t.Fatal("RunAll did not return after an init failure")
	}
}

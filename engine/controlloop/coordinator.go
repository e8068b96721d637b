package controlloop

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// clusterLedger serializes decisions on one cluster and records the CPU each
// loop has committed there. Engine calls hold no reservations, so a loop
// decides against the capacity the other loops have left.
type clusterLedger struct {
	sync.Mutex
	committed map[*Loop]float64
}

func newClusterLedger() *clusterLedger {
	return &clusterLedger{committed: make(map[*Loop]float64)}
}

// committedByOthers returns the CPU committed by every loop but l.
// The caller holds the lock.
func (c *clusterLedger) committedByOthers(l *Loop) float64 {
	total := 0.0
	for other, cpu := range c.committed {
		if other != l {
			total += cpu
		}
	}
	return total
}

// commit records l's footprint. The caller holds the lock.
func (c *clusterLedger) commit(l *Loop, cpu float64) {
	c.committed[l] = cpu
}

func (c *clusterLedger) total() float64 {
	c.Lock()
	defer c.Unlock()
	total := 0.0
	for _, cpu := range c.committed {
		total += cpu
	}
	return total
}

// Coordinator runs several loops and keeps per-cluster capacity bookkeeping:
// loops on one cluster decide one at a time, each against the cluster's
// capacity minus what the others have committed.
type Coordinator struct {
	mu       sync.Mutex
	clusters map[string]*clusterLedger
	loops    []*Loop
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{clusters: make(map[string]*clusterLedger)}
}

func (c *Coordinator) ledger(cluster string) *clusterLedger {
	c.mu.Lock()
	defer c.mu.Unlock()
	ledger, ok := c.clusters[cluster]
	if !ok {
		ledger = newClusterLedger()
		c.clusters[cluster] = ledger
	}
	return ledger
}

// ClusterLock returns the lock guarding decisions for cluster.
func (c *Coordinator) ClusterLock(cluster string) sync.Locker {
	return c.ledger(cluster)
}

// Committed returns the CPU the loops on cluster have committed.
func (c *Coordinator) Committed(cluster string) float64 {
	return c.ledger(cluster).total()
}

// Add registers a loop and binds it to its cluster's ledger. A loop that was
// already initialized carries its footprint over.
func (c *Coordinator) Add(l *Loop) {
	ledger := c.ledger(l.Cluster())
	l.bind(ledger)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loops = append(c.loops, l)
}

// RunAll initializes and runs every loop until ctx is done. If a loop fails
// to initialize, the others are stopped and the first error is returned.
func (c *Coordinator) RunAll(ctx context.Context) error {
	c.mu.Lock()
	loops := append([]*Loop(nil), c.loops...)
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		g.Go(func() error {
			if err := l.Init(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("cluster %s: %w", l.Cluster(), err)
			}
			l.Run(ctx)
			return nil
		})
	}
	return g.Wait()
}

// Package controlloop drives the replica scaling engine periodically for the
// services an application graph runs on one cluster.
package controlloop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/smo-fabric/smo-placer/engine"
	"github.com/smo-fabric/smo-placer/engine/trace"
)

// MetricsSource supplies the observed request rate of a service.
type MetricsSource interface {
	RequestRate(ctx context.Context, service string) (float64, error)
}

// ReplicaReader reads the live deployment state of a service.
type ReplicaReader interface {
	Replicas(ctx context.Context, service string) (int, error)
	CPULimit(ctx context.Context, service string) (float64, error)
}

// Actuator applies a replica count to a service.
type Actuator interface {
	Scale(ctx context.Context, service string, replicas int) error
}

// ReplacementTrigger asks the placement side to place a graph again.
type ReplacementTrigger interface {
	RequestReplacement(ctx context.Context, graph string) error
}

// ServiceSpec describes one managed service.
type ServiceSpec struct {
	Name              string
	Model             engine.ThroughputModel
	MaxReplicas       int
	NeedsAcceleration bool
}

// Config configures one Loop.
type Config struct {
	Graph           string
	Cluster         string
	Capacity        float64
	HasAcceleration bool
	Services        []ServiceSpec

	Interval     time.Duration // decision interval; default 5s
	InitInterval time.Duration // wait between deployment readiness checks; default 5s
	InitTimeout  time.Duration // 0 waits until the context is done
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.InitInterval <= 0 {
		c.InitInterval = 5 * time.Second
	}
	return c
}

var errNotInitialized = errors.New("scaling loop not initialized")

// Loop runs scaling decisions for one graph on one cluster.
// Step and Run must not be called concurrently on the same Loop.
type Loop struct {
	cfg      Config
	scaler   *engine.ReplicaScaler
	metrics  MetricsSource
	replicas ReplicaReader
	actuator Actuator
	trigger  ReplacementTrigger
	trace    *trace.DecisionTrace
	cluster  *clusterLedger

	previous []int
	cpu      []float64
}

// NewLoop creates a loop. trigger may be nil, in which case a needed
// re-placement is only logged.
func NewLoop(cfg Config, scaler *engine.ReplicaScaler, metrics MetricsSource, replicas ReplicaReader,
	actuator Actuator, trigger ReplacementTrigger) *Loop {
	if scaler == nil {
		scaler = engine.NewReplicaScaler()
	}
	return &Loop{
		cfg:      cfg.withDefaults(),
		scaler:   scaler,
		metrics:  metrics,
		replicas: replicas,
		actuator: actuator,
		trigger:  trigger,
		cluster:  newClusterLedger(),
	}
}

// bind moves the loop onto a shared cluster ledger.
func (l *Loop) bind(ledger *clusterLedger) {
	l.cluster = ledger
	if l.previous == nil {
		return
	}
	ledger.Lock()
	defer ledger.Unlock()
	ledger.commit(l, l.footprint())
}

// footprint is the CPU the loop's services hold at their current counts.
func (l *Loop) footprint() float64 {
	total := 0.0
	for i, r := range l.previous {
		total += float64(r) * l.cpu[i]
	}
	return total
}

// WithTrace records every decision into dt.
func (l *Loop) WithTrace(dt *trace.DecisionTrace) *Loop {
	l.trace = dt
	return l
}

// Cluster returns the cluster this loop scales on.
func (l *Loop) Cluster() string { return l.cfg.Cluster }

// Previous returns the replica counts the next decision starts from.
func (l *Loop) Previous() []int {
	return append([]int(nil), l.previous...)
}

// Init waits until every managed deployment reports its replica count and
// CPU limit, then records them as the starting point.
func (l *Loop) Init(ctx context.Context) error {
	type snapshot struct {
		replicas []int
		cpu      []float64
	}
	read := func() (snapshot, error) {
		snap := snapshot{replicas: make([]int, len(l.cfg.Services)), cpu: make([]float64, len(l.cfg.Services))}
		for i, svc := range l.cfg.Services {
			r, err := l.replicas.Replicas(ctx, svc.Name)
			if err != nil {
				return snapshot{}, fmt.Errorf("reading replicas of %s: %w", svc.Name, err)
			}
			cpu, err := l.replicas.CPULimit(ctx, svc.Name)
			if err != nil {
				return snapshot{}, fmt.Errorf("reading cpu limit of %s: %w", svc.Name, err)
			}
			snap.replicas[i], snap.cpu[i] = r, cpu
		}
		return snap, nil
	}

	snap, err := backoff.Retry(ctx, read,
		backoff.WithBackOff(backoff.NewConstantBackOff(l.cfg.InitInterval)),
		backoff.WithMaxElapsedTime(l.cfg.InitTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			logrus.Infof("graph %s: deployments not ready (%v), retrying in %s", l.cfg.Graph, err, next)
		}),
	)
	if err != nil {
		return fmt.Errorf("waiting for deployments of graph %s: %w", l.cfg.Graph, err)
	}
	l.cluster.Lock()
	l.previous, l.cpu = snap.replicas, snap.cpu
	l.cluster.commit(l, l.footprint())
	l.cluster.Unlock()
	logrus.Infof("graph %s on %s: starting from replicas %v", l.cfg.Graph, l.cfg.Cluster, l.previous)
	return nil
}

// Step runs one decision against the cluster capacity other loops on the
// same cluster have not committed. On success it returns the applied replica
// counts.
// When the cluster can no longer host the graph it requests a re-placement
// and returns engine.ErrReplacementRequired; the previous counts are kept.
func (l *Loop) Step(ctx context.Context) ([]int, error) {
	if l.previous == nil {
		return nil, errNotInitialized
	}
	state := &engine.ScalingState{
		Cluster:         l.cfg.Cluster,
		HasAcceleration: l.cfg.HasAcceleration,
		Services:        make([]engine.ScalingService, len(l.cfg.Services)),
	}
	for i, svc := range l.cfg.Services {
		rate, err := l.metrics.RequestRate(ctx, svc.Name)
		if err != nil {
			DecisionsTotal.WithLabelValues(l.cfg.Cluster, OutcomeError).Inc()
			return nil, fmt.Errorf("reading request rate of %s: %w", svc.Name, err)
		}
		state.Services[i] = engine.ScalingService{
			ID:                svc.Name,
			RequestRate:       rate,
			PreviousReplicas:  l.previous[i],
			CPULimit:          l.cpu[i],
			NeedsAcceleration: svc.NeedsAcceleration,
			Model:             svc.Model,
			MaxReplicas:       svc.MaxReplicas,
		}
	}

	l.cluster.Lock()
	defer l.cluster.Unlock()
	// Recorded before the unlock, including after a partial scale failure.
	defer func() { l.cluster.commit(l, l.footprint()) }()
	state.Capacity = math.Max(0, l.cfg.Capacity-l.cluster.committedByOthers(l))
	logrus.Debugf("graph %s on %s: %.2f of %.2f cores available", l.cfg.Graph, l.cfg.Cluster, state.Capacity, l.cfg.Capacity)

	start := time.Now()
	decided, err := l.scaler.DecideReplicas(state)
	DecisionLatency.WithLabelValues(l.cfg.Cluster).Observe(time.Since(start).Seconds())
	if errors.Is(err, engine.ErrReplacementRequired) {
		return nil, l.requestReplacement(ctx, err)
	}
	if err != nil {
		DecisionsTotal.WithLabelValues(l.cfg.Cluster, OutcomeError).Inc()
		l.trace.RecordScaling(trace.ScalingRecord{Cluster: l.cfg.Cluster, Previous: l.Previous(), Err: err.Error()})
		return nil, err
	}

	previous := l.Previous()
	changed := false
	for i, svc := range l.cfg.Services {
		if decided[i] == l.previous[i] {
			continue
		}
		if err := l.actuator.Scale(ctx, svc.Name, decided[i]); err != nil {
			DecisionsTotal.WithLabelValues(l.cfg.Cluster, OutcomeError).Inc()
			return nil, fmt.Errorf("scaling %s to %d replicas: %w", svc.Name, decided[i], err)
		}
		l.previous[i] = decided[i]
		changed = true
		DesiredReplicas.WithLabelValues(l.cfg.Cluster, svc.Name).Set(float64(decided[i]))
	}

	outcome := OutcomeUnchanged
	if changed {
		outcome = OutcomeScaled
		logrus.Infof("graph %s on %s: replicas %v -> %v", l.cfg.Graph, l.cfg.Cluster, previous, decided)
	}
	DecisionsTotal.WithLabelValues(l.cfg.Cluster, outcome).Inc()
	l.trace.RecordScaling(trace.ScalingRecord{Cluster: l.cfg.Cluster, Previous: previous, Decided: decided})
	return decided, nil
}

func (l *Loop) requestReplacement(ctx context.Context, cause error) error {
	DecisionsTotal.WithLabelValues(l.cfg.Cluster, OutcomeReplacement).Inc()
	l.trace.RecordScaling(trace.ScalingRecord{Cluster: l.cfg.Cluster, Previous: l.Previous(), Replace: true, Err: cause.Error()})
	if l.trigger == nil {
		logrus.Warnf("graph %s no longer fits %s and no re-placement trigger is configured", l.cfg.Graph, l.cfg.Cluster)
		return cause
	}
	logrus.Infof("graph %s no longer fits %s, requesting re-placement", l.cfg.Graph, l.cfg.Cluster)
	if err := l.trigger.RequestReplacement(ctx, l.cfg.Graph); err != nil {
		return fmt.Errorf("requesting re-placement of graph %s: %w", l.cfg.Graph, err)
	}
	return cause
}

// Run calls Step every Interval until ctx is done. Step failures are logged
// and the loop continues with the next tick.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Debugf("graph %s on %s: scaling loop stopped", l.cfg.Graph, l.cfg.Cluster)
			return
		case <-ticker.C:
			if _, err := l.Step(ctx); err != nil {
				if errors.Is(err, engine.ErrReplacementRequired) {
					continue
				}
				logrus.Warnf("graph %s on %s: %v", l.cfg.Graph, l.cfg.Cluster, err)
			}
		}
	}
}

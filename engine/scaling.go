package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/smo-fabric/smo-placer/engine/milp"
)

// ThroughputModel is the affine capacity model of a workload type: at r
// replicas the service sustains at most Alpha·r + Beta requests per second.
// Fitted offline per workload type.
type ThroughputModel struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
}

// MaxRate returns the sustainable request rate at the given replica count.
func (m ThroughputModel) MaxRate(replicas int) float64 {
	return m.Alpha*float64(replicas) + m.Beta
}

// ScalingService is one service's input to a scaling decision.
type ScalingService struct {
	ID                string          `yaml:"id"`
	RequestRate       float64         `yaml:"request_rate"`
	PreviousReplicas  int             `yaml:"previous_replicas"`
	CPULimit          float64         `yaml:"cpu"`
	NeedsAcceleration bool            `yaml:"acceleration"`
	Model             ThroughputModel `yaml:"model"`
	MaxReplicas       int             `yaml:"max_replicas"`
}

// ScalingState holds every service collocated on one cluster.
type ScalingState struct {
	Cluster         string           `yaml:"cluster"`
	Capacity        float64          `yaml:"capacity"`
	HasAcceleration bool             `yaml:"acceleration"`
	Services        []ScalingService `yaml:"services"`
}

// ScalingWeights balance steady-state CPU footprint against replica churn.
type ScalingWeights struct {
	Util       float64
	Transition float64
}

// DefaultScalingWeights returns w_util = w_trans = 0.4.
func DefaultScalingWeights() ScalingWeights {
	return ScalingWeights{Util: 0.4, Transition: 0.4}
}

// ReplicaScaler computes per-service replica counts for one cluster.
type ReplicaScaler struct {
	Weights ScalingWeights
	Solver  milp.Options
}

// NewReplicaScaler returns a scaler with default weights and solver options.
func NewReplicaScaler() *ReplicaScaler {
	return &ReplicaScaler{Weights: DefaultScalingWeights(), Solver: milp.DefaultOptions()}
}

// DecideReplicas solves
//
//	min  w_util·Σ r·cpu/maxUtilCost + w_trans·Σ |prev - r|/maxReplicas
//
// subject to Σ cpu·r <= capacity, alpha·r + beta >= rate, acceleration
// availability and 1 <= r <= maxReplicas, with r integer. maxUtilCost is the
// largest maxReplicas·cpu over the services.
//
// Malformed state yields an ErrInvalidInput error. Any non-optimal solve
// yields ErrReplacementRequired: the services no longer fit this cluster.
func (rs *ReplicaScaler) DecideReplicas(state *ScalingState) ([]int, error) {
	if err := validateScalingState(state); err != nil {
		return nil, err
	}
	n := len(state.Services)
	if n == 0 {
		return []int{}, nil
	}
	if err := precheckScalingAcceleration(state); err != nil {
		return nil, err
	}

	maxUtilCost := 0.0
	for _, svc := range state.Services {
		maxUtilCost = math.Max(maxUtilCost, float64(svc.MaxReplicas)*svc.CPULimit)
	}

	p := &milp.Problem{}
	r := make([]int, n)
	absDiff := make([]int, n)
	for s, svc := range state.Services {
		r[s] = p.AddVar(milp.Var{
			Name:    fmt.Sprintf("r[%s]", svc.ID),
			Lower:   1,
			Upper:   float64(svc.MaxReplicas),
			Integer: true,
			Cost:    rs.Weights.Util * svc.CPULimit / maxUtilCost,
		})
		absDiff[s] = p.AddVar(milp.Var{
			Name:  fmt.Sprintf("absdiff[%s]", svc.ID),
			Upper: math.Inf(1),
			Cost:  rs.Weights.Transition / float64(svc.MaxReplicas),
		})
	}

	cpu := make(map[int]float64, n)
	for s, svc := range state.Services {
		cpu[r[s]] = svc.CPULimit
		prev := float64(svc.PreviousReplicas)
		// absDiff >= prev - r and absDiff >= r - prev
		p.AddConstraint("absdiff+", map[int]float64{absDiff[s]: 1, r[s]: 1}, milp.GE, prev)
		p.AddConstraint("absdiff-", map[int]float64{absDiff[s]: 1, r[s]: -1}, milp.GE, -prev)
		p.AddConstraint("throughput", map[int]float64{r[s]: svc.Model.Alpha}, milp.GE, svc.RequestRate-svc.Model.Beta)
	}
	p.AddConstraint("capacity", cpu, milp.LE, state.Capacity)

	res := milp.Solve(p, rs.Solver)
	if res.Status != milp.StatusOptimal {
		logrus.Infof("scaling %s: no optimal replica assignment (solver status %s)", state.Cluster, res.Status)
		return nil, ErrReplacementRequired
	}
	out := make([]int, n)
	for s := range out {
		out[s] = int(math.Round(res.X[r[s]]))
	}
	logrus.Debugf("scaling %s: replicas %v (objective %.4f)", state.Cluster, out, res.Objective)
	return out, nil
}

// precheckScalingAcceleration fails before any solving when a service needs
// acceleration the cluster does not offer.
func precheckScalingAcceleration(state *ScalingState) error {
	if state.HasAcceleration {
		return nil
	}
	for _, svc := range state.Services {
		if svc.NeedsAcceleration {
			logrus.Debugf("scaling %s: service %s needs acceleration the cluster lacks", state.Cluster, svc.ID)
			return ErrReplacementRequired
		}
	}
	return nil
}

func validateScalingState(state *ScalingState) error {
	if state == nil {
		return fmt.Errorf("%w: nil scaling state", ErrInvalidInput)
	}
	if state.Capacity < 0 || math.IsNaN(state.Capacity) || math.IsInf(state.Capacity, 0) {
		return fmt.Errorf("%w: cluster %s has invalid capacity %v", ErrInvalidInput, state.Cluster, state.Capacity)
	}
	for s, svc := range state.Services {
		if svc.CPULimit <= 0 || math.IsInf(svc.CPULimit, 0) {
			return fmt.Errorf("%w: service %d (%s) needs a positive cpu limit, got %v", ErrInvalidInput, s, svc.ID, svc.CPULimit)
		}
		if svc.MaxReplicas < 1 {
			return fmt.Errorf("%w: service %d (%s) needs max replicas >= 1, got %d", ErrInvalidInput, s, svc.ID, svc.MaxReplicas)
		}
		if svc.PreviousReplicas < 0 {
			return fmt.Errorf("%w: service %d (%s) has negative previous replicas %d", ErrInvalidInput, s, svc.ID, svc.PreviousReplicas)
		}
		for _, v := range []float64{svc.RequestRate, svc.Model.Alpha, svc.Model.Beta} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: service %d (%s) has a non-finite rate or throughput model", ErrInvalidInput, s, svc.ID)
			}
		}
	}
	return nil
}

// DecideReplicasFromLists adapts the parallel per-service lists a metrics
// collaborator supplies to DecideReplicas. All lists must share one length.
func (rs *ReplicaScaler) DecideReplicasFromLists(requestRates []float64, previousReplicas []int, cpuLimits []float64,
	acceleration []bool, alpha, beta []float64, clusterCapacity float64, clusterHasAcceleration bool,
	maxReplicas []int) ([]int, error) {
	n := len(requestRates)
	for _, l := range []int{len(previousReplicas), len(cpuLimits), len(acceleration), len(alpha), len(beta), len(maxReplicas)} {
		if l != n {
			return nil, fmt.Errorf("%w: scaling input lists differ in length", ErrInvalidInput)
		}
	}
	state := &ScalingState{Capacity: clusterCapacity, HasAcceleration: clusterHasAcceleration, Services: make([]ScalingService, n)}
	for s := range state.Services {
		state.Services[s] = ScalingService{
			ID:                fmt.Sprintf("service-%d", s),
			RequestRate:       requestRates[s],
			PreviousReplicas:  previousReplicas[s],
			CPULimit:          cpuLimits[s],
			NeedsAcceleration: acceleration[s],
			Model:             ThroughputModel{Alpha: alpha[s], Beta: beta[s]},
			MaxReplicas:       maxReplicas[s],
		}
	}
	return rs.DecideReplicas(state)
}

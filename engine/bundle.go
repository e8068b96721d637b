package engine

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/smo-fabric/smo-placer/engine/milp"
)

// PolicyBundle holds the engine's policy knobs, loadable from a YAML file.
// Nil pointer fields mean "not set in YAML" and keep the defaults.
// String fields use empty string for "not set".
type PolicyBundle struct {
	Placement PlacementPolicy  `yaml:"placement"`
	Scaling   ScalingPolicy    `yaml:"scaling"`
	Solver    SolverPolicy     `yaml:"solver"`
	Threshold *ThresholdScaler `yaml:"threshold,omitempty"`
}

// PlacementPolicy selects the placement strategy and its objective weights.
type PlacementPolicy struct {
	Strategy     string   `yaml:"strategy"`
	DeployWeight *float64 `yaml:"deploy_weight"`
	ReoptWeight  *float64 `yaml:"reopt_weight"`
	CarbonWeight *float64 `yaml:"carbon_weight"`
}

// ScalingPolicy holds the scaling objective weights.
type ScalingPolicy struct {
	UtilWeight       *float64 `yaml:"util_weight"`
	TransitionWeight *float64 `yaml:"transition_weight"`
}

// SolverPolicy bounds MILP solve latency. A limit hit counts as non-optimal.
type SolverPolicy struct {
	TimeLimit string `yaml:"time_limit"` // Go duration, e.g. "2s"
	NodeLimit *int   `yaml:"node_limit"`
}

// LoadPolicyBundle reads and strictly parses a YAML policy file.
func LoadPolicyBundle(path string) (*PolicyBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy config: %w", err)
	}
	var bundle PolicyBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing policy config: %w", err)
	}
	return &bundle, nil
}

// Validate checks names and parameter ranges, reporting every problem found.
func (b *PolicyBundle) Validate() error {
	var errs error
	if !IsValidPlacementStrategy(b.Placement.Strategy) {
		errs = multierr.Append(errs, fmt.Errorf("unknown placement strategy %q", b.Placement.Strategy))
	}
	nonNegative := map[string]*float64{
		"deploy_weight":     b.Placement.DeployWeight,
		"reopt_weight":      b.Placement.ReoptWeight,
		"carbon_weight":     b.Placement.CarbonWeight,
		"util_weight":       b.Scaling.UtilWeight,
		"transition_weight": b.Scaling.TransitionWeight,
	}
	for _, name := range []string{"deploy_weight", "reopt_weight", "carbon_weight", "util_weight", "transition_weight"} {
		if v := nonNegative[name]; v != nil && *v < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s must be non-negative, got %f", name, *v))
		}
	}
	if b.Solver.TimeLimit != "" {
		if d, err := time.ParseDuration(b.Solver.TimeLimit); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid solver time_limit: %w", err))
		} else if d < 0 {
			errs = multierr.Append(errs, fmt.Errorf("solver time_limit must be non-negative, got %s", d))
		}
	}
	if b.Solver.NodeLimit != nil && *b.Solver.NodeLimit < 0 {
		errs = multierr.Append(errs, fmt.Errorf("solver node_limit must be non-negative, got %d", *b.Solver.NodeLimit))
	}
	if b.Threshold != nil {
		errs = multierr.Append(errs, b.Threshold.Validate())
	}
	return errs
}

// SolverOptions returns milp options with the bundle's limits applied.
// Call Validate first; an unparsable time limit is ignored here.
func (b *PolicyBundle) SolverOptions() milp.Options {
	opts := milp.DefaultOptions()
	if d, err := time.ParseDuration(b.Solver.TimeLimit); err == nil {
		opts.TimeLimit = d
	}
	if b.Solver.NodeLimit != nil {
		opts.NodeLimit = *b.Solver.NodeLimit
	}
	return opts
}

// PlacementConfig returns the default placement config overridden by the bundle.
func (b *PolicyBundle) PlacementConfig() PlacementConfig {
	cfg := DefaultPlacementConfig()
	cfg.Solver = b.SolverOptions()
	if b.Placement.DeployWeight != nil {
		cfg.Weights.Deploy = *b.Placement.DeployWeight
	}
	if b.Placement.ReoptWeight != nil {
		cfg.Weights.Reopt = *b.Placement.ReoptWeight
	}
	if b.Placement.CarbonWeight != nil {
		cfg.Weights.Carbon = *b.Placement.CarbonWeight
	}
	return cfg
}

// ReplicaScaler returns a scaler configured by the bundle.
func (b *PolicyBundle) ReplicaScaler() *ReplicaScaler {
	rs := NewReplicaScaler()
	rs.Solver = b.SolverOptions()
	if b.Scaling.UtilWeight != nil {
		rs.Weights.Util = *b.Scaling.UtilWeight
	}
	if b.Scaling.TransitionWeight != nil {
		rs.Weights.Transition = *b.Scaling.TransitionWeight
	}
	return rs
}

// PlacementStrategy builds the configured strategy. Call Validate first.
func (b *PolicyBundle) PlacementStrategy() PlacementStrategy {
	return NewPlacementStrategy(b.Placement.Strategy, b.PlacementConfig())
}

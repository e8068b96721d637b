package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smo-fabric/smo-placer/engine"
	"github.com/smo-fabric/smo-placer/engine/trace"
)

var (
	scenarioPath string // Path to the placement scenario YAML
	strategyName string // Placement strategy overriding the policy bundle
	compareAll   bool   // Run every strategy and summarize
)

// placeOptions carries the place command's inputs.
type placeOptions struct {
	Scenario     string
	Strategy     string
	PolicyConfig string
	Catalog      string
	All          bool
}

// PlacementOutput is the YAML document printed for one strategy.
type PlacementOutput struct {
	Graph       string                    `yaml:"graph,omitempty"`
	Strategy    string                    `yaml:"strategy"`
	Status      string                    `yaml:"status"`
	Assignments engine.ServiceAssignments `yaml:"assignments,omitempty"`
	Clusters    map[string][]string       `yaml:"clusters,omitempty"`
	Error       string                    `yaml:"error,omitempty"`
}

// comparison is printed by place --all.
type comparison struct {
	Results []PlacementOutput   `yaml:"results"`
	Summary *trace.TraceSummary `yaml:"summary"`
}

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Compute a placement for the services of a scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		err := runPlace(cmd.OutOrStdout(), placeOptions{
			Scenario:     scenarioPath,
			Strategy:     strategyName,
			PolicyConfig: policyConfigPath,
			Catalog:      catalogPath,
			All:          compareAll,
		})
		if err != nil {
			logrus.Fatalf("Placement failed: %v", err)
		}
	},
}

func runPlace(w io.Writer, opts placeOptions) error {
	if opts.Scenario == "" {
		return fmt.Errorf("--scenario is required")
	}
	bundle, err := loadPolicy(opts.PolicyConfig)
	if err != nil {
		return err
	}
	if opts.Strategy != "" {
		if !engine.IsValidPlacementStrategy(opts.Strategy) {
			return fmt.Errorf("unknown placement strategy %q; valid: %v", opts.Strategy, engine.PlacementStrategyNames())
		}
		bundle.Placement.Strategy = opts.Strategy
	}
	catalog, err := LoadCPUCatalog(opts.Catalog)
	if err != nil {
		return err
	}
	scenario, err := LoadScenario(opts.Scenario)
	if err != nil {
		return err
	}
	req, err := scenario.Request(catalog)
	if err != nil {
		return err
	}

	names := []string{bundle.Placement.Strategy}
	if opts.All {
		names = engine.PlacementStrategyNames()
	}
	dt := trace.NewDecisionTrace(trace.TraceLevelDecisions)
	outputs := make([]PlacementOutput, 0, len(names))
	var firstErr error
	for _, name := range names {
		strategy := engine.NewPlacementStrategy(name, bundle.PlacementConfig())
		out, record, err := place(strategy, req, scenario.Graph)
		dt.RecordPlacement(record)
		outputs = append(outputs, out)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if opts.All {
		return enc.Encode(comparison{Results: outputs, Summary: trace.Summarize(dt)})
	}
	if err := enc.Encode(outputs[0]); err != nil {
		return err
	}
	return firstErr
}

// place runs one strategy. Re-optimization strategies need the scenario's
// current placement and report invalid input without one.
func place(strategy engine.PlacementStrategy, req *engine.PlacementRequest, graph string) (PlacementOutput, trace.PlacementRecord, error) {
	out := PlacementOutput{Graph: graph, Strategy: strategy.Name()}
	record := trace.PlacementRecord{Strategy: strategy.Name(), Services: len(req.Services), Clusters: len(req.Clusters)}

	m, err := strategy.Calculate(req)
	if err == nil {
		out.Assignments, err = engine.ToAssignmentMap(m, req.ServiceIDs(), req.ClusterNames())
	}
	if err != nil {
		out.Status, out.Error = placementStatus(err), err.Error()
		record.Status, record.Err = out.Status, out.Error
		return out, record, err
	}
	out.Status = "placed"
	out.Clusters = engine.Invert(out.Assignments)
	record.Status, record.Assignment = out.Status, out.Assignments.Map()
	logrus.Infof("%s: placed %d services", strategy.Name(), len(out.Assignments))
	return out, record, nil
}

func placementStatus(err error) string {
	var solverErr *engine.SolverError
	switch {
	case errors.As(err, &solverErr):
		return string(solverErr.Status)
	case errors.Is(err, engine.ErrInfeasible):
		return "infeasible"
	case errors.Is(err, engine.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func init() {
	placeCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to scenario YAML (clusters, services, optional current placement)")
	placeCmd.Flags().StringVar(&strategyName, "strategy", "", "Placement strategy (first-fit, green-consolidation, capacity-reoptimization, carbon-reoptimization)")
	placeCmd.Flags().BoolVar(&compareAll, "all", false, "Run every strategy and print a comparison with a decision summary")
	rootCmd.AddCommand(placeCmd)
}

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smo-fabric/smo-placer/engine"
)

var statePath string // Path to the scaling state YAML

// ServiceReplicas is one line of the scale command's output.
type ServiceReplicas struct {
	Service  string `yaml:"service"`
	Previous int    `yaml:"previous"`
	Replicas int    `yaml:"replicas"`
}

// ScalingOutput is the YAML document printed by the scale command.
type ScalingOutput struct {
	Cluster             string            `yaml:"cluster,omitempty"`
	Services            []ServiceReplicas `yaml:"services,omitempty"`
	ReplacementRequired bool              `yaml:"replacement_required"`
}

var scaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Decide replica counts for the services collocated on one cluster",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runScale(cmd.OutOrStdout(), statePath, policyConfigPath); err != nil {
			logrus.Fatalf("Scaling decision failed: %v", err)
		}
	},
}

// loadScalingState reads and strictly parses a scaling state file.
func loadScalingState(path string) (*engine.ScalingState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scaling state: %w", err)
	}
	var state engine.ScalingState
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&state); err != nil {
		return nil, fmt.Errorf("parsing scaling state: %w", err)
	}
	return &state, nil
}

// runScale prints the decision. A cluster that cannot host its services is a
// normal outcome reported as replacement_required, not an error.
func runScale(w io.Writer, state, policy string) error {
	if state == "" {
		return fmt.Errorf("--state is required")
	}
	bundle, err := loadPolicy(policy)
	if err != nil {
		return err
	}
	st, err := loadScalingState(state)
	if err != nil {
		return err
	}

	out := ScalingOutput{Cluster: st.Cluster}
	replicas, err := bundle.ReplicaScaler().DecideReplicas(st)
	switch {
	case errors.Is(err, engine.ErrReplacementRequired):
		out.ReplacementRequired = true
	case err != nil:
		return err
	default:
		for i, svc := range st.Services {
			out.Services = append(out.Services, ServiceReplicas{Service: svc.ID, Previous: svc.PreviousReplicas, Replicas: replicas[i]})
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}

func init() {
	scaleCmd.Flags().StringVar(&statePath, "state", "", "Path to scaling state YAML (cluster capacity and per-service rates, models and limits)")
	rootCmd.AddCommand(scaleCmd)
}

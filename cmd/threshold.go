package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smo-fabric/smo-placer/engine"
)

var (
	thresholdRate     float64 // Observed request rate (RPS)
	currentReplicas   int     // Current replica count of the target deployment
	thresholdSettings engine.ThresholdScaler
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Evaluate one iteration of the request-rate threshold scaler",
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		overrides := thresholdOverrides{
			up:           flagValue(flags.Changed("up-threshold"), thresholdSettings.ScaleUpThreshold),
			down:         flagValue(flags.Changed("down-threshold"), thresholdSettings.ScaleDownThreshold),
			upReplicas:   flagValue(flags.Changed("up-replicas"), thresholdSettings.ScaleUpReplicas),
			downReplicas: flagValue(flags.Changed("down-replicas"), thresholdSettings.ScaleDownReplicas),
		}
		err := runThreshold(cmd.OutOrStdout(), policyConfigPath, overrides, thresholdRate, flags.Changed("rate"), currentReplicas)
		if err != nil {
			logrus.Fatalf("Threshold evaluation failed: %v", err)
		}
	},
}

// thresholdOverrides holds flag values the user set explicitly; nil keeps the
// policy bundle's value.
type thresholdOverrides struct {
	up, down                 *float64
	upReplicas, downReplicas *int
}

func flagValue[T any](changed bool, v T) *T {
	if !changed {
		return nil
	}
	return &v
}

func runThreshold(w io.Writer, policy string, o thresholdOverrides, rate float64, rateKnown bool, current int) error {
	bundle, err := loadPolicy(policy)
	if err != nil {
		return err
	}
	scaler := engine.ThresholdScaler{}
	if bundle.Threshold != nil {
		scaler = *bundle.Threshold
	}
	if o.up != nil {
		scaler.ScaleUpThreshold = *o.up
	}
	if o.down != nil {
		scaler.ScaleDownThreshold = *o.down
	}
	if o.upReplicas != nil {
		scaler.ScaleUpReplicas = *o.upReplicas
	}
	if o.downReplicas != nil {
		scaler.ScaleDownReplicas = *o.downReplicas
	}
	if err := scaler.Validate(); err != nil {
		return fmt.Errorf("threshold policy: %w", err)
	}
	if current < 0 {
		return fmt.Errorf("--replicas must be non-negative, got %d", current)
	}

	decision := scaler.Decide(rate, rateKnown, current)
	logrus.Info(decision.Reason)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(decision)
}

func init() {
	thresholdCmd.Flags().Float64Var(&thresholdRate, "rate", 0, "Observed request rate in RPS; omit when metrics are unavailable")
	thresholdCmd.Flags().IntVar(&currentReplicas, "replicas", 1, "Current replica count of the target deployment")
	thresholdCmd.Flags().Float64Var(&thresholdSettings.ScaleUpThreshold, "up-threshold", 0, "RPS threshold to scale up")
	thresholdCmd.Flags().Float64Var(&thresholdSettings.ScaleDownThreshold, "down-threshold", 0, "RPS threshold to scale down")
	thresholdCmd.Flags().IntVar(&thresholdSettings.ScaleUpReplicas, "up-replicas", 0, "Number of replicas to scale up to")
	thresholdCmd.Flags().IntVar(&thresholdSettings.ScaleDownReplicas, "down-replicas", 0, "Number of replicas to scale down to")
	rootCmd.AddCommand(thresholdCmd)
}

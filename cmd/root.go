package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/smo-fabric/smo-placer/engine"
)

var (
	logLevel         string // Log verbosity level
	policyConfigPath string // Path to the YAML policy bundle
	catalogPath      string // Path to a CPU class catalog overriding the built-in classes
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "smo-placer",
	Short: "Placement and replica scaling decisions for multi-cluster application graphs",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&policyConfigPath, "policy-config", "", "Path to YAML policy bundle (strategy, weights, solver limits, threshold policy)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to YAML CPU class catalog (defaults: light=0.5, small=1, medium=4, large=8)")
}

// loadPolicy returns the validated policy bundle, or an empty bundle when no
// file is configured.
func loadPolicy(path string) (*engine.PolicyBundle, error) {
	if path == "" {
		return &engine.PolicyBundle{}, nil
	}
	bundle, err := engine.LoadPolicyBundle(path)
	if err != nil {
		return nil, err
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return bundle, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/smo-fabric/smo-placer/engine"
	"github.com/smo-fabric/smo-placer/engine/actuator"
	"github.com/smo-fabric/smo-placer/engine/controlloop"
	"github.com/smo-fabric/smo-placer/engine/promsource"
	"github.com/smo-fabric/smo-placer/engine/trace"
)

var loopConfigPath string // Path to the control loop config file

// LoopConfig is the control loop config file. Every key can be overridden by
// an SMO_-prefixed environment variable, e.g. SMO_PROMETHEUS_ADDRESS.
type LoopConfig struct {
	Namespace      string            `mapstructure:"namespace"`
	Kubeconfig     string            `mapstructure:"kubeconfig"`
	PlacementAPI   string            `mapstructure:"placement_api"`
	MetricsAddress string            `mapstructure:"metrics_address"`
	Interval       time.Duration     `mapstructure:"interval"`
	InitInterval   time.Duration     `mapstructure:"init_interval"`
	InitTimeout    time.Duration     `mapstructure:"init_timeout"`
	TraceLevel     string            `mapstructure:"trace_level"`
	Prometheus     PrometheusConfig  `mapstructure:"prometheus"`
	Graphs         []GraphLoopConfig `mapstructure:"graphs"`
}

// PrometheusConfig locates the request rate metrics.
type PrometheusConfig struct {
	Address       string        `mapstructure:"address"`
	QueryTemplate string        `mapstructure:"query_template"`
	Window        time.Duration `mapstructure:"window"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// GraphLoopConfig is one application graph scaled on one cluster.
type GraphLoopConfig struct {
	Graph        string              `mapstructure:"graph"`
	Cluster      string              `mapstructure:"cluster"`
	Capacity     float64             `mapstructure:"capacity"`
	Acceleration bool                `mapstructure:"acceleration"`
	Services     []ServiceLoopConfig `mapstructure:"services"`
}

// ServiceLoopConfig is one managed service and its fitted throughput model.
type ServiceLoopConfig struct {
	Name         string  `mapstructure:"name"`
	QueryName    string  `mapstructure:"query_name"` // metrics name when it differs from Name
	Alpha        float64 `mapstructure:"alpha"`
	Beta         float64 `mapstructure:"beta"`
	MaxReplicas  int     `mapstructure:"max_replicas"`
	Acceleration bool    `mapstructure:"acceleration"`
}

// LoadLoopConfig reads the config file and applies SMO_ environment overrides.
func LoadLoopConfig(path string) (*LoopConfig, error) {
	v := viper.New()
	v.SetDefault("namespace", "default")
	v.SetDefault("kubeconfig", "")
	v.SetDefault("placement_api", "http://localhost:8000")
	v.SetDefault("metrics_address", ":2112")
	v.SetDefault("interval", "5s")
	v.SetDefault("init_interval", "5s")
	v.SetDefault("init_timeout", "0s")
	v.SetDefault("trace_level", string(trace.TraceLevelNone))
	v.SetDefault("prometheus.address", "http://localhost:9090")
	v.SetDefault("prometheus.query_template", "")
	v.SetDefault("prometheus.window", "5s")
	v.SetDefault("prometheus.timeout", "5s")
	v.SetEnvPrefix("SMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading loop config: %w", err)
		}
	}
	var cfg LoopConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding loop config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem in the config.
func (c *LoopConfig) Validate() error {
	var errs error
	if len(c.Graphs) == 0 {
		errs = multierr.Append(errs, errors.New("no graphs configured"))
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		errs = multierr.Append(errs, fmt.Errorf("unknown trace level %q", c.TraceLevel))
	}
	if c.Interval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	for _, g := range c.Graphs {
		if g.Graph == "" || g.Cluster == "" {
			errs = multierr.Append(errs, fmt.Errorf("graph entries need graph and cluster names (got %q on %q)", g.Graph, g.Cluster))
		}
		if g.Capacity <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("graph %s: capacity must be positive, got %v", g.Graph, g.Capacity))
		}
		if len(g.Services) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("graph %s: no services", g.Graph))
		}
		for _, s := range g.Services {
			if s.Name == "" {
				errs = multierr.Append(errs, fmt.Errorf("graph %s: service without a name", g.Graph))
			}
			if s.MaxReplicas < 1 {
				errs = multierr.Append(errs, fmt.Errorf("graph %s: service %s needs max_replicas >= 1", g.Graph, s.Name))
			}
			if s.Alpha <= 0 {
				errs = multierr.Append(errs, fmt.Errorf("graph %s: service %s needs a positive alpha", g.Graph, s.Name))
			}
		}
	}
	return errs
}

// Aliases maps service names to the names their rates are queried under.
func (c *LoopConfig) Aliases() map[string]string {
	aliases := make(map[string]string)
	for _, g := range c.Graphs {
		for _, s := range g.Services {
			if s.QueryName != "" && s.QueryName != s.Name {
				aliases[s.Name] = s.QueryName
			}
		}
	}
	return aliases
}

// ControlLoopConfigs converts every graph entry into a loop config.
func (c *LoopConfig) ControlLoopConfigs() []controlloop.Config {
	out := make([]controlloop.Config, 0, len(c.Graphs))
	for _, g := range c.Graphs {
		lc := controlloop.Config{
			Graph:           g.Graph,
			Cluster:         g.Cluster,
			Capacity:        g.Capacity,
			HasAcceleration: g.Acceleration,
			Interval:        c.Interval,
			InitInterval:    c.InitInterval,
			InitTimeout:     c.InitTimeout,
		}
		for _, s := range g.Services {
			lc.Services = append(lc.Services, controlloop.ServiceSpec{
				Name:              s.Name,
				Model:             engine.ThroughputModel{Alpha: s.Alpha, Beta: s.Beta},
				MaxReplicas:       s.MaxReplicas,
				NeedsAcceleration: s.Acceleration,
			})
		}
		out = append(out, lc)
	}
	return out
}

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run the periodic replica scaling loop against Kubernetes and Prometheus",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadLoopConfig(loopConfigPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid loop config: %v", err)
		}
		bundle, err := loadPolicy(policyConfigPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runLoops(ctx, cfg, bundle); err != nil {
			logrus.Fatalf("Scaling loop failed: %v", err)
		}
	},
}

func runLoops(ctx context.Context, cfg *LoopConfig, bundle *engine.PolicyBundle) error {
	metrics, err := promsource.New(promsource.Config{
		Address:       cfg.Prometheus.Address,
		QueryTemplate: cfg.Prometheus.QueryTemplate,
		Window:        cfg.Prometheus.Window,
		Timeout:       cfg.Prometheus.Timeout,
		Aliases:       cfg.Aliases(),
	})
	if err != nil {
		return err
	}
	deployments, err := actuator.NewForKubeconfig(cfg.Kubeconfig, cfg.Namespace)
	if err != nil {
		return err
	}
	trigger := actuator.NewHTTPReplacementTrigger(cfg.PlacementAPI)
	dt := trace.NewDecisionTrace(trace.TraceLevel(cfg.TraceLevel))

	coordinator := controlloop.NewCoordinator()
	for _, lc := range cfg.ControlLoopConfigs() {
		coordinator.Add(controlloop.NewLoop(lc, bundle.ReplicaScaler(), metrics, deployments, deployments, trigger).WithTrace(dt))
	}

	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("metrics server: %v", err)
			}
		}()
		defer srv.Close()
		logrus.Infof("serving metrics on %s/metrics", cfg.MetricsAddress)
	}

	err = coordinator.RunAll(ctx)
	if dt.Enabled() {
		s := trace.Summarize(dt)
		logrus.Infof("scaling summary: %d decisions, %d failures, %d re-placement requests, %d replica changes",
			s.ScalingDecisions, s.ScalingFailures, s.ReplacementRequests, s.ReplicaChanges)
	}
	return err
}

func init() {
	loopCmd.Flags().StringVar(&loopConfigPath, "config", "", "Path to loop config (YAML); keys may be overridden with SMO_* environment variables")
	rootCmd.AddCommand(loopCmd)
}

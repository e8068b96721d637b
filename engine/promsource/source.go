// Package promsource reads service request rates from Prometheus.
package promsource

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/sirupsen/logrus"
)

// DefaultQueryTemplate takes the service name and the rate window in seconds.
const DefaultQueryTemplate = `sum(rate(flask_http_request_total{service="%s"}[%ds])) by (service)`

// Config configures a Source.
type Config struct {
	Address       string
	QueryTemplate string            // defaults to DefaultQueryTemplate
	Window        time.Duration     // rate window; defaults to 5s
	Timeout       time.Duration     // per-query timeout; 0 means the caller's context only
	Aliases       map[string]string // service → name used in the query
}

// Source implements the control loop's MetricsSource against the Prometheus HTTP API.
type Source struct {
	api v1.API
	cfg Config
}

// New creates a Source for the Prometheus server at cfg.Address.
func New(cfg Config) (*Source, error) {
	client, err := api.NewClient(api.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}
	return NewWithAPI(v1.NewAPI(client), cfg), nil
}

// NewWithAPI creates a Source over an existing API client.
func NewWithAPI(promAPI v1.API, cfg Config) *Source {
	if cfg.QueryTemplate == "" {
		cfg.QueryTemplate = DefaultQueryTemplate
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Second
	}
	return &Source{api: promAPI, cfg: cfg}
}

// Query returns the PromQL expression used for service.
func (s *Source) Query(service string) string {
	name := service
	if alias, ok := s.cfg.Aliases[service]; ok {
		name = alias
	}
	return fmt.Sprintf(s.cfg.QueryTemplate, name, int(s.cfg.Window.Seconds()))
}

// RequestRate returns the current request rate of service in requests per
// second. A service with no samples has rate 0 so it can scale down.
func (s *Source) RequestRate(ctx context.Context, service string) (float64, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	query := s.Query(service)
	logrus.Debugf("promsource: %s", query)

	result, warnings, err := s.api.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("querying request rate of %s: %w", service, err)
	}
	if len(warnings) > 0 {
		logrus.Warnf("promsource: query warnings for %s: %v", service, warnings)
	}
	rate, err := rateFromResult(result)
	if err != nil {
		return 0, fmt.Errorf("request rate of %s: %w", service, err)
	}
	return rate, nil
}

func rateFromResult(result model.Value) (float64, error) {
	var v float64
	switch r := result.(type) {
	case model.Vector:
		if len(r) == 0 {
			return 0, nil
		}
		v = float64(r[0].Value)
	case *model.Scalar:
		v = float64(r.Value)
	default:
		return 0, fmt.Errorf("unsupported result type %T", result)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil
	}
	return v, nil
}

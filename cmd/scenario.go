package cmd

import (
	"bytes"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/smo-fabric/smo-placer/engine"
)

// Scenario is a placement input file: the clusters of the fabric, the
// services of one application graph and, optionally, where they run today.
type Scenario struct {
	Graph    string            `yaml:"graph"`
	Clusters []engine.Cluster  `yaml:"clusters"`
	Services []ScenarioService `yaml:"services"`
	Current  map[string]string `yaml:"current"` // service ID → cluster name
}

// ScenarioService declares CPU either directly in cores or by catalog class.
type ScenarioService struct {
	ID           string   `yaml:"id"`
	CPU          *float64 `yaml:"cpu"`
	CPUClass     string   `yaml:"cpu_class"`
	Replicas     *int     `yaml:"replicas"` // defaults to 1
	Acceleration bool     `yaml:"acceleration"`
}

// LoadScenario reads and strictly parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &s, nil
}

// Request resolves CPU classes and builds the engine request. Every problem in
// the scenario is reported at once.
func (s *Scenario) Request(catalog *CPUCatalog) (*engine.PlacementRequest, error) {
	var errs error
	columns := make(map[string]int, len(s.Clusters))
	for e, c := range s.Clusters {
		if c.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("cluster %d has no name", e))
			continue
		}
		if _, dup := columns[c.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("duplicate cluster %q", c.Name))
		}
		columns[c.Name] = e
	}

	req := &engine.PlacementRequest{Clusters: s.Clusters, Services: make([]engine.Service, len(s.Services))}
	seen := make(map[string]bool, len(s.Services))
	for i, svc := range s.Services {
		if svc.ID == "" {
			errs = multierr.Append(errs, fmt.Errorf("service %d has no id", i))
		} else if seen[svc.ID] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate service %q", svc.ID))
		}
		seen[svc.ID] = true

		var cpu float64
		switch {
		case svc.CPU != nil && svc.CPUClass != "":
			errs = multierr.Append(errs, fmt.Errorf("service %q sets both cpu and cpu_class", svc.ID))
		case svc.CPU != nil:
			cpu = *svc.CPU
		case svc.CPUClass != "":
			cores, err := catalog.Cores(svc.CPUClass)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("service %q: %w", svc.ID, err))
			}
			cpu = cores
		default:
			errs = multierr.Append(errs, fmt.Errorf("service %q needs cpu or cpu_class", svc.ID))
		}
		replicas := 1
		if svc.Replicas != nil {
			replicas = *svc.Replicas
		}
		req.Services[i] = engine.Service{ID: svc.ID, CPULimit: cpu, Replicas: replicas, NeedsAcceleration: svc.Acceleration}
	}

	if len(s.Current) > 0 {
		req.Current = engine.NewPlacementMatrix(len(s.Services), len(s.Clusters))
		for id, cluster := range s.Current {
			e, ok := columns[cluster]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("current placement of %q names unknown cluster %q", id, cluster))
				continue
			}
			row := serviceRow(s.Services, id)
			if row < 0 {
				errs = multierr.Append(errs, fmt.Errorf("current placement names unknown service %q", id))
				continue
			}
			req.Current[row][e] = 1
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrInvalidInput, errs)
	}
	return req, nil
}

func serviceRow(services []ScenarioService, id string) int {
	for i, s := range services {
		if s.ID == id {
			return i
		}
	}
	return -1
}

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// defaultCPUClasses maps workload CPU classes to per-replica cores.
var defaultCPUClasses = map[string]float64{
	"light":  0.5,
	"small":  1,
	"medium": 4,
	"large":  8,
}

// CPUCatalog resolves CPU class names to cores. The engine only sees cores.
type CPUCatalog struct {
	Version string             `yaml:"version"`
	Classes map[string]float64 `yaml:"classes"`
}

// DefaultCPUCatalog returns the built-in classes.
func DefaultCPUCatalog() *CPUCatalog {
	classes := make(map[string]float64, len(defaultCPUClasses))
	for k, v := range defaultCPUClasses {
		classes[k] = v
	}
	return &CPUCatalog{Version: "builtin", Classes: classes}
}

// LoadCPUCatalog reads a catalog file. Classes it names override or extend the
// built-in ones. An empty path returns the defaults.
func LoadCPUCatalog(path string) (*CPUCatalog, error) {
	catalog := DefaultCPUCatalog()
	if path == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cpu catalog: %w", err)
	}
	var file CPUCatalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing cpu catalog: %w", err)
	}
	for name, cores := range file.Classes {
		if cores <= 0 {
			return nil, fmt.Errorf("cpu class %q must have positive cores, got %v", name, cores)
		}
		catalog.Classes[name] = cores
	}
	if file.Version != "" {
		catalog.Version = file.Version
	}
	return catalog, nil
}

// Cores returns the cores of a class.
func (c *CPUCatalog) Cores(class string) (float64, error) {
	cores, ok := c.Classes[class]
	if !ok {
		return 0, fmt.Errorf("unknown cpu class %q (known: %v)", class, c.ClassNames())
	}
	return cores, nil
}

// ClassNames returns the known class names, sorted.
func (c *CPUCatalog) ClassNames() []string {
	names := make([]string, 0, len(c.Classes))
	for n := range c.Classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

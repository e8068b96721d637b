// Package trace records placement and scaling decisions for later analysis.
// It stores pure data and has no dependency on the engine package.
package trace

// PlacementRecord captures one placement strategy invocation.
type PlacementRecord struct {
	Strategy   string
	Services   int
	Clusters   int
	Status     string            // "placed", "infeasible", "invalid" or a solver status
	Assignment map[string]string // service ID → cluster name; nil on failure
	Err        string
}

// ScalingRecord captures one scaling decision for a cluster.
type ScalingRecord struct {
	Cluster  string
	Previous []int
	Decided  []int // nil when no decision was applied
	Replace  bool  // the cluster could not host its services; re-placement requested
	Err      string
}

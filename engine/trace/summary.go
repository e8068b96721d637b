package trace

// TraceSummary aggregates statistics from a DecisionTrace.
type TraceSummary struct {
	PlacementDecisions  int            `yaml:"placement_decisions"`
	PlacementFailures   int            `yaml:"placement_failures"`
	ScalingDecisions    int            `yaml:"scaling_decisions"`
	ScalingFailures     int            `yaml:"scaling_failures"`
	ReplacementRequests int            `yaml:"replacement_requests"`
	ClusterDistribution map[string]int `yaml:"cluster_distribution"` // cluster name → services placed on it
	ReplicaChanges      int            `yaml:"replica_changes"`      // total |decided - previous| over applied scaling decisions
}

// Summarize computes aggregate statistics from a DecisionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(dt *DecisionTrace) *TraceSummary {
	summary := &TraceSummary{
		ClusterDistribution: make(map[string]int),
	}
	if dt == nil {
		return summary
	}

	placements := dt.Placements()
	summary.PlacementDecisions = len(placements)
	for _, p := range placements {
		if p.Err != "" {
			summary.PlacementFailures++
			continue
		}
		for _, cluster := range p.Assignment {
			summary.ClusterDistribution[cluster]++
		}
	}

	scalings := dt.Scalings()
	summary.ScalingDecisions = len(scalings)
	for _, s := range scalings {
		if s.Replace {
			summary.ReplacementRequests++
		}
		if s.Err != "" || s.Decided == nil {
			summary.ScalingFailures++
			continue
		}
		for i, r := range s.Decided {
			if i < len(s.Previous) {
				summary.ReplicaChanges += abs(r - s.Previous[i])
			}
		}
	}
	return summary
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

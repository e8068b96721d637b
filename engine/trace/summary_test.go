package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	dt := NewDecisionTrace(TraceLevelDecisions)

	// WHEN summarized
	summary := Summarize(dt)

	// THEN all counts are zero
	if summary.PlacementDecisions != 0 || summary.ScalingDecisions != 0 {
		t.Error("expected 0 decisions")
	}
	if summary.PlacementFailures != 0 || summary.ScalingFailures != 0 || summary.ReplacementRequests != 0 {
		t.Error("expected 0 failures")
	}
	if len(summary.ClusterDistribution) != 0 {
		t.Error("expected empty cluster distribution")
	}
	if Summarize(nil).ClusterDistribution == nil {
		t.Error("expected non-nil distribution for nil trace")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed placement and scaling records
	dt := NewDecisionTrace(TraceLevelDecisions)
	dt.RecordPlacement(PlacementRecord{Strategy: "first-fit", Status: "placed",
		Assignment: map[string]string{"a": "edge", "b": "edge", "c": "core"}})
	dt.RecordPlacement(PlacementRecord{Strategy: "capacity-reoptimization", Status: "infeasible", Err: "placement infeasible"})
	dt.RecordScaling(ScalingRecord{Cluster: "edge", Previous: []int{1, 4}, Decided: []int{3, 2}})
	dt.RecordScaling(ScalingRecord{Cluster: "core", Previous: []int{2}, Replace: true, Err: "re-placement required"})

	// WHEN summarized
	summary := Summarize(dt)

	// THEN counts match
	if summary.PlacementDecisions != 2 || summary.PlacementFailures != 1 {
		t.Errorf("expected 2 placements with 1 failure, got %d/%d", summary.PlacementDecisions, summary.PlacementFailures)
	}
	if summary.ClusterDistribution["edge"] != 2 || summary.ClusterDistribution["core"] != 1 {
		t.Errorf("unexpected distribution %v", summary.ClusterDistribution)
	}
	if summary.ScalingDecisions != 2 || summary.ScalingFailures != 1 {
		t.Errorf("expected 2 scalings with 1 failure, got %d/%d", summary.ScalingDecisions, summary.ScalingFailures)
	}
	if summary.ReplacementRequests != 1 {
		t.Errorf("expected 1 replacement request, got %d", summary.ReplacementRequests)
	}
	// |3-1| + |2-4| = 4
	if summary.ReplicaChanges != 4 {
		t.Errorf("expected 4 replica changes, got %d", summary.ReplicaChanges)
	}
}

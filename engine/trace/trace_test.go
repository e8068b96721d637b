package trace

import (
	"sync"
	"testing"
)

func TestDecisionTrace_RecordPlacement_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	dt := NewDecisionTrace(TraceLevelDecisions)

	// WHEN a placement record is recorded
	dt.RecordPlacement(PlacementRecord{
		Strategy:   "first-fit",
		Services:   2,
		Clusters:   2,
		Status:     "placed",
		Assignment: map[string]string{"a": "edge", "b": "core"},
	})

	// THEN the trace contains one placement record with correct data
	got := dt.Placements()
	if len(got) != 1 {
		t.Fatalf("expected 1 placement record, got %d", len(got))
	}
	if got[0].Strategy != "first-fit" || got[0].Assignment["b"] != "core" {
		t.Errorf("unexpected record %+v", got[0])
	}
}

func TestDecisionTrace_LevelNone_DropsRecords(t *testing.T) {
	dt := NewDecisionTrace(TraceLevelNone)
	dt.RecordPlacement(PlacementRecord{Strategy: "first-fit"})
	dt.RecordScaling(ScalingRecord{Cluster: "edge"})

	if len(dt.Placements()) != 0 || len(dt.Scalings()) != 0 {
		t.Error("expected no records when tracing is disabled")
	}
}

func TestDecisionTrace_NilTrace_IsSafe(t *testing.T) {
	var dt *DecisionTrace
	dt.RecordScaling(ScalingRecord{Cluster: "edge"})
	if dt.Enabled() {
		t.Error("nil trace must report disabled")
	}
	if dt.Scalings() != nil {
		t.Error("nil trace must return nil records")
	}
}

func TestDecisionTrace_ConcurrentRecording(t *testing.T) {
	dt := NewDecisionTrace(TraceLevelDecisions)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				dt.RecordScaling(ScalingRecord{Cluster: "edge", Decided: []int{i}})
			}
		}(i)
	}
	wg.Wait()
	if got := len(dt.Scalings()); got != 400 {
		t.Errorf("expected 400 scaling records, got %d", got)
	}
}

func TestDecisionTrace_ReturnsCopies(t *testing.T) {
	dt := NewDecisionTrace(TraceLevelDecisions)
	dt.RecordScaling(ScalingRecord{Cluster: "edge"})
	got := dt.Scalings()
	got[0].Cluster = "mutated"
	if dt.Scalings()[0].Cluster != "edge" {
		t.Error("mutating the returned slice must not change the trace")
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	for _, level := range []string{"", "none", "decisions"} {
		if !IsValidTraceLevel(level) {
			t.Errorf("expected %q to be valid", level)
		}
	}
	if IsValidTraceLevel("verbose") {
		t.Error("expected verbose to be invalid")
	}
}

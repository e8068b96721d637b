package trace

import "sync"

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every placement and scaling decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// DecisionTrace collects decision records. Safe for concurrent use, since
// control loops for different clusters record into one trace.
type DecisionTrace struct {
	Level TraceLevel

	mu         sync.Mutex
	placements []PlacementRecord
	scalings   []ScalingRecord
}

// NewDecisionTrace creates a trace ready for recording.
func NewDecisionTrace(level TraceLevel) *DecisionTrace {
	return &DecisionTrace{Level: level}
}

// Enabled reports whether records are kept. A nil trace is disabled.
func (dt *DecisionTrace) Enabled() bool {
	return dt != nil && dt.Level == TraceLevelDecisions
}

// RecordPlacement appends a placement record if tracing is enabled.
func (dt *DecisionTrace) RecordPlacement(record PlacementRecord) {
	if !dt.Enabled() {
		return
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.placements = append(dt.placements, record)
}

// RecordScaling appends a scaling record if tracing is enabled.
func (dt *DecisionTrace) RecordScaling(record ScalingRecord) {
	if !dt.Enabled() {
		return
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.scalings = append(dt.scalings, record)
}

// Placements returns a copy of the placement records in recording order.
func (dt *DecisionTrace) Placements() []PlacementRecord {
	if dt == nil {
		return nil
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return append([]PlacementRecord(nil), dt.placements...)
}

// Scalings returns a copy of the scaling records in recording order.
func (dt *DecisionTrace) Scalings() []ScalingRecord {
	if dt == nil {
		return nil
	}
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return append([]ScalingRecord(nil), dt.scalings...)
}

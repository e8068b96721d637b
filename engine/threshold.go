package engine

import "fmt"

// ScalingAction is the outcome of a threshold scaling iteration.
type ScalingAction string

const (
	ActionNone      ScalingAction = "none"
	ActionScaleUp   ScalingAction = "scale_up"
	ActionScaleDown ScalingAction = "scale_down"
)

// ThresholdScaler is a stateless request-rate threshold policy: above
// ScaleUpThreshold scale to ScaleUpReplicas, below ScaleDownThreshold scale to
// ScaleDownReplicas. Cooldowns and loops belong to the caller.
type ThresholdScaler struct {
	ScaleUpThreshold   float64 `yaml:"scale_up_threshold"`
	ScaleDownThreshold float64 `yaml:"scale_down_threshold"`
	ScaleUpReplicas    int     `yaml:"scale_up_replicas"`
	ScaleDownReplicas  int     `yaml:"scale_down_replicas"`
}

// ThresholdDecision describes what a threshold iteration decided and why.
type ThresholdDecision struct {
	Action          ScalingAction `yaml:"action"`
	NewReplicas     int           `yaml:"new_replicas,omitempty"`
	CurrentReplicas int           `yaml:"current_replicas"`
	RequestRate     float64       `yaml:"request_rate,omitempty"`
	Reason          string        `yaml:"reason"`
}

// Validate checks threshold ordering and replica targets.
func (t *ThresholdScaler) Validate() error {
	if t.ScaleDownThreshold > t.ScaleUpThreshold {
		return fmt.Errorf("%w: scale-down threshold %.2f above scale-up threshold %.2f", ErrInvalidInput, t.ScaleDownThreshold, t.ScaleUpThreshold)
	}
	if t.ScaleUpReplicas < 1 || t.ScaleDownReplicas < 1 {
		return fmt.Errorf("%w: replica targets must be >= 1", ErrInvalidInput)
	}
	if t.ScaleDownReplicas > t.ScaleUpReplicas {
		return fmt.Errorf("%w: scale-down replicas %d above scale-up replicas %d", ErrInvalidInput, t.ScaleDownReplicas, t.ScaleUpReplicas)
	}
	return nil
}

// Decide evaluates one iteration. rateKnown is false when the metrics
// collaborator could not supply a rate; no action is taken then.
func (t *ThresholdScaler) Decide(rate float64, rateKnown bool, currentReplicas int) ThresholdDecision {
	if !rateKnown {
		return ThresholdDecision{
			Action:          ActionNone,
			CurrentReplicas: currentReplicas,
			Reason:          "Could not retrieve request rate metrics.",
		}
	}
	if rate > t.ScaleUpThreshold && currentReplicas < t.ScaleUpReplicas {
		return ThresholdDecision{
			Action:          ActionScaleUp,
			NewReplicas:     t.ScaleUpReplicas,
			CurrentReplicas: currentReplicas,
			RequestRate:     rate,
			Reason:          fmt.Sprintf("Request rate %.2f RPS exceeded scale-up threshold of %.2f RPS.", rate, t.ScaleUpThreshold),
		}
	}
	if rate < t.ScaleDownThreshold && currentReplicas > t.ScaleDownReplicas {
		return ThresholdDecision{
			Action:          ActionScaleDown,
			NewReplicas:     t.ScaleDownReplicas,
			CurrentReplicas: currentReplicas,
			RequestRate:     rate,
			Reason:          fmt.Sprintf("Request rate %.2f RPS is below scale-down threshold of %.2f RPS.", rate, t.ScaleDownThreshold),
		}
	}
	return ThresholdDecision{
		Action:          ActionNone,
		CurrentReplicas: currentReplicas,
		RequestRate:     rate,
		Reason:          "Request rate is within thresholds or deployment is already at target replicas.",
	}
}

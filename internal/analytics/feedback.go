package analytics

import "math"

// Severity grades how urgently a feedback item should be surfaced
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities for sorting, higher is more urgent
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Feedback is the item every engine query produces. Items are computed on each
// call and never cached.
type Feedback struct {
	Type        string         `json:"type"`
	Severity    Severity       `json:"severity,omitempty"`
	Message     string         `json:"message"`
	Suggestion  string         `json:"suggestion,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Emoji       string         `json:"emoji,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Feedback types shared across engines
const (
	TypeInfo        = "info"
	TypeProgress    = "progress"
	TypeStagnation  = "stagnation"
	TypeConsistency = "consistency"
	TypeConsistent  = "consistent"

	TypeCompleteStagnation = "complete_stagnation"
	TypeWeightStagnation   = "weight_stagnation"
	TypeVolumeStagnation   = "volume_stagnation"
	TypePlateauBroken      = "plateau_broken"

	TypeOvertraining  = "overtraining"
	TypeHighFrequency = "high_frequency"
	TypeUndertraining = "undertraining"
	TypeOptimal       = "optimal"
	TypeNoRest        = "no_rest"
	TypeLowRest       = "low_rest"
	TypeGoodRest      = "good_rest"
	TypeHighRest      = "high_rest"
	TypeHighVolume    = "high_volume"
	TypeHighIntensity = "high_intensity"
	TypeBalanced      = "balanced"
)

// round1 rounds to one decimal place
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// percentChange returns the relative change from -> to in percent. A zero
// base yields 0 so results stay JSON encodable.
func percentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

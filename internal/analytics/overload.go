package analytics

import (
	"fmt"
	"time"
)

const (
	// overloadWindow is how many trailing sessions SuggestIncrease inspects
	overloadWindow = 6
	// overloadStagnantSessions identical sessions mark a stagnation
	overloadStagnantSessions = 6
	// overloadConsistentSessions identical sessions mark a consistency streak
	overloadConsistentSessions = 4
)

// OverloadEngine detects session-over-session progress and plateaus for
// each tracked exercise.
type OverloadEngine struct {
	history *ExerciseHistory
}

// NewOverloadEngine creates an engine with an empty history
func NewOverloadEngine() *OverloadEngine {
	return &OverloadEngine{history: NewExerciseHistory()}
}

// LogSession stores a session. Values are not validated.
func (e *OverloadEngine) LogSession(exercise string, weight float64, reps, sets int, date time.Time) {
	e.history.Add(exercise, NewSessionLog(weight, reps, sets, date))
}

// History exposes the engine's history for read-only use
func (e *OverloadEngine) History() *ExerciseHistory {
	return e.history
}

// progressRule is one entry of the session-over-session improvement cascade
type progressRule struct {
	dimension string
	match     func(last, prev SessionLog) bool
	build     func(last, prev SessionLog) Feedback
}

// progressRules are evaluated in order, the first match wins. Weight beats
// reps, reps beat sets, sets beat volume.
var progressRules = []progressRule{
	{
		dimension: "weight",
		match:     func(last, prev SessionLog) bool { return last.Weight > prev.Weight },
		build: func(last, prev SessionLog) Feedback {
			pct := round1(percentChange(prev.Weight, last.Weight))
			return Feedback{
				Type:    TypeProgress,
				Message: fmt.Sprintf("Weight up %.1f%% from last session (%skg → %skg)", pct, formatKg(prev.Weight), formatKg(last.Weight)),
				Emoji:   "💪",
				Data: map[string]any{
					"dimension": "weight",
					"previous":  prev.Weight,
					"current":   last.Weight,
					"change":    last.Weight - prev.Weight,
					"percent":   pct,
				},
			}
		},
	},
	{
		dimension: "reps",
		match:     func(last, prev SessionLog) bool { return last.Reps > prev.Reps },
		build: func(last, prev SessionLog) Feedback {
			return Feedback{
				Type:    TypeProgress,
				Message: fmt.Sprintf("%d more reps than last session (%d → %d)", last.Reps-prev.Reps, prev.Reps, last.Reps),
				Emoji:   "🔥",
				Data: map[string]any{
					"dimension": "reps",
					"previous":  prev.Reps,
					"current":   last.Reps,
					"change":    last.Reps - prev.Reps,
				},
			}
		},
	},
	{
		dimension: "sets",
		match:     func(last, prev SessionLog) bool { return last.Sets > prev.Sets },
		build: func(last, prev SessionLog) Feedback {
			return Feedback{
				Type:    TypeProgress,
				Message: fmt.Sprintf("%d more sets than last session (%d → %d)", last.Sets-prev.Sets, prev.Sets, last.Sets),
				Emoji:   "📈",
				Data: map[string]any{
					"dimension": "sets",
					"previous":  prev.Sets,
					"current":   last.Sets,
					"change":    last.Sets - prev.Sets,
				},
			}
		},
	},
	{
		dimension: "volume",
		match:     func(last, prev SessionLog) bool { return last.Volume > prev.Volume },
		build: func(last, prev SessionLog) Feedback {
			pct := round1(percentChange(prev.Volume, last.Volume))
			return Feedback{
				Type:    TypeProgress,
				Message: fmt.Sprintf("Total volume up %.1f%% from last session", pct),
				Emoji:   "📊",
				Data: map[string]any{
					"dimension": "volume",
					"previous":  prev.Volume,
					"current":   last.Volume,
					"percent":   pct,
				},
			}
		},
	},
}

// SuggestIncrease compares the two latest sessions and, without improvement,
// checks the trailing window for a plateau.
func (e *OverloadEngine) SuggestIncrease(exercise string) Feedback {
	logs := e.history.Logs(exercise)
	if len(logs) < 2 {
		return Feedback{
			Type:    TypeInfo,
			Message: fmt.Sprintf("Log at least 2 sessions of %s to get progression feedback", exercise),
			Emoji:   "📝",
		}
	}

	last, prev := logs[len(logs)-1], logs[len(logs)-2]
	for _, rule := range progressRules {
		if rule.match(last, prev) {
			return rule.build(last, prev)
		}
	}

	count := identicalTrailing(logs, overloadWindow)
	switch {
	case count >= overloadStagnantSessions:
		suggestions := ProgressionSuggestions(last)
		return Feedback{
			Type:     TypeStagnation,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("You've done %skg × %d reps × %d sets for %d sessions in a row",
				formatKg(last.Weight), last.Reps, last.Sets, count),
			Suggestion:  suggestions[0],
			Suggestions: suggestions,
			Emoji:       "⚠️",
			Data: map[string]any{
				"weight":   last.Weight,
				"reps":     last.Reps,
				"sets":     last.Sets,
				"sessions": count,
			},
		}
	case count >= overloadConsistentSessions:
		return Feedback{
			Type:       TypeConsistency,
			Severity:   SeverityLow,
			Message:    fmt.Sprintf("Same load for %d sessions. Solid consistency, time to push a little", count),
			Suggestion: ProgressionSuggestions(last)[0],
			Emoji:      "🎯",
			Data:       map[string]any{"sessions": count},
		}
	default:
		return Feedback{
			Type:    TypeConsistent,
			Message: fmt.Sprintf("Keep showing up for %s, progress follows consistency", exercise),
			Emoji:   "👍",
		}
	}
}

// identicalTrailing counts consecutive sessions, from the latest backwards,
// that match the latest load. At most window sessions are inspected.
func identicalTrailing(logs []SessionLog, window int) int {
	if len(logs) == 0 {
		return 0
	}
	latest := logs[len(logs)-1]
	stop := max(0, len(logs)-window)
	count := 0
	for i := len(logs) - 1; i >= stop; i-- {
		if !logs[i].sameLoad(latest) {
			break
		}
		count++
	}
	return count
}

// ProgressSummary compares the first and latest session of an exercise
type ProgressSummary struct {
	Exercise            string  `json:"exercise"`
	StartWeight         float64 `json:"startWeight"`
	CurrentWeight       float64 `json:"currentWeight"`
	WeightChange        float64 `json:"weightChange"`
	WeightChangePercent float64 `json:"weightChangePercent"`
	StartVolume         float64 `json:"startVolume"`
	CurrentVolume       float64 `json:"currentVolume"`
	VolumeChange        float64 `json:"volumeChange"`
	VolumeChangePercent float64 `json:"volumeChangePercent"`
	DaysTracked         int     `json:"daysTracked"`
	TotalSessions       int     `json:"totalSessions"`
}

// ProgressSummary returns nil when nothing is logged for the exercise
func (e *OverloadEngine) ProgressSummary(exercise string) *ProgressSummary {
	logs := e.history.Logs(exercise)
	if len(logs) == 0 {
		return nil
	}
	first, last := logs[0], logs[len(logs)-1]
	return &ProgressSummary{
		Exercise:            exercise,
		StartWeight:         first.Weight,
		CurrentWeight:       last.Weight,
		WeightChange:        last.Weight - first.Weight,
		WeightChangePercent: round1(percentChange(first.Weight, last.Weight)),
		StartVolume:         first.Volume,
		CurrentVolume:       last.Volume,
		VolumeChange:        last.Volume - first.Volume,
		VolumeChangePercent: round1(percentChange(first.Volume, last.Volume)),
		DaysTracked:         wholeDays(first.Date, last.Date),
		TotalSessions:       len(logs),
	}
}

// wholeDays floors the elapsed time between two instants to days
func wholeDays(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// RecordEntry is the session that holds one personal record
type RecordEntry struct {
	Value  float64   `json:"value"`
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
	Reps   int       `json:"reps"`
	Sets   int       `json:"sets"`
	Volume float64   `json:"volume"`
}

// PersonalRecords holds the best weight, reps and volume sessions
type PersonalRecords struct {
	Exercise  string      `json:"exercise"`
	MaxWeight RecordEntry `json:"maxWeight"`
	MaxReps   RecordEntry `json:"maxReps"`
	MaxVolume RecordEntry `json:"maxVolume"`
}

func recordFrom(l SessionLog, value float64) RecordEntry {
	return RecordEntry{Value: value, Date: l.Date, Weight: l.Weight, Reps: l.Reps, Sets: l.Sets, Volume: l.Volume}
}

// PersonalRecords returns nil for an unknown exercise. Ties resolve to the
// earliest session holding the maximum.
func (e *OverloadEngine) PersonalRecords(exercise string) *PersonalRecords {
	logs := e.history.Logs(exercise)
	if len(logs) == 0 {
		return nil
	}

	wIdx, rIdx, vIdx := 0, 0, 0
	for i, l := range logs {
		if l.Weight > logs[wIdx].Weight {
			wIdx = i
		}
		if l.Reps > logs[rIdx].Reps {
			rIdx = i
		}
		if l.Volume > logs[vIdx].Volume {
			vIdx = i
		}
	}

	return &PersonalRecords{
		Exercise:  exercise,
		MaxWeight: recordFrom(logs[wIdx], logs[wIdx].Weight),
		MaxReps:   recordFrom(logs[rIdx], float64(logs[rIdx].Reps)),
		MaxVolume: recordFrom(logs[vIdx], logs[vIdx].Volume),
	}
}

// PR record types
const (
	PRFirst  = "first"
	PRWeight = "weight"
	PRReps   = "reps"
	PRVolume = "volume"
)

// PRRecord announces a personal record set by a session
type PRRecord struct {
	Type     string  `json:"type"`
	Message  string  `json:"message"`
	Emoji    string  `json:"emoji,omitempty"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
}

// CheckForPR compares a session against the stored history. With no history a
// single first-time marker is returned. Otherwise it returns one record per
// beaten dimension, or nil when nothing was beaten.
func (e *OverloadEngine) CheckForPR(exercise string, weight float64, reps, sets int) []PRRecord {
	logs := e.history.Logs(exercise)
	if len(logs) == 0 {
		return []PRRecord{{
			Type:    PRFirst,
			Message: fmt.Sprintf("First time logging %s! This is your baseline", exercise),
			Emoji:   "🌱",
		}}
	}

	volume := weight * float64(reps) * float64(sets)
	var maxWeight, maxVolume float64
	var maxReps int
	for i, l := range logs {
		if i == 0 || l.Weight > maxWeight {
			maxWeight = l.Weight
		}
		if i == 0 || l.Reps > maxReps {
			maxReps = l.Reps
		}
		if i == 0 || l.Volume > maxVolume {
			maxVolume = l.Volume
		}
	}

	var records []PRRecord
	if weight > maxWeight {
		records = append(records, PRRecord{
			Type:     PRWeight,
			Message:  fmt.Sprintf("New weight PR on %s: %skg (previous best %skg)", exercise, formatKg(weight), formatKg(maxWeight)),
			Emoji:    "🏆",
			Previous: maxWeight,
			Current:  weight,
		})
	}
	if reps > maxReps {
		records = append(records, PRRecord{
			Type:     PRReps,
			Message:  fmt.Sprintf("New rep PR on %s: %d reps (previous best %d)", exercise, reps, maxReps),
			Emoji:    "🔥",
			Previous: float64(maxReps),
			Current:  float64(reps),
		})
	}
	if volume > maxVolume {
		records = append(records, PRRecord{
			Type:     PRVolume,
			Message:  fmt.Sprintf("New volume PR on %s: %skg total (previous best %skg)", exercise, formatKg(volume), formatKg(maxVolume)),
			Emoji:    "📈",
			Previous: maxVolume,
			Current:  volume,
		})
	}
	return records
}

// StagnantExercises lists exercises whose SuggestIncrease currently reports
// a stagnation.
func (e *OverloadEngine) StagnantExercises() []string {
	var stagnant []string
	for _, name := range e.history.Exercises() {
		if e.SuggestIncrease(name).Type == TypeStagnation {
			stagnant = append(stagnant, name)
		}
	}
	return stagnant
}

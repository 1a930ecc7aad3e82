package analytics

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultStagnationThreshold is the trailing window size CheckStagnation uses
	DefaultStagnationThreshold = 6
	// volumeVariationLimit is the max-min spread, in percent of the mean,
	// below which volume counts as flat
	volumeVariationLimit = 10.0
	// consistentSpan bounds how long the last 5 sessions may take to count as consistent
	consistentSpan = 14 * 24 * time.Hour
)

// StagnationDetector is a stricter plateau detector that keeps its own history
type StagnationDetector struct {
	history  *ExerciseHistory
	throttle *NotificationThrottle
}

// NewStagnationDetector creates a detector with an empty history
func NewStagnationDetector() *StagnationDetector {
	return NewStagnationDetectorWithThrottle(NewNotificationThrottle())
}

// NewStagnationDetectorWithThrottle creates a detector with an empty history
// that records notifications in throttle, so the caller can keep them across
// history reloads.
func NewStagnationDetectorWithThrottle(throttle *NotificationThrottle) *StagnationDetector {
	return &StagnationDetector{
		history:  NewExerciseHistory(),
		throttle: throttle,
	}
}

// LogExercise stores a session, keeping the exercise sorted by date
func (d *StagnationDetector) LogExercise(exercise string, weight float64, reps, sets int, date time.Time) {
	d.history.Add(exercise, NewSessionLog(weight, reps, sets, date))
}

// History exposes the detector's history for read-only use
func (d *StagnationDetector) History() *ExerciseHistory {
	return d.history
}

// CheckStagnation classifies the trailing threshold sessions. It returns nil
// when there is not enough history or no stagnation is found.
func (d *StagnationDetector) CheckStagnation(exercise string, threshold int) *Feedback {
	if threshold <= 0 {
		threshold = DefaultStagnationThreshold
	}
	logs := d.history.Logs(exercise)
	if len(logs) < threshold {
		return nil
	}

	window := logs[len(logs)-threshold:]
	first, last := window[0], window[len(window)-1]

	if allSameLoad(window) {
		suggestions := StagnationSuggestions(last)
		return &Feedback{
			Type:     TypeCompleteStagnation,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("%s has been stuck at %skg × %d × %d for %d sessions",
				exercise, formatKg(last.Weight), last.Reps, last.Sets, len(window)),
			Suggestion:  suggestions[0],
			Suggestions: suggestions,
			Emoji:       "🛑",
			Data: map[string]any{
				"weight":   last.Weight,
				"reps":     last.Reps,
				"sets":     last.Sets,
				"sessions": len(window),
				"days":     wholeDays(first.Date, last.Date),
			},
		}
	}

	if allSameWeight(window) {
		return &Feedback{
			Type:       TypeWeightStagnation,
			Severity:   SeverityMedium,
			Message:    fmt.Sprintf("%s weight has stayed at %skg for %d sessions", exercise, formatKg(last.Weight), len(window)),
			Suggestion: StagnationSuggestions(last)[0],
			Emoji:      "⚖️",
			Data: map[string]any{
				"weight":   last.Weight,
				"sessions": len(window),
			},
		}
	}

	var total, lo, hi float64
	for i, l := range window {
		total += l.Volume
		if i == 0 || l.Volume < lo {
			lo = l.Volume
		}
		if i == 0 || l.Volume > hi {
			hi = l.Volume
		}
	}
	mean := total / float64(len(window))
	if mean > 0 {
		variation := (hi - lo) / mean * 100
		if variation < volumeVariationLimit {
			return &Feedback{
				Type:       TypeVolumeStagnation,
				Severity:   SeverityLow,
				Message:    fmt.Sprintf("%s total volume has varied only %.1f%% over %d sessions", exercise, variation, len(window)),
				Suggestion: "Push one variable (weight, reps or sets) beyond your usual range this week",
				Emoji:      "📉",
				Data: map[string]any{
					"avgVolume": round1(mean),
					"variation": round1(variation),
				},
			}
		}
	}

	return nil
}

func allSameLoad(window []SessionLog) bool {
	for _, l := range window[1:] {
		if !l.sameLoad(window[0]) {
			return false
		}
	}
	return true
}

func allSameWeight(window []SessionLog) bool {
	for _, l := range window[1:] {
		if l.Weight != window[0].Weight {
			return false
		}
	}
	return true
}

// CheckPlateauBreak reports when the latest session improves on six
// completely stagnant sessions before it.
func (d *StagnationDetector) CheckPlateauBreak(exercise string) *Feedback {
	logs := d.history.Logs(exercise)
	if len(logs) < DefaultStagnationThreshold+1 {
		return nil
	}

	latest := logs[len(logs)-1]
	window := logs[len(logs)-DefaultStagnationThreshold-1 : len(logs)-1]
	if !allSameLoad(window) {
		return nil
	}
	plateau := window[len(window)-1]

	var improvements []string
	if latest.Weight > plateau.Weight {
		improvements = append(improvements, fmt.Sprintf("Weight +%.1f%%", percentChange(plateau.Weight, latest.Weight)))
	}
	if latest.Reps > plateau.Reps {
		improvements = append(improvements, fmt.Sprintf("Reps +%d", latest.Reps-plateau.Reps))
	}
	if latest.Sets > plateau.Sets {
		improvements = append(improvements, fmt.Sprintf("Sets +%d", latest.Sets-plateau.Sets))
	}
	if latest.Volume > plateau.Volume {
		improvements = append(improvements, fmt.Sprintf("Volume +%.1f%%", percentChange(plateau.Volume, latest.Volume)))
	}
	if len(improvements) == 0 {
		return nil
	}

	return &Feedback{
		Type:     TypePlateauBroken,
		Severity: SeverityNone,
		Message: fmt.Sprintf("Plateau broken on %s after %d stagnant sessions: %s",
			exercise, len(window), strings.Join(improvements, ", ")),
		Emoji: "🎉",
		Data: map[string]any{
			"improvements":     improvements,
			"stagnantSessions": len(window),
		},
	}
}

// StagnantExercise pairs an exercise with its stagnation feedback
type StagnantExercise struct {
	Exercise string   `json:"exercise"`
	Feedback Feedback `json:"feedback"`
}

// AllStagnantExercises checks every exercise with the default threshold and
// sorts the result by severity, most severe first.
func (d *StagnationDetector) AllStagnantExercises() []StagnantExercise {
	var out []StagnantExercise
	for _, name := range d.history.Exercises() {
		if fb := d.CheckStagnation(name, DefaultStagnationThreshold); fb != nil {
			out = append(out, StagnantExercise{Exercise: name, Feedback: *fb})
		}
	}
	slices.SortStableFunc(out, func(a, b StagnantExercise) int {
		return b.Feedback.Severity.rank() - a.Feedback.Severity.rank()
	})
	return out
}

// Motivation kinds
const (
	MotivationStart      = "start"
	MotivationBeginner   = "beginner"
	MotivationProgress   = "progress"
	MotivationConsistent = "consistent"
	MotivationChallenge  = "challenge"
	MotivationGeneral    = "general"
)

// Motivation is a short encouraging message for an exercise
type Motivation struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Emoji   string `json:"emoji"`
}

// MotivationMessage picks a message from the recent history of an exercise
func (d *StagnationDetector) MotivationMessage(exercise string) Motivation {
	logs := d.history.Logs(exercise)
	switch {
	case len(logs) == 0:
		return Motivation{MotivationStart, fmt.Sprintf("Log your first %s session to start tracking progress", exercise), "🚀"}
	case len(logs) == 1:
		return Motivation{MotivationBeginner, fmt.Sprintf("Great start on %s! Every session builds the baseline", exercise), "🌱"}
	case recentlyImproved(logs):
		return Motivation{MotivationProgress, fmt.Sprintf("You're getting stronger on %s, keep it going", exercise), "💪"}
	case len(logs) >= 5 && logs[len(logs)-1].Date.Sub(logs[len(logs)-5].Date) <= consistentSpan:
		return Motivation{MotivationConsistent, fmt.Sprintf("Five %s sessions in two weeks, consistency wins", exercise), "🔥"}
	case d.CheckStagnation(exercise, DefaultStagnationThreshold) != nil:
		return Motivation{MotivationChallenge, fmt.Sprintf("%s is ready for a new challenge. Change one variable next session", exercise), "🎯"}
	default:
		return Motivation{MotivationGeneral, fmt.Sprintf("Keep training %s, results compound over time", exercise), "👊"}
	}
}

// recentlyImproved reports any strict improvement in weight, reps or volume
// between consecutive pairs of the last three sessions.
func recentlyImproved(logs []SessionLog) bool {
	recent := logs[max(0, len(logs)-3):]
	for i := 1; i < len(recent); i++ {
		prev, cur := recent[i-1], recent[i]
		if cur.Weight > prev.Weight || cur.Reps > prev.Reps || cur.Volume > prev.Volume {
			return true
		}
	}
	return false
}

// ProgressStreak counts trailing sessions with strictly increasing volume
type ProgressStreak struct {
	Streak  int    `json:"streak"`
	Message string `json:"message"`
	Emoji   string `json:"emoji"`
}

// ProgressStreak walks back from the latest session while volume keeps rising
func (d *StagnationDetector) ProgressStreak(exercise string) ProgressStreak {
	logs := d.history.Logs(exercise)
	streak := 0
	for i := len(logs) - 1; i > 0; i-- {
		if logs[i].Volume <= logs[i-1].Volume {
			break
		}
		streak++
	}

	switch {
	case streak == 0:
		return ProgressStreak{streak, "Beat your last volume to start a progress streak", "🎯"}
	case streak == 1:
		return ProgressStreak{streak, "Volume up on your last session, build on it", "📈"}
	case streak < 5:
		return ProgressStreak{streak, fmt.Sprintf("%d sessions in a row of rising volume", streak), "🔥"}
	default:
		return ProgressStreak{streak, fmt.Sprintf("%d straight sessions of progress, outstanding", streak), "🏆"}
	}
}

// ShouldNotify reports whether a stagnation nudge for exercise is due at now
// and, if so, records it. Callers wanting a pure check use Throttle().Due.
func (d *StagnationDetector) ShouldNotify(exercise string, now time.Time) bool {
	if !d.throttle.Due(exercise, now) {
		return false
	}
	d.throttle.MarkNotified(exercise, now)
	return true
}

// Throttle returns the notification state backing ShouldNotify
func (d *StagnationDetector) Throttle() *NotificationThrottle {
	return d.throttle
}

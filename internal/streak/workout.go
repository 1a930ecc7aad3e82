package streak

import (
	"fmt"
	"slices"
	"time"
)

// DefaultBuffer is how many missed days a workout streak forgives
const DefaultBuffer = 2

// Milestones celebrated by the workout tracker
var Milestones = []int{7, 14, 21, 30, 100}

// Event kinds reported by trackers
const (
	EventFirst     = "first"
	EventSameDay   = "same_day"
	EventContinued = "continued"
	EventForgiven  = "forgiven"
	EventMilestone = "milestone"
	EventBroken    = "broken"
	EventFrozen    = "frozen"
	EventReset     = "reset"
	EventBackdated = "backdated"
)

// Update describes the result of one tracker event
type Update struct {
	Event     string `json:"event"`
	Streak    int    `json:"streak"`
	Message   string `json:"message"`
	Emoji     string `json:"emoji,omitempty"`
	Milestone int    `json:"milestone,omitempty"`
}

// WorkoutState is the persisted form of a WorkoutTracker
type WorkoutState struct {
	StreakCount    int        `json:"streakCount"`
	LastActiveDate *time.Time `json:"lastActiveDate"`
	MaxStreak      int        `json:"maxStreak"`
	Buffer         int        `json:"buffer"`
	RecoveryBonus  bool       `json:"recoveryBonus"`
}

// WorkoutTracker is a day-granularity streak that forgives short gaps by
// spending a buffer of missed days.
type WorkoutTracker struct {
	state WorkoutState
}

// NewWorkoutTracker returns an empty tracker with a full buffer
func NewWorkoutTracker() *WorkoutTracker {
	return &WorkoutTracker{state: WorkoutState{Buffer: DefaultBuffer}}
}

// RestoreWorkoutTracker rehydrates a tracker from persisted state
func RestoreWorkoutTracker(state WorkoutState) *WorkoutTracker {
	if state.LastActiveDate == nil && state.StreakCount == 0 && state.Buffer == 0 {
		state.Buffer = DefaultBuffer
	}
	return &WorkoutTracker{state: state}
}

// State returns a copy of the tracker state for persistence
func (t *WorkoutTracker) State() WorkoutState {
	s := t.state
	if s.LastActiveDate != nil {
		d := *s.LastActiveDate
		s.LastActiveDate = &d
	}
	return s
}

// LogWorkout records a workout on date and advances the streak
func (t *WorkoutTracker) LogWorkout(date time.Time) Update {
	day := midnight(date)
	if t.state.LastActiveDate == nil {
		t.state.StreakCount = 1
		t.state.Buffer = DefaultBuffer
		t.touch(day)
		return Update{Event: EventFirst, Streak: 1, Message: "First workout logged! Your streak starts today", Emoji: "🌱"}
	}

	gap := DaysBetween(*t.state.LastActiveDate, day)
	switch {
	case gap < 0:
		return Update{Event: EventBackdated, Streak: t.state.StreakCount, Message: "That workout is older than your last one, streak unchanged", Emoji: "📅"}
	case gap == 0:
		return Update{Event: EventSameDay, Streak: t.state.StreakCount, Message: "Already trained today, streak safe", Emoji: "✅"}
	case gap == 1:
		t.state.Buffer = DefaultBuffer
		return t.increment(day, EventContinued)
	case gap <= t.state.Buffer+1:
		t.state.Buffer -= gap - 1
		return t.increment(day, EventForgiven)
	default:
		old := t.state.StreakCount
		t.state.StreakCount = max(1, old/2)
		t.state.Buffer = DefaultBuffer
		t.state.RecoveryBonus = true
		t.touch(day)
		return Update{
			Event:   EventBroken,
			Streak:  t.state.StreakCount,
			Message: fmt.Sprintf("Streak broken after %d days off, but you keep %d of your %d days. Welcome back!", gap-1, t.state.StreakCount, old),
			Emoji:   "💪",
		}
	}
}

func (t *WorkoutTracker) increment(day time.Time, event string) Update {
	t.state.StreakCount++
	t.state.RecoveryBonus = false
	t.touch(day)

	n := t.state.StreakCount
	if slices.Contains(Milestones, n) {
		return Update{Event: EventMilestone, Streak: n, Milestone: n, Message: fmt.Sprintf("%d-day streak milestone reached!", n), Emoji: "🏆"}
	}

	u := Update{Event: event, Streak: n}
	switch {
	case n < 3:
		u.Message, u.Emoji = fmt.Sprintf("%d days in a row, keep it up", n), "👍"
	case n < 7:
		u.Message, u.Emoji = fmt.Sprintf("%d-day streak, building momentum", n), "🔥"
	case n < 30:
		u.Message, u.Emoji = fmt.Sprintf("%d-day streak, this is a habit now", n), "⚡"
	default:
		u.Message, u.Emoji = fmt.Sprintf("%d-day streak, unstoppable", n), "🚀"
	}
	if event == EventForgiven {
		u.Message += fmt.Sprintf(" (buffer left: %d)", t.state.Buffer)
	}
	return u
}

func (t *WorkoutTracker) touch(day time.Time) {
	t.state.LastActiveDate = &day
	t.state.MaxStreak = max(t.state.MaxStreak, t.state.StreakCount)
}

// CurrentStreak reports the streak as of today. A streak whose gap can no
// longer be forgiven reads as 0; the state itself changes only on LogWorkout.
func (t *WorkoutTracker) CurrentStreak(today time.Time) int {
	if t.state.LastActiveDate == nil {
		return 0
	}
	if DaysBetween(*t.state.LastActiveDate, today) > t.state.Buffer+1 {
		return 0
	}
	return t.state.StreakCount
}

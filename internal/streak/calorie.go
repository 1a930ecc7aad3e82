package streak

import (
	"fmt"
	"time"
)

const (
	// DefaultFreezes is the monthly freeze allowance
	DefaultFreezes = 3
	// maxFreezeGap is the largest gap in days a freeze can cover
	maxFreezeGap = 3
)

// CalorieState is the persisted form of a CalorieTracker
type CalorieState struct {
	StreakCount    int        `json:"streakCount"`
	LastActiveDate *time.Time `json:"lastActiveDate"`
	MaxStreak      int        `json:"maxStreak"`
	FreezesLeft    int        `json:"freezesLeft"`
}

// CalorieTracker is a daily logging streak protected by monthly freezes
type CalorieTracker struct {
	state CalorieState
}

// NewCalorieTracker returns an empty tracker with a full freeze allowance
func NewCalorieTracker() *CalorieTracker {
	return &CalorieTracker{state: CalorieState{FreezesLeft: DefaultFreezes}}
}

// RestoreCalorieTracker rehydrates a tracker from persisted state
func RestoreCalorieTracker(state CalorieState) *CalorieTracker {
	if state.LastActiveDate == nil && state.StreakCount == 0 && state.FreezesLeft == 0 {
		state.FreezesLeft = DefaultFreezes
	}
	return &CalorieTracker{state: state}
}

// State returns a copy of the tracker state for persistence
func (t *CalorieTracker) State() CalorieState {
	s := t.state
	if s.LastActiveDate != nil {
		d := *s.LastActiveDate
		s.LastActiveDate = &d
	}
	return s
}

// LogDay records a logged calorie day
func (t *CalorieTracker) LogDay(date time.Time) Update {
	day := midnight(date)
	if t.state.LastActiveDate == nil {
		t.state.StreakCount = 1
		t.touch(day)
		return Update{Event: EventFirst, Streak: 1, Message: "First day logged! Come back tomorrow to build a streak", Emoji: "🥗"}
	}

	gap := DaysBetween(*t.state.LastActiveDate, day)
	switch {
	case gap < 0:
		return Update{Event: EventBackdated, Streak: t.state.StreakCount, Message: "That day is before your last log, streak unchanged", Emoji: "📅"}
	case gap == 0:
		return Update{Event: EventSameDay, Streak: t.state.StreakCount, Message: "Today is already logged", Emoji: "✅"}
	case gap == 1:
		t.state.StreakCount++
		t.touch(day)
		return Update{Event: EventContinued, Streak: t.state.StreakCount, Message: fmt.Sprintf("%d-day logging streak", t.state.StreakCount), Emoji: "🔥"}
	case gap <= maxFreezeGap && t.state.FreezesLeft > 0:
		t.state.FreezesLeft--
		t.state.StreakCount++
		t.touch(day)
		return Update{
			Event:   EventFrozen,
			Streak:  t.state.StreakCount,
			Message: fmt.Sprintf("Streak paused, not broken. Used a freeze, %d left this month", t.state.FreezesLeft),
			Emoji:   "🧊",
		}
	default:
		t.state.StreakCount = 1
		t.touch(day)
		return Update{
			Event:   EventReset,
			Streak:  1,
			Message: fmt.Sprintf("Fresh start! Your best is %d days, you can beat it", t.state.MaxStreak),
			Emoji:   "🌅",
		}
	}
}

func (t *CalorieTracker) touch(day time.Time) {
	t.state.LastActiveDate = &day
	t.state.MaxStreak = max(t.state.MaxStreak, t.state.StreakCount)
}

// ResetMonthlyFreezes restores the freeze allowance at a calendar boundary
func (t *CalorieTracker) ResetMonthlyFreezes() {
	t.state.FreezesLeft = DefaultFreezes
}

// CurrentStreak reports the streak as of today, 0 when the gap is too long
// for a freeze to cover.
func (t *CalorieTracker) CurrentStreak(today time.Time) int {
	if t.state.LastActiveDate == nil {
		return 0
	}
	gap := DaysBetween(*t.state.LastActiveDate, today)
	if gap <= 1 {
		return t.state.StreakCount
	}
	if gap <= maxFreezeGap && t.state.FreezesLeft > 0 {
		return t.state.StreakCount
	}
	return 0
}

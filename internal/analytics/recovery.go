package analytics

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Intensity of a recovery session
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityVigorous Intensity = "vigorous"
	// IntensityHigh is accepted as an alias of vigorous
	IntensityHigh Intensity = "high"
)

const (
	// DefaultSessionMinutes is used when a session has no duration
	DefaultSessionMinutes = 45.0
	recoveryWindow        = 7 * 24 * time.Hour
	recoveryWindowDays    = 7
)

// ParseIntensity maps free text to an Intensity, defaulting to moderate
func ParseIntensity(s string) Intensity {
	switch Intensity(strings.ToLower(strings.TrimSpace(s))) {
	case IntensityLight:
		return IntensityLight
	case IntensityVigorous, IntensityHigh:
		return IntensityVigorous
	default:
		return IntensityModerate
	}
}

func (i Intensity) vigorous() bool {
	return i == IntensityVigorous || i == IntensityHigh
}

// RecoverySession is one training session tagged for recovery analysis
type RecoverySession struct {
	MuscleGroup     string    `json:"muscleGroup"`
	Date            time.Time `json:"date"`
	Intensity       Intensity `json:"intensity"`
	DurationMinutes float64   `json:"durationMinutes"`
}

// RecoveryEngine analyses training frequency and rest over a trailing week
type RecoveryEngine struct {
	sessions []RecoverySession
}

// NewRecoveryEngine creates an engine with no sessions
func NewRecoveryEngine() *RecoveryEngine {
	return &RecoveryEngine{}
}

// LogSession stores a session with a lowercased muscle group
func (e *RecoveryEngine) LogSession(muscleGroup string, date time.Time, intensity Intensity, durationMinutes float64) {
	e.sessions = append(e.sessions, RecoverySession{
		MuscleGroup:     strings.ToLower(muscleGroup),
		Date:            date,
		Intensity:       intensity,
		DurationMinutes: durationMinutes,
	})
	slices.SortStableFunc(e.sessions, func(a, b RecoverySession) int {
		return a.Date.Compare(b.Date)
	})
}

// LogDefaultSession stores a moderate session of the default duration
func (e *RecoveryEngine) LogDefaultSession(muscleGroup string, date time.Time) {
	e.LogSession(muscleGroup, date, IntensityModerate, DefaultSessionMinutes)
}

// Sessions returns the stored sessions in date order. The slice must not be modified.
func (e *RecoveryEngine) Sessions() []RecoverySession {
	return e.sessions
}

// Recovery status values
const (
	StatusCritical  = "critical"
	StatusWarning   = "warning"
	StatusCaution   = "caution"
	StatusExcellent = "excellent"
	StatusGood      = "good"
)

// RecoveryMetrics summarises the trailing week
type RecoveryMetrics struct {
	TotalSessions          int            `json:"totalSessions"`
	RestDays               int            `json:"restDays"`
	TotalDuration          float64        `json:"totalDuration"`
	VigorousSessions       int            `json:"vigorousSessions"`
	MuscleGroupBreakdown   map[string]int `json:"muscleGroupBreakdown"`
	AverageSessionDuration float64        `json:"averageSessionDuration"`
}

// RestAdvice is the result of a weekly recovery analysis. Advice holds the
// warnings first, followed by the softer advice items.
type RestAdvice struct {
	Advice  []Feedback      `json:"advice"`
	Metrics RecoveryMetrics `json:"metrics"`
	Status  string          `json:"status"`
}

// weekStats is the single-pass aggregate over the trailing window
type weekStats struct {
	groups       map[string]int
	total        int
	duration     float64
	vigorous     int
	trainedDates map[civilDay]struct{}
}

func (e *RecoveryEngine) collect(now time.Time) weekStats {
	stats := weekStats{
		groups:       make(map[string]int),
		trainedDates: make(map[civilDay]struct{}),
	}
	for _, s := range e.sessions {
		age := now.Sub(s.Date)
		if age < 0 || age > recoveryWindow {
			continue
		}
		stats.groups[s.MuscleGroup]++
		stats.total++
		stats.duration += s.DurationMinutes
		if s.Intensity.vigorous() {
			stats.vigorous++
		}
		stats.trainedDates[dayOf(s.Date, now.Location())] = struct{}{}
	}
	return stats
}

// calendarDay truncates t to midnight in its own location
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// civilDay is a calendar date with no location attached, safe to use as a
// map key or compare with ==.
type civilDay struct {
	year  int
	month time.Month
	day   int
}

// dayOf returns the calendar date of t as seen from loc
func dayOf(t time.Time, loc *time.Location) civilDay {
	y, m, d := t.In(loc).Date()
	return civilDay{year: y, month: m, day: d}
}

// restDays counts how many of the last seven calendar days, today included,
// had no training. Days are taken in now's location.
func (s weekStats) restDays(now time.Time) int {
	today := calendarDay(now)
	trained := 0
	for i := 0; i < recoveryWindowDays; i++ {
		day := dayOf(today.AddDate(0, 0, -i), now.Location())
		if _, ok := s.trainedDates[day]; ok {
			trained++
		}
	}
	return recoveryWindowDays - trained
}

// frequencyRule is one entry of the per-group frequency cascade. warning
// marks items that go to the warnings list.
type frequencyRule struct {
	match   func(count int) bool
	warning bool
	build   func(group string, count int) Feedback
}

// frequencyRules are evaluated in order per muscle group, the first match wins
var frequencyRules = []frequencyRule{
	{
		match:   func(c int) bool { return c >= 7 },
		warning: true,
		build: func(group string, count int) Feedback {
			return Feedback{
				Type:       TypeOvertraining,
				Severity:   SeverityHigh,
				Message:    fmt.Sprintf("Critical load: %s trained %d times this week", group, count),
				Suggestion: fmt.Sprintf("Take at least 2 days off %s to recover", group),
				Emoji:      "🚨",
				Data:       map[string]any{"muscleGroup": group, "count": count},
			}
		},
	},
	{
		match:   func(c int) bool { return c == 6 },
		warning: true,
		build: func(group string, count int) Feedback {
			return Feedback{
				Type:       TypeOvertraining,
				Severity:   SeverityMedium,
				Message:    fmt.Sprintf("%s trained %d times this week, risk of overtraining", group, count),
				Suggestion: fmt.Sprintf("Give %s a rest day before training it again", group),
				Emoji:      "⚠️",
				Data:       map[string]any{"muscleGroup": group, "count": count},
			}
		},
	},
	{
		match: func(c int) bool { return c == 5 },
		build: func(group string, count int) Feedback {
			return Feedback{
				Type:       TypeHighFrequency,
				Severity:   SeverityLow,
				Message:    fmt.Sprintf("%s trained %d times this week", group, count),
				Suggestion: "High frequency works if intensity varies, keep some sessions light",
				Emoji:      "📊",
				Data:       map[string]any{"muscleGroup": group, "count": count},
			}
		},
	},
	{
		match: func(c int) bool { return c == 1 },
		build: func(group string, count int) Feedback {
			return Feedback{
				Type:       TypeUndertraining,
				Severity:   SeverityLow,
				Message:    fmt.Sprintf("%s trained only once this week", group),
				Suggestion: fmt.Sprintf("Train %s 2-3 times per week for better growth", group),
				Emoji:      "💡",
				Data:       map[string]any{"muscleGroup": group, "count": count},
			}
		},
	},
	{
		match: func(c int) bool { return c >= 3 && c <= 5 },
		build: func(group string, count int) Feedback {
			return Feedback{
				Type:     TypeOptimal,
				Severity: SeverityNone,
				Message:  fmt.Sprintf("%s frequency is in the optimal range (%d sessions)", group, count),
				Emoji:    "✅",
				Data:     map[string]any{"muscleGroup": group, "count": count},
			}
		},
	},
}

// restDayFeedback applies the rest-day rule. The bool reports a warning.
func restDayFeedback(restDays int) (Feedback, bool) {
	switch {
	case restDays == 0:
		return Feedback{
			Type:       TypeNoRest,
			Severity:   SeverityCritical,
			Message:    "No rest days in the last 7 days",
			Suggestion: "Take a full rest day today. Recovery is when muscles grow",
			Emoji:      "🛑",
			Data:       map[string]any{"restDays": restDays},
		}, true
	case restDays == 1:
		return Feedback{
			Type:       TypeLowRest,
			Severity:   SeverityMedium,
			Message:    "Only 1 rest day in the last 7 days",
			Suggestion: "Aim for at least 2 rest days per week",
			Emoji:      "⚠️",
			Data:       map[string]any{"restDays": restDays},
		}, true
	case restDays <= 3:
		return Feedback{
			Type:     TypeGoodRest,
			Severity: SeverityNone,
			Message:  fmt.Sprintf("%d rest days this week, a good balance", restDays),
			Emoji:    "😴",
			Data:     map[string]any{"restDays": restDays},
		}, false
	default:
		return Feedback{
			Type:       TypeHighRest,
			Severity:   SeverityLow,
			Message:    fmt.Sprintf("%d rest days this week", restDays),
			Suggestion: "Consider adding a session if you're feeling recovered",
			Emoji:      "🛋️",
			Data:       map[string]any{"restDays": restDays},
		}, false
	}
}

// RestAdvice analyses sessions within seven days before now
func (e *RecoveryEngine) RestAdvice(now time.Time) RestAdvice {
	stats := e.collect(now)
	var warnings, advice []Feedback

	for _, group := range slices.Sorted(maps.Keys(stats.groups)) {
		count := stats.groups[group]
		for _, rule := range frequencyRules {
			if !rule.match(count) {
				continue
			}
			if fb := rule.build(group, count); rule.warning {
				warnings = append(warnings, fb)
			} else {
				advice = append(advice, fb)
			}
			break
		}
	}

	restDays := stats.restDays(now)
	if fb, warn := restDayFeedback(restDays); warn {
		warnings = append(warnings, fb)
	} else {
		advice = append(advice, fb)
	}

	if (stats.total > 10 && restDays < 3) || stats.total > 15 {
		severity := SeverityMedium
		if stats.total > 15 {
			severity = SeverityHigh
		}
		warnings = append(warnings, Feedback{
			Type:       TypeHighVolume,
			Severity:   severity,
			Message:    fmt.Sprintf("%d sessions in the last 7 days is a heavy training volume", stats.total),
			Suggestion: "Reduce session count or intensity for the next few days",
			Emoji:      "📛",
			Data:       map[string]any{"totalSessions": stats.total, "restDays": restDays},
		})
	}

	if stats.total >= 4 && float64(stats.vigorous)/float64(stats.total) > 0.7 {
		warnings = append(warnings, Feedback{
			Type:       TypeHighIntensity,
			Severity:   SeverityMedium,
			Message:    fmt.Sprintf("%d of %d sessions this week were vigorous", stats.vigorous, stats.total),
			Suggestion: "Mix in light or moderate sessions to manage fatigue",
			Emoji:      "🔥",
			Data:       map[string]any{"vigorousSessions": stats.vigorous, "totalSessions": stats.total},
		})
	}

	status := adviceStatus(warnings, advice)
	combined := append(warnings, advice...)
	if len(combined) == 0 {
		combined = []Feedback{{
			Type:     TypeBalanced,
			Severity: SeverityNone,
			Message:  "Your training and recovery look balanced",
			Emoji:    "⚖️",
		}}
	}

	var avg float64
	if stats.total > 0 {
		avg = round1(stats.duration / float64(stats.total))
	}

	return RestAdvice{
		Advice: combined,
		Metrics: RecoveryMetrics{
			TotalSessions:          stats.total,
			RestDays:               restDays,
			TotalDuration:          stats.duration,
			VigorousSessions:       stats.vigorous,
			MuscleGroupBreakdown:   stats.groups,
			AverageSessionDuration: avg,
		},
		Status: status,
	}
}

func adviceStatus(warnings, advice []Feedback) string {
	worst := 0
	for _, fb := range warnings {
		worst = max(worst, fb.Severity.rank())
	}
	for _, fb := range advice {
		worst = max(worst, fb.Severity.rank())
	}
	switch {
	case worst == SeverityCritical.rank():
		return StatusCritical
	case worst == SeverityHigh.rank():
		return StatusWarning
	case worst == SeverityMedium.rank():
		return StatusCaution
	case len(warnings)+len(advice) == 0:
		return StatusExcellent
	default:
		return StatusGood
	}
}

// RestRecommendation says whether to rest today and why
type RestRecommendation struct {
	ShouldRest bool   `json:"shouldRest"`
	Reason     string `json:"reason"`
	Emoji      string `json:"emoji,omitempty"`
}

// ShouldRestToday looks at yesterday and the day before first, then falls
// back to the weekly analysis.
func (e *RecoveryEngine) ShouldRestToday(now time.Time) RestRecommendation {
	today := calendarDay(now)
	dayBefore := today.AddDate(0, 0, -2)

	var recent []RecoverySession
	for _, s := range e.sessions {
		day := calendarDay(s.Date.In(now.Location()))
		if !day.Before(dayBefore) && day.Before(today) {
			recent = append(recent, s)
		}
	}

	if len(recent) >= 2 {
		allVigorous, sameGroup := true, true
		for _, s := range recent {
			allVigorous = allVigorous && s.Intensity.vigorous()
			sameGroup = sameGroup && s.MuscleGroup == recent[0].MuscleGroup
		}
		switch {
		case allVigorous:
			return RestRecommendation{ShouldRest: true, Reason: "Two days of vigorous training in a row. Take a recovery day", Emoji: "😴"}
		case sameGroup:
			return RestRecommendation{
				ShouldRest: true,
				Reason:     fmt.Sprintf("You trained %s on consecutive days. Rest it or train something else", recent[0].MuscleGroup),
				Emoji:      "🔄",
			}
		}
	}

	switch advice := e.RestAdvice(now); advice.Status {
	case StatusCritical, StatusWarning:
		reason := "Your weekly load is high"
		if len(advice.Advice) > 0 {
			reason = advice.Advice[0].Message
		}
		return RestRecommendation{ShouldRest: true, Reason: reason, Emoji: "🛑"}
	default:
		return RestRecommendation{ShouldRest: false, Reason: "You're recovered enough to train today", Emoji: "💪"}
	}
}

// RecoveryScore is a 0-100 rating of the trailing week
type RecoveryScore struct {
	Score      int    `json:"score"`
	Rating     string `json:"rating"`
	Emoji      string `json:"emoji"`
	Suggestion string `json:"suggestion"`
}

// ScoreAdvice starts at 100, deducts per severity and rewards optimal
// frequency, clamped to 0..100.
func ScoreAdvice(items []Feedback) int {
	score := 100
	for _, fb := range items {
		switch fb.Severity {
		case SeverityCritical:
			score -= 30
		case SeverityHigh:
			score -= 20
		case SeverityMedium:
			score -= 10
		case SeverityLow:
			score -= 5
		}
		if fb.Type == TypeOptimal {
			score += 5
		}
	}
	return min(100, max(0, score))
}

// RateScore maps a score to its rating tier
func RateScore(score int) RecoveryScore {
	switch {
	case score >= 90:
		return RecoveryScore{score, "Excellent", "🌟", "You're well recovered. Train hard today"}
	case score >= 75:
		return RecoveryScore{score, "Good", "💪", "Recovery is on track. Train as planned"}
	case score >= 60:
		return RecoveryScore{score, "Fair", "👌", "Consider a lighter session or active recovery"}
	case score >= 40:
		return RecoveryScore{score, "Poor", "😓", "Prioritise sleep and take an easy day"}
	default:
		return RecoveryScore{score, "Critical", "🚨", "Take a full rest day before training again"}
	}
}

// RecoveryScore scores the rest advice computed at now
func (e *RecoveryEngine) RecoveryScore(now time.Time) RecoveryScore {
	return RateScore(ScoreAdvice(e.RestAdvice(now).Advice))
}

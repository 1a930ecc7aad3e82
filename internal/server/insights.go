package server

import (
	"fmt"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
)

// Insight represents a single AI-friendly insight about the data
type Insight struct {
	Type    string `json:"type"`    // e.g., "trend", "achievement", "warning", "suggestion"
	Message string `json:"message"` // Human-readable insight
}

// SuggestedAction represents a suggested next tool call
type SuggestedAction struct {
	Tool        string `json:"tool"`        // Tool name to call
	Description string `json:"description"` // Why this action is suggested
	Priority    string `json:"priority"`    // "high", "medium", "low"
}

// improvementTypes are feedback tags that report progress
var improvementTypes = map[string]bool{
	analytics.TypeProgress:      true,
	analytics.TypePlateauBroken: true,
	analytics.TypeConsistent:    true,
	analytics.TypeOptimal:       true,
	analytics.TypeGoodRest:      true,
	analytics.TypeBalanced:      true,
}

// FeedbackInsight turns an engine feedback item into an insight. Serious
// findings become warnings, progress becomes an achievement.
func FeedbackInsight(f analytics.Feedback) Insight {
	kind := "suggestion"
	switch {
	case f.Severity == analytics.SeverityHigh || f.Severity == analytics.SeverityCritical:
		kind = "warning"
	case improvementTypes[f.Type]:
		kind = "achievement"
	case f.Severity == analytics.SeverityNone || f.Severity == "":
		kind = "trend"
	}

	msg := f.Message
	if f.Emoji != "" {
		msg = f.Emoji + " " + msg
	}
	return Insight{Type: kind, Message: msg}
}

// FeedbackInsights converts a list of feedback items
func FeedbackInsights(items []analytics.Feedback) []Insight {
	insights := make([]Insight, 0, len(items))
	for _, f := range items {
		insights = append(insights, FeedbackInsight(f))
	}
	return insights
}

// SummaryInsights describes the weight and volume trend of an exercise
func SummaryInsights(summary *analytics.ProgressSummary) []Insight {
	if summary == nil || summary.TotalSessions < 2 {
		return nil
	}

	var insights []Insight
	switch {
	case summary.WeightChangePercent >= 20:
		insights = append(insights, Insight{
			Type:    "achievement",
			Message: fmt.Sprintf("%s weight is up %.1f%% over %d sessions", summary.Exercise, summary.WeightChangePercent, summary.TotalSessions),
		})
	case summary.WeightChangePercent > 0:
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("%s weight is up %.1f%% since the first session", summary.Exercise, summary.WeightChangePercent),
		})
	case summary.WeightChangePercent < 0:
		insights = append(insights, Insight{
			Type:    "warning",
			Message: fmt.Sprintf("%s weight is down %.1f%% since the first session", summary.Exercise, -summary.WeightChangePercent),
		})
	}

	if summary.VolumeChangePercent > 0 && summary.WeightChangePercent <= 0 {
		insights = append(insights, Insight{
			Type:    "trend",
			Message: fmt.Sprintf("Volume is still up %.1f%%, progress is coming from reps or sets", summary.VolumeChangePercent),
		})
	}
	return insights
}

// SuggestNextActions suggests logical next tool calls based on context
func SuggestNextActions(context string) []SuggestedAction {
	suggestions := make([]SuggestedAction, 0)

	switch context {
	case "workout_logged":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_rest_advice",
				Description: "Check recovery before the next session",
				Priority:    "high",
			},
			SuggestedAction{
				Tool:        "get_streaks",
				Description: "See the current workout streak",
				Priority:    "low",
			},
		)
	case "exercise":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_personal_records",
				Description: "See the all-time bests for this exercise",
				Priority:    "medium",
			},
			SuggestedAction{
				Tool:        "get_dashboard_analytics",
				Description: "Compare with the rest of the program",
				Priority:    "low",
			},
		)
	case "dashboard":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_exercise_feedback",
				Description: "Drill into a stagnant exercise",
				Priority:    "high",
			},
			SuggestedAction{
				Tool:        "get_rest_advice",
				Description: "Review weekly recovery in detail",
				Priority:    "medium",
			},
		)
	case "recovery":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_dashboard_analytics",
				Description: "See how recovery lines up with progress",
				Priority:    "medium",
			},
		)
	case "records":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "get_exercise_feedback",
				Description: "Get a progression plan toward the next PR",
				Priority:    "high",
			},
		)
	case "streaks":
		suggestions = append(suggestions,
			SuggestedAction{
				Tool:        "log_workout",
				Description: "Log today's session to extend the streak",
				Priority:    "medium",
			},
		)
	}

	return suggestions
}

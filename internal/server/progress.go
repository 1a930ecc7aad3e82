package server

import (
	"context"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
)

func (s *Server) registerProgressTools() {
	logging.Debug("Registering tool", "name", "get_exercise_feedback")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_exercise_feedback",
		Description: `Get progression advice for a single exercise: what to do next session, plateau status, motivation and the progress summary.

Use when:
- User asks "What should I do on bench next time?"
- User asks "Am I stuck on squats?"

Parameters:
- exercise (string, required): Exact exercise name as logged, e.g. "Bench Press".
- user_id (string): Defaults to the configured user.

Returns: Next-session suggestion, stagnation warning (if any), plateau break, motivation, progress streak, summary and records.

Example: {"exercise": "Bench Press"}`,
		Annotations: readOnly("Exercise Feedback"),
	}, instrument(s, "get_exercise_feedback", s.getExerciseFeedback))

	logging.Debug("Registering tool", "name", "get_dashboard_analytics")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_dashboard_analytics",
		Description: `Get an overview across all tracked exercises: stagnant lifts, progress summaries, progress streaks and recovery status.

Use when:
- User asks "How is my training going?"
- Starting a weekly review

Parameters:
- user_id (string): Defaults to the configured user.

Returns: Dashboard with stagnation sorted by severity, per-exercise progress and a recovery report.

Example: {}`,
		Annotations: readOnly("Dashboard Analytics"),
	}, instrument(s, "get_dashboard_analytics", s.getDashboardAnalytics))
}

// ExerciseFeedbackInput - input for the per-exercise feedback tool
type ExerciseFeedbackInput struct {
	UserID   string `json:"user_id,omitempty" jsonschema:"User to query. Defaults to the configured user."`
	Exercise string `json:"exercise" jsonschema:"Exact exercise name as logged, e.g. Bench Press."`
}

// ExerciseFeedbackOutput - output for the per-exercise feedback tool
type ExerciseFeedbackOutput struct {
	Feedback         *analytics.ExerciseFeedback `json:"feedback"`
	Insights         []Insight                   `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction           `json:"suggested_actions,omitempty"`
}

func (s *Server) getExerciseFeedback(ctx context.Context, req *mcp.CallToolRequest, input ExerciseFeedbackInput) (*mcp.CallToolResult, ExerciseFeedbackOutput, error) {
	logging.Info("MCP tool call", "tool", "get_exercise_feedback", "user_id", input.UserID, "exercise", input.Exercise)

	exercise := strings.TrimSpace(input.Exercise)
	if exercise == "" {
		return nil, ExerciseFeedbackOutput{}, NewInvalidInputError("exercise is required")
	}
	userID, err := s.user(input.UserID)
	if err != nil {
		return nil, ExerciseFeedbackOutput{}, err
	}
	svc, err := s.service(ctx, userID)
	if err != nil {
		return nil, ExerciseFeedbackOutput{}, err
	}

	fb, err := svc.Feedback(exercise)
	if err != nil {
		return nil, ExerciseFeedbackOutput{}, toToolError(err)
	}

	items := []analytics.Feedback{fb.Suggestion}
	if fb.Stagnation != nil {
		items = append(items, *fb.Stagnation)
	}
	if fb.PlateauBreak != nil {
		items = append(items, *fb.PlateauBreak)
	}
	s.countFeedback(items...)

	insights := append(FeedbackInsights(items), SummaryInsights(fb.Summary)...)
	if logging.IsVerbose() {
		logging.Debug("MCP response", "tool", "get_exercise_feedback", "output", logging.ToJSON(fb))
	}

	return nil, ExerciseFeedbackOutput{
		Feedback:         fb,
		Insights:         insights,
		SuggestedActions: SuggestNextActions("exercise"),
	}, nil
}

// DashboardInput - input for the dashboard tool
type DashboardInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User to query. Defaults to the configured user."`
}

// DashboardOutput - output for the dashboard tool
type DashboardOutput struct {
	Dashboard        *analytics.Dashboard `json:"dashboard"`
	Insights         []Insight            `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction    `json:"suggested_actions,omitempty"`
}

func (s *Server) getDashboardAnalytics(ctx context.Context, req *mcp.CallToolRequest, input DashboardInput) (*mcp.CallToolResult, DashboardOutput, error) {
	logging.Info("MCP tool call", "tool", "get_dashboard_analytics", "user_id", input.UserID)

	userID, err := s.user(input.UserID)
	if err != nil {
		return nil, DashboardOutput{}, err
	}
	dash, err := s.dashboard(ctx, userID)
	if err != nil {
		return nil, DashboardOutput{}, err
	}

	var insights []Insight
	for _, st := range dash.Stagnation {
		s.countFeedback(st.Feedback)
		insights = append(insights, FeedbackInsight(st.Feedback))
	}
	// the biggest movers first
	progress := slices.Clone(dash.Progress)
	slices.SortStableFunc(progress, func(a, b analytics.ProgressSummary) int {
		switch {
		case a.WeightChangePercent > b.WeightChangePercent:
			return -1
		case a.WeightChangePercent < b.WeightChangePercent:
			return 1
		}
		return 0
	})
	for i := range progress {
		if i == 3 {
			break
		}
		insights = append(insights, SummaryInsights(&progress[i])...)
	}
	insights = append(insights, Insight{
		Type:    "trend",
		Message: dash.Recovery.Score.Emoji + " Recovery " + dash.Recovery.Score.Rating + ": " + dash.Recovery.Score.Suggestion,
	})

	return nil, DashboardOutput{
		Dashboard:        dash,
		Insights:         insights,
		SuggestedActions: SuggestNextActions("dashboard"),
	}, nil
}

func (s *Server) dashboard(ctx context.Context, userID string) (*analytics.Dashboard, error) {
	svc, err := s.service(ctx, userID)
	if err != nil {
		return nil, err
	}
	dash, err := svc.DashboardAnalytics()
	if err != nil {
		return nil, toToolError(err)
	}
	return dash, nil
}

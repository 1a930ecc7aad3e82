package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
)

func (s *Server) registerRecoveryTools() {
	logging.Debug("Registering tool", "name", "get_rest_advice")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_rest_advice",
		Description: `Get recovery advice from the last 7 days of workouts and cardio: overtraining warnings, rest day count, a 0-100 recovery score and whether to rest today.

Use when:
- User asks "Should I train today?"
- User asks "Am I overtraining my legs?"

Parameters:
- user_id (string): Defaults to the configured user.

Returns: Advice items (warnings first), weekly metrics, status, recovery score and today's rest recommendation.

Example: {}`,
		Annotations: readOnly("Rest Advice"),
	}, instrument(s, "get_rest_advice", s.getRestAdvice))
}

// RestAdviceInput - input for the rest advice tool
type RestAdviceInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User to query. Defaults to the configured user."`
}

// RestAdviceOutput - output for the rest advice tool
type RestAdviceOutput struct {
	Report           *analytics.RecoveryReport `json:"report"`
	Insights         []Insight                 `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction         `json:"suggested_actions,omitempty"`
}

func (s *Server) getRestAdvice(ctx context.Context, req *mcp.CallToolRequest, input RestAdviceInput) (*mcp.CallToolResult, RestAdviceOutput, error) {
	logging.Info("MCP tool call", "tool", "get_rest_advice", "user_id", input.UserID)

	userID, err := s.user(input.UserID)
	if err != nil {
		return nil, RestAdviceOutput{}, err
	}
	svc, err := s.service(ctx, userID)
	if err != nil {
		return nil, RestAdviceOutput{}, err
	}
	report, err := svc.Recovery()
	if err != nil {
		return nil, RestAdviceOutput{}, toToolError(err)
	}
	s.countFeedback(report.RestAdvice.Advice...)

	insights := FeedbackInsights(report.RestAdvice.Advice)
	if report.RestToday.ShouldRest {
		insights = append([]Insight{{Type: "warning", Message: report.RestToday.Emoji + " " + report.RestToday.Reason}}, insights...)
	}

	return nil, RestAdviceOutput{
		Report:           report,
		Insights:         insights,
		SuggestedActions: SuggestNextActions("recovery"),
	}, nil
}

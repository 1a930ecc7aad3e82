package server

import (
	"context"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
)

func (s *Server) registerRecordsTools() {
	logging.Debug("Registering tool", "name", "get_personal_records")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_personal_records",
		Description: `Get personal records (max weight, max reps, max volume) with the progress summary for one or all exercises.

Use when:
- User asks "What's my bench PR?"
- User asks "Show me all my records"

Parameters:
- exercise (string): Exact exercise name. Omit for every tracked exercise.
- user_id (string): Defaults to the configured user.

Returns: One report per exercise with records, progress summary and the current progress streak.

Example: {"exercise": "Deadlift"}`,
		Annotations: readOnly("Personal Records"),
	}, instrument(s, "get_personal_records", s.getPersonalRecords))
}

// PersonalRecordsInput - input for the records tool
type PersonalRecordsInput struct {
	UserID   string `json:"user_id,omitempty" jsonschema:"User to query. Defaults to the configured user."`
	Exercise string `json:"exercise,omitempty" jsonschema:"Exact exercise name. Omit to list every exercise."`
}

// PersonalRecordsOutput - output for the records tool
type PersonalRecordsOutput struct {
	Reports          []*analytics.RecordsReport `json:"reports"`
	Count            int                        `json:"count"`
	Insights         []Insight                  `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction          `json:"suggested_actions,omitempty"`
}

func (s *Server) getPersonalRecords(ctx context.Context, req *mcp.CallToolRequest, input PersonalRecordsInput) (*mcp.CallToolResult, PersonalRecordsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_personal_records", "user_id", input.UserID, "exercise", input.Exercise)

	userID, err := s.user(input.UserID)
	if err != nil {
		return nil, PersonalRecordsOutput{}, err
	}
	svc, err := s.service(ctx, userID)
	if err != nil {
		return nil, PersonalRecordsOutput{}, err
	}
	exercises, err := svc.Exercises()
	if err != nil {
		return nil, PersonalRecordsOutput{}, toToolError(err)
	}

	if name := strings.TrimSpace(input.Exercise); name != "" {
		if !slices.Contains(exercises, name) {
			return nil, PersonalRecordsOutput{}, NewNotFoundErrorWithID("exercise", name)
		}
		exercises = []string{name}
	}

	out := PersonalRecordsOutput{Reports: make([]*analytics.RecordsReport, 0, len(exercises))}
	for _, name := range exercises {
		report, err := svc.PersonalRecords(name)
		if err != nil {
			return nil, PersonalRecordsOutput{}, toToolError(err)
		}
		out.Reports = append(out.Reports, report)
		if report.ProgressStreak.Streak > 1 {
			out.Insights = append(out.Insights, Insight{
				Type:    "achievement",
				Message: report.ProgressStreak.Emoji + " " + report.ProgressStreak.Message,
			})
		}
	}
	out.Count = len(out.Reports)
	out.SuggestedActions = SuggestNextActions("records")
	return nil, out, nil
}

package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/lift-mcp/internal/logging"
)

// registerPrompts registers all MCP prompts for the server
func (s *Server) registerPrompts() {
	// Post-workout review prompt
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "post_workout_review",
		Description: "Review the workout that was just logged: PRs, recovery warnings and what to change next session",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "user_id",
				Description: "User to review. Leave empty for the configured user.",
				Required:    false,
			},
		},
	}, s.postWorkoutReviewPrompt)

	// Plateau check prompt
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "plateau_check",
		Description: "Find stalled lifts and build a plan to break through them",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "exercise",
				Description: "Exercise to focus on (e.g., 'Bench Press'). Leave empty to check every exercise.",
				Required:    false,
			},
		},
	}, s.plateauCheckPrompt)

	logging.Debug("MCP prompts registered", "count", 2)
}

func promptArg(req *mcp.GetPromptRequest, name string) string {
	if req == nil || req.Params == nil || req.Params.Arguments == nil {
		return ""
	}
	return req.Params.Arguments[name]
}

func userMessage(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}

// postWorkoutReviewPrompt generates a prompt reviewing the latest session
func (s *Server) postWorkoutReviewPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	user := promptArg(req, "user_id")
	userArg := ""
	if user != "" {
		userArg = fmt.Sprintf(` with user_id="%s"`, user)
	}

	logging.Info("MCP prompt requested", "prompt", "post_workout_review", "user_id", user)

	promptText := fmt.Sprintf(`Please review the workout I just logged.

Use the following tools to gather data:
1. **get_dashboard_analytics**%[1]s for stagnation and progress across all lifts
2. **get_rest_advice**%[1]s to check recovery over the last 7 days
3. **get_exercise_feedback**%[1]s for each exercise in the workout
4. **get_streaks**%[1]s for the current workout streak

Then provide:
- **Achievements**: New personal records and plateaus broken
- **Next Session**: Concrete weight, rep or set targets per exercise
- **Recovery Check**: Muscle groups that need rest before training again
- **Streak**: Where the streak stands and what keeps it alive

Please be specific with numbers and use the actual data from the tools.`, userArg)

	return userMessage("Post-workout review prompt", promptText), nil
}

// plateauCheckPrompt generates a prompt for plateau analysis
func (s *Server) plateauCheckPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	exercise := promptArg(req, "exercise")

	logging.Info("MCP prompt requested", "prompt", "plateau_check", "exercise", exercise)

	var promptText string
	if exercise != "" {
		promptText = fmt.Sprintf(`I think I'm stuck on %[1]s. Please check.

Use the following tools to gather data:
1. **get_exercise_feedback** with exercise="%[1]s" for stagnation status and the next-session suggestion
2. **get_personal_records** with exercise="%[1]s" for records and the progress summary

Then provide:
- **Diagnosis**: Whether %[1]s has stalled, and for how many sessions
- **Plan**: A 2-3 week plan to break the plateau (deload, rep scheme or variation)
- **Target**: The weight and reps to aim for next session`, exercise)
	} else {
		promptText = `Please check all my lifts for plateaus.

Use the following tools to gather data:
1. **get_dashboard_analytics** for the stagnant exercises, sorted by severity
2. **get_exercise_feedback** for each stagnant exercise

Then provide:
- **Stalled Lifts**: Each stagnant exercise with how long it has been stuck
- **Priorities**: Which plateau to attack first
- **Plan**: Specific changes per stalled lift for the next two weeks`
	}

	return userMessage("Plateau check prompt", promptText), nil
}

package server

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/lift-mcp/internal/logging"
	"github.com/joshdurbin/lift-mcp/internal/streak"
)

func (s *Server) registerStreakTools() {
	logging.Debug("Registering tool", "name", "log_calorie_day")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "log_calorie_day",
		Description: `Mark a day as on-target for calorie tracking and advance the calorie streak. Missed days spend a freeze (3 per month) before the streak resets.

Use when:
- User says "I hit my calories today"

Parameters:
- date (string): YYYY-MM-DD or RFC 3339. Default: today.
- user_id (string): Defaults to the configured user.

Returns: The streak update and the remaining freezes.

Example: {"date": "2026-03-14"}`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Log Calorie Day",
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, instrument(s, "log_calorie_day", s.logCalorieDay))

	logging.Debug("Registering tool", "name", "get_streaks")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_streaks",
		Description: `Get the current workout and calorie streaks.

Use when:
- User asks "What's my streak?"

Parameters:
- user_id (string): Defaults to the configured user.

Returns: Current and best streak for workouts (with remaining gap buffer) and calorie days (with remaining freezes). A streak whose gap has lapsed is reported as 0.

Example: {}`,
		Annotations: readOnly("Streaks"),
	}, instrument(s, "get_streaks", s.getStreaks))
}

// LogCalorieDayInput - input for the calorie streak tool
type LogCalorieDayInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User to log for. Defaults to the configured user."`
	Date   string `json:"date,omitempty" jsonschema:"Day to mark, YYYY-MM-DD or RFC 3339. Default: today."`
}

// LogCalorieDayOutput - output for the calorie streak tool
type LogCalorieDayOutput struct {
	Update      streak.Update `json:"update"`
	FreezesLeft int           `json:"freezes_left"`
	MaxStreak   int           `json:"max_streak"`
}

func (s *Server) logCalorieDay(ctx context.Context, req *mcp.CallToolRequest, input LogCalorieDayInput) (*mcp.CallToolResult, LogCalorieDayOutput, error) {
	logging.Info("MCP tool call", "tool", "log_calorie_day", "user_id", input.UserID, "date", input.Date)

	userID, err := s.user(input.UserID)
	if err != nil {
		return nil, LogCalorieDayOutput{}, err
	}
	date, err := parseDate(input.Date, s.now())
	if err != nil {
		return nil, LogCalorieDayOutput{}, err
	}

	s.streakMu.Lock()
	defer s.streakMu.Unlock()

	tracker, err := s.streaks.Calorie(ctx, userID)
	if err != nil {
		return nil, LogCalorieDayOutput{}, NewDatabaseErrorWithContext("load calorie streak", err)
	}
	update := tracker.LogDay(date)
	if err := s.streaks.SaveCalorie(ctx, userID, tracker); err != nil {
		return nil, LogCalorieDayOutput{}, NewDatabaseErrorWithContext("save calorie streak", err)
	}

	state := tracker.State()
	return nil, LogCalorieDayOutput{
		Update:      update,
		FreezesLeft: state.FreezesLeft,
		MaxStreak:   state.MaxStreak,
	}, nil
}

// StreaksInput - input for the streak summary tool
type StreaksInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User to query. Defaults to the configured user."`
}

// WorkoutStreak is the workout streak as of today
type WorkoutStreak struct {
	Current        int        `json:"current"`
	Best           int        `json:"best"`
	BufferLeft     int        `json:"buffer_left"`
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
}

// CalorieStreak is the calorie streak as of today
type CalorieStreak struct {
	Current        int        `json:"current"`
	Best           int        `json:"best"`
	FreezesLeft    int        `json:"freezes_left"`
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
}

// StreaksOutput - output for the streak summary tool
type StreaksOutput struct {
	UserID           string            `json:"user_id"`
	Workout          WorkoutStreak     `json:"workout"`
	Calorie          CalorieStreak     `json:"calorie"`
	Insights         []Insight         `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggested_actions,omitempty"`
}

func (s *Server) getStreaks(ctx context.Context, req *mcp.CallToolRequest, input StreaksInput) (*mcp.CallToolResult, StreaksOutput, error) {
	logging.Info("MCP tool call", "tool", "get_streaks", "user_id", input.UserID)

	userID, err := s.user(input.UserID)
	if err != nil {
		return nil, StreaksOutput{}, err
	}
	out, err := s.streakSummary(ctx, userID)
	if err != nil {
		return nil, StreaksOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) streakSummary(ctx context.Context, userID string) (StreaksOutput, error) {
	s.streakMu.Lock()
	defer s.streakMu.Unlock()

	workout, err := s.streaks.Workout(ctx, userID)
	if err != nil {
		return StreaksOutput{}, NewDatabaseErrorWithContext("load workout streak", err)
	}
	calorie, err := s.streaks.Calorie(ctx, userID)
	if err != nil {
		return StreaksOutput{}, NewDatabaseErrorWithContext("load calorie streak", err)
	}

	today := s.now()
	ws, cs := workout.State(), calorie.State()
	out := StreaksOutput{
		UserID: userID,
		Workout: WorkoutStreak{
			Current:        workout.CurrentStreak(today),
			Best:           ws.MaxStreak,
			BufferLeft:     ws.Buffer,
			LastActiveDate: ws.LastActiveDate,
		},
		Calorie: CalorieStreak{
			Current:        calorie.CurrentStreak(today),
			Best:           cs.MaxStreak,
			FreezesLeft:    cs.FreezesLeft,
			LastActiveDate: cs.LastActiveDate,
		},
		SuggestedActions: SuggestNextActions("streaks"),
	}

	switch {
	case out.Workout.Current == 0 && ws.MaxStreak > 0:
		out.Insights = append(out.Insights, Insight{Type: "warning", Message: "💔 Workout streak has lapsed, log a workout to start again"})
	case out.Workout.Current > 0 && out.Workout.Current == ws.MaxStreak:
		out.Insights = append(out.Insights, Insight{Type: "achievement", Message: "🏆 Workout streak is at its best ever"})
	}
	if out.Calorie.Current > 0 && cs.FreezesLeft == 0 {
		out.Insights = append(out.Insights, Insight{Type: "warning", Message: "🧊 No calorie freezes left this month, a missed day resets the streak"})
	}
	return out, nil
}

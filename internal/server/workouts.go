package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
	"github.com/joshdurbin/lift-mcp/internal/store"
	"github.com/joshdurbin/lift-mcp/internal/streak"
)

const dateLayout = "2006-01-02"

// parseDate accepts YYYY-MM-DD or RFC 3339; empty means now
func parseDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, now.Location())
	if err != nil {
		return time.Time{}, NewInvalidInputErrorWithDetails("invalid date format", fmt.Sprintf("%q: expected YYYY-MM-DD or RFC 3339", value))
	}
	return t, nil
}

// checkIntensity rejects labels ParseIntensity would silently treat as moderate
func checkIntensity(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	switch analytics.Intensity(strings.ToLower(value)) {
	case analytics.IntensityLight, analytics.IntensityModerate, analytics.IntensityVigorous, analytics.IntensityHigh:
		return nil
	}
	return NewInvalidInputErrorWithDetails("invalid intensity", fmt.Sprintf("%q: use light, moderate, vigorous or high", value))
}

func (s *Server) registerWorkoutTools() {
	logging.Debug("Registering tool", "name", "log_workout")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "log_workout",
		Description: `Log a completed strength workout, update the workout streak and get post-workout feedback.

Use when:
- User says "I just did bench 3x8 at 60kg" or "Log today's leg day"
- User finishes a session and wants to know if they hit a PR

Parameters:
- exercises (array, required): Each item has name, optional muscle_group and a list of sets {weight, reps, sets}.
- date (string): Workout date, YYYY-MM-DD or RFC 3339. Default: now.
- intensity (string): light, moderate, vigorous or high. Default: moderate.
- duration_minutes (number): Session length. Default: 45.
- id (string): Caller-chosen workout id. Logging the same id again replaces the stored workout.
- user_id (string): Defaults to the configured user.

Returns: Workout id, PRs and plateau breaks, recovery warnings for the trained muscle groups, progression suggestions and the streak update.

Example: {"exercises": [{"name": "Bench Press", "muscle_group": "chest", "sets": [{"weight": 60, "reps": 8, "sets": 3}]}]}`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Log Workout",
			IdempotentHint:  false,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, instrument(s, "log_workout", s.logWorkout))

	logging.Debug("Registering tool", "name", "log_cardio")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "log_cardio",
		Description: `Log a cardio or conditioning session so recovery advice accounts for it.

Parameters:
- body_parts (string): Comma-separated body parts, e.g. "legs, core". Default: full body.
- date (string): YYYY-MM-DD or RFC 3339. Default: now.
- intensity (string): light, moderate, vigorous or high. Default: moderate.
- duration_minutes (number): Session length. Default: 45.
- user_id (string): Defaults to the configured user.

Example: {"body_parts": "legs", "intensity": "vigorous", "duration_minutes": 30}`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Log Cardio",
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, instrument(s, "log_cardio", s.logCardio))
}

// SetInput is one logged set row
type SetInput struct {
	Weight float64 `json:"weight" jsonschema:"Load in kg. Use 0 for bodyweight."`
	Reps   int     `json:"reps" jsonschema:"Repetitions per set."`
	Sets   int     `json:"sets,omitempty" jsonschema:"How many sets were done at this weight and reps. Default: 1."`
}

// ExerciseInput is one exercise within a logged workout
type ExerciseInput struct {
	Name        string     `json:"name" jsonschema:"Exercise name, e.g. Bench Press. Names are case-sensitive."`
	MuscleGroup string     `json:"muscle_group,omitempty" jsonschema:"Muscle group, e.g. chest, back, legs. Used for recovery advice."`
	Sets        []SetInput `json:"sets" jsonschema:"Logged sets."`
}

// LogWorkoutInput - input for logging a strength workout
type LogWorkoutInput struct {
	UserID          string          `json:"user_id,omitempty" jsonschema:"User to log for. Defaults to the configured user."`
	ID              string          `json:"id,omitempty" jsonschema:"Optional workout id. Logging an existing id replaces that workout."`
	Date            string          `json:"date,omitempty" jsonschema:"Workout date, YYYY-MM-DD or RFC 3339. Default: now."`
	Intensity       string          `json:"intensity,omitempty" jsonschema:"light, moderate, vigorous or high. Default: moderate."`
	DurationMinutes float64         `json:"duration_minutes,omitempty" jsonschema:"Session length in minutes. Default: 45."`
	Exercises       []ExerciseInput `json:"exercises" jsonschema:"Exercises performed."`
}

// LogWorkoutOutput - output for a logged workout
type LogWorkoutOutput struct {
	WorkoutID        string                        `json:"workout_id"`
	Replaced         bool                          `json:"replaced,omitempty"`
	Summary          *analytics.PostWorkoutSummary `json:"summary"`
	Streak           streak.Update                 `json:"streak"`
	Insights         []Insight                     `json:"insights,omitempty"`
	SuggestedActions []SuggestedAction             `json:"suggested_actions,omitempty"`
}

// toRecord validates the input and converts it to the storage shape
func (in LogWorkoutInput) toRecord(date time.Time) (analytics.WorkoutRecord, error) {
	if len(in.Exercises) == 0 {
		return analytics.WorkoutRecord{}, NewInvalidInputError("at least one exercise is required")
	}
	if err := checkIntensity(in.Intensity); err != nil {
		return analytics.WorkoutRecord{}, err
	}
	if in.DurationMinutes < 0 {
		return analytics.WorkoutRecord{}, NewInvalidInputError("duration_minutes must not be negative")
	}

	rec := analytics.WorkoutRecord{
		ID:        strings.TrimSpace(in.ID),
		Date:      &date,
		Intensity: strings.ToLower(strings.TrimSpace(in.Intensity)),
	}
	if in.DurationMinutes > 0 {
		rec.DurationMinutes = ptr(in.DurationMinutes)
	}

	for i, ex := range in.Exercises {
		name := strings.TrimSpace(ex.Name)
		if name == "" {
			return analytics.WorkoutRecord{}, NewInvalidInputErrorWithDetails("exercise name is required", fmt.Sprintf("exercises[%d]", i))
		}
		if len(ex.Sets) == 0 {
			return analytics.WorkoutRecord{}, NewInvalidInputErrorWithDetails("exercise has no sets", name)
		}
		exRec := analytics.ExerciseRecord{ExerciseName: name, MuscleGroup: strings.TrimSpace(ex.MuscleGroup)}
		for j, set := range ex.Sets {
			sets := set.Sets
			if sets == 0 {
				sets = 1
			}
			setRec := analytics.SetRecord{Weight: ptr(set.Weight), Reps: ptr(set.Reps), Sets: ptr(sets)}
			if _, err := analytics.NormalizeSet(exRec, setRec, date); err != nil {
				return analytics.WorkoutRecord{}, NewInvalidInputErrorWithDetails("invalid set", fmt.Sprintf("%s set %d: %v", name, j+1, err))
			}
			exRec.Sets = append(exRec.Sets, setRec)
		}
		rec.Exercises = append(rec.Exercises, exRec)
	}
	return rec, nil
}

// logWorkout persists the workout, feeds it to the user's analytics and
// advances the workout streak.
func (s *Server) logWorkout(ctx context.Context, req *mcp.CallToolRequest, input LogWorkoutInput) (*mcp.CallToolResult, LogWorkoutOutput, error) {
	logging.Info("MCP tool call", "tool", "log_workout", "user_id", input.UserID, "exercises", len(input.Exercises), "date", input.Date)
	if logging.IsVerbose() {
		logging.Debug("MCP request params", "tool", "log_workout", "input", logging.ToJSON(input))
	}

	userID, err := s.user(input.UserID)
	if err != nil {
		return nil, LogWorkoutOutput{}, err
	}
	date, err := parseDate(input.Date, s.now())
	if err != nil {
		return nil, LogWorkoutOutput{}, err
	}
	rec, err := input.toRecord(date)
	if err != nil {
		return nil, LogWorkoutOutput{}, err
	}

	// load prior history before the new row exists so PR checks compare
	// against earlier sessions only
	svc, err := s.service(ctx, userID)
	if err != nil {
		return nil, LogWorkoutOutput{}, err
	}

	id, err := s.recorder.SaveWorkout(ctx, userID, rec, store.SourceLocal)
	if err != nil {
		return nil, LogWorkoutOutput{}, NewDatabaseErrorWithContext("save workout", err)
	}
	rec.ID = id

	replaced := input.ID != "" && svc.HasWorkout(id)
	if replaced {
		if err := svc.ReloadWithout(ctx, id); err != nil {
			return nil, LogWorkoutOutput{}, toToolError(err)
		}
	}

	summary, err := svc.PostWorkoutSummary(rec)
	if err != nil {
		return nil, LogWorkoutOutput{}, toToolError(err)
	}

	update, err := s.logStreakWorkout(ctx, userID, date)
	if err != nil {
		return nil, LogWorkoutOutput{}, NewDatabaseErrorWithContext("update workout streak", err)
	}

	s.countFeedback(summary.Warnings...)
	insights := FeedbackInsights(summary.Warnings)
	for _, a := range summary.Achievements {
		s.metrics.Feedback(a.Type)
		insights = append(insights, Insight{Type: "achievement", Message: a.Emoji + " " + a.Message})
	}
	for _, sg := range summary.Suggestions {
		s.countFeedback(sg.Feedback)
	}

	return nil, LogWorkoutOutput{
		WorkoutID:        id,
		Replaced:         replaced,
		Summary:          summary,
		Streak:           update,
		Insights:         insights,
		SuggestedActions: SuggestNextActions("workout_logged"),
	}, nil
}

func (s *Server) logStreakWorkout(ctx context.Context, userID string, date time.Time) (streak.Update, error) {
	s.streakMu.Lock()
	defer s.streakMu.Unlock()

	tracker, err := s.streaks.Workout(ctx, userID)
	if err != nil {
		return streak.Update{}, err
	}
	update := tracker.LogWorkout(date)
	if err := s.streaks.SaveWorkout(ctx, userID, tracker); err != nil {
		return streak.Update{}, err
	}
	return update, nil
}

// LogCardioInput - input for logging a cardio session
type LogCardioInput struct {
	UserID          string  `json:"user_id,omitempty" jsonschema:"User to log for. Defaults to the configured user."`
	BodyParts       string  `json:"body_parts,omitempty" jsonschema:"Comma-separated body parts, e.g. legs, core. Default: full body."`
	Date            string  `json:"date,omitempty" jsonschema:"Session date, YYYY-MM-DD or RFC 3339. Default: now."`
	Intensity       string  `json:"intensity,omitempty" jsonschema:"light, moderate, vigorous or high. Default: moderate."`
	DurationMinutes float64 `json:"duration_minutes,omitempty" jsonschema:"Session length in minutes. Default: 45."`
}

// LogCardioOutput - output for a logged cardio session
type LogCardioOutput struct {
	SessionID   string                       `json:"session_id"`
	MuscleGroup string                       `json:"muscle_group"`
	RestToday   analytics.RestRecommendation `json:"rest_today"`
}

func (s *Server) logCardio(ctx context.Context, req *mcp.CallToolRequest, input LogCardioInput) (*mcp.CallToolResult, LogCardioOutput, error) {
	logging.Info("MCP tool call", "tool", "log_cardio", "user_id", input.UserID, "body_parts", input.BodyParts)

	userID, err := s.user(input.UserID)
	if err != nil {
		return nil, LogCardioOutput{}, err
	}
	date, err := parseDate(input.Date, s.now())
	if err != nil {
		return nil, LogCardioOutput{}, err
	}
	if input.DurationMinutes < 0 {
		return nil, LogCardioOutput{}, NewInvalidInputError("duration_minutes must not be negative")
	}
	if err := checkIntensity(input.Intensity); err != nil {
		return nil, LogCardioOutput{}, err
	}

	rec := analytics.CardioRecord{
		BodyParts: input.BodyParts,
		Date:      &date,
		Intensity: strings.ToLower(strings.TrimSpace(input.Intensity)),
	}
	if input.DurationMinutes > 0 {
		rec.Duration = ptr(input.DurationMinutes)
	}
	session, err := analytics.NormalizeCardio(rec)
	if err != nil {
		return nil, LogCardioOutput{}, NewInvalidInputErrorWithDetails("invalid cardio session", err.Error())
	}

	id, err := s.recorder.SaveCardio(ctx, userID, rec, store.SourceLocal)
	if err != nil {
		return nil, LogCardioOutput{}, NewDatabaseErrorWithContext("save cardio session", err)
	}

	// cardio is not ingested incrementally; reload on next query
	s.registry.Invalidate(userID)
	svc, err := s.service(ctx, userID)
	if err != nil {
		return nil, LogCardioOutput{}, err
	}
	report, err := svc.Recovery()
	if err != nil {
		return nil, LogCardioOutput{}, toToolError(err)
	}

	return nil, LogCardioOutput{
		SessionID:   id,
		MuscleGroup: session.MuscleGroup,
		RestToday:   report.RestToday,
	}, nil
}

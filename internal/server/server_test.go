package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/db"
	"github.com/joshdurbin/lift-mcp/internal/metrics"
	"github.com/joshdurbin/lift-mcp/internal/store"
	"github.com/joshdurbin/lift-mcp/internal/streak"

	_ "modernc.org/sqlite"
)

const testUser = "athlete"

var testNow = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

type testEnv struct {
	srv      *Server
	storage  *store.Storage
	registry *analytics.Registry
	metrics  *metrics.Manager
}

// setupTestServer wires a server against a migrated SQLite database and a
// fixed clock
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return setupTestServerAt(t, testNow)
}

func setupTestServerAt(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = db.Migrate(context.Background(), sqlDB)
	require.NoError(t, err)

	clock := func() time.Time { return now }
	storage := store.NewStorage(sqlDB)
	registry := analytics.NewRegistry(storage, analytics.WithClock(clock))
	m := metrics.NewTestManager()

	srv := New(Deps{
		Registry:    registry,
		Recorder:    storage,
		Streaks:     streak.NewStore(storage),
		Metrics:     m,
		DefaultUser: testUser,
		Now:         clock,
	})
	return &testEnv{srv: srv, storage: storage, registry: registry, metrics: m}
}

func benchInput(date string, weight float64, reps int) LogWorkoutInput {
	return LogWorkoutInput{
		Date:      date,
		Intensity: "moderate",
		Exercises: []ExerciseInput{{
			Name:        "Bench Press",
			MuscleGroup: "chest",
			Sets:        []SetInput{{Weight: weight, Reps: reps, Sets: 3}},
		}},
	}
}

func achievementTypes(items []analytics.Achievement) []string {
	types := make([]string, 0, len(items))
	for _, a := range items {
		types = append(types, a.Type)
	}
	return types
}

func requireToolError(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var te *ToolError
	require.True(t, errors.As(err, &te), "expected *ToolError, got %T: %v", err, err)
	assert.Equal(t, code, te.Code)
}

func TestServerNew(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	require.NotNil(t, env.srv.MCPServer())
	assert.Same(t, env.srv.mcp, env.srv.MCPServer())
}

func TestLogWorkout_PRsAndStreak(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	_, first, err := env.srv.logWorkout(ctx, nil, benchInput("2026-03-09", 60, 8))
	require.NoError(t, err)
	assert.NotEmpty(t, first.WorkoutID)
	assert.True(t, first.Summary.Ingested)
	assert.Equal(t, []string{"pr_" + analytics.PRFirst}, achievementTypes(first.Summary.Achievements))
	assert.Equal(t, streak.EventFirst, first.Streak.Event)
	assert.Equal(t, 1, first.Streak.Streak)
	assert.NotEmpty(t, first.SuggestedActions)

	_, second, err := env.srv.logWorkout(ctx, nil, benchInput("2026-03-10", 65, 8))
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"pr_" + analytics.PRWeight, "pr_" + analytics.PRVolume},
		achievementTypes(second.Summary.Achievements))
	assert.Equal(t, streak.EventContinued, second.Streak.Event)
	assert.Equal(t, 2, second.Streak.Streak)

	history, err := env.storage.WorkoutHistory(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestLogWorkout_ReloggedIDReplacesWorkout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		weight        float64
		wantMaxWeight float64
	}{
		{"heavier", 80, 80},
		{"lighter", 50, 50},
		{"unchanged", 60, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestServer(t)
			ctx := context.Background()

			in := benchInput("2026-03-10", 60, 8)
			in.ID = "session-1"
			_, out, err := env.srv.logWorkout(ctx, nil, in)
			require.NoError(t, err)
			assert.Equal(t, "session-1", out.WorkoutID)
			assert.False(t, out.Replaced)
			assert.True(t, out.Summary.Ingested)

			in.Exercises[0].Sets[0].Weight = tt.weight
			_, again, err := env.srv.logWorkout(ctx, nil, in)
			require.NoError(t, err)
			assert.True(t, again.Replaced)
			assert.True(t, again.Summary.Ingested)
			assert.Equal(t, streak.EventSameDay, again.Streak.Event)
			// with the old copy gone this is the exercise's only session
			assert.Equal(t, []string{"pr_" + analytics.PRFirst}, achievementTypes(again.Summary.Achievements))

			history, err := env.storage.WorkoutHistory(ctx, testUser)
			require.NoError(t, err)
			assert.Len(t, history, 1)

			_, records, err := env.srv.getPersonalRecords(ctx, nil, PersonalRecordsInput{Exercise: "Bench Press"})
			require.NoError(t, err)
			require.Len(t, records.Reports, 1)
			assert.Equal(t, tt.wantMaxWeight, records.Reports[0].Records.MaxWeight.Value)
			assert.Equal(t, 1, records.Reports[0].Summary.TotalSessions)
		})
	}
}

func TestLogWorkout_ReloggedIDCheckedAgainstEarlierSessions(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	_, _, err := env.srv.logWorkout(ctx, nil, benchInput("2026-03-08", 70, 8))
	require.NoError(t, err)

	in := benchInput("2026-03-10", 60, 8)
	in.ID = "session-2"
	_, _, err = env.srv.logWorkout(ctx, nil, in)
	require.NoError(t, err)

	// the stale 60kg copy must not be the bar to beat
	in.Exercises[0].Sets[0].Weight = 75
	_, again, err := env.srv.logWorkout(ctx, nil, in)
	require.NoError(t, err)
	assert.Contains(t, achievementTypes(again.Summary.Achievements), "pr_"+analytics.PRWeight)

	_, records, err := env.srv.getPersonalRecords(ctx, nil, PersonalRecordsInput{Exercise: "Bench Press"})
	require.NoError(t, err)
	assert.Equal(t, 75.0, records.Reports[0].Records.MaxWeight.Value)
	assert.Equal(t, 2, records.Reports[0].Summary.TotalSessions)
}

func TestLocalClock_RecoveryAndStreaks(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("UTC-5", -5*3600)
	env := setupTestServerAt(t, time.Date(2026, 3, 10, 23, 0, 0, 0, zone))
	ctx := context.Background()

	for i := range 7 {
		in := LogWorkoutInput{
			Date:      time.Date(2026, 3, 4+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			Intensity: "vigorous",
			Exercises: []ExerciseInput{{
				Name: "Squat", MuscleGroup: "legs", Sets: []SetInput{{Weight: 100, Reps: 5, Sets: 5}},
			}},
		}
		_, _, err := env.srv.logWorkout(ctx, nil, in)
		require.NoError(t, err)
	}

	// an undated log at 23:00 local lands on 04:00 UTC the next day
	_, late, err := env.srv.logWorkout(ctx, nil, benchInput("", 60, 8))
	require.NoError(t, err)
	assert.Equal(t, streak.EventSameDay, late.Streak.Event)

	// force the rows back out of SQLite, where they are UTC
	env.registry.Invalidate(testUser)
	_, advice, err := env.srv.getRestAdvice(ctx, nil, RestAdviceInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, advice.Report.RestAdvice.Metrics.RestDays)
	assert.Equal(t, analytics.StatusCritical, advice.Report.RestAdvice.Status)
	assert.True(t, advice.Report.RestToday.ShouldRest)

	_, streaks, err := env.srv.getStreaks(ctx, nil, StreaksInput{})
	require.NoError(t, err)
	assert.Equal(t, 7, streaks.Workout.Current)
}

func TestLogWorkout_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input LogWorkoutInput
	}{
		{"no exercises", LogWorkoutInput{}},
		{"bad date", benchInput("10/03/2026", 60, 8)},
		{"bad intensity", func() LogWorkoutInput {
			in := benchInput("", 60, 8)
			in.Intensity = "brutal"
			return in
		}()},
		{"negative duration", func() LogWorkoutInput {
			in := benchInput("", 60, 8)
			in.DurationMinutes = -5
			return in
		}()},
		{"unnamed exercise", LogWorkoutInput{Exercises: []ExerciseInput{{Sets: []SetInput{{Weight: 20, Reps: 5}}}}}},
		{"no sets", LogWorkoutInput{Exercises: []ExerciseInput{{Name: "Squat"}}}},
		{"negative weight", benchInput("", -10, 8)},
		{"negative reps", benchInput("", 60, -1)},
	}

	env := setupTestServer(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.srv.logWorkout(context.Background(), nil, tc.input)
			requireToolError(t, err, ErrInvalidInput)
		})
	}

	history, err := env.storage.WorkoutHistory(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUserRequiredWithoutDefault(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	env.srv.defaultUser = ""

	_, _, err := env.srv.getRestAdvice(context.Background(), nil, RestAdviceInput{})
	requireToolError(t, err, ErrInvalidInput)

	_, out, err := env.srv.getRestAdvice(context.Background(), nil, RestAdviceInput{UserID: "someone"})
	require.NoError(t, err)
	assert.NotNil(t, out.Report)
}

func TestGetExerciseFeedback(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	_, _, err := env.srv.getExerciseFeedback(ctx, nil, ExerciseFeedbackInput{Exercise: "  "})
	requireToolError(t, err, ErrInvalidInput)

	for i, date := range []string{"2026-03-06", "2026-03-08", "2026-03-10"} {
		_, _, err := env.srv.logWorkout(ctx, nil, benchInput(date, 60+float64(i)*2.5, 8))
		require.NoError(t, err)
	}

	_, out, err := env.srv.getExerciseFeedback(ctx, nil, ExerciseFeedbackInput{Exercise: "Bench Press"})
	require.NoError(t, err)
	require.NotNil(t, out.Feedback.Summary)
	assert.Equal(t, 3, out.Feedback.Summary.TotalSessions)
	assert.Equal(t, 65.0, out.Feedback.Records.MaxWeight.Value)
	assert.NotEmpty(t, out.Insights)
}

func TestGetDashboardAnalytics(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	_, out, err := env.srv.getDashboardAnalytics(ctx, nil, DashboardInput{})
	require.NoError(t, err)
	assert.Zero(t, out.Dashboard.TotalExercises)

	_, _, err = env.srv.logWorkout(ctx, nil, benchInput("2026-03-10", 60, 8))
	require.NoError(t, err)

	_, out, err = env.srv.getDashboardAnalytics(ctx, nil, DashboardInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Dashboard.TotalExercises)
	assert.NotEmpty(t, out.Insights)
}

func TestGetPersonalRecords(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	_, _, err := env.srv.logWorkout(ctx, nil, benchInput("2026-03-09", 60, 8))
	require.NoError(t, err)
	squat := LogWorkoutInput{Date: "2026-03-10", Exercises: []ExerciseInput{{
		Name: "Squat", MuscleGroup: "legs", Sets: []SetInput{{Weight: 100, Reps: 5, Sets: 5}},
	}}}
	_, _, err = env.srv.logWorkout(ctx, nil, squat)
	require.NoError(t, err)

	_, all, err := env.srv.getPersonalRecords(ctx, nil, PersonalRecordsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Count)

	_, one, err := env.srv.getPersonalRecords(ctx, nil, PersonalRecordsInput{Exercise: "Squat"})
	require.NoError(t, err)
	require.Len(t, one.Reports, 1)
	assert.Equal(t, 100.0, one.Reports[0].Records.MaxWeight.Value)
	assert.Equal(t, 2500.0, one.Reports[0].Records.MaxVolume.Value)

	_, _, err = env.srv.getPersonalRecords(ctx, nil, PersonalRecordsInput{Exercise: "Deadlift"})
	requireToolError(t, err, ErrNotFound)
}

func TestLogCardio(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	_, out, err := env.srv.logCardio(ctx, nil, LogCardioInput{BodyParts: "legs", Intensity: "vigorous", DurationMinutes: 30})
	require.NoError(t, err)
	assert.NotEmpty(t, out.SessionID)
	assert.NotEmpty(t, out.MuscleGroup)

	cardio, err := env.storage.CardioHistory(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, cardio, 1)
	assert.Equal(t, "legs", cardio[0].BodyParts)

	_, _, err = env.srv.logCardio(ctx, nil, LogCardioInput{Intensity: "extreme"})
	requireToolError(t, err, ErrInvalidInput)
}

func TestStreakTools(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	_, cal, err := env.srv.logCalorieDay(ctx, nil, LogCalorieDayInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, cal.Update.Streak)
	assert.Equal(t, streak.DefaultFreezes, cal.FreezesLeft)

	_, _, err = env.srv.logWorkout(ctx, nil, benchInput("", 60, 8))
	require.NoError(t, err)

	_, out, err := env.srv.getStreaks(ctx, nil, StreaksInput{})
	require.NoError(t, err)
	assert.Equal(t, testUser, out.UserID)
	assert.Equal(t, 1, out.Workout.Current)
	assert.Equal(t, 1, out.Workout.Best)
	assert.Equal(t, streak.DefaultBuffer, out.Workout.BufferLeft)
	assert.Equal(t, 1, out.Calorie.Current)
	assert.Equal(t, streak.DefaultFreezes, out.Calorie.FreezesLeft)
}

func TestStreakLapsedByGap(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	// last workout well beyond the gap buffer
	_, _, err := env.srv.logWorkout(ctx, nil, benchInput("2026-02-20", 60, 8))
	require.NoError(t, err)

	_, out, err := env.srv.getStreaks(ctx, nil, StreaksInput{})
	require.NoError(t, err)
	assert.Zero(t, out.Workout.Current)
	assert.Equal(t, 1, out.Workout.Best)
	require.NotEmpty(t, out.Insights)
	assert.Equal(t, "warning", out.Insights[0].Type)
}

func TestResources(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	_, _, err := env.srv.logWorkout(ctx, nil, benchInput("2026-03-10", 60, 8))
	require.NoError(t, err)

	res, err := env.srv.readDashboard(ctx, &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "lift://dashboard/" + testUser},
	})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	var dash analytics.Dashboard
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &dash))
	assert.Equal(t, 1, dash.TotalExercises)

	res, err = env.srv.readStreaks(ctx, &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: "lift://streaks/" + testUser},
	})
	require.NoError(t, err)
	var streaks StreaksOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &streaks))
	assert.Equal(t, 1, streaks.Workout.Current)
}

func TestUserFromURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"lift://dashboard/athlete", "athlete", false},
		{"lift://dashboard/jane%20doe", "jane doe", false},
		{"lift://dashboard/", "", true},
		{"lift://dashboard/a/b", "", true},
		{"lift://streaks/athlete", "", true},
	}

	for _, tc := range tests {
		got, err := userFromURI(tc.uri, dashboardURIPrefix)
		if tc.wantErr {
			assert.Error(t, err, tc.uri)
			continue
		}
		require.NoError(t, err, tc.uri)
		assert.Equal(t, tc.want, got)
	}
}

func TestPrompts(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ctx := context.Background()

	res, err := env.srv.plateauCheckPrompt(ctx, &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Name: "plateau_check", Arguments: map[string]string{"exercise": "Bench Press"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, `exercise="Bench Press"`)

	res, err = env.srv.plateauCheckPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "plateau_check"}})
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content.(*mcp.TextContent).Text, "get_dashboard_analytics")

	res, err = env.srv.postWorkoutReviewPrompt(ctx, &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Name: "post_workout_review", Arguments: map[string]string{"user_id": "sam"}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content.(*mcp.TextContent).Text, `user_id="sam"`)
}

func TestInstrumentCountsCalls(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	ok := instrument(env.srv, "probe", func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, struct{}, error) {
		return nil, struct{}{}, nil
	})
	failing := instrument(env.srv, "probe", func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, struct{}, error) {
		return nil, struct{}{}, NewInvalidInputError("nope")
	})

	_, _, _ = ok(context.Background(), nil, struct{}{})
	_, _, _ = ok(context.Background(), nil, struct{}{})
	_, _, err := failing(context.Background(), nil, struct{}{})
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.CounterToolCalls.WithLabelValues("probe", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CounterToolCalls.WithLabelValues("probe", "error")))
}

func TestRouter(t *testing.T) {
	t.Parallel()

	env := setupTestServer(t)
	_, _, err := env.srv.logWorkout(context.Background(), nil, benchInput("2026-03-10", 60, 8))
	require.NoError(t, err)

	m, reg := metrics.NewTestManagerAndRegistry()
	m.ToolCall("log_workout", false)
	ts := httptest.NewServer(env.srv.Router(reg))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, []string{testUser}, health.LoadedUsers)

	metricsResp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)

	count, err := testutil.GatherAndCount(reg, "lift_mcp_tool_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", testNow, false},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2026-03-01T07:30:00Z", time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC), false},
		{"March 1", time.Time{}, true},
	}

	for _, tc := range tests {
		got, err := parseDate(tc.in, testNow)
		if tc.wantErr {
			requireToolError(t, err, ErrInvalidInput)
			continue
		}
		require.NoError(t, err)
		assert.True(t, tc.want.Equal(got), "%q: got %v", tc.in, got)
	}
}

func TestFeedbackInsight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		feedback analytics.Feedback
		want     string
	}{
		{"critical is a warning", analytics.Feedback{Type: analytics.TypeNoRest, Severity: analytics.SeverityCritical}, "warning"},
		{"high is a warning", analytics.Feedback{Type: analytics.TypeOvertraining, Severity: analytics.SeverityHigh}, "warning"},
		{"progress is an achievement", analytics.Feedback{Type: analytics.TypeProgress}, "achievement"},
		{"info is a trend", analytics.Feedback{Type: analytics.TypeInfo}, "trend"},
		{"medium is a suggestion", analytics.Feedback{Type: analytics.TypeStagnation, Severity: analytics.SeverityMedium}, "suggestion"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FeedbackInsight(tc.feedback).Type)
		})
	}

	withEmoji := FeedbackInsight(analytics.Feedback{Type: analytics.TypeInfo, Message: "hi", Emoji: "👋"})
	assert.Equal(t, "👋 hi", withEmoji.Message)
}

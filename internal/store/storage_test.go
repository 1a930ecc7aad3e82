package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/db"
	"github.com/joshdurbin/lift-mcp/internal/streak"

	_ "modernc.org/sqlite"
)

// setupTestStorage creates a migrated SQLite database in a temp dir
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = db.Migrate(context.Background(), sqlDB)
	require.NoError(t, err)

	return NewStorage(sqlDB)
}

func ptr[T any](v T) *T {
	return &v
}

func TestStorage_WorkoutRoundTrip(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	date := time.Date(2024, 4, 2, 18, 30, 0, 0, time.UTC)
	id, err := s.SaveWorkout(ctx, "u1", analytics.WorkoutRecord{
		Date:            &date,
		Intensity:       "vigorous",
		DurationMinutes: ptr(55.0),
		Exercises: []analytics.ExerciseRecord{
			{ExerciseName: "Bench", MuscleGroup: "chest", Sets: []analytics.SetRecord{
				{Weight: ptr(60.0), Reps: ptr(8), Sets: ptr(1)},
				{Weight: ptr(62.5), Reps: ptr(6), Sets: ptr(1)},
			}},
			{Name: "Plank", Sets: []analytics.SetRecord{{}}},
		},
	}, SourceLocal)
	require.NoError(t, err)
	assert.NotEmpty(t, id, "generated id")

	workouts, err := s.WorkoutHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, workouts, 1)

	w := workouts[0]
	assert.Equal(t, id, w.ID)
	assert.True(t, w.WorkoutDate().Equal(date))
	assert.Equal(t, "vigorous", w.Intensity)
	require.NotNil(t, w.DurationMinutes)
	assert.Equal(t, 55.0, *w.DurationMinutes)

	require.Len(t, w.Exercises, 2)
	assert.Equal(t, "Bench", w.Exercises[0].ExerciseKey())
	require.Len(t, w.Exercises[0].Sets, 2)
	assert.Equal(t, 62.5, *w.Exercises[0].Sets[1].Weight)
	assert.Equal(t, "Plank", w.Exercises[1].ExerciseKey())
	assert.Nil(t, w.Exercises[1].Sets[0].Weight, "missing values stay missing")

	latest, ok, err := s.LatestWorkoutDate(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, latest.Equal(date))

	_, ok, err = s.LatestWorkoutDate(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_SaveWorkoutReplacesSets(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	date := time.Date(2024, 4, 2, 18, 30, 0, 0, time.UTC)
	rec := analytics.WorkoutRecord{
		ID:   "w1",
		Date: &date,
		Exercises: []analytics.ExerciseRecord{{ExerciseName: "Squat", Sets: []analytics.SetRecord{
			{Weight: ptr(100.0)}, {Weight: ptr(105.0)},
		}}},
	}
	_, err := s.SaveWorkout(ctx, "u1", rec, SourceRemote)
	require.NoError(t, err)

	rec.Exercises[0].Sets = rec.Exercises[0].Sets[:1]
	_, err = s.SaveWorkout(ctx, "u1", rec, SourceRemote)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Workouts: 1, Sets: 1}, stats)

	_, err = s.SaveWorkout(ctx, "u1", analytics.WorkoutRecord{ID: "undated"}, SourceLocal)
	assert.ErrorIs(t, err, analytics.ErrInvalidInput)
}

func TestStorage_Cardio(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	created := time.Date(2024, 4, 3, 7, 0, 0, 0, time.UTC)
	_, err := s.SaveCardio(ctx, "u1", analytics.CardioRecord{
		ID:        "c1",
		BodyParts: "legs,core",
		CreatedAt: &created,
		Intensity: "high",
		Duration:  ptr(30.0),
	}, SourceRemote)
	require.NoError(t, err)

	records, err := s.CardioHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "legs,core", records[0].BodyParts)
	assert.True(t, records[0].Date.Equal(created))

	session, err := analytics.NormalizeCardio(records[0])
	require.NoError(t, err)
	assert.Equal(t, analytics.GroupLegs, session.MuscleGroup)
	assert.Equal(t, analytics.IntensityVigorous, session.Intensity)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	_, err = s.SaveCardio(ctx, "u1", analytics.CardioRecord{}, SourceLocal)
	assert.ErrorIs(t, err, analytics.ErrInvalidInput)
}

func TestStorage_KVBacksStreakStore(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.GetValue(ctx, "missing")
	assert.ErrorIs(t, err, streak.ErrNotFound)

	streaks := streak.NewStore(s)
	tr, err := streaks.Workout(ctx, "u1")
	require.NoError(t, err)
	tr.LogWorkout(time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC))
	tr.LogWorkout(time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC))
	require.NoError(t, streaks.SaveWorkout(ctx, "u1", tr))

	loaded, err := streaks.Workout(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.State().StreakCount)
}

func TestStorage_FeedsAnalytics(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	for i, weight := range []float64{60, 65} {
		date := time.Date(2024, 1, 1+7*i, 9, 0, 0, 0, time.UTC)
		_, err := s.SaveWorkout(ctx, "u1", analytics.WorkoutRecord{
			Date: &date,
			Exercises: []analytics.ExerciseRecord{{ExerciseName: "Bench", MuscleGroup: "chest", Sets: []analytics.SetRecord{
				{Weight: ptr(weight), Reps: ptr(8), Sets: ptr(3)},
			}}},
		}, SourceLocal)
		require.NoError(t, err)
	}

	svc := analytics.NewService(s)
	require.NoError(t, svc.Initialize(ctx, "u1"))
	fb, err := svc.Feedback("Bench")
	require.NoError(t, err)
	assert.Equal(t, analytics.TypeProgress, fb.Suggestion.Type)
	assert.Contains(t, fb.Suggestion.Message, "8.3%")
}

func TestStorage_RecoveryDaysInClockZone(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("UTC-5", -5*3600)

	tests := []struct {
		name string
		hour int
	}{
		{"morning sessions", 9},
		{"late sessions stored on the next utc day", 22},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := setupTestStorage(t)
			ctx := context.Background()

			first := time.Date(2026, 3, 4, tt.hour, 0, 0, 0, zone)
			for i := range 7 {
				date := first.AddDate(0, 0, i)
				_, err := s.SaveWorkout(ctx, "u1", analytics.WorkoutRecord{
					Date:      &date,
					Intensity: "vigorous",
					Exercises: []analytics.ExerciseRecord{{ExerciseName: "Squat", MuscleGroup: "legs", Sets: []analytics.SetRecord{
						{Weight: ptr(100.0), Reps: ptr(5), Sets: ptr(5)},
					}}},
				}, SourceLocal)
				require.NoError(t, err)
			}

			now := time.Date(2026, 3, 10, 23, 30, 0, 0, zone)
			svc := analytics.NewService(s, analytics.WithClock(func() time.Time { return now }))
			require.NoError(t, svc.Initialize(ctx, "u1"))

			report, err := svc.Recovery()
			require.NoError(t, err)
			assert.Equal(t, 7, report.RestAdvice.Metrics.TotalSessions)
			assert.Equal(t, 0, report.RestAdvice.Metrics.RestDays)
			assert.Equal(t, analytics.StatusCritical, report.RestAdvice.Status)

			var types []string
			for _, fb := range report.RestAdvice.Advice {
				types = append(types, fb.Type)
			}
			assert.Contains(t, types, analytics.TypeNoRest)
			assert.True(t, report.RestToday.ShouldRest)
		})
	}
}

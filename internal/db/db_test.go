package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *Queries {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	results, err := Migrate(context.Background(), sqlDB)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	return New(sqlDB)
}

func TestMigrate_Idempotent(t *testing.T) {
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer sqlDB.Close()

	ctx := context.Background()
	_, err = Migrate(ctx, sqlDB)
	require.NoError(t, err)

	again, err := Migrate(ctx, sqlDB)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestWorkouts_RoundTrip(t *testing.T) {
	q := setupTestDB(t)
	ctx := context.Background()

	_, err := q.GetLatestWorkoutDate(ctx, "u1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	older := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

	require.NoError(t, q.UpsertWorkout(ctx, UpsertWorkoutParams{ID: "w2", UserID: "u1", Date: newer, Source: "local"}))
	require.NoError(t, q.UpsertWorkout(ctx, UpsertWorkoutParams{
		ID:              "w1",
		UserID:          "u1",
		Date:            older,
		Intensity:       sql.NullString{String: "vigorous", Valid: true},
		DurationMinutes: sql.NullFloat64{Float64: 50, Valid: true},
		Source:          "remote",
	}))
	require.NoError(t, q.UpsertWorkout(ctx, UpsertWorkoutParams{ID: "w3", UserID: "u2", Date: newer, Source: "local"}))

	require.NoError(t, q.CreateWorkoutSet(ctx, CreateWorkoutSetParams{
		WorkoutID:    "w1",
		Position:     0,
		ExerciseName: "Bench",
		MuscleGroup:  sql.NullString{String: "chest", Valid: true},
		Weight:       sql.NullFloat64{Float64: 60, Valid: true},
		Reps:         sql.NullInt64{Int64: 8, Valid: true},
		Sets:         sql.NullInt64{Int64: 3, Valid: true},
	}))
	require.NoError(t, q.CreateWorkoutSet(ctx, CreateWorkoutSetParams{WorkoutID: "w2", Position: 0, ExerciseName: "Squat"}))

	workouts, err := q.ListWorkouts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, workouts, 2)
	assert.Equal(t, "w1", workouts[0].ID)
	assert.True(t, workouts[0].Date.Equal(older))
	assert.Equal(t, "vigorous", workouts[0].Intensity.String)
	assert.False(t, workouts[1].Intensity.Valid)

	sets, err := q.ListWorkoutSets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "Bench", sets[0].ExerciseName)
	assert.Equal(t, int64(8), sets[0].Reps.Int64)
	assert.False(t, sets[1].Weight.Valid)

	latest, err := q.GetLatestWorkoutDate(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, latest.Equal(newer))

	// upsert replaces, set rows are rewritten explicitly
	require.NoError(t, q.UpsertWorkout(ctx, UpsertWorkoutParams{ID: "w1", UserID: "u1", Date: older, Source: "remote"}))
	require.NoError(t, q.DeleteWorkoutSets(ctx, "w1"))
	count, err := q.CountWorkouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	setCount, err := q.CountWorkoutSets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), setCount)

	users, err := q.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)
}

func TestCardio_RoundTrip(t *testing.T) {
	q := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, q.UpsertCardioSession(ctx, UpsertCardioSessionParams{
		ID:        "c1",
		UserID:    "u3",
		Date:      date,
		BodyParts: sql.NullString{String: "legs, core", Valid: true},
		Source:    "remote",
	}))

	sessions, err := q.ListCardioSessions(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "legs, core", sessions[0].BodyParts.String)
	assert.True(t, sessions[0].Date.Equal(date))

	latest, err := q.GetLatestCardioDate(ctx, "u3")
	require.NoError(t, err)
	assert.True(t, latest.Equal(date))

	n, err := q.CountCardioSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestKV(t *testing.T) {
	q := setupTestDB(t)
	ctx := context.Background()

	_, err := q.GetKV(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, q.SetKV(ctx, SetKVParams{Key: "k", Value: "v1"}))
	require.NoError(t, q.SetKV(ctx, SetKVParams{Key: "k", Value: "v2"}))
	v, err := q.GetKV(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, q.DeleteKV(ctx, "k"))
	_, err = q.GetKV(ctx, "k")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

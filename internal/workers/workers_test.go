package workers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/db"
	"github.com/joshdurbin/lift-mcp/internal/metrics"
	"github.com/joshdurbin/lift-mcp/internal/remote"
	"github.com/joshdurbin/lift-mcp/internal/store"
	"github.com/joshdurbin/lift-mcp/internal/streak"
	syncsvc "github.com/joshdurbin/lift-mcp/internal/sync"

	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// setupTestStorage creates a migrated SQLite database in a temp dir
func setupTestStorage(t *testing.T) *store.Storage {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = db.Migrate(context.Background(), sqlDB)
	require.NoError(t, err)

	return store.NewStorage(sqlDB)
}

type staticUsers []string

func (s staticUsers) Users(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

type fakeFetcher struct {
	workouts []analytics.WorkoutRecord
}

func (f *fakeFetcher) FetchWorkoutsSince(_ context.Context, _ string, _ time.Time, progress remote.ProgressCallback) ([]analytics.WorkoutRecord, error) {
	if progress != nil {
		progress(remote.FetchResult{Kind: "workouts", Page: 1, Count: len(f.workouts), TotalFetched: len(f.workouts)})
	}
	return f.workouts, nil
}

func (f *fakeFetcher) FetchCardioSince(context.Context, string, time.Time, remote.ProgressCallback) ([]analytics.CardioRecord, error) {
	return nil, nil
}

func benchWorkout(id string, date time.Time) analytics.WorkoutRecord {
	weight, reps, sets := 80.0, 5, 3
	return analytics.WorkoutRecord{
		ID:   id,
		Date: &date,
		Exercises: []analytics.ExerciseRecord{{
			ExerciseName: "Bench",
			MuscleGroup:  "chest",
			Sets:         []analytics.SetRecord{{Weight: &weight, Reps: &reps, Sets: &sets}},
		}},
	}
}

func TestKnownUsers(t *testing.T) {
	t.Parallel()

	users, err := knownUsers(context.Background(), staticUsers{"b", "a"}, []string{"c", "a", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, users)
}

func TestHistorySyncer_InvalidatesRegistry(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	registry := analytics.NewRegistry(storage)
	m := metrics.NewTestManager()

	svc, err := registry.For(ctx, "u1")
	require.NoError(t, err)
	exercises, err := svc.Exercises()
	require.NoError(t, err)
	assert.Empty(t, exercises)

	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{workouts: []analytics.WorkoutRecord{benchWorkout("w1", day), benchWorkout("w2", day.AddDate(0, 0, 2))}}
	syncer := NewHistorySyncer(syncsvc.NewService(storage, fetcher), storage, registry, m, time.Hour, "u1")

	require.NoError(t, syncer.SyncOnce(ctx))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CounterSyncedRows.WithLabelValues("workouts")))

	svc, err = registry.For(ctx, "u1")
	require.NoError(t, err)
	exercises, err = svc.Exercises()
	require.NoError(t, err)
	assert.Equal(t, []string{"Bench"}, exercises)

	// the boundary rows come back unchanged and are not counted again
	require.NoError(t, syncer.SyncOnce(ctx))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CounterSyncedRows.WithLabelValues("workouts")))
	assert.True(t, svc.Initialized())
}

func TestFreezeResetter_OncePerMonth(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()
	streaks := streak.NewStore(storage)

	last := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, streaks.SaveCalorie(ctx, "u1", streak.RestoreCalorieTracker(streak.CalorieState{
		StreakCount:    12,
		LastActiveDate: &last,
		MaxStreak:      12,
		FreezesLeft:    0,
	})))

	resetter := NewFreezeResetter(storage, staticUsers{"u1"}, time.Hour)
	resetter.now = func() time.Time { return time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC) }

	n, err := resetter.ResetDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tracker, err := streaks.Calorie(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, streak.DefaultFreezes, tracker.State().FreezesLeft)
	assert.Equal(t, 12, tracker.State().StreakCount)

	month, err := storage.GetValue(ctx, FreezeResetKeyPrefix+"u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-04", month)

	n, err = resetter.ResetDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	resetter.now = func() time.Time { return time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC) }
	n, err = resetter.ResetDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStagnationNotifier_Throttled(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	for i := range 6 {
		_, err := storage.SaveWorkout(ctx, "u1", benchWorkout("", start.AddDate(0, 0, 2*i)), store.SourceLocal)
		require.NoError(t, err)
	}

	now := start.AddDate(0, 0, 12)
	registry := analytics.NewRegistry(storage, analytics.WithClock(func() time.Time { return now }))
	m := metrics.NewTestManager()
	notifier := NewStagnationNotifier(registry, storage, m, time.Hour)

	sent, err := notifier.NotifyOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// a reload after sync or cardio logging keeps the last notification
	registry.Invalidate("u1")
	sent, err = notifier.NotifyOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	now = now.Add(analytics.NotifyInterval)
	sent, err = notifier.NotifyOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CounterStagnationNotifications))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GaugeActiveUsers))
}

func TestRunStopsOnCancel(t *testing.T) {
	storage := setupTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewFreezeResetter(storage, staticUsers{"u1"}, time.Millisecond).Run(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestLogDatabaseStats(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	_, err := storage.SaveWorkout(ctx, "u1", benchWorkout("w1", time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)), store.SourceLocal)
	require.NoError(t, err)

	assert.NotPanics(t, func() { LogDatabaseStats(ctx, storage) })
}

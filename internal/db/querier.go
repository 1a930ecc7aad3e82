package db

import (
	"context"
	"time"
)

type Querier interface {
	CountCardioSessions(ctx context.Context) (int64, error)
	CountUserCardioByID(ctx context.Context, arg CountUserCardioByIDParams) (int64, error)
	CountUserWorkoutsByID(ctx context.Context, arg CountUserWorkoutsByIDParams) (int64, error)
	CountWorkoutSets(ctx context.Context) (int64, error)
	CountWorkouts(ctx context.Context) (int64, error)
	CreateWorkoutSet(ctx context.Context, arg CreateWorkoutSetParams) error
	DeleteKV(ctx context.Context, key string) error
	DeleteWorkoutSets(ctx context.Context, workoutID string) error
	GetKV(ctx context.Context, key string) (string, error)
	GetLatestCardioDate(ctx context.Context, userID string) (time.Time, error)
	GetLatestWorkoutDate(ctx context.Context, userID string) (time.Time, error)
	ListCardioSessions(ctx context.Context, userID string) ([]CardioSession, error)
	ListUsers(ctx context.Context) ([]string, error)
	ListWorkoutSets(ctx context.Context, userID string) ([]WorkoutSet, error)
	ListWorkouts(ctx context.Context, userID string) ([]Workout, error)
	SetKV(ctx context.Context, arg SetKVParams) error
	UpsertCardioSession(ctx context.Context, arg UpsertCardioSessionParams) error
	UpsertWorkout(ctx context.Context, arg UpsertWorkoutParams) error
}

var _ Querier = (*Queries)(nil)

package db

import (
	"context"
	"database/sql"
	"time"
)

const countCardioSessions = `-- name: CountCardioSessions :one
SELECT COUNT(*) FROM cardio_sessions
`

func (q *Queries) CountCardioSessions(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCardioSessions)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countWorkoutSets = `-- name: CountWorkoutSets :one
SELECT COUNT(*) FROM workout_sets
`

func (q *Queries) CountWorkoutSets(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countWorkoutSets)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countUserCardioByID = `-- name: CountUserCardioByID :one
SELECT COUNT(*) FROM cardio_sessions
WHERE user_id = ? AND id = ?
`

type CountUserCardioByIDParams struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

func (q *Queries) CountUserCardioByID(ctx context.Context, arg CountUserCardioByIDParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUserCardioByID, arg.UserID, arg.ID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countUserWorkoutsByID = `-- name: CountUserWorkoutsByID :one
SELECT COUNT(*) FROM workouts
WHERE user_id = ? AND id = ?
`

type CountUserWorkoutsByIDParams struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

func (q *Queries) CountUserWorkoutsByID(ctx context.Context, arg CountUserWorkoutsByIDParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUserWorkoutsByID, arg.UserID, arg.ID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countWorkouts = `-- name: CountWorkouts :one
SELECT COUNT(*) FROM workouts
`

func (q *Queries) CountWorkouts(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countWorkouts)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createWorkoutSet = `-- name: CreateWorkoutSet :exec
INSERT INTO workout_sets (
    workout_id, position, exercise_name, muscle_group, weight, reps, sets, set_date
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateWorkoutSetParams struct {
	WorkoutID    string          `json:"workout_id"`
	Position     int64           `json:"position"`
	ExerciseName string          `json:"exercise_name"`
	MuscleGroup  sql.NullString  `json:"muscle_group"`
	Weight       sql.NullFloat64 `json:"weight"`
	Reps         sql.NullInt64   `json:"reps"`
	Sets         sql.NullInt64   `json:"sets"`
	SetDate      sql.NullTime    `json:"set_date"`
}

func (q *Queries) CreateWorkoutSet(ctx context.Context, arg CreateWorkoutSetParams) error {
	_, err := q.db.ExecContext(ctx, createWorkoutSet,
		arg.WorkoutID,
		arg.Position,
		arg.ExerciseName,
		arg.MuscleGroup,
		arg.Weight,
		arg.Reps,
		arg.Sets,
		arg.SetDate,
	)
	return err
}

const deleteKV = `-- name: DeleteKV :exec
DELETE FROM kv_store WHERE key = ?
`

func (q *Queries) DeleteKV(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteKV, key)
	return err
}

const deleteWorkoutSets = `-- name: DeleteWorkoutSets :exec
DELETE FROM workout_sets WHERE workout_id = ?
`

func (q *Queries) DeleteWorkoutSets(ctx context.Context, workoutID string) error {
	_, err := q.db.ExecContext(ctx, deleteWorkoutSets, workoutID)
	return err
}

const getKV = `-- name: GetKV :one
SELECT value FROM kv_store WHERE key = ?
`

func (q *Queries) GetKV(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getKV, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const getLatestCardioDate = `-- name: GetLatestCardioDate :one
SELECT date FROM cardio_sessions
WHERE user_id = ?
ORDER BY date DESC
LIMIT 1
`

func (q *Queries) GetLatestCardioDate(ctx context.Context, userID string) (time.Time, error) {
	row := q.db.QueryRowContext(ctx, getLatestCardioDate, userID)
	var date time.Time
	err := row.Scan(&date)
	return date, err
}

const getLatestWorkoutDate = `-- name: GetLatestWorkoutDate :one
SELECT date FROM workouts
WHERE user_id = ?
ORDER BY date DESC
LIMIT 1
`

func (q *Queries) GetLatestWorkoutDate(ctx context.Context, userID string) (time.Time, error) {
	row := q.db.QueryRowContext(ctx, getLatestWorkoutDate, userID)
	var date time.Time
	err := row.Scan(&date)
	return date, err
}

const listCardioSessions = `-- name: ListCardioSessions :many
SELECT id, user_id, date, muscle_group, body_parts, intensity, duration_minutes, source
FROM cardio_sessions
WHERE user_id = ?
ORDER BY date, id
`

func (q *Queries) ListCardioSessions(ctx context.Context, userID string) ([]CardioSession, error) {
	rows, err := q.db.QueryContext(ctx, listCardioSessions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CardioSession
	for rows.Next() {
		var i CardioSession
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Date,
			&i.MuscleGroup,
			&i.BodyParts,
			&i.Intensity,
			&i.DurationMinutes,
			&i.Source,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listUsers = `-- name: ListUsers :many
SELECT user_id FROM workouts
UNION
SELECT user_id FROM cardio_sessions
ORDER BY user_id
`

func (q *Queries) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		items = append(items, userID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listWorkoutSets = `-- name: ListWorkoutSets :many
SELECT s.id, s.workout_id, s.position, s.exercise_name, s.muscle_group, s.weight, s.reps, s.sets, s.set_date
FROM workout_sets s
JOIN workouts w ON w.id = s.workout_id
WHERE w.user_id = ?
ORDER BY s.workout_id, s.position
`

func (q *Queries) ListWorkoutSets(ctx context.Context, userID string) ([]WorkoutSet, error) {
	rows, err := q.db.QueryContext(ctx, listWorkoutSets, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WorkoutSet
	for rows.Next() {
		var i WorkoutSet
		if err := rows.Scan(
			&i.ID,
			&i.WorkoutID,
			&i.Position,
			&i.ExerciseName,
			&i.MuscleGroup,
			&i.Weight,
			&i.Reps,
			&i.Sets,
			&i.SetDate,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listWorkouts = `-- name: ListWorkouts :many
SELECT id, user_id, date, intensity, duration_minutes, source, created_at
FROM workouts
WHERE user_id = ?
ORDER BY date, id
`

func (q *Queries) ListWorkouts(ctx context.Context, userID string) ([]Workout, error) {
	rows, err := q.db.QueryContext(ctx, listWorkouts, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Workout
	for rows.Next() {
		var i Workout
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Date,
			&i.Intensity,
			&i.DurationMinutes,
			&i.Source,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setKV = `-- name: SetKV :exec
INSERT INTO kv_store (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    updated_at = CURRENT_TIMESTAMP
`

type SetKVParams struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (q *Queries) SetKV(ctx context.Context, arg SetKVParams) error {
	_, err := q.db.ExecContext(ctx, setKV, arg.Key, arg.Value)
	return err
}

const upsertCardioSession = `-- name: UpsertCardioSession :exec
INSERT INTO cardio_sessions (
    id, user_id, date, muscle_group, body_parts, intensity, duration_minutes, source
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    user_id = excluded.user_id,
    date = excluded.date,
    muscle_group = excluded.muscle_group,
    body_parts = excluded.body_parts,
    intensity = excluded.intensity,
    duration_minutes = excluded.duration_minutes,
    source = excluded.source
`

type UpsertCardioSessionParams struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Date            time.Time       `json:"date"`
	MuscleGroup     sql.NullString  `json:"muscle_group"`
	BodyParts       sql.NullString  `json:"body_parts"`
	Intensity       sql.NullString  `json:"intensity"`
	DurationMinutes sql.NullFloat64 `json:"duration_minutes"`
	Source          string          `json:"source"`
}

func (q *Queries) UpsertCardioSession(ctx context.Context, arg UpsertCardioSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertCardioSession,
		arg.ID,
		arg.UserID,
		arg.Date,
		arg.MuscleGroup,
		arg.BodyParts,
		arg.Intensity,
		arg.DurationMinutes,
		arg.Source,
	)
	return err
}

const upsertWorkout = `-- name: UpsertWorkout :exec
INSERT INTO workouts (
    id, user_id, date, intensity, duration_minutes, source
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    user_id = excluded.user_id,
    date = excluded.date,
    intensity = excluded.intensity,
    duration_minutes = excluded.duration_minutes,
    source = excluded.source
`

type UpsertWorkoutParams struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Date            time.Time       `json:"date"`
	Intensity       sql.NullString  `json:"intensity"`
	DurationMinutes sql.NullFloat64 `json:"duration_minutes"`
	Source          string          `json:"source"`
}

func (q *Queries) UpsertWorkout(ctx context.Context, arg UpsertWorkoutParams) error {
	_, err := q.db.ExecContext(ctx, upsertWorkout,
		arg.ID,
		arg.UserID,
		arg.Date,
		arg.Intensity,
		arg.DurationMinutes,
		arg.Source,
	)
	return err
}

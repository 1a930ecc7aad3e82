package db

import (
	"database/sql"
	"time"
)

type CardioSession struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Date            time.Time       `json:"date"`
	MuscleGroup     sql.NullString  `json:"muscle_group"`
	BodyParts       sql.NullString  `json:"body_parts"`
	Intensity       sql.NullString  `json:"intensity"`
	DurationMinutes sql.NullFloat64 `json:"duration_minutes"`
	Source          string          `json:"source"`
}

type KvStore struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Workout struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Date            time.Time       `json:"date"`
	Intensity       sql.NullString  `json:"intensity"`
	DurationMinutes sql.NullFloat64 `json:"duration_minutes"`
	Source          string          `json:"source"`
	CreatedAt       time.Time       `json:"created_at"`
}

type WorkoutSet struct {
	ID           int64           `json:"id"`
	WorkoutID    string          `json:"workout_id"`
	Position     int64           `json:"position"`
	ExerciseName string          `json:"exercise_name"`
	MuscleGroup  sql.NullString  `json:"muscle_group"`
	Weight       sql.NullFloat64 `json:"weight"`
	Reps         sql.NullInt64   `json:"reps"`
	Sets         sql.NullInt64   `json:"sets"`
	SetDate      sql.NullTime    `json:"set_date"`
}

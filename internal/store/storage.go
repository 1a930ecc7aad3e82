package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/db"
	"github.com/joshdurbin/lift-mcp/internal/streak"
)

// Row sources
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Storage handles workout, cardio and key/value persistence using SQLite.
// It is the analytics HistorySource and the streak KV.
type Storage struct {
	sqlDB   *sql.DB
	queries *db.Queries
}

var (
	_ analytics.HistorySource = (*Storage)(nil)
	_ streak.KV               = (*Storage)(nil)
)

// NewStorage creates a new Storage instance
func NewStorage(sqlDB *sql.DB) *Storage {
	return &Storage{
		sqlDB:   sqlDB,
		queries: db.New(sqlDB),
	}
}

// Queries exposes the underlying queries for read-only callers
func (s *Storage) Queries() *db.Queries {
	return s.queries
}

// GetValue reads a key, returning streak.ErrNotFound when it is absent
func (s *Storage) GetValue(ctx context.Context, key string) (string, error) {
	value, err := s.queries.GetKV(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", streak.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", key, err)
	}
	return value, nil
}

// SetValue writes a key
func (s *Storage) SetValue(ctx context.Context, key, value string) error {
	return s.queries.SetKV(ctx, db.SetKVParams{Key: key, Value: value})
}

// SaveWorkout stores a workout and replaces its set rows in one transaction.
// A workout without an id gets a generated one, which is returned.
func (s *Storage) SaveWorkout(ctx context.Context, userID string, w analytics.WorkoutRecord, source string) (string, error) {
	date := w.WorkoutDate()
	if date.IsZero() {
		return "", fmt.Errorf("%w: workout has no date", analytics.ErrInvalidInput)
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	if err := q.UpsertWorkout(ctx, db.UpsertWorkoutParams{
		ID:              w.ID,
		UserID:          userID,
		Date:            date.UTC(),
		Intensity:       toNullString(w.Intensity),
		DurationMinutes: toNullFloat64(w.DurationMinutes),
		Source:          source,
	}); err != nil {
		return "", fmt.Errorf("saving workout %s: %w", w.ID, err)
	}

	if err := q.DeleteWorkoutSets(ctx, w.ID); err != nil {
		return "", fmt.Errorf("clearing sets of workout %s: %w", w.ID, err)
	}

	var position int64
	for _, ex := range w.Exercises {
		for _, set := range ex.Sets {
			if err := q.CreateWorkoutSet(ctx, db.CreateWorkoutSetParams{
				WorkoutID:    w.ID,
				Position:     position,
				ExerciseName: ex.ExerciseKey(),
				MuscleGroup:  toNullString(ex.MuscleGroup),
				Weight:       toNullFloat64(set.Weight),
				Reps:         toNullInt64(set.Reps),
				Sets:         toNullInt64(set.Sets),
				SetDate:      toNullTime(set.Date, set.CreatedAt),
			}); err != nil {
				return "", fmt.Errorf("saving set %d of workout %s: %w", position, w.ID, err)
			}
			position++
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing workout %s: %w", w.ID, err)
	}
	return w.ID, nil
}

// SaveCardio stores a cardio session, generating an id when missing
func (s *Storage) SaveCardio(ctx context.Context, userID string, c analytics.CardioRecord, source string) (string, error) {
	date := c.Date
	if date == nil || date.IsZero() {
		date = c.CreatedAt
	}
	if date == nil || date.IsZero() {
		return "", fmt.Errorf("%w: cardio session has no date", analytics.ErrInvalidInput)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	err := s.queries.UpsertCardioSession(ctx, db.UpsertCardioSessionParams{
		ID:              c.ID,
		UserID:          userID,
		Date:            date.UTC(),
		MuscleGroup:     toNullString(c.MuscleGroup),
		BodyParts:       toNullString(c.BodyParts),
		Intensity:       toNullString(c.Intensity),
		DurationMinutes: toNullFloat64(c.Duration),
		Source:          source,
	})
	if err != nil {
		return "", fmt.Errorf("saving cardio session %s: %w", c.ID, err)
	}
	return c.ID, nil
}

// WorkoutHistory rebuilds the user's workouts with their nested exercises.
// Consecutive sets of the same exercise are grouped into one exercise entry.
func (s *Storage) WorkoutHistory(ctx context.Context, userID string) ([]analytics.WorkoutRecord, error) {
	workouts, err := s.queries.ListWorkouts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}
	sets, err := s.queries.ListWorkoutSets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing workout sets: %w", err)
	}

	byWorkout := make(map[string][]db.WorkoutSet, len(workouts))
	for _, set := range sets {
		byWorkout[set.WorkoutID] = append(byWorkout[set.WorkoutID], set)
	}

	records := make([]analytics.WorkoutRecord, 0, len(workouts))
	for _, w := range workouts {
		date := w.Date
		rec := analytics.WorkoutRecord{
			ID:              w.ID,
			Date:            &date,
			Intensity:       w.Intensity.String,
			DurationMinutes: fromNullFloat64(w.DurationMinutes),
		}
		for _, set := range byWorkout[w.ID] {
			n := len(rec.Exercises)
			if n == 0 || rec.Exercises[n-1].ExerciseName != set.ExerciseName || rec.Exercises[n-1].MuscleGroup != set.MuscleGroup.String {
				rec.Exercises = append(rec.Exercises, analytics.ExerciseRecord{
					ExerciseName: set.ExerciseName,
					MuscleGroup:  set.MuscleGroup.String,
				})
				n++
			}
			rec.Exercises[n-1].Sets = append(rec.Exercises[n-1].Sets, analytics.SetRecord{
				Weight: fromNullFloat64(set.Weight),
				Reps:   fromNullInt64(set.Reps),
				Sets:   fromNullInt64(set.Sets),
				Date:   fromNullTime(set.SetDate),
			})
		}
		records = append(records, rec)
	}
	return records, nil
}

// CardioHistory returns the user's cardio sessions
func (s *Storage) CardioHistory(ctx context.Context, userID string) ([]analytics.CardioRecord, error) {
	sessions, err := s.queries.ListCardioSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cardio sessions: %w", err)
	}
	records := make([]analytics.CardioRecord, 0, len(sessions))
	for _, c := range sessions {
		date := c.Date
		records = append(records, analytics.CardioRecord{
			ID:          c.ID,
			MuscleGroup: c.MuscleGroup.String,
			BodyParts:   c.BodyParts.String,
			Date:        &date,
			Intensity:   c.Intensity.String,
			Duration:    fromNullFloat64(c.DurationMinutes),
		})
	}
	return records, nil
}

// LatestWorkoutDate returns the newest stored workout date for the user.
// The bool is false when the user has no workouts.
func (s *Storage) LatestWorkoutDate(ctx context.Context, userID string) (time.Time, bool, error) {
	return latest(s.queries.GetLatestWorkoutDate(ctx, userID))
}

// LatestCardioDate returns the newest stored cardio date for the user
func (s *Storage) LatestCardioDate(ctx context.Context, userID string) (time.Time, bool, error) {
	return latest(s.queries.GetLatestCardioDate(ctx, userID))
}

func latest(t time.Time, err error) (time.Time, bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// HasWorkout reports whether the user already has a workout with id
func (s *Storage) HasWorkout(ctx context.Context, userID, id string) (bool, error) {
	n, err := s.queries.CountUserWorkoutsByID(ctx, db.CountUserWorkoutsByIDParams{UserID: userID, ID: id})
	if err != nil {
		return false, fmt.Errorf("looking up workout %s: %w", id, err)
	}
	return n > 0, nil
}

// HasCardio reports whether the user already has a cardio session with id
func (s *Storage) HasCardio(ctx context.Context, userID, id string) (bool, error) {
	n, err := s.queries.CountUserCardioByID(ctx, db.CountUserCardioByIDParams{UserID: userID, ID: id})
	if err != nil {
		return false, fmt.Errorf("looking up cardio session %s: %w", id, err)
	}
	return n > 0, nil
}

// Users lists every user with stored workouts or cardio sessions
func (s *Storage) Users(ctx context.Context) ([]string, error) {
	return s.queries.ListUsers(ctx)
}

// Stats holds table row counts
type Stats struct {
	Workouts int64 `json:"workouts"`
	Sets     int64 `json:"sets"`
	Cardio   int64 `json:"cardio"`
}

// Stats counts stored rows
func (s *Storage) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Workouts, err = s.queries.CountWorkouts(ctx); err != nil {
		return st, fmt.Errorf("counting workouts: %w", err)
	}
	if st.Sets, err = s.queries.CountWorkoutSets(ctx); err != nil {
		return st, fmt.Errorf("counting sets: %w", err)
	}
	if st.Cardio, err = s.queries.CountCardioSessions(ctx); err != nil {
		return st, fmt.Errorf("counting cardio sessions: %w", err)
	}
	return st, nil
}

func toNullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func toNullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func toNullInt64(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func toNullTime(candidates ...*time.Time) sql.NullTime {
	for _, t := range candidates {
		if t != nil && !t.IsZero() {
			return sql.NullTime{Time: t.UTC(), Valid: true}
		}
	}
	return sql.NullTime{}
}

func fromNullFloat64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func fromNullInt64(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func fromNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

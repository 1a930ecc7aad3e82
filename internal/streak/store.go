package streak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Key prefixes for persisted tracker state
const (
	WorkoutKeyPrefix = "workout_streak_"
	CalorieKeyPrefix = "calorie_streak_"
)

// ErrNotFound is returned by a KV when a key has no value
var ErrNotFound = errors.New("key not found")

// KV is the string key/value port tracker state is persisted through
type KV interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

// Store loads and saves trackers as JSON under per-user keys
type Store struct {
	kv KV
}

// NewStore creates a Store backed by kv
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) load(ctx context.Context, key string, into any) (bool, error) {
	raw, err := s.kv.GetValue(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, key string, state any) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.kv.SetValue(ctx, key, string(b)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Workout loads the user's workout tracker, or a new one if none is stored
func (s *Store) Workout(ctx context.Context, userID string) (*WorkoutTracker, error) {
	var state WorkoutState
	ok, err := s.load(ctx, WorkoutKeyPrefix+userID, &state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewWorkoutTracker(), nil
	}
	return RestoreWorkoutTracker(state), nil
}

// SaveWorkout persists the user's workout tracker
func (s *Store) SaveWorkout(ctx context.Context, userID string, t *WorkoutTracker) error {
	return s.save(ctx, WorkoutKeyPrefix+userID, t.State())
}

// Calorie loads the user's calorie tracker, or a new one if none is stored
func (s *Store) Calorie(ctx context.Context, userID string) (*CalorieTracker, error) {
	var state CalorieState
	ok, err := s.load(ctx, CalorieKeyPrefix+userID, &state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewCalorieTracker(), nil
	}
	return RestoreCalorieTracker(state), nil
}

// SaveCalorie persists the user's calorie tracker
func (s *Store) SaveCalorie(ctx context.Context, userID string, t *CalorieTracker) error {
	return s.save(ctx, CalorieKeyPrefix+userID, t.State())
}

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
	"github.com/joshdurbin/lift-mcp/internal/remote"
	"github.com/joshdurbin/lift-mcp/internal/store"
)

// FetchProgressCallback is called after each page is fetched
type FetchProgressCallback func(result remote.FetchResult)

// SaveProgressCallback is called after each row is saved
type SaveProgressCallback func(kind string, current, total int)

// Fetcher reads rows from the hosted backend
type Fetcher interface {
	FetchWorkoutsSince(ctx context.Context, userID string, since time.Time, progress remote.ProgressCallback) ([]analytics.WorkoutRecord, error)
	FetchCardioSince(ctx context.Context, userID string, since time.Time, progress remote.ProgressCallback) ([]analytics.CardioRecord, error)
}

// Sink persists fetched rows locally
type Sink interface {
	SaveWorkout(ctx context.Context, userID string, w analytics.WorkoutRecord, source string) (string, error)
	SaveCardio(ctx context.Context, userID string, c analytics.CardioRecord, source string) (string, error)
	LatestWorkoutDate(ctx context.Context, userID string) (time.Time, bool, error)
	LatestCardioDate(ctx context.Context, userID string) (time.Time, bool, error)
	HasWorkout(ctx context.Context, userID, id string) (bool, error)
	HasCardio(ctx context.Context, userID, id string) (bool, error)
}

// Result counts the rows saved by one sync
type Result struct {
	Workouts int
	Cardio   int
}

// Total returns the number of rows saved
func (r Result) Total() int {
	return r.Workouts + r.Cardio
}

// ErrRateLimited is returned when rate limited by the backend
var ErrRateLimited = remote.ErrRateLimited

// ErrUnauthorized is returned when the backend rejects the API key
var ErrUnauthorized = remote.ErrUnauthorized

// Service handles syncing workout history from the backend into the database
type Service struct {
	sink   Sink
	client Fetcher
}

// NewService creates a new sync service
func NewService(sink Sink, client Fetcher) *Service {
	return &Service{
		sink:   sink,
		client: client,
	}
}

// SyncUser pulls rows newer than the latest stored ones for userID. Rows on
// the boundary date are fetched again; those already stored are skipped and
// not counted, so a sync with nothing new reports zero. A failure on one row or
// on the cardio feed does not stop the rest. Failures are combined into the
// returned error alongside the counts of what was saved.
func (s *Service) SyncUser(ctx context.Context, userID string, fetchProgress FetchProgressCallback, saveProgress SaveProgressCallback) (Result, error) {
	var result Result

	var progressCb remote.ProgressCallback
	if fetchProgress != nil {
		progressCb = func(r remote.FetchResult) {
			fetchProgress(r)
		}
	}

	n, err := s.syncWorkouts(ctx, userID, progressCb, saveProgress)
	result.Workouts = n
	if errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
		return result, err
	}

	n, cardioErr := s.syncCardio(ctx, userID, progressCb, saveProgress)
	result.Cardio = n

	return result, multierr.Append(err, cardioErr)
}

func (s *Service) syncWorkouts(ctx context.Context, userID string, progress remote.ProgressCallback, saveProgress SaveProgressCallback) (int, error) {
	since, _, err := s.sink.LatestWorkoutDate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reading latest workout date: %w", err)
	}

	workouts, err := s.client.FetchWorkoutsSince(ctx, userID, since, progress)
	if err != nil {
		return 0, fmt.Errorf("fetching workouts: %w", err)
	}

	var (
		saved int
		errs  error
	)
	for i, w := range workouts {
		if !w.WorkoutDate().After(since) && w.ID != "" {
			known, err := s.sink.HasWorkout(ctx, userID, w.ID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("checking workout %s: %w", w.ID, err))
				continue
			}
			if known {
				continue
			}
		}
		if _, err := s.sink.SaveWorkout(ctx, userID, w, store.SourceRemote); err != nil {
			logging.Warn("skipping workout", "user_id", userID, "workout_id", w.ID, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("saving workout %s: %w", w.ID, err))
			continue
		}
		saved++
		if saveProgress != nil {
			saveProgress("workouts", i+1, len(workouts))
		}
	}
	return saved, errs
}

func (s *Service) syncCardio(ctx context.Context, userID string, progress remote.ProgressCallback, saveProgress SaveProgressCallback) (int, error) {
	since, _, err := s.sink.LatestCardioDate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reading latest cardio date: %w", err)
	}

	sessions, err := s.client.FetchCardioSince(ctx, userID, since, progress)
	if err != nil {
		return 0, fmt.Errorf("fetching cardio: %w", err)
	}

	var (
		saved int
		errs  error
	)
	for i, c := range sessions {
		if !cardioDate(c).After(since) && c.ID != "" {
			known, err := s.sink.HasCardio(ctx, userID, c.ID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("checking cardio %s: %w", c.ID, err))
				continue
			}
			if known {
				continue
			}
		}
		if _, err := s.sink.SaveCardio(ctx, userID, c, store.SourceRemote); err != nil {
			logging.Warn("skipping cardio session", "user_id", userID, "cardio_id", c.ID, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("saving cardio %s: %w", c.ID, err))
			continue
		}
		saved++
		if saveProgress != nil {
			saveProgress("cardio", i+1, len(sessions))
		}
	}
	return saved, errs
}

func cardioDate(c analytics.CardioRecord) time.Time {
	switch {
	case c.Date != nil && !c.Date.IsZero():
		return *c.Date
	case c.CreatedAt != nil:
		return *c.CreatedAt
	}
	return time.Time{}
}

package workers

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
	"github.com/joshdurbin/lift-mcp/internal/metrics"
	"github.com/joshdurbin/lift-mcp/internal/remote"
	"github.com/joshdurbin/lift-mcp/internal/store"
	"github.com/joshdurbin/lift-mcp/internal/streak"
	syncsvc "github.com/joshdurbin/lift-mcp/internal/sync"
)

// FreezeResetKeyPrefix prefixes the kv key holding the last month a user's
// calorie freezes were reset, as "2006-01".
const FreezeResetKeyPrefix = "calorie_freeze_reset_"

// UserLister lists the users known to local storage
type UserLister interface {
	Users(ctx context.Context) ([]string, error)
}

// knownUsers merges the stored users with the configured ones
func knownUsers(ctx context.Context, lister UserLister, extra []string) ([]string, error) {
	users, err := lister.Users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range extra {
		if u != "" && !slices.Contains(users, u) {
			users = append(users, u)
		}
	}
	slices.Sort(users)
	return users, nil
}

// runEvery calls fn immediately and then on every tick until ctx is done
func runEvery(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	log := logging.Logger
	log.Info().Dur("interval", interval).Msg(name + " started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg(name + " stopped")
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// HistorySyncer periodically pulls workout history from the backend and
// makes the affected users reload their analytics.
type HistorySyncer struct {
	sync     *syncsvc.Service
	users    UserLister
	extra    []string
	registry *analytics.Registry
	metrics  *metrics.Manager
	interval time.Duration
}

// NewHistorySyncer creates a new history sync worker. extraUsers are synced
// even before they have local rows.
func NewHistorySyncer(sync *syncsvc.Service, users UserLister, registry *analytics.Registry, m *metrics.Manager, interval time.Duration, extraUsers ...string) *HistorySyncer {
	return &HistorySyncer{
		sync:     sync,
		users:    users,
		extra:    extraUsers,
		registry: registry,
		metrics:  m,
		interval: interval,
	}
}

// Run starts the history sync worker
func (h *HistorySyncer) Run(ctx context.Context) {
	runEvery(ctx, "history syncer", h.interval, func(ctx context.Context) {
		if err := h.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			logging.Logger.Error().Err(err).Msg("history sync failed")
		}
	})
}

// SyncOnce syncs every known user once. It stops early only when the
// backend rejects the API key or ctx is cancelled.
func (h *HistorySyncer) SyncOnce(ctx context.Context) error {
	log := logging.Logger

	users, err := knownUsers(ctx, h.users, h.extra)
	if err != nil {
		return err
	}

	for _, userID := range users {
		progress := func(r remote.FetchResult) {
			logEvent := log.Debug()
			if r.RateLimit.IsRateLimited {
				logEvent = log.Info()
			}
			logEvent.
				Str("user_id", userID).
				Str("kind", r.Kind).
				Int("page", r.Page).
				Int("total_fetched", r.TotalFetched).
				Int("remaining", r.RateLimit.Remaining).
				Bool("rate_limited", r.RateLimit.IsRateLimited).
				Msg("history sync progress")
		}

		result, err := h.sync.SyncUser(ctx, userID, progress, nil)
		h.metrics.SyncedRows("workouts", result.Workouts)
		h.metrics.SyncedRows("cardio", result.Cardio)
		if result.Total() > 0 {
			h.registry.Invalidate(userID)
		}

		if err != nil {
			if errors.Is(err, syncsvc.ErrUnauthorized) || ctx.Err() != nil {
				return err
			}
			log.Warn().Err(err).Str("user_id", userID).Int("saved", result.Total()).Msg("history sync partially failed")
			continue
		}
		log.Info().
			Str("user_id", userID).
			Int("workouts", result.Workouts).
			Int("cardio", result.Cardio).
			Msg("history sync completed")
	}
	return nil
}

// FreezeResetter restores every user's calorie streak freezes once per
// calendar month.
type FreezeResetter struct {
	streaks  *streak.Store
	kv       streak.KV
	users    UserLister
	extra    []string
	now      func() time.Time
	interval time.Duration
}

// NewFreezeResetter creates a new freeze reset worker
func NewFreezeResetter(kv streak.KV, users UserLister, interval time.Duration, extraUsers ...string) *FreezeResetter {
	return &FreezeResetter{
		streaks:  streak.NewStore(kv),
		kv:       kv,
		users:    users,
		extra:    extraUsers,
		now:      time.Now,
		interval: interval,
	}
}

// Run starts the freeze reset worker
func (f *FreezeResetter) Run(ctx context.Context) {
	runEvery(ctx, "freeze resetter", f.interval, func(ctx context.Context) {
		if _, err := f.ResetDue(ctx); err != nil && ctx.Err() == nil {
			logging.Logger.Error().Err(err).Msg("freeze reset failed")
		}
	})
}

// ResetDue resets freezes for users not yet reset this month and returns
// how many were reset.
func (f *FreezeResetter) ResetDue(ctx context.Context) (int, error) {
	log := logging.Logger
	month := f.now().Format("2006-01")

	users, err := knownUsers(ctx, f.users, f.extra)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, userID := range users {
		key := FreezeResetKeyPrefix + userID
		last, err := f.kv.GetValue(ctx, key)
		if err != nil && !errors.Is(err, streak.ErrNotFound) {
			return reset, err
		}
		if last == month {
			continue
		}

		tracker, err := f.streaks.Calorie(ctx, userID)
		if err != nil {
			return reset, err
		}
		tracker.ResetMonthlyFreezes()
		if err := f.streaks.SaveCalorie(ctx, userID, tracker); err != nil {
			return reset, err
		}
		if err := f.kv.SetValue(ctx, key, month); err != nil {
			return reset, err
		}
		reset++
		log.Info().Str("user_id", userID).Str("month", month).Msg("calorie streak freezes reset")
	}
	return reset, nil
}

// StagnationNotifier logs throttled stagnation nudges for every user
type StagnationNotifier struct {
	registry *analytics.Registry
	users    UserLister
	extra    []string
	metrics  *metrics.Manager
	interval time.Duration
}

// NewStagnationNotifier creates a new stagnation notification worker
func NewStagnationNotifier(registry *analytics.Registry, users UserLister, m *metrics.Manager, interval time.Duration, extraUsers ...string) *StagnationNotifier {
	return &StagnationNotifier{
		registry: registry,
		users:    users,
		extra:    extraUsers,
		metrics:  m,
		interval: interval,
	}
}

// Run starts the stagnation notification worker
func (s *StagnationNotifier) Run(ctx context.Context) {
	runEvery(ctx, "stagnation notifier", s.interval, func(ctx context.Context) {
		if _, err := s.NotifyOnce(ctx); err != nil && ctx.Err() == nil {
			logging.Logger.Error().Err(err).Msg("stagnation check failed")
		}
	})
}

// NotifyOnce emits every due nudge and returns how many were sent
func (s *StagnationNotifier) NotifyOnce(ctx context.Context) (int, error) {
	log := logging.Logger

	users, err := knownUsers(ctx, s.users, s.extra)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, userID := range users {
		svc, err := s.registry.For(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("skipping stagnation check")
			continue
		}
		due, err := svc.DueStagnationNudges(ctx)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("skipping stagnation check")
			continue
		}
		ulog := logging.ForUser(userID)
		for _, st := range due {
			ulog.Info().
				Str("exercise", st.Exercise).
				Str("type", st.Feedback.Type).
				Str("severity", string(st.Feedback.Severity)).
				Msg(st.Feedback.Emoji + " " + st.Feedback.Message)
			s.metrics.CounterStagnationNotifications.Inc()
			sent++
		}
	}
	s.metrics.GaugeActiveUsers.Set(float64(len(s.registry.Users())))
	return sent, nil
}

// LogDatabaseStats logs current database statistics
func LogDatabaseStats(ctx context.Context, storage *store.Storage) {
	log := logging.Logger

	stats, err := storage.Stats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count rows")
		return
	}

	users, err := storage.Users(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list users")
		return
	}

	log.Info().
		Int64("workouts", stats.Workouts).
		Int64("sets", stats.Sets).
		Int64("cardio_sessions", stats.Cardio).
		Int("users", len(users)).
		Msg("database statistics")
}

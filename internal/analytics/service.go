package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/joshdurbin/lift-mcp/internal/logging"
	"github.com/joshdurbin/lift-mcp/internal/streak"
)

// NotifiedKeyPrefix prefixes the kv key holding a user's stagnation
// notification times
const NotifiedKeyPrefix = "stagnation_notified_"

// HistorySource loads a user's persisted rows. Implementations do I/O; the
// engines never do.
type HistorySource interface {
	WorkoutHistory(ctx context.Context, userID string) ([]WorkoutRecord, error)
	CardioHistory(ctx context.Context, userID string) ([]CardioRecord, error)
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for "now" in queries
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithNotificationStore persists stagnation notification times in kv so the
// throttle survives restarts.
func WithNotificationStore(kv streak.KV) Option {
	return func(s *Service) {
		s.notified = kv
	}
}

// WithIngestObserver registers a callback receiving the duration of every
// completed history load.
func WithIngestObserver(observe func(time.Duration)) Option {
	return func(s *Service) {
		s.observeIngest = observe
	}
}

// Service owns one instance of each engine for a single user and exposes the
// combined queries. All methods are safe for concurrent use; mutations are
// serialized.
type Service struct {
	mu            sync.Mutex
	source        HistorySource
	now           func() time.Time
	observeIngest func(time.Duration)
	notified      streak.KV

	// throttle outlives history reloads; only Reset clears it
	throttle       *NotificationThrottle
	throttleLoaded bool

	userID      string
	initialized bool
	loadErr     error

	overload   *OverloadEngine
	stagnation *StagnationDetector
	recovery   *RecoveryEngine
	seen       map[string]struct{}
}

// NewService creates an uninitialized service reading from source
func NewService(source HistorySource, opts ...Option) *Service {
	s := &Service{
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.throttle = NewNotificationThrottle()
	s.resetLocked()
	return s
}

// Reset discards all engine state and marks the service uninitialized
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.initialized = false
	s.userID = ""
	s.throttle = NewNotificationThrottle()
	s.throttleLoaded = false
	s.stagnation = NewStagnationDetectorWithThrottle(s.throttle)
}

func (s *Service) resetLocked() {
	s.overload = NewOverloadEngine()
	s.stagnation = NewStagnationDetectorWithThrottle(s.throttle)
	s.recovery = NewRecoveryEngine()
	s.seen = make(map[string]struct{})
	s.loadErr = nil
}

// Invalidate forces the next Initialize to reload from the source
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
}

// UserID returns the user the service was last initialized for
func (s *Service) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Initialized reports whether queries can run
func (s *Service) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// LoadErrors returns the combined source errors of the last load, if any
func (s *Service) LoadErrors() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Initialize loads the user's history into fresh engines. It is a no-op when
// the service is already initialized for userID. A failing source is logged
// and recorded in LoadErrors; rows from other sources stay usable.
func (s *Service) Initialize(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized && s.userID == userID {
		return nil
	}

	if s.userID != "" && s.userID != userID {
		s.throttle = NewNotificationThrottle()
		s.throttleLoaded = false
	}
	return s.loadLocked(ctx, userID, "")
}

// ReloadWithout rebuilds the engines from the source, leaving out the stored
// copy of workoutID. Re-logging a workout calls this so the new version is
// ingested fresh and its PR checks do not run against the old sets.
func (s *Service) ReloadWithout(ctx context.Context, workoutID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return s.loadLocked(ctx, s.userID, workoutID)
}

// HasWorkout reports whether a workout with id is part of the loaded history
func (s *Service) HasWorkout(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

func (s *Service) loadLocked(ctx context.Context, userID, skipID string) error {
	start := time.Now()
	s.resetLocked()

	var loadErr error
	workouts, err := s.source.WorkoutHistory(ctx, userID)
	if err != nil {
		logging.Warn("Failed to load workout history", "user", userID, "error", err)
		loadErr = multierr.Append(loadErr, fmt.Errorf("loading workout history: %w", err))
	}
	for _, w := range workouts {
		if skipID != "" && w.ID == skipID {
			continue
		}
		s.ingestWorkoutLocked(w)
	}

	cardio, err := s.source.CardioHistory(ctx, userID)
	if err != nil {
		logging.Warn("Failed to load cardio history", "user", userID, "error", err)
		loadErr = multierr.Append(loadErr, fmt.Errorf("loading cardio history: %w", err))
	}
	for _, c := range cardio {
		session, err := NormalizeCardio(c)
		if err != nil {
			logging.Debug("Skipping cardio row", "user", userID, "error", err)
			continue
		}
		s.recovery.LogSession(session.MuscleGroup, session.Date, session.Intensity, session.DurationMinutes)
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(loadErr, ctxErr) {
		s.resetLocked()
		s.initialized = false
		return ctxErr
	}

	s.userID = userID
	s.initialized = true
	s.loadErr = loadErr

	elapsed := time.Since(start)
	logging.Debug("Loaded analytics history",
		"user", userID,
		"workouts", len(workouts),
		"cardio", len(cardio),
		"exercises", len(s.overload.History().Exercises()),
		"duration", elapsed.String())
	if s.observeIngest != nil {
		s.observeIngest(elapsed)
	}
	return nil
}

// ingestWorkoutLocked feeds every valid set to both strength engines and one
// session to the recovery engine. Workouts with an already seen id are skipped.
func (s *Service) ingestWorkoutLocked(w WorkoutRecord) bool {
	if w.ID != "" {
		if _, ok := s.seen[w.ID]; ok {
			return false
		}
		s.seen[w.ID] = struct{}{}
	}

	date := w.WorkoutDate()
	for _, ex := range w.Exercises {
		for _, set := range ex.Sets {
			n, err := NormalizeSet(ex, set, date)
			if err != nil {
				logging.Debug("Skipping set row", "workout", w.ID, "error", err)
				continue
			}
			s.overload.LogSession(n.Exercise, n.Weight, n.Reps, n.Sets, n.Date)
			s.stagnation.LogExercise(n.Exercise, n.Weight, n.Reps, n.Sets, n.Date)
		}
	}

	session, err := WorkoutRecoverySession(w)
	if err != nil {
		logging.Debug("Skipping workout recovery session", "workout", w.ID, "error", err)
		return true
	}
	s.recovery.LogSession(session.MuscleGroup, session.Date, session.Intensity, session.DurationMinutes)
	return true
}

// ExerciseFeedback bundles every per-exercise query
type ExerciseFeedback struct {
	Exercise       string           `json:"exercise"`
	Suggestion     Feedback         `json:"suggestion"`
	Stagnation     *Feedback        `json:"stagnation,omitempty"`
	PlateauBreak   *Feedback        `json:"plateauBreak,omitempty"`
	Motivation     Motivation       `json:"motivation"`
	ProgressStreak ProgressStreak   `json:"progressStreak"`
	Summary        *ProgressSummary `json:"summary,omitempty"`
	Records        *PersonalRecords `json:"records,omitempty"`
}

// Feedback returns the combined feedback for one exercise
func (s *Service) Feedback(exercise string) (*ExerciseFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return &ExerciseFeedback{
		Exercise:       exercise,
		Suggestion:     s.overload.SuggestIncrease(exercise),
		Stagnation:     s.stagnation.CheckStagnation(exercise, DefaultStagnationThreshold),
		PlateauBreak:   s.stagnation.CheckPlateauBreak(exercise),
		Motivation:     s.stagnation.MotivationMessage(exercise),
		ProgressStreak: s.stagnation.ProgressStreak(exercise),
		Summary:        s.overload.ProgressSummary(exercise),
		Records:        s.overload.PersonalRecords(exercise),
	}, nil
}

// Achievement is a PR or plateau break earned in a workout
type Achievement struct {
	Exercise string         `json:"exercise"`
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Emoji    string         `json:"emoji,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ExerciseSuggestion pairs an exercise with a progression nudge
type ExerciseSuggestion struct {
	Exercise string   `json:"exercise"`
	Feedback Feedback `json:"feedback"`
}

// PostWorkoutSummary is returned after a workout is logged
type PostWorkoutSummary struct {
	WorkoutID    string               `json:"workoutId,omitempty"`
	MuscleGroups []string             `json:"muscleGroups"`
	Achievements []Achievement        `json:"achievements"`
	Warnings     []Feedback           `json:"warnings"`
	Suggestions  []ExerciseSuggestion `json:"suggestions"`
	Ingested     bool                 `json:"ingested"`
}

// PostWorkoutSummary checks a just-completed workout for PRs against the
// prior history, ingests it, then reports plateau breaks, relevant recovery
// warnings and progression suggestions.
func (s *Service) PostWorkoutSummary(workout WorkoutRecord) (*PostWorkoutSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	summary := &PostWorkoutSummary{
		WorkoutID:    workout.ID,
		MuscleGroups: WorkoutMuscleGroups(workout),
		Achievements: []Achievement{},
		Warnings:     []Feedback{},
		Suggestions:  []ExerciseSuggestion{},
	}

	exercises := workoutExercises(workout)
	date := workout.WorkoutDate()
	for _, ex := range workout.Exercises {
		summary.Achievements = append(summary.Achievements, s.bestPRsLocked(ex, date)...)
	}

	summary.Ingested = s.ingestWorkoutLocked(workout)

	for _, name := range exercises {
		if fb := s.stagnation.CheckPlateauBreak(name); fb != nil {
			summary.Achievements = append(summary.Achievements, Achievement{
				Exercise: name,
				Type:     fb.Type,
				Message:  fb.Message,
				Emoji:    fb.Emoji,
				Data:     fb.Data,
			})
		}
	}

	advice := s.recovery.RestAdvice(s.now())
	summary.Warnings = append(summary.Warnings,
		relevantWarnings(advice, summary.MuscleGroups)...)

	for _, name := range exercises {
		fb := s.overload.SuggestIncrease(name)
		if fb.Type == TypeStagnation || fb.Type == TypeConsistency {
			summary.Suggestions = append(summary.Suggestions, ExerciseSuggestion{Exercise: name, Feedback: fb})
		}
	}

	return summary, nil
}

// workoutExercises returns distinct exercise names in workout order
func workoutExercises(w WorkoutRecord) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, ex := range w.Exercises {
		name := ex.ExerciseKey()
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

var prOrder = []string{PRFirst, PRWeight, PRReps, PRVolume}

// bestPRsLocked checks every set of one exercise against the stored history
// and keeps the best record per dimension.
func (s *Service) bestPRsLocked(ex ExerciseRecord, workoutDate time.Time) []Achievement {
	best := make(map[string]PRRecord)
	name := ex.ExerciseKey()
	for _, set := range ex.Sets {
		n, err := NormalizeSet(ex, set, workoutDate)
		if err != nil {
			continue
		}
		for _, pr := range s.overload.CheckForPR(n.Exercise, n.Weight, n.Reps, n.Sets) {
			if cur, ok := best[pr.Type]; !ok || pr.Current > cur.Current {
				best[pr.Type] = pr
			}
		}
	}

	var out []Achievement
	for _, kind := range prOrder {
		pr, ok := best[kind]
		if !ok {
			continue
		}
		out = append(out, Achievement{
			Exercise: name,
			Type:     "pr_" + pr.Type,
			Message:  pr.Message,
			Emoji:    pr.Emoji,
			Data:     map[string]any{"previous": pr.Previous, "current": pr.Current},
		})
	}
	return out
}

// relevantWarnings drops recovery warnings that are noise for this workout
func relevantWarnings(advice RestAdvice, workoutGroups []string) []Feedback {
	weekly := advice.Metrics.TotalSessions
	var out []Feedback
	for _, fb := range advice.Advice {
		if !isRecoveryWarning(fb.Type) {
			continue
		}
		if weekly < 3 && fb.Severity != SeverityCritical {
			continue
		}
		switch fb.Type {
		case TypeOvertraining:
			group, _ := fb.Data["muscleGroup"].(string)
			if !groupMatches(group, workoutGroups) {
				continue
			}
		case TypeNoRest, TypeLowRest:
			if weekly < 2 {
				continue
			}
		case TypeHighVolume, TypeHighIntensity:
			if weekly < 5 {
				continue
			}
		}
		out = append(out, fb)
	}
	return out
}

func isRecoveryWarning(kind string) bool {
	switch kind {
	case TypeOvertraining, TypeNoRest, TypeLowRest, TypeHighVolume, TypeHighIntensity:
		return true
	}
	return false
}

func groupMatches(group string, workoutGroups []string) bool {
	if group == "" {
		return false
	}
	for _, g := range workoutGroups {
		if strings.Contains(g, group) || strings.Contains(group, g) {
			return true
		}
	}
	return false
}

// RecoveryReport combines the rest advice, score and today's recommendation
type RecoveryReport struct {
	RestAdvice RestAdvice         `json:"restAdvice"`
	Score      RecoveryScore      `json:"score"`
	RestToday  RestRecommendation `json:"restToday"`
}

// Recovery evaluates the recovery engine at the service clock's now
func (s *Service) Recovery() (*RecoveryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.recoveryLocked(s.now()), nil
}

func (s *Service) recoveryLocked(now time.Time) *RecoveryReport {
	advice := s.recovery.RestAdvice(now)
	return &RecoveryReport{
		RestAdvice: advice,
		Score:      RateScore(ScoreAdvice(advice.Advice)),
		RestToday:  s.recovery.ShouldRestToday(now),
	}
}

// Dashboard is the overview across all tracked exercises
type Dashboard struct {
	GeneratedAt       time.Time                 `json:"generatedAt"`
	TotalExercises    int                       `json:"totalExercises"`
	StagnantExercises []string                  `json:"stagnantExercises"`
	Stagnation        []StagnantExercise        `json:"stagnation"`
	Progress          []ProgressSummary         `json:"progress"`
	ProgressStreaks   map[string]ProgressStreak `json:"progressStreaks"`
	Recovery          RecoveryReport            `json:"recovery"`
}

// DashboardAnalytics returns the dashboard overview
func (s *Service) DashboardAnalytics() (*Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	now := s.now()
	exercises := s.overload.History().Exercises()
	dash := &Dashboard{
		GeneratedAt:       now,
		TotalExercises:    len(exercises),
		StagnantExercises: s.overload.StagnantExercises(),
		Stagnation:        s.stagnation.AllStagnantExercises(),
		Progress:          make([]ProgressSummary, 0, len(exercises)),
		ProgressStreaks:   make(map[string]ProgressStreak, len(exercises)),
		Recovery:          *s.recoveryLocked(now),
	}
	if dash.StagnantExercises == nil {
		dash.StagnantExercises = []string{}
	}
	if dash.Stagnation == nil {
		dash.Stagnation = []StagnantExercise{}
	}
	for _, name := range exercises {
		if summary := s.overload.ProgressSummary(name); summary != nil {
			dash.Progress = append(dash.Progress, *summary)
		}
		dash.ProgressStreaks[name] = s.stagnation.ProgressStreak(name)
	}
	return dash, nil
}

// RecordsReport holds the record queries for one exercise
type RecordsReport struct {
	Exercise       string           `json:"exercise"`
	Records        *PersonalRecords `json:"records,omitempty"`
	Summary        *ProgressSummary `json:"summary,omitempty"`
	ProgressStreak ProgressStreak   `json:"progressStreak"`
}

// PersonalRecords returns records, summary and progress streak for exercise
func (s *Service) PersonalRecords(exercise string) (*RecordsReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return &RecordsReport{
		Exercise:       exercise,
		Records:        s.overload.PersonalRecords(exercise),
		Summary:        s.overload.ProgressSummary(exercise),
		ProgressStreak: s.stagnation.ProgressStreak(exercise),
	}, nil
}

// StagnantExercises lists exercises the overload engine considers stagnant
func (s *Service) StagnantExercises() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.overload.StagnantExercises(), nil
}

// Exercises lists tracked exercise names in first-seen order
func (s *Service) Exercises() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.overload.History().Exercises(), nil
}

// DueStagnationNudges returns the stagnant exercises whose notification is
// due now and marks them notified. With a notification store the marks are
// loaded on first use and written back whenever one changes.
func (s *Service) DueStagnationNudges(ctx context.Context) ([]StagnantExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	if err := s.loadThrottleLocked(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	var due []StagnantExercise
	for _, st := range s.stagnation.AllStagnantExercises() {
		if s.stagnation.ShouldNotify(st.Exercise, now) {
			due = append(due, st)
		}
	}
	if len(due) == 0 || s.notified == nil {
		return due, nil
	}

	b, err := json.Marshal(s.throttle.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encoding notification times: %w", err)
	}
	if err := s.notified.SetValue(ctx, NotifiedKeyPrefix+s.userID, string(b)); err != nil {
		return nil, fmt.Errorf("saving notification times: %w", err)
	}
	return due, nil
}

func (s *Service) loadThrottleLocked(ctx context.Context) error {
	if s.notified == nil || s.throttleLoaded {
		return nil
	}
	raw, err := s.notified.GetValue(ctx, NotifiedKeyPrefix+s.userID)
	switch {
	case errors.Is(err, streak.ErrNotFound):
	case err != nil:
		return fmt.Errorf("loading notification times: %w", err)
	default:
		var last map[string]time.Time
		if err := json.Unmarshal([]byte(raw), &last); err != nil {
			return fmt.Errorf("decoding notification times: %w", err)
		}
		s.throttle.Restore(last)
	}
	s.throttleLoaded = true
	return nil
}

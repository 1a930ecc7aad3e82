package analytics

import (
	"slices"
	"time"
)

// SessionLog is one logged strength session for an exercise
type SessionLog struct {
	Weight float64   `json:"weight"`
	Reps   int       `json:"reps"`
	Sets   int       `json:"sets"`
	Date   time.Time `json:"date"`
	Volume float64   `json:"volume"`
}

// NewSessionLog builds a SessionLog with its volume derived from the inputs
func NewSessionLog(weight float64, reps, sets int, date time.Time) SessionLog {
	return SessionLog{
		Weight: weight,
		Reps:   reps,
		Sets:   sets,
		Date:   date,
		Volume: weight * float64(reps) * float64(sets),
	}
}

// sameLoad reports whether two sessions share weight, reps and sets
func (l SessionLog) sameLoad(o SessionLog) bool {
	return l.Weight == o.Weight && l.Reps == o.Reps && l.Sets == o.Sets
}

// ExerciseHistory maps exercise names to their chronological session logs.
// Each engine owns its own ExerciseHistory.
type ExerciseHistory struct {
	logs  map[string][]SessionLog
	names []string
}

// NewExerciseHistory returns an empty history
func NewExerciseHistory() *ExerciseHistory {
	return &ExerciseHistory{logs: make(map[string][]SessionLog)}
}

// Add appends a log and keeps the exercise sorted by date ascending.
// Same-date entries keep their insertion order.
func (h *ExerciseHistory) Add(exercise string, log SessionLog) {
	log.Volume = log.Weight * float64(log.Reps) * float64(log.Sets)

	existing, ok := h.logs[exercise]
	if !ok {
		h.names = append(h.names, exercise)
	}
	existing = append(existing, log)
	slices.SortStableFunc(existing, func(a, b SessionLog) int {
		return a.Date.Compare(b.Date)
	})
	h.logs[exercise] = existing
}

// Logs returns the stored logs for an exercise. The slice must not be modified.
func (h *ExerciseHistory) Logs(exercise string) []SessionLog {
	return h.logs[exercise]
}

// Len returns how many sessions are stored for an exercise
func (h *ExerciseHistory) Len(exercise string) int {
	return len(h.logs[exercise])
}

// Exercises returns tracked exercise names in first-seen order
func (h *ExerciseHistory) Exercises() []string {
	return slices.Clone(h.names)
}

// Last returns the most recent log for an exercise
func (h *ExerciseHistory) Last(exercise string) (SessionLog, bool) {
	logs := h.logs[exercise]
	if len(logs) == 0 {
		return SessionLog{}, false
	}
	return logs[len(logs)-1], true
}

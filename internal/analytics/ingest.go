package analytics

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode"
)

// WorkoutRecord is a persisted workout as delivered by a HistorySource.
// Optional fields are pointers so missing values can be told apart from zero.
type WorkoutRecord struct {
	ID              string           `json:"id"`
	Date            *time.Time       `json:"date,omitempty"`
	CreatedAt       *time.Time       `json:"created_at,omitempty"`
	Intensity       string           `json:"intensity,omitempty"`
	DurationMinutes *float64         `json:"duration,omitempty"`
	Exercises       []ExerciseRecord `json:"exercises"`
}

// ExerciseRecord is one exercise within a workout. Either ExerciseName or
// Name carries the exercise name.
type ExerciseRecord struct {
	ExerciseName string      `json:"exercise_name,omitempty"`
	Name         string      `json:"name,omitempty"`
	MuscleGroup  string      `json:"muscle_group,omitempty"`
	Sets         []SetRecord `json:"sets"`
}

// SetRecord is one logged set row
type SetRecord struct {
	Weight    *float64   `json:"weight,omitempty"`
	Reps      *int       `json:"reps,omitempty"`
	Sets      *int       `json:"sets,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// CardioRecord is a persisted cardio or conditioning session
type CardioRecord struct {
	ID          string     `json:"id,omitempty"`
	MuscleGroup string     `json:"muscle_group,omitempty"`
	BodyParts   string     `json:"body_parts,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Intensity   string     `json:"intensity,omitempty"`
	Duration    *float64   `json:"duration,omitempty"`
}

// NormalizedSet is the canonical strength row fed to the engines
type NormalizedSet struct {
	Exercise string
	Weight   float64
	Reps     int
	Sets     int
	Date     time.Time
}

// ExerciseKey returns the exercise name, preferring ExerciseName over Name
func (r ExerciseRecord) ExerciseKey() string {
	if name := strings.TrimSpace(r.ExerciseName); name != "" {
		return name
	}
	return strings.TrimSpace(r.Name)
}

// WorkoutDate returns Date, falling back to CreatedAt
func (w WorkoutRecord) WorkoutDate() time.Time {
	return firstTime(w.Date, w.CreatedAt)
}

func firstTime(candidates ...*time.Time) time.Time {
	for _, t := range candidates {
		if t != nil && !t.IsZero() {
			return *t
		}
	}
	return time.Time{}
}

// NormalizeSet applies row defaults: weight and reps 0, sets 1, and the date
// falls back to created_at and then to the workout date. Non-finite or
// negative numbers and non-positive sets are rejected with ErrInvalidInput.
func NormalizeSet(exercise ExerciseRecord, set SetRecord, workoutDate time.Time) (NormalizedSet, error) {
	out := NormalizedSet{Exercise: exercise.ExerciseKey(), Sets: 1}
	if out.Exercise == "" {
		return out, fmt.Errorf("%w: exercise has no name", ErrInvalidInput)
	}
	if set.Weight != nil {
		out.Weight = *set.Weight
	}
	if set.Reps != nil {
		out.Reps = *set.Reps
	}
	if set.Sets != nil {
		out.Sets = *set.Sets
	}

	if math.IsNaN(out.Weight) || math.IsInf(out.Weight, 0) || out.Weight < 0 {
		return out, fmt.Errorf("%w: weight %v for %s", ErrInvalidInput, out.Weight, out.Exercise)
	}
	if out.Reps < 0 {
		return out, fmt.Errorf("%w: reps %d for %s", ErrInvalidInput, out.Reps, out.Exercise)
	}
	if out.Sets <= 0 {
		return out, fmt.Errorf("%w: sets %d for %s", ErrInvalidInput, out.Sets, out.Exercise)
	}

	out.Date = firstTime(set.Date, set.CreatedAt)
	if out.Date.IsZero() {
		out.Date = workoutDate
	}
	if out.Date.IsZero() {
		return out, fmt.Errorf("%w: no date for %s set", ErrInvalidInput, out.Exercise)
	}
	return out, nil
}

// NormalizeCardio turns a cardio row into a recovery session
func NormalizeCardio(rec CardioRecord) (RecoverySession, error) {
	date := firstTime(rec.Date, rec.CreatedAt)
	if date.IsZero() {
		return RecoverySession{}, fmt.Errorf("%w: cardio session %q has no date", ErrInvalidInput, rec.ID)
	}
	duration := DefaultSessionMinutes
	if rec.Duration != nil {
		duration = *rec.Duration
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return RecoverySession{}, fmt.Errorf("%w: cardio duration %v", ErrInvalidInput, duration)
	}

	group := rec.MuscleGroup
	if strings.TrimSpace(group) == "" {
		group = rec.BodyParts
	}
	return RecoverySession{
		MuscleGroup:     CanonicalMuscleGroup(group),
		Date:            date,
		Intensity:       ParseIntensity(rec.Intensity),
		DurationMinutes: duration,
	}, nil
}

// WorkoutRecoverySession derives the single recovery session a workout
// contributes. The primary group is the alphabetically first muscle group
// among its exercises.
func WorkoutRecoverySession(w WorkoutRecord) (RecoverySession, error) {
	date := w.WorkoutDate()
	if date.IsZero() {
		return RecoverySession{}, fmt.Errorf("%w: workout %q has no date", ErrInvalidInput, w.ID)
	}
	duration := DefaultSessionMinutes
	if w.DurationMinutes != nil && *w.DurationMinutes >= 0 && !math.IsInf(*w.DurationMinutes, 0) {
		duration = *w.DurationMinutes
	}
	return RecoverySession{
		MuscleGroup:     PrimaryMuscleGroup(w),
		Date:            date,
		Intensity:       ParseIntensity(w.Intensity),
		DurationMinutes: duration,
	}, nil
}

// WorkoutMuscleGroups returns the sorted, distinct canonical groups a
// workout trains. Exercises without a muscle group are classified by name.
func WorkoutMuscleGroups(w WorkoutRecord) []string {
	var groups []string
	for _, ex := range w.Exercises {
		source := ex.MuscleGroup
		if strings.TrimSpace(source) == "" {
			source = ex.ExerciseKey()
		}
		group, ok := lookupMuscleGroup(source)
		if !ok || slices.Contains(groups, group) {
			continue
		}
		groups = append(groups, group)
	}
	slices.Sort(groups)
	return groups
}

// PrimaryMuscleGroup is the alphabetically first group, or full body
func PrimaryMuscleGroup(w WorkoutRecord) string {
	if groups := WorkoutMuscleGroups(w); len(groups) > 0 {
		return groups[0]
	}
	return GroupFullBody
}

// Canonical muscle groups
const (
	GroupChest     = "chest"
	GroupBack      = "back"
	GroupShoulders = "shoulders"
	GroupLegs      = "legs"
	GroupArms      = "arms"
	GroupCore      = "core"
	GroupFullBody  = "full body"
)

// muscleKeywords maps whole words or phrases to a group. Phrases are tried
// before single words; otherwise earlier entries win, so compound names like
// "shoulder press" or "leg curl" resolve to the right group.
var muscleKeywords = []struct {
	keyword string
	group   string
}{
	{"full body", GroupFullBody},
	{"fullbody", GroupFullBody},
	{"total body", GroupFullBody},
	{"overhead press", GroupShoulders},
	{"lateral raise", GroupShoulders},
	{"hip thrust", GroupLegs},
	{"shoulder", GroupShoulders},
	{"delt", GroupShoulders},
	{"deltoid", GroupShoulders},
	{"ohp", GroupShoulders},
	{"military", GroupShoulders},
	{"leg", GroupLegs},
	{"quad", GroupLegs},
	{"quadricep", GroupLegs},
	{"hamstring", GroupLegs},
	{"glute", GroupLegs},
	{"calf", GroupLegs},
	{"calves", GroupLegs},
	{"squat", GroupLegs},
	{"lunge", GroupLegs},
	{"chest", GroupChest},
	{"pec", GroupChest},
	{"pectoral", GroupChest},
	{"bench", GroupChest},
	{"push-up", GroupChest},
	{"fly", GroupChest},
	{"flye", GroupChest},
	{"flies", GroupChest},
	{"back", GroupBack},
	{"lat", GroupBack},
	{"row", GroupBack},
	{"pull-up", GroupBack},
	{"chin-up", GroupBack},
	{"pulldown", GroupBack},
	{"deadlift", GroupBack},
	{"trap", GroupBack},
	{"bicep", GroupArms},
	{"tricep", GroupArms},
	{"forearm", GroupArms},
	{"curl", GroupArms},
	{"arm", GroupArms},
	{"core", GroupCore},
	{"ab", GroupCore},
	{"abdominal", GroupCore},
	{"oblique", GroupCore},
	{"plank", GroupCore},
	{"crunch", GroupCore},
}

type muscleAlias struct {
	words []string
	group string
}

// muscleAliases is muscleKeywords split into words, phrases first
var muscleAliases = func() []muscleAlias {
	aliases := make([]muscleAlias, 0, len(muscleKeywords))
	for _, k := range muscleKeywords {
		aliases = append(aliases, muscleAlias{words: muscleWords(k.keyword), group: k.group})
	}
	slices.SortStableFunc(aliases, func(a, b muscleAlias) int {
		return len(b.words) - len(a.words)
	})
	return aliases
}()

// muscleWords lowercases s and splits it into words. Hyphens and apostrophes
// are dropped first, so "Pull-Up" reads as "pullup" and "Farmer's" as "farmers".
func muscleWords(s string) []string {
	s = strings.NewReplacer("-", "", "'", "", "’", "").Replace(strings.ToLower(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matches reports whether the alias occurs as consecutive whole words. A
// trailing "s" or "es" on a word is accepted, so "delts" matches "delt".
func (a muscleAlias) matches(words []string) bool {
	for i := 0; i+len(a.words) <= len(words); i++ {
		ok := true
		for j, w := range a.words {
			got := words[i+j]
			if got != w && got != w+"s" && got != w+"es" {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// CanonicalMuscleGroup maps free text to a canonical group. For a comma
// separated list the first part with a known group wins. Unknown or empty
// input maps to full body.
func CanonicalMuscleGroup(s string) string {
	if group, ok := lookupMuscleGroup(s); ok {
		return group
	}
	return GroupFullBody
}

func lookupMuscleGroup(s string) (string, bool) {
	for _, part := range strings.Split(s, ",") {
		words := muscleWords(part)
		if len(words) == 0 {
			continue
		}
		for _, a := range muscleAliases {
			if a.matches(words) {
				return a.group, true
			}
		}
	}
	return "", false
}

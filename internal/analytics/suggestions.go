package analytics

import (
	"fmt"
	"strconv"
)

// formatKg renders a weight with at most one decimal and no trailing zeros
func formatKg(v float64) string {
	return strconv.FormatFloat(round1(v), 'f', -1, 64)
}

// ProgressionSuggestions returns the ordered, rule-based tactics used by the
// overload engine when an exercise has stagnated.
func ProgressionSuggestions(last SessionLog) []string {
	suggestions := make([]string, 0, 7)

	switch {
	case last.Weight >= 20:
		suggestions = append(suggestions, fmt.Sprintf("Increase weight by 2.5-5kg (%s-%skg), roughly 5-10%%",
			formatKg(last.Weight+2.5), formatKg(last.Weight+5)))
	case last.Weight >= 5:
		suggestions = append(suggestions, fmt.Sprintf("Increase weight by 1-2.5kg (%s-%skg)",
			formatKg(last.Weight+1), formatKg(last.Weight+2.5)))
	default:
		suggestions = append(suggestions, fmt.Sprintf("Increase weight by 0.5-1kg (%s-%skg)",
			formatKg(last.Weight+0.5), formatKg(last.Weight+1)))
	}

	suggestions = append(suggestions, repSuggestion(last, fmt.Sprintf("%s-%skg", formatKg(last.Weight*1.05), formatKg(last.Weight*1.10))))
	suggestions = append(suggestions, setSuggestion(last))

	suggestions = append(suggestions,
		"Try tempo training: slow the lowering phase to 3 seconds",
		restSuggestion(last),
		"Switch to a variation of this exercise for a few weeks",
		fmt.Sprintf("Take a deload week at -20%% (%skg), then come back stronger", formatKg(last.Weight*0.8)),
	)

	return suggestions
}

// StagnationSuggestions returns the nine tactics the stagnation detector
// attaches to a complete plateau. Weight steps are percentage based.
func StagnationSuggestions(last SessionLog) []string {
	suggestions := make([]string, 0, 9)

	switch {
	case last.Weight >= 20:
		suggestions = append(suggestions, fmt.Sprintf("Increase weight to %s-%skg (+5-10%%)",
			formatKg(last.Weight*1.05), formatKg(last.Weight*1.10)))
	case last.Weight >= 5:
		suggestions = append(suggestions, fmt.Sprintf("Increase weight to %s-%skg",
			formatKg(last.Weight+1), formatKg(last.Weight*1.10)))
	default:
		suggestions = append(suggestions, fmt.Sprintf("Increase weight by 0.5-1kg (%s-%skg)",
			formatKg(last.Weight+0.5), formatKg(last.Weight+1)))
	}

	suggestions = append(suggestions, repSuggestion(last, fmt.Sprintf("%s-%skg", formatKg(last.Weight*1.05), formatKg(last.Weight*1.10))))
	suggestions = append(suggestions, setSuggestion(last))

	suggestions = append(suggestions,
		"Use tempo training: 3 seconds down, 1 second pause, explosive up",
		restSuggestion(last),
		"Add a drop set on your final set: strip 20-30% and go to failure",
		"Swap in a variation (incline, pause, or single-arm) for 2-3 weeks",
		fmt.Sprintf("Deload for one week at -20%% (%skg) to recover and resensitize", formatKg(last.Weight*0.8)),
		"Change only one variable per week (weight, reps, or sets) to keep progressing",
	)

	return suggestions
}

func repSuggestion(last SessionLog, heavierRange string) string {
	switch {
	case last.Reps < 8:
		return fmt.Sprintf("Add 1-2 reps (%d-%d reps), working toward the 8-12 range", last.Reps+1, last.Reps+2)
	case last.Reps < 12:
		return fmt.Sprintf("Add 1-2 reps (%d-%d reps), or raise the weight and drop to 6-8 reps", last.Reps+1, last.Reps+2)
	default:
		return fmt.Sprintf("At %d reps you're ready for more load: raise the weight 5-10%% (%s) and drop to 6-8 reps", last.Reps, heavierRange)
	}
}

func setSuggestion(last SessionLog) string {
	switch {
	case last.Sets < 3:
		return "Increase to 3-4 sets"
	case last.Sets < 5:
		return fmt.Sprintf("Add one more set (%d sets)", last.Sets+1)
	default:
		return fmt.Sprintf("%d sets is plenty of volume; progress weight or reps instead", last.Sets)
	}
}

func restSuggestion(last SessionLog) string {
	if last.Reps >= 12 {
		return "Keep rest to 60-90 seconds between sets for higher-rep work"
	}
	return "Rest 2-3 minutes between sets so you can move heavier loads"
}

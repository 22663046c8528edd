package forecast

import (
	"fmt"
	"sort"

	"flomentum/domain/daily"
)

// driver rule output before ranking
type driverCandidate struct {
	Driver
	score float64
}

// drivers runs the heuristic rules and returns the top five personalised
// actions, ranked by rule score.
func (e *Engine) drivers(goal *Goal, rows []*daily.MetricRow, weights []weighIn, slope float64, weighInsPerWeek float64) []Driver {
	var candidates []driverCandidate
	addCand := func(id, title, subtitle string, confidence, score float64) {
		candidates = append(candidates, driverCandidate{
			Driver: Driver{
				ID:         id,
				Title:      title,
				Subtitle:   subtitle,
				Confidence: confidence,
				Deeplink:   "flomentum://coach/" + id,
			},
			score: score,
		})
	}

	avgSteps, stepsKnown := averageSteps(rows, 14)
	exerciseDays := exerciseDaysPerWeek(rows, 14)

	// Sparse weigh-ins starve the model regardless of goal
	if weighInsPerWeek < 3 {
		addCand("log_weigh_ins", "Weigh in more often",
			"Daily morning weigh-ins sharpen your forecast and tighten the band.",
			0.9, 90)
	}

	switch goal.Type {
	case GoalLose:
		if slope >= 0 {
			addCand("reverse_trend", "Reverse the current trend",
				"Your weight trend is flat or rising; a 300-500 kcal daily deficit restarts progress.",
				0.85, 95)
		}
		if stepsKnown && avgSteps < 8000 {
			addCand("increase_steps", "Add 2,000 steps a day",
				fmt.Sprintf("You average %.0f steps; 2,000 more burns roughly 80 kcal daily.", avgSteps),
				0.8, 80)
		}
		addCand("protein_focus", "Anchor meals around protein",
			"1.6 g/kg of protein preserves muscle and curbs appetite while losing.",
			0.7, 60)
		if exerciseDays < 2 {
			addCand("strength_sessions", "Schedule two strength sessions",
				"Resistance training protects lean mass during a deficit.",
				0.75, 65)
		}
		addCand("evening_glucose", "Watch late-evening spikes",
			"Late CGM spikes track with morning weight bumps; close the kitchen 3h before bed.",
			0.6, 50)
	case GoalGain:
		if slope <= 0 {
			addCand("calorie_surplus", "Build a steady surplus",
				"Your trend is flat or falling; add 300-500 kcal of whole foods daily.",
				0.85, 95)
		}
		addCand("protein_focus", "Anchor meals around protein",
			"1.8 g/kg of protein supports lean gain.",
			0.7, 70)
		if exerciseDays < 3 {
			addCand("strength_sessions", "Add a third strength session",
				"Progressive overload converts surplus calories into muscle.",
				0.8, 75)
		}
	case GoalMaintain:
		if stepsKnown && avgSteps < 7000 {
			addCand("increase_steps", "Keep your step floor",
				fmt.Sprintf("You average %.0f steps; 7,000+ holds maintenance without tracking.", avgSteps),
				0.7, 70)
		}
		addCand("weekly_review", "Review your weekly average",
			"Weekly averages beat daily numbers; react only to two-week drifts.",
			0.65, 55)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}

	out := make([]Driver, len(candidates))
	for i, c := range candidates {
		c.Driver.Rank = i + 1
		out[i] = c.Driver
	}
	return out
}

func averageSteps(rows []*daily.MetricRow, lastN int) (float64, bool) {
	var sum float64
	n := 0
	start := len(rows) - lastN
	if start < 0 {
		start = 0
	}
	for _, row := range rows[start:] {
		if row.Steps != nil {
			sum += *row.Steps
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func exerciseDaysPerWeek(rows []*daily.MetricRow, lastN int) float64 {
	days := 0
	counted := 0
	start := len(rows) - lastN
	if start < 0 {
		start = 0
	}
	for _, row := range rows[start:] {
		counted++
		if row.ExerciseMinutes != nil && *row.ExerciseMinutes >= 20 {
			days++
		}
	}
	if counted == 0 {
		return 0
	}
	return float64(days) / float64(counted) * 7
}

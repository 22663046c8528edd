package forecast

import (
	"time"

	"flomentum/domain/core"
)

// lever is one goal-specific simulator adjustment expressed as a daily
// energy-balance change.
type lever struct {
	id           string
	title        string
	deltaKcalDay float64
}

func leversFor(goalType GoalType) []lever {
	switch goalType {
	case GoalLose:
		return []lever{
			{id: "steps_plus_2000", title: "+2,000 steps/day", deltaKcalDay: -80},
			{id: "cut_late_snack", title: "Skip the late snack", deltaKcalDay: -200},
			{id: "swap_drinks", title: "Swap caloric drinks", deltaKcalDay: -150},
			{id: "strength_2x", title: "2 strength sessions/week", deltaKcalDay: -60},
		}
	case GoalGain:
		return []lever{
			{id: "add_shake", title: "Add a daily shake", deltaKcalDay: 300},
			{id: "bigger_breakfast", title: "Double breakfast", deltaKcalDay: 250},
			{id: "strength_3x", title: "3 strength sessions/week", deltaKcalDay: 50},
		}
	default:
		return nil
	}
}

// simulate recomputes the horizon for each goal-specific lever with the
// slope adjusted by the lever's energy-balance delta.
func (e *Engine) simulate(goal *Goal, current, slope, sigma float64, today core.LocalDate, now time.Time) []Scenario {
	levers := leversFor(goal.Type)
	if len(levers) == 0 {
		return nil
	}

	scenarios := make([]Scenario, 0, len(levers))
	for _, lv := range levers {
		adjusted := slope + lv.deltaKcalDay/KcalPerKg
		sc := Scenario{
			ID:            lv.id,
			Title:         lv.title,
			DeltaKcalDay:  lv.deltaKcalDay,
			SlopeKgPerDay: round3(adjusted),
			Series:        e.project(current, adjusted, sigma, today),
		}
		sc.ETAWeeks, _ = etaToTarget(goal, current, adjusted, now)
		scenarios = append(scenarios, sc)
	}
	return scenarios
}

package scoring

import (
	"fmt"
	"sort"
	"time"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/sleep"
)

// Momentum zones
const (
	momentumGreenFloor  = 75.0
	momentumYellowFloor = 50.0
)

// Factor is one explainable momentum component
type Factor struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`  // 0-100
	Weight float64 `json:"weight"` // fraction
	Detail string  `json:"detail,omitempty"`
}

// Momentum is the composite daily momentum result
type Momentum struct {
	Score      Score    `json:"score"`
	Zone       string   `json:"zone"`
	Factors    []Factor `json:"factors"`
	DailyFocus string   `json:"daily_focus"`
}

// MomentumInput gathers the momentum engine inputs
type MomentumInput struct {
	Today     *daily.MetricRow
	LastNight *sleep.Night
	Baselines baseline.Set
	Config    Config
}

// ComputeMomentum derives the daily momentum score from up to eight domain
// factors. Factors without data drop out and weights renormalise.
func ComputeMomentum(in MomentumInput) (*Momentum, error) {
	if in.Today == nil {
		return nil, core.NewInsufficientDataError("daily_metrics")
	}
	cfg := in.Config.withDefaults()
	today := in.Today

	var factors []Factor
	add := func(id, title string, weight float64, score float64, detail string) {
		factors = append(factors, Factor{ID: id, Title: title, Score: clamp(score), Weight: weight, Detail: detail})
	}

	if in.LastNight != nil {
		s := durationScore(in.LastNight.TotalSleepMin/60, cfg.SleepTargetHours)
		add("sleep_duration", "Sleep duration", 0.22, s,
			fmt.Sprintf("%.1fh vs %.1fh target", in.LastNight.TotalSleepMin/60, cfg.SleepTargetHours))
	} else if today.SleepHours != nil {
		add("sleep_duration", "Sleep duration", 0.22,
			durationScore(*today.SleepHours, cfg.SleepTargetHours),
			fmt.Sprintf("%.1fh vs %.1fh target", *today.SleepHours, cfg.SleepTargetHours))
	}

	if today.HRVMs != nil {
		score, detail := deviationFactor(*today.HRVMs, in.Baselines.Get(baseline.MetricHRV, 28), true)
		add("hrv_deviation", "HRV vs baseline", 0.16, score, detail)
	}
	if today.RestingHR != nil {
		score, detail := deviationFactor(*today.RestingHR, in.Baselines.Get(baseline.MetricRestingHR, 28), false)
		add("rhr_deviation", "Resting HR vs baseline", 0.16, score, detail)
	}
	if today.Steps != nil {
		add("steps", "Steps vs target", 0.14, *today.Steps/cfg.StepTarget*100,
			fmt.Sprintf("%.0f of %.0f", *today.Steps, cfg.StepTarget))
	}
	if today.ExerciseMinutes != nil {
		add("exercise", "Exercise minutes", 0.12, *today.ExerciseMinutes/30*100,
			fmt.Sprintf("%.0f min", *today.ExerciseMinutes))
	}
	if today.RespiratoryRate != nil {
		score, detail := stabilityFactor(*today.RespiratoryRate, in.Baselines.Get(baseline.MetricRespiratoryRate, 28))
		add("respiratory_rate", "Respiratory rate stability", 0.08, score, detail)
	}
	if today.OxygenSatPct != nil {
		// 95%+ is normal; each point below costs 20
		add("oxygen_saturation", "Oxygen saturation", 0.06,
			100-(95-*today.OxygenSatPct)*20, fmt.Sprintf("%.1f%%", *today.OxygenSatPct))
	}
	if today.StandHours != nil {
		add("stand_hours", "Stand hours", 0.06, *today.StandHours/12*100,
			fmt.Sprintf("%.0f of 12", *today.StandHours))
	}

	if len(factors) == 0 {
		return nil, core.NewInsufficientDataError("daily_metrics")
	}

	var sum, weight float64
	for _, f := range factors {
		sum += f.Score * f.Weight
		weight += f.Weight
	}
	value := sum / weight

	m := &Momentum{
		Score: Score{
			Kind:        KindMomentum,
			UserID:      today.UserID,
			LocalDate:   today.LocalDate,
			Value:       value,
			Label:       momentumZone(value),
			GeneratedAt: time.Now().UTC(),
		},
		Zone:    momentumZone(value),
		Factors: factors,
	}
	m.DailyFocus = dailyFocus(factors)
	m.Score.DailyFocus = m.DailyFocus
	return m, nil
}

func momentumZone(v float64) string {
	switch {
	case v >= momentumGreenFloor:
		return "green"
	case v >= momentumYellowFloor:
		return "yellow"
	default:
		return "red"
	}
}

// deviationFactor scores a metric against its baseline median. higherIsBetter
// selects the direction (HRV up is good, resting HR up is bad).
func deviationFactor(value float64, b *baseline.Baseline, higherIsBetter bool) (float64, string) {
	if b == nil || b.InsufficientData || b.Median <= 0 {
		return 50, "no baseline yet"
	}
	dev := (value - b.Median) / b.Median
	if !higherIsBetter {
		dev = -dev
	}
	return clamp(50 + dev/0.25*50), fmt.Sprintf("%+.0f%% vs baseline %.0f", dev*100, b.Median)
}

// stabilityFactor rewards staying close to baseline in either direction
func stabilityFactor(value float64, b *baseline.Baseline) (float64, string) {
	if b == nil || b.InsufficientData || b.Median <= 0 {
		return 50, "no baseline yet"
	}
	dev := (value - b.Median) / b.Median
	if dev < 0 {
		dev = -dev
	}
	return clamp(100 - dev/0.15*100), fmt.Sprintf("%.1f vs baseline %.1f", value, b.Median)
}

// dailyFocus names the heaviest low-scoring factor in one sentence
func dailyFocus(factors []Factor) string {
	ranked := make([]Factor, len(factors))
	copy(ranked, factors)
	sort.SliceStable(ranked, func(i, j int) bool {
		return (100-ranked[i].Score)*ranked[i].Weight > (100-ranked[j].Score)*ranked[j].Weight
	})

	worst := ranked[0]
	if worst.Score >= 80 {
		return "Everything is on track today; keep the streak going."
	}
	switch worst.ID {
	case "sleep_duration":
		return "Tonight, prioritize getting to bed on time to close your sleep gap."
	case "hrv_deviation":
		return "Your HRV is below baseline; favor light activity and recovery today."
	case "rhr_deviation":
		return "Resting heart rate is elevated; take it easier than usual today."
	case "steps":
		return "A brisk walk would close today's step gap."
	case "exercise":
		return "Fit in a short workout to hit your exercise minutes."
	case "respiratory_rate":
		return "Respiratory rate is off baseline; watch for signs you are run down."
	case "oxygen_saturation":
		return "Oxygen saturation is lower than usual; consider a check-in if it persists."
	default:
		return "Stand up and move around once an hour to keep momentum."
	}
}

// WeeklyMomentum summarises the trailing week of momentum scores.
type WeeklyMomentum struct {
	Average   float64        `json:"average"`
	BestDate  core.LocalDate `json:"best_date"`
	WorstDate core.LocalDate `json:"worst_date"`
	ZoneDays  map[string]int `json:"zone_days"`
	Scores    []Score        `json:"scores"`
}

// SummarizeWeek folds up to 7 momentum scores into the weekly view
func SummarizeWeek(scores []Score) (*WeeklyMomentum, error) {
	if len(scores) == 0 {
		return nil, core.NewInsufficientDataError("momentum_scores")
	}
	w := &WeeklyMomentum{ZoneDays: map[string]int{}, Scores: scores}
	best, worst := scores[0], scores[0]
	var sum float64
	for _, s := range scores {
		sum += s.Value
		w.ZoneDays[momentumZone(s.Value)]++
		if s.Value > best.Value {
			best = s
		}
		if s.Value < worst.Value {
			worst = s
		}
	}
	w.Average = sum / float64(len(scores))
	w.BestDate = best.LocalDate
	w.WorstDate = worst.LocalDate
	return w, nil
}

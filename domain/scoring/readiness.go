package scoring

import (
	"time"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/sleep"
)

// Readiness weights per spec: sleep dominates, then recovery, load, trend.
const (
	readinessSleepWeight    = 0.35
	readinessRecoveryWeight = 0.30
	readinessLoadWeight     = 0.20
	readinessTrendWeight    = 0.15
)

// ReadinessInput gathers everything the readiness engine consumes
type ReadinessInput struct {
	Today     *daily.MetricRow
	LastNight *sleep.Night
	History   []*daily.MetricRow // most recent last, today excluded
	Baselines baseline.Set
	Config    Config
}

// ComputeReadiness derives the 0-100 readiness score. Returns
// ErrInsufficientData when there is nothing to score at all; partial inputs
// degrade gracefully with the gaps listed in MissingData.
func ComputeReadiness(in ReadinessInput) (*Score, error) {
	if in.Today == nil && in.LastNight == nil {
		return nil, core.NewInsufficientDataError("daily_metrics", "sleep_night")
	}
	cfg := in.Config.withDefaults()

	var subs []SubScore
	var missing []string

	if in.LastNight != nil {
		subs = append(subs, SubScore{
			Name:   "sleep",
			Score:  sleepReadinessSubScore(in.LastNight, cfg),
			Weight: readinessSleepWeight,
		})
	} else if in.Today != nil && in.Today.SleepHours != nil {
		subs = append(subs, SubScore{
			Name:   "sleep",
			Score:  durationScore(*in.Today.SleepHours, cfg.SleepTargetHours),
			Weight: readinessSleepWeight,
			Detail: "duration only; no staged sleep night",
		})
	} else {
		missing = append(missing, "sleep_night")
	}

	if sub, ok := recoverySubScore(in.Today, in.Baselines); ok {
		subs = append(subs, SubScore{Name: "recovery", Score: sub, Weight: readinessRecoveryWeight})
	} else {
		missing = append(missing, "recovery_metrics")
	}

	if sub, ok := loadSubScore(in.Today, in.History, cfg); ok {
		subs = append(subs, SubScore{Name: "load", Score: sub, Weight: readinessLoadWeight})
	} else {
		missing = append(missing, "activity_metrics")
	}

	if sub, ok := trendSubScore(in.History, in.Baselines); ok {
		subs = append(subs, SubScore{Name: "trend", Score: sub, Weight: readinessTrendWeight})
	} else {
		missing = append(missing, "history")
	}

	if len(subs) == 0 {
		return nil, core.NewInsufficientDataError(missing...)
	}

	score := &Score{
		Kind:        KindReadiness,
		Value:       weightedMean(subs),
		SubScores:   subs,
		MissingData: missing,
		GeneratedAt: time.Now().UTC(),
	}
	if in.Today != nil {
		score.UserID = in.Today.UserID
		score.LocalDate = in.Today.LocalDate
	} else {
		score.UserID = in.LastNight.UserID
		score.LocalDate = in.LastNight.SleepDate
	}
	score.Label = readinessLabel(score.Value)
	score.IsCalibrating = baselineDays(in.Baselines) < cfg.CalibrationDays

	return score, nil
}

func readinessLabel(v float64) string {
	switch {
	case v > 70:
		return "high"
	case v >= 40:
		return "moderate"
	default:
		return "low"
	}
}

// sleepReadinessSubScore blends duration and efficiency of last night
func sleepReadinessSubScore(night *sleep.Night, cfg Config) float64 {
	duration := durationScore(night.TotalSleepMin/60, cfg.SleepTargetHours)
	efficiency := clamp((night.SleepEfficiencyPct - 60) / 35 * 100)
	return clamp(0.7*duration + 0.3*efficiency)
}

// recoverySubScore compares HRV and resting HR to personal baselines.
// Higher HRV than baseline and lower RHR than baseline both score up.
func recoverySubScore(today *daily.MetricRow, baselines baseline.Set) (float64, bool) {
	if today == nil {
		return 0, false
	}
	var parts []float64

	if today.HRVMs != nil {
		if b := baselines.Get(baseline.MetricHRV, 28); b != nil && !b.InsufficientData && b.Median > 0 {
			// +/-30% around median maps to 0..100
			dev := (*today.HRVMs - b.Median) / b.Median
			parts = append(parts, clamp(50+dev/0.30*50))
		} else {
			parts = append(parts, 50) // no baseline yet: neutral
		}
	}
	if today.RestingHR != nil {
		if b := baselines.Get(baseline.MetricRestingHR, 28); b != nil && !b.InsufficientData && b.Median > 0 {
			dev := (*today.RestingHR - b.Median) / b.Median
			parts = append(parts, clamp(50-dev/0.15*50))
		} else {
			parts = append(parts, 50)
		}
	}

	if len(parts) == 0 {
		return 0, false
	}
	return mean(parts), true
}

// loadSubScore rewards yesterday's activity near the personal norm; both
// inactivity and a large spike reduce today's readiness.
func loadSubScore(today *daily.MetricRow, history []*daily.MetricRow, cfg Config) (float64, bool) {
	var yesterday *daily.MetricRow
	if len(history) > 0 {
		yesterday = history[len(history)-1]
	}
	if yesterday == nil || yesterday.Steps == nil {
		if today != nil && today.Steps != nil {
			yesterday = today
		} else {
			return 0, false
		}
	}

	ratio := *yesterday.Steps / cfg.StepTarget
	switch {
	case ratio < 0.2:
		return 40, true // sedentary day
	case ratio <= 1.2:
		return clamp(40 + ratio*50), true
	case ratio <= 2.0:
		return clamp(100 - (ratio-1.2)*40), true // heavy load costs recovery
	default:
		return 55, true
	}
}

// trendSubScore looks at the last 7 days of resting HR against baseline:
// a climbing RHR trend signals accumulating strain.
func trendSubScore(history []*daily.MetricRow, baselines baseline.Set) (float64, bool) {
	b := baselines.Get(baseline.MetricRestingHR, 14)
	if b == nil || b.InsufficientData || b.Median <= 0 {
		return 0, false
	}

	var recent []float64
	start := len(history) - 7
	if start < 0 {
		start = 0
	}
	for _, row := range history[start:] {
		if row.RestingHR != nil {
			recent = append(recent, *row.RestingHR)
		}
	}
	if len(recent) < 3 {
		return 0, false
	}

	// Stable or falling 7d RHR vs baseline scores high; +10% maps to 25.
	dev := (mean(recent) - b.Median) / b.Median
	return clamp(75 - dev/0.10*50), true
}

// durationScore maps achieved hours vs target to 0-100, flat at 100 when met
func durationScore(hours, targetHours float64) float64 {
	if targetHours <= 0 {
		targetHours = 8
	}
	return clamp(hours / targetHours * 100)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// baselineDays estimates how much baseline history the user has, using the
// widest-count baseline as the proxy.
func baselineDays(set baseline.Set) int {
	max := 0
	for _, byWindow := range set {
		for _, b := range byWindow {
			if b != nil && b.Count > max {
				max = b.Count
			}
		}
	}
	return max
}

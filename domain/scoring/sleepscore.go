package scoring

import (
	"time"

	"github.com/montanaflynn/stats"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/sleep"
)

// Sleep score weights. Each sub-score is independent; absent components
// drop out and the rest renormalise.
const (
	sleepDurationWeight    = 0.30
	sleepEfficiencyWeight  = 0.20
	sleepStructureWeight   = 0.20
	sleepConsistencyWeight = 0.15
	sleepRecoveryWeight    = 0.15
)

// SleepInput gathers the sleep score inputs
type SleepInput struct {
	Night        *sleep.Night
	RecentNights []*sleep.Night // up to 7, most recent last, for consistency
	Today        *daily.MetricRow
	Baselines    baseline.Set
	Config       Config
}

// ComputeSleep derives the 0-100 sleep quality score for one night.
func ComputeSleep(in SleepInput) (*Score, error) {
	if in.Night == nil {
		return nil, core.NewInsufficientDataError("sleep_night")
	}
	cfg := in.Config.withDefaults()
	night := in.Night

	subs := []SubScore{
		{
			Name:   "duration",
			Score:  durationScore(night.TotalSleepMin/60, cfg.SleepTargetHours),
			Weight: sleepDurationWeight,
		},
		{
			Name:   "efficiency",
			Score:  efficiencyScore(night.SleepEfficiencyPct),
			Weight: sleepEfficiencyWeight,
		},
		{
			Name:   "structure",
			Score:  structureScore(night, cfg.AgeYears),
			Weight: sleepStructureWeight,
		},
	}

	var missing []string
	if sub, ok := consistencyScore(in.RecentNights); ok {
		subs = append(subs, SubScore{Name: "consistency", Score: sub, Weight: sleepConsistencyWeight})
	} else {
		missing = append(missing, "recent_nights")
	}
	if sub, ok := recoverySubScore(in.Today, in.Baselines); ok {
		subs = append(subs, SubScore{Name: "recovery", Score: sub, Weight: sleepRecoveryWeight})
	} else {
		missing = append(missing, "recovery_metrics")
	}

	score := &Score{
		Kind:        KindSleep,
		UserID:      night.UserID,
		LocalDate:   night.SleepDate,
		Value:       weightedMean(subs),
		SubScores:   subs,
		MissingData: missing,
		GeneratedAt: time.Now().UTC(),
	}
	score.Label = sleepLabel(score.Value)
	return score, nil
}

func sleepLabel(v float64) string {
	switch {
	case v >= 85:
		return "excellent"
	case v >= 70:
		return "good"
	case v >= 55:
		return "fair"
	default:
		return "poor"
	}
}

// efficiencyScore maps 80-95%+ efficiency onto the useful scoring band
func efficiencyScore(pct float64) float64 {
	return clamp((pct - 65) / 30 * 100)
}

// structureScore compares deep% + rem% against age-banded targets.
// Deep sleep declines with age, so the target relaxes per decade.
func structureScore(night *sleep.Night, ageYears float64) float64 {
	deepTarget, remTarget := structureTargets(ageYears)

	deep := clamp(night.DeepPct / deepTarget * 100)
	rem := clamp(night.RemPct / remTarget * 100)
	return 0.5*deep + 0.5*rem
}

func structureTargets(ageYears float64) (deepPct, remPct float64) {
	switch {
	case ageYears < 30:
		return 18, 22
	case ageYears < 45:
		return 16, 21
	case ageYears < 60:
		return 14, 20
	default:
		return 12, 18
	}
}

// consistencyScore penalises bedtime variance over the last week. Bedtimes
// are unwrapped around midnight before taking the standard deviation.
func consistencyScore(nights []*sleep.Night) (float64, bool) {
	if len(nights) < 3 {
		return 0, false
	}

	var minutes []float64
	for _, n := range nights {
		t, err := time.Parse("15:04", n.BedtimeLocal)
		if err != nil {
			continue
		}
		m := float64(t.Hour()*60 + t.Minute())
		// Map early-morning bedtimes past midnight so 23:30 and 00:30 are close
		if m < 12*60 {
			m += 24 * 60
		}
		minutes = append(minutes, m)
	}
	if len(minutes) < 3 {
		return 0, false
	}

	sd, err := stats.StandardDeviation(stats.Float64Data(minutes))
	if err != nil {
		return 0, false
	}
	// 0 min SD -> 100; 90+ min SD -> 0
	return clamp(100 - sd/90*100), true
}

// Package scoring derives the daily composite indices: readiness, sleep
// quality, and momentum. Every engine is a pure function of today's daily
// metrics, the user's personal baselines, and user config.
package scoring

import (
	"time"

	"flomentum/domain/core"
)

// Kind tags a score variant
type Kind string

const (
	KindReadiness Kind = "readiness"
	KindSleep     Kind = "sleep"
	KindMomentum  Kind = "momentum"
)

// Kinds lists every score variant, for cache invalidation sweeps
var Kinds = []Kind{KindReadiness, KindSleep, KindMomentum}

// SubScore is one named component of a composite score
type SubScore struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`  // 0-100
	Weight float64 `json:"weight"` // fraction of the composite
	Detail string  `json:"detail,omitempty"`
}

// Score is a computed composite index for one (user, local date).
// GeneratedAt drives the freshness invariant: a cached score is discarded
// whenever any input row was updated after it.
type Score struct {
	Kind          Kind           `json:"kind"`
	UserID        core.UserID    `json:"user_id"`
	LocalDate     core.LocalDate `json:"local_date"`
	Value         float64        `json:"value"` // 0-100
	Label         string         `json:"label"`
	SubScores     []SubScore     `json:"sub_scores"`
	IsCalibrating bool           `json:"is_calibrating,omitempty"`
	DailyFocus    string         `json:"daily_focus,omitempty"`
	MissingData   []string       `json:"missing_data,omitempty"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// Config carries per-user scoring preferences with sensible defaults.
type Config struct {
	SleepTargetHours float64 `json:"sleep_target_hours"`
	StepTarget       float64 `json:"step_target"`
	AgeYears         float64 `json:"age_years"`
	CalibrationDays  int     `json:"calibration_days"`
}

// DefaultConfig returns the scoring defaults applied when a user has not
// customised targets.
func DefaultConfig() Config {
	return Config{
		SleepTargetHours: 8,
		StepTarget:       10000,
		AgeYears:         40,
		CalibrationDays:  14,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SleepTargetHours <= 0 {
		c.SleepTargetHours = d.SleepTargetHours
	}
	if c.StepTarget <= 0 {
		c.StepTarget = d.StepTarget
	}
	if c.AgeYears <= 0 {
		c.AgeYears = d.AgeYears
	}
	if c.CalibrationDays <= 0 {
		c.CalibrationDays = d.CalibrationDays
	}
	return c
}

// clamp bounds a score to [0, 100]
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// weightedMean combines sub-scores by weight, renormalising when some
// components are absent.
func weightedMean(subs []SubScore) float64 {
	var sum, weight float64
	for _, s := range subs {
		sum += s.Score * s.Weight
		weight += s.Weight
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

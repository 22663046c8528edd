// Package daily reduces raw wearable samples into one metric row per
// (user, local date).
package daily

import (
	"time"

	"flomentum/domain/core"
)

// SampleType identifies a raw wearable sample stream
type SampleType string

const (
	SampleSteps           SampleType = "steps"
	SampleHeartRate       SampleType = "heart_rate"
	SampleRestingHR       SampleType = "resting_heart_rate"
	SampleHRV             SampleType = "hrv_sdnn"
	SampleRespiratoryRate SampleType = "respiratory_rate"
	SampleOxygenSat       SampleType = "oxygen_saturation"
	SampleActiveEnergy    SampleType = "active_energy"
	SampleExerciseMinutes SampleType = "exercise_minutes"
	SampleStandHours      SampleType = "stand_hours"
	SampleWeight          SampleType = "body_mass"
	SampleBodyFat         SampleType = "body_fat_percentage"
	SampleBMI             SampleType = "body_mass_index"
)

// Aggregation kinds: counts are summed per source, instantaneous values are
// time-weighted means, durations are plain sums, and snapshots keep the
// latest sample of the day.
type aggregationKind int

const (
	kindCount aggregationKind = iota
	kindInstant
	kindDuration
	kindSnapshot
)

func kindOf(t SampleType) aggregationKind {
	switch t {
	case SampleSteps, SampleActiveEnergy, SampleStandHours:
		return kindCount
	case SampleHeartRate, SampleRestingHR, SampleHRV, SampleRespiratoryRate, SampleOxygenSat:
		return kindInstant
	case SampleExerciseMinutes:
		return kindDuration
	default:
		return kindSnapshot
	}
}

// RawSample is one wearable observation. UUID is the device-assigned sample
// identity; re-sending the same sample must not double-count.
type RawSample struct {
	UUID   string     `json:"uuid" validate:"required"`
	Type   SampleType `json:"type" validate:"required"`
	Value  float64    `json:"value"`
	Unit   string     `json:"unit"`
	Start  time.Time  `json:"start" validate:"required"`
	End    time.Time  `json:"end"`
	Source string     `json:"source"`
}

// Duration returns the sample's coverage window, minimum zero
func (s RawSample) Duration() time.Duration {
	if s.End.Before(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}

// MetricRow is the aggregated per-user-per-local-date summary.
type MetricRow struct {
	UserID           core.UserID        `json:"user_id"`
	LocalDate        core.LocalDate     `json:"local_date"`
	Timezone         string             `json:"timezone"`
	UTCDayStart      time.Time          `json:"utc_day_start"`
	UTCDayEnd        time.Time          `json:"utc_day_end"`
	Steps            *float64           `json:"steps,omitempty"`
	StepsSources     map[string]float64 `json:"steps_sources,omitempty"`
	ActiveEnergyKcal *float64           `json:"active_energy_kcal,omitempty"`
	ExerciseMinutes  *float64           `json:"exercise_minutes,omitempty"`
	StandHours       *float64           `json:"stand_hours,omitempty"`
	SleepHours       *float64           `json:"sleep_hours,omitempty"`
	RestingHR        *float64           `json:"resting_hr,omitempty"`
	AvgHR            *float64           `json:"avg_hr,omitempty"`
	HRVMs            *float64           `json:"hrv_ms,omitempty"`
	RespiratoryRate  *float64           `json:"respiratory_rate,omitempty"`
	OxygenSatPct     *float64           `json:"oxygen_sat_pct,omitempty"`
	WeightKg         *float64           `json:"weight_kg,omitempty"`
	BodyFatPct       *float64           `json:"body_fat_pct,omitempty"`
	BMI              *float64           `json:"bmi,omitempty"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// HasWearableData reports whether any wearable-derived field is present
func (r *MetricRow) HasWearableData() bool {
	return r.Steps != nil || r.RestingHR != nil || r.HRVMs != nil ||
		r.SleepHours != nil || r.ActiveEnergyKcal != nil
}

// Package profile holds the per-user demographic snapshot consumed by
// normalisation context building and the scoring engines.
package profile

import (
	"time"

	"flomentum/domain/biomarker"
	"flomentum/domain/core"
)

// Profile is the demographic and preference snapshot for one user
type Profile struct {
	UserID       core.UserID   `json:"user_id" db:"user_id"`
	Sex          biomarker.Sex `json:"sex,omitempty" db:"sex"`
	BirthDate    *time.Time    `json:"birth_date,omitempty" db:"birth_date"`
	TimezoneName string        `json:"timezone_name" db:"timezone_name"`
	HeightCm     *float64      `json:"height_cm,omitempty" db:"height_cm"`
	StepTarget   *float64      `json:"step_target,omitempty" db:"step_target"`
	SleepTargetH *float64      `json:"sleep_target_hours,omitempty" db:"sleep_target_hours"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// AgeYears returns the user's age at now, or 0 when birth date is unknown
func (p *Profile) AgeYears(now time.Time) int {
	if p.BirthDate == nil {
		return 0
	}
	years := now.Year() - p.BirthDate.Year()
	if now.YearDay() < p.BirthDate.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Location resolves the user's timezone, falling back to UTC
func (p *Profile) Location() *time.Location {
	if loc, err := time.LoadLocation(p.TimezoneName); err == nil {
		return loc
	}
	return time.UTC
}

// Package sleep derives per-night sleep summaries from raw stage intervals.
package sleep

import (
	"time"

	"flomentum/domain/core"
)

// Stage is a sleep-sample stage as reported by the device
type Stage string

const (
	StageInBed       Stage = "inBed"
	StageAsleep      Stage = "asleep"
	StageAwake       Stage = "awake"
	StageCore        Stage = "core"
	StageDeep        Stage = "deep"
	StageREM         Stage = "rem"
	StageUnspecified Stage = "unspecified"
)

// IsAsleep reports whether the stage counts toward total sleep
func (s Stage) IsAsleep() bool {
	switch s {
	case StageAsleep, StageCore, StageDeep, StageREM, StageUnspecified:
		return true
	default:
		return false
	}
}

// Interval is one raw stage sample
type Interval struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
	Stage Stage     `json:"stage" validate:"required"`
}

// Night is the derived per-night summary stored for scoring.
type Night struct {
	UserID             core.UserID    `json:"user_id"`
	SleepDate          core.LocalDate `json:"sleep_date"`
	Timezone           string         `json:"timezone"`
	NightStart         time.Time      `json:"night_start"`
	FinalWake          time.Time      `json:"final_wake"`
	SleepOnset         time.Time      `json:"sleep_onset"`
	TimeInBedMin       float64        `json:"time_in_bed_min"`
	TotalSleepMin      float64        `json:"total_sleep_min"`
	SleepEfficiencyPct float64        `json:"sleep_efficiency_pct"`
	SleepLatencyMin    float64        `json:"sleep_latency_min"`
	WasoMin            float64        `json:"waso_min"`
	NumAwakenings      int            `json:"num_awakenings"`
	CoreMin            float64        `json:"core_min"`
	DeepMin            float64        `json:"deep_min"`
	RemMin             float64        `json:"rem_min"`
	UnspecifiedMin     float64        `json:"unspecified_min"`
	AwakeInBedMin      float64        `json:"awake_in_bed_min"`
	DeepPct            float64        `json:"deep_pct"`
	RemPct             float64        `json:"rem_pct"`
	FragmentationIndex float64        `json:"fragmentation_index"`
	BedtimeLocal       string         `json:"bedtime_local"`
	WaketimeLocal      string         `json:"waketime_local"`
	MidSleepLocal      string         `json:"mid_sleep_time_local"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Package forecast projects personal weight trends: trend extraction,
// confidence-banded horizon series, ETA to goal, driver attribution, and
// scenario simulation.
package forecast

import (
	"time"

	"flomentum/domain/core"
)

// GoalType is the direction of a weight goal
type GoalType string

const (
	GoalLose     GoalType = "LOSE"
	GoalGain     GoalType = "GAIN"
	GoalMaintain GoalType = "MAINTAIN"
)

// Goal is the user's active weight goal
type Goal struct {
	UserID         core.UserID `json:"user_id" db:"user_id"`
	Type           GoalType    `json:"type" db:"type"`
	TargetWeightKg float64     `json:"target_weight_kg" db:"target_weight_kg"`
	TargetDate     *time.Time  `json:"target_date,omitempty" db:"target_date"`
	StartWeightKg  float64     `json:"start_weight_kg" db:"start_weight_kg"`
}

// Confidence grades how much the forecast can be trusted
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// BandMultiplier widens or narrows the uncertainty band per confidence level
func (c Confidence) BandMultiplier() float64 {
	switch c {
	case ConfidenceLow:
		return 1.8
	case ConfidenceHigh:
		return 0.9
	default:
		return 1.2
	}
}

// StatusChip is the single-word forecast status surfaced to clients
type StatusChip string

const (
	StatusOnTrack   StatusChip = "ON_TRACK"
	StatusAtRisk    StatusChip = "AT_RISK"
	StatusNeedsData StatusChip = "NEEDS_DATA"
)

// ModelState is the per-user trained forecast state. Single writer: the
// forecast worker.
type ModelState struct {
	UserID                   core.UserID     `json:"user_id"`
	KUserResponse            float64         `json:"k_user_response"`
	EnergyBalanceKcalPerDay  float64         `json:"energy_balance_effective_kcal_per_day"`
	WaterNoiseSigma          float64         `json:"water_noise_sigma"`
	BaselineWeightTrendSlope float64         `json:"baseline_weight_trend_slope"`
	LastTrainedLocalDate     *core.LocalDate `json:"last_trained_local_date,omitempty"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

// DefaultModelState seeds an untrained user
func DefaultModelState(userID core.UserID) *ModelState {
	return &ModelState{
		UserID:                  userID,
		KUserResponse:           1.0,
		EnergyBalanceKcalPerDay: 0,
		WaterNoiseSigma:         0.35, // kg, typical day-to-day water swing
	}
}

// Summary is the headline forecast snapshot.
type Summary struct {
	UserID          core.UserID `json:"user_id"`
	CurrentWeightKg *float64    `json:"current_weight_kg,omitempty"`
	DeltaVs7dAvgKg  *float64    `json:"delta_vs_7d_avg_kg,omitempty"`
	ProgressPct     *float64    `json:"progress_pct,omitempty"`
	SlopeKgPerDay   float64     `json:"slope_kg_per_day"`
	Confidence      Confidence  `json:"confidence"`
	StatusChip      StatusChip  `json:"status_chip"`
	ETAWeeks        *float64    `json:"eta_weeks,omitempty"`
	ETADate         *time.Time  `json:"eta_date,omitempty"`
	WeighInsPerWeek float64     `json:"weigh_ins_per_week"`
	StalenessDays   int         `json:"staleness_days"`
	GeneratedAt     time.Time   `json:"generated_at"`
}

// SeriesPoint is one projected day of the horizon band
type SeriesPoint struct {
	Day  int            `json:"day"`
	Date core.LocalDate `json:"date"`
	Mid  float64        `json:"mid"`
	Low  float64        `json:"low"`
	High float64        `json:"high"`
}

// Driver is one ranked personalised action
type Driver struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Subtitle   string  `json:"subtitle"`
	Confidence float64 `json:"confidence"`
	Deeplink   string  `json:"deeplink"`
}

// Scenario is one simulator lever with its recomputed horizon
type Scenario struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	DeltaKcalDay  float64       `json:"delta_kcal_day"`
	SlopeKgPerDay float64       `json:"slope_kg_per_day"`
	ETAWeeks      *float64      `json:"eta_weeks,omitempty"`
	Series        []SeriesPoint `json:"series"`
}

// Result bundles everything the worker persists under one generated_at.
type Result struct {
	Summary    Summary       `json:"summary"`
	Series     []SeriesPoint `json:"series"`
	Drivers    []Driver      `json:"drivers"`
	Scenarios  []Scenario    `json:"scenarios"`
	ModelState *ModelState   `json:"model_state,omitempty"`
}

// RecomputeEvent is one entry in the per-user coalescing recompute queue.
type RecomputeEvent struct {
	EventID            core.ID         `json:"event_id"`
	UserID             core.UserID     `json:"user_id"`
	Reason             string          `json:"reason"`
	Priority           int             `json:"priority"`
	QueuedAt           time.Time       `json:"queued_at"`
	RequestedLocalDate *core.LocalDate `json:"requested_local_date,omitempty"`
}

// CoalesceByUser deduplicates queued events per user, keeping the highest
// priority (ties: most recent intent).
func CoalesceByUser(events []RecomputeEvent) []RecomputeEvent {
	best := make(map[core.UserID]RecomputeEvent)
	order := make([]core.UserID, 0, len(events))
	for _, ev := range events {
		cur, seen := best[ev.UserID]
		if !seen {
			best[ev.UserID] = ev
			order = append(order, ev.UserID)
			continue
		}
		if ev.Priority > cur.Priority ||
			(ev.Priority == cur.Priority && ev.QueuedAt.After(cur.QueuedAt)) {
			best[ev.UserID] = ev
		}
	}
	out := make([]RecomputeEvent, 0, len(best))
	for _, user := range order {
		out = append(out, best[user])
	}
	return out
}

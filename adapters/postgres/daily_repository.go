package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/sleep"
	"flomentum/ports"
)

// DailyRepositoryImpl implements DailyRepository for PostgreSQL
type DailyRepositoryImpl struct {
	db *sqlx.DB
}

// NewDailyRepository creates a new PostgreSQL daily metrics repository
func NewDailyRepository(db *sqlx.DB) ports.DailyRepository {
	return &DailyRepositoryImpl{db: db}
}

type metricRowRecord struct {
	UserID           core.UserID    `db:"user_id"`
	LocalDate        core.LocalDate `db:"local_date"`
	Timezone         string         `db:"timezone"`
	UTCDayStart      time.Time      `db:"utc_day_start"`
	UTCDayEnd        time.Time      `db:"utc_day_end"`
	Steps            *float64       `db:"steps"`
	StepsSources     []byte         `db:"steps_sources"`
	ActiveEnergyKcal *float64       `db:"active_energy_kcal"`
	ExerciseMinutes  *float64       `db:"exercise_minutes"`
	StandHours       *float64       `db:"stand_hours"`
	SleepHours       *float64       `db:"sleep_hours"`
	RestingHR        *float64       `db:"resting_hr"`
	AvgHR            *float64       `db:"avg_hr"`
	HRVMs            *float64       `db:"hrv_ms"`
	RespiratoryRate  *float64       `db:"respiratory_rate"`
	OxygenSatPct     *float64       `db:"oxygen_sat_pct"`
	WeightKg         *float64       `db:"weight_kg"`
	BodyFatPct       *float64       `db:"body_fat_pct"`
	BMI              *float64       `db:"bmi"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

const metricColumns = `user_id, local_date, timezone, utc_day_start, utc_day_end,
	steps, steps_sources, active_energy_kcal, exercise_minutes, stand_hours, sleep_hours,
	resting_hr, avg_hr, hrv_ms, respiratory_rate, oxygen_sat_pct,
	weight_kg, body_fat_pct, bmi, updated_at`

func (rec *metricRowRecord) toDomain() (*daily.MetricRow, error) {
	row := &daily.MetricRow{
		UserID:           rec.UserID,
		LocalDate:        rec.LocalDate,
		Timezone:         rec.Timezone,
		UTCDayStart:      rec.UTCDayStart,
		UTCDayEnd:        rec.UTCDayEnd,
		Steps:            rec.Steps,
		ActiveEnergyKcal: rec.ActiveEnergyKcal,
		ExerciseMinutes:  rec.ExerciseMinutes,
		StandHours:       rec.StandHours,
		SleepHours:       rec.SleepHours,
		RestingHR:        rec.RestingHR,
		AvgHR:            rec.AvgHR,
		HRVMs:            rec.HRVMs,
		RespiratoryRate:  rec.RespiratoryRate,
		OxygenSatPct:     rec.OxygenSatPct,
		WeightKg:         rec.WeightKg,
		BodyFatPct:       rec.BodyFatPct,
		BMI:              rec.BMI,
		UpdatedAt:        rec.UpdatedAt,
	}
	if len(rec.StepsSources) > 0 {
		if err := json.Unmarshal(rec.StepsSources, &row.StepsSources); err != nil {
			return nil, fmt.Errorf("unmarshal steps_sources for %s/%s: %w", rec.UserID, rec.LocalDate, err)
		}
	}
	return row, nil
}

// UpsertRow writes a metric row, last-writer-wins by updated_at
func (r *DailyRepositoryImpl) UpsertRow(ctx context.Context, row *daily.MetricRow) error {
	sources, err := json.Marshal(row.StepsSources)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO daily_metric_rows (`+metricColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (user_id, local_date) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			utc_day_start = EXCLUDED.utc_day_start,
			utc_day_end = EXCLUDED.utc_day_end,
			steps = EXCLUDED.steps,
			steps_sources = EXCLUDED.steps_sources,
			active_energy_kcal = EXCLUDED.active_energy_kcal,
			exercise_minutes = EXCLUDED.exercise_minutes,
			stand_hours = EXCLUDED.stand_hours,
			sleep_hours = EXCLUDED.sleep_hours,
			resting_hr = EXCLUDED.resting_hr,
			avg_hr = EXCLUDED.avg_hr,
			hrv_ms = EXCLUDED.hrv_ms,
			respiratory_rate = EXCLUDED.respiratory_rate,
			oxygen_sat_pct = EXCLUDED.oxygen_sat_pct,
			weight_kg = EXCLUDED.weight_kg,
			body_fat_pct = EXCLUDED.body_fat_pct,
			bmi = EXCLUDED.bmi,
			updated_at = EXCLUDED.updated_at
		WHERE daily_metric_rows.updated_at <= EXCLUDED.updated_at
	`, row.UserID, row.LocalDate, row.Timezone, row.UTCDayStart, row.UTCDayEnd,
		row.Steps, sources, row.ActiveEnergyKcal, row.ExerciseMinutes, row.StandHours, row.SleepHours,
		row.RestingHR, row.AvgHR, row.HRVMs, row.RespiratoryRate, row.OxygenSatPct,
		row.WeightKg, row.BodyFatPct, row.BMI, row.UpdatedAt)
	return err
}

// GetRow retrieves the row for one local date
func (r *DailyRepositoryImpl) GetRow(ctx context.Context, userID core.UserID, date core.LocalDate) (*daily.MetricRow, error) {
	var rec metricRowRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT `+metricColumns+`
		FROM daily_metric_rows
		WHERE user_id = $1 AND local_date = $2
	`, userID, date)
	if err != nil {
		return nil, notFound(err, "daily metric row", string(date))
	}
	return rec.toDomain()
}

// ListRows returns rows in [from, to], ascending by local date
func (r *DailyRepositoryImpl) ListRows(ctx context.Context, userID core.UserID, from, to core.LocalDate) ([]*daily.MetricRow, error) {
	var recs []metricRowRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT `+metricColumns+`
		FROM daily_metric_rows
		WHERE user_id = $1 AND local_date >= $2 AND local_date <= $3
		ORDER BY local_date
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]*daily.MetricRow, 0, len(recs))
	for i := range recs {
		row, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// SleepRepositoryImpl implements SleepRepository for PostgreSQL. Nights are
// stored whole as JSONB beside their indexed key columns; the derivation is
// always replaced atomically.
type SleepRepositoryImpl struct {
	db *sqlx.DB
}

// NewSleepRepository creates a new PostgreSQL sleep repository
func NewSleepRepository(db *sqlx.DB) ports.SleepRepository {
	return &SleepRepositoryImpl{db: db}
}

// UpsertNight writes a sleep night, replacing any prior derivation
func (r *SleepRepositoryImpl) UpsertNight(ctx context.Context, night *sleep.Night) error {
	payload, err := json.Marshal(night)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sleep_nights (user_id, sleep_date, payload, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, sleep_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`, night.UserID, night.SleepDate, payload)
	return err
}

// GetNight retrieves the night for one sleep date
func (r *SleepRepositoryImpl) GetNight(ctx context.Context, userID core.UserID, date core.LocalDate) (*sleep.Night, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `
		SELECT payload FROM sleep_nights
		WHERE user_id = $1 AND sleep_date = $2
	`, userID, date)
	if err != nil {
		return nil, notFound(err, "sleep night", string(date))
	}
	var night sleep.Night
	if err := json.Unmarshal(payload, &night); err != nil {
		return nil, fmt.Errorf("unmarshal sleep night %s/%s: %w", userID, date, err)
	}
	return &night, nil
}

// ListRecentNights returns the latest nights, newest first
func (r *SleepRepositoryImpl) ListRecentNights(ctx context.Context, userID core.UserID, limit int) ([]*sleep.Night, error) {
	if limit <= 0 {
		limit = 7
	}
	var payloads [][]byte
	err := r.db.SelectContext(ctx, &payloads, `
		SELECT payload FROM sleep_nights
		WHERE user_id = $1
		ORDER BY sleep_date DESC
		LIMIT $2
	`, userID, limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]*sleep.Night, 0, len(payloads))
	for _, p := range payloads {
		var night sleep.Night
		if err := json.Unmarshal(p, &night); err != nil {
			return nil, err
		}
		out = append(out, &night)
	}
	return out, nil
}

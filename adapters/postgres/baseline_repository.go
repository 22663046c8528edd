package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
	"flomentum/ports"
)

// BaselineRepositoryImpl implements BaselineRepository for PostgreSQL
type BaselineRepositoryImpl struct {
	db *sqlx.DB
}

// NewBaselineRepository creates a new PostgreSQL baseline repository
func NewBaselineRepository(db *sqlx.DB) ports.BaselineRepository {
	return &BaselineRepositoryImpl{db: db}
}

type baselineRow struct {
	UserID           core.UserID     `db:"user_id"`
	Metric           baseline.Metric `db:"metric"`
	WindowDays       int             `db:"window_days"`
	Median           float64         `db:"median"`
	P25              float64         `db:"p25"`
	P75              float64         `db:"p75"`
	Count            int             `db:"data_points"`
	InsufficientData bool            `db:"insufficient_data"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// SaveSet upserts every baseline in the set for a user
func (r *BaselineRepositoryImpl) SaveSet(ctx context.Context, userID core.UserID, set baseline.Set) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, windows := range set {
		for _, b := range windows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO personal_baselines
					(user_id, metric, window_days, median, p25, p75, data_points, insufficient_data, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (user_id, metric, window_days) DO UPDATE SET
					median = EXCLUDED.median,
					p25 = EXCLUDED.p25,
					p75 = EXCLUDED.p75,
					data_points = EXCLUDED.data_points,
					insufficient_data = EXCLUDED.insufficient_data,
					updated_at = EXCLUDED.updated_at
			`, userID, b.Metric, b.WindowDays, b.Median, b.P25, b.P75, b.Count, b.InsufficientData, b.UpdatedAt)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetSet loads all baselines for a user
func (r *BaselineRepositoryImpl) GetSet(ctx context.Context, userID core.UserID) (baseline.Set, error) {
	var rows []baselineRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT user_id, metric, window_days, median, p25, p75, data_points, insufficient_data, updated_at
		FROM personal_baselines
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}

	set := make(baseline.Set)
	for _, row := range rows {
		if set[row.Metric] == nil {
			set[row.Metric] = make(map[int]*baseline.Baseline)
		}
		set[row.Metric][row.WindowDays] = &baseline.Baseline{
			UserID:           row.UserID,
			Metric:           row.Metric,
			WindowDays:       row.WindowDays,
			Median:           row.Median,
			P25:              row.P25,
			P75:              row.P75,
			Count:            row.Count,
			InsufficientData: row.InsufficientData,
			UpdatedAt:        row.UpdatedAt,
		}
	}
	return set, nil
}

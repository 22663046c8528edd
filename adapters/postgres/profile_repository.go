package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"flomentum/domain/core"
	"flomentum/domain/profile"
	"flomentum/ports"
)

// ProfileRepositoryImpl implements ProfileRepository for PostgreSQL
type ProfileRepositoryImpl struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(db *sqlx.DB) ports.ProfileRepository {
	return &ProfileRepositoryImpl{db: db}
}

// GetProfile loads a user's profile
func (r *ProfileRepositoryImpl) GetProfile(ctx context.Context, userID core.UserID) (*profile.Profile, error) {
	var p profile.Profile
	err := r.db.GetContext(ctx, &p, `
		SELECT user_id, sex, birth_date, timezone_name, height_cm, step_target, sleep_target_hours, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, notFound(err, "profile", userID.String())
	}
	return &p, nil
}

// UpsertProfile writes the profile
func (r *ProfileRepositoryImpl) UpsertProfile(ctx context.Context, p *profile.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_profiles
			(user_id, sex, birth_date, timezone_name, height_cm, step_target, sleep_target_hours, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			sex = EXCLUDED.sex,
			birth_date = EXCLUDED.birth_date,
			timezone_name = EXCLUDED.timezone_name,
			height_cm = EXCLUDED.height_cm,
			step_target = EXCLUDED.step_target,
			sleep_target_hours = EXCLUDED.sleep_target_hours,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.Sex, p.BirthDate, p.TimezoneName, p.HeightCm, p.StepTarget, p.SleepTargetH, p.UpdatedAt)
	return err
}

// ListActiveUsers returns users with any daily data in the last 30 days
func (r *ProfileRepositoryImpl) ListActiveUsers(ctx context.Context, limit int) ([]core.UserID, error) {
	if limit <= 0 {
		limit = 1000
	}
	var users []core.UserID
	err := r.db.SelectContext(ctx, &users, `
		SELECT DISTINCT user_id
		FROM daily_metric_rows
		WHERE updated_at > NOW() - INTERVAL '30 days'
		LIMIT $1
	`, limit)
	return users, err
}

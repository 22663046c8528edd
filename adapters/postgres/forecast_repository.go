package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"flomentum/domain/core"
	"flomentum/domain/forecast"
	"flomentum/ports"
)

// ForecastRepositoryImpl implements ForecastRepository for PostgreSQL
type ForecastRepositoryImpl struct {
	db *sqlx.DB
}

// NewForecastRepository creates a new PostgreSQL forecast repository
func NewForecastRepository(db *sqlx.DB) ports.ForecastRepository {
	return &ForecastRepositoryImpl{db: db}
}

// GetGoal loads the user's active weight goal, nil when none is set
func (r *ForecastRepositoryImpl) GetGoal(ctx context.Context, userID core.UserID) (*forecast.Goal, error) {
	var g forecast.Goal
	err := r.db.GetContext(ctx, &g, `
		SELECT user_id, type, target_weight_kg, target_date, start_weight_kg
		FROM weight_goals
		WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveGoal upserts the active goal
func (r *ForecastRepositoryImpl) SaveGoal(ctx context.Context, goal *forecast.Goal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO weight_goals (user_id, type, target_weight_kg, target_date, start_weight_kg)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			type = EXCLUDED.type,
			target_weight_kg = EXCLUDED.target_weight_kg,
			target_date = EXCLUDED.target_date,
			start_weight_kg = EXCLUDED.start_weight_kg
	`, goal.UserID, goal.Type, goal.TargetWeightKg, goal.TargetDate, goal.StartWeightKg)
	return err
}

// GetModelState loads trained state, nil for untrained users
func (r *ForecastRepositoryImpl) GetModelState(ctx context.Context, userID core.UserID) (*forecast.ModelState, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `
		SELECT payload FROM forecast_model_states WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state forecast.ModelState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal model state for %s: %w", userID, err)
	}
	return &state, nil
}

// SaveModelState upserts trained state
func (r *ForecastRepositoryImpl) SaveModelState(ctx context.Context, state *forecast.ModelState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO forecast_model_states (user_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, state.UserID, payload, state.UpdatedAt)
	return err
}

// SaveResult replaces the persisted forecast snapshot atomically
func (r *ForecastRepositoryImpl) SaveResult(ctx context.Context, result *forecast.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO forecast_results (user_id, generated_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			payload = EXCLUDED.payload
	`, result.Summary.UserID, result.Summary.GeneratedAt, payload)
	return err
}

// GetLatestResult loads the most recent persisted forecast
func (r *ForecastRepositoryImpl) GetLatestResult(ctx context.Context, userID core.UserID) (*forecast.Result, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `
		SELECT payload FROM forecast_results WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, notFound(err, "forecast", userID.String())
	}
	var result forecast.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal forecast for %s: %w", userID, err)
	}
	return &result, nil
}

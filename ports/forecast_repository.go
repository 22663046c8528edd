package ports

import (
	"context"

	"flomentum/domain/core"
	"flomentum/domain/forecast"
)

// ForecastRepository persists goals, trained model state, and the latest
// forecast artifacts.
type ForecastRepository interface {
	// GetGoal loads the user's active weight goal, nil when none is set
	GetGoal(ctx context.Context, userID core.UserID) (*forecast.Goal, error)

	// SaveGoal upserts the active goal
	SaveGoal(ctx context.Context, goal *forecast.Goal) error

	// GetModelState loads trained state, nil for untrained users
	GetModelState(ctx context.Context, userID core.UserID) (*forecast.ModelState, error)

	// SaveModelState upserts trained state
	SaveModelState(ctx context.Context, state *forecast.ModelState) error

	// SaveResult persists summary, series, drivers, and scenarios under
	// the result's single generated_at, replacing the previous snapshot
	SaveResult(ctx context.Context, result *forecast.Result) error

	// GetLatestResult loads the most recent persisted forecast
	GetLatestResult(ctx context.Context, userID core.UserID) (*forecast.Result, error)
}

package ports

import (
	"context"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
)

// BaselineRepository persists rolling personal baselines
type BaselineRepository interface {
	// SaveSet upserts every baseline in the set for a user
	SaveSet(ctx context.Context, userID core.UserID, set baseline.Set) error

	// GetSet loads all baselines for a user
	GetSet(ctx context.Context, userID core.UserID) (baseline.Set, error)
}

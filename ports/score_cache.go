package ports

import (
	"context"

	"flomentum/domain/core"
	"flomentum/domain/scoring"
)

// ScoreCache holds computed daily scores. Callers enforce the freshness
// invariant: a cached score is only served when its inputs have not been
// updated since it was generated.
type ScoreCache interface {
	// GetScore returns the cached score for (user, kind, date), nil on miss
	GetScore(ctx context.Context, userID core.UserID, kind scoring.Kind, date core.LocalDate) (*scoring.Score, error)

	// PutScore stores a computed score
	PutScore(ctx context.Context, userID core.UserID, score *scoring.Score) error

	// InvalidateDay drops every cached score for one local date
	InvalidateDay(ctx context.Context, userID core.UserID, date core.LocalDate) error
}

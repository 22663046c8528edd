package ports

import (
	"context"
	"time"

	"flomentum/domain/core"
	"flomentum/domain/forecast"
)

// RecomputeQueue is the per-user coalescing buffer that feeds the forecast
// worker. It is not a general task queue: per user, the highest-priority
// most-recent intent wins.
type RecomputeQueue interface {
	// Enqueue adds a recompute event
	Enqueue(ctx context.Context, event forecast.RecomputeEvent) error

	// FetchReady returns events queued before the debounce cutoff,
	// oldest first, up to limit
	FetchReady(ctx context.Context, queuedBefore time.Time, limit int) ([]forecast.RecomputeEvent, error)

	// Delete removes processed events
	Delete(ctx context.Context, eventIDs []core.ID) error

	// CompactUser removes this user's remaining events queued before the
	// cutoff, after a successful recompute
	CompactUser(ctx context.Context, userID core.UserID, before time.Time) error
}

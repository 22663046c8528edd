package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"flomentum/domain/core"
	"flomentum/domain/forecast"
	"flomentum/ports"
)

// RecomputeQueueImpl implements the forecast recompute queue on a plain
// table. The debounce window and per-user coalescing happen at fetch time;
// rows are cheap and short-lived.
type RecomputeQueueImpl struct {
	db *sqlx.DB
}

// NewRecomputeQueue creates a new PostgreSQL recompute queue
func NewRecomputeQueue(db *sqlx.DB) ports.RecomputeQueue {
	return &RecomputeQueueImpl{db: db}
}

type queueRow struct {
	EventID            core.ID         `db:"event_id"`
	UserID             core.UserID     `db:"user_id"`
	Reason             string          `db:"reason"`
	Priority           int             `db:"priority"`
	QueuedAt           time.Time       `db:"queued_at"`
	RequestedLocalDate *core.LocalDate `db:"requested_local_date"`
}

// Enqueue adds a recompute event
func (q *RecomputeQueueImpl) Enqueue(ctx context.Context, ev forecast.RecomputeEvent) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO forecast_recompute_queue
			(event_id, user_id, reason, priority, queued_at, requested_local_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.EventID, ev.UserID, ev.Reason, ev.Priority, ev.QueuedAt, ev.RequestedLocalDate)
	return err
}

// FetchReady returns events queued before the cutoff, oldest first
func (q *RecomputeQueueImpl) FetchReady(ctx context.Context, queuedBefore time.Time, limit int) ([]forecast.RecomputeEvent, error) {
	var rows []queueRow
	err := q.db.SelectContext(ctx, &rows, `
		SELECT event_id, user_id, reason, priority, queued_at, requested_local_date
		FROM forecast_recompute_queue
		WHERE queued_at < $1
		ORDER BY queued_at
		LIMIT $2
	`, queuedBefore, limit)
	if err != nil {
		return nil, err
	}
	out := make([]forecast.RecomputeEvent, len(rows))
	for i, row := range rows {
		out[i] = forecast.RecomputeEvent{
			EventID:            row.EventID,
			UserID:             row.UserID,
			Reason:             row.Reason,
			Priority:           row.Priority,
			QueuedAt:           row.QueuedAt,
			RequestedLocalDate: row.RequestedLocalDate,
		}
	}
	return out, nil
}

// Delete removes processed events
func (q *RecomputeQueueImpl) Delete(ctx context.Context, eventIDs []core.ID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	ids := make([]string, len(eventIDs))
	for i, id := range eventIDs {
		ids[i] = id.String()
	}
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM forecast_recompute_queue WHERE event_id = ANY($1)
	`, pq.Array(ids))
	return err
}

// CompactUser removes a user's leftover events queued before the cutoff
func (q *RecomputeQueueImpl) CompactUser(ctx context.Context, userID core.UserID, before time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM forecast_recompute_queue WHERE user_id = $1 AND queued_at < $2
	`, userID, before)
	return err
}

package ports

import (
	"context"

	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/sleep"
)

// DailyRepository persists per-user-per-local-date metric rows
type DailyRepository interface {
	// UpsertRow writes a metric row, last-writer-wins by updated_at
	UpsertRow(ctx context.Context, row *daily.MetricRow) error

	// GetRow retrieves the row for one local date
	GetRow(ctx context.Context, userID core.UserID, date core.LocalDate) (*daily.MetricRow, error)

	// ListRows returns rows in [from, to], ascending by local date
	ListRows(ctx context.Context, userID core.UserID, from, to core.LocalDate) ([]*daily.MetricRow, error)
}

// SleepRepository persists derived sleep nights
type SleepRepository interface {
	// UpsertNight writes a sleep night, replacing any prior derivation
	// for the same sleep date
	UpsertNight(ctx context.Context, night *sleep.Night) error

	// GetNight retrieves the night for one sleep date
	GetNight(ctx context.Context, userID core.UserID, date core.LocalDate) (*sleep.Night, error)

	// ListRecentNights returns the latest nights, newest first
	ListRecentNights(ctx context.Context, userID core.UserID, limit int) ([]*sleep.Night, error)
}

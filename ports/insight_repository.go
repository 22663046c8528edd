package ports

import (
	"context"

	"flomentum/domain/core"
	"flomentum/domain/insight"
)

// InsightRepository persists daily insight cards and the life-event log
type InsightRepository interface {
	// SaveCard inserts a card
	SaveCard(ctx context.Context, card *insight.Card) error

	// ListCards returns a user's cards, newest first
	ListCards(ctx context.Context, userID core.UserID, includeDismissed bool, limit int) ([]*insight.Card, error)

	// DismissCard marks a card dismissed
	DismissCard(ctx context.Context, userID core.UserID, id core.InsightID) error

	// SignatureExists reports whether a card with this pattern signature
	// already exists for the user, so scans never duplicate a pattern
	SignatureExists(ctx context.Context, userID core.UserID, sig core.PatternSignature) (bool, error)

	// LogEvent appends a life event
	LogEvent(ctx context.Context, event *insight.LifeEvent) error

	// ListEvents returns life events in [from, to]
	ListEvents(ctx context.Context, userID core.UserID, from, to core.LocalDate) ([]insight.LifeEvent, error)
}

package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"flomentum/domain/core"
	"flomentum/domain/insight"
	"flomentum/ports"
)

// InsightRepositoryImpl implements InsightRepository for PostgreSQL
type InsightRepositoryImpl struct {
	db *sqlx.DB
}

// NewInsightRepository creates a new PostgreSQL insight repository
func NewInsightRepository(db *sqlx.DB) ports.InsightRepository {
	return &InsightRepositoryImpl{db: db}
}

type cardRow struct {
	ID               core.InsightID        `db:"id"`
	UserID           core.UserID           `db:"user_id"`
	Category         insight.Category      `db:"category"`
	Title            string                `db:"title"`
	Body             string                `db:"body"`
	Action           string                `db:"action"`
	TargetBiomarker  *string               `db:"target_biomarker"`
	CurrentValue     *float64              `db:"current_value"`
	TargetValue      *float64              `db:"target_value"`
	ConfidenceScore  float64               `db:"confidence_score"`
	PatternSignature core.PatternSignature `db:"pattern_signature"`
	GeneratedDate    core.LocalDate        `db:"generated_date"`
	IsDismissed      bool                  `db:"is_dismissed"`
	IsNew            bool                  `db:"is_new"`
}

const cardColumns = `id, user_id, category, title, body, action, target_biomarker,
	current_value, target_value, confidence_score, pattern_signature,
	generated_date, is_dismissed, is_new`

func (row *cardRow) toDomain() *insight.Card {
	return &insight.Card{
		ID:               row.ID,
		UserID:           row.UserID,
		Category:         row.Category,
		Title:            row.Title,
		Body:             row.Body,
		Action:           row.Action,
		TargetBiomarker:  row.TargetBiomarker,
		CurrentValue:     row.CurrentValue,
		TargetValue:      row.TargetValue,
		ConfidenceScore:  row.ConfidenceScore,
		PatternSignature: row.PatternSignature,
		GeneratedDate:    row.GeneratedDate,
		IsDismissed:      row.IsDismissed,
		IsNew:            row.IsNew,
	}
}

// SaveCard inserts a card
func (r *InsightRepositoryImpl) SaveCard(ctx context.Context, card *insight.Card) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO insight_cards (`+cardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, card.ID, card.UserID, card.Category, card.Title, card.Body, card.Action,
		card.TargetBiomarker, card.CurrentValue, card.TargetValue, card.ConfidenceScore,
		card.PatternSignature, card.GeneratedDate, card.IsDismissed, card.IsNew)
	return err
}

// ListCards returns a user's cards, newest first
func (r *InsightRepositoryImpl) ListCards(ctx context.Context, userID core.UserID, includeDismissed bool, limit int) ([]*insight.Card, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + cardColumns + `
		FROM insight_cards
		WHERE user_id = $1`
	if !includeDismissed {
		query += ` AND NOT is_dismissed`
	}
	query += `
		ORDER BY generated_date DESC, confidence_score DESC
		LIMIT $2`

	var rows []cardRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, err
	}
	out := make([]*insight.Card, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// DismissCard marks a card dismissed
func (r *InsightRepositoryImpl) DismissCard(ctx context.Context, userID core.UserID, id core.InsightID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE insight_cards SET is_dismissed = TRUE, is_new = FALSE
		WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("insight", id.String())
	}
	return nil
}

// SignatureExists reports whether this pattern was already persisted
func (r *InsightRepositoryImpl) SignatureExists(ctx context.Context, userID core.UserID, sig core.PatternSignature) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM insight_cards WHERE user_id = $1 AND pattern_signature = $2
		)
	`, userID, sig)
	return exists, err
}

// LogEvent appends a life event
func (r *InsightRepositoryImpl) LogEvent(ctx context.Context, ev *insight.LifeEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO life_events (id, user_id, local_date, kind, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.ID, ev.UserID, ev.LocalDate, ev.Kind, ev.Note, ev.CreatedAt)
	return err
}

// ListEvents returns life events in [from, to]
func (r *InsightRepositoryImpl) ListEvents(ctx context.Context, userID core.UserID, from, to core.LocalDate) ([]insight.LifeEvent, error) {
	var events []insight.LifeEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, user_id, local_date, kind, note, created_at
		FROM life_events
		WHERE user_id = $1 AND local_date >= $2 AND local_date <= $3
		ORDER BY local_date
	`, userID, from, to)
	return events, err
}

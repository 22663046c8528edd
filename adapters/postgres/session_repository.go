package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"flomentum/domain/core"
	"flomentum/domain/measurement"
	"flomentum/ports"
)

// SessionRepositoryImpl implements SessionRepository for PostgreSQL
type SessionRepositoryImpl struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) ports.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

// CreateSession inserts a new session row
func (r *SessionRepositoryImpl) CreateSession(ctx context.Context, s *measurement.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO test_sessions (id, user_id, source, test_date, lab_name, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.UserID, s.Source, s.TestDate, s.LabName, s.Notes, s.CreatedAt)
	return err
}

// GetSession retrieves a session by owner and id
func (r *SessionRepositoryImpl) GetSession(ctx context.Context, userID core.UserID, sessionID core.SessionID) (*measurement.Session, error) {
	var s measurement.Session
	err := r.db.GetContext(ctx, &s, `
		SELECT id, user_id, source, test_date, lab_name, notes, created_at
		FROM test_sessions
		WHERE user_id = $1 AND id = $2
	`, userID, sessionID)
	if err != nil {
		return nil, notFound(err, "test session", sessionID.String())
	}
	return &s, nil
}

// DeleteSession removes a session row
func (r *SessionRepositoryImpl) DeleteSession(ctx context.Context, userID core.UserID, sessionID core.SessionID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM test_sessions WHERE user_id = $1 AND id = $2
	`, userID, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("test session", sessionID.String())
	}
	return nil
}

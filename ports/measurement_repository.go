package ports

import (
	"context"
	"time"

	"flomentum/domain/core"
	"flomentum/domain/measurement"
)

// SessionRepository persists test sessions
type SessionRepository interface {
	// CreateSession inserts a new session row
	CreateSession(ctx context.Context, session *measurement.Session) error

	// GetSession retrieves a session by owner and id
	GetSession(ctx context.Context, userID core.UserID, sessionID core.SessionID) (*measurement.Session, error)

	// DeleteSession removes a session; callers delete measurements first
	DeleteSession(ctx context.Context, userID core.UserID, sessionID core.SessionID) error
}

// MeasurementRepository persists normalised measurements and answers
// history and dedup queries.
type MeasurementRepository interface {
	// CreateMeasurement inserts one measurement row
	CreateMeasurement(ctx context.Context, m *measurement.Measurement) error

	// GetMeasurement retrieves a measurement by owner and id
	GetMeasurement(ctx context.Context, userID core.UserID, id core.MeasurementID) (*measurement.Measurement, error)

	// UpdateMeasurement overwrites an edited measurement
	UpdateMeasurement(ctx context.Context, m *measurement.Measurement) error

	// DeleteMeasurement removes a measurement; returns the number of
	// measurements remaining in its session so the caller can collapse
	// empty sessions
	DeleteMeasurement(ctx context.Context, userID core.UserID, id core.MeasurementID) (remaining int, sessionID core.SessionID, err error)

	// GetHistory returns measurements for a biomarker, newest first
	GetHistory(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, limit int) ([]*measurement.Measurement, error)

	// GetLatestFor returns the most recent measurement for a biomarker
	GetLatestFor(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID) (*measurement.Measurement, error)

	// FindNearDuplicate returns an existing measurement matching
	// (user, biomarker, test date) whose canonical value is within the
	// dedup epsilon, or nil
	FindNearDuplicate(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, valueCanonical float64, testDate time.Time, epsilonFraction float64) (*measurement.Measurement, error)

	// ListSessionMeasurements returns every measurement in a session
	ListSessionMeasurements(ctx context.Context, userID core.UserID, sessionID core.SessionID) ([]*measurement.Measurement, error)
}

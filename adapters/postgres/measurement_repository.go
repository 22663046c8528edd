package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"flomentum/domain/biomarker"
	"flomentum/domain/core"
	"flomentum/domain/measurement"
	"flomentum/ports"
)

// MeasurementRepositoryImpl implements MeasurementRepository for PostgreSQL
type MeasurementRepositoryImpl struct {
	db *sqlx.DB
}

// NewMeasurementRepository creates a new PostgreSQL measurement repository
func NewMeasurementRepository(db *sqlx.DB) ports.MeasurementRepository {
	return &MeasurementRepositoryImpl{db: db}
}

// measurementRow is the scan target; JSONB columns are unmarshalled after scan
type measurementRow struct {
	ID             core.MeasurementID `db:"id"`
	SessionID      core.SessionID     `db:"session_id"`
	UserID         core.UserID        `db:"user_id"`
	BiomarkerID    core.BiomarkerID   `db:"biomarker_id"`
	Source         measurement.Source `db:"source"`
	ValueRaw       float64            `db:"value_raw"`
	UnitRaw        string             `db:"unit_raw"`
	ValueCanonical float64            `db:"value_canonical"`
	UnitCanonical  string             `db:"unit_canonical"`
	ValueDisplay   float64            `db:"value_display"`
	UnitDisplay    string             `db:"unit_display"`
	ReferenceLow   *float64           `db:"reference_low"`
	ReferenceHigh  *float64           `db:"reference_high"`
	Flags          []byte             `db:"flags"`
	Warnings       []byte             `db:"warnings"`
	Context        []byte             `db:"normalization_context"`
	TestDate       time.Time          `db:"test_date"`
	CreatedAt      time.Time          `db:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at"`
	UpdatedBy      *core.UserID       `db:"updated_by"`
}

const measurementColumns = `id, session_id, user_id, biomarker_id, source,
	value_raw, unit_raw, value_canonical, unit_canonical, value_display, unit_display,
	reference_low, reference_high, flags, warnings, normalization_context,
	test_date, created_at, updated_at, updated_by`

func (row *measurementRow) toDomain() (*measurement.Measurement, error) {
	m := &measurement.Measurement{
		ID:             row.ID,
		SessionID:      row.SessionID,
		UserID:         row.UserID,
		BiomarkerID:    row.BiomarkerID,
		Source:         row.Source,
		ValueRaw:       row.ValueRaw,
		UnitRaw:        row.UnitRaw,
		ValueCanonical: row.ValueCanonical,
		UnitCanonical:  row.UnitCanonical,
		ValueDisplay:   row.ValueDisplay,
		UnitDisplay:    row.UnitDisplay,
		ReferenceLow:   row.ReferenceLow,
		ReferenceHigh:  row.ReferenceHigh,
		TestDate:       row.TestDate,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
		UpdatedBy:      row.UpdatedBy,
	}
	if len(row.Flags) > 0 {
		if err := json.Unmarshal(row.Flags, &m.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags for %s: %w", row.ID, err)
		}
	}
	if len(row.Warnings) > 0 {
		if err := json.Unmarshal(row.Warnings, &m.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings for %s: %w", row.ID, err)
		}
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &m.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context for %s: %w", row.ID, err)
		}
	}
	return m, nil
}

func marshalMeasurement(m *measurement.Measurement) (flags, warnings, contextJSON []byte, err error) {
	if flags, err = json.Marshal(orEmptyFlags(m.Flags)); err != nil {
		return nil, nil, nil, err
	}
	if warnings, err = json.Marshal(orEmptyStrings(m.Warnings)); err != nil {
		return nil, nil, nil, err
	}
	if contextJSON, err = json.Marshal(m.Context); err != nil {
		return nil, nil, nil, err
	}
	return flags, warnings, contextJSON, nil
}

func orEmptyFlags(f []biomarker.Flag) []biomarker.Flag {
	if f == nil {
		return []biomarker.Flag{}
	}
	return f
}

func orEmptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// CreateMeasurement inserts one measurement row
func (r *MeasurementRepositoryImpl) CreateMeasurement(ctx context.Context, m *measurement.Measurement) error {
	flags, warnings, contextJSON, err := marshalMeasurement(m)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO measurements (`+measurementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, m.ID, m.SessionID, m.UserID, m.BiomarkerID, m.Source,
		m.ValueRaw, m.UnitRaw, m.ValueCanonical, m.UnitCanonical, m.ValueDisplay, m.UnitDisplay,
		m.ReferenceLow, m.ReferenceHigh, flags, warnings, contextJSON,
		m.TestDate, m.CreatedAt, m.UpdatedAt, m.UpdatedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s already recorded in session %s",
			core.ErrDuplicateMeasurement, m.BiomarkerID, m.SessionID)
	}
	return err
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetMeasurement retrieves a measurement by owner and id
func (r *MeasurementRepositoryImpl) GetMeasurement(ctx context.Context, userID core.UserID, id core.MeasurementID) (*measurement.Measurement, error) {
	var row measurementRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+measurementColumns+`
		FROM measurements
		WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		return nil, notFound(err, "measurement", id.String())
	}
	return row.toDomain()
}

// UpdateMeasurement overwrites an edited measurement
func (r *MeasurementRepositoryImpl) UpdateMeasurement(ctx context.Context, m *measurement.Measurement) error {
	flags, warnings, contextJSON, err := marshalMeasurement(m)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE measurements
		SET biomarker_id = $3, source = $4, value_raw = $5, unit_raw = $6,
		    value_canonical = $7, unit_canonical = $8, value_display = $9, unit_display = $10,
		    reference_low = $11, reference_high = $12, flags = $13, warnings = $14,
		    normalization_context = $15, updated_at = $16, updated_by = $17
		WHERE user_id = $1 AND id = $2
	`, m.UserID, m.ID, m.BiomarkerID, m.Source, m.ValueRaw, m.UnitRaw,
		m.ValueCanonical, m.UnitCanonical, m.ValueDisplay, m.UnitDisplay,
		m.ReferenceLow, m.ReferenceHigh, flags, warnings,
		contextJSON, m.UpdatedAt, m.UpdatedBy)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("measurement", m.ID.String())
	}
	return nil
}

// DeleteMeasurement removes a measurement and reports how many remain in
// its session, so the caller can collapse an emptied session.
func (r *MeasurementRepositoryImpl) DeleteMeasurement(ctx context.Context, userID core.UserID, id core.MeasurementID) (int, core.SessionID, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	var sessionID core.SessionID
	err = tx.GetContext(ctx, &sessionID, `
		DELETE FROM measurements WHERE user_id = $1 AND id = $2 RETURNING session_id
	`, userID, id)
	if err != nil {
		return 0, "", notFound(err, "measurement", id.String())
	}

	var remaining int
	err = tx.GetContext(ctx, &remaining, `
		SELECT COUNT(*) FROM measurements WHERE user_id = $1 AND session_id = $2
	`, userID, sessionID)
	if err != nil {
		return 0, "", err
	}

	return remaining, sessionID, tx.Commit()
}

// GetHistory returns measurements for a biomarker, newest first
func (r *MeasurementRepositoryImpl) GetHistory(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, limit int) ([]*measurement.Measurement, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []measurementRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+measurementColumns+`
		FROM measurements
		WHERE user_id = $1 AND biomarker_id = $2
		ORDER BY test_date DESC, created_at DESC
		LIMIT $3
	`, userID, biomarkerID, limit)
	if err != nil {
		return nil, err
	}
	return rowsToDomain(rows)
}

// GetLatestFor returns the most recent measurement for a biomarker
func (r *MeasurementRepositoryImpl) GetLatestFor(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID) (*measurement.Measurement, error) {
	var row measurementRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+measurementColumns+`
		FROM measurements
		WHERE user_id = $1 AND biomarker_id = $2
		ORDER BY test_date DESC, created_at DESC
		LIMIT 1
	`, userID, biomarkerID)
	if err != nil {
		return nil, notFound(err, "measurement", biomarkerID.String())
	}
	return row.toDomain()
}

// FindNearDuplicate returns an existing measurement on the same test date
// whose canonical value lies within the epsilon fraction, or nil.
func (r *MeasurementRepositoryImpl) FindNearDuplicate(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, valueCanonical float64, testDate time.Time, epsilonFraction float64) (*measurement.Measurement, error) {
	var row measurementRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+measurementColumns+`
		FROM measurements
		WHERE user_id = $1 AND biomarker_id = $2
		  AND test_date::date = $3::date
		  AND abs(value_canonical - $4) < $5 * greatest(abs(value_canonical), abs($4))
		LIMIT 1
	`, userID, biomarkerID, testDate, valueCanonical, epsilonFraction)
	if errors.Is(err, sql.ErrNoRows) {
		// Exact zero needs a separate check: the epsilon product is zero
		if valueCanonical == 0 {
			err = r.db.GetContext(ctx, &row, `
				SELECT `+measurementColumns+`
				FROM measurements
				WHERE user_id = $1 AND biomarker_id = $2
				  AND test_date::date = $3::date
				  AND value_canonical = 0
				LIMIT 1
			`, userID, biomarkerID, testDate)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// ListSessionMeasurements returns every measurement in a session
func (r *MeasurementRepositoryImpl) ListSessionMeasurements(ctx context.Context, userID core.UserID, sessionID core.SessionID) ([]*measurement.Measurement, error) {
	var rows []measurementRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+measurementColumns+`
		FROM measurements
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at
	`, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return rowsToDomain(rows)
}

func rowsToDomain(rows []measurementRow) ([]*measurement.Measurement, error) {
	out := make([]*measurement.Measurement, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

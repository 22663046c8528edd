// Package app orchestrates the domain engines over the ports: measurement
// CRUD, the lab pipeline, wearable ingest, scoring, baselines, the forecast
// worker, and insight generation.
package app

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flomentum/adapters/excel"
	"flomentum/domain/biomarker"
	"flomentum/domain/core"
	"flomentum/domain/measurement"
	"flomentum/domain/normalize"
	"flomentum/domain/profile"
	"flomentum/ports"
)

// MeasurementService owns manual entry, edits, deletion, history, and the
// spreadsheet bulk import. Every write path goes through the normalisation
// engine; nothing is persisted raw.
type MeasurementService struct {
	catalog         *biomarker.Catalog
	sessions        ports.SessionRepository
	measurements    ports.MeasurementRepository
	profiles        ports.ProfileRepository
	epsilonFraction float64
	log             zerolog.Logger
}

// NewMeasurementService wires the measurement service
func NewMeasurementService(
	catalog *biomarker.Catalog,
	sessions ports.SessionRepository,
	measurements ports.MeasurementRepository,
	profiles ports.ProfileRepository,
	epsilonFraction float64,
	log zerolog.Logger,
) *MeasurementService {
	return &MeasurementService{
		catalog:         catalog,
		sessions:        sessions,
		measurements:    measurements,
		profiles:        profiles,
		epsilonFraction: epsilonFraction,
		log:             log.With().Str("component", "measurements").Logger(),
	}
}

// CreateOutcome is the per-item result of a batch create: persisted
// measurements plus the rows that failed, for a 207-style response.
type CreateOutcome struct {
	Session   *measurement.Session
	Persisted []*measurement.Measurement
	Failed    []ItemFailure
}

// ItemFailure records one input that could not be persisted
type ItemFailure struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Partial reports whether the batch succeeded only in part
func (o *CreateOutcome) Partial() bool {
	return len(o.Persisted) > 0 && len(o.Failed) > 0
}

// CreateManual normalises and persists a batch of manual entries under one
// new session. Per-item failures are collected, not fatal; duplicates are
// rejected against both the batch and history.
func (s *MeasurementService) CreateManual(ctx context.Context, userID core.UserID, inputs []normalize.Input, testDate time.Time, labName string) (*CreateOutcome, error) {
	if len(inputs) == 0 {
		return nil, core.NewValidationError("measurements", "empty batch")
	}
	nctx, err := s.normalisationContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	session := &measurement.Session{
		ID:        core.SessionID(core.NewID()),
		UserID:    userID,
		Source:    measurement.SourceManual,
		TestDate:  testDate,
		LabName:   labName,
		CreatedAt: time.Now().UTC(),
	}

	outcome, err := s.persistBatch(ctx, session, inputs, nctx, measurement.SourceManual, testDate)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("user_id", userID.String()).
		Int("persisted", len(outcome.Persisted)).
		Int("failed", len(outcome.Failed)).
		Msg("manual batch created")
	return outcome, nil
}

// ImportSpreadsheet runs an XLSX or CSV upload through the same
// normalisation and dedup path as manual entry. Each distinct test date in
// the sheet gets its own session.
func (s *MeasurementService) ImportSpreadsheet(ctx context.Context, userID core.UserID, src io.Reader, filename string) (*CreateOutcome, error) {
	reader := &excel.Reader{DefaultTestDate: time.Now().UTC()}

	var parsed *excel.ImportResult
	var err error
	if isCSV(filename) {
		parsed, err = reader.ReadCSV(src)
	} else {
		parsed, err = reader.ReadXLSX(src)
	}
	if err != nil {
		return nil, core.NewValidationError("file", err.Error())
	}

	nctx, cerr := s.normalisationContext(ctx, userID)
	if cerr != nil {
		return nil, cerr
	}

	// One session per sheet; the earliest row date becomes the session date
	testDate := parsed.Rows[0].TestDate
	for _, row := range parsed.Rows {
		if row.TestDate.Before(testDate) {
			testDate = row.TestDate
		}
	}
	session := &measurement.Session{
		ID:        core.SessionID(core.NewID()),
		UserID:    userID,
		Source:    measurement.SourceImport,
		TestDate:  testDate,
		LabName:   filename,
		CreatedAt: time.Now().UTC(),
	}

	inputs := make([]normalize.Input, len(parsed.Rows))
	for i, row := range parsed.Rows {
		inputs[i] = normalize.Input{Name: row.Biomarker.Name, Value: row.Biomarker.Value, Unit: row.Biomarker.Unit}
	}
	outcome, err := s.persistBatch(ctx, session, inputs, nctx, measurement.SourceImport, testDate)
	if err != nil {
		return nil, err
	}
	for _, skipped := range parsed.Skipped {
		outcome.Failed = append(outcome.Failed, ItemFailure{Index: skipped.Row, Name: "row", Reason: skipped.Reason})
	}
	return outcome, nil
}

// persistBatch normalises every input and persists the survivors under the
// given session. The session row is only created when something persists.
func (s *MeasurementService) persistBatch(ctx context.Context, session *measurement.Session, inputs []normalize.Input, nctx normalize.Context, source measurement.Source, testDate time.Time) (*CreateOutcome, error) {
	engine := normalize.NewEngine(s.catalog.Snapshot())
	results, errs := engine.NormaliseBatch(inputs, nctx)

	outcome := &CreateOutcome{Session: session}
	seen := make(map[core.BiomarkerID]bool)
	var pending []*measurement.Measurement

	for i, res := range results {
		if errs[i] != nil {
			outcome.Failed = append(outcome.Failed, ItemFailure{Index: i, Name: inputs[i].Name, Reason: errs[i].Error()})
			continue
		}
		if seen[res.BiomarkerID] {
			outcome.Failed = append(outcome.Failed, ItemFailure{
				Index:  i,
				Name:   inputs[i].Name,
				Reason: core.NewDuplicateError(res.CanonicalName, res.ValueCanonical).Error(),
			})
			continue
		}
		dup, err := s.measurements.FindNearDuplicate(ctx, session.UserID, res.BiomarkerID, res.ValueCanonical, testDate, s.epsilonFraction)
		if err != nil {
			return nil, err
		}
		if dup != nil {
			outcome.Failed = append(outcome.Failed, ItemFailure{
				Index:  i,
				Name:   inputs[i].Name,
				Reason: core.NewDuplicateError(res.CanonicalName, res.ValueCanonical).Error(),
			})
			continue
		}
		seen[res.BiomarkerID] = true
		pending = append(pending, measurement.FromResult(res, session.UserID, session.ID, source, testDate))
	}

	if len(pending) == 0 {
		return outcome, nil
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	for _, m := range pending {
		if err := s.measurements.CreateMeasurement(ctx, m); err != nil {
			return nil, err
		}
		outcome.Persisted = append(outcome.Persisted, m)
	}
	return outcome, nil
}

// Update re-normalises an edited measurement in place. An AI-extracted
// measurement becomes corrected.
func (s *MeasurementService) Update(ctx context.Context, userID core.UserID, id core.MeasurementID, input normalize.Input) (*measurement.Measurement, error) {
	m, err := s.measurements.GetMeasurement(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	nctx, err := s.normalisationContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	engine := normalize.NewEngine(s.catalog.Snapshot())
	res, err := engine.Normalise(input, nctx)
	if err != nil {
		return nil, err
	}
	m.ApplyEdit(res, userID)
	if err := s.measurements.UpdateMeasurement(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a measurement and collapses its session when it was the
// last one.
func (s *MeasurementService) Delete(ctx context.Context, userID core.UserID, id core.MeasurementID) error {
	remaining, sessionID, err := s.measurements.DeleteMeasurement(ctx, userID, id)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := s.sessions.DeleteSession(ctx, userID, sessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("empty session cleanup failed")
		}
	}
	return nil
}

// History returns a biomarker's measurements, newest first
func (s *MeasurementService) History(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, limit int) ([]*measurement.Measurement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.measurements.GetHistory(ctx, userID, biomarkerID, limit)
}

// normalisationContext builds the range-selection context from the profile.
// A missing profile is fine: every context field is optional.
func (s *MeasurementService) normalisationContext(ctx context.Context, userID core.UserID) (normalize.Context, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if core.IsNotFoundError(err) {
			return normalize.Context{}, nil
		}
		return normalize.Context{}, err
	}
	return contextFromProfile(p), nil
}

func contextFromProfile(p *profile.Profile) normalize.Context {
	var nctx normalize.Context
	if p == nil {
		return nctx
	}
	if p.Sex == biomarker.SexMale || p.Sex == biomarker.SexFemale {
		sex := p.Sex
		nctx.Sex = &sex
	}
	if age := p.AgeYears(time.Now().UTC()); age > 0 {
		f := float64(age)
		nctx.AgeYears = &f
	}
	return nctx
}

func isCSV(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

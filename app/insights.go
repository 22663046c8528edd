package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"flomentum/domain/core"
	"flomentum/domain/insight"
	"flomentum/ports"
)

// InsightService serves AI biomarker insights through the fingerprint cache
// and owns the daily insight cards plus the life-event log. A new canonical
// value always produces a new fingerprint, so stale payloads are never
// served as current; when live generation fails, a past-TTL entry for the
// same fingerprint may be served, labelled stale.
type InsightService struct {
	measurements ports.MeasurementRepository
	profiles     ports.ProfileRepository
	cards        ports.InsightRepository
	cache        ports.InsightCache
	generator    ports.InsightGenerator
	ttlDays      int
	log          zerolog.Logger
}

// NewInsightService wires the insight service
func NewInsightService(
	measurements ports.MeasurementRepository,
	profiles ports.ProfileRepository,
	cards ports.InsightRepository,
	cache ports.InsightCache,
	generator ports.InsightGenerator,
	ttlDays int,
	log zerolog.Logger,
) *InsightService {
	if ttlDays <= 0 {
		ttlDays = insight.DefaultTTLDays
	}
	return &InsightService{
		measurements: measurements,
		profiles:     profiles,
		cards:        cards,
		cache:        cache,
		generator:    generator,
		ttlDays:      ttlDays,
		log:          log.With().Str("component", "insights").Logger(),
	}
}

// BiomarkerInsight returns the AI insight for a user's latest measurement
// of one biomarker: cached when fresh, generated live on miss, stale
// fallback only when the vendor is down and the fingerprint still matches.
func (s *InsightService) BiomarkerInsight(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID) (*insight.Envelope, error) {
	latest, err := s.measurements.GetLatestFor(ctx, userID, biomarkerID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, core.NewNotFoundError("measurement", string(biomarkerID))
	}
	fingerprint := latest.Fingerprint()

	if entry, err := s.cache.Get(ctx, userID, biomarkerID, fingerprint); err == nil && entry != nil {
		return &insight.Envelope{Payload: entry.Payload, Stale: false, GeneratedAt: entry.GeneratedAt}, nil
	}

	payload, genErr := s.generateLive(ctx, userID, biomarkerID)
	if genErr == nil {
		now := time.Now().UTC()
		entry := &insight.CacheEntry{
			UserID:      userID,
			BiomarkerID: biomarkerID,
			Fingerprint: fingerprint,
			GeneratedAt: now,
			ExpiresAt:   now.AddDate(0, 0, s.ttlDays),
			Payload:     payload,
		}
		if err := s.cache.Put(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("biomarker_id", string(biomarkerID)).Msg("insight cache write failed")
		}
		return &insight.Envelope{Payload: payload, Stale: false, GeneratedAt: now}, nil
	}

	if !errors.Is(genErr, core.ErrExternalAIUnavailable) {
		return nil, genErr
	}
	// Vendor down: a past-TTL entry is acceptable as long as it describes
	// the same measurement value
	stale, err := s.cache.GetAny(ctx, userID, biomarkerID)
	if err == nil && stale != nil && stale.Fingerprint == fingerprint {
		s.log.Info().Str("biomarker_id", string(biomarkerID)).Msg("serving stale insight fallback")
		return &insight.Envelope{Payload: stale.Payload, Stale: true, GeneratedAt: stale.GeneratedAt}, nil
	}
	return nil, genErr
}

func (s *InsightService) generateLive(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID) ([]byte, error) {
	history, err := s.measurements.GetHistory(ctx, userID, biomarkerID, 5)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, core.NewNotFoundError("measurement", string(biomarkerID))
	}
	latest := history[0]

	req := ports.BiomarkerInsightRequest{
		BiomarkerName:  string(latest.BiomarkerID),
		ValueCanonical: latest.ValueCanonical,
		UnitCanonical:  latest.UnitCanonical,
		ReferenceLow:   latest.ReferenceLow,
		ReferenceHigh:  latest.ReferenceHigh,
	}
	for _, f := range latest.Flags {
		req.Flags = append(req.Flags, string(f))
	}
	for _, m := range history {
		req.TrendValues = append(req.TrendValues, m.ValueCanonical)
	}
	if p, err := s.profiles.GetProfile(ctx, userID); err == nil && p != nil {
		req.AgeYears = p.AgeYears(time.Now().UTC())
		req.Sex = string(p.Sex)
	}
	return s.generator.GenerateBiomarkerInsight(ctx, req)
}

// DailyInsights lists the user's insight cards, newest first
func (s *InsightService) DailyInsights(ctx context.Context, userID core.UserID, includeDismissed bool) ([]*insight.Card, error) {
	return s.cards.ListCards(ctx, userID, includeDismissed, 50)
}

// Dismiss marks one card dismissed
func (s *InsightService) Dismiss(ctx context.Context, userID core.UserID, id core.InsightID) error {
	return s.cards.DismissCard(ctx, userID, id)
}

// LogEvent appends one life event for the correlation scan to anchor on
func (s *InsightService) LogEvent(ctx context.Context, userID core.UserID, kind insight.LifeEventKind, date core.LocalDate, note string) (*insight.LifeEvent, error) {
	switch kind {
	case insight.EventAlcohol, insight.EventLateMeal, insight.EventTravel, insight.EventHighStress, insight.EventIllness:
	default:
		return nil, core.NewValidationError("kind", fmt.Sprintf("unknown life event kind %q", kind))
	}
	event := &insight.LifeEvent{
		ID:        core.NewID(),
		UserID:    userID,
		LocalDate: date,
		Kind:      kind,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.cards.LogEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// ListEvents returns life events in a date window
func (s *InsightService) ListEvents(ctx context.Context, userID core.UserID, from, to core.LocalDate) ([]insight.LifeEvent, error) {
	return s.cards.ListEvents(ctx, userID, from, to)
}

package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/measurement"
	"flomentum/domain/profile"
	"flomentum/domain/scoring"
	"flomentum/domain/sleep"
	"flomentum/ports"
)

// ScoringService serves the daily composite scores with a freshness-checked
// cache: a cached score is only returned when it was generated at or after
// the last update of every input it was computed from. Anything older is
// recomputed.
type ScoringService struct {
	rows            ports.DailyRepository
	sleeps          ports.SleepRepository
	baselines       ports.BaselineRepository
	profiles        ports.ProfileRepository
	measurements    ports.MeasurementRepository
	cache           ports.ScoreCache
	calibrationDays int
	log             zerolog.Logger
}

// NewScoringService wires the scoring service
func NewScoringService(
	rows ports.DailyRepository,
	sleeps ports.SleepRepository,
	baselines ports.BaselineRepository,
	profiles ports.ProfileRepository,
	measurements ports.MeasurementRepository,
	cache ports.ScoreCache,
	calibrationDays int,
	log zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		rows:            rows,
		sleeps:          sleeps,
		baselines:       baselines,
		profiles:        profiles,
		measurements:    measurements,
		cache:           cache,
		calibrationDays: calibrationDays,
		log:             log.With().Str("component", "scoring").Logger(),
	}
}

// scoringInputs is everything the engines consume for one (user, date)
type scoringInputs struct {
	profile   *profile.Profile
	today     *daily.MetricRow
	night     *sleep.Night
	recent    []*sleep.Night
	history   []*daily.MetricRow
	baselines baseline.Set
	config    scoring.Config
	date      core.LocalDate
}

// ReadinessToday returns today's readiness score, cached when fresh
func (s *ScoringService) ReadinessToday(ctx context.Context, userID core.UserID) (*scoring.Score, error) {
	in, err := s.loadInputs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cached := s.freshCached(ctx, userID, scoring.KindReadiness, in); cached != nil {
		return cached, nil
	}

	score, err := scoring.ComputeReadiness(scoring.ReadinessInput{
		Today:     in.today,
		LastNight: in.night,
		History:   in.history,
		Baselines: in.baselines,
		Config:    in.config,
	})
	if err != nil {
		return nil, err
	}
	s.store(ctx, userID, score)
	return score, nil
}

// SleepToday returns last night's sleep quality score, cached when fresh
func (s *ScoringService) SleepToday(ctx context.Context, userID core.UserID) (*scoring.Score, error) {
	in, err := s.loadInputs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cached := s.freshCached(ctx, userID, scoring.KindSleep, in); cached != nil {
		return cached, nil
	}

	score, err := scoring.ComputeSleep(scoring.SleepInput{
		Night:        in.night,
		RecentNights: in.recent,
		Today:        in.today,
		Baselines:    in.baselines,
		Config:       in.config,
	})
	if err != nil {
		return nil, err
	}
	s.store(ctx, userID, score)
	return score, nil
}

// MomentumToday returns the full momentum breakdown. Momentum is always
// computed fresh (the factors are the product); the composite score is still
// written through the cache for the weekly view.
func (s *ScoringService) MomentumToday(ctx context.Context, userID core.UserID) (*scoring.Momentum, error) {
	in, err := s.loadInputs(ctx, userID)
	if err != nil {
		return nil, err
	}
	m, err := scoring.ComputeMomentum(scoring.MomentumInput{
		Today:     in.today,
		LastNight: in.night,
		Baselines: in.baselines,
		Config:    in.config,
	})
	if err != nil {
		return nil, err
	}
	s.store(ctx, userID, &m.Score)
	return m, nil
}

// WeeklyMomentum folds the trailing 7 days of momentum scores. Past days
// come from the cache when present, otherwise from their stored rows.
func (s *ScoringService) WeeklyMomentum(ctx context.Context, userID core.UserID) (*scoring.WeeklyMomentum, error) {
	in, err := s.loadInputs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var scores []scoring.Score
	for offset := -6; offset <= 0; offset++ {
		date := in.date.AddDays(offset)
		if cached, err := s.cache.GetScore(ctx, userID, scoring.KindMomentum, date); err == nil && cached != nil {
			scores = append(scores, *cached)
			continue
		}
		row, err := s.rows.GetRow(ctx, userID, date)
		if err != nil || row == nil {
			continue
		}
		night, _ := s.sleeps.GetNight(ctx, userID, date)
		m, err := scoring.ComputeMomentum(scoring.MomentumInput{
			Today:     row,
			LastNight: night,
			Baselines: in.baselines,
			Config:    in.config,
		})
		if err != nil {
			continue
		}
		scores = append(scores, m.Score)
	}
	return scoring.SummarizeWeek(scores)
}

// BioAge estimates biological age from the latest panel measurements
func (s *ScoringService) BioAge(ctx context.Context, userID core.UserID) (*scoring.BioAge, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	age := p.AgeYears(time.Now().UTC())
	if age <= 0 {
		return nil, core.NewValidationError("birth_date", "required for biological age")
	}

	latest := make(map[core.BiomarkerID]*measurement.Measurement)
	for _, marker := range scoring.DefaultBioAgePanel {
		m, err := s.measurements.GetLatestFor(ctx, userID, marker.BiomarkerID)
		if err != nil || m == nil {
			continue
		}
		latest[marker.BiomarkerID] = m
	}
	return scoring.ComputeBioAge(userID, float64(age), scoring.DefaultBioAgePanel, latest)
}

// loadInputs gathers the scoring inputs for today, in parallel
func (s *ScoringService) loadInputs(ctx context.Context, userID core.UserID) (*scoringInputs, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil && !core.IsNotFoundError(err) {
		return nil, err
	}

	timezone := "UTC"
	cfg := scoring.Config{CalibrationDays: s.calibrationDays}
	if p != nil {
		if p.TimezoneName != "" {
			timezone = p.TimezoneName
		}
		if p.SleepTargetH != nil {
			cfg.SleepTargetHours = *p.SleepTargetH
		}
		if p.StepTarget != nil {
			cfg.StepTarget = *p.StepTarget
		}
		cfg.AgeYears = float64(p.AgeYears(time.Now().UTC()))
	}

	in := &scoringInputs{
		profile: p,
		config:  cfg,
		date:    core.NewLocalDate(time.Now().UTC(), timezone),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		row, err := s.rows.GetRow(gctx, userID, in.date)
		if err != nil && !core.IsNotFoundError(err) {
			return err
		}
		in.today = row
		return nil
	})
	g.Go(func() error {
		night, err := s.sleeps.GetNight(gctx, userID, in.date)
		if err != nil && !core.IsNotFoundError(err) {
			return err
		}
		in.night = night
		return nil
	})
	g.Go(func() error {
		recent, err := s.sleeps.ListRecentNights(gctx, userID, 7)
		if err != nil && !core.IsNotFoundError(err) {
			return err
		}
		in.recent = recent
		return nil
	})
	g.Go(func() error {
		rows, err := s.rows.ListRows(gctx, userID, in.date.AddDays(-27), in.date.AddDays(-1))
		if err != nil && !core.IsNotFoundError(err) {
			return err
		}
		in.history = rows
		return nil
	})
	g.Go(func() error {
		set, err := s.baselines.GetSet(gctx, userID)
		if err != nil && !core.IsNotFoundError(err) {
			return err
		}
		in.baselines = set
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// freshCached returns the cached score only when it is at least as new as
// every input the engines consume. Any input updated after generation
// invalidates silently.
func (s *ScoringService) freshCached(ctx context.Context, userID core.UserID, kind scoring.Kind, in *scoringInputs) *scoring.Score {
	cached, err := s.cache.GetScore(ctx, userID, kind, in.date)
	if err != nil || cached == nil {
		return nil
	}
	if cached.GeneratedAt.Before(in.lastInputUpdate()) {
		return nil
	}
	return cached
}

// lastInputUpdate is the newest updated_at across the day's row, last
// night, and the baseline set. The nightly baseline refresh moves this
// forward, so scores cached before it are recomputed.
func (in *scoringInputs) lastInputUpdate() time.Time {
	var newest time.Time
	if in.today != nil {
		newest = in.today.UpdatedAt
	}
	if in.night != nil && in.night.UpdatedAt.After(newest) {
		newest = in.night.UpdatedAt
	}
	for _, windows := range in.baselines {
		for _, b := range windows {
			if b != nil && b.UpdatedAt.After(newest) {
				newest = b.UpdatedAt
			}
		}
	}
	return newest
}

func (s *ScoringService) store(ctx context.Context, userID core.UserID, score *scoring.Score) {
	if err := s.cache.PutScore(ctx, userID, score); err != nil {
		s.log.Warn().Err(err).Str("kind", string(score.Kind)).Msg("score cache write failed")
	}
}

package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
	"flomentum/ports"
)

// BaselineService maintains the rolling personal baselines. The nightly
// refresh runs per-timezone so every user is recomputed in their own early
// morning, after the previous day's data has settled.
type BaselineService struct {
	rows      ports.DailyRepository
	baselines ports.BaselineRepository
	profiles  ports.ProfileRepository
	localHour int
	log       zerolog.Logger
}

// NewBaselineService wires the baseline service
func NewBaselineService(
	rows ports.DailyRepository,
	baselines ports.BaselineRepository,
	profiles ports.ProfileRepository,
	localHour int,
	log zerolog.Logger,
) *BaselineService {
	return &BaselineService{
		rows:      rows,
		baselines: baselines,
		profiles:  profiles,
		localHour: localHour,
		log:       log.With().Str("component", "baselines").Logger(),
	}
}

// RefreshUser recomputes and stores every baseline window for one user
func (s *BaselineService) RefreshUser(ctx context.Context, userID core.UserID) (baseline.Set, error) {
	timezone := "UTC"
	if p, err := s.profiles.GetProfile(ctx, userID); err == nil && p != nil && p.TimezoneName != "" {
		timezone = p.TimezoneName
	}
	asOf := core.NewLocalDate(time.Now().UTC(), timezone)

	// 90 days covers the widest window
	rows, err := s.rows.ListRows(ctx, userID, asOf.AddDays(-89), asOf)
	if err != nil && !core.IsNotFoundError(err) {
		return nil, err
	}

	set := baseline.Compute(userID, rows, asOf)
	if err := s.baselines.SaveSet(ctx, userID, set); err != nil {
		return nil, err
	}
	return set, nil
}

// RefreshDue recomputes baselines for every active user whose local clock
// is currently at the configured refresh hour. Safe to call every hour;
// each user matches exactly once per day.
func (s *BaselineService) RefreshDue(ctx context.Context, now time.Time) error {
	users, err := s.profiles.ListActiveUsers(ctx, 10000)
	if err != nil {
		return err
	}

	refreshed := 0
	for _, userID := range users {
		p, err := s.profiles.GetProfile(ctx, userID)
		if err != nil {
			continue
		}
		if now.In(p.Location()).Hour() != s.localHour {
			continue
		}
		if _, err := s.RefreshUser(ctx, userID); err != nil {
			s.log.Error().Err(err).Str("user_id", userID.String()).Msg("baseline refresh failed")
			continue
		}
		refreshed++
	}
	if refreshed > 0 {
		s.log.Info().Int("users", refreshed).Msg("baseline refresh pass complete")
	}
	return nil
}

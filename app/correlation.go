package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"flomentum/domain/core"
	"flomentum/domain/insight"
	"flomentum/ports"
)

// minScanGap rate-limits full correlation scans per user
const minScanGap = 24 * time.Hour

// notifyConfidenceFloor is the confidence at which a new card warrants a push
const notifyConfidenceFloor = 0.9

// CorrelationService runs the scheduled correlation scan: daily feature
// rows plus the life-event log in, deduplicated insight cards out.
type CorrelationService struct {
	rows       ports.DailyRepository
	cards      ports.InsightRepository
	baselines  ports.BaselineRepository
	profiles   ports.ProfileRepository
	notifier   ports.Notifier
	correlator *insight.Correlator

	mu       sync.Mutex
	lastScan map[core.UserID]time.Time
	log      zerolog.Logger
}

// NewCorrelationService wires the correlation scanner
func NewCorrelationService(
	rows ports.DailyRepository,
	cards ports.InsightRepository,
	baselines ports.BaselineRepository,
	profiles ports.ProfileRepository,
	notifier ports.Notifier,
	log zerolog.Logger,
) *CorrelationService {
	return &CorrelationService{
		rows:       rows,
		cards:      cards,
		baselines:  baselines,
		profiles:   profiles,
		notifier:   notifier,
		correlator: insight.NewCorrelator(),
		lastScan:   make(map[core.UserID]time.Time),
		log:        log.With().Str("component", "correlation").Logger(),
	}
}

// ScanUser runs one full scan for a user, persisting any new patterns.
// Scans within 24 hours of the previous one are skipped unless forced.
func (s *CorrelationService) ScanUser(ctx context.Context, userID core.UserID, force bool) (int, error) {
	if !s.claimScan(userID, force) {
		return 0, nil
	}

	timezone := "UTC"
	if p, err := s.profiles.GetProfile(ctx, userID); err == nil && p != nil && p.TimezoneName != "" {
		timezone = p.TimezoneName
	}
	today := core.NewLocalDate(time.Now().UTC(), timezone)
	from := today.AddDays(-(s.correlator.LookbackDays - 1))

	rows, err := s.rows.ListRows(ctx, userID, from, today)
	if err != nil && !core.IsNotFoundError(err) {
		return 0, err
	}
	events, err := s.cards.ListEvents(ctx, userID, from, today)
	if err != nil && !core.IsNotFoundError(err) {
		return 0, err
	}
	baselines, err := s.baselines.GetSet(ctx, userID)
	if err != nil && !core.IsNotFoundError(err) {
		return 0, err
	}

	saved := 0
	for _, card := range s.correlator.Scan(userID, rows, events, baselines, today) {
		exists, err := s.cards.SignatureExists(ctx, userID, card.PatternSignature)
		if err != nil {
			return saved, err
		}
		if exists {
			continue
		}
		card := card
		if err := s.cards.SaveCard(ctx, &card); err != nil {
			return saved, err
		}
		saved++
		if card.ConfidenceScore >= notifyConfidenceFloor {
			if err := s.notifier.Notify(ctx, userID, "New health pattern found", card.Title); err != nil {
				s.log.Warn().Err(err).Msg("insight notification failed")
			}
		}
	}
	if saved > 0 {
		s.log.Info().Str("user_id", userID.String()).Int("cards", saved).Msg("correlation scan saved new cards")
	}
	return saved, nil
}

// ScanAll sweeps every active user, honouring the per-user rate limit
func (s *CorrelationService) ScanAll(ctx context.Context) error {
	users, err := s.profiles.ListActiveUsers(ctx, 10000)
	if err != nil {
		return err
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.ScanUser(ctx, userID, false); err != nil {
			s.log.Error().Err(err).Str("user_id", userID.String()).Msg("correlation scan failed")
		}
	}
	return nil
}

// claimScan reserves a scan slot, enforcing the 24-hour gap
func (s *CorrelationService) claimScan(userID core.UserID, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if !force {
		if last, ok := s.lastScan[userID]; ok && now.Sub(last) < minScanGap {
			return false
		}
	}
	s.lastScan[userID] = now
	return true
}

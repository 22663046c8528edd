package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler drives the recurring background jobs. Every job is safely
// re-runnable, so cadences are approximate.
type Scheduler struct {
	baselines   *BaselineService
	correlation *CorrelationService
	labs        *LabUploadService

	labDrainEvery    time.Duration
	baselineEvery    time.Duration
	correlationEvery time.Duration
	log              zerolog.Logger
}

// NewScheduler wires the scheduled jobs
func NewScheduler(baselines *BaselineService, correlation *CorrelationService, labs *LabUploadService, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		baselines:        baselines,
		correlation:      correlation,
		labs:             labs,
		labDrainEvery:    15 * time.Second,
		baselineEvery:    time.Hour,
		correlationEvery: 6 * time.Hour,
		log:              log.With().Str("component", "scheduler").Logger(),
	}
}

// Run ticks the scheduled jobs until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	labTicker := time.NewTicker(s.labDrainEvery)
	baselineTicker := time.NewTicker(s.baselineEvery)
	correlationTicker := time.NewTicker(s.correlationEvery)
	defer labTicker.Stop()
	defer baselineTicker.Stop()
	defer correlationTicker.Stop()

	s.log.Info().Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return ctx.Err()
		case <-labTicker.C:
			if err := s.labs.DrainPending(ctx, 10); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("lab drain failed")
			}
		case <-baselineTicker.C:
			if err := s.baselines.RefreshDue(ctx, time.Now().UTC()); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("baseline refresh pass failed")
			}
		case <-correlationTicker.C:
			if err := s.correlation.ScanAll(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("correlation sweep failed")
			}
		}
	}
}

package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"flomentum/domain/core"
	"flomentum/domain/forecast"
	"flomentum/ports"
)

// ForecastWorker drains the recompute queue on a fixed poll interval.
// Events sit in the queue for at least the debounce window so bursts
// coalesce; per cycle, at most one recompute runs per user.
type ForecastWorker struct {
	queue    ports.RecomputeQueue
	rows     ports.DailyRepository
	repo     ports.ForecastRepository
	profiles ports.ProfileRepository
	notifier ports.Notifier
	engine   *forecast.Engine

	pollInterval time.Duration
	debounce     time.Duration
	batchSize    int

	// isProcessing blocks re-entrance when a cycle outlasts the poll tick
	isProcessing atomic.Bool
	log          zerolog.Logger
}

// NewForecastWorker wires the worker
func NewForecastWorker(
	queue ports.RecomputeQueue,
	rows ports.DailyRepository,
	repo ports.ForecastRepository,
	profiles ports.ProfileRepository,
	notifier ports.Notifier,
	horizonDays int,
	pollInterval, debounce time.Duration,
	batchSize int,
	log zerolog.Logger,
) *ForecastWorker {
	return &ForecastWorker{
		queue:        queue,
		rows:         rows,
		repo:         repo,
		profiles:     profiles,
		notifier:     notifier,
		engine:       forecast.NewEngine(horizonDays),
		pollInterval: pollInterval,
		debounce:     debounce,
		batchSize:    batchSize,
		log:          log.With().Str("component", "forecast_worker").Logger(),
	}
}

// Run polls until the context is cancelled
func (w *ForecastWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.log.Info().Dur("poll_interval", w.pollInterval).Msg("forecast worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("forecast worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunCycle(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("forecast cycle failed")
			}
		}
	}
}

// RunCycle drains one batch. Re-entrance is refused, not queued.
func (w *ForecastWorker) RunCycle(ctx context.Context) error {
	if !w.isProcessing.CompareAndSwap(false, true) {
		return nil
	}
	defer w.isProcessing.Store(false)

	now := time.Now().UTC()
	events, err := w.queue.FetchReady(ctx, now.Add(-w.debounce), w.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	coalesced := forecast.CoalesceByUser(events)
	processedIDs := make([]core.ID, 0, len(events))

	for _, ev := range coalesced {
		if ctx.Err() != nil {
			break
		}
		if err := w.processUser(ctx, ev); err != nil {
			w.log.Error().Err(err).Str("user_id", ev.UserID.String()).Str("reason", ev.Reason).Msg("recompute failed")
			continue
		}
		// The winning event plus everything it coalesced are done
		for _, e := range events {
			if e.UserID == ev.UserID {
				processedIDs = append(processedIDs, e.EventID)
			}
		}
		if err := w.queue.CompactUser(ctx, ev.UserID, now.Add(-time.Minute)); err != nil {
			w.log.Warn().Err(err).Str("user_id", ev.UserID.String()).Msg("queue compaction failed")
		}
	}

	if len(processedIDs) > 0 {
		if err := w.queue.Delete(ctx, processedIDs); err != nil {
			return err
		}
	}
	w.log.Debug().Int("events", len(events)).Int("users", len(coalesced)).Msg("forecast cycle complete")
	return nil
}

// processUser recomputes one user's forecast and persists the snapshot.
// The worker is the only ModelState writer.
func (w *ForecastWorker) processUser(ctx context.Context, ev forecast.RecomputeEvent) error {
	timezone := "UTC"
	if p, err := w.profiles.GetProfile(ctx, ev.UserID); err == nil && p != nil && p.TimezoneName != "" {
		timezone = p.TimezoneName
	}
	today := core.NewLocalDate(time.Now().UTC(), timezone)
	if ev.RequestedLocalDate != nil {
		today = *ev.RequestedLocalDate
	}

	rows, err := w.rows.ListRows(ctx, ev.UserID, today.AddDays(-119), today)
	if err != nil && !core.IsNotFoundError(err) {
		return err
	}
	goal, err := w.repo.GetGoal(ctx, ev.UserID)
	if err != nil {
		return err
	}
	state, err := w.repo.GetModelState(ctx, ev.UserID)
	if err != nil {
		return err
	}
	previous, err := w.repo.GetLatestResult(ctx, ev.UserID)
	if err != nil && !core.IsNotFoundError(err) {
		return err
	}

	result := w.engine.Compute(ev.UserID, rows, goal, state, today)
	if err := w.repo.SaveResult(ctx, result); err != nil {
		return err
	}
	if result.ModelState != nil {
		if err := w.repo.SaveModelState(ctx, result.ModelState); err != nil {
			return err
		}
	}

	w.maybeNotifyAtRisk(ctx, ev.UserID, previous, result)
	return nil
}

// maybeNotifyAtRisk pings the user once when the forecast flips to AT_RISK
func (w *ForecastWorker) maybeNotifyAtRisk(ctx context.Context, userID core.UserID, previous, current *forecast.Result) {
	if current.Summary.StatusChip != forecast.StatusAtRisk {
		return
	}
	if previous != nil && previous.Summary.StatusChip == forecast.StatusAtRisk {
		return
	}
	err := w.notifier.Notify(ctx, userID,
		"Your weight goal is at risk",
		"Your recent trend is moving away from your goal. Open the app for suggested adjustments.")
	if err != nil {
		w.log.Warn().Err(err).Str("user_id", userID.String()).Msg("at-risk notification failed")
	}
}

package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/forecast"
	"flomentum/domain/sleep"
	"flomentum/ports"
)

// Recompute priorities: explicit user intent outranks background ingest.
const (
	PriorityIngest       = 1
	PriorityWeightLogged = 3
	PriorityGoalChanged  = 5
)

// IngestService folds raw wearable samples into daily metric rows and
// derived sleep nights, invalidating caches and nudging the forecast
// worker as data lands.
type IngestService struct {
	rows                 ports.DailyRepository
	sleeps               ports.SleepRepository
	profiles             ports.ProfileRepository
	queue                ports.RecomputeQueue
	scores               ports.ScoreCache
	minTotalSleepMinutes float64
	log                  zerolog.Logger
}

// NewIngestService wires the ingest service
func NewIngestService(
	rows ports.DailyRepository,
	sleeps ports.SleepRepository,
	profiles ports.ProfileRepository,
	queue ports.RecomputeQueue,
	scores ports.ScoreCache,
	minTotalSleepMinutes float64,
	log zerolog.Logger,
) *IngestService {
	return &IngestService{
		rows:                 rows,
		sleeps:               sleeps,
		profiles:             profiles,
		queue:                queue,
		scores:               scores,
		minTotalSleepMinutes: minTotalSleepMinutes,
		log:                  log.With().Str("component", "ingest").Logger(),
	}
}

// IngestSamples aggregates a raw sample batch into daily rows and upserts
// them. Replaying the same batch is a no-op by construction: samples are
// uuid-keyed and the reduction is deterministic.
func (s *IngestService) IngestSamples(ctx context.Context, userID core.UserID, samples []daily.RawSample) ([]*daily.MetricRow, error) {
	if len(samples) == 0 {
		return nil, core.NewValidationError("samples", "empty batch")
	}
	timezone := s.timezoneFor(ctx, userID)

	fresh := daily.NewAggregator(timezone).Aggregate(userID, samples)
	weightTouched := false

	for i, row := range fresh {
		existing, err := s.rows.GetRow(ctx, userID, row.LocalDate)
		if err != nil && !core.IsNotFoundError(err) {
			return nil, err
		}
		merged := daily.Merge(existing, row)
		if err := s.rows.UpsertRow(ctx, merged); err != nil {
			return nil, err
		}
		fresh[i] = merged

		if err := s.scores.InvalidateDay(ctx, userID, row.LocalDate); err != nil {
			s.log.Warn().Err(err).Str("date", row.LocalDate.String()).Msg("score invalidation failed")
		}
		if row.WeightKg != nil {
			weightTouched = true
		}
	}

	reason, priority := "daily_ingest", PriorityIngest
	if weightTouched {
		reason, priority = "weight_logged", PriorityWeightLogged
	}
	if err := s.enqueueRecompute(ctx, userID, reason, priority); err != nil {
		s.log.Warn().Err(err).Msg("recompute enqueue failed")
	}
	return fresh, nil
}

// IngestSleep derives a sleep night from raw stage intervals and stores it.
// Nights under the total-sleep floor are rejected with InsufficientData.
func (s *IngestService) IngestSleep(ctx context.Context, userID core.UserID, intervals []sleep.Interval) (*sleep.Night, error) {
	if len(intervals) == 0 {
		return nil, core.NewValidationError("intervals", "empty batch")
	}
	timezone := s.timezoneFor(ctx, userID)

	// The night belongs to the local date the sleeper woke up on
	finalWake := intervals[0].End
	for _, iv := range intervals {
		if iv.End.After(finalWake) {
			finalWake = iv.End
		}
	}
	sleepDate := core.NewLocalDate(finalWake, timezone)

	night, err := sleep.Process(userID, sleepDate, timezone, intervals, s.minTotalSleepMinutes)
	if err != nil {
		return nil, err
	}
	if err := s.sleeps.UpsertNight(ctx, night); err != nil {
		return nil, err
	}

	// Reflect the derived duration on the daily row so readiness sees it
	// even before a staged recompute
	hours := night.TotalSleepMin / 60
	now := time.Now().UTC()
	existing, err := s.rows.GetRow(ctx, userID, sleepDate)
	if err != nil && !core.IsNotFoundError(err) {
		return nil, err
	}
	row := existing
	if row == nil {
		start, end := core.DayBounds(sleepDate, timezone)
		row = &daily.MetricRow{
			UserID:      userID,
			LocalDate:   sleepDate,
			Timezone:    timezone,
			UTCDayStart: start,
			UTCDayEnd:   end,
		}
	}
	row.SleepHours = &hours
	row.UpdatedAt = now
	if err := s.rows.UpsertRow(ctx, row); err != nil {
		return nil, err
	}

	if err := s.scores.InvalidateDay(ctx, userID, sleepDate); err != nil {
		s.log.Warn().Err(err).Str("date", sleepDate.String()).Msg("score invalidation failed")
	}
	return night, nil
}

func (s *IngestService) enqueueRecompute(ctx context.Context, userID core.UserID, reason string, priority int) error {
	return s.queue.Enqueue(ctx, forecast.RecomputeEvent{
		EventID:  core.NewID(),
		UserID:   userID,
		Reason:   reason,
		Priority: priority,
		QueuedAt: time.Now().UTC(),
	})
}

// timezoneFor resolves the user's timezone, defaulting to UTC
func (s *IngestService) timezoneFor(ctx context.Context, userID core.UserID) string {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil || p == nil || p.TimezoneName == "" {
		return "UTC"
	}
	return p.TimezoneName
}

package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"flomentum/domain/core"
	"flomentum/domain/forecast"
	"flomentum/ports"
)

// ForecastService is the read/goal surface over the worker's artifacts.
// It never computes forecasts itself; it serves the latest persisted
// snapshot and turns goal changes into high-priority recompute events.
type ForecastService struct {
	repo  ports.ForecastRepository
	queue ports.RecomputeQueue
	log   zerolog.Logger
}

// NewForecastService wires the forecast read surface
func NewForecastService(repo ports.ForecastRepository, queue ports.RecomputeQueue, log zerolog.Logger) *ForecastService {
	return &ForecastService{
		repo:  repo,
		queue: queue,
		log:   log.With().Str("component", "forecast").Logger(),
	}
}

// Latest returns the most recent persisted forecast snapshot
func (s *ForecastService) Latest(ctx context.Context, userID core.UserID) (*forecast.Result, error) {
	return s.repo.GetLatestResult(ctx, userID)
}

// Goal returns the user's active goal, nil when none is set
func (s *ForecastService) Goal(ctx context.Context, userID core.UserID) (*forecast.Goal, error) {
	return s.repo.GetGoal(ctx, userID)
}

// SetGoal validates and stores the goal, then queues an immediate recompute
func (s *ForecastService) SetGoal(ctx context.Context, goal *forecast.Goal) error {
	switch goal.Type {
	case forecast.GoalLose, forecast.GoalGain, forecast.GoalMaintain:
	default:
		return core.NewValidationError("type", "must be LOSE, GAIN, or MAINTAIN")
	}
	if goal.Type != forecast.GoalMaintain && goal.TargetWeightKg <= 0 {
		return core.NewValidationError("target_weight_kg", "must be positive")
	}
	if err := s.repo.SaveGoal(ctx, goal); err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, forecast.RecomputeEvent{
		EventID:  core.NewID(),
		UserID:   goal.UserID,
		Reason:   "goal_changed",
		Priority: PriorityGoalChanged,
		QueuedAt: time.Now().UTC(),
	})
}

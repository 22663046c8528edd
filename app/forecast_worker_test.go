package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/forecast"
)

type workerFixture struct {
	worker   *ForecastWorker
	queue    *fakeQueue
	rows     *fakeDaily
	repo     *fakeForecastRepo
	notifier *fakeNotifier
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	f := &workerFixture{
		queue:    newFakeQueue(),
		rows:     newFakeDaily(),
		repo:     newFakeForecastRepo(),
		notifier: &fakeNotifier{},
	}
	f.worker = NewForecastWorker(
		f.queue, f.rows, f.repo, newFakeProfiles(), f.notifier,
		42, 10*time.Millisecond, 100*time.Millisecond, 50, testLogger(),
	)
	return f
}

func (f *workerFixture) seedWeights(t *testing.T, userID core.UserID, days int) {
	t.Helper()
	today := core.NewLocalDate(time.Now().UTC(), "UTC")
	for i := 0; i < days; i++ {
		w := 82.0 - 0.05*float64(i)
		require.NoError(t, f.rows.UpsertRow(context.Background(), &daily.MetricRow{
			UserID:    userID,
			LocalDate: today.AddDays(-i),
			Timezone:  "UTC",
			WeightKg:  &w,
			UpdatedAt: time.Now().UTC(),
		}))
	}
}

func (f *workerFixture) enqueue(t *testing.T, userID core.UserID, reason string, priority int, age time.Duration) core.ID {
	t.Helper()
	id := core.NewID()
	require.NoError(t, f.queue.Enqueue(context.Background(), forecast.RecomputeEvent{
		EventID:  id,
		UserID:   userID,
		Reason:   reason,
		Priority: priority,
		QueuedAt: time.Now().UTC().Add(-age),
	}))
	return id
}

func TestRunCycleCoalescesPerUser(t *testing.T) {
	f := newWorkerFixture(t)
	f.seedWeights(t, "user-1", 21)
	f.seedWeights(t, "user-2", 21)

	f.enqueue(t, "user-1", "daily_ingest", PriorityIngest, time.Minute)
	f.enqueue(t, "user-1", "weight_logged", PriorityWeightLogged, time.Minute)
	f.enqueue(t, "user-1", "goal_changed", PriorityGoalChanged, time.Minute)
	f.enqueue(t, "user-2", "daily_ingest", PriorityIngest, time.Minute)

	require.NoError(t, f.worker.RunCycle(context.Background()))

	// One recompute per user, every event consumed
	assert.Equal(t, 2, f.repo.saves)
	assert.Equal(t, 0, f.queue.len())
	assert.ElementsMatch(t, []core.UserID{"user-1", "user-2"}, f.queue.compacted)

	result, err := f.repo.GetLatestResult(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Series)
}

func TestRunCycleHonoursDebounce(t *testing.T) {
	f := newWorkerFixture(t)
	f.seedWeights(t, "user-1", 21)

	// Queued just now, still inside the debounce window
	f.enqueue(t, "user-1", "weight_logged", PriorityWeightLogged, 0)

	require.NoError(t, f.worker.RunCycle(context.Background()))
	assert.Equal(t, 0, f.repo.saves)
	assert.Equal(t, 1, f.queue.len())
}

func TestRunCycleEmptyQueue(t *testing.T) {
	f := newWorkerFixture(t)
	require.NoError(t, f.worker.RunCycle(context.Background()))
	assert.Equal(t, 0, f.repo.saves)
}

func TestRunCyclePersistsModelState(t *testing.T) {
	f := newWorkerFixture(t)
	f.seedWeights(t, "user-1", 28)
	f.enqueue(t, "user-1", "daily_ingest", PriorityIngest, time.Minute)

	require.NoError(t, f.worker.RunCycle(context.Background()))

	state, err := f.repo.GetModelState(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, core.UserID("user-1"), state.UserID)
}

func TestNotifiesOnlyOnFlipToAtRisk(t *testing.T) {
	f := newWorkerFixture(t)

	atRisk := &forecast.Result{Summary: forecast.Summary{StatusChip: forecast.StatusAtRisk}}
	onTrack := &forecast.Result{Summary: forecast.Summary{StatusChip: forecast.StatusOnTrack}}

	// First flip notifies
	f.worker.maybeNotifyAtRisk(context.Background(), "user-1", onTrack, atRisk)
	assert.Equal(t, 1, f.notifier.calls)

	// Already at risk: no repeat
	f.worker.maybeNotifyAtRisk(context.Background(), "user-1", atRisk, atRisk)
	assert.Equal(t, 1, f.notifier.calls)

	// Recovered: nothing to say
	f.worker.maybeNotifyAtRisk(context.Background(), "user-1", atRisk, onTrack)
	assert.Equal(t, 1, f.notifier.calls)

	// No previous forecast at all still notifies
	f.worker.maybeNotifyAtRisk(context.Background(), "user-2", nil, atRisk)
	assert.Equal(t, 2, f.notifier.calls)
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/scoring"
	"flomentum/domain/sleep"
)

func fptr(v float64) *float64 { return &v }

type scoringFixture struct {
	service   *ScoringService
	rows      *fakeDaily
	sleeps    *fakeSleep
	baselines *fakeBaselines
	cache     *fakeScores
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()
	f := &scoringFixture{
		rows:      newFakeDaily(),
		sleeps:    newFakeSleep(),
		baselines: newFakeBaselines(),
		cache:     newFakeScores(),
	}
	f.service = NewScoringService(
		f.rows, f.sleeps, f.baselines, newFakeProfiles(),
		newFakeMeasurements(), f.cache, 14, testLogger(),
	)
	return f
}

func (f *scoringFixture) seedToday(t *testing.T, userID core.UserID, updatedAt time.Time) core.LocalDate {
	t.Helper()
	date := core.NewLocalDate(time.Now().UTC(), "UTC")
	require.NoError(t, f.rows.UpsertRow(context.Background(), &daily.MetricRow{
		UserID:     userID,
		LocalDate:  date,
		Timezone:   "UTC",
		Steps:      fptr(8200),
		RestingHR:  fptr(52),
		HRVMs:      fptr(68),
		SleepHours: fptr(7.4),
		UpdatedAt:  updatedAt,
	}))
	return date
}

func TestReadinessTodayComputesAndCaches(t *testing.T) {
	f := newScoringFixture(t)
	userID := core.UserID("user-1")
	date := f.seedToday(t, userID, time.Now().UTC().Add(-time.Hour))

	score, err := f.service.ReadinessToday(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, scoring.KindReadiness, score.Kind)
	assert.GreaterOrEqual(t, score.Value, 0.0)
	assert.LessOrEqual(t, score.Value, 100.0)

	cached, err := f.cache.GetScore(context.Background(), userID, scoring.KindReadiness, date)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, score.Value, cached.Value)
}

func TestReadinessTodayServesFreshCache(t *testing.T) {
	f := newScoringFixture(t)
	userID := core.UserID("user-1")
	date := f.seedToday(t, userID, time.Now().UTC().Add(-time.Hour))

	planted := &scoring.Score{
		Kind:        scoring.KindReadiness,
		UserID:      userID,
		LocalDate:   date,
		Value:       77,
		Label:       "Good",
		GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, f.cache.PutScore(context.Background(), userID, planted))

	score, err := f.service.ReadinessToday(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 77.0, score.Value)
}

func TestReadinessTodayRecomputesStaleCache(t *testing.T) {
	f := newScoringFixture(t)
	userID := core.UserID("user-1")
	// Row updated after the cached score was generated
	date := f.seedToday(t, userID, time.Now().UTC())

	stale := &scoring.Score{
		Kind:        scoring.KindReadiness,
		UserID:      userID,
		LocalDate:   date,
		Value:       11,
		Label:       "Low",
		GeneratedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, f.cache.PutScore(context.Background(), userID, stale))

	score, err := f.service.ReadinessToday(context.Background(), userID)
	require.NoError(t, err)
	assert.NotEqual(t, 11.0, score.Value)

	cached, err := f.cache.GetScore(context.Background(), userID, scoring.KindReadiness, date)
	require.NoError(t, err)
	assert.True(t, cached.GeneratedAt.After(stale.GeneratedAt))
}

func TestReadinessTodayRecomputesAfterBaselineRefresh(t *testing.T) {
	f := newScoringFixture(t)
	userID := core.UserID("user-1")
	now := time.Now().UTC()
	// Row older than the cached score; the baseline refresh is newer
	date := f.seedToday(t, userID, now.Add(-2*time.Hour))

	planted := &scoring.Score{
		Kind:        scoring.KindReadiness,
		UserID:      userID,
		LocalDate:   date,
		Value:       11,
		Label:       "Low",
		GeneratedAt: now.Add(-time.Hour),
	}
	require.NoError(t, f.cache.PutScore(context.Background(), userID, planted))

	require.NoError(t, f.baselines.SaveSet(context.Background(), userID, baseline.Set{
		baseline.MetricRestingHR: {28: &baseline.Baseline{
			UserID:     userID,
			Metric:     baseline.MetricRestingHR,
			WindowDays: 28,
			Median:     55,
			P25:        52,
			P75:        58,
			Count:      20,
			UpdatedAt:  now,
		}},
	}))

	score, err := f.service.ReadinessToday(context.Background(), userID)
	require.NoError(t, err)
	assert.NotEqual(t, 11.0, score.Value, "score cached before the baseline refresh must be recomputed")

	cached, err := f.cache.GetScore(context.Background(), userID, scoring.KindReadiness, date)
	require.NoError(t, err)
	assert.True(t, cached.GeneratedAt.After(planted.GeneratedAt))

	// The recomputed score is newer than every input and serves from cache
	again, err := f.service.ReadinessToday(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, cached.Value, again.Value)
	assert.Equal(t, cached.GeneratedAt, again.GeneratedAt)
}

func TestReadinessTodayNoData(t *testing.T) {
	f := newScoringFixture(t)
	_, err := f.service.ReadinessToday(context.Background(), "user-empty")
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestSleepTodayRequiresStagedNight(t *testing.T) {
	f := newScoringFixture(t)
	userID := core.UserID("user-1")
	date := f.seedToday(t, userID, time.Now().UTC().Add(-time.Hour))

	_, err := f.service.SleepToday(context.Background(), userID)
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	require.NoError(t, f.sleeps.UpsertNight(context.Background(), &sleep.Night{
		UserID:             userID,
		SleepDate:          date,
		Timezone:           "UTC",
		TimeInBedMin:       470,
		TotalSleepMin:      440,
		SleepEfficiencyPct: 93.6,
		SleepLatencyMin:    12,
		WasoMin:            18,
		NumAwakenings:      2,
		CoreMin:            265,
		DeepMin:            80,
		RemMin:             95,
	}))

	score, err := f.service.SleepToday(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, scoring.KindSleep, score.Kind)
	assert.NotEmpty(t, score.SubScores)
}

func TestMomentumTodayAlwaysRecomputes(t *testing.T) {
	f := newScoringFixture(t)
	userID := core.UserID("user-1")
	date := f.seedToday(t, userID, time.Now().UTC().Add(-time.Hour))

	planted := &scoring.Score{
		Kind:        scoring.KindMomentum,
		UserID:      userID,
		LocalDate:   date,
		Value:       3,
		GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, f.cache.PutScore(context.Background(), userID, planted))

	m, err := f.service.MomentumToday(context.Background(), userID)
	require.NoError(t, err)
	assert.NotEmpty(t, m.Factors)

	// The fresh score overwrites the planted cache entry
	cached, err := f.cache.GetScore(context.Background(), userID, scoring.KindMomentum, date)
	require.NoError(t, err)
	assert.Equal(t, m.Score.Value, cached.Value)
}

func TestWeeklyMomentumMixesCachedAndStoredDays(t *testing.T) {
	f := newScoringFixture(t)
	userID := core.UserID("user-1")
	today := f.seedToday(t, userID, time.Now().UTC().Add(-time.Hour))

	// Yesterday from a stored row, the day before from the cache
	require.NoError(t, f.rows.UpsertRow(context.Background(), &daily.MetricRow{
		UserID:    userID,
		LocalDate: today.AddDays(-1),
		Timezone:  "UTC",
		Steps:     fptr(10500),
		UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, f.cache.PutScore(context.Background(), userID, &scoring.Score{
		Kind:        scoring.KindMomentum,
		UserID:      userID,
		LocalDate:   today.AddDays(-2),
		Value:       64,
		GeneratedAt: time.Now().UTC(),
	}))

	week, err := f.service.WeeklyMomentum(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, week.Scores, 3)
	assert.Greater(t, week.Average, 0.0)
}

package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
	"flomentum/domain/daily"
)

const testToday = core.LocalDate("2025-03-10")

// dailyWeights builds n consecutive daily weigh-ins ending endOffset days
// before today, starting at startKg and changing by slope kg per day.
func dailyWeights(n, endOffset int, startKg, slope float64) []*daily.MetricRow {
	rows := make([]*daily.MetricRow, 0, n)
	for i := 0; i < n; i++ {
		kg := startKg + slope*float64(i)
		date := testToday.AddDays(-(endOffset + n - 1 - i))
		rows = append(rows, &daily.MetricRow{
			UserID:    "user-1",
			LocalDate: date,
			WeightKg:  &kg,
		})
	}
	return rows
}

func loseGoal(target float64) *Goal {
	return &Goal{
		UserID:         "user-1",
		Type:           GoalLose,
		TargetWeightKg: target,
		StartWeightKg:  85,
	}
}

func TestCompute_SteadyLossOnTrack(t *testing.T) {
	e := NewEngine(42)
	rows := dailyWeights(30, 0, 85, -0.1) // ends at 82.1 today

	r := e.Compute("user-1", rows, loseGoal(80), nil, testToday)

	assert.Equal(t, ConfidenceHigh, r.Summary.Confidence)
	assert.Equal(t, StatusOnTrack, r.Summary.StatusChip)
	assert.InDelta(t, -0.1, r.Summary.SlopeKgPerDay, 0.01)

	require.NotNil(t, r.Summary.ETAWeeks)
	assert.InDelta(t, 3.0, *r.Summary.ETAWeeks, 0.5, "~2.1 kg to go at 0.1 kg/day")

	require.Len(t, r.Series, 43, "day 0 through horizon")
	assert.Equal(t, 0, r.Series[0].Day)
	assert.Equal(t, testToday, r.Series[0].Date)
}

func TestCompute_StaleWeighInsDropConfidence(t *testing.T) {
	e := NewEngine(42)
	rows := dailyWeights(30, 8, 85, -0.1) // last weigh-in 8 days ago

	r := e.Compute("user-1", rows, loseGoal(80), nil, testToday)

	assert.Equal(t, ConfidenceLow, r.Summary.Confidence)
	assert.Equal(t, StatusNeedsData, r.Summary.StatusChip)
	assert.Equal(t, 8, r.Summary.StalenessDays)
}

func TestCompute_BandsWidenWithLowConfidence(t *testing.T) {
	e := NewEngine(42)
	fresh := e.Compute("user-1", dailyWeights(30, 0, 85, -0.1), loseGoal(80), nil, testToday)
	stale := e.Compute("user-1", dailyWeights(30, 8, 85, -0.1), loseGoal(80), nil, testToday)

	require.Equal(t, ConfidenceHigh, fresh.Summary.Confidence)
	require.Equal(t, ConfidenceLow, stale.Summary.Confidence)

	day := 14
	freshWidth := fresh.Series[day].High - fresh.Series[day].Low
	staleWidth := stale.Series[day].High - stale.Series[day].Low
	assert.GreaterOrEqual(t, staleWidth/freshWidth, 1.5, "low-confidence band at least 1.5x wider")
}

func TestCompute_BandWidthNonDecreasing(t *testing.T) {
	e := NewEngine(42)
	r := e.Compute("user-1", dailyWeights(30, 0, 85, -0.1), loseGoal(80), nil, testToday)

	prev := -1.0
	for _, p := range r.Series {
		width := p.High - p.Low
		assert.GreaterOrEqual(t, width, prev, "day %d", p.Day)
		prev = width
	}
	assert.InDelta(t, 0, r.Series[0].High-r.Series[0].Low, 0.001, "no uncertainty at day 0")
}

func TestCompute_LosingGoalWithRisingTrend(t *testing.T) {
	e := NewEngine(42)
	rows := dailyWeights(30, 0, 80, 0.05) // gaining while trying to lose

	r := e.Compute("user-1", rows, loseGoal(78), nil, testToday)

	assert.Nil(t, r.Summary.ETAWeeks, "no ETA when the trend moves away from target")
	assert.Nil(t, r.Summary.ETADate)
	assert.Equal(t, StatusAtRisk, r.Summary.StatusChip)
}

func TestCompute_NoWeightData(t *testing.T) {
	e := NewEngine(42)
	r := e.Compute("user-1", nil, loseGoal(80), nil, testToday)

	assert.Equal(t, StatusNeedsData, r.Summary.StatusChip)
	assert.Equal(t, ConfidenceLow, r.Summary.Confidence)
	assert.Nil(t, r.Summary.CurrentWeightKg)
	assert.Empty(t, r.Series)
}

func TestCompute_MissedTargetDateAtRisk(t *testing.T) {
	e := NewEngine(42)
	goal := loseGoal(70) // ~121 days away at 0.1 kg/day
	deadline := time.Now().UTC().AddDate(0, 0, 30)
	goal.TargetDate = &deadline

	r := e.Compute("user-1", dailyWeights(30, 0, 85, -0.1), goal, nil, testToday)

	require.NotNil(t, r.Summary.ETAWeeks)
	assert.Equal(t, StatusAtRisk, r.Summary.StatusChip)
}

func TestEtaToTarget_Bounds(t *testing.T) {
	now := time.Now().UTC()

	weeks, _ := etaToTarget(&Goal{Type: GoalLose, TargetWeightKg: 80}, 82, -0.1, now)
	require.NotNil(t, weeks)
	assert.InDelta(t, 20.0/7, *weeks, 0.01)

	weeks, _ = etaToTarget(&Goal{Type: GoalLose, TargetWeightKg: 80}, 82, -0.001, now)
	assert.Nil(t, weeks, "beyond a year out")

	weeks, _ = etaToTarget(&Goal{Type: GoalLose, TargetWeightKg: 80}, 82, 0, now)
	assert.Nil(t, weeks, "flat trend never arrives")

	weeks, _ = etaToTarget(&Goal{Type: GoalMaintain}, 82, -0.1, now)
	assert.Nil(t, weeks, "maintain goals have no target")

	weeks, eta := etaToTarget(&Goal{Type: GoalLose, TargetWeightKg: 82}, 82, -0.1, now)
	require.NotNil(t, weeks)
	assert.Zero(t, *weeks, "already at target")
	assert.Equal(t, now, *eta)
}

func TestRetrain_UpdatesSigmaFromResiduals(t *testing.T) {
	e := NewEngine(42)
	rows := dailyWeights(30, 0, 85, -0.1)

	r := e.Compute("user-1", rows, loseGoal(80), nil, testToday)

	require.NotNil(t, r.ModelState)
	require.NotNil(t, r.ModelState.LastTrainedLocalDate)
	assert.Equal(t, testToday, *r.ModelState.LastTrainedLocalDate)
	assert.InDelta(t, -0.1, r.ModelState.BaselineWeightTrendSlope, 0.01)
}

func TestRetrain_SkippedBelowFourteenWeighIns(t *testing.T) {
	e := NewEngine(42)
	rows := dailyWeights(10, 0, 85, -0.1)

	state := DefaultModelState("user-1")
	r := e.Compute("user-1", rows, loseGoal(80), state, testToday)

	require.NotNil(t, r.ModelState)
	assert.Nil(t, r.ModelState.LastTrainedLocalDate)
	assert.Equal(t, state.WaterNoiseSigma, r.ModelState.WaterNoiseSigma)
}

func TestSimulate_StepLeverAdjustsSlope(t *testing.T) {
	e := NewEngine(42)
	r := e.Compute("user-1", dailyWeights(30, 0, 85, -0.1), loseGoal(80), nil, testToday)

	require.NotEmpty(t, r.Scenarios)
	var steps *Scenario
	for i := range r.Scenarios {
		if r.Scenarios[i].ID == "steps_plus_2000" {
			steps = &r.Scenarios[i]
		}
	}
	require.NotNil(t, steps)

	expected := r.Summary.SlopeKgPerDay - 80.0/KcalPerKg
	assert.InDelta(t, expected, steps.SlopeKgPerDay, 0.005)
	assert.Len(t, steps.Series, 43)
	require.NotNil(t, steps.ETAWeeks)
	require.NotNil(t, r.Summary.ETAWeeks)
	assert.Less(t, *steps.ETAWeeks, *r.Summary.ETAWeeks, "extra deficit arrives sooner")
}

func TestSimulate_MaintainGoalHasNoLevers(t *testing.T) {
	e := NewEngine(42)
	goal := &Goal{UserID: "user-1", Type: GoalMaintain}
	r := e.Compute("user-1", dailyWeights(30, 0, 85, 0), goal, nil, testToday)
	assert.Empty(t, r.Scenarios)
}

func TestDrivers_RankedAndCapped(t *testing.T) {
	e := NewEngine(42)
	steps := 5000.0
	rows := dailyWeights(30, 0, 80, 0.05) // rising while losing
	for _, row := range rows {
		s := steps
		row.Steps = &s
	}

	r := e.Compute("user-1", rows, loseGoal(78), nil, testToday)

	require.NotEmpty(t, r.Drivers)
	assert.LessOrEqual(t, len(r.Drivers), 5)
	assert.Equal(t, "reverse_trend", r.Drivers[0].ID, "contradicting trend outranks everything")
	for i, d := range r.Drivers {
		assert.Equal(t, i+1, d.Rank)
		assert.Contains(t, d.Deeplink, d.ID)
	}
}

func TestTrendSlope_RobustToSingleOutlier(t *testing.T) {
	e := NewEngine(42)
	rows := dailyWeights(30, 0, 85, -0.1)
	spike := 86.5 // one bad scale reading mid-series
	rows[20].WeightKg = &spike

	weights := weightSeries(rows, e.MaxInputDays, testToday)
	slope := e.trendSlope(weights)
	assert.Less(t, slope, 0.0, "trend direction survives an outlier")
	assert.Less(t, math.Abs(slope+0.1), 0.1)
}

func TestCoalesceByUser(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	events := []RecomputeEvent{
		{EventID: core.NewID(), UserID: "a", Priority: 1, QueuedAt: t0},
		{EventID: core.NewID(), UserID: "b", Priority: 1, QueuedAt: t0.Add(time.Second)},
		{EventID: core.NewID(), UserID: "a", Priority: 5, QueuedAt: t0.Add(2 * time.Second), Reason: "goal_changed"},
		{EventID: core.NewID(), UserID: "a", Priority: 5, QueuedAt: t0.Add(3 * time.Second), Reason: "latest"},
		{EventID: core.NewID(), UserID: "a", Priority: 2, QueuedAt: t0.Add(4 * time.Second)},
	}

	out := CoalesceByUser(events)
	require.Len(t, out, 2)
	assert.Equal(t, core.UserID("a"), out[0].UserID, "first-seen order preserved")
	assert.Equal(t, 5, out[0].Priority, "highest priority wins")
	assert.Equal(t, "latest", out[0].Reason, "priority ties break to most recent")
	assert.Equal(t, core.UserID("b"), out[1].UserID)
}

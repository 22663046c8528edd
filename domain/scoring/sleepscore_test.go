package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
	"flomentum/domain/sleep"
)

func nightsWithBedtimes(bedtimes ...string) []*sleep.Night {
	var nights []*sleep.Night
	for i, bt := range bedtimes {
		nights = append(nights, &sleep.Night{
			UserID:       "user-1",
			SleepDate:    core.LocalDate("2025-03-01").AddDays(i),
			BedtimeLocal: bt,
		})
	}
	return nights
}

func TestComputeSleep_GoodNightIsGoodOrBetter(t *testing.T) {
	score, err := ComputeSleep(SleepInput{
		Night:        goodNight(),
		RecentNights: nightsWithBedtimes("23:00", "23:10", "22:55", "23:05"),
		Today:        todayRow(),
		Baselines:    readyBaselines(20),
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, score.Value, 70.0)
	assert.Contains(t, []string{"good", "excellent"}, score.Label)
	assert.Len(t, score.SubScores, 5)
}

func TestComputeSleep_NilNight(t *testing.T) {
	_, err := ComputeSleep(SleepInput{})
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestComputeSleep_ShortNightScoresPoorly(t *testing.T) {
	short := &sleep.Night{
		UserID:             "user-1",
		SleepDate:          "2025-03-10",
		TotalSleepMin:      240, // 4h
		TimeInBedMin:       300,
		SleepEfficiencyPct: 80,
		DeepPct:            8,
		RemPct:             10,
		BedtimeLocal:       "01:30",
	}
	score, err := ComputeSleep(SleepInput{Night: short})
	require.NoError(t, err)
	assert.Less(t, score.Value, 55.0)
	assert.Equal(t, "poor", score.Label)
}

func TestConsistency_ErraticBedtimesScoreLower(t *testing.T) {
	steady, ok := consistencyScore(nightsWithBedtimes("23:00", "23:05", "22:55", "23:10"))
	require.True(t, ok)
	erratic, ok := consistencyScore(nightsWithBedtimes("21:30", "00:45", "23:10", "02:00"))
	require.True(t, ok)

	assert.Greater(t, steady, 85.0)
	assert.Less(t, erratic, steady)
}

func TestConsistency_WrapsMidnight(t *testing.T) {
	// 23:50 and 00:10 are 20 minutes apart, not 23.7 hours
	score, ok := consistencyScore(nightsWithBedtimes("23:50", "00:10", "23:55"))
	require.True(t, ok)
	assert.Greater(t, score, 80.0)
}

func TestConsistency_NeedsThreeNights(t *testing.T) {
	_, ok := consistencyScore(nightsWithBedtimes("23:00", "23:10"))
	assert.False(t, ok)
}

func TestStructureTargets_RelaxWithAge(t *testing.T) {
	deepYoung, _ := structureTargets(25)
	deepOld, _ := structureTargets(65)
	assert.Greater(t, deepYoung, deepOld)
}

func TestSleepLabels(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{90, "excellent"}, {85, "excellent"}, {84.9, "good"}, {70, "good"},
		{69.9, "fair"}, {55, "fair"}, {54.9, "poor"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sleepLabel(tc.value), "value %.1f", tc.value)
	}
}

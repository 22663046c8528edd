package sleep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
)

// A typical night: in bed 23:00-07:00 UTC, asleep 23:20 with one awakening.
func typicalNight(t *testing.T) []Interval {
	t.Helper()
	base, err := time.Parse(time.RFC3339, "2025-03-09T23:00:00Z")
	require.NoError(t, err)
	min := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	return []Interval{
		{Start: base, End: min(480), Stage: StageInBed},
		{Start: min(20), End: min(110), Stage: StageCore},   // 90 core
		{Start: min(110), End: min(170), Stage: StageDeep},  // 60 deep
		{Start: min(170), End: min(185), Stage: StageAwake}, // 15 awake
		{Start: min(185), End: min(275), Stage: StageREM},   // 90 rem
		{Start: min(275), End: min(470), Stage: StageCore},  // 195 core
	}
}

func TestProcess_TypicalNight(t *testing.T) {
	night, err := Process("user-1", "2025-03-10", "UTC", typicalNight(t), 0)
	require.NoError(t, err)

	assert.Equal(t, 480.0, night.TimeInBedMin)
	assert.Equal(t, 435.0, night.TotalSleepMin) // 90+60+90+195
	assert.Equal(t, 20.0, night.SleepLatencyMin)
	assert.Equal(t, 15.0, night.WasoMin)
	assert.Equal(t, 1, night.NumAwakenings)
	assert.Equal(t, 60.0, night.DeepMin)
	assert.Equal(t, 90.0, night.RemMin)
	assert.InDelta(t, 90.6, night.SleepEfficiencyPct, 0.1)
	assert.InDelta(t, 13.8, night.DeepPct, 0.1)
	assert.Equal(t, "23:00", night.BedtimeLocal)
	assert.Equal(t, "07:00", night.WaketimeLocal)
}

func TestProcess_OverlappingInBedIntervalsMergeForTimeInBed(t *testing.T) {
	base, _ := time.Parse(time.RFC3339, "2025-03-09T23:00:00Z")
	min := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	// Two devices both reporting inBed with overlap
	intervals := []Interval{
		{Start: base, End: min(300), Stage: StageInBed},
		{Start: min(200), End: min(480), Stage: StageInBed},
		{Start: min(10), End: min(470), Stage: StageAsleep},
	}

	night, err := Process("user-1", "2025-03-10", "UTC", intervals, 0)
	require.NoError(t, err)
	assert.Equal(t, 480.0, night.TimeInBedMin, "union, not sum, of inBed intervals")
}

func TestProcess_RejectsShortSleep(t *testing.T) {
	base, _ := time.Parse(time.RFC3339, "2025-03-09T23:00:00Z")
	intervals := []Interval{
		{Start: base, End: base.Add(2 * time.Hour), Stage: StageInBed},
		{Start: base, End: base.Add(100 * time.Minute), Stage: StageAsleep},
	}

	_, err := Process("user-1", "2025-03-10", "UTC", intervals, 180)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestProcess_EmptyInput(t *testing.T) {
	_, err := Process("user-1", "2025-03-10", "UTC", nil, 0)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestProcess_MidSleepAndFragmentation(t *testing.T) {
	night, err := Process("user-1", "2025-03-10", "UTC", typicalNight(t), 0)
	require.NoError(t, err)

	// One awakening over 7.25h of sleep
	assert.InDelta(t, 0.138, night.FragmentationIndex, 0.01)
	// Sleep onset 23:20, last asleep end 06:50 -> midpoint 03:05
	assert.Equal(t, "03:05", night.MidSleepLocal)
}

func TestProcess_LocalTimesRespectTimezone(t *testing.T) {
	night, err := Process("user-1", "2025-03-10", "America/New_York", typicalNight(t), 0)
	require.NoError(t, err)

	// 23:00 UTC on Mar 9 is 19:00 in New York (EDT starts Mar 9)
	assert.Equal(t, "19:00", night.BedtimeLocal)
}

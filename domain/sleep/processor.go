package sleep

import (
	"fmt"
	"sort"
	"time"

	"flomentum/domain/core"
)

// MinTotalSleepMinutes is the floor below which a night is rejected as
// insufficient (naps and partial recordings).
const MinTotalSleepMinutes = 180.0

// Process merges raw stage intervals into a Night summary. It returns
// ErrInsufficientData when total sleep is under the configured floor.
func Process(userID core.UserID, sleepDate core.LocalDate, timezone string, intervals []Interval, minTotalSleepMin float64) (*Night, error) {
	if minTotalSleepMin <= 0 {
		minTotalSleepMin = MinTotalSleepMinutes
	}
	if len(intervals) == 0 {
		return nil, core.NewInsufficientDataError("sleep_samples")
	}

	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.End.After(iv.Start) {
			continue
		}
		sorted = append(sorted, iv)
	}
	if len(sorted) == 0 {
		return nil, core.NewValidationError("sleep_samples", "no positive-duration intervals")
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	// Time in bed is the union of inBed intervals; devices that only report
	// stages fall back to the union of everything.
	inBed := unionMinutes(filterStages(sorted, func(s Stage) bool { return s == StageInBed }))
	if inBed == 0 {
		inBed = unionMinutes(sorted)
	}

	stageMin := map[Stage]float64{}
	for _, iv := range sorted {
		if iv.Stage == StageInBed {
			continue
		}
		stageMin[iv.Stage] += iv.End.Sub(iv.Start).Minutes()
	}
	totalSleep := stageMin[StageAsleep] + stageMin[StageCore] + stageMin[StageDeep] +
		stageMin[StageREM] + stageMin[StageUnspecified]

	if totalSleep < minTotalSleepMin {
		return nil, fmt.Errorf("%w: total sleep %.0f min below %.0f min floor",
			core.ErrInsufficientData, totalSleep, minTotalSleepMin)
	}

	nightStart := sorted[0].Start
	var finalWake time.Time
	for _, iv := range sorted {
		if iv.End.After(finalWake) {
			finalWake = iv.End
		}
	}

	asleepIvs := filterStages(sorted, Stage.IsAsleep)
	sleepOnset := asleepIvs[0].Start
	lastAsleepEnd := asleepIvs[len(asleepIvs)-1].End

	// WASO: awake minutes between sleep onset and the last asleep interval
	var waso float64
	awakenings := 0
	for _, iv := range filterStages(sorted, func(s Stage) bool { return s == StageAwake }) {
		start, end := iv.Start, iv.End
		if start.Before(sleepOnset) {
			start = sleepOnset
		}
		if end.After(lastAsleepEnd) {
			end = lastAsleepEnd
		}
		if end.After(start) {
			waso += end.Sub(start).Minutes()
			awakenings++
		}
	}

	night := &Night{
		UserID:          userID,
		SleepDate:       sleepDate,
		Timezone:        timezone,
		NightStart:      nightStart,
		FinalWake:       finalWake,
		SleepOnset:      sleepOnset,
		TimeInBedMin:    inBed,
		TotalSleepMin:   totalSleep,
		SleepLatencyMin: sleepOnset.Sub(nightStart).Minutes(),
		WasoMin:         waso,
		NumAwakenings:   awakenings,
		CoreMin:         stageMin[StageCore],
		DeepMin:         stageMin[StageDeep],
		RemMin:          stageMin[StageREM],
		UnspecifiedMin:  stageMin[StageAsleep] + stageMin[StageUnspecified],
		AwakeInBedMin:   stageMin[StageAwake],
		BedtimeLocal:    nightStart.In(loc).Format("15:04"),
		WaketimeLocal:   finalWake.In(loc).Format("15:04"),
		UpdatedAt:       time.Now().UTC(),
	}

	if night.SleepLatencyMin < 0 {
		night.SleepLatencyMin = 0
	}
	if inBed > 0 {
		night.SleepEfficiencyPct = 100 * totalSleep / inBed
		if night.SleepEfficiencyPct > 100 {
			night.SleepEfficiencyPct = 100
		}
	}
	if totalSleep > 0 {
		night.DeepPct = 100 * night.DeepMin / totalSleep
		night.RemPct = 100 * night.RemMin / totalSleep
		// Awakenings per hour of sleep
		night.FragmentationIndex = float64(awakenings) / (totalSleep / 60)
	}

	mid := sleepOnset.Add(lastAsleepEnd.Sub(sleepOnset) / 2)
	night.MidSleepLocal = mid.In(loc).Format("15:04")

	return night, nil
}

func filterStages(intervals []Interval, keep func(Stage) bool) []Interval {
	var out []Interval
	for _, iv := range intervals {
		if keep(iv.Stage) {
			out = append(out, iv)
		}
	}
	return out
}

// unionMinutes merges overlapping intervals and sums the covered minutes
func unionMinutes(intervals []Interval) float64 {
	if len(intervals) == 0 {
		return 0
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var total float64
	curStart, curEnd := sorted[0].Start, sorted[0].End
	for _, iv := range sorted[1:] {
		if iv.Start.After(curEnd) {
			total += curEnd.Sub(curStart).Minutes()
			curStart, curEnd = iv.Start, iv.End
			continue
		}
		if iv.End.After(curEnd) {
			curEnd = iv.End
		}
	}
	total += curEnd.Sub(curStart).Minutes()
	return total
}

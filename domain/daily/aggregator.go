package daily

import (
	"sort"
	"time"

	"flomentum/domain/core"
)

// Aggregator buckets raw samples by local date and reduces each bucket into
// a MetricRow. It is pure: callers merge the output into stored rows.
type Aggregator struct {
	timezone string
}

// NewAggregator creates an aggregator for one user's prevailing timezone
func NewAggregator(timezone string) *Aggregator {
	return &Aggregator{timezone: timezone}
}

// Aggregate reduces a batch that may span multiple local days. Samples are
// de-duplicated by UUID first, so replaying a batch is idempotent.
func (a *Aggregator) Aggregate(userID core.UserID, samples []RawSample) []*MetricRow {
	seen := make(map[string]bool, len(samples))
	buckets := make(map[core.LocalDate][]RawSample)
	for _, s := range samples {
		if s.UUID != "" {
			if seen[s.UUID] {
				continue
			}
			seen[s.UUID] = true
		}
		date := core.NewLocalDate(s.Start, a.timezone)
		buckets[date] = append(buckets[date], s)
	}

	dates := make([]core.LocalDate, 0, len(buckets))
	for d := range buckets {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	rows := make([]*MetricRow, 0, len(dates))
	for _, date := range dates {
		rows = append(rows, a.reduce(userID, date, buckets[date]))
	}
	return rows
}

func (a *Aggregator) reduce(userID core.UserID, date core.LocalDate, samples []RawSample) *MetricRow {
	start, end := core.DayBounds(date, a.timezone)
	row := &MetricRow{
		UserID:      userID,
		LocalDate:   date,
		Timezone:    a.timezone,
		UTCDayStart: start,
		UTCDayEnd:   end,
		UpdatedAt:   time.Now().UTC(),
	}

	byType := make(map[SampleType][]RawSample)
	for _, s := range samples {
		byType[s.Type] = append(byType[s.Type], s)
	}

	if steps, sources, ok := reduceCount(byType[SampleSteps]); ok {
		row.Steps = &steps
		row.StepsSources = sources
	}
	if v, _, ok := reduceCount(byType[SampleActiveEnergy]); ok {
		row.ActiveEnergyKcal = &v
	}
	if v, _, ok := reduceCount(byType[SampleStandHours]); ok {
		row.StandHours = &v
	}
	if v, ok := reduceDuration(byType[SampleExerciseMinutes]); ok {
		row.ExerciseMinutes = &v
	}
	if v, ok := reduceInstant(byType[SampleHeartRate]); ok {
		row.AvgHR = &v
	}
	if v, ok := reduceInstant(byType[SampleRestingHR]); ok {
		row.RestingHR = &v
	}
	if v, ok := reduceInstant(byType[SampleHRV]); ok {
		row.HRVMs = &v
	}
	if v, ok := reduceInstant(byType[SampleRespiratoryRate]); ok {
		row.RespiratoryRate = &v
	}
	if v, ok := reduceInstant(byType[SampleOxygenSat]); ok {
		row.OxygenSatPct = &v
	}
	if v, ok := reduceSnapshot(byType[SampleWeight]); ok {
		row.WeightKg = &v
	}
	if v, ok := reduceSnapshot(byType[SampleBodyFat]); ok {
		row.BodyFatPct = &v
	}
	if v, ok := reduceSnapshot(byType[SampleBMI]); ok {
		row.BMI = &v
	}

	return row
}

// reduceCount sums per source, then picks the single source with the longest
// coverage as the de-duplicated value. Phone and watch both counting the same
// steps must not be added together.
func reduceCount(samples []RawSample) (float64, map[string]float64, bool) {
	if len(samples) == 0 {
		return 0, nil, false
	}
	sums := make(map[string]float64)
	coverage := make(map[string]time.Duration)
	for _, s := range samples {
		src := s.Source
		if src == "" {
			src = "unknown"
		}
		sums[src] += s.Value
		coverage[src] += s.Duration()
	}

	best := ""
	for src := range sums {
		if best == "" {
			best = src
			continue
		}
		if coverage[src] > coverage[best] ||
			(coverage[src] == coverage[best] && src < best) {
			best = src
		}
	}
	return sums[best], sums, true
}

// reduceInstant computes a time-weighted mean. Point samples (zero duration)
// weigh one second so pure point streams degrade to a plain mean.
func reduceInstant(samples []RawSample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var weighted, totalWeight float64
	for _, s := range samples {
		w := s.Duration().Seconds()
		if w <= 0 {
			w = 1
		}
		weighted += s.Value * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0, false
	}
	return weighted / totalWeight, true
}

func reduceDuration(samples []RawSample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	return sum, true
}

// reduceSnapshot keeps the latest sample of the day (weigh-ins, body comp)
func reduceSnapshot(samples []RawSample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	latest := samples[0]
	for _, s := range samples[1:] {
		if s.Start.After(latest.Start) {
			latest = s
		}
	}
	return latest.Value, true
}

// Merge folds a freshly aggregated row into an existing stored row,
// overwriting only the fields the new row carries. Last writer wins.
func Merge(existing, fresh *MetricRow) *MetricRow {
	if existing == nil {
		return fresh
	}
	out := *existing
	if fresh.Steps != nil {
		out.Steps = fresh.Steps
		out.StepsSources = fresh.StepsSources
	}
	if fresh.ActiveEnergyKcal != nil {
		out.ActiveEnergyKcal = fresh.ActiveEnergyKcal
	}
	if fresh.ExerciseMinutes != nil {
		out.ExerciseMinutes = fresh.ExerciseMinutes
	}
	if fresh.StandHours != nil {
		out.StandHours = fresh.StandHours
	}
	if fresh.SleepHours != nil {
		out.SleepHours = fresh.SleepHours
	}
	if fresh.RestingHR != nil {
		out.RestingHR = fresh.RestingHR
	}
	if fresh.AvgHR != nil {
		out.AvgHR = fresh.AvgHR
	}
	if fresh.HRVMs != nil {
		out.HRVMs = fresh.HRVMs
	}
	if fresh.RespiratoryRate != nil {
		out.RespiratoryRate = fresh.RespiratoryRate
	}
	if fresh.OxygenSatPct != nil {
		out.OxygenSatPct = fresh.OxygenSatPct
	}
	if fresh.WeightKg != nil {
		out.WeightKg = fresh.WeightKg
	}
	if fresh.BodyFatPct != nil {
		out.BodyFatPct = fresh.BodyFatPct
	}
	if fresh.BMI != nil {
		out.BMI = fresh.BMI
	}
	out.UpdatedAt = fresh.UpdatedAt
	return &out
}

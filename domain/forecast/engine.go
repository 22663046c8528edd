package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"flomentum/domain/core"
	"flomentum/domain/daily"
)

// KcalPerKg is the effective energy density of body-weight change
const KcalPerKg = 7700.0

// Engine computes one user's forecast from daily feature rows. Pure: the
// worker supplies rows, goal, and model state, and persists the result.
type Engine struct {
	HorizonDays  int
	TrendWindow  int // days per local regression window
	MaxInputDays int
}

// NewEngine returns an engine with the production defaults
func NewEngine(horizonDays int) *Engine {
	if horizonDays <= 0 {
		horizonDays = 42
	}
	return &Engine{HorizonDays: horizonDays, TrendWindow: 14, MaxInputDays: 120}
}

// Compute derives the full forecast result. rows must be sorted by
// LocalDate ascending; only rows with a weight matter.
func (e *Engine) Compute(userID core.UserID, rows []*daily.MetricRow, goal *Goal, state *ModelState, today core.LocalDate) *Result {
	if state == nil {
		state = DefaultModelState(userID)
	}
	now := time.Now().UTC()

	weights := weightSeries(rows, e.MaxInputDays, today)

	summary := Summary{
		UserID:      userID,
		Confidence:  ConfidenceLow,
		StatusChip:  StatusNeedsData,
		GeneratedAt: now,
	}

	if len(weights) == 0 {
		return &Result{Summary: summary}
	}

	latest := weights[len(weights)-1]
	summary.CurrentWeightKg = &latest.kg
	summary.StalenessDays = core.DaysBetween(latest.date, today)
	summary.WeighInsPerWeek = weighInsPerWeek(weights, today)

	if avg, ok := sevenDayAverage(weights, latest.date); ok {
		delta := latest.kg - avg
		summary.DeltaVs7dAvgKg = &delta
	}

	summary.Confidence = confidenceLevel(summary.WeighInsPerWeek, summary.StalenessDays)

	slope := e.trendSlope(weights)
	summary.SlopeKgPerDay = slope

	if goal != nil {
		if p, ok := progressPct(goal, latest.kg); ok {
			summary.ProgressPct = &p
		}
		summary.ETAWeeks, summary.ETADate = etaToTarget(goal, latest.kg, slope, now)
	}

	baseSigma := state.WaterNoiseSigma
	if baseSigma <= 0 {
		baseSigma = DefaultModelState(userID).WaterNoiseSigma
	}
	series := e.project(latest.kg, slope, baseSigma*summary.Confidence.BandMultiplier(), today)

	summary.StatusChip = statusChip(&summary, goal, now)

	result := &Result{
		Summary: summary,
		Series:  series,
	}
	if goal != nil {
		result.Drivers = e.drivers(goal, rows, weights, slope, summary.WeighInsPerWeek)
		result.Scenarios = e.simulate(goal, latest.kg, slope, baseSigma*summary.Confidence.BandMultiplier(), today, now)
	}
	result.ModelState = e.retrain(state, weights, today)
	return result
}

type weighIn struct {
	date core.LocalDate
	kg   float64
}

func weightSeries(rows []*daily.MetricRow, maxDays int, today core.LocalDate) []weighIn {
	cutoff := today.AddDays(-maxDays)
	var out []weighIn
	for _, row := range rows {
		if row.WeightKg == nil || row.LocalDate <= cutoff || row.LocalDate > today {
			continue
		}
		out = append(out, weighIn{date: row.LocalDate, kg: *row.WeightKg})
	}
	return out
}

func weighInsPerWeek(weights []weighIn, today core.LocalDate) float64 {
	cutoff := today.AddDays(-28)
	n := 0
	for _, w := range weights {
		if w.date > cutoff {
			n++
		}
	}
	return float64(n) / 4.0
}

func sevenDayAverage(weights []weighIn, latest core.LocalDate) (float64, bool) {
	cutoff := latest.AddDays(-7)
	var sum float64
	n := 0
	for _, w := range weights {
		if w.date > cutoff && w.date <= latest {
			sum += w.kg
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func confidenceLevel(weighInsPerWeek float64, stalenessDays int) Confidence {
	switch {
	case weighInsPerWeek < 2 || stalenessDays > 7:
		return ConfidenceLow
	case weighInsPerWeek >= 5 && stalenessDays <= 3:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

// trendSlope averages the last 7 per-day regression slopes; with too little
// history it falls back to a single regression over the available window.
func (e *Engine) trendSlope(weights []weighIn) float64 {
	if len(weights) < 2 {
		return 0
	}

	var slopes []float64
	for end := len(weights); end >= 2 && len(slopes) < 7; end-- {
		s, ok := regressionSlope(weights[:end], e.TrendWindow)
		if !ok {
			break
		}
		slopes = append(slopes, s)
	}
	if len(slopes) == 0 {
		s, _ := regressionSlope(weights, e.TrendWindow)
		return s
	}

	var sum float64
	for _, s := range slopes {
		sum += s
	}
	return sum / float64(len(slopes))
}

// regressionSlope fits kg ~ day over the trailing window of weigh-ins
func regressionSlope(weights []weighIn, windowDays int) (float64, bool) {
	if len(weights) < 2 {
		return 0, false
	}
	last := weights[len(weights)-1].date
	cutoff := last.AddDays(-windowDays)

	var xs, ys []float64
	for _, w := range weights {
		if w.date <= cutoff {
			continue
		}
		xs = append(xs, float64(core.DaysBetween(cutoff, w.date)))
		ys = append(ys, w.kg)
	}
	if len(xs) < 2 {
		return 0, false
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(slope) {
		return 0, false
	}
	return slope, true
}

// project builds the horizon band: mid(d) = start + slope*d,
// uncertainty(d) = sigma * sqrt(d/7).
func (e *Engine) project(start, slope, sigma float64, today core.LocalDate) []SeriesPoint {
	series := make([]SeriesPoint, 0, e.HorizonDays+1)
	for d := 0; d <= e.HorizonDays; d++ {
		mid := start + slope*float64(d)
		uncertainty := sigma * math.Sqrt(float64(d)/7.0)
		series = append(series, SeriesPoint{
			Day:  d,
			Date: today.AddDays(d),
			Mid:  round2(mid),
			Low:  round2(mid - uncertainty),
			High: round2(mid + uncertainty),
		})
	}
	return series
}

// etaToTarget returns weeks to target, or nil when the trend cannot reach it:
// zero slope, wrong direction for the goal, or beyond a year out.
func etaToTarget(goal *Goal, current, slope float64, now time.Time) (*float64, *time.Time) {
	if goal.Type == GoalMaintain || goal.TargetWeightKg <= 0 {
		return nil, nil
	}
	remaining := goal.TargetWeightKg - current
	if remaining == 0 {
		zero := 0.0
		return &zero, &now
	}
	// Direction consistency: a losing goal requires a negative slope
	if slope == 0 || (remaining < 0) != (slope < 0) {
		return nil, nil
	}
	days := remaining / slope
	if days <= 0 || days > 365 {
		return nil, nil
	}
	weeks := round2(days / 7)
	eta := now.AddDate(0, 0, int(math.Ceil(days)))
	return &weeks, &eta
}

func progressPct(goal *Goal, current float64) (float64, bool) {
	total := goal.TargetWeightKg - goal.StartWeightKg
	if total == 0 {
		return 0, false
	}
	p := (current - goal.StartWeightKg) / total * 100
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return round2(p), true
}

func statusChip(s *Summary, goal *Goal, now time.Time) StatusChip {
	if s.CurrentWeightKg == nil || goal == nil || s.StalenessDays > 7 {
		return StatusNeedsData
	}
	if goal.Type == GoalMaintain {
		return StatusOnTrack
	}

	// Trend contradicting the goal direction is always at risk
	wantLoss := goal.TargetWeightKg < *s.CurrentWeightKg
	if s.ETAWeeks == nil {
		if (wantLoss && s.SlopeKgPerDay >= 0) || (!wantLoss && s.SlopeKgPerDay <= 0) {
			return StatusAtRisk
		}
		return StatusNeedsData
	}

	if goal.TargetDate != nil && s.ETADate != nil {
		grace := goal.TargetDate.AddDate(0, 0, 14)
		if s.ETADate.After(grace) {
			return StatusAtRisk
		}
	}
	return StatusOnTrack
}

// retrain updates model state when at least 14 days of trend data exist:
// sigma from residuals around the fitted trend, baseline slope from the
// current average.
func (e *Engine) retrain(state *ModelState, weights []weighIn, today core.LocalDate) *ModelState {
	if len(weights) < 14 {
		return state
	}
	slope, ok := regressionSlope(weights, e.MaxInputDays)
	if !ok {
		return state
	}

	first := weights[0]
	var residuals []float64
	for _, w := range weights {
		fitted := first.kg + slope*float64(core.DaysBetween(first.date, w.date))
		residuals = append(residuals, w.kg-fitted)
	}
	sigma := stat.StdDev(residuals, nil)

	updated := *state
	if !math.IsNaN(sigma) && sigma > 0 {
		updated.WaterNoiseSigma = round3(sigma)
	}
	updated.BaselineWeightTrendSlope = round3(slope)
	trained := today
	updated.LastTrainedLocalDate = &trained
	updated.UpdatedAt = time.Now().UTC()
	return &updated
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

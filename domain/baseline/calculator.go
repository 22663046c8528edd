// Package baseline computes rolling personal baselines: trailing-window
// median and interquartile bounds per metric, used by the scoring engines to
// judge deviation from the user's own normal.
package baseline

import (
	"time"

	"github.com/montanaflynn/stats"

	"flomentum/domain/core"
	"flomentum/domain/daily"
)

// Metric identifies a baselined daily metric
type Metric string

const (
	MetricRestingHR       Metric = "resting_hr"
	MetricHRV             Metric = "hrv"
	MetricRespiratoryRate Metric = "respiratory_rate"
	MetricSteps           Metric = "steps"
)

// Metrics is the full set recomputed on the nightly refresh
var Metrics = []Metric{MetricRestingHR, MetricHRV, MetricRespiratoryRate, MetricSteps}

// Windows are the trailing-day spans computed per metric
var Windows = []int{14, 28, 90}

// MinDataPoints is the floor below which a baseline is flagged insufficient
// and downstream scorers fall back to global defaults.
const MinDataPoints = 7

// Baseline is one (user, metric, window) rolling summary.
type Baseline struct {
	UserID           core.UserID `json:"user_id"`
	Metric           Metric      `json:"metric"`
	WindowDays       int         `json:"window_days"`
	Median           float64     `json:"median"`
	P25              float64     `json:"p25"`
	P75              float64     `json:"p75"`
	Count            int         `json:"count"`
	InsufficientData bool        `json:"insufficient_data"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Set indexes baselines by metric and window for scorer lookups
type Set map[Metric]map[int]*Baseline

// Get returns the baseline for a metric/window, nil when absent
func (s Set) Get(m Metric, windowDays int) *Baseline {
	if s == nil {
		return nil
	}
	return s[m][windowDays]
}

// Ready reports whether a usable (non-insufficient) baseline exists
func (s Set) Ready(m Metric, windowDays int) bool {
	b := s.Get(m, windowDays)
	return b != nil && !b.InsufficientData
}

// Compute derives every metric x window baseline from daily rows. asOf is
// the exclusive upper bound; rows newer than it are ignored so the nightly
// job is safely re-runnable.
func Compute(userID core.UserID, rows []*daily.MetricRow, asOf core.LocalDate) Set {
	now := time.Now().UTC()
	out := make(Set, len(Metrics))
	for _, metric := range Metrics {
		out[metric] = make(map[int]*Baseline, len(Windows))
		for _, window := range Windows {
			out[metric][window] = computeOne(userID, metric, window, rows, asOf, now)
		}
	}
	return out
}

func computeOne(userID core.UserID, metric Metric, windowDays int, rows []*daily.MetricRow, asOf core.LocalDate, now time.Time) *Baseline {
	cutoff := asOf.AddDays(-windowDays)

	var values []float64
	for _, row := range rows {
		if row.LocalDate <= cutoff || row.LocalDate > asOf {
			continue
		}
		if v, ok := metricValue(row, metric); ok {
			values = append(values, v)
		}
	}

	b := &Baseline{
		UserID:     userID,
		Metric:     metric,
		WindowDays: windowDays,
		Count:      len(values),
		UpdatedAt:  now,
	}
	if len(values) < MinDataPoints {
		b.InsufficientData = true
		return b
	}

	data := stats.Float64Data(values)
	b.Median, _ = stats.Median(data)
	b.P25, _ = stats.Percentile(data, 25)
	b.P75, _ = stats.Percentile(data, 75)
	return b
}

func metricValue(row *daily.MetricRow, metric Metric) (float64, bool) {
	var v *float64
	switch metric {
	case MetricRestingHR:
		v = row.RestingHR
	case MetricHRV:
		v = row.HRVMs
	case MetricRespiratoryRate:
		v = row.RespiratoryRate
	case MetricSteps:
		v = row.Steps
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

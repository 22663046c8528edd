package insight

import (
	"fmt"
	"sort"

	"flomentum/domain/baseline"
	"flomentum/domain/core"
	"flomentum/domain/daily"
)

// Correlator scans recent daily feature rows plus the life-event log for
// repeated next-day physiological responses and proposes cards for them.
type Correlator struct {
	MinConfidence  float64
	MinOccurrences int
	LookbackDays   int
}

// NewCorrelator returns a scanner with production defaults
func NewCorrelator() *Correlator {
	return &Correlator{
		MinConfidence:  MinConfidence,
		MinOccurrences: 3,
		LookbackDays:   30,
	}
}

// correlation metric definitions: a response counts when the next-day value
// deviates from the 28-day median by at least the threshold in the stated
// direction.
type responseMetric struct {
	name      string
	metric    baseline.Metric
	threshold float64 // minimum deviation, signed
	unit      string
	extract   func(*daily.MetricRow) *float64
}

var responseMetrics = []responseMetric{
	{
		name:      "resting_hr",
		metric:    baseline.MetricRestingHR,
		threshold: 3, // bpm above baseline
		unit:      "bpm",
		extract:   func(r *daily.MetricRow) *float64 { return r.RestingHR },
	},
	{
		name:      "hrv",
		metric:    baseline.MetricHRV,
		threshold: -8, // ms below baseline
		unit:      "ms",
		extract:   func(r *daily.MetricRow) *float64 { return r.HRVMs },
	},
}

var eventLabels = map[LifeEventKind]string{
	EventAlcohol:    "alcohol",
	EventLateMeal:   "late meals",
	EventTravel:     "travel",
	EventHighStress: "high stress",
	EventIllness:    "illness",
}

// Scan proposes correlation cards from the lookback window. rows must be
// sorted by LocalDate ascending. Cards below the confidence floor are not
// returned; dedup against previously persisted signatures is the caller's
// job.
func (c *Correlator) Scan(userID core.UserID, rows []*daily.MetricRow, events []LifeEvent, baselines baseline.Set, today core.LocalDate) []Card {
	cutoff := today.AddDays(-c.LookbackDays)

	byDate := make(map[core.LocalDate]*daily.MetricRow, len(rows))
	for _, row := range rows {
		if row.LocalDate > cutoff {
			byDate[row.LocalDate] = row
		}
	}

	eventDates := make(map[LifeEventKind][]core.LocalDate)
	for _, ev := range events {
		if ev.UserID == userID && ev.LocalDate > cutoff && ev.LocalDate <= today {
			eventDates[ev.Kind] = append(eventDates[ev.Kind], ev.LocalDate)
		}
	}

	var cards []Card
	for kind, dates := range eventDates {
		sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
		for _, rm := range responseMetrics {
			if card, ok := c.scanPattern(userID, kind, dates, rm, byDate, baselines, today); ok {
				cards = append(cards, card)
			}
		}
	}

	sort.SliceStable(cards, func(i, j int) bool { return cards[i].ConfidenceScore > cards[j].ConfidenceScore })
	return cards
}

func (c *Correlator) scanPattern(userID core.UserID, kind LifeEventKind, dates []core.LocalDate, rm responseMetric, byDate map[core.LocalDate]*daily.MetricRow, baselines baseline.Set, today core.LocalDate) (Card, bool) {
	base := baselines.Get(rm.metric, 28)
	if base == nil || base.InsufficientData {
		return Card{}, false
	}

	var observed, hits int
	var deltaSum float64
	for _, date := range dates {
		row := byDate[date.AddDays(1)]
		if row == nil {
			continue
		}
		v := rm.extract(row)
		if v == nil {
			continue
		}
		observed++
		delta := *v - base.Median
		if (rm.threshold > 0 && delta >= rm.threshold) || (rm.threshold < 0 && delta <= rm.threshold) {
			hits++
			deltaSum += delta
		}
	}
	if observed < c.MinOccurrences || hits == 0 {
		return Card{}, false
	}

	confidence := float64(hits) / float64(observed)
	if confidence < c.MinConfidence {
		return Card{}, false
	}

	direction := "up"
	if rm.threshold < 0 {
		direction = "down"
	}
	signature := core.ComputePatternSignature(map[string]string{
		"category":  string(CategoryCorrelation),
		"target":    rm.name,
		"trigger":   string(kind),
		"direction": direction,
	})

	avgDelta := deltaSum / float64(hits)
	target := rm.name
	body := fmt.Sprintf("%s %+.0f %s within 24h of %s events, %d/%d occurrences.",
		metricLabel(rm.name), avgDelta, rm.unit, eventLabels[kind], hits, observed)

	card := Card{
		ID:               core.InsightID(core.NewID()),
		UserID:           userID,
		Category:         CategoryCorrelation,
		Title:            patternTitle(kind, rm, direction),
		Body:             body,
		TargetBiomarker:  &target,
		ConfidenceScore:  round2(confidence),
		PatternSignature: signature,
		GeneratedDate:    today,
		IsNew:            true,
	}
	return card, true
}

func patternTitle(kind LifeEventKind, rm responseMetric, direction string) string {
	verb := "rises"
	if direction == "down" {
		verb = "drops"
	}
	return fmt.Sprintf("%s %s after %s", metricLabel(rm.name), verb, eventLabels[kind])
}

func metricLabel(name string) string {
	switch name {
	case "resting_hr":
		return "Resting HR"
	case "hrv":
		return "HRV"
	default:
		return name
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

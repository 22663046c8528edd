// Package measurement holds the persisted measurement model: test sessions
// grouping observations collected together, and the normalised measurements
// themselves.
package measurement

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"flomentum/domain/biomarker"
	"flomentum/domain/core"
	"flomentum/domain/normalize"
)

// Source records how a measurement entered the system
type Source string

const (
	SourceManual      Source = "manual"
	SourceAIExtracted Source = "ai_extracted"
	SourceCorrected   Source = "corrected"
	SourceImport      Source = "import"
)

// Session groups measurements collected together, usually one lab draw.
type Session struct {
	ID        core.SessionID `json:"id" db:"id"`
	UserID    core.UserID    `json:"user_id" db:"user_id"`
	Source    Source         `json:"source" db:"source"`
	TestDate  time.Time      `json:"test_date" db:"test_date"`
	LabName   string         `json:"lab_name,omitempty" db:"lab_name"`
	Notes     string         `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Measurement is one canonically normalised observation.
// ValueCanonical and UnitCanonical are never empty after creation.
type Measurement struct {
	ID             core.MeasurementID `json:"id"`
	SessionID      core.SessionID     `json:"session_id"`
	UserID         core.UserID        `json:"user_id"`
	BiomarkerID    core.BiomarkerID   `json:"biomarker_id"`
	Source         Source             `json:"source"`
	ValueRaw       float64            `json:"value_raw"`
	UnitRaw        string             `json:"unit_raw"`
	ValueCanonical float64            `json:"value_canonical"`
	UnitCanonical  string             `json:"unit_canonical"`
	ValueDisplay   float64            `json:"value_display"`
	UnitDisplay    string             `json:"unit_display"`
	ReferenceLow   *float64           `json:"reference_low,omitempty"`
	ReferenceHigh  *float64           `json:"reference_high,omitempty"`
	Flags          []biomarker.Flag   `json:"flags,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
	Context        normalize.Context  `json:"normalization_context"`
	TestDate       time.Time          `json:"test_date"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	UpdatedBy      *core.UserID       `json:"updated_by,omitempty"`
}

// FromResult builds a measurement from a normalisation result
func FromResult(res *normalize.Result, userID core.UserID, sessionID core.SessionID, source Source, testDate time.Time) *Measurement {
	now := time.Now().UTC()
	return &Measurement{
		ID:             core.MeasurementID(core.NewID()),
		SessionID:      sessionID,
		UserID:         userID,
		BiomarkerID:    res.BiomarkerID,
		Source:         source,
		ValueRaw:       res.ValueRaw,
		UnitRaw:        res.UnitRaw,
		ValueCanonical: res.ValueCanonical,
		UnitCanonical:  res.UnitCanonical,
		ValueDisplay:   res.ValueDisplay,
		UnitDisplay:    res.UnitDisplay,
		ReferenceLow:   res.ReferenceLow,
		ReferenceHigh:  res.ReferenceHigh,
		Flags:          res.Flags,
		Warnings:       res.Warnings,
		Context:        res.ContextUsed,
		TestDate:       testDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ApplyEdit re-applies a fresh normalisation result to an existing
// measurement. An AI-extracted measurement becomes corrected once edited.
func (m *Measurement) ApplyEdit(res *normalize.Result, editor core.UserID) {
	m.BiomarkerID = res.BiomarkerID
	m.ValueRaw = res.ValueRaw
	m.UnitRaw = res.UnitRaw
	m.ValueCanonical = res.ValueCanonical
	m.UnitCanonical = res.UnitCanonical
	m.ValueDisplay = res.ValueDisplay
	m.UnitDisplay = res.UnitDisplay
	m.ReferenceLow = res.ReferenceLow
	m.ReferenceHigh = res.ReferenceHigh
	m.Flags = res.Flags
	m.Warnings = res.Warnings
	m.Context = res.ContextUsed
	m.UpdatedAt = time.Now().UTC()
	m.UpdatedBy = &editor
	if m.Source == SourceAIExtracted {
		m.Source = SourceCorrected
	}
}

// IsDuplicateValue reports whether two canonical values are the same
// observation within the dedup epsilon (a fraction of the value).
func IsDuplicateValue(a, b, epsilonFraction float64) bool {
	if a == b {
		return true
	}
	ref := math.Max(math.Abs(a), math.Abs(b))
	if ref == 0 {
		return true
	}
	return math.Abs(a-b) < epsilonFraction*ref
}

// Fingerprint is the insight-cache key component derived from this
// measurement: a new canonical value always busts the cache.
func (m *Measurement) Fingerprint() string {
	return fmt.Sprintf("%s:%s", m.ID, strconv.FormatFloat(m.ValueCanonical, 'f', -1, 64))
}

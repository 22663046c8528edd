// Package insight holds the daily insight card model, the shape contract for
// AI-generated biomarker insights, and the correlation scanner that proposes
// cards from daily features and life events.
package insight

import (
	"encoding/json"
	"fmt"
	"time"

	"flomentum/domain/core"
)

// Category buckets an insight card for client grouping
type Category string

const (
	CategoryCorrelation Category = "correlation"
	CategoryBiomarker   Category = "biomarker"
	CategoryLifestyle   Category = "lifestyle"
	CategoryRecovery    Category = "recovery"
)

// MinConfidence is the persistence floor for generated cards
const MinConfidence = 0.6

// DefaultTTLDays bounds how long a cached AI insight stays fresh
const DefaultTTLDays = 30

// Card is one surfaced insight. PatternSignature identifies the claimed
// pattern so the same card is not re-created on every scan.
type Card struct {
	ID               core.InsightID        `json:"id"`
	UserID           core.UserID           `json:"user_id"`
	Category         Category              `json:"category"`
	Title            string                `json:"title"`
	Body             string                `json:"body"`
	Action           string                `json:"action,omitempty"`
	TargetBiomarker  *string               `json:"target_biomarker,omitempty"`
	CurrentValue     *float64              `json:"current_value,omitempty"`
	TargetValue      *float64              `json:"target_value,omitempty"`
	ConfidenceScore  float64               `json:"confidence_score"`
	PatternSignature core.PatternSignature `json:"pattern_signature"`
	GeneratedDate    core.LocalDate        `json:"generated_date"`
	IsDismissed      bool                  `json:"is_dismissed"`
	IsNew            bool                  `json:"is_new"`
}

// GeneratorOutput is the structured object an AI insight generator must
// return. The content is opaque; only the shape is checked.
type GeneratorOutput struct {
	LifestyleActions []string `json:"lifestyleActions"`
	Nutrition        []string `json:"nutrition"`
	Supplementation  []string `json:"supplementation"`
	MedicalReferral  string   `json:"medicalReferral"`
	MedicalUrgency   string   `json:"medicalUrgency"`
}

var validUrgencies = map[string]bool{"none": true, "routine": true, "soon": true, "urgent": true}

// Validate checks the generator output shape without judging its content
func (o *GeneratorOutput) Validate() error {
	if len(o.LifestyleActions) == 0 && len(o.Nutrition) == 0 && len(o.Supplementation) == 0 {
		return core.NewValidationError("insight", "at least one action list must be non-empty")
	}
	if o.MedicalUrgency != "" && !validUrgencies[o.MedicalUrgency] {
		return core.NewValidationError("medicalUrgency", fmt.Sprintf("unknown urgency %q", o.MedicalUrgency))
	}
	return nil
}

// CacheEntry is one fingerprint-keyed cached AI insight. A new measurement
// value produces a new fingerprint, so stale entries are never served as
// current by accident.
type CacheEntry struct {
	UserID      core.UserID      `json:"user_id"`
	BiomarkerID core.BiomarkerID `json:"biomarker_id"`
	Fingerprint string           `json:"fingerprint"`
	GeneratedAt time.Time        `json:"generated_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Payload     json.RawMessage  `json:"payload"`
}

// Expired reports whether the entry has passed its TTL
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Envelope wraps a served insight payload. Stale is set when a past-TTL or
// superseded entry is served because live generation failed.
type Envelope struct {
	Payload     json.RawMessage `json:"payload"`
	Stale       bool            `json:"stale"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// LifeEventKind classifies a logged life event
type LifeEventKind string

const (
	EventAlcohol    LifeEventKind = "alcohol"
	EventLateMeal   LifeEventKind = "late_meal"
	EventTravel     LifeEventKind = "travel"
	EventHighStress LifeEventKind = "high_stress"
	EventIllness    LifeEventKind = "illness"
)

// LifeEvent is one user-logged event the correlation scan can anchor on
type LifeEvent struct {
	ID        core.ID        `json:"id" db:"id"`
	UserID    core.UserID    `json:"user_id" db:"user_id"`
	LocalDate core.LocalDate `json:"local_date" db:"local_date"`
	Kind      LifeEventKind  `json:"kind" db:"kind"`
	Note      string         `json:"note,omitempty" db:"note"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

package biomarker

import (
	"flomentum/domain/core"
)

// Category groups biomarkers for display and catalog organisation
type Category string

const (
	CategoryMetabolic   Category = "metabolic"
	CategoryLipids      Category = "lipids"
	CategoryHormones    Category = "hormones"
	CategoryVitamins    Category = "vitamins"
	CategoryMinerals    Category = "minerals"
	CategoryBloodCount  Category = "blood_count"
	CategoryLiver       Category = "liver"
	CategoryKidney      Category = "kidney"
	CategoryThyroid     Category = "thyroid"
	CategoryInflammation Category = "inflammation"
	CategoryCardiac     Category = "cardiac"
	CategoryBodyComp    Category = "body_composition"
)

// Sex is the biological sex dimension used by reference ranges
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Biomarker is immutable reference data describing a single canonical marker.
type Biomarker struct {
	ID              core.BiomarkerID `json:"id" yaml:"id"`
	CanonicalName   string           `json:"canonical_name" yaml:"canonical_name"`
	Category        Category         `json:"category" yaml:"category"`
	CanonicalUnit   string           `json:"canonical_unit" yaml:"canonical_unit"`
	DisplayUnit     string           `json:"display_unit,omitempty" yaml:"display_unit,omitempty"`
	Precision       int              `json:"precision" yaml:"precision"`
	DefaultRefMin   *float64         `json:"default_ref_min,omitempty" yaml:"default_ref_min,omitempty"`
	DefaultRefMax   *float64         `json:"default_ref_max,omitempty" yaml:"default_ref_max,omitempty"`
	Synonyms        []string         `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	Conversions     []UnitConversion `json:"conversions,omitempty" yaml:"conversions,omitempty"`
	ReferenceRanges []ReferenceRange `json:"reference_ranges,omitempty" yaml:"reference_ranges,omitempty"`
}

// ConversionKind distinguishes pure scaling from affine conversions
type ConversionKind string

const (
	ConversionLinear ConversionKind = "LINEAR"
	ConversionAffine ConversionKind = "AFFINE"
)

// UnitConversion is a directional edge in the unit graph.
// LINEAR: canonical = raw * Multiplier. AFFINE: canonical = raw * Multiplier + Offset.
type UnitConversion struct {
	FromUnit   string         `json:"from_unit" yaml:"from_unit"`
	ToUnit     string         `json:"to_unit" yaml:"to_unit"`
	Kind       ConversionKind `json:"kind" yaml:"kind"`
	Multiplier float64        `json:"multiplier" yaml:"multiplier"`
	Offset     float64        `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Apply converts a raw value along this edge
func (c UnitConversion) Apply(v float64) float64 {
	switch c.Kind {
	case ConversionAffine:
		return v*c.Multiplier + c.Offset
	default:
		return v * c.Multiplier
	}
}

// Invert returns the reverse edge. Only valid for non-zero multipliers.
func (c UnitConversion) Invert() UnitConversion {
	inv := UnitConversion{
		FromUnit:   c.ToUnit,
		ToUnit:     c.FromUnit,
		Kind:       c.Kind,
		Multiplier: 1 / c.Multiplier,
	}
	if c.Kind == ConversionAffine {
		inv.Offset = -c.Offset / c.Multiplier
	}
	return inv
}

// RangeContext is the partial description of who a reference range applies to.
// Nil fields mean "not constrained on this dimension".
type RangeContext struct {
	AgeYearsMin *float64 `json:"age_years_min,omitempty" yaml:"age_years_min,omitempty"`
	AgeYearsMax *float64 `json:"age_years_max,omitempty" yaml:"age_years_max,omitempty"`
	Sex         *Sex     `json:"sex,omitempty" yaml:"sex,omitempty"`
	Fasting     *bool    `json:"fasting,omitempty" yaml:"fasting,omitempty"`
	Pregnancy   *bool    `json:"pregnancy,omitempty" yaml:"pregnancy,omitempty"`
	Method      *string  `json:"method,omitempty" yaml:"method,omitempty"`
	LabID       *string  `json:"lab_id,omitempty" yaml:"lab_id,omitempty"`
}

// Specificity counts constrained dimensions; used to break scoring ties.
func (c RangeContext) Specificity() int {
	n := 0
	if c.AgeYearsMin != nil || c.AgeYearsMax != nil {
		n++
	}
	if c.Sex != nil {
		n++
	}
	if c.Fasting != nil {
		n++
	}
	if c.Pregnancy != nil {
		n++
	}
	if c.Method != nil {
		n++
	}
	if c.LabID != nil {
		n++
	}
	return n
}

// ReferenceRange is an acceptable band for a biomarker under a context.
// Values are expressed in the range's own Unit, which must be convertible
// to the biomarker's canonical unit.
type ReferenceRange struct {
	Unit         string       `json:"unit" yaml:"unit"`
	Low          *float64     `json:"low,omitempty" yaml:"low,omitempty"`
	High         *float64     `json:"high,omitempty" yaml:"high,omitempty"`
	CriticalLow  *float64     `json:"critical_low,omitempty" yaml:"critical_low,omitempty"`
	CriticalHigh *float64     `json:"critical_high,omitempty" yaml:"critical_high,omitempty"`
	Context      RangeContext `json:"context" yaml:"context"`
	// SourcePriority breaks remaining ties deterministically; lower wins.
	SourcePriority int `json:"source_priority,omitempty" yaml:"source_priority,omitempty"`
}

// Flag is a categorical annotation assigned against the selected range
type Flag string

const (
	FlagLow          Flag = "low"
	FlagHigh         Flag = "high"
	FlagCriticalLow  Flag = "critical_low"
	FlagCriticalHigh Flag = "critical_high"
	FlagOptimal      Flag = "optimal"
)

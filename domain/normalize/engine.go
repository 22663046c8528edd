// Package normalize turns raw (name, value, unit) observations into canonical,
// reference-ranged measurements. The engine is a pure function of its inputs
// and a catalog snapshot: the same call always yields the same result.
package normalize

import (
	"fmt"
	"math"

	"flomentum/domain/biomarker"
	"flomentum/domain/core"
)

// Input is a single raw observation as it arrives from a lab document,
// a manual entry, or a bulk import row.
type Input struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Context carries the user state used to select a reference range.
// Every field is independently optional.
type Context struct {
	AgeYears  *float64       `json:"age_years,omitempty"`
	Sex       *biomarker.Sex `json:"sex,omitempty"`
	Fasting   *bool          `json:"fasting,omitempty"`
	Pregnancy *bool          `json:"pregnancy,omitempty"`
	Method    *string        `json:"method,omitempty"`
	LabID     *string        `json:"lab_id,omitempty"`
}

// Result is a fully normalised measurement, sufficient to reproduce the
// calculation: canonical value, the selected range, flags, and warnings.
type Result struct {
	BiomarkerID    core.BiomarkerID          `json:"biomarker_id"`
	CanonicalName  string                    `json:"canonical_name"`
	ValueRaw       float64                   `json:"value_raw"`
	UnitRaw        string                    `json:"unit_raw"`
	ValueCanonical float64                   `json:"value_canonical"`
	UnitCanonical  string                    `json:"unit_canonical"`
	ValueDisplay   float64                   `json:"value_display"`
	UnitDisplay    string                    `json:"unit_display"`
	ReferenceLow   *float64                  `json:"reference_low,omitempty"`
	ReferenceHigh  *float64                  `json:"reference_high,omitempty"`
	SelectedRange  *biomarker.ReferenceRange `json:"selected_range,omitempty"`
	Flags          []biomarker.Flag          `json:"flags,omitempty"`
	Warnings       []string                  `json:"warnings,omitempty"`
	ContextUsed    Context                   `json:"context_used"`
}

// Engine normalises raw observations against a catalog snapshot
type Engine struct {
	snap *biomarker.Snapshot
}

// NewEngine creates an engine bound to one snapshot. Callers that want hot
// reload take a fresh engine per call via catalog.Snapshot().
func NewEngine(snap *biomarker.Snapshot) *Engine {
	return &Engine{snap: snap}
}

// Normalise resolves the name, converts units, selects a reference range and
// assigns flags. Errors are the structured kinds from domain/core; the engine
// never panics on malformed input.
func (e *Engine) Normalise(input Input, ctx Context) (*Result, error) {
	marker, ok := e.snap.Resolve(input.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrBiomarkerNotFound, input.Name)
	}
	if math.IsNaN(input.Value) || math.IsInf(input.Value, 0) {
		return nil, core.NewValidationError("value", "must be a finite number")
	}

	unitRaw := input.Unit
	if unitRaw == "" {
		unitRaw = marker.CanonicalUnit
	}

	canonical, err := e.snap.Convert(marker.ID, input.Value, unitRaw, marker.CanonicalUnit)
	if err != nil {
		return nil, err
	}

	result := &Result{
		BiomarkerID:    marker.ID,
		CanonicalName:  marker.CanonicalName,
		ValueRaw:       input.Value,
		UnitRaw:        unitRaw,
		ValueCanonical: roundTo(canonical, marker.Precision),
		UnitCanonical:  marker.CanonicalUnit,
		ContextUsed:    ctx,
	}

	result.ValueDisplay, result.UnitDisplay = e.displayValue(marker, canonical)

	selected, warnings := selectRange(marker, ctx)
	result.Warnings = warnings
	if selected != nil {
		// Ranges may be authored in any convertible unit
		low, high, critLow, critHigh, convErr := e.rangeInCanonical(marker, selected)
		if convErr != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrRangeSelection, convErr)
		}
		result.SelectedRange = selected
		result.ReferenceLow = low
		result.ReferenceHigh = high
		result.Flags = assignFlags(result.ValueCanonical, low, high, critLow, critHigh)
	}

	return result, nil
}

// NormaliseBatch normalises a slice of inputs, collecting per-item failures
// instead of aborting. The returned slices are index-aligned with inputs.
func (e *Engine) NormaliseBatch(inputs []Input, ctx Context) ([]*Result, []error) {
	results := make([]*Result, len(inputs))
	errs := make([]error, len(inputs))
	for i, in := range inputs {
		results[i], errs[i] = e.Normalise(in, ctx)
	}
	return results, errs
}

func (e *Engine) displayValue(m *biomarker.Biomarker, canonical float64) (float64, string) {
	if m.DisplayUnit == "" || m.DisplayUnit == m.CanonicalUnit {
		return roundTo(canonical, m.Precision), m.CanonicalUnit
	}
	v, err := e.snap.Convert(m.ID, canonical, m.CanonicalUnit, m.DisplayUnit)
	if err != nil {
		// Missing display edge degrades to canonical, never fails the measurement
		return roundTo(canonical, m.Precision), m.CanonicalUnit
	}
	return roundTo(v, m.Precision), m.DisplayUnit
}

func (e *Engine) rangeInCanonical(m *biomarker.Biomarker, r *biomarker.ReferenceRange) (low, high, critLow, critHigh *float64, err error) {
	conv := func(v *float64) (*float64, error) {
		if v == nil {
			return nil, nil
		}
		if r.Unit == "" || r.Unit == m.CanonicalUnit {
			return v, nil
		}
		out, err := e.snap.Convert(m.ID, *v, r.Unit, m.CanonicalUnit)
		if err != nil {
			return nil, err
		}
		return &out, nil
	}
	if low, err = conv(r.Low); err != nil {
		return
	}
	if high, err = conv(r.High); err != nil {
		return
	}
	if critLow, err = conv(r.CriticalLow); err != nil {
		return
	}
	critHigh, err = conv(r.CriticalHigh)
	return
}

func assignFlags(v float64, low, high, critLow, critHigh *float64) []biomarker.Flag {
	switch {
	case critLow != nil && v < *critLow:
		return []biomarker.Flag{biomarker.FlagCriticalLow, biomarker.FlagLow}
	case critHigh != nil && v > *critHigh:
		return []biomarker.Flag{biomarker.FlagCriticalHigh, biomarker.FlagHigh}
	case low != nil && v < *low:
		return []biomarker.Flag{biomarker.FlagLow}
	case high != nil && v > *high:
		return []biomarker.Flag{biomarker.FlagHigh}
	default:
		return nil
	}
}

func roundTo(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

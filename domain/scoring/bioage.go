package scoring

import (
	"time"

	"flomentum/domain/core"
	"flomentum/domain/measurement"
)

// BioAgeMarker describes one panel member: the population mean/SD of its
// canonical value and how strongly its deviation ages the user (years per SD,
// signed: positive means high values age you).
type BioAgeMarker struct {
	BiomarkerID core.BiomarkerID `json:"biomarker_id" yaml:"biomarker_id"`
	Mean        float64          `json:"mean" yaml:"mean"`
	SD          float64          `json:"sd" yaml:"sd"`
	YearsPerSD  float64          `json:"years_per_sd" yaml:"years_per_sd"`
}

// DefaultBioAgePanel is a phenotypic-age style marker panel over common
// chemistry values (canonical units).
var DefaultBioAgePanel = []BioAgeMarker{
	{BiomarkerID: "glucose", Mean: 5.1, SD: 0.6, YearsPerSD: 1.5},
	{BiomarkerID: "crp", Mean: 1.5, SD: 1.2, YearsPerSD: 2.0},
	{BiomarkerID: "creatinine", Mean: 80, SD: 15, YearsPerSD: 1.2},
	{BiomarkerID: "albumin", Mean: 45, SD: 3, YearsPerSD: -1.8},
	{BiomarkerID: "alkaline_phosphatase", Mean: 70, SD: 20, YearsPerSD: 1.0},
	{BiomarkerID: "wbc", Mean: 6.5, SD: 1.5, YearsPerSD: 1.0},
	{BiomarkerID: "lymphocyte_pct", Mean: 30, SD: 7, YearsPerSD: -1.2},
	{BiomarkerID: "mcv", Mean: 90, SD: 4, YearsPerSD: 0.8},
	{BiomarkerID: "rdw", Mean: 13, SD: 1, YearsPerSD: 1.5},
	{BiomarkerID: "hba1c", Mean: 5.4, SD: 0.4, YearsPerSD: 1.5},
}

// MinBioAgeMarkers is the panel floor below which the estimate is refused
const MinBioAgeMarkers = 4

// BioAge is the biological-age estimate with its contributing markers.
type BioAge struct {
	UserID           core.UserID     `json:"user_id"`
	ChronologicalAge float64         `json:"chronological_age"`
	BiologicalAge    float64         `json:"biological_age"`
	DeltaYears       float64         `json:"delta_years"`
	MarkersUsed      int             `json:"markers_used"`
	Contributions    []BioAgeContrib `json:"contributions"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// BioAgeContrib explains one marker's effect on the estimate
type BioAgeContrib struct {
	BiomarkerID core.BiomarkerID `json:"biomarker_id"`
	Value       float64          `json:"value"`
	ZScore      float64          `json:"z_score"`
	DeltaYears  float64          `json:"delta_years"`
}

// ComputeBioAge estimates biological age from the latest canonical
// measurement of each panel marker. Contributions are capped at +/-3 SD so a
// single wild lab value cannot dominate.
func ComputeBioAge(userID core.UserID, chronoAge float64, panel []BioAgeMarker, latest map[core.BiomarkerID]*measurement.Measurement) (*BioAge, error) {
	if chronoAge <= 0 {
		return nil, core.NewValidationError("chronological_age", "required for biological age")
	}
	if len(panel) == 0 {
		panel = DefaultBioAgePanel
	}

	out := &BioAge{
		UserID:           userID,
		ChronologicalAge: chronoAge,
		GeneratedAt:      time.Now().UTC(),
	}

	var delta float64
	for _, marker := range panel {
		m, ok := latest[marker.BiomarkerID]
		if !ok || marker.SD <= 0 {
			continue
		}
		z := (m.ValueCanonical - marker.Mean) / marker.SD
		if z > 3 {
			z = 3
		} else if z < -3 {
			z = -3
		}
		contribution := z * marker.YearsPerSD
		delta += contribution
		out.Contributions = append(out.Contributions, BioAgeContrib{
			BiomarkerID: marker.BiomarkerID,
			Value:       m.ValueCanonical,
			ZScore:      z,
			DeltaYears:  contribution,
		})
	}

	out.MarkersUsed = len(out.Contributions)
	if out.MarkersUsed < MinBioAgeMarkers {
		return nil, core.NewInsufficientDataError("bio_age_markers")
	}

	out.DeltaYears = delta
	out.BiologicalAge = chronoAge + out.DeltaYears
	return out, nil
}

package upload

import "time"

// RawBiomarker is one row as returned by the external extractor, before
// normalisation.
type RawBiomarker struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// ExtractedReport is the extractor's parsed view of a lab document
type ExtractedReport struct {
	Biomarkers []RawBiomarker `json:"biomarkers"`
	TestDate   time.Time      `json:"test_date"`
	LabName    string         `json:"lab_name"`
}

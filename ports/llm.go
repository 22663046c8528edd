package ports

import "context"

// ChatClient is the minimal LLM surface: one prompt in, one completion out.
// Vendors are selected by configuration; tests use a deterministic stub.
type ChatClient interface {
	// ChatCompletion sends a prompt and returns the raw completion text
	ChatCompletion(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// InsightGenerator produces the structured biomarker insight payload. The
// payload is opaque to the core; only its shape is validated.
type InsightGenerator interface {
	// GenerateBiomarkerInsight builds an insight from the latest
	// measurement, short trend history, and profile snapshot
	GenerateBiomarkerInsight(ctx context.Context, req BiomarkerInsightRequest) ([]byte, error)
}

// BiomarkerInsightRequest carries everything the generator may condition on
type BiomarkerInsightRequest struct {
	BiomarkerName  string
	ValueCanonical float64
	UnitCanonical  string
	ReferenceLow   *float64
	ReferenceHigh  *float64
	Flags          []string
	TrendValues    []float64 // newest first, at most 5
	AgeYears       int
	Sex            string
}

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"flomentum/domain/core"
	"flomentum/domain/upload"
	"flomentum/internal/config"
	"flomentum/ports"
)

const extractionPrompt = `Extract every biomarker result from this lab report.

Respond with ONLY a JSON object, no prose:
{
  "biomarkers": [{"name": "...", "value": 0.0, "unit": "..."}],
  "test_date": "YYYY-MM-DD",
  "lab_name": "..."
}
Use the collection date as test_date. Report values exactly as printed,
including the printed unit. Skip calculated panels that have no value.`

// AnthropicExtractor parses lab PDFs with the Anthropic document API.
// Extraction always runs on Anthropic regardless of the chat vendor because
// it is the only configured backend that accepts PDF input natively.
type AnthropicExtractor struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewLabExtractor builds the extractor for the configured vendor. The stub
// vendor gets a stub extractor; everything else requires an Anthropic key.
func NewLabExtractor(cfg config.AIConfig) (ports.LabExtractor, error) {
	if cfg.Vendor == "stub" {
		return &StubExtractor{}, nil
	}
	if cfg.AnthropicKey == "" {
		return nil, fmt.Errorf("lab extraction requires ANTHROPIC_API_KEY for PDF document input")
	}
	return &AnthropicExtractor{
		client: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicKey)),
		model:  anthropic.Model(cfg.AnthropicModel),
	}, nil
}

// ExtractLabReport sends the PDF as a document block and parses the reply
func (e *AnthropicExtractor) ExtractLabReport(ctx context.Context, pdf []byte) (*upload.ExtractedReport, error) {
	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
					Data: base64.StdEncoding.EncodeToString(pdf),
				}),
				anthropic.NewTextBlock(extractionPrompt),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExternalAIUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return parseExtraction(sb.String())
}

// parseExtraction decodes the vendor reply into an ExtractedReport
func parseExtraction(raw string) (*upload.ExtractedReport, error) {
	var wire struct {
		Biomarkers []upload.RawBiomarker `json:"biomarkers"`
		TestDate   string                `json:"test_date"`
		LabName    string                `json:"lab_name"`
	}
	if err := json.Unmarshal(stripFences(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: parse extraction response: %v", core.ErrExtractionFailed, err)
	}
	if len(wire.Biomarkers) == 0 {
		return nil, fmt.Errorf("%w: no biomarkers found in document", core.ErrExtractionFailed)
	}
	testDate, err := time.Parse("2006-01-02", wire.TestDate)
	if err != nil {
		return nil, fmt.Errorf("%w: test_date %q: %v", core.ErrExtractionFailed, wire.TestDate, err)
	}
	return &upload.ExtractedReport{
		Biomarkers: wire.Biomarkers,
		TestDate:   testDate,
		LabName:    wire.LabName,
	}, nil
}

// StubExtractor is a deterministic extractor for tests and local development
type StubExtractor struct {
	Report *upload.ExtractedReport // returned when set
	Err    error                   // returned instead of a report when set
}

func (s *StubExtractor) ExtractLabReport(ctx context.Context, pdf []byte) (*upload.ExtractedReport, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Report != nil {
		return s.Report, nil
	}
	return &upload.ExtractedReport{
		Biomarkers: []upload.RawBiomarker{
			{Name: "Glucose", Value: 92, Unit: "mg/dL"},
			{Name: "Ferritin", Value: 85, Unit: "ng/mL"},
		},
		TestDate: time.Now().UTC().AddDate(0, 0, -3),
		LabName:  "Stub Diagnostics",
	}, nil
}

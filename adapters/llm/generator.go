package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"flomentum/domain/insight"
	"flomentum/ports"
)

// InsightGeneratorImpl produces structured biomarker insights via a chat
// client. The vendor is asked for strict JSON; the shape is validated before
// the payload leaves this adapter.
type InsightGeneratorImpl struct {
	chat      ports.ChatClient
	maxTokens int
}

// NewInsightGenerator creates a chat-backed insight generator
func NewInsightGenerator(chat ports.ChatClient, maxTokens int) ports.InsightGenerator {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &InsightGeneratorImpl{chat: chat, maxTokens: maxTokens}
}

// GenerateBiomarkerInsight asks the vendor for an insight and validates its shape
func (g *InsightGeneratorImpl) GenerateBiomarkerInsight(ctx context.Context, req ports.BiomarkerInsightRequest) ([]byte, error) {
	raw, err := g.chat.ChatCompletion(ctx, buildInsightPrompt(req), g.maxTokens)
	if err != nil {
		return nil, err
	}

	var out insight.GeneratorOutput
	if err := json.Unmarshal(stripFences(raw), &out); err != nil {
		return nil, fmt.Errorf("parse insight response: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&out)
}

func buildInsightPrompt(req ports.BiomarkerInsightRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a health insight for this lab result.\n\n")
	fmt.Fprintf(&sb, "Biomarker: %s\n", req.BiomarkerName)
	fmt.Fprintf(&sb, "Value: %g %s\n", req.ValueCanonical, req.UnitCanonical)
	if req.ReferenceLow != nil && req.ReferenceHigh != nil {
		fmt.Fprintf(&sb, "Reference range: %g-%g %s\n", *req.ReferenceLow, *req.ReferenceHigh, req.UnitCanonical)
	}
	if len(req.Flags) > 0 {
		fmt.Fprintf(&sb, "Flags: %s\n", strings.Join(req.Flags, ", "))
	}
	if len(req.TrendValues) > 1 {
		parts := make([]string, 0, len(req.TrendValues))
		for _, v := range req.TrendValues {
			parts = append(parts, fmt.Sprintf("%g", v))
		}
		fmt.Fprintf(&sb, "Recent values, newest first: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(&sb, "Patient: %s, age %d\n\n", req.Sex, req.AgeYears)
	sb.WriteString(`Respond with ONLY a JSON object, no prose, with exactly these keys:
{
  "lifestyleActions": ["..."],
  "nutrition": ["..."],
  "supplementation": ["..."],
  "medicalReferral": "",
  "medicalUrgency": "none|routine|soon|urgent"
}
At least one of the three action lists must be non-empty. Keep each item under 120 characters. Do not diagnose.`)
	return sb.String()
}

// stripFences removes a markdown code fence some vendors wrap JSON in
func stripFences(raw string) []byte {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}

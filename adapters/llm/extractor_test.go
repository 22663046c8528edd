package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
)

func TestParseExtraction_WellFormed(t *testing.T) {
	report, err := parseExtraction(`{
		"biomarkers": [
			{"name": "Glucose", "value": 92, "unit": "mg/dL"},
			{"name": "HbA1c", "value": 5.4, "unit": "%"}
		],
		"test_date": "2025-03-01",
		"lab_name": "Quest Diagnostics"
	}`)
	require.NoError(t, err)
	assert.Len(t, report.Biomarkers, 2)
	assert.Equal(t, "Quest Diagnostics", report.LabName)
	assert.Equal(t, "2025-03-01", report.TestDate.Format("2006-01-02"))
}

func TestParseExtraction_FencedPayload(t *testing.T) {
	report, err := parseExtraction("```json\n{\"biomarkers\":[{\"name\":\"Glucose\",\"value\":92,\"unit\":\"mg/dL\"}],\"test_date\":\"2025-03-01\",\"lab_name\":\"\"}\n```")
	require.NoError(t, err)
	assert.Len(t, report.Biomarkers, 1)
}

func TestParseExtraction_EmptyReportFails(t *testing.T) {
	_, err := parseExtraction(`{"biomarkers": [], "test_date": "2025-03-01", "lab_name": "Quest"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestParseExtraction_BadDateFails(t *testing.T) {
	_, err := parseExtraction(`{"biomarkers": [{"name": "Glucose", "value": 92, "unit": "mg/dL"}], "test_date": "March 1st", "lab_name": ""}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestNewLabExtractor_StubVendor(t *testing.T) {
	ex, err := NewLabExtractor(testAIConfig("stub"))
	require.NoError(t, err)

	report, err := ex.ExtractLabReport(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.NotEmpty(t, report.Biomarkers)
}

func TestNewLabExtractor_RequiresAnthropicKey(t *testing.T) {
	cfg := testAIConfig("openai")
	cfg.AnthropicKey = ""

	_, err := NewLabExtractor(cfg)
	assert.Error(t, err)
}

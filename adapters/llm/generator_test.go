package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/insight"
	"flomentum/internal/config"
	"flomentum/ports"
)

func testAIConfig(vendor string) config.AIConfig {
	return config.AIConfig{
		Vendor:       vendor,
		OpenAIKey:    "sk-test",
		AnthropicKey: "sk-ant-test",
		MaxTokens:    2000,
	}
}

func ferritinRequest() ports.BiomarkerInsightRequest {
	low, high := 30.0, 300.0
	return ports.BiomarkerInsightRequest{
		BiomarkerName:  "Ferritin",
		ValueCanonical: 12,
		UnitCanonical:  "ng/mL",
		ReferenceLow:   &low,
		ReferenceHigh:  &high,
		Flags:          []string{"low"},
		TrendValues:    []float64{12, 18, 25},
		AgeYears:       34,
		Sex:            "male",
	}
}

func TestGenerateBiomarkerInsight_ValidPayload(t *testing.T) {
	stub := &StubChatClient{Response: `{
		"lifestyleActions": [],
		"nutrition": ["Pair iron-rich foods with vitamin C"],
		"supplementation": ["Discuss iron supplementation with your doctor"],
		"medicalReferral": "Consider a GP visit to investigate iron loss",
		"medicalUrgency": "routine"
	}`}
	gen := NewInsightGenerator(stub, 2000)

	payload, err := gen.GenerateBiomarkerInsight(context.Background(), ferritinRequest())
	require.NoError(t, err)

	var out insight.GeneratorOutput
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, "routine", out.MedicalUrgency)
	assert.Len(t, out.Nutrition, 1)
}

func TestGenerateBiomarkerInsight_StripsCodeFence(t *testing.T) {
	stub := &StubChatClient{Response: "```json\n{\"lifestyleActions\":[\"walk daily\"],\"nutrition\":[],\"supplementation\":[],\"medicalReferral\":\"\",\"medicalUrgency\":\"none\"}\n```"}
	gen := NewInsightGenerator(stub, 2000)

	payload, err := gen.GenerateBiomarkerInsight(context.Background(), ferritinRequest())
	require.NoError(t, err)

	var out insight.GeneratorOutput
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, []string{"walk daily"}, out.LifestyleActions)
}

func TestGenerateBiomarkerInsight_RejectsEmptyShape(t *testing.T) {
	stub := &StubChatClient{Response: `{"lifestyleActions":[],"nutrition":[],"supplementation":[],"medicalReferral":"","medicalUrgency":"none"}`}
	gen := NewInsightGenerator(stub, 2000)

	_, err := gen.GenerateBiomarkerInsight(context.Background(), ferritinRequest())
	assert.Error(t, err)
}

func TestGenerateBiomarkerInsight_RejectsNonJSON(t *testing.T) {
	stub := &StubChatClient{Response: "I am sorry, I cannot help with that."}
	gen := NewInsightGenerator(stub, 2000)

	_, err := gen.GenerateBiomarkerInsight(context.Background(), ferritinRequest())
	assert.Error(t, err)
}

func TestGenerateBiomarkerInsight_VendorErrorPropagates(t *testing.T) {
	stub := &StubChatClient{Err: errors.New("vendor down")}
	gen := NewInsightGenerator(stub, 2000)

	_, err := gen.GenerateBiomarkerInsight(context.Background(), ferritinRequest())
	assert.Error(t, err)
}

func TestGenerateBiomarkerInsight_PromptCarriesContext(t *testing.T) {
	stub := &StubChatClient{}
	gen := NewInsightGenerator(stub, 2000)

	_, err := gen.GenerateBiomarkerInsight(context.Background(), ferritinRequest())
	require.NoError(t, err)

	require.Len(t, stub.Prompts, 1)
	prompt := stub.Prompts[0]
	assert.Contains(t, prompt, "Ferritin")
	assert.Contains(t, prompt, "30-300 ng/mL")
	assert.Contains(t, prompt, "Flags: low")
	assert.Contains(t, prompt, "age 34")
}

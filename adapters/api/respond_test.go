package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", core.NewValidationError("unit", "required"), http.StatusBadRequest},
		{"unit conversion", core.NewUnitConversionError("glucose", "furlongs", "mmol/L"), http.StatusBadRequest},
		{"not found", core.NewNotFoundError("measurement", "m-1"), http.StatusNotFound},
		{"unknown biomarker", core.ErrBiomarkerNotFound, http.StatusNotFound},
		{"duplicate", core.NewDuplicateError("glucose", 5.2), http.StatusConflict},
		{"insufficient data", core.NewInsufficientDataError("hrv", "steps"), http.StatusUnprocessableEntity},
		{"baseline not ready", core.ErrBaselineNotReady, http.StatusUnprocessableEntity},
		{"extraction failed", core.ErrExtractionFailed, http.StatusUnprocessableEntity},
		{"vendor down", core.ErrExternalAIUnavailable, http.StatusServiceUnavailable},
		{"breaker open", gobreaker.ErrOpenState, http.StatusServiceUnavailable},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, zerolog.Nop(), tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteErrorCarriesMissingData(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zerolog.Nop(), core.NewInsufficientDataError("hrv", "resting_hr"))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"hrv", "resting_hr"}, body.MissingData)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zerolog.Nop(), assert.AnError)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}

func TestMissingFrom(t *testing.T) {
	assert.Equal(t, []string{"hrv", "steps"}, missingFrom(core.NewInsufficientDataError("hrv", "steps")))
	assert.Nil(t, missingFrom(core.ErrInsufficientData))
}

func TestDecodeBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"alcohol","surprise":1}`))

	var dst logEventRequest
	err := decodeBody(r, &dst)
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
}

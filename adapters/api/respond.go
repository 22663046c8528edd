package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"flomentum/domain/core"
)

// errorBody is the uniform error envelope
type errorBody struct {
	Error       string   `json:"error"`
	MissingData []string `json:"missingData,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto HTTP statuses. Unknown errors become
// 500 without leaking internals.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case core.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case core.IsNormalisationError(err) && !core.IsNotFoundError(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case core.IsNotFoundError(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case core.IsDuplicateError(err):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrInsufficientData), errors.Is(err, core.ErrBaselineNotReady):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:       err.Error(),
			MissingData: missingFrom(err),
		})
	case errors.Is(err, core.ErrExternalAIUnavailable),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "AI service temporarily unavailable"})
	case errors.Is(err, core.ErrExtractionFailed):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("unhandled request error")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// missingFrom recovers the missing-input names from an insufficient-data
// error message of the form "insufficient data: missing [a b]".
func missingFrom(err error) []string {
	msg := err.Error()
	open := strings.Index(msg, "[")
	close := strings.LastIndex(msg, "]")
	if open < 0 || close <= open {
		return nil
	}
	return strings.Fields(msg[open+1 : close])
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.NewValidationError("body", err.Error())
	}
	return nil
}

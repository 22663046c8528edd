package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"flomentum/app"
	"flomentum/domain/core"
	"flomentum/domain/measurement"
	"flomentum/domain/normalize"
	"flomentum/domain/upload"
)

// measurementItem is one entry in a manual batch
type measurementItem struct {
	Name  string  `json:"name" validate:"required"`
	Value float64 `json:"value" validate:"required"`
	Unit  string  `json:"unit" validate:"required"`
}

type createMeasurementsRequest struct {
	Measurements []measurementItem `json:"measurements" validate:"required,min=1,max=100,dive"`
	TestDate     string            `json:"test_date" validate:"required"`
	LabName      string            `json:"lab_name,omitempty"`
}

type batchResponse struct {
	SessionID core.SessionID             `json:"session_id,omitempty"`
	Persisted []*measurement.Measurement `json:"persisted"`
	Failed    []app.ItemFailure          `json:"failed,omitempty"`
}

func (s *Server) handleCreateMeasurements(w http.ResponseWriter, r *http.Request) {
	var req createMeasurementsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, s.log, core.NewValidationError("body", err.Error()))
		return
	}
	testDate, err := time.Parse("2006-01-02", req.TestDate)
	if err != nil {
		writeError(w, s.log, core.NewValidationError("test_date", "must be YYYY-MM-DD"))
		return
	}
	if err := upload.ValidateTestDate(testDate, time.Now().UTC()); err != nil {
		writeError(w, s.log, err)
		return
	}

	inputs := make([]normalize.Input, len(req.Measurements))
	for i, item := range req.Measurements {
		inputs[i] = normalize.Input{Name: item.Name, Value: item.Value, Unit: item.Unit}
	}

	outcome, err := s.measurements.CreateManual(r.Context(), userFrom(r), inputs, testDate, req.LabName)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, batchStatus(outcome), batchResponseFrom(outcome))
}

// batchStatus maps a batch outcome onto 201, 207, or 409
func batchStatus(outcome *app.CreateOutcome) int {
	switch {
	case outcome.Partial():
		return http.StatusMultiStatus
	case len(outcome.Persisted) == 0:
		return http.StatusConflict
	default:
		return http.StatusCreated
	}
}

func batchResponseFrom(outcome *app.CreateOutcome) batchResponse {
	resp := batchResponse{Persisted: outcome.Persisted, Failed: outcome.Failed}
	if resp.Persisted == nil {
		resp.Persisted = []*measurement.Measurement{}
	}
	if len(outcome.Persisted) > 0 && outcome.Session != nil {
		resp.SessionID = outcome.Session.ID
	}
	return resp
}

func (s *Server) handleMeasurementHistory(w http.ResponseWriter, r *http.Request) {
	biomarkerID := r.URL.Query().Get("biomarker_id")
	if biomarkerID == "" {
		writeError(w, s.log, core.NewValidationError("biomarker_id", "required query parameter"))
		return
	}
	limit := queryInt(r, "limit", 100)

	history, err := s.measurements.History(r.Context(), userFrom(r), core.BiomarkerID(biomarkerID), limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if history == nil {
		history = []*measurement.Measurement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"measurements": history})
}

type updateMeasurementRequest struct {
	Name  string  `json:"name" validate:"required"`
	Value float64 `json:"value" validate:"required"`
	Unit  string  `json:"unit" validate:"required"`
}

func (s *Server) handleUpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	var req updateMeasurementRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, s.log, core.NewValidationError("body", err.Error()))
		return
	}

	updated, err := s.measurements.Update(r.Context(), userFrom(r), core.MeasurementID(chi.URLParam(r, "id")), normalize.Input{
		Name:  req.Name,
		Value: req.Value,
		Unit:  req.Unit,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	if err := s.measurements.Delete(r.Context(), userFrom(r), core.MeasurementID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportSpreadsheet accepts an XLSX or CSV of measurements
func (s *Server) handleImportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, s.log, core.NewValidationError("file", "multipart file field required"))
		return
	}
	defer file.Close()

	outcome, err := s.measurements.ImportSpreadsheet(r.Context(), userFrom(r), file, header.Filename)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, batchStatus(outcome), batchResponseFrom(outcome))
}

func queryInt(r *http.Request, key string, fallback int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return n
	}
	return fallback
}

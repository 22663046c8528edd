package api

import (
	"net/http"

	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/sleep"
)

type ingestSamplesRequest struct {
	Samples []daily.RawSample `json:"samples" validate:"required,min=1,max=5000,dive"`
}

func (s *Server) handleIngestSamples(w http.ResponseWriter, r *http.Request) {
	var req ingestSamplesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, s.log, core.NewValidationError("body", err.Error()))
		return
	}

	rows, err := s.ingest.IngestSamples(r.Context(), userFrom(r), req.Samples)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days_updated": len(rows),
		"rows":         rows,
	})
}

type ingestSleepRequest struct {
	Intervals []sleep.Interval `json:"intervals" validate:"required,min=1,max=500,dive"`
}

func (s *Server) handleIngestSleep(w http.ResponseWriter, r *http.Request) {
	var req ingestSleepRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, s.log, core.NewValidationError("body", err.Error()))
		return
	}

	night, err := s.ingest.IngestSleep(r.Context(), userFrom(r), req.Intervals)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, night)
}

func (s *Server) handleSleepNights(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 14)
	if limit <= 0 || limit > 90 {
		limit = 14
	}
	nights, err := s.sleeps.ListRecentNights(r.Context(), userFrom(r), limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if nights == nil {
		nights = []*sleep.Night{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"nights": nights})
}

func (s *Server) handleReadinessToday(w http.ResponseWriter, r *http.Request) {
	score, err := s.scoring.ReadinessToday(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleSleepToday(w http.ResponseWriter, r *http.Request) {
	score, err := s.scoring.SleepToday(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleMomentumToday(w http.ResponseWriter, r *http.Request) {
	momentum, err := s.scoring.MomentumToday(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, momentum)
}

func (s *Server) handleMomentumWeekly(w http.ResponseWriter, r *http.Request) {
	week, err := s.scoring.WeeklyMomentum(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, week)
}

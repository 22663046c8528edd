package api

import (
	"net/http"
	"time"

	"flomentum/domain/core"
	"flomentum/domain/forecast"
)

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	result, err := s.forecasts.Latest(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleForecastSimulator serves the what-if scenarios computed alongside
// the latest forecast snapshot.
func (s *Server) handleForecastSimulator(w http.ResponseWriter, r *http.Request) {
	result, err := s.forecasts.Latest(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	scenarios := result.Scenarios
	if scenarios == nil {
		scenarios = []forecast.Scenario{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios})
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.forecasts.Goal(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if goal == nil {
		writeError(w, s.log, core.NewNotFoundError("goal", string(userFrom(r))))
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

type setGoalRequest struct {
	Type           string  `json:"type" validate:"required"`
	TargetWeightKg float64 `json:"target_weight_kg"`
	TargetDate     string  `json:"target_date,omitempty"`
	StartWeightKg  float64 `json:"start_weight_kg"`
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req setGoalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, s.log, core.NewValidationError("body", err.Error()))
		return
	}

	goal := &forecast.Goal{
		UserID:         userFrom(r),
		Type:           forecast.GoalType(req.Type),
		TargetWeightKg: req.TargetWeightKg,
		StartWeightKg:  req.StartWeightKg,
	}
	if req.TargetDate != "" {
		targetDate, err := time.Parse("2006-01-02", req.TargetDate)
		if err != nil {
			writeError(w, s.log, core.NewValidationError("target_date", "must be YYYY-MM-DD"))
			return
		}
		goal.TargetDate = &targetDate
	}

	if err := s.forecasts.SetGoal(r.Context(), goal); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

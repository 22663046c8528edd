package api

import (
	"net/http"
	"time"

	"flomentum/domain/biomarker"
	"flomentum/domain/core"
	"flomentum/domain/profile"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.GetProfile(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if p == nil {
		writeError(w, s.log, core.NewNotFoundError("profile", string(userFrom(r))))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type putProfileRequest struct {
	Sex          string   `json:"sex,omitempty" validate:"omitempty,oneof=male female"`
	BirthDate    string   `json:"birth_date,omitempty"`
	TimezoneName string   `json:"timezone_name" validate:"required"`
	HeightCm     *float64 `json:"height_cm,omitempty" validate:"omitempty,gt=0"`
	StepTarget   *float64 `json:"step_target,omitempty" validate:"omitempty,gt=0"`
	SleepTargetH *float64 `json:"sleep_target_hours,omitempty" validate:"omitempty,gt=0,lte=14"`
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req putProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, s.log, core.NewValidationError("body", err.Error()))
		return
	}
	if _, err := time.LoadLocation(req.TimezoneName); err != nil {
		writeError(w, s.log, core.NewValidationError("timezone_name", "unknown IANA timezone"))
		return
	}

	p := &profile.Profile{
		UserID:       userFrom(r),
		Sex:          biomarker.Sex(req.Sex),
		TimezoneName: req.TimezoneName,
		HeightCm:     req.HeightCm,
		StepTarget:   req.StepTarget,
		SleepTargetH: req.SleepTargetH,
		UpdatedAt:    time.Now().UTC(),
	}
	if req.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			writeError(w, s.log, core.NewValidationError("birth_date", "must be YYYY-MM-DD"))
			return
		}
		p.BirthDate = &birthDate
	}

	if err := s.profiles.UpsertProfile(r.Context(), p); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

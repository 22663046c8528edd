package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gomarkdown/markdown"

	"flomentum/domain/core"
	"flomentum/domain/insight"
)

// cardView wraps an insight card with its body rendered to HTML, so
// clients that cannot render markdown still get formatted text.
type cardView struct {
	*insight.Card
	BodyHTML string `json:"body_html"`
}

func (s *Server) handleDailyInsights(w http.ResponseWriter, r *http.Request) {
	includeDismissed := r.URL.Query().Get("include_dismissed") == "true"
	cards, err := s.insights.DailyInsights(r.Context(), userFrom(r), includeDismissed)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	out := make([]cardView, 0, len(cards))
	for _, card := range cards {
		out = append(out, cardView{
			Card:     card,
			BodyHTML: string(markdown.ToHTML([]byte(card.Body), nil, nil)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": out})
}

// handleRefreshInsights forces a correlation scan, bypassing the daily
// rate limit.
func (s *Server) handleRefreshInsights(w http.ResponseWriter, r *http.Request) {
	found, err := s.correlation.ScanUser(r.Context(), userFrom(r), true)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"new_patterns": found})
}

func (s *Server) handleDismissInsight(w http.ResponseWriter, r *http.Request) {
	if err := s.insights.Dismiss(r.Context(), userFrom(r), core.InsightID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type logEventRequest struct {
	Kind string `json:"kind" validate:"required"`
	Date string `json:"date" validate:"required"`
	Note string `json:"note,omitempty"`
}

func (s *Server) handleLogLifeEvent(w http.ResponseWriter, r *http.Request) {
	var req logEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, s.log, core.NewValidationError("body", err.Error()))
		return
	}
	date, err := core.ParseLocalDate(req.Date)
	if err != nil {
		writeError(w, s.log, core.NewValidationError("date", "must be YYYY-MM-DD"))
		return
	}

	event, err := s.insights.LogEvent(r.Context(), userFrom(r), insight.LifeEventKind(req.Kind), date, req.Note)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleListLifeEvents(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := core.LocalDate(now.AddDate(0, 0, -30).Format("2006-01-02"))
	to := core.LocalDate(now.Format("2006-01-02"))
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := core.ParseLocalDate(v)
		if err != nil {
			writeError(w, s.log, core.NewValidationError("from", "must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := core.ParseLocalDate(v)
		if err != nil {
			writeError(w, s.log, core.NewValidationError("to", "must be YYYY-MM-DD"))
			return
		}
		to = parsed
	}

	events, err := s.insights.ListEvents(r.Context(), userFrom(r), from, to)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if events == nil {
		events = []insight.LifeEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

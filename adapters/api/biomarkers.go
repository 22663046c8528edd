package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"flomentum/domain/biomarker"
	"flomentum/domain/core"
)

// biomarkerSummary is the catalog listing shape
type biomarkerSummary struct {
	ID            core.BiomarkerID `json:"id"`
	CanonicalName string           `json:"canonical_name"`
	Category      string           `json:"category"`
	CanonicalUnit string           `json:"canonical_unit"`
	DisplayUnit   string           `json:"display_unit,omitempty"`
}

func (s *Server) handleListBiomarkers(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	markers := snap.All()

	out := make([]biomarkerSummary, 0, len(markers))
	for _, m := range markers {
		out = append(out, biomarkerSummary{
			ID:            m.ID,
			CanonicalName: m.CanonicalName,
			Category:      string(m.Category),
			CanonicalUnit: m.CanonicalUnit,
			DisplayUnit:   m.DisplayUnit,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalName < out[j].CanonicalName })

	writeJSON(w, http.StatusOK, map[string]any{
		"biomarkers":      out,
		"catalog_version": snap.Version().String(),
	})
}

func (s *Server) handleBiomarkerUnits(w http.ResponseWriter, r *http.Request) {
	m, ok := s.catalog.Snapshot().Get(core.BiomarkerID(chi.URLParam(r, "id")))
	if !ok {
		writeError(w, s.log, core.NewNotFoundError("biomarker", chi.URLParam(r, "id")))
		return
	}

	seen := map[string]bool{m.CanonicalUnit: true}
	accepted := []string{m.CanonicalUnit}
	for _, conv := range m.Conversions {
		for _, unit := range []string{conv.FromUnit, conv.ToUnit} {
			if !seen[unit] {
				seen[unit] = true
				accepted = append(accepted, unit)
			}
		}
	}
	sort.Strings(accepted[1:])

	writeJSON(w, http.StatusOK, map[string]any{
		"canonical_unit": m.CanonicalUnit,
		"display_unit":   m.DisplayUnit,
		"accepted_units": accepted,
	})
}

func (s *Server) handleBiomarkerReferenceRange(w http.ResponseWriter, r *http.Request) {
	m, ok := s.catalog.Snapshot().Get(core.BiomarkerID(chi.URLParam(r, "id")))
	if !ok {
		writeError(w, s.log, core.NewNotFoundError("biomarker", chi.URLParam(r, "id")))
		return
	}

	ranges := m.ReferenceRanges
	if ranges == nil {
		ranges = []biomarker.ReferenceRange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default_ref_min": m.DefaultRefMin,
		"default_ref_max": m.DefaultRefMax,
		"unit":            m.CanonicalUnit,
		"ranges":          ranges,
	})
}

func (s *Server) handleBiomarkerInsight(w http.ResponseWriter, r *http.Request) {
	env, err := s.insights.BiomarkerInsight(r.Context(), userFrom(r), core.BiomarkerID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// calciumReading decorates the bio-age response when a coronary calcium
// score is on file.
type calciumReading struct {
	Score    float64   `json:"score"`
	Severity string    `json:"severity"`
	TestDate time.Time `json:"test_date"`
}

func (s *Server) handleBioAge(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	bioAge, err := s.scoring.BioAge(r.Context(), userID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	resp := map[string]any{"bio_age": bioAge}
	if history, err := s.measurements.History(r.Context(), userID, "coronary_calcium", 1); err == nil && len(history) > 0 {
		latest := history[0]
		resp["coronary_calcium"] = calciumReading{
			Score:    latest.ValueCanonical,
			Severity: s.calcium.Classify(latest.ValueCanonical),
			TestDate: latest.TestDate,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

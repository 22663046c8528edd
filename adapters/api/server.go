// Package api exposes the HTTP surface: measurement CRUD, the lab upload
// pipeline, wearable ingest, scores, the weight forecast, and insights.
// Handlers stay thin; orchestration lives in the app services.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"flomentum/app"
	"flomentum/domain/biomarker"
	"flomentum/internal/config"
	"flomentum/ports"
)

// Server wires the app services into the router
type Server struct {
	catalog      *biomarker.Catalog
	measurements *app.MeasurementService
	labs         *app.LabUploadService
	ingest       *app.IngestService
	scoring      *app.ScoringService
	forecasts    *app.ForecastService
	insights     *app.InsightService
	correlation  *app.CorrelationService
	profiles     ports.ProfileRepository
	sleeps       ports.SleepRepository

	calcium  config.CalciumBands
	validate *validator.Validate
	log      zerolog.Logger
}

// Deps bundles the server's collaborators
type Deps struct {
	Catalog      *biomarker.Catalog
	Measurements *app.MeasurementService
	Labs         *app.LabUploadService
	Ingest       *app.IngestService
	Scoring      *app.ScoringService
	Forecasts    *app.ForecastService
	Insights     *app.InsightService
	Correlation  *app.CorrelationService
	Profiles     ports.ProfileRepository
	Sleeps       ports.SleepRepository
	Calcium      config.CalciumBands
}

// NewServer creates the HTTP server
func NewServer(deps Deps, log zerolog.Logger) *Server {
	return &Server{
		catalog:      deps.Catalog,
		measurements: deps.Measurements,
		labs:         deps.Labs,
		ingest:       deps.Ingest,
		scoring:      deps.Scoring,
		forecasts:    deps.Forecasts,
		insights:     deps.Insights,
		correlation:  deps.Correlation,
		profiles:     deps.Profiles,
		sleeps:       deps.Sleeps,
		calcium:      deps.Calcium,
		validate:     validator.New(),
		log:          log.With().Str("component", "api").Logger(),
	}
}

// Handler builds the full route tree
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Use(noStore)

		r.Route("/measurements", func(r chi.Router) {
			r.Post("/", s.handleCreateMeasurements)
			r.Get("/", s.handleMeasurementHistory)
			r.Post("/import", s.handleImportSpreadsheet)
			r.Patch("/{id}", s.handleUpdateMeasurement)
			r.Delete("/{id}", s.handleDeleteMeasurement)
		})

		r.Route("/labs", func(r chi.Router) {
			r.Post("/upload", s.handleLabUpload)
			r.Get("/status/{jobID}", s.handleLabStatus)
		})

		r.Route("/biomarkers", func(r chi.Router) {
			r.Get("/", s.handleListBiomarkers)
			r.Get("/{id}/units", s.handleBiomarkerUnits)
			r.Get("/{id}/reference-range", s.handleBiomarkerReferenceRange)
			r.Post("/{id}/insights", s.handleBiomarkerInsight)
		})
		r.Get("/biological-age", s.handleBioAge)

		r.Route("/healthkit", func(r chi.Router) {
			r.Post("/samples", s.handleIngestSamples)
			r.Post("/sleep-samples", s.handleIngestSleep)
		})
		r.Get("/sleep/nights", s.handleSleepNights)

		r.Get("/readiness/today", s.handleReadinessToday)
		r.Get("/sleep/today", s.handleSleepToday)
		r.Get("/flomentum/today", s.handleMomentumToday)
		r.Get("/flomentum/weekly", s.handleMomentumWeekly)

		r.Route("/weight", func(r chi.Router) {
			r.Get("/forecast", s.handleForecast)
			r.Get("/forecast/simulator", s.handleForecastSimulator)
			r.Get("/goal", s.handleGetGoal)
			r.Put("/goal", s.handleSetGoal)
		})

		r.Route("/daily-insights", func(r chi.Router) {
			r.Get("/", s.handleDailyInsights)
			r.Post("/refresh", s.handleRefreshInsights)
			r.Post("/{id}/dismiss", s.handleDismissInsight)
		})
		r.Route("/life-events", func(r chi.Router) {
			r.Post("/", s.handleLogLifeEvent)
			r.Get("/", s.handleListLifeEvents)
		})

		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handlePutProfile)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "ok",
		"catalog_version": s.catalog.Snapshot().Version().String(),
	})
}

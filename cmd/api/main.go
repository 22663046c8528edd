package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"flomentum/adapters/api"
	"flomentum/adapters/catalog"
	"flomentum/adapters/llm"
	"flomentum/adapters/notify"
	"flomentum/adapters/objectstore"
	"flomentum/adapters/postgres"
	"flomentum/adapters/rediscache"
	"flomentum/app"
	"flomentum/internal/config"
	"flomentum/internal/logging"
)

func main() {
	log := logging.New("api")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to postgres")
	}
	defer db.Close()

	rdb, err := rediscache.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to redis")
	}
	defer rdb.Close()

	cat, err := catalog.NewCatalog(cfg.Catalog.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("loading biomarker catalog")
	}

	chat, err := llm.NewChatClient(cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("building chat client")
	}
	extractor, err := llm.NewLabExtractor(cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("building lab extractor")
	}
	store, err := objectstore.NewGCSStore(ctx, cfg.Storage.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("building object store")
	}

	sessions := postgres.NewSessionRepository(db)
	measurements := postgres.NewMeasurementRepository(db)
	jobs := postgres.NewJobRepository(db)
	profiles := postgres.NewProfileRepository(db)
	rows := postgres.NewDailyRepository(db)
	sleeps := postgres.NewSleepRepository(db)
	baselines := postgres.NewBaselineRepository(db)
	forecasts := postgres.NewForecastRepository(db)
	cards := postgres.NewInsightRepository(db)
	queue := postgres.NewRecomputeQueue(db)

	scores := rediscache.NewScoreCache(rdb)
	insightCache := rediscache.NewInsightCache(rdb)
	notifier := notify.NewLoggingNotifier(log)

	pipeline := cfg.Pipeline
	deps := api.Deps{
		Catalog: cat,
		Measurements: app.NewMeasurementService(
			cat, sessions, measurements, profiles, pipeline.DedupEpsilonFraction, log),
		Labs: app.NewLabUploadService(
			cat, jobs, sessions, measurements, profiles, store, extractor,
			pipeline.DedupEpsilonFraction, log),
		Ingest: app.NewIngestService(
			rows, sleeps, profiles, queue, scores,
			float64(pipeline.SleepMinTotalMinutes), log),
		Scoring: app.NewScoringService(
			rows, sleeps, baselines, profiles, measurements, scores,
			pipeline.ReadinessCalibrationDays, log),
		Forecasts: app.NewForecastService(forecasts, queue, log),
		Insights: app.NewInsightService(
			measurements, profiles, cards, insightCache,
			llm.NewInsightGenerator(chat, cfg.AI.MaxTokens),
			pipeline.InsightsCacheTTLDays, log),
		Correlation: app.NewCorrelationService(
			rows, cards, baselines, profiles, notifier, log),
		Profiles: profiles,
		Sleeps:   sleeps,
		Calcium:  pipeline.CalciumBands,
	}
	server := api.NewServer(deps, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if cfg.Catalog.HotReload {
		watcher := catalog.NewWatcher(cfg.Catalog.Dir, cat, log)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("api exited with error")
		os.Exit(1)
	}
	log.Info().Msg("api stopped")
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"flomentum/adapters/catalog"
	"flomentum/adapters/llm"
	"flomentum/adapters/notify"
	"flomentum/adapters/objectstore"
	"flomentum/adapters/postgres"
	"flomentum/app"
	"flomentum/internal/config"
	"flomentum/internal/logging"
)

func main() {
	log := logging.New("worker")

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

	cat, err := catalog.NewCatalog(cfg.Catalog.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("loading biomarker catalog")
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
	baselineRepo := postgres.NewBaselineRepository(db)
	forecastRepo := postgres.NewForecastRepository(db)
	cards := postgres.NewInsightRepository(db)
	queue := postgres.NewRecomputeQueue(db)
	notifier := notify.NewLoggingNotifier(log)

	pipeline := cfg.Pipeline
	labs := app.NewLabUploadService(
		cat, jobs, sessions, measurements, profiles, store, extractor,
		pipeline.DedupEpsilonFraction, log)
	baselines := app.NewBaselineService(
		rows, baselineRepo, profiles, pipeline.BaselineRefreshLocalHour, log)
	correlation := app.NewCorrelationService(
		rows, cards, baselineRepo, profiles, notifier, log)

	worker := app.NewForecastWorker(
		queue, rows, forecastRepo, profiles, notifier,
		pipeline.HorizonDays, pipeline.PollInterval, pipeline.DebounceWindow,
		pipeline.BatchSize, log)
	scheduler := app.NewScheduler(baselines, correlation, labs, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker exited with error")
		os.Exit(1)
	}
	log.Info().Msg("worker stopped")
}

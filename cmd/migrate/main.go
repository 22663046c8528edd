package main

import (
	"context"
	"os"

	"flomentum/adapters/postgres"
	"flomentum/adapters/postgres/migrations"
	"flomentum/internal/config"
	"flomentum/internal/logging"
)

func main() {
	log := logging.New("migrate")

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	ctx := context.Background()
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to postgres")
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB)
	switch command {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("applying migrations")
		}
		log.Info().Msg("migrations applied")
	case "status":
		if err := migrator.Status(ctx); err != nil {
			log.Fatal().Err(err).Msg("reading migration status")
		}
	default:
		log.Fatal().Str("command", command).Msg("usage: migrate [up|status]")
	}
}

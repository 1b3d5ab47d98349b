package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/whackamole/internal/config"
	"github.com/robalobadob/whackamole/internal/httpserver"
	"github.com/robalobadob/whackamole/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, db, err := openScores(ctx, cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open score database")
	}
	if db != nil {
		defer db.Close()
	}

	srv := httpserver.New(cfg, store.NewMemoryStore(), sc)
	log.Info().
		Str("port", cfg.Server.Port).
		Int("maxClock", cfg.Game.MaxClock).
		Dur("tick", cfg.Game.TickInterval.Duration).
		Msg("starting whack-a-mole server")
	if err := srv.Start(ctx, ":"+cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// setupLogging applies the configured level and output format.
func setupLogging(c config.LoggingConfig) {
	if lvl, err := zerolog.ParseLevel(c.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if strings.EqualFold(c.Format, "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

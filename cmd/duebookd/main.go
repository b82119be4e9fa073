package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmarkov/duebook/internal/clock"
	"github.com/dmarkov/duebook/internal/config"
	"github.com/dmarkov/duebook/internal/engine"
	"github.com/dmarkov/duebook/internal/logger"
	"github.com/dmarkov/duebook/internal/notify"
	"github.com/dmarkov/duebook/internal/scheduler"
	"github.com/dmarkov/duebook/internal/store/sqlite"
)

func main() {
	log := logger.New()

	configPath := flag.String("config", "", "Path to config.toml (defaults to XDG config dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	st, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	clk := clock.NewReal()
	eng := engine.New(st, engine.Options{
		Notifier: notify.NewLogNotifier(log),
		Clock:    clk,
		Logger:   log,
		Workers:  cfg.Scheduler.Workers,
	})

	runner := scheduler.New(eng, st, clk, log, scheduler.Config{
		Interval: cfg.Scheduler.Interval(),
		CatchUp:  cfg.Scheduler.CatchUp,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().
		Str("db", cfg.Database.Path).
		Dur("interval", cfg.Scheduler.Interval()).
		Bool("catch_up", cfg.Scheduler.CatchUp).
		Msg("Starting duebook scheduler daemon")

	if err := runner.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during scheduler shutdown")
	}
	if err := eng.Close(); err != nil {
		log.Error().Err(err).Msg("Error draining notifications")
	}

	log.Info().Msg("Daemon exited")
}

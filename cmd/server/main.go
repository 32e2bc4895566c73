package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autopartes/internal/config"
	"autopartes/internal/infra"
	"autopartes/internal/repository"
	"autopartes/internal/repository/memory"
	"autopartes/internal/router"
	"autopartes/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store repository.Store
		rdb   *redis.Client
	)
	if cfg.InMemory() {
		log.Warn().Msg("APP_ENV=memory: using the in-memory store, data is lost on exit")
		store = memory.New()
	} else {
		db, err := infra.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		if cfg.AutoMigrate {
			if err := infra.RunMigrations(db); err != nil {
				log.Fatal().Err(err).Msg("failed to migrate schema")
			}
		}
		store = repository.NewStore(db)

		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()

		// Worker handlers are wired here (composition root).
		handlers := map[string]worker.Handler{
			worker.JobAlertaStock: worker.NewAlertaStockWorker(rdb),
		}
		worker.StartWorkerPool(ctx, rdb, handlers, cfg.WorkerPoolSize)
	}

	svcs := router.Wire(cfg, store, rdb)

	if cfg.ConciliacionSchedule != "" {
		if err := worker.StartConciliacionCron(ctx, cfg.ConciliacionSchedule, svcs.Clientes); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ConciliacionSchedule).Msg("invalid CONCILIACION_SCHEDULE")
		}
	}

	r, err := router.New(cfg, store, rdb, svcs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("autopartes backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

// setupLogger: dev pretty console, prod JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/mcdev12/adaptivq/go/internal/practice"
	"github.com/mcdev12/adaptivq/go/internal/practice/gateway"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	source, closeSource, err := setupQuestionSource(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up question source")
	}
	defer closeSource()

	store, database, err := setupResultStore(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up results store")
	}
	if database != nil {
		defer database.Close()
	}

	ev, backend, err := setupEvaluator(config, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up evaluator")
	}

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go cm.Start(ctx)

	publisher, closePublisher, err := setupPublisher(ctx, config, cm)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up event publisher")
	}
	defer closePublisher()

	var resultStore practice.ResultStore
	if store != nil {
		resultStore = store
	}
	services := setupServices(source, ev, backend, publisher, resultStore, cm)
	server := setupServer(config, services)

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("evaluator", string(backend.Backend)).
			Bool("nats", config.NATS.Enabled).
			Msg("practice server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := services.App.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("practice sessions did not drain")
	}
	cancel()

	log.Info().Msg("practice server shutdown complete")
}

package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mcdev12/adaptivq/go/internal/dbconfig"
	"github.com/mcdev12/adaptivq/go/internal/results"
	"github.com/rs/zerolog/log"
)

// setupResultStore opens the results database. Driver "none" disables
// persistence and returns a nil store.
func setupResultStore(ctx context.Context, config *Config) (*results.Store, *sql.DB, error) {
	if config.Database.Driver == "" || config.Database.Driver == dbconfig.DriverNone {
		log.Warn().Msg("results persistence disabled")
		return nil, nil, nil
	}

	database, err := config.Database.Open(ctx)
	if err != nil {
		return nil, nil, err
	}

	store := results.NewStore(database, config.Database.Driver)
	if err := store.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}

	log.Info().Str("driver", config.Database.Driver).Msg("connected to results database")
	return store, database, nil
}

// setupQuestionPool connects to the Postgres question bank.
func setupQuestionPool(ctx context.Context, config *Config) (*pgxpool.Pool, error) {
	cfg := config.Database
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to question bank: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping question bank: %w", err)
	}
	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("connected to question bank")
	return pool, nil
}

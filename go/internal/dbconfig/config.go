// Package dbconfig resolves where the service keeps its relational data.
package dbconfig

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverNone     = "none"
)

// Config holds connection settings for either Postgres or a SQLite file.
type Config struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
	MaxConns   int    `yaml:"max_conns"`
}

// NewConfigFromEnv reads DB_* and SQLITE_PATH environment variables.
func NewConfigFromEnv() Config {
	return Config{
		Driver:     getEnv("DB_DRIVER", DriverSQLite),
		Host:       getEnv("DB_HOST", "localhost"),
		Port:       getEnvAsInt("DB_PORT", 5432),
		User:       getEnv("DB_USER", "postgres"),
		Password:   getEnv("DB_PASSWORD", "postgres"),
		Database:   getEnv("DB_NAME", "adaptivq"),
		SSLMode:    getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "adaptivq.db"),
		MaxConns:   getEnvAsInt("DB_MAX_CONNS", 10),
	}
}

// DSN returns the Postgres connection URL regardless of Driver. The question
// bank always lives in Postgres.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// DataSource returns the database/sql data source name for Driver.
func (c Config) DataSource() (string, error) {
	switch c.Driver {
	case DriverPostgres:
		return c.DSN(), nil
	case DriverSQLite:
		// Foreign keys are off by default in SQLite.
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.SQLitePath), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Open connects with database/sql and verifies the connection. The caller
// owns the returned handle.
func (c Config) Open(ctx context.Context) (*sql.DB, error) {
	dsn, err := c.DataSource()
	if err != nil {
		return nil, err
	}

	database, err := sql.Open(c.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if c.Driver == DriverSQLite {
		// One writer at a time avoids SQLITE_BUSY under concurrent completions.
		database.SetMaxOpenConns(1)
	} else if c.MaxConns > 0 {
		database.SetMaxOpenConns(c.MaxConns)
		database.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return database, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

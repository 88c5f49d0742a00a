package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/adaptivq/go/internal/dbconfig"
	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Environment variables provide the
// defaults; a YAML file named by PRACTICE_CONFIG overrides them.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	NATS struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"nats"`

	Database dbconfig.Config `yaml:"database"`

	Questions struct {
		Source string `yaml:"source"` // yaml or postgres
		File   string `yaml:"file"`
	} `yaml:"questions"`

	Evaluator struct {
		Backend     string        `yaml:"backend"`
		RemoteURL   string        `yaml:"remote_url"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxAttempts int           `yaml:"max_attempts"`
		Backoff     time.Duration `yaml:"backoff"`
		LocalDelay  time.Duration `yaml:"local_delay"`
		OpenAI      struct {
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"openai"`
	} `yaml:"evaluator"`
}

func loadConfig() (*Config, error) {
	var config Config
	config.Port = getEnv("PORT", "8080")
	config.LogLevel = getEnv("LOG_LEVEL", "info")

	config.NATS.Enabled = getEnvAsBool("NATS_ENABLED", false)
	config.NATS.URL = getEnv("NATS_URL", nats.DefaultURL)

	config.Database = dbconfig.NewConfigFromEnv()

	config.Questions.Source = getEnv("QUESTION_SOURCE", "yaml")
	config.Questions.File = getEnv("QUESTIONS_FILE", "go/internal/assets/questions.yaml")

	config.Evaluator.Backend = getEnv("EVALUATOR", "local")
	config.Evaluator.RemoteURL = getEnv("EVALUATOR_URL", "http://localhost:8080")
	config.Evaluator.Timeout = getEnvAsDuration("EVAL_TIMEOUT", 30*time.Second)
	config.Evaluator.MaxAttempts = getEnvAsInt("EVAL_MAX_ATTEMPTS", 3)
	config.Evaluator.Backoff = getEnvAsDuration("EVAL_BACKOFF", time.Second)
	config.Evaluator.LocalDelay = getEnvAsDuration("LOCAL_EVAL_DELAY", 2*time.Second)
	config.Evaluator.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	config.Evaluator.OpenAI.Model = getEnv("OPENAI_MODEL", "")
	config.Evaluator.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", "")

	if path := os.Getenv("PRACTICE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

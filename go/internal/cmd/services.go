package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/adaptivq/go/clients"
	"github.com/mcdev12/adaptivq/go/clients/openai_client"
	"github.com/mcdev12/adaptivq/go/internal/practice"
	"github.com/mcdev12/adaptivq/go/internal/practice/evaluator"
	"github.com/mcdev12/adaptivq/go/internal/practice/events"
	"github.com/mcdev12/adaptivq/go/internal/practice/gateway"
	"github.com/mcdev12/adaptivq/go/internal/questionbank"
	"github.com/rs/zerolog/log"
)

type Services struct {
	App       *practice.App
	Practice  *practice.Service
	Gateway   *gateway.WebSocketHandler
	Evaluator evaluator.Evaluator
	// HostEvaluator is set when this instance serves EvaluatorService.
	HostEvaluator bool
}

// setupEvaluator builds the configured backend. Remote backends are wrapped
// with the retry and timeout policy.
func setupEvaluator(config *Config, clock clockwork.Clock) (evaluator.Evaluator, clients.EvaluatorBackendConfig, error) {
	backend, err := clients.ParseEvaluatorBackend(config.Evaluator.Backend)
	if err != nil {
		return nil, backend, err
	}

	var ev evaluator.Evaluator
	switch backend.Backend {
	case clients.EvaluatorBackendLocal:
		ev = evaluator.NewLocalScorer(clock, config.Evaluator.LocalDelay)
	case clients.EvaluatorBackendOpenAI:
		if config.Evaluator.OpenAI.APIKey == "" {
			return nil, backend, fmt.Errorf("OPENAI_API_KEY is required for the openai evaluator")
		}
		client := openai_client.NewOpenAIClient(
			config.Evaluator.OpenAI.BaseURL,
			config.Evaluator.OpenAI.APIKey,
			config.Evaluator.OpenAI.Model,
		)
		ev = evaluator.NewOpenAIEvaluator(client)
	case clients.EvaluatorBackendRemote:
		ev = evaluator.NewConnectClient(http.DefaultClient, config.Evaluator.RemoteURL)
	}

	if backend.Remote {
		ev = evaluator.NewRetrying(ev, evaluator.RetryConfig{
			MaxAttempts:    config.Evaluator.MaxAttempts,
			Backoff:        config.Evaluator.Backoff,
			AttemptTimeout: config.Evaluator.Timeout,
		}, clock)
	}

	log.Info().
		Str("backend", string(backend.Backend)).
		Str("name", backend.Name).
		Msg("evaluator configured")
	return ev, backend, nil
}

// setupPublisher always feeds the WebSocket gateway and adds JetStream when
// enabled. The returned close func releases the NATS connection.
func setupPublisher(ctx context.Context, config *Config, cm *gateway.ConnectionManager) (events.Publisher, func(), error) {
	if !config.NATS.Enabled {
		return cm, func() {}, nil
	}

	jsCfg := events.DefaultJetStreamConfig()
	jsCfg.URL = config.NATS.URL
	js, err := events.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up NATS publisher: %w", err)
	}
	closeFn := func() {
		if err := js.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS publisher")
		}
	}
	return events.MultiPublisher{cm, js}, closeFn, nil
}

func setupServices(
	source practice.QuestionSource,
	ev evaluator.Evaluator,
	backend clients.EvaluatorBackendConfig,
	publisher events.Publisher,
	store practice.ResultStore,
	cm *gateway.ConnectionManager,
) *Services {
	// Question source + evaluator + publisher → App → Service
	opts := []practice.Option{practice.WithPublisher(publisher)}
	if store != nil {
		opts = append(opts, practice.WithResultStore(store))
	}
	app := practice.NewApp(source, ev, opts...)

	return &Services{
		App:           app,
		Practice:      practice.NewService(app),
		Gateway:       gateway.NewWebSocketHandler(cm, sessionState(app)),
		Evaluator:     ev,
		HostEvaluator: backend.Backend == clients.EvaluatorBackendLocal,
	}
}

func setupQuestionSource(ctx context.Context, config *Config) (practice.QuestionSource, func(), error) {
	switch config.Questions.Source {
	case "postgres":
		pool, err := setupQuestionPool(ctx, config)
		if err != nil {
			return nil, nil, err
		}
		return questionbank.NewPostgresSource(pool), pool.Close, nil
	case "yaml", "":
		src, err := questionbank.LoadFile(config.Questions.File)
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("file", config.Questions.File).
			Int("questions", len(src.Entries())).
			Msg("loaded question bank")
		return src, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported QUESTION_SOURCE %q", config.Questions.Source)
	}
}

// sessionState feeds the gateway the snapshot a new subscriber starts from.
func sessionState(app *practice.App) gateway.SessionLookup {
	return func(id uuid.UUID) (any, bool) {
		snap, err := app.GetSession(id)
		if err != nil {
			return nil, false
		}
		return snap, true
	}
}

package main

import (
	"fmt"
	"net/http"

	"github.com/mcdev12/adaptivq/go/internal/practice/evaluator"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(config *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(mux, services)
	services.Gateway.RegisterRoutes(mux)
	setupHealthCheck(mux, services)

	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	practicePath, practiceHandler := services.Practice.Handler()
	mux.Handle(practicePath, practiceHandler)

	if services.HostEvaluator {
		evaluatorPath, evaluatorHandler := evaluator.NewHandler(services.Evaluator)
		mux.Handle(evaluatorPath, evaluatorHandler)
	}
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, "OK active_sessions=%d\n", services.App.ActiveSessions()); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

package clients

import "fmt"

// EvaluatorBackend names a provider that can grade practice answers.
type EvaluatorBackend string

const (
	// EvaluatorBackendLocal is the in-process heuristic scorer
	EvaluatorBackendLocal EvaluatorBackend = "local"

	// EvaluatorBackendOpenAI is an OpenAI-compatible chat completions API
	EvaluatorBackendOpenAI EvaluatorBackend = "openai"

	// EvaluatorBackendRemote is another adaptivq instance serving EvaluatorService
	EvaluatorBackendRemote EvaluatorBackend = "remote"
)

// EvaluatorBackendConfig describes a backend
type EvaluatorBackendConfig struct {
	Backend     EvaluatorBackend `json:"backend"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Remote      bool             `json:"remote"` // network calls; wrapped with retries
}

// GetEvaluatorBackends returns all known evaluator backends
func GetEvaluatorBackends() map[EvaluatorBackend]EvaluatorBackendConfig {
	return map[EvaluatorBackend]EvaluatorBackendConfig{
		EvaluatorBackendLocal: {
			Backend:     EvaluatorBackendLocal,
			Name:        "Local scorer",
			Description: "Offline heuristic scoring with simulated latency",
			Remote:      false,
		},
		EvaluatorBackendOpenAI: {
			Backend:     EvaluatorBackendOpenAI,
			Name:        "OpenAI",
			Description: "Chat completions model returning JSON feedback",
			Remote:      true,
		},
		EvaluatorBackendRemote: {
			Backend:     EvaluatorBackendRemote,
			Name:        "Remote evaluator",
			Description: "Connect EvaluatorService hosted by another instance",
			Remote:      true,
		},
	}
}

// ParseEvaluatorBackend validates a configured backend name
func ParseEvaluatorBackend(name string) (EvaluatorBackendConfig, error) {
	cfg, ok := GetEvaluatorBackends()[EvaluatorBackend(name)]
	if !ok {
		return EvaluatorBackendConfig{}, fmt.Errorf("unknown evaluator backend %q", name)
	}
	return cfg, nil
}

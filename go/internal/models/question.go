package models

// Question is a single timed prompt. Questions are immutable once loaded.
type Question struct {
	ID           string `json:"id" yaml:"id"`
	Prompt       string `json:"prompt" yaml:"prompt"`
	Context      string `json:"context" yaml:"context"`
	TimeLimitSec int    `json:"time_limit_sec" yaml:"time_limit_sec"`
}

package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RetryConfig bounds how hard Retrying tries before giving up.
type RetryConfig struct {
	MaxAttempts    int
	Backoff        time.Duration // multiplied by the attempt number
	AttemptTimeout time.Duration // zero means no per-attempt deadline
}

// DefaultRetryConfig returns the production retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		Backoff:        time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Retrying wraps an Evaluator with per-attempt timeouts and linear backoff on
// transient errors. Whatever finally fails is wrapped in ErrEvaluationFailure.
type Retrying struct {
	next  Evaluator
	cfg   RetryConfig
	clock clockwork.Clock
}

// NewRetrying wraps next with cfg.
func NewRetrying(next Evaluator, cfg RetryConfig, clock clockwork.Clock) *Retrying {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Retrying{next: next, cfg: cfg, clock: clock}
}

func (r *Retrying) Evaluate(ctx context.Context, req Request) (models.Feedback, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		fb, err := r.attempt(ctx, req)
		if err == nil {
			return fb, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return models.Feedback{}, fmt.Errorf("%w: %w", ErrEvaluationFailure, ctx.Err())
		}
		if !IsTransient(err) {
			log.Error().
				Err(err).
				Str("question_id", req.QuestionID).
				Int("attempt", attempt).
				Msg("evaluation failed with permanent error")
			return models.Feedback{}, fmt.Errorf("%w: %w", ErrEvaluationFailure, err)
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		wait := r.cfg.Backoff * time.Duration(attempt)
		log.Warn().
			Err(err).
			Str("question_id", req.QuestionID).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("evaluation failed, retrying")
		select {
		case <-r.clock.After(wait):
		case <-ctx.Done():
			return models.Feedback{}, fmt.Errorf("%w: %w", ErrEvaluationFailure, ctx.Err())
		}
	}

	log.Error().
		Err(lastErr).
		Str("question_id", req.QuestionID).
		Int("attempts", r.cfg.MaxAttempts).
		Msg("evaluation failed after retries")
	return models.Feedback{}, fmt.Errorf("%w after %d attempts: %w", ErrEvaluationFailure, r.cfg.MaxAttempts, lastErr)
}

func (r *Retrying) attempt(ctx context.Context, req Request) (models.Feedback, error) {
	if r.cfg.AttemptTimeout <= 0 {
		return r.next.Evaluate(ctx, req)
	}
	attemptCtx, cancel := clockwork.WithTimeout(ctx, r.clock, r.cfg.AttemptTimeout)
	defer cancel()
	return r.next.Evaluate(attemptCtx, req)
}

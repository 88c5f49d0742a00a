package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the state of a practice session.
type SessionStatus string

const (
	SessionStatusActive          SessionStatus = "ACTIVE"
	SessionStatusEvaluating      SessionStatus = "EVALUATING"
	SessionStatusShowingFeedback SessionStatus = "SHOWING_FEEDBACK"
	SessionStatusEnded           SessionStatus = "ENDED"
)

// CompletionReason records why a session reached SessionStatusEnded.
type CompletionReason string

const (
	CompletionExhausted        CompletionReason = "exhausted"
	CompletionUserEnded        CompletionReason = "user_ended"
	CompletionEvaluationFailed CompletionReason = "evaluation_failed"
)

// SessionMeta is caller supplied context carried through to the result.
type SessionMeta struct {
	Category string `json:"category,omitempty"`
	Level    int    `json:"level,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// SessionResult is handed to the caller exactly once when a session ends.
type SessionResult struct {
	SessionID uuid.UUID           `json:"session_id"`
	Meta      SessionMeta         `json:"meta"`
	Reason    CompletionReason    `json:"reason"`
	Responses map[string]string   `json:"responses"`
	Feedback  map[string]Feedback `json:"feedback"`
	Answered  int                 `json:"answered"`
	Total     int                 `json:"total"`
	Error     string              `json:"error,omitempty"`
	StartedAt time.Time           `json:"started_at"`
	EndedAt   time.Time           `json:"ended_at"`
}

// AverageRating returns the mean rating across received feedback, or 0.
func (r SessionResult) AverageRating() float64 {
	if len(r.Feedback) == 0 {
		return 0
	}
	sum := 0
	for _, fb := range r.Feedback {
		sum += fb.Rating
	}
	return float64(sum) / float64(len(r.Feedback))
}

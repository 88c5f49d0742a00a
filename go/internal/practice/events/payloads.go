package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/adaptivq/go/internal/models"
)

// EventType names a session lifecycle event.
type EventType string

const (
	EventTypeSessionStarted     EventType = "SessionStarted"
	EventTypeQuestionStarted    EventType = "QuestionStarted"
	EventTypeTimerTick          EventType = "TimerTick"
	EventTypeTimeExpired        EventType = "TimeExpired"
	EventTypeSubmissionAccepted EventType = "SubmissionAccepted"
	EventTypeFeedbackReady      EventType = "FeedbackReady"
	EventTypeSessionEnded       EventType = "SessionEnded"
)

// SessionEvent is the envelope shared by the bus and the websocket gateway.
type SessionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewSessionEvent marshals payload into a fresh envelope.
func NewSessionEvent(sessionID uuid.UUID, eventType EventType, at time.Time, payload any) (SessionEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return SessionEvent{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return SessionEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      eventType,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// SessionStartedPayload is the payload for a SessionStarted event
type SessionStartedPayload struct {
	Category       string    `json:"category,omitempty"`
	Level          int       `json:"level,omitempty"`
	TotalQuestions int       `json:"total_questions"`
	StartedAt      time.Time `json:"started_at"`
}

// QuestionStartedPayload is the payload for a QuestionStarted event
type QuestionStartedPayload struct {
	QuestionID    string    `json:"question_id"`
	QuestionIndex int       `json:"question_index"`
	Prompt        string    `json:"prompt"`
	Context       string    `json:"context"`
	TimeLimitSec  int       `json:"time_limit_sec"`
	StartedAt     time.Time `json:"started_at"`
}

// TimerTickPayload contains periodic countdown updates
type TimerTickPayload struct {
	QuestionID       string `json:"question_id"`
	TimeRemainingSec int    `json:"time_remaining_sec"`
	Display          string `json:"display"`
}

// TimeExpiredPayload announces that a question ran out of time
type TimeExpiredPayload struct {
	QuestionID string `json:"question_id"`
}

// SubmissionAcceptedPayload is the payload for a SubmissionAccepted event
type SubmissionAcceptedPayload struct {
	QuestionID string `json:"question_id"`
	Trigger    string `json:"trigger"`
	Empty      bool   `json:"empty"`
}

// FeedbackReadyPayload is the payload for a FeedbackReady event
type FeedbackReadyPayload struct {
	QuestionID string          `json:"question_id"`
	Feedback   models.Feedback `json:"feedback"`
	HasNext    bool            `json:"has_next"`
}

// SessionEndedPayload is the payload for a SessionEnded event
type SessionEndedPayload struct {
	Reason   models.CompletionReason `json:"reason"`
	Answered int                     `json:"answered"`
	Total    int                     `json:"total"`
	Error    string                  `json:"error,omitempty"`
}

// ParseEventPayload parses event data into the matching payload struct
func ParseEventPayload(event SessionEvent) (any, error) {
	var target any
	switch event.Type {
	case EventTypeSessionStarted:
		target = &SessionStartedPayload{}
	case EventTypeQuestionStarted:
		target = &QuestionStartedPayload{}
	case EventTypeTimerTick:
		target = &TimerTickPayload{}
	case EventTypeTimeExpired:
		target = &TimeExpiredPayload{}
	case EventTypeSubmissionAccepted:
		target = &SubmissionAcceptedPayload{}
	case EventTypeFeedbackReady:
		target = &FeedbackReadyPayload{}
	case EventTypeSessionEnded:
		target = &SessionEndedPayload{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
	if err := json.Unmarshal(event.Data, target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", event.Type, err)
	}
	return target, nil
}

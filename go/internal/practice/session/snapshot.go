package session

import (
	"github.com/google/uuid"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/mcdev12/adaptivq/go/internal/practice/timer"
)

// Snapshot is a point-in-time copy of everything a UI renders.
type Snapshot struct {
	SessionID      uuid.UUID
	Meta           models.SessionMeta
	Status         models.SessionStatus
	QuestionIndex  int
	TotalQuestions int
	// Question is nil once the session has ended.
	Question         *models.Question
	TimeRemainingSec int
	Display          string
	Ticking          bool
	Response         string
	// Feedback is set only while Status is SHOWING_FEEDBACK.
	Feedback  *models.Feedback
	Responses map[string]string
	Result    *models.SessionResult
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.countdown.Remaining()
	s := Snapshot{
		SessionID:        c.id,
		Meta:             c.meta,
		Status:           c.status,
		QuestionIndex:    c.seq.Index(),
		TotalQuestions:   c.seq.Len(),
		TimeRemainingSec: remaining,
		Display:          timer.FormatRemaining(remaining),
		Ticking:          c.countdown.Ticking(),
		Response:         c.buffer,
		Responses:        make(map[string]string, len(c.responses)),
	}
	for k, v := range c.responses {
		s.Responses[k] = v
	}
	if c.status != models.SessionStatusEnded {
		if q, ok := c.seq.Current(); ok {
			s.Question = &q
		}
	}
	if c.feedback != nil {
		fb := *c.feedback
		s.Feedback = &fb
	}
	if c.result != nil {
		r := cloneResult(*c.result)
		s.Result = &r
	}
	return s
}

package gate

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyResponse is returned for a blank manual submission. Nothing is latched.
	ErrEmptyResponse = errors.New("response is empty")
	// ErrDuplicateSubmission is returned when the question already accepted a
	// submission or is no longer the open question. Callers treat it as a no-op.
	ErrDuplicateSubmission = errors.New("duplicate submission")
)

// Trigger identifies what caused a submission attempt.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
)

// Submission is an accepted response, ready for evaluation.
type Submission struct {
	QuestionID string
	Response   string
	Trigger    Trigger
}

// Gate admits at most one submission per question, whichever trigger arrives first.
type Gate struct {
	mu      sync.Mutex
	open    string
	latched map[string]Trigger
}

// New returns a gate with no open question.
func New() *Gate {
	return &Gate{latched: make(map[string]Trigger)}
}

// Open makes questionID the only question accepting submissions.
func (g *Gate) Open(questionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = questionID
}

// Close stops the gate from accepting anything further.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = ""
}

// Submit latches questionID and returns the accepted submission. A blank
// response is rejected only for manual triggers; a timeout always goes through.
func (g *Gate) Submit(questionID, response string, trigger Trigger) (Submission, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if questionID == "" || questionID != g.open {
		log.Debug().
			Str("question_id", questionID).
			Str("open_question_id", g.open).
			Str("trigger", string(trigger)).
			Msg("submission for a question that is not open - ignoring")
		return Submission{}, ErrDuplicateSubmission
	}
	if first, done := g.latched[questionID]; done {
		log.Debug().
			Str("question_id", questionID).
			Str("trigger", string(trigger)).
			Str("latched_by", string(first)).
			Msg("question already latched - ignoring")
		return Submission{}, ErrDuplicateSubmission
	}
	if trigger == TriggerManual && strings.TrimSpace(response) == "" {
		return Submission{}, ErrEmptyResponse
	}

	g.latched[questionID] = trigger
	return Submission{QuestionID: questionID, Response: response, Trigger: trigger}, nil
}

// Latched reports whether questionID has accepted a submission.
func (g *Gate) Latched(questionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.latched[questionID]
	return ok
}

package sequencer

import (
	"errors"
	"fmt"

	"github.com/mcdev12/adaptivq/go/internal/models"
)

// ErrInvalidSession is returned when a sequence cannot back a session.
var ErrInvalidSession = errors.New("invalid session")

// Sequencer walks a fixed, ordered question list exactly once.
// It is not safe for concurrent use; the session controller owns it.
type Sequencer struct {
	questions []models.Question
	index     int
}

// New validates questions and returns a Sequencer positioned at the first one.
// The slice is copied so later caller mutations cannot reorder the session.
func New(questions []models.Question) (*Sequencer, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidSession)
	}
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: question %d has no id", ErrInvalidSession, i)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrInvalidSession, q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.TimeLimitSec <= 0 {
			return nil, fmt.Errorf("%w: question %q has non-positive time limit %d", ErrInvalidSession, q.ID, q.TimeLimitSec)
		}
	}

	qs := make([]models.Question, len(questions))
	copy(qs, questions)
	return &Sequencer{questions: qs}, nil
}

// Current returns the active question, or false once exhausted.
func (s *Sequencer) Current() (models.Question, bool) {
	if s.index >= len(s.questions) {
		return models.Question{}, false
	}
	return s.questions[s.index], true
}

// Advance moves past the current question and reports whether another exists.
// Advancing an exhausted sequencer is a no-op returning false.
func (s *Sequencer) Advance() bool {
	if s.index >= len(s.questions) {
		return false
	}
	s.index++
	return s.index < len(s.questions)
}

// Index is the zero-based position; it equals Len once exhausted.
func (s *Sequencer) Index() int { return s.index }

// Len is the number of questions in the session.
func (s *Sequencer) Len() int { return len(s.questions) }

// Exhausted reports whether every question has been passed.
func (s *Sequencer) Exhausted() bool { return s.index >= len(s.questions) }

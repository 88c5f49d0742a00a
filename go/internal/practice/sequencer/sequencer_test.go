package sequencer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mcdev12/adaptivq/go/internal/models"
)

func makeQuestions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Prompt:       fmt.Sprintf("prompt %d", i+1),
			TimeLimitSec: 60,
		}
	}
	return qs
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		questions []models.Question
	}{
		{name: "nil list", questions: nil},
		{name: "empty list", questions: []models.Question{}},
		{name: "missing id", questions: []models.Question{{Prompt: "x", TimeLimitSec: 10}}},
		{name: "zero time limit", questions: []models.Question{{ID: "a", TimeLimitSec: 0}}},
		{name: "duplicate id", questions: []models.Question{{ID: "a", TimeLimitSec: 5}, {ID: "a", TimeLimitSec: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.questions)
			if !errors.Is(err, ErrInvalidSession) {
				t.Fatalf("New() err = %v, want ErrInvalidSession", err)
			}
			if s != nil {
				t.Fatalf("New() returned a sequencer alongside an error")
			}
		})
	}
}

func TestSequencer_VisitsEveryQuestionOnceInOrder(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7} {
		t.Run(fmt.Sprintf("%d questions", n), func(t *testing.T) {
			qs := makeQuestions(n)
			s, err := New(qs)
			if err != nil {
				t.Fatalf("New() err = %v", err)
			}

			var visited []string
			for {
				q, ok := s.Current()
				if !ok {
					break
				}
				visited = append(visited, q.ID)
				s.Advance()
			}

			if len(visited) != n {
				t.Fatalf("visited %d questions, want %d", len(visited), n)
			}
			for i, id := range visited {
				if id != qs[i].ID {
					t.Errorf("visit %d = %s, want %s", i, id, qs[i].ID)
				}
			}
			if !s.Exhausted() || s.Index() != n {
				t.Fatalf("expected exhaustion at index %d, got index %d", n, s.Index())
			}
		})
	}
}

func TestSequencer_AdvanceReportsNext(t *testing.T) {
	s, err := New(makeQuestions(2))
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	if !s.Advance() {
		t.Fatalf("Advance() from first of two = false, want true")
	}
	if s.Advance() {
		t.Fatalf("Advance() from last = true, want false")
	}
	if s.Advance() {
		t.Fatalf("Advance() when exhausted = true, want false")
	}
	if s.Index() != 2 {
		t.Fatalf("Index() = %d, want 2 (no-op after exhaustion)", s.Index())
	}
}

func TestSequencer_CopiesInput(t *testing.T) {
	qs := makeQuestions(2)
	s, err := New(qs)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	qs[0].ID = "mutated"

	q, _ := s.Current()
	if q.ID != "q1" {
		t.Fatalf("Current().ID = %s, want q1", q.ID)
	}
}

package evaluator

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultLocalDelay mirrors the latency users saw from the hosted scorer.
const DefaultLocalDelay = 2 * time.Second

var (
	digitsRe    = regexp.MustCompile(`\d`)
	starMarkers = []string{"situation", "task", "action", "result"}
	exampleCues = []string{"for example", "for instance", "such as", "when i", "in my last", "at my previous"}
)

// LocalScorer is an offline heuristic evaluator. It looks at length, structure
// and concreteness, and always succeeds unless ctx is cancelled first.
type LocalScorer struct {
	clock clockwork.Clock
	delay time.Duration
}

// NewLocalScorer builds a scorer that waits delay on clock before answering.
func NewLocalScorer(clock clockwork.Clock, delay time.Duration) *LocalScorer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LocalScorer{clock: clock, delay: delay}
}

func (s *LocalScorer) Evaluate(ctx context.Context, req Request) (models.Feedback, error) {
	if s.delay > 0 {
		select {
		case <-s.clock.After(s.delay):
		case <-ctx.Done():
			return models.Feedback{}, ctx.Err()
		}
	}

	fb := Score(req.Response)
	log.Debug().
		Str("question_id", req.QuestionID).
		Int("rating", fb.Rating).
		Msg("local scorer produced feedback")
	return fb, nil
}

// Score grades a response without any I/O.
func Score(response string) models.Feedback {
	text := strings.TrimSpace(response)
	if text == "" {
		return models.Feedback{
			Rating:    0,
			Narrative: "No answer was submitted before time ran out. Even a short outline of your approach earns credit.",
			Improvements: []string{
				"Start with a one-sentence summary so something is captured if time expires",
				"Practice answering within the time limit",
			},
		}
	}

	lower := strings.ToLower(text)
	words := len(strings.Fields(text))

	var strengths, improvements []string
	rating := 40

	switch {
	case words >= 120:
		rating += 20
		strengths = append(strengths, "Thorough, well-developed answer")
	case words >= 50:
		rating += 15
		strengths = append(strengths, "Good level of detail")
	case words >= 20:
		rating += 5
		improvements = append(improvements, "Expand on your answer with more detail")
	default:
		improvements = append(improvements, "Answer is too brief to demonstrate your experience")
	}

	star := 0
	for _, m := range starMarkers {
		if strings.Contains(lower, m) {
			star++
		}
	}
	if star >= 3 {
		rating += 15
		strengths = append(strengths, "Structured response")
	} else {
		improvements = append(improvements, "Use the STAR method (Situation, Task, Action, Result)")
	}

	if containsAny(lower, exampleCues) {
		rating += 10
		strengths = append(strengths, "Good use of specific examples")
	} else {
		improvements = append(improvements, "Add a specific example from your experience")
	}

	if digitsRe.MatchString(text) {
		rating += 10
		strengths = append(strengths, "Quantified results")
	} else {
		improvements = append(improvements, "Add more quantitative results")
	}

	narrative := "Your answer shows understanding of the topic. Consider adding more specific examples to strengthen your response."
	if len(strengths) > len(improvements) {
		narrative = "Your response was well-structured and provided specific evidence from your experience. Tighten the remaining gaps to make it excellent."
	}

	return models.Feedback{
		Rating:       rating,
		Narrative:    narrative,
		Strengths:    strengths,
		Improvements: improvements,
	}.ClampRating()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

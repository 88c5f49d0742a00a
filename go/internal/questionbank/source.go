package questionbank

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/adaptivq/go/internal/models"
)

// DefaultTimeLimitSec applies to entries that omit a time limit.
const DefaultTimeLimitSec = 60

var (
	ErrNoQuestions     = errors.New("no questions match")
	ErrUnknownQuestion = errors.New("unknown question id")
)

// Source supplies the ordered question list for a new session.
type Source interface {
	Questions(ctx context.Context, filter Filter) ([]models.Question, error)
}

// Filter narrows a bank to one session's questions. When IDs is set it
// replaces Category and Level and the result follows its order. Limit caps the
// result either way; every listed ID is still checked before truncation.
type Filter struct {
	Category string
	Level    int
	IDs      []string
	Limit    int
}

// Entry is a bank question with the metadata used for selection.
type Entry struct {
	models.Question `yaml:",inline"`
	Category        string `yaml:"category"`
	Level           int    `yaml:"level"`
}

func (e Entry) matches(f Filter) bool {
	if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
		return false
	}
	if f.Level > 0 && e.Level != f.Level {
		return false
	}
	return true
}

// selectEntries applies filter to an in-memory bank.
func selectEntries(entries []Entry, f Filter) ([]models.Question, error) {
	var out []models.Question

	if len(f.IDs) > 0 {
		byID := make(map[string]Entry, len(entries))
		for _, e := range entries {
			byID[e.ID] = e
		}
		for _, id := range f.IDs {
			e, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
			}
			out = append(out, e.Question)
		}
		if f.Limit > 0 && len(out) > f.Limit {
			out = out[:f.Limit]
		}
		return out, nil
	}

	for _, e := range entries {
		if !e.matches(f) {
			continue
		}
		out = append(out, e.Question)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: category=%q level=%d", ErrNoQuestions, f.Category, f.Level)
	}
	return out, nil
}

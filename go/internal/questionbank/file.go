package questionbank

import (
	"context"
	"fmt"
	"os"

	"github.com/mcdev12/adaptivq/go/internal/models"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML layout of a question bank.
type File struct {
	Questions []Entry `yaml:"questions"`
}

// FileSource serves questions from a YAML bank held in memory.
type FileSource struct {
	entries []Entry
}

// LoadFile reads and validates a YAML bank.
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML bank. Entries without a time limit get
// DefaultTimeLimitSec; duplicate or empty IDs are rejected.
func Parse(data []byte) (*FileSource, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	entries, err := normalize(f.Questions)
	if err != nil {
		return nil, err
	}
	return &FileSource{entries: entries}, nil
}

// Entries returns a copy of the bank.
func (s *FileSource) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Questions implements Source.
func (s *FileSource) Questions(_ context.Context, filter Filter) ([]models.Question, error) {
	return selectEntries(s.entries, filter)
}

func normalize(entries []Entry) ([]Entry, error) {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("question %d has no id", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate question id %q", e.ID)
		}
		seen[e.ID] = true
		if e.TimeLimitSec <= 0 {
			e.TimeLimitSec = DefaultTimeLimitSec
		}
		out = append(out, e)
	}
	return out, nil
}

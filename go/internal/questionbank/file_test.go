package questionbank

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testBank = `
questions:
  - id: dsa-01
    category: dsa
    level: 1
    prompt: Explain binary search.
    context: Data Structures
  - id: dsa-02
    category: dsa
    level: 2
    prompt: Compare linked lists vs arrays.
    time_limit_sec: 90
  - id: os-01
    category: os
    level: 1
    prompt: Explain process vs thread.
`

func TestParse_AppliesDefaults(t *testing.T) {
	src, err := Parse([]byte(testBank))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	entries := src.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].TimeLimitSec != DefaultTimeLimitSec {
		t.Errorf("default time limit = %d, want %d", entries[0].TimeLimitSec, DefaultTimeLimitSec)
	}
	if entries[1].TimeLimitSec != 90 {
		t.Errorf("explicit time limit = %d, want 90", entries[1].TimeLimitSec)
	}
	if entries[0].Context != "Data Structures" || entries[0].Prompt != "Explain binary search." {
		t.Errorf("inline question fields not decoded: %+v", entries[0])
	}
}

func TestParse_RejectsBadBanks(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing id", yaml: "questions:\n  - prompt: hi\n"},
		{name: "duplicate id", yaml: "questions:\n  - id: a\n    prompt: x\n  - id: a\n    prompt: y\n"},
		{name: "not yaml", yaml: "questions: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatalf("Parse() error = nil, want error")
			}
		})
	}
}

func TestFileSource_Questions(t *testing.T) {
	src, err := Parse([]byte(testBank))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
		wantErr error
	}{
		{name: "category", filter: Filter{Category: "DSA"}, wantIDs: []string{"dsa-01", "dsa-02"}},
		{name: "category and level", filter: Filter{Category: "dsa", Level: 2}, wantIDs: []string{"dsa-02"}},
		{name: "limit", filter: Filter{Limit: 2}, wantIDs: []string{"dsa-01", "dsa-02"}},
		{name: "explicit ids keep order", filter: Filter{IDs: []string{"os-01", "dsa-01"}}, wantIDs: []string{"os-01", "dsa-01"}},
		{name: "unknown id", filter: Filter{IDs: []string{"nope"}}, wantErr: ErrUnknownQuestion},
		{name: "explicit ids capped by limit", filter: Filter{IDs: []string{"os-01", "dsa-02", "dsa-01"}, Limit: 2}, wantIDs: []string{"os-01", "dsa-02"}},
		{name: "unknown id past limit", filter: Filter{IDs: []string{"os-01", "nope"}, Limit: 1}, wantErr: ErrUnknownQuestion},
		{name: "no match", filter: Filter{Category: "cn"}, wantErr: ErrNoQuestions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := src.Questions(context.Background(), tt.filter)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Questions() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Questions() error = %v", err)
			}
			var ids []string
			for _, q := range qs {
				ids = append(ids, q.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFile_BundledBank(t *testing.T) {
	src, err := LoadFile(filepath.Join("..", "assets", "questions.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	for _, category := range []string{"dsa", "dbms", "cn", "os", "aptitude", "personality"} {
		qs, err := src.Questions(context.Background(), Filter{Category: category})
		if err != nil {
			t.Errorf("category %s: %v", category, err)
			continue
		}
		for _, q := range qs {
			if q.Prompt == "" || q.TimeLimitSec <= 0 {
				t.Errorf("question %s is incomplete: %+v", q.ID, q)
			}
		}
	}
}

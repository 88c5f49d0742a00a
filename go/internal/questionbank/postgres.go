package questionbank

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/adaptivq/go/internal/models"
)

// Schema creates the question bank table.
const Schema = `
CREATE TABLE IF NOT EXISTS questions (
    id             TEXT PRIMARY KEY,
    category       TEXT NOT NULL,
    level          INTEGER NOT NULL DEFAULT 1,
    prompt         TEXT NOT NULL,
    context        TEXT NOT NULL DEFAULT '',
    time_limit_sec INTEGER NOT NULL DEFAULT 60,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS questions_category_level_idx ON questions (category, level);
`

// PostgresSource reads questions from the questions table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Questions implements Source.
func (s *PostgresSource) Questions(ctx context.Context, filter Filter) ([]models.Question, error) {
	if len(filter.IDs) > 0 {
		entries, err := s.query(ctx, `
            SELECT id, category, level, prompt, context, time_limit_sec
            FROM questions
            WHERE id = ANY($1)
        `, filter.IDs)
		if err != nil {
			return nil, err
		}
		return selectEntries(entries, filter)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	entries, err := s.query(ctx, `
        SELECT id, category, level, prompt, context, time_limit_sec
        FROM questions
        WHERE ($1 = '' OR lower(category) = lower($1))
          AND ($2 = 0 OR level = $2)
        ORDER BY level, id
        LIMIT $3
    `, filter.Category, filter.Level, limit)
	if err != nil {
		return nil, err
	}
	return selectEntries(entries, filter)
}

func (s *PostgresSource) query(ctx context.Context, sql string, args ...any) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.Category, &e.Level, &e.Prompt, &e.Context, &e.TimeLimitSec)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan questions: %w", err)
	}
	return entries, nil
}

// Upsert writes entries into the questions table and reports how many rows
// were inserted or updated.
func Upsert(ctx context.Context, pool *pgxpool.Pool, entries []Entry) (int, error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
            INSERT INTO questions (id, category, level, prompt, context, time_limit_sec)
            VALUES ($1, $2, $3, $4, $5, $6)
            ON CONFLICT (id) DO UPDATE SET
              category = EXCLUDED.category,
              level = EXCLUDED.level,
              prompt = EXCLUDED.prompt,
              context = EXCLUDED.context,
              time_limit_sec = EXCLUDED.time_limit_sec
        `, e.ID, e.Category, e.Level, e.Prompt, e.Context, e.TimeLimitSec)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for _, e := range entries {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("failed to upsert question %s: %w", e.ID, err)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/adaptivq/go/internal/dbconfig"
	"github.com/mcdev12/adaptivq/go/internal/models"
	"github.com/mcdev12/adaptivq/go/internal/results/db"
	"github.com/mcdev12/adaptivq/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

var ErrNotFound = errors.New("session result not found")

const (
	DriverPostgres = dbconfig.DriverPostgres
	DriverSQLite   = dbconfig.DriverSQLite
)

var schemas = map[string]string{
	DriverPostgres: `
CREATE TABLE IF NOT EXISTS practice_sessions (
    id             TEXT PRIMARY KEY,
    category       TEXT NOT NULL DEFAULT '',
    level          INTEGER NOT NULL DEFAULT 0,
    user_id        TEXT,
    reason         TEXT NOT NULL,
    answered       INTEGER NOT NULL,
    total          INTEGER NOT NULL,
    error          TEXT,
    average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    started_at     TIMESTAMPTZ NOT NULL,
    ended_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS practice_answers (
    session_id  TEXT NOT NULL REFERENCES practice_sessions(id) ON DELETE CASCADE,
    question_id TEXT NOT NULL,
    response    TEXT NOT NULL,
    feedback    JSONB,
    PRIMARY KEY (session_id, question_id)
);`,
	DriverSQLite: `
CREATE TABLE IF NOT EXISTS practice_sessions (
    id             TEXT PRIMARY KEY,
    category       TEXT NOT NULL DEFAULT '',
    level          INTEGER NOT NULL DEFAULT 0,
    user_id        TEXT,
    reason         TEXT NOT NULL,
    answered       INTEGER NOT NULL,
    total          INTEGER NOT NULL,
    error          TEXT,
    average_rating REAL NOT NULL DEFAULT 0,
    started_at     TIMESTAMP NOT NULL,
    ended_at       TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS practice_answers (
    session_id  TEXT NOT NULL REFERENCES practice_sessions(id) ON DELETE CASCADE,
    question_id TEXT NOT NULL,
    response    TEXT NOT NULL,
    feedback    TEXT,
    PRIMARY KEY (session_id, question_id)
);`,
}

// Store persists completed sessions.
type Store struct {
	db      *sql.DB
	driver  string
	queries *db.Queries
}

func NewStore(database *sql.DB, driver string) *Store {
	return &Store{
		db:      database,
		driver:  driver,
		queries: db.New(database),
	}
}

// Migrate creates the result tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	schema, ok := schemas[s.driver]
	if !ok {
		return fmt.Errorf("unsupported results driver %q", s.driver)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate results schema: %w", err)
	}
	return nil
}

// Save writes a result and its answers in one transaction.
func (s *Store) Save(ctx context.Context, result models.SessionResult) error {
	err := sqlutil.Run(ctx, s.db, nil, s.queries.WithTx, func(q *db.Queries) error {
		if err := q.CreateSession(ctx, db.CreateSessionParams{
			ID:            result.SessionID.String(),
			Category:      result.Meta.Category,
			Level:         int32(result.Meta.Level),
			UserID:        sqlutil.NullString(result.Meta.UserID),
			Reason:        string(result.Reason),
			Answered:      int32(result.Answered),
			Total:         int32(result.Total),
			Error:         sqlutil.NullString(result.Error),
			AverageRating: result.AverageRating(),
			StartedAt:     result.StartedAt.UTC(),
			EndedAt:       result.EndedAt.UTC(),
		}); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		for questionID, response := range result.Responses {
			feedback := pqtype.NullRawMessage{}
			if fb, ok := result.Feedback[questionID]; ok {
				raw, err := json.Marshal(fb)
				if err != nil {
					return fmt.Errorf("failed to marshal feedback for %s: %w", questionID, err)
				}
				feedback = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
			}
			if err := q.CreateAnswer(ctx, db.CreateAnswerParams{
				SessionID:  result.SessionID.String(),
				QuestionID: questionID,
				Response:   response,
				Feedback:   feedback,
			}); err != nil {
				return fmt.Errorf("failed to insert answer %s: %w", questionID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("session_id", result.SessionID.String()).
		Str("reason", string(result.Reason)).
		Int("answered", result.Answered).
		Msg("session result saved")
	return nil
}

// Get loads a stored result with its answers and feedback from one snapshot.
func (s *Store) Get(ctx context.Context, sessionID uuid.UUID) (models.SessionResult, error) {
	var result models.SessionResult
	err := sqlutil.Run(ctx, s.db, sqlutil.ReadOnly, s.queries.WithTx, func(q *db.Queries) error {
		row, err := q.GetSession(ctx, sessionID.String())
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", sessionID, err)
		}

		result, err = dbSessionToModel(row)
		if err != nil {
			return err
		}

		answers, err := q.ListAnswersBySession(ctx, sessionID.String())
		if err != nil {
			return fmt.Errorf("failed to load answers for %s: %w", sessionID, err)
		}
		for _, a := range answers {
			result.Responses[a.QuestionID] = a.Response
			if !a.Feedback.Valid {
				continue
			}
			var fb models.Feedback
			if err := json.Unmarshal(a.Feedback.RawMessage, &fb); err != nil {
				return fmt.Errorf("failed to decode feedback for %s: %w", a.QuestionID, err)
			}
			result.Feedback[a.QuestionID] = fb
		}
		return nil
	})
	if err != nil {
		return models.SessionResult{}, err
	}
	return result, nil
}

// ListRecent returns the newest results without their answers.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.SessionResult, error) {
	rows, err := s.queries.ListRecentSessions(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]models.SessionResult, 0, len(rows))
	for _, row := range rows {
		result, err := dbSessionToModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

func dbSessionToModel(row db.PracticeSession) (models.SessionResult, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return models.SessionResult{}, fmt.Errorf("invalid stored session id %q: %w", row.ID, err)
	}
	return models.SessionResult{
		SessionID: id,
		Meta: models.SessionMeta{
			Category: row.Category,
			Level:    int(row.Level),
			UserID:   sqlutil.StringOr(row.UserID, ""),
		},
		Reason:    models.CompletionReason(row.Reason),
		Responses: make(map[string]string),
		Feedback:  make(map[string]models.Feedback),
		Answered:  int(row.Answered),
		Total:     int(row.Total),
		Error:     sqlutil.StringOr(row.Error, ""),
		StartedAt: row.StartedAt,
		EndedAt:   row.EndedAt,
	}, nil
}

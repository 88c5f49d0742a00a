package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/sqlc-dev/pqtype"
)

const createSession = `
INSERT INTO practice_sessions (
    id, category, level, user_id, reason, answered, total, error, average_rating, started_at, ended_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
`

type CreateSessionParams struct {
	ID            string
	Category      string
	Level         int32
	UserID        sql.NullString
	Reason        string
	Answered      int32
	Total         int32
	Error         sql.NullString
	AverageRating float64
	StartedAt     time.Time
	EndedAt       time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	_, err := q.db.ExecContext(ctx, createSession,
		arg.ID,
		arg.Category,
		arg.Level,
		arg.UserID,
		arg.Reason,
		arg.Answered,
		arg.Total,
		arg.Error,
		arg.AverageRating,
		arg.StartedAt,
		arg.EndedAt,
	)
	return err
}

const createAnswer = `
INSERT INTO practice_answers (
    session_id, question_id, response, feedback
) VALUES (
    $1, $2, $3, $4
)
`

type CreateAnswerParams struct {
	SessionID  string
	QuestionID string
	Response   string
	Feedback   pqtype.NullRawMessage
}

func (q *Queries) CreateAnswer(ctx context.Context, arg CreateAnswerParams) error {
	_, err := q.db.ExecContext(ctx, createAnswer,
		arg.SessionID,
		arg.QuestionID,
		arg.Response,
		arg.Feedback,
	)
	return err
}

const getSession = `
SELECT id, category, level, user_id, reason, answered, total, error, average_rating, started_at, ended_at
FROM practice_sessions
WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id string) (PracticeSession, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	var i PracticeSession
	err := row.Scan(
		&i.ID,
		&i.Category,
		&i.Level,
		&i.UserID,
		&i.Reason,
		&i.Answered,
		&i.Total,
		&i.Error,
		&i.AverageRating,
		&i.StartedAt,
		&i.EndedAt,
	)
	return i, err
}

const listAnswersBySession = `
SELECT session_id, question_id, response, feedback
FROM practice_answers
WHERE session_id = $1
ORDER BY question_id
`

func (q *Queries) ListAnswersBySession(ctx context.Context, sessionID string) ([]PracticeAnswer, error) {
	rows, err := q.db.QueryContext(ctx, listAnswersBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PracticeAnswer
	for rows.Next() {
		var i PracticeAnswer
		if err := rows.Scan(
			&i.SessionID,
			&i.QuestionID,
			&i.Response,
			&i.Feedback,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRecentSessions = `
SELECT id, category, level, user_id, reason, answered, total, error, average_rating, started_at, ended_at
FROM practice_sessions
ORDER BY ended_at DESC
LIMIT $1
`

func (q *Queries) ListRecentSessions(ctx context.Context, limit int32) ([]PracticeSession, error) {
	rows, err := q.db.QueryContext(ctx, listRecentSessions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PracticeSession
	for rows.Next() {
		var i PracticeSession
		if err := rows.Scan(
			&i.ID,
			&i.Category,
			&i.Level,
			&i.UserID,
			&i.Reason,
			&i.Answered,
			&i.Total,
			&i.Error,
			&i.AverageRating,
			&i.StartedAt,
			&i.EndedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

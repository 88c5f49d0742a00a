package db

import (
	"database/sql"
	"time"

	"github.com/sqlc-dev/pqtype"
)

type PracticeSession struct {
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

type PracticeAnswer struct {
	SessionID  string
	QuestionID string
	Response   string
	Feedback   pqtype.NullRawMessage
}

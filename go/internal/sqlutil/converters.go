package sqlutil

import (
	"database/sql"
	"strings"
)

// NullString stores blank strings as NULL.
func NullString(val string) sql.NullString {
	if strings.TrimSpace(val) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: val, Valid: true}
}

// StringOr returns val's string, or fallback when it is NULL.
func StringOr(val sql.NullString, fallback string) string {
	if !val.Valid {
		return fallback
	}
	return val.String
}

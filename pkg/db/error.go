package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsMissingTableErr reports whether err means the queried table does not exist.
func IsMissingTableErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	// SQLite
	if strings.Contains(msg, "no such table") {
		return true
	}

	// PostgreSQL (error code 42P01)
	if strings.Contains(msg, "SQLSTATE 42P01") || (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) {
		return true
	}

	// MySQL (error code 1146)
	if strings.Contains(msg, "Error 1146") {
		return true
	}

	return false
}

// IsConnectionErr reports whether err comes from an unreachable or closed
// database rather than from the statement itself.
func IsConnectionErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"database is closed",
		"sql: database is closed",
		"bad connection",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"unable to open database file",
		"failed to connect",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

package sqldb

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint on either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

// isForeignKeyViolation reports whether err came from a FOREIGN KEY
// constraint, i.e. a referenced row does not exist.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return true
		}
		return strings.Contains(liteErr.Error(), "FOREIGN KEY constraint failed")
	}
	return false
}

// uniqueColumn extracts the offending column from a unique violation so the
// caller can report a precise Conflict. Returns "" when it cannot tell.
func uniqueColumn(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Constraint names follow the default "<table>_<column>_key".
		name := strings.TrimSuffix(pgErr.ConstraintName, "_key")
		if i := strings.Index(name, "_"); i >= 0 {
			return name[i+1:]
		}
		return ""
	}

	// SQLite: "UNIQUE constraint failed: categories.slug"
	msg := err.Error()
	if i := strings.LastIndex(msg, "."); i >= 0 && strings.Contains(msg, "UNIQUE constraint failed") {
		col := msg[i+1:]
		if j := strings.IndexAny(col, " )"); j >= 0 {
			col = col[:j]
		}
		return col
	}
	return ""
}

package postgresql

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/sqlrun/internal/constants"
)

// Dialect implements the ledger dialect for PostgreSQL
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name returns the dialect name used in logs
func (p *Dialect) Name() string {
	return "postgresql"
}

// DriverName returns the database/sql driver registered by pgx stdlib
func (p *Dialect) DriverName() string {
	return "pgx"
}

// Placeholder returns PostgreSQL-style placeholders ($1, $2, etc.)
func (p *Dialect) Placeholder() sq.PlaceholderFormat {
	return sq.Dollar
}

// ConvertTimeToStorage converts time to PostgreSQL storage format (native time.Time)
func (p *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	return t.UTC()
}

// ConvertTimeFromStorage parses a TIMESTAMPTZ value. database/sql renders
// time.Time as RFC3339Nano when scanning into a string.
func (p *Dialect) ConvertTimeFromStorage(val string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse applied_at %q: %w", val, err)
	}
	return t.UTC(), nil
}

// ConfigurePool applies PostgreSQL connection pool settings
func (p *Dialect) ConfigurePool(db *sql.DB) {
	db.SetMaxOpenConns(constants.DefaultPostgresMaxConnections)
	db.SetMaxIdleConns(constants.DefaultPostgresMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)
}

// EnsureStatement returns the ledger table creation statement
func (p *Dialect) EnsureStatement(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sequence_key VARCHAR(64) PRIMARY KEY, description TEXT NULL, applied_at TIMESTAMPTZ NOT NULL)", table)
}

// HasTableQuery looks the ledger table up in the current schema. Unquoted
// identifiers are stored lower case.
func (p *Dialect) HasTableQuery(table string) sq.SelectBuilder {
	return sq.Select("COUNT(*)").
		From("information_schema.tables").
		Where("table_schema = current_schema()").
		Where(sq.Eq{"table_name": strings.ToLower(table)}).
		PlaceholderFormat(sq.Dollar)
}

// LockStatements returns the session-level advisory lock pair
func (p *Dialect) LockStatements() (string, string) {
	return "SELECT pg_advisory_lock($1)", "SELECT pg_advisory_unlock($1)"
}

package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/loykin/sqlrun/internal/constants"
)

// Dialect implements the ledger dialect for SQLite
type Dialect struct {
	memory bool
}

// NewDialect creates a new SQLite dialect for a file database
func NewDialect() *Dialect {
	return &Dialect{}
}

// NewDialectFor creates a dialect matching cfg. An in-memory database lives
// only as long as its single connection, so its pool never recycles it.
func NewDialectFor(cfg Config) *Dialect {
	return &Dialect{memory: cfg.InMemory()}
}

// Name returns the dialect name used in logs
func (s *Dialect) Name() string {
	return "sqlite"
}

// DriverName returns the database/sql driver registered by modernc.org/sqlite
func (s *Dialect) DriverName() string {
	return "sqlite"
}

// Placeholder returns SQLite-style placeholders (?)
func (s *Dialect) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

// ConvertTimeToStorage converts time to SQLite storage format (RFC3339Nano string)
func (s *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	return t.UTC().Format(time.RFC3339Nano)
}

// ConvertTimeFromStorage parses the stored RFC3339Nano string
func (s *Dialect) ConvertTimeFromStorage(val string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse applied_at %q: %w", val, err)
	}
	return t.UTC(), nil
}

// ConfigurePool applies SQLite connection pool settings
func (s *Dialect) ConfigurePool(db *sql.DB) {
	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	lifetime, idle := s.connLimits()
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(idle)
}

// connLimits returns the connection lifetime and idle time; zero disables
// the limit.
func (s *Dialect) connLimits() (time.Duration, time.Duration) {
	if s.memory {
		return 0, 0
	}
	return constants.DefaultSQLiteLifetime, constants.DefaultSQLiteIdleTime
}

// EnsureStatement returns the ledger table creation statement
func (s *Dialect) EnsureStatement(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sequence_key VARCHAR(64) PRIMARY KEY, description TEXT NULL, applied_at TEXT NOT NULL)", table)
}

// HasTableQuery looks the ledger table up in sqlite_master
func (s *Dialect) HasTableQuery(table string) sq.SelectBuilder {
	return sq.Select("COUNT(*)").
		From("sqlite_master").
		Where(sq.Eq{"type": "table", "name": table}).
		PlaceholderFormat(sq.Question)
}

// LockStatements returns no statements; SQLite serializes writers itself
func (s *Dialect) LockStatements() (string, string) {
	return "", ""
}

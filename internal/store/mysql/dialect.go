package mysql

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/loykin/sqlrun/internal/constants"
)

// Dialect implements the ledger dialect for MySQL and MariaDB. DDL is not
// transactional there: a failed step may leave schema changes behind even
// though its ledger write is rolled back.
type Dialect struct{}

// NewDialect creates a new MySQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name returns the dialect name used in logs
func (m *Dialect) Name() string {
	return "mysql"
}

// DriverName returns the database/sql driver registered by go-sql-driver/mysql
func (m *Dialect) DriverName() string {
	return "mysql"
}

// Placeholder returns MySQL-style placeholders (?)
func (m *Dialect) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

// ConvertTimeToStorage stores applied_at as a UTC DATETIME(6)
func (m *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	return t.UTC()
}

// ConvertTimeFromStorage parses DATETIME values scanned with parseTime=true
func (m *Dialect) ConvertTimeFromStorage(val string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse applied_at %q: %w", val, err)
	}
	return t.UTC(), nil
}

// ConfigurePool applies MySQL connection pool settings
func (m *Dialect) ConfigurePool(db *sql.DB) {
	db.SetMaxOpenConns(constants.DefaultMySQLMaxConnections)
	db.SetMaxIdleConns(constants.DefaultMySQLMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)
}

// EnsureStatement returns the ledger table creation statement
func (m *Dialect) EnsureStatement(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sequence_key VARCHAR(64) PRIMARY KEY, description TEXT NULL, applied_at DATETIME(6) NOT NULL)", table)
}

// HasTableQuery looks the ledger table up in the connected database
func (m *Dialect) HasTableQuery(table string) sq.SelectBuilder {
	return tableQuery(table)
}

// LockStatements returns the named user-level lock pair
func (m *Dialect) LockStatements() (string, string) {
	return "SELECT GET_LOCK(?, -1)", "SELECT RELEASE_LOCK(?)"
}

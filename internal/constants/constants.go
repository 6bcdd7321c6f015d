package constants

import "time"

// Database Constants
const (
	// PostgreSQL defaults
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	// MySQL defaults
	DefaultMySQLPort = 3306

	// Connection pool settings
	DefaultPostgresMaxConnections = 25
	DefaultPostgresMaxIdleConns   = 5
	DefaultMySQLMaxConnections    = 25
	DefaultMySQLMaxIdleConns      = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1

	// Default ledger table name
	DefaultHistoryTable = "migration_history"

	// Table name suffix when using prefixes
	HistoryTableSuffix = "_migration_history"

	// Advisory lock key used on PostgreSQL when locking is enabled
	AdvisoryLockKey = "sqlrun.migration_history"
)

// Time and Duration Constants
const (
	// Connection pool lifetimes
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute

	// SQLite busy timeout in milliseconds
	SQLiteBusyTimeoutMS = 5000
)

// Migration script constants
const (
	DefaultMigrationsDir   = "migrations"
	DefaultScriptExt       = "sql"
	DefaultListLimit       = 20
	BaselineDescription    = "first_migration_empty"
	DefaultDowngradeCount  = 1
	FallbackDescription    = "migration"
	MaxDescriptionLength   = 80
	ScriptFilePermission   = 0o644
	SequenceKeyLength      = len("20060102_150405_000000")
	SequenceKeyTimeLayout  = "20060102_150405"
	DescriptionSeparator   = "__"
	IgnoredFilenamePrefix  = "__"
	HiddenFilenamePrefix   = "."
	StatusTimestampLayout  = "2006-01-02 15:04:05 MST"
	DefaultConfigEnvPrefix = "SQLRUN"
)

// Environment variables understood by the CLI
const (
	EnvDatabaseURL   = "WRITER_DATABASE_URI"
	EnvMigrationsDir = "MIGRATIONS_DIR"
	EnvDatabaseEcho  = "DATABASE_ECHO"
)

// Package sqlrun applies ordered SQL migration scripts to a relational
// database and records what has been applied in a history table.
package sqlrun

import (
	"context"

	"github.com/loykin/sqlrun/internal/common"
	"github.com/loykin/sqlrun/internal/executor"
	imig "github.com/loykin/sqlrun/internal/migration"
	"github.com/loykin/sqlrun/internal/plan"
	"github.com/loykin/sqlrun/internal/script"
	"github.com/loykin/sqlrun/internal/session"
	"github.com/loykin/sqlrun/internal/store"
	"github.com/loykin/sqlrun/internal/store/mysql"
)

// Re-export commonly used types for public API

// Tool is a configured migration environment.
type Tool = imig.Tool

// Config selects the database, migrations directory and history table.
type Config = imig.Config

// Options carries runtime collaborators such as progress reporting.
type Options = imig.Options

// Info is one row of the status listing.
type Info = imig.Info

// Plan is an ordered list of steps sharing one direction.
type Plan = plan.Plan

// Step is one migration to run in one direction.
type Step = plan.Step

// Direction is Forward or Reverse.
type Direction = plan.Direction

const (
	Forward = plan.Forward
	Reverse = plan.Reverse
)

// StepResult reports the outcome of one executed step.
type StepResult = executor.StepResult

// Status of a finished step.
type Status = executor.Status

const (
	StatusApplied  = executor.StatusApplied
	StatusReversed = executor.StatusReversed
	StatusFailed   = executor.StatusFailed
)

// Event is emitted before and after each step.
type Event = executor.Event

const (
	PhaseStart = executor.PhaseStart
	PhaseDone  = executor.PhaseDone
)

// Progress receives execution events.
type Progress = executor.Progress

// Record is a loaded migration script.
type Record = script.Record

// Session is what migration operations execute statements through.
type Session = session.Session

// Operation is the forward or reverse body of a migration.
type Operation = script.Operation

// Loader turns a script file into operations.
type Loader = script.Loader

// Logger is the structured logger used throughout sqlrun.
type Logger = common.Logger

// LogLevel represents logging verbosity levels.
type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

// NewLogger creates a text logger writing to stderr.
func NewLogger(level LogLevel) *Logger { return common.NewLogger(level) }

// NewJSONLogger creates a JSON logger writing to stderr.
func NewJSONLogger(level LogLevel) *Logger { return common.NewJSONLogger(level) }

// NewColorLogger creates a colorized text logger writing to stderr.
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }

// ParseLogLevel maps error, warn, info or debug to a LogLevel.
func ParseLogLevel(s string) (LogLevel, bool) { return common.ParseLogLevel(s) }

// SetDefaultLogger replaces the logger used by every package.
func SetDefaultLogger(l *Logger) { common.SetDefaultLogger(l) }

// EnableMasking toggles masking of credentials in log output.
func EnableMasking(enabled bool) { common.EnableMasking(enabled) }

// Error kinds. Match them with errors.Is or errors.As.
var (
	ErrDirNotFound         = script.ErrDirNotFound
	ErrHistoryTableMissing = store.ErrHistoryTableMissing
	ErrInvalidCount        = plan.ErrInvalidCount
	ErrUnsupportedURL      = store.ErrUnsupportedURL
	ErrStalePlan           = plan.ErrStalePlan
)

type (
	MalformedFilenameError      = script.MalformedFilenameError
	InvalidMigrationModuleError = script.InvalidMigrationModuleError
	UnknownTargetError          = plan.UnknownTargetError
	TargetNotAppliedError       = plan.TargetNotAppliedError
	OrphanedHistoryEntryError   = plan.OrphanedHistoryEntryError
	DuplicateSequenceKeyError   = plan.DuplicateSequenceKeyError
	MigrationFailedError        = executor.MigrationFailedError
	HistoryTableMissingError    = store.HistoryTableMissingError
)

// New builds a Tool. See migration.New.
func New(ctx context.Context, cfg Config, opts Options) (*Tool, error) {
	return imig.New(ctx, cfg, opts)
}

// Generate writes a new empty migration script into cfg.MigrationsDir
// without connecting to the database.
func Generate(cfg Config, opts Options, description string) (string, error) {
	return imig.Generate(cfg, opts, description)
}

// MySQLHasTable reports whether table exists in the current MySQL database.
// Use it from Go-registered operations.
func MySQLHasTable(ctx context.Context, s Session, table string) (bool, error) {
	return mysql.HasTable(ctx, s, table)
}

// MySQLHasColumn reports whether table has column.
func MySQLHasColumn(ctx context.Context, s Session, table, column string) (bool, error) {
	return mysql.HasColumn(ctx, s, table, column)
}

// MySQLHasIndex reports whether table has an index named index.
func MySQLHasIndex(ctx context.Context, s Session, table, index string) (bool, error) {
	return mysql.HasIndex(ctx, s, table, index)
}

// MySQLHasConstraint reports whether table has a constraint named constraint.
func MySQLHasConstraint(ctx context.Context, s Session, table, constraint string) (bool, error) {
	return mysql.HasConstraint(ctx, s, table, constraint)
}

// Upgrade opens a Tool for cfg, applies everything pending and closes it.
func Upgrade(ctx context.Context, cfg Config) ([]StepResult, error) {
	t, err := imig.New(ctx, cfg, imig.Options{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = t.Close() }()
	return t.Upgrade(ctx, "")
}

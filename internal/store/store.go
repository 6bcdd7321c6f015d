// Package store persists the migration ledger: one row per applied sequence
// key, written inside the same transaction as the migration it records.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	sqldblogger "github.com/simukti/sqldb-logger"

	"github.com/loykin/sqlrun/internal/common"
	"github.com/loykin/sqlrun/internal/constants"
	"github.com/loykin/sqlrun/internal/retry"
	"github.com/loykin/sqlrun/internal/session"
)

// Dialect captures what differs between the supported databases.
type Dialect interface {
	Name() string
	DriverName() string
	Placeholder() sq.PlaceholderFormat
	ConvertTimeToStorage(t time.Time) interface{}
	ConvertTimeFromStorage(val string) (time.Time, error)
	ConfigurePool(db *sql.DB)
	EnsureStatement(table string) string
	HasTableQuery(table string) sq.SelectBuilder
	LockStatements() (lock string, unlock string)
}

// Entry is one ledger row.
type Entry struct {
	Key         string
	Description string
	AppliedAt   time.Time
}

type entryRow struct {
	Key         string         `db:"sequence_key"`
	Description sql.NullString `db:"description"`
	AppliedAt   string         `db:"applied_at"`
}

// Store reads and writes the ledger table.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	logger  *common.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, table string) (*Store, error) {
	name, err := Options{Table: table}.TableName()
	if err != nil {
		return nil, err
	}
	return &Store{
		db:      db,
		dialect: dialect,
		table:   name,
		logger:  common.GetLogger().WithStore(dialect.Name()),
	}, nil
}

// Open resolves the dialect from opts.URL, connects and pings the database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	table, err := opts.TableName()
	if err != nil {
		return nil, err
	}
	dialect, dsn, err := Resolve(opts.URL)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.GetLogger()
	}
	logger = logger.WithStore(dialect.Name())

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect.Name(), err)
	}
	if opts.Echo {
		raw := db
		db = sqldblogger.OpenDriver(dsn, raw.Driver(), &queryLogger{logger: logger.WithComponent("echo")}, echoOptions()...)
		_ = raw.Close()
	}
	dialect.ConfigurePool(db)
	if err := retry.WithRetry(ctx, opts.Retry, "ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect.Name(), err)
	}
	logger.Info("database connection established", "url", opts.URL, "table", table)
	return &Store{db: db, dialect: dialect, table: table, logger: logger}, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the dialect in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// Table returns the ledger table name.
func (s *Store) Table() string { return s.table }

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureInitialized creates the ledger table if it does not exist.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	q := s.dialect.EnsureStatement(s.table)
	s.logger.Debug("ensuring history table", "sql", q)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		s.logger.Error("failed to create history table", "error", err)
		return fmt.Errorf("failed to create history table %s: %w", s.table, err)
	}
	return nil
}

// HasTable reports whether the ledger table exists.
func (s *Store) HasTable(ctx context.Context) (bool, error) {
	q, args, err := s.dialect.HasTableQuery(s.table).ToSql()
	if err != nil {
		return false, fmt.Errorf("build has-table query: %w", err)
	}
	var n int
	if err := sqlscan.Get(ctx, s.db, &n, q, args...); err != nil {
		return false, fmt.Errorf("check history table: %w", err)
	}
	return n > 0, nil
}

// AssertInitialized fails with *HistoryTableMissingError when the ledger
// table has not been created.
func (s *Store) AssertInitialized(ctx context.Context) error {
	ok, err := s.HasTable(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &HistoryTableMissingError{Table: s.table}
	}
	return nil
}

// LoadApplied returns every applied sequence key in ascending order. It never
// creates the table.
func (s *Store) LoadApplied(ctx context.Context) ([]string, error) {
	if err := s.AssertInitialized(ctx); err != nil {
		return nil, err
	}
	q, args, err := sq.Select("sequence_key").
		From(s.table).
		OrderBy("sequence_key ASC").
		PlaceholderFormat(s.dialect.Placeholder()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load-applied query: %w", err)
	}
	var keys []string
	if err := sqlscan.Select(ctx, s.db, &keys, q, args...); err != nil {
		return nil, fmt.Errorf("load applied keys: %w", err)
	}
	return keys, nil
}

// Entries returns ledger rows in ascending key order. When limit > 0 only the
// newest limit rows are returned, still ascending.
func (s *Store) Entries(ctx context.Context, limit int) ([]Entry, error) {
	if err := s.AssertInitialized(ctx); err != nil {
		return nil, err
	}
	b := sq.Select("sequence_key", "description", "applied_at").
		From(s.table).
		PlaceholderFormat(s.dialect.Placeholder())
	if limit > 0 {
		b = b.OrderBy("sequence_key DESC").Limit(uint64(limit))
	} else {
		b = b.OrderBy("sequence_key ASC")
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entries query: %w", err)
	}
	var rows []entryRow
	if err := sqlscan.Select(ctx, s.db, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("load history entries: %w", err)
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		at, err := s.dialect.ConvertTimeFromStorage(r.AppliedAt)
		if err != nil {
			return nil, err
		}
		idx := i
		if limit > 0 {
			idx = len(rows) - 1 - i
		}
		out[idx] = Entry{Key: r.Key, Description: r.Description.String, AppliedAt: at}
	}
	return out, nil
}

// Record appends e to the ledger on the caller's session so it commits or
// rolls back with the migration.
func (s *Store) Record(ctx context.Context, sess session.Session, e Entry) error {
	at := e.AppliedAt
	if at.IsZero() {
		at = time.Now()
	}
	var desc interface{}
	if e.Description != "" {
		desc = e.Description
	}
	q, args, err := sq.Insert(s.table).
		Columns("sequence_key", "description", "applied_at").
		Values(e.Key, desc, s.dialect.ConvertTimeToStorage(at)).
		PlaceholderFormat(s.dialect.Placeholder()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record statement: %w", err)
	}
	if _, err := sess.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("record %s: %w", e.Key, err)
	}
	s.logger.WithKey(e.Key).Debug("history entry recorded")
	return nil
}

// Unrecord removes key from the ledger on the caller's session. A key that is
// not present is an error.
func (s *Store) Unrecord(ctx context.Context, sess session.Session, key string) error {
	q, args, err := sq.Delete(s.table).
		Where(sq.Eq{"sequence_key": key}).
		PlaceholderFormat(s.dialect.Placeholder()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build unrecord statement: %w", err)
	}
	res, err := sess.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("unrecord %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unrecord %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("unrecord %s: %w", key, ErrEntryNotFound)
	}
	s.logger.WithKey(key).Debug("history entry removed")
	return nil
}

// Lock takes a session-level advisory lock on a dedicated connection for the
// duration of a run. Dialects without advisory locks return a no-op release.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	lock, unlock := s.dialect.LockStatements()
	if lock == "" {
		return func() {}, nil
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	id := lockID(constants.AdvisoryLockKey + ":" + s.table)
	if _, err := conn.ExecContext(ctx, lock, id); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("advisory lock %d: %w", id, err)
	}
	s.logger.Debug("advisory lock acquired", "lock_id", id)
	return func() {
		if _, err := conn.ExecContext(context.Background(), unlock, id); err != nil {
			s.logger.Warn("advisory unlock failed", "error", err, "lock_id", id)
		}
		_ = conn.Close()
	}, nil
}

func lockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrHistoryTableMissing is returned when the ledger has not been initialized.
	ErrHistoryTableMissing = errors.New("migration history table is missing")
	// ErrEntryNotFound is returned by Unrecord when the key is not in the ledger.
	ErrEntryNotFound = errors.New("history entry not found")
	// ErrInvalidTableName rejects ledger table names that are not plain identifiers.
	ErrInvalidTableName = errors.New("invalid history table name")
	// ErrUnsupportedURL is returned when no dialect handles a database URL.
	ErrUnsupportedURL = errors.New("unsupported database url")
)

// HistoryTableMissingError names the ledger table that was not found.
type HistoryTableMissingError struct {
	Table string
}

func (e *HistoryTableMissingError) Error() string {
	return fmt.Sprintf("table %q is missing: the database has not been initialized, run `sqlrun init` first", e.Table)
}

func (e *HistoryTableMissingError) Unwrap() error { return ErrHistoryTableMissing }

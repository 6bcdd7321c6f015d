package plan

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCount is returned for a negative downgrade count.
var ErrInvalidCount = errors.New("downgrade count must not be negative")

// ErrStalePlan is returned when the ledger changed after a plan was made.
var ErrStalePlan = errors.New("plan no longer matches the history table")

// UnknownTargetError reports a target that names no migration on disk.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("target migration %q not found", e.Target)
}

// TargetNotAppliedError reports a downgrade target that exists on disk but is
// not in the ledger.
type TargetNotAppliedError struct {
	Target string
	Key    string
}

func (e *TargetNotAppliedError) Error() string {
	return fmt.Sprintf("target migration %q (%s) is not applied", e.Target, e.Key)
}

// OrphanedHistoryEntryError reports ledger keys that must be reversed but have
// no script on disk.
type OrphanedHistoryEntryError struct {
	Keys []string
}

func (e *OrphanedHistoryEntryError) Error() string {
	return fmt.Sprintf("applied migrations missing from disk: %s", strings.Join(e.Keys, ", "))
}

// DuplicateSequenceKeyError reports two scripts sharing one sequence key.
type DuplicateSequenceKeyError struct {
	Key       string
	Filenames []string
}

func (e *DuplicateSequenceKeyError) Error() string {
	return fmt.Sprintf("sequence key %s is used by more than one migration: %s", e.Key, strings.Join(e.Filenames, ", "))
}

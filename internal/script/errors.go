package script

import (
	"errors"
	"fmt"
)

// ErrDirNotFound is returned when the migrations directory does not exist.
var ErrDirNotFound = errors.New("migrations directory not found")

// MalformedFilenameError reports a file in the migrations directory whose name
// does not follow <date>_<time>_<micro>__<description>.<ext>.
type MalformedFilenameError struct {
	Filename string
	Reason   string
}

func (e *MalformedFilenameError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed migration filename %q", e.Filename)
	}
	return fmt.Sprintf("malformed migration filename %q: %s", e.Filename, e.Reason)
}

// InvalidMigrationModuleError reports a well-named file that cannot be turned
// into a record with both a forward and a reverse operation.
type InvalidMigrationModuleError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *InvalidMigrationModuleError) Error() string {
	msg := fmt.Sprintf("invalid migration %q: %s", e.Filename, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidMigrationModuleError) Unwrap() error { return e.Err }

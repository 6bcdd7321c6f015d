// Package script discovers, loads and generates migration scripts on disk.
package script

import (
	"context"

	"github.com/loykin/sqlrun/internal/session"
)

// Operation is the forward or reverse logic of a migration. It runs inside the
// step transaction and must not commit or roll back the session.
type Operation func(ctx context.Context, s session.Session) error

// Record is one migration script bound to its operations.
type Record struct {
	Key         string
	Description string
	Filename    string
	Path        string
	Forward     Operation
	Reverse     Operation
}

// Matches reports whether target names this record, either by file name or by
// bare sequence key.
func (r Record) Matches(target string) bool {
	return target != "" && (target == r.Filename || target == r.Key)
}

func noop(context.Context, session.Session) error { return nil }

package executor

import (
	"fmt"

	"github.com/loykin/sqlrun/internal/plan"
)

// MigrationFailedError reports the step that stopped a run. Steps committed
// before it stay applied and are listed in Completed.
type MigrationFailedError struct {
	Key         string
	Description string
	Filename    string
	Direction   plan.Direction
	Completed   []string
	Err         error
}

func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("migration %s (%s) failed during %s after %d completed step(s): %v; "+
		"its transaction was rolled back, but statements that auto-commit on databases without transactional DDL may persist",
		e.Key, e.Description, e.Direction, len(e.Completed), e.Err)
}

func (e *MigrationFailedError) Unwrap() error { return e.Err }

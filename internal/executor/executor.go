// Package executor runs a plan one step at a time. Each step's operation and
// its ledger update share one transaction; the first failure stops the run.
//
// Atomicity is only as strong as the database's transactional DDL: on engines
// that auto-commit schema changes a failed step can leave partial effects.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/loykin/sqlrun/internal/common"
	"github.com/loykin/sqlrun/internal/plan"
	"github.com/loykin/sqlrun/internal/session"
	"github.com/loykin/sqlrun/internal/store"
)

// Ledger is the bookkeeping half of a step. *store.Store implements it.
type Ledger interface {
	Record(ctx context.Context, s session.Session, e store.Entry) error
	Unrecord(ctx context.Context, s session.Session, key string) error
}

var _ Ledger = (*store.Store)(nil)

// Status of a finished step.
type Status string

const (
	StatusApplied  Status = "applied"
	StatusReversed Status = "reversed"
	StatusFailed   Status = "failed"
)

// StepResult describes one executed step.
type StepResult struct {
	Key         string
	Description string
	Filename    string
	Direction   plan.Direction
	Status      Status
	Err         error
	Duration    time.Duration
}

// Phase of a progress event.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseDone  Phase = "done"
)

// Event is passed to Progress before and after every step.
type Event struct {
	Phase  Phase
	Index  int
	Total  int
	Step   plan.Step
	Result *StepResult
}

// Progress observes a run. It must not block.
type Progress func(Event)

// Options tune an Executor.
type Options struct {
	Progress Progress
	// Now stamps ledger entries. Defaults to time.Now.
	Now    func() time.Time
	Logger *common.Logger
}

// Executor applies plans against a database.
type Executor struct {
	db     session.Beginner
	ledger Ledger
	opts   Options
}

// New returns an Executor that opens step transactions on db.
func New(db session.Beginner, ledger Ledger, opts Options) *Executor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = common.GetLogger()
	}
	return &Executor{db: db, ledger: ledger, opts: opts}
}

// Execute runs p in order. On failure it returns the results so far, the
// failed step included, and a *MigrationFailedError.
func (e *Executor) Execute(ctx context.Context, p plan.Plan) ([]StepResult, error) {
	logger := e.opts.Logger.WithComponent("executor").WithDirection(string(p.Direction))
	results := make([]StepResult, 0, len(p.Steps))
	completed := make([]string, 0, len(p.Steps))

	for i, step := range p.Steps {
		e.notify(Event{Phase: PhaseStart, Index: i, Total: len(p.Steps), Step: step})
		stepLog := logger.WithKey(step.Record.Key)
		stepLog.Debug("running step", "filename", step.Record.Filename)

		started := time.Now()
		err := e.runStep(ctx, step)
		res := StepResult{
			Key:         step.Record.Key,
			Description: step.Record.Description,
			Filename:    step.Record.Filename,
			Direction:   step.Direction,
			Status:      statusFor(step.Direction),
			Duration:    time.Since(started),
		}
		if err != nil {
			res.Status, res.Err = StatusFailed, err
			results = append(results, res)
			e.notify(Event{Phase: PhaseDone, Index: i, Total: len(p.Steps), Step: step, Result: &res})
			stepLog.Error("step failed", "error", err, "completed", len(completed))
			return results, &MigrationFailedError{
				Key:         step.Record.Key,
				Description: step.Record.Description,
				Filename:    step.Record.Filename,
				Direction:   step.Direction,
				Completed:   completed,
				Err:         err,
			}
		}
		results = append(results, res)
		completed = append(completed, step.Record.Key)
		e.notify(Event{Phase: PhaseDone, Index: i, Total: len(p.Steps), Step: step, Result: &res})
		stepLog.Info("step committed", "status", string(res.Status), "duration", res.Duration)
	}
	return results, nil
}

func (e *Executor) runStep(ctx context.Context, step plan.Step) (err error) {
	op := step.Operation()
	if op == nil {
		return fmt.Errorf("no %s operation", step.Direction)
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err := op(ctx, tx); err != nil {
		return err
	}
	if step.Direction == plan.Reverse {
		err = e.ledger.Unrecord(ctx, tx, step.Record.Key)
	} else {
		err = e.ledger.Record(ctx, tx, store.Entry{
			Key:         step.Record.Key,
			Description: step.Record.Description,
			AppliedAt:   e.opts.Now(),
		})
	}
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (e *Executor) notify(ev Event) {
	if e.opts.Progress != nil {
		e.opts.Progress(ev)
	}
}

func statusFor(d plan.Direction) Status {
	if d == plan.Reverse {
		return StatusReversed
	}
	return StatusApplied
}

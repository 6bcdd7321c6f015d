// Package migration wires the script repository, the history store and the
// executor into the operations exposed by the sqlrun CLI and library.
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/loykin/sqlrun/internal/common"
	"github.com/loykin/sqlrun/internal/constants"
	"github.com/loykin/sqlrun/internal/executor"
	"github.com/loykin/sqlrun/internal/plan"
	"github.com/loykin/sqlrun/internal/retry"
	"github.com/loykin/sqlrun/internal/script"
	"github.com/loykin/sqlrun/internal/store"
)

// Config holds the settings a Tool is built from.
type Config struct {
	DatabaseURL   string
	MigrationsDir string
	Echo          bool
	// ScriptExt selects the template written by Generate: sql or yaml.
	ScriptExt    string
	HistoryTable string
	TablePrefix  string
	// Lock takes a database advisory lock around every execution.
	Lock bool
	// ConnectRetries retries the initial connection with backoff.
	ConnectRetries int
}

// Options carries runtime collaborators that are not configuration.
type Options struct {
	// Init creates the ledger table instead of requiring it.
	Init     bool
	Clock    script.Clock
	Progress executor.Progress
	Logger   *common.Logger
}

// Tool is one configured migration environment.
type Tool struct {
	cfg    Config
	repo   *script.Repository
	store  *store.Store
	exec   *executor.Executor
	logger *common.Logger
	runID  string
}

// New checks the migrations directory, connects to the database and, unless
// opts.Init is set, asserts that the ledger has been initialized.
func New(ctx context.Context, cfg Config, opts Options) (*Tool, error) {
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = constants.DefaultMigrationsDir
	}
	repo, err := openRepository(cfg, opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.GetLogger()
	}
	runID := uuid.NewString()
	logger = logger.WithRun(runID)

	st, err := store.Open(ctx, store.Options{
		URL:         cfg.DatabaseURL,
		Table:       cfg.HistoryTable,
		TablePrefix: cfg.TablePrefix,
		Echo:        cfg.Echo,
		Logger:      logger,
		Retry:       connectRetry(cfg.ConnectRetries),
	})
	if err != nil {
		return nil, err
	}
	if opts.Init {
		err = st.EnsureInitialized(ctx)
	} else {
		err = st.AssertInitialized(ctx)
	}
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Tool{
		cfg:   cfg,
		repo:  repo,
		store: st,
		exec: executor.New(st.DB(), st, executor.Options{
			Progress: opts.Progress,
			Logger:   logger,
		}),
		logger: logger.WithComponent("migration"),
		runID:  runID,
	}, nil
}

func connectRetry(n int) *retry.Config {
	if n <= 0 {
		return nil
	}
	return retry.WithMaxRetries(n)
}

// Close releases the database connection.
func (t *Tool) Close() error { return t.store.Close() }

// RunID identifies this tool instance in logs.
func (t *Tool) RunID() string { return t.runID }

// Repository exposes the script repository, e.g. to register loaders.
func (t *Tool) Repository() *script.Repository { return t.repo }

// Store exposes the history store.
func (t *Tool) Store() *store.Store { return t.store }

// Init creates the ledger table. When the migrations directory is empty it
// also generates and applies an empty baseline migration, returning its path.
func (t *Tool) Init(ctx context.Context) (string, []executor.StepResult, error) {
	if err := t.store.EnsureInitialized(ctx); err != nil {
		return "", nil, err
	}
	records, err := t.repo.ListAll()
	if err != nil {
		return "", nil, err
	}
	if len(records) > 0 {
		t.logger.Info("history table ready", "table", t.store.Table(), "migrations", len(records))
		return "", nil, nil
	}
	path, err := t.repo.Generate(constants.BaselineDescription)
	if err != nil {
		return "", nil, err
	}
	results, err := t.Upgrade(ctx, "")
	if err != nil {
		return path, results, err
	}
	t.logger.Info("initialized", "table", t.store.Table(), "baseline", path)
	return path, results, nil
}

// Generate writes a new empty migration script and returns its absolute path.
func (t *Tool) Generate(description string) (string, error) {
	return t.repo.Generate(description)
}

// Generate writes a new empty migration script into cfg.MigrationsDir without
// connecting to the database.
func Generate(cfg Config, opts Options, description string) (string, error) {
	repo, err := openRepository(cfg, opts)
	if err != nil {
		return "", err
	}
	return repo.Generate(description)
}

func openRepository(cfg Config, opts Options) (*script.Repository, error) {
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = constants.DefaultMigrationsDir
	}
	repo := script.NewRepository(script.Options{Dir: cfg.MigrationsDir, Ext: cfg.ScriptExt, Clock: opts.Clock})
	if err := repo.Check(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (t *Tool) snapshot(ctx context.Context) ([]script.Record, []string, error) {
	records, err := t.repo.ListAll()
	if err != nil {
		return nil, nil, err
	}
	applied, err := t.store.LoadApplied(ctx)
	if err != nil {
		return nil, nil, err
	}
	return records, applied, nil
}

// PlanUpgrade plans every pending migration, or those up to and including
// target when it is not empty.
func (t *Tool) PlanUpgrade(ctx context.Context, target string) (plan.Plan, error) {
	records, applied, err := t.snapshot(ctx)
	if err != nil {
		return plan.Plan{}, err
	}
	if target == "" {
		return plan.Upgrade(records, applied)
	}
	return plan.UpgradeTo(records, applied, target)
}

// PlanDowngrade plans the reversal of the n most recent migrations.
func (t *Tool) PlanDowngrade(ctx context.Context, n int) (plan.Plan, error) {
	if n < 0 {
		return plan.Plan{}, plan.ErrInvalidCount
	}
	records, applied, err := t.snapshot(ctx)
	if err != nil {
		return plan.Plan{}, err
	}
	return plan.DowngradeBy(records, applied, n)
}

// PlanDowngradeTo plans the reversal of everything applied after target, and
// of target itself when inclusive is set.
func (t *Tool) PlanDowngradeTo(ctx context.Context, target string, inclusive bool) (plan.Plan, error) {
	records, applied, err := t.snapshot(ctx)
	if err != nil {
		return plan.Plan{}, err
	}
	return plan.DowngradeTo(records, applied, target, inclusive)
}

// Execute runs a plan produced by one of the Plan methods. With Lock set the
// plan is checked against the ledger again once the lock is held.
func (t *Tool) Execute(ctx context.Context, p plan.Plan) ([]executor.StepResult, error) {
	if p.Empty() {
		t.logger.Info("nothing to do", "direction", string(p.Direction))
		return nil, nil
	}
	release, err := t.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if t.cfg.Lock {
		applied, err := t.store.LoadApplied(ctx)
		if err != nil {
			return nil, err
		}
		if err := p.Verify(applied); err != nil {
			return nil, err
		}
	}
	return t.execute(ctx, p)
}

func (t *Tool) execute(ctx context.Context, p plan.Plan) ([]executor.StepResult, error) {
	if p.Empty() {
		t.logger.Info("nothing to do", "direction", string(p.Direction))
		return nil, nil
	}
	t.logger.Info("executing plan", "direction", string(p.Direction), "steps", len(p.Steps))
	results, err := t.exec.Execute(ctx, p)
	var mfe *executor.MigrationFailedError
	if errors.As(err, &mfe) {
		return results, err
	}
	if err != nil {
		return results, fmt.Errorf("execute plan: %w", err)
	}
	return results, nil
}

// lock takes the advisory lock when configured. The returned release is
// never nil.
func (t *Tool) lock(ctx context.Context) (func(), error) {
	if !t.cfg.Lock {
		return func() {}, nil
	}
	return t.store.Lock(ctx)
}

// planAndExecute holds the lock across planning and execution so the plan
// is made from the ledger it runs against.
func (t *Tool) planAndExecute(ctx context.Context, build func(context.Context) (plan.Plan, error)) ([]executor.StepResult, error) {
	release, err := t.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	p, err := build(ctx)
	if err != nil {
		return nil, err
	}
	return t.execute(ctx, p)
}

// Upgrade plans and executes an upgrade.
func (t *Tool) Upgrade(ctx context.Context, target string) ([]executor.StepResult, error) {
	return t.planAndExecute(ctx, func(ctx context.Context) (plan.Plan, error) {
		return t.PlanUpgrade(ctx, target)
	})
}

// Downgrade plans and executes the reversal of the n most recent migrations.
func (t *Tool) Downgrade(ctx context.Context, n int) ([]executor.StepResult, error) {
	return t.planAndExecute(ctx, func(ctx context.Context) (plan.Plan, error) {
		return t.PlanDowngrade(ctx, n)
	})
}

// DowngradeTo plans and executes a downgrade to target.
func (t *Tool) DowngradeTo(ctx context.Context, target string, inclusive bool) ([]executor.StepResult, error) {
	return t.planAndExecute(ctx, func(ctx context.Context) (plan.Plan, error) {
		return t.PlanDowngradeTo(ctx, target, inclusive)
	})
}

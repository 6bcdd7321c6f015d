package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/sqlrun"
	"github.com/loykin/sqlrun/cmd/sqlrun/config"
)

var errNoConfig = errors.New("configuration not loaded")

// session bundles what a command needs for one invocation.
type session struct {
	tool   *sqlrun.Tool
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) close() {
	_ = s.tool.Close()
	s.cancel()
}

func openSession(cmd *cobra.Command, init bool) (*session, error) {
	cfg, ok := config.FromContext(cmd.Context())
	if !ok {
		return nil, errNoConfig
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(cmd.Context(), cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(cmd.Context())
	}
	tool, err := sqlrun.New(ctx, cfg.Migration(), sqlrun.Options{
		Init:     init,
		Progress: progressPrinter(cmd.OutOrStdout()),
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return &session{tool: tool, cfg: cfg, ctx: ctx, cancel: cancel}, nil
}

// progressPrinter writes one line per step as it completes.
func progressPrinter(w io.Writer) sqlrun.Progress {
	return func(ev sqlrun.Event) {
		if ev.Phase != sqlrun.PhaseDone || ev.Result == nil {
			return
		}
		r := ev.Result
		_, _ = fmt.Fprintf(w, "[%d/%d] %-8s %s (%s)\n", ev.Index+1, ev.Total, r.Status, r.Filename, r.Duration.Round(time.Millisecond))
	}
}

func printSummary(w io.Writer, verb string, results []sqlrun.StepResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "nothing to do")
		return
	}
	_, _ = fmt.Fprintf(w, "%s %d migration(s)\n", verb, len(results))
}

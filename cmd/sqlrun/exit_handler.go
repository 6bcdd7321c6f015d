package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/loykin/sqlrun"
	"github.com/loykin/sqlrun/internal/common"
)

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler implements ExitHandler for production use
type DefaultExitHandler struct {
	out io.Writer
}

// NewDefaultExitHandler creates a new default exit handler
func NewDefaultExitHandler() *DefaultExitHandler {
	return &DefaultExitHandler{out: os.Stderr}
}

// Exit terminates the program with the given exit code
func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError prints an error panel, logs the error and exits with code 1.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	writePanel(h.out, err)
	allKeyvals := append([]any{"error", err}, keyvals...)
	allKeyvals = append(allKeyvals, hints(err)...)
	common.GetLogger().WithComponent("main").Debug(msg, allKeyvals...)
	h.Exit(1)
}

func writePanel(w io.Writer, err error) {
	msg := common.MaskSensitiveData(err.Error())
	width := len(msg) + 4
	if width > 100 {
		width = 100
	}
	rule := strings.Repeat("─", width)
	_, _ = fmt.Fprintf(w, "╭%s╮\n", rule)
	_, _ = fmt.Fprintf(w, "  Error\n  %s\n", msg)
	_, _ = fmt.Fprintf(w, "╰%s╯\n", rule)
}

// hints adds structured fields for the error kinds users act on.
func hints(err error) []any {
	var mfe *sqlrun.MigrationFailedError
	switch {
	case errors.As(err, &mfe):
		return []any{"key", mfe.Key, "completed", len(mfe.Completed)}
	case errors.Is(err, sqlrun.ErrHistoryTableMissing):
		return []any{"hint", "run `sqlrun init` first"}
	}
	return nil
}

// Global exit handler (can be replaced for testing)
var exitHandler ExitHandler = NewDefaultExitHandler()

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/loykin/sqlrun"
	"github.com/loykin/sqlrun/cmd/sqlrun/commands"
)

type recordingExit struct {
	code int
	msgs []string
}

func (r *recordingExit) Exit(code int) { r.code = code }

func (r *recordingExit) LogFatalError(err error, msg string, _ ...any) {
	r.msgs = append(r.msgs, fmt.Sprintf("%s: %v", msg, err))
	r.Exit(1)
}

type cli struct {
	t    *testing.T
	url  string
	dir  string
	args []string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, k := range []string{"WRITER_DATABASE_URI", "MIGRATIONS_DIR", "DATABASE_ECHO", "SQLRUN_DATABASE_URL"} {
		t.Setenv(k, "")
	}
	root := t.TempDir()
	dir := filepath.Join(root, "migrations")
	require.NoError(t, os.Mkdir(dir, 0o755))
	return &cli{t: t, url: "sqlite:///" + filepath.Join(root, "app.db"), dir: dir}
}

func (c *cli) dbPath() string { return strings.TrimPrefix(c.url, "sqlite:///") }

// resetFlags clears values and Changed marks left by a previous Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	full := append([]string{}, args...)
	full = append(full, "--database-url", c.url, "--migrations-dir", c.dir, "--log-level", "error")
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

func (c *cli) write(name, body string) {
	c.t.Helper()
	require.NoError(c.t, os.WriteFile(filepath.Join(c.dir, name), []byte(body), 0o644))
}

func TestCLI_Lifecycle(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("", "upgrade")
	require.ErrorIs(t, err, sqlrun.ErrHistoryTableMissing)

	out, err := c.run("", "init")
	require.NoError(t, err)
	require.Contains(t, out, "first_migration_empty.sql")
	require.Contains(t, out, "history table migration_history ready")

	c.write("20990101_000000_000001__add_t.sql", "-- +migrate Up\nCREATE TABLE t (id INTEGER);\n-- +migrate Down\nDROP TABLE t;\n")
	c.write("20990102_000000_000001__add_u.sql", "-- +migrate Up\nCREATE TABLE u (id INTEGER);\n-- +migrate Down\nDROP TABLE u;\n")

	out, err = c.run("", "pending")
	require.NoError(t, err)
	require.Equal(t, "20990101_000000_000001__add_t.sql\n20990102_000000_000001__add_u.sql\n", out)

	out, err = c.run("", "upgrade", "--target", "20990101_000000_000001")
	require.NoError(t, err)
	require.Contains(t, out, "applied 1 migration(s)")

	out, err = c.run("", "current")
	require.NoError(t, err)
	require.Equal(t, "20990101_000000_000001\n", out)

	out, err = c.run("", "upgrade", "--target", "")
	require.NoError(t, err)
	require.Contains(t, out, "applied 1 migration(s)")

	out, err = c.run("", "list", "--limit", "0")
	require.NoError(t, err)
	require.Contains(t, out, "STATUS")
	require.Contains(t, out, "20990102_000000_000001__add_u.sql")
	require.NotContains(t, out, "pending")

	// declined confirmation leaves everything applied
	_, err = c.run("n\n", "downgrade", "-n", "1", "--yes=false")
	require.ErrorIs(t, err, commands.ErrAborted)
	out, err = c.run("", "current")
	require.NoError(t, err)
	require.Equal(t, "20990102_000000_000001\n", out)

	out, err = c.run("y\n", "downgrade", "-n", "1", "--yes=false")
	require.NoError(t, err)
	require.Contains(t, out, "20990102_000000_000001__add_u.sql")
	require.Contains(t, out, "reversed 1 migration(s)")

	out, err = c.run("", "downgrade", "--target", "20990101_000000_000001__add_t.sql", "-y")
	require.NoError(t, err)
	require.Contains(t, out, "reversed 1 migration(s)")

	out, err = c.run("", "pending")
	require.NoError(t, err)
	require.Equal(t, "20990101_000000_000001__add_t.sql\n20990102_000000_000001__add_u.sql\n", out)
}

func TestCLI_Generate(t *testing.T) {
	c := newCLI(t)
	out, err := c.run("", "generate", "Add", "users", "table")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	require.True(t, filepath.IsAbs(path))
	require.True(t, strings.HasSuffix(path, "__add_users_table.sql"), path)
	require.FileExists(t, path)
	require.NoFileExists(t, c.dbPath())
}

func TestCLI_GenerateWithoutDatabaseURL(t *testing.T) {
	for _, k := range []string{"WRITER_DATABASE_URI", "SQLRUN_DATABASE_URL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"generate", "seed", "--database-url", "", "--migrations-dir", dir, "--log-level", "error"})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	require.NoError(t, rootCmd.Execute())
	require.FileExists(t, strings.TrimSpace(out.String()))
}

func TestCLI_MissingDatabaseURL(t *testing.T) {
	for _, k := range []string{"WRITER_DATABASE_URI", "SQLRUN_DATABASE_URL"} {
		t.Setenv(k, "")
	}
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"current", "--database-url", ""})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	err := rootCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DatabaseURL")
}

func TestExitHandler_Replaceable(t *testing.T) {
	prev := exitHandler
	rec := &recordingExit{}
	exitHandler = rec
	defer func() { exitHandler = prev }()

	exitHandler.LogFatalError(errors.New("boom"), "command failed")
	require.Equal(t, 1, rec.code)
	require.Equal(t, []string{"command failed: boom"}, rec.msgs)
}

func TestWritePanel_MasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	writePanel(&buf, errors.New("connect postgres://app:hunter2@db/app: refused"))
	require.Contains(t, buf.String(), "Error")
	require.Contains(t, buf.String(), "***MASKED***")
	require.NotContains(t, buf.String(), "hunter2")
}

func TestHints(t *testing.T) {
	mfe := &sqlrun.MigrationFailedError{Key: "k2", Completed: []string{"k1"}, Err: errors.New("x")}
	require.Equal(t, []any{"key", "k2", "completed", 1}, hints(fmt.Errorf("wrap: %w", mfe)))
	require.Equal(t, []any{"hint", "run `sqlrun init` first"}, hints(sqlrun.ErrHistoryTableMissing))
	require.Nil(t, hints(errors.New("other")))
}

package script

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type execCall struct {
	query string
}

type recordingSession struct {
	calls []execCall
	fail  error
}

func (s *recordingSession) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	s.calls = append(s.calls, execCall{query: query})
	return nil, s.fail
}

func (s *recordingSession) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (s *recordingSession) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const sqlBody = `-- create things
-- +migrate Up
CREATE TABLE things (id INTEGER PRIMARY KEY);

-- +migrate Down
DROP TABLE things;
`

func TestListAll_SortsAndSkips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20240102_000000_000000__add_col.sql", sqlBody)
	writeFile(t, dir, "20240101_000000_000001__init.sql", sqlBody)
	writeFile(t, dir, "__init__.py", "")
	writeFile(t, dir, ".gitkeep", "")
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatal(err)
	}

	recs, err := NewRepository(Options{Dir: dir}).ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Key != "20240101_000000_000001" || recs[1].Key != "20240102_000000_000000" {
		t.Fatalf("unexpected order: %s, %s", recs[0].Key, recs[1].Key)
	}
	if recs[1].Description != "add_col" || recs[1].Filename != "20240102_000000_000000__add_col.sql" {
		t.Fatalf("unexpected record: %+v", recs[1])
	}
	if recs[0].Path != filepath.Join(dir, recs[0].Filename) {
		t.Fatalf("unexpected path %s", recs[0].Path)
	}
}

func isMalformed(err error) bool {
	var e *MalformedFilenameError
	return errors.As(err, &e)
}

func isInvalidModule(err error) bool {
	var e *InvalidMigrationModuleError
	return errors.As(err, &e)
}

func TestListAll_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(error) bool
	}{
		{
			name:  "malformed name",
			file:  "create_users.sql",
			check: isMalformed,
		},
		{
			name:    "unknown extension",
			file:    "20240101_000000_000001__init.py",
			content: "def upgrade(s): pass",
			check:   isInvalidModule,
		},
		{
			name:    "missing down",
			file:    "20240101_000000_000001__init.sql",
			content: "-- +migrate Up\nSELECT 1;\n",
			check:   func(err error) bool { return isInvalidModule(err) && errors.Is(err, errMissingDown) },
		},
		{
			name:    "missing up",
			file:    "20240101_000000_000001__init.sql",
			content: "-- +migrate Down\nSELECT 1;\n",
			check:   func(err error) bool { return errors.Is(err, errMissingUp) },
		},
		{
			name:    "yaml without down",
			file:    "20240101_000000_000001__init.yaml",
			content: "up:\n  - SELECT 1\n",
			check:   func(err error) bool { return errors.Is(err, errMissingDown) },
		},
		{
			name:    "broken yaml",
			file:    "20240101_000000_000001__init.yml",
			content: "up: [\n",
			check:   isInvalidModule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)
			_, err := NewRepository(Options{Dir: dir}).ListAll()
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestListAll_MissingDir(t *testing.T) {
	_, err := NewRepository(Options{Dir: filepath.Join(t.TempDir(), "nope")}).ListAll()
	if !errors.Is(err, ErrDirNotFound) {
		t.Fatalf("expected ErrDirNotFound, got %v", err)
	}
}

func TestSQLLoader_Sections(t *testing.T) {
	ops, err := SQLLoader{}.Load(Name{}, []byte(sqlBody))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := &recordingSession{}
	if err := ops.Forward(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if err := ops.Reverse(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(s.calls) != 2 {
		t.Fatalf("expected 2 exec calls, got %d", len(s.calls))
	}
	if !strings.Contains(s.calls[0].query, "CREATE TABLE things") || strings.Contains(s.calls[0].query, "DROP") {
		t.Fatalf("unexpected forward batch %q", s.calls[0].query)
	}
	if !strings.Contains(s.calls[1].query, "DROP TABLE things") {
		t.Fatalf("unexpected reverse batch %q", s.calls[1].query)
	}
}

func TestSQLLoader_EmptyBodiesAreNoops(t *testing.T) {
	ops, err := SQLLoader{}.Load(Name{}, SQLLoader{}.Template("init"))
	if err != nil {
		t.Fatalf("Load template: %v", err)
	}
	s := &recordingSession{fail: errors.New("must not be called")}
	if err := ops.Forward(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if err := ops.Reverse(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(s.calls) != 0 {
		t.Fatalf("expected no exec calls, got %d", len(s.calls))
	}
}

func TestSQLLoader_DuplicateMarker(t *testing.T) {
	_, err := SQLLoader{}.Load(Name{}, []byte("-- +migrate Up\n-- +migrate Down\n-- +migrate up\n"))
	if err == nil {
		t.Fatal("expected duplicate section error")
	}
}

func TestYAMLLoader_StatementsInOrder(t *testing.T) {
	content := `description: two tables
up:
  - CREATE TABLE a (id INTEGER)
  - CREATE TABLE b (id INTEGER)
down:
  - DROP TABLE b
  - DROP TABLE a
`
	ops, err := YAMLLoader{}.Load(Name{}, []byte(content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := &recordingSession{}
	if err := ops.Forward(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if len(s.calls) != 2 || s.calls[1].query != "CREATE TABLE b (id INTEGER)" {
		t.Fatalf("unexpected calls %+v", s.calls)
	}

	s.fail = errors.New("boom")
	err = ops.Reverse(context.Background(), s)
	if err == nil || !strings.Contains(err.Error(), "statement 1") {
		t.Fatalf("expected statement error, got %v", err)
	}
}

type constLoader struct{}

func (constLoader) Load(Name, []byte) (Operations, error) {
	return Operations{Forward: noop, Reverse: noop}, nil
}

func (constLoader) Template(string) []byte { return []byte("noop\n") }

func TestRegisterLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20240101_000000_000001__init.go", "package x")
	repo := NewRepository(Options{Dir: dir, Ext: "go"})
	if _, err := repo.ListAll(); err == nil {
		t.Fatal("expected error before loader registration")
	}
	repo.RegisterLoader(".go", constLoader{})
	recs, err := repo.ListAll()
	if err != nil || len(recs) != 1 {
		t.Fatalf("ListAll after register: %v (%d records)", err, len(recs))
	}
	p, err := repo.Generate("next")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasSuffix(p, "__next.go") {
		t.Fatalf("unexpected path %s", p)
	}
}

func frozenClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func TestGenerate_WritesTemplate(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 5, 6, 7, 8, 9, 10000, time.UTC)
	repo := NewRepository(Options{Dir: dir, Clock: frozenClock(at)})

	p, err := repo.Generate("Add Users!")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !filepath.IsAbs(p) {
		t.Fatalf("expected absolute path, got %s", p)
	}
	if filepath.Base(p) != "20240506_070809_000010__add_users.sql" {
		t.Fatalf("unexpected file name %s", filepath.Base(p))
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	for _, must := range []string{"-- +migrate Up", "-- +migrate Down"} {
		if !strings.Contains(string(b), must) {
			t.Fatalf("template missing %q:\n%s", must, b)
		}
	}
	recs, err := repo.ListAll()
	if err != nil || len(recs) != 1 {
		t.Fatalf("generated file should load: %v", err)
	}
}

func TestGenerate_YAMLTemplateLoads(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(Options{Dir: dir, Ext: "yaml"})
	p, err := repo.Generate("seed")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Ext(p) != ".yaml" {
		t.Fatalf("unexpected extension %s", p)
	}
	if _, err := repo.ListAll(); err != nil {
		t.Fatalf("ListAll: %v", err)
	}
}

func TestGenerate_MonotonicWithFrozenClock(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(Options{Dir: dir, Clock: frozenClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})

	seen := make(map[string]bool, 1000)
	prev := ""
	for i := 0; i < 1000; i++ {
		p, err := repo.Generate("step")
		if err != nil {
			t.Fatalf("Generate #%d: %v", i, err)
		}
		n, err := ParseFilename(filepath.Base(p))
		if err != nil {
			t.Fatalf("generated name does not parse: %v", err)
		}
		if seen[n.Key] {
			t.Fatalf("duplicate key %s", n.Key)
		}
		if n.Key <= prev {
			t.Fatalf("key %s not greater than %s", n.Key, prev)
		}
		seen[n.Key] = true
		prev = n.Key
	}
	recs, err := repo.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 1000 {
		t.Fatalf("expected 1000 records, got %d", len(recs))
	}
}

func TestGenerate_AfterNewestKeyOnDisk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20990101_000000_000000__future.sql", sqlBody)
	repo := NewRepository(Options{Dir: dir, Clock: frozenClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})

	p, err := repo.Generate("later")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Base(p) != "20990101_000000_000001__later.sql" {
		t.Fatalf("unexpected file %s", filepath.Base(p))
	}
}

func TestGenerate_MissingDir(t *testing.T) {
	repo := NewRepository(Options{Dir: filepath.Join(t.TempDir(), "missing")})
	if _, err := repo.Generate("x"); !errors.Is(err, ErrDirNotFound) {
		t.Fatalf("expected ErrDirNotFound, got %v", err)
	}
}

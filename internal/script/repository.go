package script

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loykin/sqlrun/internal/common"
	"github.com/loykin/sqlrun/internal/constants"
	"github.com/loykin/sqlrun/internal/util"
)

// Options configures a Repository.
type Options struct {
	// Dir is the migrations directory.
	Dir string
	// Ext is the extension used by Generate (sql or yaml). Defaults to sql.
	Ext string
	// Clock overrides the time source used for new sequence keys.
	Clock Clock
}

// Repository is the on-disk set of migration scripts.
type Repository struct {
	dir  string
	ext  string
	keys *keyGenerator

	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewRepository returns a repository over opts.Dir with the built-in SQL and
// YAML loaders registered.
func NewRepository(opts Options) *Repository {
	r := &Repository{
		dir:     opts.Dir,
		ext:     strings.TrimPrefix(util.TrimWithDefault(util.TrimAndLower(opts.Ext), constants.DefaultScriptExt), "."),
		keys:    newKeyGenerator(opts.Clock),
		loaders: map[string]Loader{},
	}
	r.RegisterLoader("sql", SQLLoader{})
	r.RegisterLoader("yaml", YAMLLoader{})
	r.RegisterLoader("yml", YAMLLoader{})
	return r
}

// Dir returns the migrations directory.
func (r *Repository) Dir() string { return r.dir }

// RegisterLoader binds a loader to a file extension (without the dot),
// replacing any previous binding.
func (r *Repository) RegisterLoader(ext string, l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[strings.TrimPrefix(util.TrimAndLower(ext), ".")] = l
}

func (r *Repository) loader(ext string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loaders[strings.ToLower(ext)]
	return l, ok
}

// Check verifies the migrations directory exists.
func (r *Repository) Check() error {
	st, err := os.Stat(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDirNotFound, r.dir)
		}
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDirNotFound, r.dir)
	}
	return nil
}

// names parses every candidate file name in the directory, sorted by key.
func (r *Repository) names() ([]Name, error) {
	if err := r.Check(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	out := make([]Name, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || skipFile(e.Name()) {
			continue
		}
		n, err := ParseFilename(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ListAll loads every migration in the directory, sorted by sequence key.
func (r *Repository) ListAll() ([]Record, error) {
	logger := common.GetLogger().WithComponent("script")
	names, err := r.names()
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(names))
	for _, n := range names {
		rec, err := r.load(n)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	logger.Debug("discovered migrations", "dir", r.dir, "count", len(records))
	return records, nil
}

func (r *Repository) load(n Name) (Record, error) {
	filename := n.Filename()
	l, ok := r.loader(n.Ext)
	if !ok {
		return Record{}, &InvalidMigrationModuleError{Filename: filename, Reason: fmt.Sprintf("no loader for extension %q", n.Ext)}
	}
	path := filepath.Join(r.dir, filename)
	content, err := os.ReadFile(path)
	if err != nil {
		return Record{}, &InvalidMigrationModuleError{Filename: filename, Reason: "read failed", Err: err}
	}
	ops, err := l.Load(n, content)
	if err != nil {
		return Record{}, &InvalidMigrationModuleError{Filename: filename, Reason: "load failed", Err: err}
	}
	if ops.Forward == nil || ops.Reverse == nil {
		return Record{}, &InvalidMigrationModuleError{Filename: filename, Reason: "forward and reverse operations are both required"}
	}
	return Record{
		Key:         n.Key,
		Description: n.Description,
		Filename:    filename,
		Path:        path,
		Forward:     ops.Forward,
		Reverse:     ops.Reverse,
	}, nil
}

// Generate writes a new script with empty forward and reverse bodies and
// returns its absolute path. The new key is strictly greater than any key on
// disk and any key previously generated by this repository.
func (r *Repository) Generate(description string) (string, error) {
	l, ok := r.loader(r.ext)
	if !ok {
		return "", fmt.Errorf("no loader for extension %q", r.ext)
	}
	names, err := r.names()
	if err != nil {
		return "", err
	}
	var floor time.Time
	if len(names) > 0 {
		if floor, err = KeyTime(names[len(names)-1].Key); err != nil {
			return "", err
		}
	}

	n := Name{
		Key:         FormatKey(r.keys.next(floor)),
		Description: SanitizeDescription(description),
		Ext:         r.ext,
	}
	path, err := filepath.Abs(filepath.Join(r.dir, n.Filename()))
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, constants.ScriptFilePermission)
	if err != nil {
		return "", fmt.Errorf("create migration file: %w", err)
	}
	if _, err := f.Write(l.Template(n.Description)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write migration file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	common.GetLogger().WithComponent("script").WithKey(n.Key).Info("generated migration", "path", path)
	return path, nil
}

package sqlite

import (
	"fmt"
	"strings"

	"github.com/loykin/sqlrun/internal/constants"
)

const (
	memoryPath       = ":memory:"
	foreignKeysParam = "_pragma=foreign_keys(1)"
)

type Config struct {
	Path string `mapstructure:"path"`
}

// DSN renders the modernc.org/sqlite data source name for the configured
// path. An empty path selects an in-memory database.
func (c *Config) DSN() string {
	path := strings.TrimSpace(c.Path)
	if path == "" {
		path = memoryPath
	}
	if strings.HasPrefix(path, "file:") {
		return path
	}
	query := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, query = path[:i], path[i+1:]
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&%s", path, constants.SQLiteBusyTimeoutMS, foreignKeysParam)
	if query != "" {
		dsn += "&" + query
	}
	return dsn
}

// InMemory reports whether the configured path selects an in-memory database.
func (c *Config) InMemory() bool {
	path := strings.TrimSpace(c.Path)
	switch {
	case path == "", path == memoryPath, strings.HasPrefix(path, memoryPath+"?"):
		return true
	case strings.HasPrefix(path, "file::memory:"):
		return true
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return strings.Contains(path[i+1:], "mode=memory")
	}
	return false
}

// FromURL maps SQLAlchemy-style URLs onto a Config:
//
//	sqlite://              in-memory
//	sqlite:///rel/app.db   relative path
//	sqlite:////abs/app.db  absolute path
//	sqlite:app.db          relative path
func FromURL(url string) Config {
	rest := url
	if i := strings.Index(rest, ":"); i >= 0 {
		rest = rest[i+1:]
	}
	if strings.HasPrefix(rest, "//") {
		rest = strings.TrimPrefix(rest[2:], "/")
	}
	return Config{Path: rest}
}

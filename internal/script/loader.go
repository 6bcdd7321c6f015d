package script

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loykin/sqlrun/internal/session"
)

// Operations is what a Loader extracts from one script file.
type Operations struct {
	Forward Operation
	Reverse Operation
}

// Loader turns the content of one script file into its operations and renders
// the template written by Generate. Loaders are selected by file extension.
type Loader interface {
	Load(name Name, content []byte) (Operations, error)
	Template(description string) []byte
}

var (
	errMissingUp   = errors.New("missing forward section")
	errMissingDown = errors.New("missing reverse section")
)

var markerRegex = regexp.MustCompile(`(?i)^--\s*\+migrate\s+(up|down)\b`)

// SQLLoader reads plain SQL files split by "-- +migrate Up" and
// "-- +migrate Down" marker lines. Each section runs as one batch.
type SQLLoader struct{}

func (SQLLoader) Load(_ Name, content []byte) (Operations, error) {
	var (
		up, down       strings.Builder
		hasUp, hasDown bool
		cur            *strings.Builder
	)
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if m := markerRegex.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			switch strings.ToLower(m[1]) {
			case "up":
				if hasUp {
					return Operations{}, errors.New("duplicate forward section")
				}
				hasUp, cur = true, &up
			case "down":
				if hasDown {
					return Operations{}, errors.New("duplicate reverse section")
				}
				hasDown, cur = true, &down
			}
			continue
		}
		if cur != nil {
			cur.WriteString(line)
			cur.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return Operations{}, err
	}
	if !hasUp {
		return Operations{}, errMissingUp
	}
	if !hasDown {
		return Operations{}, errMissingDown
	}
	return Operations{Forward: execBatch(up.String()), Reverse: execBatch(down.String())}, nil
}

func (SQLLoader) Template(description string) []byte {
	return []byte(fmt.Sprintf("-- %s\n\n-- +migrate Up\n\n-- +migrate Down\n", description))
}

// YAMLLoader reads files of the form
//
//	description: add users table
//	up:
//	  - CREATE TABLE users (id INTEGER PRIMARY KEY)
//	down:
//	  - DROP TABLE users
//
// Statements run in order on the step session.
type YAMLLoader struct{}

type yamlScript struct {
	Description string    `yaml:"description"`
	Up          *[]string `yaml:"up"`
	Down        *[]string `yaml:"down"`
}

func (YAMLLoader) Load(_ Name, content []byte) (Operations, error) {
	var doc yamlScript
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return Operations{}, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Up == nil {
		return Operations{}, errMissingUp
	}
	if doc.Down == nil {
		return Operations{}, errMissingDown
	}
	return Operations{Forward: execEach(*doc.Up), Reverse: execEach(*doc.Down)}, nil
}

func (YAMLLoader) Template(description string) []byte {
	out, _ := yaml.Marshal(map[string]any{
		"description": description,
		"up":          []string{},
		"down":        []string{},
	})
	return out
}

func execBatch(body string) Operation {
	if isBlankSQL(body) {
		return noop
	}
	return func(ctx context.Context, s session.Session) error {
		_, err := s.ExecContext(ctx, body)
		return err
	}
}

func execEach(stmts []string) Operation {
	var live []string
	for _, st := range stmts {
		if !isBlankSQL(st) {
			live = append(live, st)
		}
	}
	if len(live) == 0 {
		return noop
	}
	return func(ctx context.Context, s session.Session) error {
		for i, st := range live {
			if _, err := s.ExecContext(ctx, st); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	}
}

// isBlankSQL reports whether body holds nothing but whitespace and line
// comments.
func isBlankSQL(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}
	return true
}

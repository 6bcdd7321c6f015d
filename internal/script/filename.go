package script

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/sqlrun/internal/constants"
	"github.com/loykin/sqlrun/internal/util"
)

var filenameRegex = regexp.MustCompile(`^(\d{8})_(\d{6})_(\d{6})__([a-z0-9_]+)\.([A-Za-z0-9]+)$`)

var nonDescriptionChars = regexp.MustCompile(`[^a-z0-9]+`)

// Name is the parsed form of a migration filename.
type Name struct {
	Key         string
	Description string
	Ext         string
	// File is the name as found on disk; empty for names not yet written.
	File string
}

// Filename returns the on-disk name, or the canonical rendering for a new file.
func (n Name) Filename() string {
	if n.File != "" {
		return n.File
	}
	return n.Key + constants.DescriptionSeparator + n.Description + "." + n.Ext
}

// ParseFilename splits a migration filename into its sequence key,
// description and extension. Any deviation from the format, including an
// impossible calendar date or time, is a *MalformedFilenameError.
func ParseFilename(name string) (Name, error) {
	base := filepath.Base(name)
	m := filenameRegex.FindStringSubmatch(base)
	if m == nil {
		return Name{}, &MalformedFilenameError{Filename: base, Reason: "expected YYYYMMDD_HHMMSS_ffffff__description.ext"}
	}
	if _, err := time.Parse(constants.SequenceKeyTimeLayout, m[1]+"_"+m[2]); err != nil {
		return Name{}, &MalformedFilenameError{Filename: base, Reason: "invalid timestamp"}
	}
	return Name{
		Key:         m[1] + "_" + m[2] + "_" + m[3],
		Description: m[4],
		Ext:         strings.ToLower(m[5]),
		File:        base,
	}, nil
}

// KeyTime returns the creation instant encoded in a sequence key (UTC).
func KeyTime(key string) (time.Time, error) {
	if len(key) != constants.SequenceKeyLength {
		return time.Time{}, fmt.Errorf("invalid sequence key %q", key)
	}
	base, micro := key[:len(constants.SequenceKeyTimeLayout)], key[len(constants.SequenceKeyTimeLayout)+1:]
	t, err := time.Parse(constants.SequenceKeyTimeLayout, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sequence key %q: %w", key, err)
	}
	us, err := strconv.Atoi(micro)
	if err != nil || key[len(constants.SequenceKeyTimeLayout)] != '_' {
		return time.Time{}, fmt.Errorf("invalid sequence key %q", key)
	}
	return t.Add(time.Duration(us) * time.Microsecond), nil
}

// FormatKey renders t as a sequence key at microsecond resolution.
func FormatKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s_%06d", t.Format(constants.SequenceKeyTimeLayout), t.Nanosecond()/int(time.Microsecond))
}

// SanitizeDescription lowercases s and collapses every run of characters
// outside [a-z0-9] into a single underscore. An empty result becomes
// "migration".
func SanitizeDescription(s string) string {
	out := nonDescriptionChars.ReplaceAllString(util.TrimAndLower(s), "_")
	out = strings.Trim(out, "_")
	if len(out) > constants.MaxDescriptionLength {
		out = strings.TrimRight(out[:constants.MaxDescriptionLength], "_")
	}
	if out == "" {
		return constants.FallbackDescription
	}
	return out
}

// skipFile reports whether discovery ignores the entry: hidden files and
// package markers such as __init__.py.
func skipFile(name string) bool {
	return util.HasAnyPrefix(name, constants.HiddenFilenamePrefix, constants.IgnoredFilenamePrefix)
}

// Package env builds the run-scoped key/value context that drives
// conditional inclusion and inline substitution in source files.
package env

import (
	"path/filepath"
	"strings"

	"github.com/arthur-debert/homesync/pkg/errors"
	"github.com/arthur-debert/homesync/pkg/filesystem"
	"github.com/arthur-debert/homesync/pkg/logging"
)

// DefaultName is the environment name used when no environment file is
// selected.
const DefaultName = "default"

// Environment is the immutable key/value context for one run. It is built
// once and read-only afterward.
type Environment map[string]string

// Lookup returns the value for key and whether it is defined.
func (e Environment) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// Name returns the environment's name (the value of the "env" key).
func (e Environment) Name() string {
	return e["env"]
}

// New creates an environment seeded with the always-present keys:
// true, HOME and env.
func New(home, name string) Environment {
	return Environment{
		"true": "1",
		"HOME": home,
		"env":  name,
	}
}

// Load builds the environment for a run. With an empty path the
// environment name is "default" and only the seed keys are present.
// Otherwise the file is read as one "key" or "key=value" entry per line;
// the file's basename becomes both a truthy key and the value of "env".
// Malformed lines are skipped silently.
func Load(fsys filesystem.FS, path, home string) (Environment, error) {
	if path == "" {
		return New(home, DefaultName), nil
	}

	logger := logging.GetLogger("env")

	content, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "reading environment file %s", path)
	}

	name := filepath.Base(path)
	environ := New(home, name)
	environ[name] = "1"

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !IsWord(key) {
			logger.Debug().Str("line", line).Msg("Skipping malformed environment line")
			continue
		}
		if !found {
			value = "1"
		} else {
			value = strings.TrimSpace(value)
		}
		environ[key] = value
	}

	logger.Debug().Str("name", name).Int("keys", len(environ)).Msg("Environment loaded")
	return environ, nil
}

// IsWord reports whether s is a valid key token: letters, digits and
// underscores, not starting with a digit. Inline references in source
// files use the same syntax.
func IsWord(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Package config loads run options: built-in defaults, then an optional
// .homesync.toml at the source root, then flag overrides applied by the
// CLI layer.
package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/homesync/pkg/directive"
	"github.com/arthur-debert/homesync/pkg/errors"
)

// FileName is the optional per-tree configuration file, looked up at the
// source root.
const FileName = ".homesync.toml"

// Options is the configuration for one run.
type Options struct {
	// Source is the root of the managed source tree.
	Source string `koanf:"source" toml:"source"`
	// Dest is the destination tree root; empty means the home directory.
	Dest string `koanf:"dest" toml:"dest"`
	// EnvFile selects the environment file; empty means the default
	// environment.
	EnvFile string `koanf:"env_file" toml:"env_file"`
	// DryRun renders diffs instead of mutating the destination.
	DryRun bool `koanf:"dry_run" toml:"dry_run"`
	// Backup hard-links replaced destinations to timestamped backups.
	Backup bool `koanf:"backup" toml:"backup"`
	// Quick skips content comparison when source and destination
	// modification times match. Opt-in; trades soundness for speed.
	Quick bool `koanf:"quick" toml:"quick"`
	// Visibility is the default visibility ("private" or "public") for
	// files without a vis directive.
	Visibility string `koanf:"visibility" toml:"visibility"`
	// DirMode is the octal permission for created directories.
	DirMode string `koanf:"dir_mode" toml:"dir_mode"`
	// CrontabRemoveCommand, when set, clears the crontab instead of
	// installing empty content.
	CrontabRemoveCommand string `koanf:"crontab_remove_command" toml:"crontab_remove_command"`
}

// Default returns the built-in option values.
func Default() Options {
	return Options{
		Source:     ".",
		Visibility: "private",
		DirMode:    "0700",
	}
}

// Load builds Options from defaults plus the source root's config file,
// if one exists.
func Load(sourceRoot string) (Options, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultMap(), "."), nil); err != nil {
		return Options{}, errors.Wrap(err, errors.ErrConfigLoad, "loading defaults")
	}

	path := filepath.Join(sourceRoot, FileName)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Options{}, errors.Wrapf(err, errors.ErrConfigLoad, "loading %s", path)
		}
	}

	var opts Options
	if err := k.Unmarshal("", &opts); err != nil {
		return Options{}, errors.Wrap(err, errors.ErrConfigLoad, "unmarshaling options")
	}
	return opts, nil
}

// Merge applies command-line overrides on top of loaded options.
// changed reports whether the named flag was set explicitly; only those
// flags win over the config file. Source always comes from flags, since
// the config file itself was found through it.
func Merge(opts, flags Options, changed func(name string) bool) Options {
	opts.Source = flags.Source
	if changed("dest") {
		opts.Dest = flags.Dest
	}
	if changed("env") {
		opts.EnvFile = flags.EnvFile
	}
	if changed("dry-run") {
		opts.DryRun = flags.DryRun
	}
	if changed("backup") {
		opts.Backup = flags.Backup
	}
	if changed("quick") {
		opts.Quick = flags.Quick
	}
	if changed("public") {
		opts.Visibility = "public"
	}
	return opts
}

// DefaultVisibility parses the configured default visibility.
func (o Options) DefaultVisibility() (directive.Visibility, error) {
	return directive.ParseVisibility(o.Visibility)
}

// DirPerm parses the configured directory mode.
func (o Options) DirPerm() (fs.FileMode, error) {
	mode, err := strconv.ParseUint(o.DirMode, 8, 32)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrConfigLoad, "invalid dir_mode %q", o.DirMode)
	}
	return fs.FileMode(mode), nil
}

// GenerateDefault renders the built-in defaults as a TOML document, for
// the genconfig command.
func GenerateDefault() ([]byte, error) {
	out, err := gotoml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "marshaling defaults")
	}
	return out, nil
}

func defaultMap() map[string]interface{} {
	d := Default()
	return map[string]interface{}{
		"source":     d.Source,
		"dest":       d.Dest,
		"env_file":   d.EnvFile,
		"dry_run":    d.DryRun,
		"backup":     d.Backup,
		"quick":      d.Quick,
		"visibility": d.Visibility,
		"dir_mode":   d.DirMode,
	}
}

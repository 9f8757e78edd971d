package sync

import (
	stderrors "errors"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	blake2b "github.com/minio/blake2b-simd"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/homesync/pkg/config"
	"github.com/arthur-debert/homesync/pkg/crontab"
	"github.com/arthur-debert/homesync/pkg/diff"
	"github.com/arthur-debert/homesync/pkg/directive"
	"github.com/arthur-debert/homesync/pkg/env"
	"github.com/arthur-debert/homesync/pkg/errors"
	"github.com/arthur-debert/homesync/pkg/filesystem"
	"github.com/arthur-debert/homesync/pkg/logging"
)

// DirDirectiveFile is the reserved per-directory control file. When
// present it is directive-processed with the empty result allowed, and
// its action governs the whole directory.
const DirDirectiveFile = ".homesync"

// CrontabFile is the reserved top-level filename routed to the crontab
// sub-flow instead of a regular file copy.
const CrontabFile = "crontab"

// Engine reconciles the source tree against the destination tree with a
// single-threaded depth-first walk. An Engine instance owns one run's
// state; concurrent runs against the same destination tree are the
// caller's responsibility to avoid.
type Engine struct {
	fs         filesystem.FS
	opts       config.Options
	environ    env.Environment
	applier    Applier
	ct         crontab.Crontab
	defaultVis directive.Visibility
	dirPerm    fs.FileMode
	source     string
	dest       string
	home       string
	ensured    map[string]bool
	log        zerolog.Logger
}

// New creates an Engine for one run. out receives dry-run diffs and is
// unused in apply mode.
func New(fsys filesystem.FS, opts config.Options, environ env.Environment, ct crontab.Crontab, out io.Writer) (*Engine, error) {
	defaultVis, err := opts.DefaultVisibility()
	if err != nil {
		return nil, err
	}
	dirPerm, err := opts.DirPerm()
	if err != nil {
		return nil, err
	}

	home := environ["HOME"]
	dest := opts.Dest
	if dest == "" {
		dest = home
	}

	var applier Applier
	if opts.DryRun {
		applier = NewDiffingApplier(fsys, diff.NewPrinter(out))
	} else {
		applier = NewMutatingApplier(fsys, ct, opts.Backup)
	}

	return &Engine{
		fs:         fsys,
		opts:       opts,
		environ:    environ,
		applier:    applier,
		ct:         ct,
		defaultVis: defaultVis,
		dirPerm:    dirPerm,
		source:     opts.Source,
		dest:       dest,
		home:       home,
		log:        logging.GetLogger("sync"),
	}, nil
}

// Run walks the source tree and reconciles every entry. The walk is
// depth-first and deterministic; each destination mutation is
// individually atomic but the run as a whole is not transactional.
func (e *Engine) Run() error {
	e.ensured = make(map[string]bool)
	e.log.Info().
		Str("source", e.source).
		Str("dest", e.dest).
		Str("env", e.environ.Name()).
		Bool("dryRun", e.opts.DryRun).
		Msg("Starting sync")
	return e.sync(e.source, e.dest, 0)
}

func (e *Engine) sync(src, dest string, depth int) error {
	info, err := e.fs.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "reading %s", src)
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return e.syncSymlink(src, dest)
	case info.IsDir():
		return e.syncDir(src, dest, depth)
	case info.Mode().IsRegular():
		return e.syncFile(src, dest, info)
	default:
		e.log.Warn().Str("path", src).Msg("Skipping special file")
		return nil
	}
}

// syncSymlink replicates a source symlink with its literal, unresolved
// target.
func (e *Engine) syncSymlink(src, dest string) error {
	target, err := e.fs.Readlink(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "reading symlink %s", src)
	}
	return e.applySymlink(dest, target)
}

func (e *Engine) syncDir(src, dest string, depth int) error {
	ctlPath := filepath.Join(src, DirDirectiveFile)
	content, err := e.fs.ReadFile(ctlPath)
	switch {
	case err != nil && stderrors.Is(err, fs.ErrNotExist):
		// no control file is the normal case
	case err != nil:
		return errors.Wrapf(err, errors.ErrFileAccess, "reading %s", ctlPath)
	default:
		action, err := directive.Process(content, e.environ, e.defaultVis, true)
		if err != nil {
			return withPath(err, ctlPath)
		}
		switch action.Kind {
		case directive.KindIgnore:
			e.log.Debug().Str("path", src).Msg("Directory ignored")
			return nil
		case directive.KindDelete:
			return e.removeDest(dest)
		case directive.KindSymlink:
			return errors.Newf(errors.ErrBadDirective, "link directive not valid in %s", ctlPath)
		}
		// KindData means continue as normal
	}

	entries, err := e.fs.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "listing %s", src)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		destName := name
		if depth == 0 {
			if isAllUpper(name) {
				e.log.Trace().Str("name", name).Msg("Skipping reserved top-level entry")
				continue
			}
			if name == CrontabFile && !entry.IsDir() {
				if err := e.syncCrontab(filepath.Join(src, name)); err != nil {
					return err
				}
				continue
			}
			destName = "." + name
		}
		if err := e.sync(filepath.Join(src, name), filepath.Join(dest, destName), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) syncFile(src, dest string, info fs.FileInfo) error {
	content, err := e.fs.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "reading %s", src)
	}

	var action directive.Action
	if directive.IsBinary(content) {
		action = directive.Data(content, e.defaultVis)
	} else {
		action, err = directive.Process(content, e.environ, e.defaultVis, false)
		if err != nil {
			return withPath(err, src)
		}
	}

	switch action.Kind {
	case directive.KindIgnore:
		e.log.Debug().Str("path", src).Msg("Ignored")
		return nil
	case directive.KindDelete:
		return e.removeDest(dest)
	case directive.KindSymlink:
		return e.applySymlink(dest, e.resolveTarget(action.Target))
	default:
		return e.applyData(src, dest, action, info)
	}
}

// resolveTarget expands a leading ~/ in a link directive target to the
// home directory.
func (e *Engine) resolveTarget(target string) string {
	if strings.HasPrefix(target, "~/") {
		return filepath.Join(e.home, target[2:])
	}
	return target
}

func (e *Engine) applySymlink(dest, target string) error {
	if info, err := e.fs.Lstat(dest); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		if current, err := e.fs.Readlink(dest); err == nil && current == target {
			return nil
		}
	}
	if err := e.ensureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	e.log.Info().Str("path", dest).Str("target", target).Msg("Linking")
	return e.applier.WriteSymlink(dest, target)
}

func (e *Engine) applyData(src, dest string, action directive.Action, srcInfo fs.FileInfo) error {
	mode := action.Visibility.Mode(srcInfo.Mode()&0o100 != 0)
	mtime := srcInfo.ModTime()

	destInfo, err := e.fs.Lstat(dest)
	destRegular := err == nil && destInfo.Mode().IsRegular()

	if destRegular && e.opts.Quick && destInfo.ModTime().Equal(mtime) {
		e.log.Trace().Str("path", dest).Msg("Quick check: mtimes match, skipping")
		return nil
	}

	if destRegular {
		old, err := e.fs.ReadFile(dest)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "reading %s", dest)
		}
		if blake2b.Sum256(old) == blake2b.Sum256(action.Content) {
			return e.applier.FixMeta(dest, mode, mtime)
		}
	}

	if err := e.ensureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	e.log.Info().Str("path", dest).Str("visibility", action.Visibility.String()).Msg("Writing")
	return e.applier.WriteData(dest, src, action.Content, mode, mtime)
}

func (e *Engine) removeDest(dest string) error {
	if _, err := e.fs.Lstat(dest); err != nil {
		// already absent
		return nil
	}
	e.log.Info().Str("path", dest).Msg("Removing")
	return e.applier.Remove(dest)
}

// ensureDir confirms every ancestor exists, creating missing ones with
// the configured directory mode. The confirmation is memoized for the
// run; an ancestor that exists but is not a directory is fatal.
func (e *Engine) ensureDir(path string) error {
	if e.ensured[path] {
		return nil
	}
	info, err := e.fs.Lstat(path)
	switch {
	case err == nil && info.IsDir():
	case err == nil:
		return errors.Newf(errors.ErrNotADirectory, "%s exists and is not a directory", path)
	default:
		parent := filepath.Dir(path)
		if parent != path {
			if err := e.ensureDir(parent); err != nil {
				return err
			}
		}
		if err := e.applier.EnsureDir(path, e.dirPerm); err != nil {
			return err
		}
	}
	e.ensured[path] = true
	return nil
}

// isAllUpper reports whether name has at least one uppercase letter and
// no lowercase ones. Such top-level names are tooling, not dotfiles.
func isAllUpper(name string) bool {
	hasUpper := false
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

// withPath attaches the offending source path to a directive error.
func withPath(err error, path string) error {
	var herr *errors.HomesyncError
	if stderrors.As(err, &herr) {
		return herr.WithDetail("path", path)
	}
	return err
}

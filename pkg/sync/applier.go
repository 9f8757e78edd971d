package sync

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/homesync/pkg/crontab"
	"github.com/arthur-debert/homesync/pkg/diff"
	"github.com/arthur-debert/homesync/pkg/errors"
	"github.com/arthur-debert/homesync/pkg/filesystem"
	"github.com/arthur-debert/homesync/pkg/logging"
)

// Applier executes the engine's per-path decisions. Two implementations
// exist: MutatingApplier performs the filesystem changes, DiffingApplier
// renders them as diffs. One is selected per run.
type Applier interface {
	// WriteData replaces dest with content, carrying the source's
	// modification time and the resolved permission mode. src is the
	// source path, used for diff labels.
	WriteData(dest, src string, content []byte, mode fs.FileMode, mtime time.Time) error
	// WriteSymlink replaces dest with a symlink to target.
	WriteSymlink(dest, target string) error
	// Remove deletes dest (recursively for directories).
	Remove(dest string) error
	// FixMeta reconciles permissions and modification time only.
	FixMeta(dest string, mode fs.FileMode, mtime time.Time) error
	// EnsureDir creates a missing ancestor directory.
	EnsureDir(path string, mode fs.FileMode) error
	// InstallCrontab replaces the installed crontab text; empty text
	// clears it.
	InstallCrontab(current, text string) error
}

// MutatingApplier performs real filesystem mutations. Every content and
// symlink write goes through a same-directory temp path and an atomic
// rename.
type MutatingApplier struct {
	fs     filesystem.FS
	ct     crontab.Crontab
	backup bool
	now    func() time.Time
	log    zerolog.Logger
}

// NewMutatingApplier creates the apply-mode Applier.
func NewMutatingApplier(fsys filesystem.FS, ct crontab.Crontab, backup bool) *MutatingApplier {
	return &MutatingApplier{
		fs:     fsys,
		ct:     ct,
		backup: backup,
		now:    time.Now,
		log:    logging.GetLogger("sync"),
	}
}

// tempPath returns a temp name in dest's own directory, so the final
// rename is atomic.
func tempPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".homesync.tmp")
}

func (m *MutatingApplier) backupPath(dest string) string {
	return dest + "." + m.now().Format("20060102150405") + ".bak"
}

func (m *MutatingApplier) WriteData(dest, src string, content []byte, mode fs.FileMode, mtime time.Time) error {
	tmp := tempPath(dest)
	if err := m.fs.WriteFile(tmp, content, 0600); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "writing %s", tmp)
	}
	if err := m.fs.Chtimes(tmp, mtime, mtime); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "setting times on %s", tmp)
	}
	if err := m.fs.Chmod(tmp, mode); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "setting mode on %s", tmp)
	}
	if m.backup {
		// any existing non-directory destination is kept; a directory
		// here would make the rename below fail anyway
		if info, err := m.fs.Lstat(dest); err == nil && !info.IsDir() {
			bak := m.backupPath(dest)
			if err := m.fs.Link(dest, bak); err != nil {
				return errors.Wrapf(err, errors.ErrFileWrite, "backing up %s", dest)
			}
			m.log.Info().Str("path", dest).Str("backup", bak).Msg("Backed up")
		}
	}
	if err := m.fs.Rename(tmp, dest); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "renaming %s into place", tmp)
	}
	return nil
}

func (m *MutatingApplier) WriteSymlink(dest, target string) error {
	tmp := tempPath(dest)
	// a stale temp link from an aborted run would make Symlink fail
	_ = m.fs.Remove(tmp)
	if err := m.fs.Symlink(target, tmp); err != nil {
		return errors.Wrapf(err, errors.ErrSymlinkCreate, "creating symlink %s", tmp)
	}
	if err := m.fs.Rename(tmp, dest); err != nil {
		return errors.Wrapf(err, errors.ErrSymlinkCreate, "renaming %s into place", tmp)
	}
	return nil
}

func (m *MutatingApplier) Remove(dest string) error {
	info, err := m.fs.Lstat(dest)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		if err := m.fs.RemoveAll(dest); err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "removing directory %s", dest)
		}
		return nil
	}
	if err := m.fs.Remove(dest); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "removing %s", dest)
	}
	return nil
}

func (m *MutatingApplier) FixMeta(dest string, mode fs.FileMode, mtime time.Time) error {
	if err := m.fs.Chmod(dest, mode); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "setting mode on %s", dest)
	}
	if err := m.fs.Chtimes(dest, mtime, mtime); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "setting times on %s", dest)
	}
	return nil
}

func (m *MutatingApplier) EnsureDir(path string, mode fs.FileMode) error {
	if err := m.fs.MkdirAll(path, mode); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "creating %s", path)
	}
	return nil
}

func (m *MutatingApplier) InstallCrontab(current, text string) error {
	if m.backup && current != "" {
		bak := filepath.Join(xdg.StateHome, "homesync", "crontab."+m.now().Format("20060102150405")+".bak")
		if err := m.fs.MkdirAll(filepath.Dir(bak), 0700); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "creating %s", filepath.Dir(bak))
		}
		if err := m.fs.WriteFile(bak, []byte(current), 0600); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "writing crontab backup %s", bak)
		}
	}
	if text == "" {
		return m.ct.Remove()
	}
	return m.ct.Write(text)
}

// DiffingApplier renders every decision as a diff and never touches the
// destination tree. Dry runs are strictly safer: none of the mutation
// errors apply mode can raise are reachable here.
type DiffingApplier struct {
	fs      filesystem.FS
	printer *diff.Printer
}

// NewDiffingApplier creates the dry-run Applier.
func NewDiffingApplier(fsys filesystem.FS, printer *diff.Printer) *DiffingApplier {
	return &DiffingApplier{fs: fsys, printer: printer}
}

func (d *DiffingApplier) WriteData(dest, src string, content []byte, mode fs.FileMode, mtime time.Time) error {
	var old []byte
	if info, err := d.fs.Lstat(dest); err == nil && info.Mode().IsRegular() {
		var rerr error
		old, rerr = d.fs.ReadFile(dest)
		if rerr != nil {
			return errors.Wrapf(rerr, errors.ErrFileAccess, "reading %s", dest)
		}
	}
	return d.printer.File(dest, src, old, content)
}

func (d *DiffingApplier) WriteSymlink(dest, target string) error {
	d.printer.Symlink(dest, target)
	return nil
}

func (d *DiffingApplier) Remove(dest string) error {
	info, err := d.fs.Lstat(dest)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		d.printer.RemovedDir(dest)
		return nil
	}
	var old []byte
	if info.Mode().IsRegular() {
		old, _ = d.fs.ReadFile(dest)
	}
	return d.printer.Removed(dest, old)
}

func (d *DiffingApplier) FixMeta(dest string, mode fs.FileMode, mtime time.Time) error {
	return nil
}

func (d *DiffingApplier) EnsureDir(path string, mode fs.FileMode) error {
	return nil
}

func (d *DiffingApplier) InstallCrontab(current, text string) error {
	return d.printer.Crontab(current, text)
}

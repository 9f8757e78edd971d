package sync

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/homesync/pkg/config"
	"github.com/arthur-debert/homesync/pkg/crontab"
	"github.com/arthur-debert/homesync/pkg/env"
	"github.com/arthur-debert/homesync/pkg/errors"
	"github.com/arthur-debert/homesync/pkg/filesystem"
)

type fakeCrontab struct {
	text    string
	writes  []string
	removed int
}

func (f *fakeCrontab) Read() (string, error) { return f.text, nil }

func (f *fakeCrontab) Write(text string) error {
	f.text = text
	f.writes = append(f.writes, text)
	return nil
}

func (f *fakeCrontab) Remove() error {
	f.text = ""
	f.removed++
	return nil
}

func testOpts(src, dest string) config.Options {
	opts := config.Default()
	opts.Source = src
	opts.Dest = dest
	return opts
}

// run builds an engine with HOME set to the destination root and runs it.
func run(t *testing.T, opts config.Options, ct crontab.Crontab, out io.Writer) error {
	t.Helper()
	if ct == nil {
		ct = &fakeCrontab{}
	}
	if out == nil {
		out = io.Discard
	}
	environ := env.New(opts.Dest, env.DefaultName)
	engine, err := New(filesystem.NewOS(), opts, environ, ct, out)
	require.NoError(t, err)
	return engine.Run()
}

func mustRun(t *testing.T, opts config.Options, ct crontab.Crontab) {
	t.Helper()
	require.NoError(t, run(t, opts, ct, nil))
}

func writeSource(t *testing.T, src, name, content string) {
	t.Helper()
	path := filepath.Join(src, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRun_BasicTree(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "bashrc", "hello\n")
	writeSource(t, src, "config/app.conf", "setting=1\n")
	writeSource(t, src, "README", "tooling, not a dotfile\n")
	writeSource(t, src, ".hidden", "never synced\n")

	mustRun(t, testOpts(src, dest), nil)

	content, err := os.ReadFile(filepath.Join(dest, ".bashrc"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))

	info, err := os.Stat(filepath.Join(dest, ".bashrc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0400), info.Mode().Perm())

	// nested entries keep their names; only depth-0 names get the dot
	content, err = os.ReadFile(filepath.Join(dest, ".config", "app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "setting=1\n", string(content))

	dirInfo, err := os.Stat(filepath.Join(dest, ".config"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	assert.NoFileExists(t, filepath.Join(dest, "README"))
	assert.NoFileExists(t, filepath.Join(dest, ".README"))
	assert.NoFileExists(t, filepath.Join(dest, "..hidden"))
	assert.NoFileExists(t, filepath.Join(dest, ".hidden"))
}

func TestRun_ExecutableBit(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "bin/tool", "#!/bin/sh\necho hi\n")
	require.NoError(t, os.Chmod(filepath.Join(src, "bin", "tool"), 0755))

	mustRun(t, testOpts(src, dest), nil)

	info, err := os.Stat(filepath.Join(dest, ".bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0500), info.Mode().Perm())
}

func TestRun_PublicVisibility(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "plan", "---@vis public\nworld readable\n")

	mustRun(t, testOpts(src, dest), nil)

	info, err := os.Stat(filepath.Join(dest, ".plan"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0444), info.Mode().Perm())

	content, err := os.ReadFile(filepath.Join(dest, ".plan"))
	require.NoError(t, err)
	assert.Equal(t, "world readable\n", string(content))
}

func TestRun_MtimeCarriedFromSource(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "bashrc", "hello\n")
	stamp := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "bashrc"), stamp, stamp))

	mustRun(t, testOpts(src, dest), nil)

	info, err := os.Stat(filepath.Join(dest, ".bashrc"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(stamp))
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "bashrc", "hello\n")

	opts := testOpts(src, dest)
	opts.Backup = true

	mustRun(t, opts, nil)
	mustRun(t, opts, nil)

	// an unchanged second run must not replace the file, so no backup
	// may appear even with backups enabled
	baks, err := filepath.Glob(filepath.Join(dest, ".bashrc.*.bak"))
	require.NoError(t, err)
	assert.Empty(t, baks)

	content, err := os.ReadFile(filepath.Join(dest, ".bashrc"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestRun_DeleteDirective(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "gone", "---@delete\n")
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".gone"), []byte("old\n"), 0644))

	mustRun(t, testOpts(src, dest), nil)

	assert.NoFileExists(t, filepath.Join(dest, ".gone"))
}

func TestRun_EmptyResultDeletes(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "maybe", "---@if foo\ncontent\n---@\n")
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".maybe"), []byte("old\n"), 0644))

	mustRun(t, testOpts(src, dest), nil)

	assert.NoFileExists(t, filepath.Join(dest, ".maybe"))
}

func TestRun_LinkDirective(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "tool", "---@link ~/bin/tool\n")

	opts := testOpts(src, dest)
	mustRun(t, opts, nil)

	// HOME is the destination root in these tests
	target, err := os.Readlink(filepath.Join(dest, ".tool"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "bin", "tool"), target)

	// a second run sees the link already pointing at the target
	mustRun(t, opts, nil)
	target, err = os.Readlink(filepath.Join(dest, ".tool"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "bin", "tool"), target)
}

func TestRun_LinkReplacesExistingFile(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "tool", "---@link ~/bin/tool\n")
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".tool"), []byte("plain\n"), 0644))

	mustRun(t, testOpts(src, dest), nil)

	target, err := os.Readlink(filepath.Join(dest, ".tool"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "bin", "tool"), target)
}

func TestRun_SourceSymlinkReplicated(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	require.NoError(t, os.Symlink("relative/target", filepath.Join(src, "mylink")))

	mustRun(t, testOpts(src, dest), nil)

	// the literal, unresolved target is replicated
	target, err := os.Readlink(filepath.Join(dest, ".mylink"))
	require.NoError(t, err)
	assert.Equal(t, "relative/target", target)
}

func TestRun_DirDirectiveIgnore(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "config/.homesync", "---@ignore\n")
	writeSource(t, src, "config/app.conf", "x\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, ".config"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".config", "existing"), []byte("keep\n"), 0644))

	mustRun(t, testOpts(src, dest), nil)

	// no recursion, no deletion
	assert.NoFileExists(t, filepath.Join(dest, ".config", "app.conf"))
	assert.FileExists(t, filepath.Join(dest, ".config", "existing"))
}

func TestRun_DirDirectiveDelete(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "config/.homesync", "---@delete\n")
	writeSource(t, src, "config/app.conf", "x\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, ".config"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".config", "stale"), []byte("x\n"), 0644))

	mustRun(t, testOpts(src, dest), nil)

	assert.NoDirExists(t, filepath.Join(dest, ".config"))
}

func TestRun_DirDirectiveConditional(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "work/.homesync", "---@unless work\n---@ignore\n---@\n")
	writeSource(t, src, "work/gitconfig", "x\n")

	mustRun(t, testOpts(src, dest), nil)
	assert.NoFileExists(t, filepath.Join(dest, ".work", "gitconfig"))
}

func TestRun_DirDirectiveLinkIsFatal(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "config/.homesync", "---@link ~/elsewhere\n")
	writeSource(t, src, "config/app.conf", "x\n")

	err := run(t, testOpts(src, dest), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrBadDirective))
	// nothing may have been synced past the bad control file
	assert.NoFileExists(t, filepath.Join(dest, ".config", "app.conf"))
}

func TestRun_DirDirectiveUnreadableIsFatal(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	// a directory where the control file should be makes the read fail
	// with something other than absence, which must abort the run
	require.NoError(t, os.MkdirAll(filepath.Join(src, "config", DirDirectiveFile), 0755))
	writeSource(t, src, "config/app.conf", "x\n")

	err := run(t, testOpts(src, dest), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrFileAccess))
	assert.NoFileExists(t, filepath.Join(dest, ".config", "app.conf"))
}

func TestRun_BinaryCopiedRaw(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	// marker text inside binary data must not be interpreted
	blob := []byte("---@if foo\n\x00\x01\x02rest")
	require.NoError(t, os.WriteFile(filepath.Join(src, "blob"), blob, 0644))

	mustRun(t, testOpts(src, dest), nil)

	content, err := os.ReadFile(filepath.Join(dest, ".blob"))
	require.NoError(t, err)
	assert.Equal(t, blob, content)
}

func TestRun_QuickCheckSkipsOnEqualMtime(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "file", "new content\n")
	stamp := time.Date(2021, 6, 7, 8, 9, 10, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "file"), stamp, stamp))

	require.NoError(t, os.WriteFile(filepath.Join(dest, ".file"), []byte("stale content\n"), 0644))
	require.NoError(t, os.Chtimes(filepath.Join(dest, ".file"), stamp, stamp))

	opts := testOpts(src, dest)
	opts.Quick = true
	mustRun(t, opts, nil)

	// quick check trusted the matching mtimes and skipped everything
	content, err := os.ReadFile(filepath.Join(dest, ".file"))
	require.NoError(t, err)
	assert.Equal(t, "stale content\n", string(content))

	opts.Quick = false
	mustRun(t, opts, nil)

	content, err = os.ReadFile(filepath.Join(dest, ".file"))
	require.NoError(t, err)
	assert.Equal(t, "new content\n", string(content))
}

func TestRun_EqualContentReconcilesMetaOnly(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "file", "same\n")
	stamp := time.Date(2021, 6, 7, 8, 9, 10, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "file"), stamp, stamp))

	require.NoError(t, os.WriteFile(filepath.Join(dest, ".file"), []byte("same\n"), 0644))

	opts := testOpts(src, dest)
	opts.Backup = true
	mustRun(t, opts, nil)

	info, err := os.Stat(filepath.Join(dest, ".file"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0400), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(stamp))

	// equal checksums mean no replacement, so no backup either
	baks, err := filepath.Glob(filepath.Join(dest, ".file.*.bak"))
	require.NoError(t, err)
	assert.Empty(t, baks)
}

func TestRun_BackupOnReplace(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "file", "new\n")
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".file"), []byte("old\n"), 0644))

	opts := testOpts(src, dest)
	opts.Backup = true
	mustRun(t, opts, nil)

	content, err := os.ReadFile(filepath.Join(dest, ".file"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(content))

	baks, err := filepath.Glob(filepath.Join(dest, ".file.*.bak"))
	require.NoError(t, err)
	require.Len(t, baks, 1)
	old, err := os.ReadFile(baks[0])
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(old))
}

func TestRun_BackupOnReplacedSymlink(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "file", "plain now\n")
	require.NoError(t, os.Symlink("/somewhere/else", filepath.Join(dest, ".file")))

	opts := testOpts(src, dest)
	opts.Backup = true
	mustRun(t, opts, nil)

	content, err := os.ReadFile(filepath.Join(dest, ".file"))
	require.NoError(t, err)
	assert.Equal(t, "plain now\n", string(content))

	// the replaced symlink is backed up like any other destination
	baks, err := filepath.Glob(filepath.Join(dest, ".file.*.bak"))
	require.NoError(t, err)
	require.Len(t, baks, 1)
	target, err := os.Readlink(baks[0])
	require.NoError(t, err)
	assert.Equal(t, "/somewhere/else", target)
}

func TestRun_DryRunMutatesNothing(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "bashrc", "hello\n")
	writeSource(t, src, "gone", "---@delete\n")
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".gone"), []byte("old\n"), 0644))

	opts := testOpts(src, dest)
	opts.DryRun = true

	var buf bytes.Buffer
	require.NoError(t, run(t, opts, nil, &buf))

	assert.NoFileExists(t, filepath.Join(dest, ".bashrc"))
	assert.FileExists(t, filepath.Join(dest, ".gone"))

	out := buf.String()
	assert.Contains(t, out, "+hello")
	assert.Contains(t, out, "-old")
}

func TestRun_NotADirectoryIsFatal(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "config/app.conf", "x\n")
	require.NoError(t, os.WriteFile(filepath.Join(dest, ".config"), []byte("in the way\n"), 0644))

	err := run(t, testOpts(src, dest), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotADirectory))
}

func TestRun_UndefinedKeyIsFatal(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "file", "value: ---@missing@---\n")

	err := run(t, testOpts(src, dest), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUndefinedKey))
}

func TestRun_CrontabInstall(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "crontab", "0 * * * * job\n")

	ct := &fakeCrontab{}
	mustRun(t, testOpts(src, dest), ct)

	assert.Equal(t, "0 * * * * job\n", ct.text)
	// the crontab file is routed to the sub-flow, never copied
	assert.NoFileExists(t, filepath.Join(dest, ".crontab"))
}

func TestRun_CrontabUnchangedIsNoop(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "crontab", "0 * * * * job\n")

	ct := &fakeCrontab{text: "0 * * * * job\n"}
	mustRun(t, testOpts(src, dest), ct)

	assert.Empty(t, ct.writes)
	assert.Zero(t, ct.removed)
}

func TestRun_CrontabDelete(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "crontab", "---@delete\n")

	ct := &fakeCrontab{text: "0 * * * * job\n"}
	mustRun(t, testOpts(src, dest), ct)
	assert.Equal(t, 1, ct.removed)

	// deleting an already empty crontab does nothing
	ct = &fakeCrontab{}
	mustRun(t, testOpts(src, dest), ct)
	assert.Zero(t, ct.removed)
}

func TestRun_CrontabLinkIsFatal(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "crontab", "---@link ~/elsewhere\n")

	err := run(t, testOpts(src, dest), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrBadDirective))
}

func TestRun_CrontabConditional(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeSource(t, src, "crontab", "0 * * * * always\n---@if work\n0 2 * * * work-job\n---@\n")

	ct := &fakeCrontab{}
	mustRun(t, testOpts(src, dest), ct)
	assert.Equal(t, "0 * * * * always\n", ct.text)
}

package diff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_TextDiff(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	err := p.File("/home/u/.bashrc", "/src/bashrc", []byte("old line\nshared\n"), []byte("new line\nshared\n"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "--- /home/u/.bashrc")
	assert.Contains(t, out, "+++ /src/bashrc")
	assert.Contains(t, out, "-old line")
	assert.Contains(t, out, "+new line")
}

func TestFile_EqualContentPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	err := p.File("/home/u/.bashrc", "/src/bashrc", []byte("same\n"), []byte("same\n"))
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestFile_NewFile(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	err := p.File("/home/u/.bashrc", "/src/bashrc", nil, []byte("hello\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "+hello")
}

func TestFile_BinaryPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	err := p.File("/home/u/.cache.db", "/src/cache.db", nil, []byte("bin\x00data"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "+binary (blake2b ")
	assert.NotContains(t, out, "bin\x00data")
}

func TestSymlink(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Symlink("/home/u/.tool", "/home/u/bin/tool")
	assert.Contains(t, buf.String(), "+symlink -> /home/u/bin/tool")
}

func TestRemoved(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	err := p.Removed("/home/u/.old", []byte("gone\n"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "+++ /dev/null")
	assert.Contains(t, out, "-gone")
}

func TestRemovedDir(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.RemovedDir("/home/u/.config")
	assert.Equal(t, "removed directory /home/u/.config\n", buf.String())
}

func TestCrontab(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	err := p.Crontab("0 * * * * old\n", "0 * * * * new\n")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "--- crontab")
	assert.Contains(t, out, "-0 * * * * old")
	assert.Contains(t, out, "+0 * * * * new")
}

func TestNoColorOnBuffer(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	require.NoError(t, p.File("/d", "/s", []byte("a\n"), []byte("b\n")))
	assert.NotContains(t, buf.String(), "\x1b[")
}

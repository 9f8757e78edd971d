// Package diff renders the effect of sync actions as unified diffs for
// dry runs. Binary content is never dumped raw; it shows up as a
// one-line checksum placeholder.
package diff

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	blake2b "github.com/minio/blake2b-simd"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/arthur-debert/homesync/pkg/directive"
	"github.com/arthur-debert/homesync/pkg/errors"
)

const (
	colorReset = "\x1b[0m"
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
	colorCyan  = "\x1b[36m"
)

// Printer renders diffs to a writer, coloring added/removed lines when
// the writer is a terminal.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter creates a Printer for out. Color is enabled only when out
// is a terminal.
func NewPrinter(out io.Writer) *Printer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	return &Printer{out: out, color: color}
}

// File renders a unified diff between the old destination content and
// the new content. Labels follow the dest-on-the-left convention.
func (p *Printer) File(destPath, srcPath string, old, new []byte) error {
	oldText := renderable(old)
	newText := renderable(new)
	if oldText == newText {
		return nil
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: destPath,
		ToFile:   srcPath,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "rendering diff")
	}
	p.write(text)
	return nil
}

// Symlink renders a synthetic diff for a new or changed symlink.
func (p *Printer) Symlink(destPath, target string) {
	p.write(fmt.Sprintf("--- %s\n+++ %s\n", destPath, destPath))
	p.write(fmt.Sprintf("+symlink -> %s\n", target))
}

// Removed renders the removal of a regular destination file.
func (p *Printer) Removed(destPath string, old []byte) error {
	oldText := renderable(old)
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        nil,
		FromFile: destPath,
		ToFile:   "/dev/null",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "rendering diff")
	}
	p.write(text)
	return nil
}

// RemovedDir renders the removal of a whole destination directory.
func (p *Printer) RemovedDir(destPath string) {
	p.write(fmt.Sprintf("removed directory %s\n", destPath))
}

// Crontab renders a diff between the installed and the new crontab text.
func (p *Printer) Crontab(current, text string) error {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(current),
		B:        difflib.SplitLines(text),
		FromFile: "crontab",
		ToFile:   "crontab",
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "rendering diff")
	}
	p.write(out)
	return nil
}

// renderable returns content as diffable text, substituting a checksum
// placeholder for binary data.
func renderable(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	if directive.IsBinary(content) {
		sum := blake2b.Sum256(content)
		return fmt.Sprintf("binary (blake2b %s)\n", hex.EncodeToString(sum[:])[:12])
	}
	return string(content)
}

func (p *Printer) write(text string) {
	if !p.color {
		io.WriteString(p.out, text)
		return
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case '+':
			io.WriteString(p.out, colorGreen)
		case '-':
			io.WriteString(p.out, colorRed)
		case '@':
			io.WriteString(p.out, colorCyan)
		default:
			io.WriteString(p.out, line)
			continue
		}
		io.WriteString(p.out, strings.TrimRight(line, "\n"))
		io.WriteString(p.out, colorReset)
		io.WriteString(p.out, "\n")
	}
}

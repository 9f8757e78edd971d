// Package crontab wraps the system crontab as two black-box operations:
// read the installed text, install new text. The sync engine only
// depends on the Crontab interface, so tests inject a fake.
package crontab

import (
	"os/exec"
	"strings"

	"github.com/arthur-debert/homesync/pkg/errors"
	"github.com/arthur-debert/homesync/pkg/logging"
)

// Crontab is the contract the sync engine consumes.
type Crontab interface {
	// Read returns the installed crontab text. No installed crontab is
	// an expected absence, not an error, and yields "".
	Read() (string, error)
	// Write installs text as the new crontab.
	Write(text string) error
	// Remove clears the installed crontab.
	Remove() error
}

// System talks to the real crontab binary. RemoveCommand, when set, is
// run via the shell instead of installing empty content to clear the
// crontab.
type System struct {
	RemoveCommand string
}

// NewSystem creates a Crontab backed by the crontab binary.
func NewSystem(removeCommand string) *System {
	return &System{RemoveCommand: removeCommand}
}

func (s *System) Read() (string, error) {
	logger := logging.GetLogger("crontab")
	out, err := exec.Command("crontab", "-l").Output()
	if err != nil {
		// crontab -l exits non-zero when nothing is installed
		if _, ok := err.(*exec.ExitError); ok {
			logger.Debug().Msg("No crontab installed")
			return "", nil
		}
		return "", errors.Wrap(err, errors.ErrCrontab, "reading crontab")
	}
	return string(out), nil
}

func (s *System) Write(text string) error {
	cmd := exec.Command("crontab", "-")
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, errors.ErrCrontab, "installing crontab")
	}
	return nil
}

func (s *System) Remove() error {
	if s.RemoveCommand == "" {
		return s.Write("")
	}
	if err := exec.Command("sh", "-c", s.RemoveCommand).Run(); err != nil {
		return errors.Wrapf(err, errors.ErrCrontab, "running remove command %q", s.RemoveCommand)
	}
	return nil
}

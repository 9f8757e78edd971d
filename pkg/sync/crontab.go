package sync

import (
	"path/filepath"

	"github.com/arthur-debert/homesync/pkg/directive"
	"github.com/arthur-debert/homesync/pkg/errors"
)

// syncCrontab handles the reserved top-level crontab file. The source is
// always directive-processed as text (no binary sniff) and the result is
// reconciled against the installed crontab, which the engine only sees
// as opaque read/write operations.
func (e *Engine) syncCrontab(src string) error {
	content, err := e.fs.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "reading %s", src)
	}
	action, err := directive.Process(content, e.environ, e.defaultVis, false)
	if err != nil {
		return withPath(err, src)
	}

	switch action.Kind {
	case directive.KindIgnore:
		e.log.Debug().Str("path", src).Msg("Crontab ignored")
		return nil

	case directive.KindSymlink:
		return errors.Newf(errors.ErrBadDirective, "link directive not valid in %s", filepath.Base(src))

	case directive.KindDelete:
		current, err := e.ct.Read()
		if err != nil {
			return err
		}
		if current == "" {
			return nil
		}
		e.log.Info().Msg("Clearing crontab")
		return e.applier.InstallCrontab(current, "")

	default:
		current, err := e.ct.Read()
		if err != nil {
			return err
		}
		text := string(action.Content)
		if text == current {
			return nil
		}
		e.log.Info().Msg("Installing crontab")
		return e.applier.InstallCrontab(current, text)
	}
}

package directive

import (
	"io/fs"
	"strings"

	"github.com/arthur-debert/homesync/pkg/errors"
)

// Visibility classifies a destination file as owner-only or
// world-readable.
type Visibility int

const (
	Private Visibility = iota
	Public
)

// String returns the visibility name
func (v Visibility) String() string {
	if v == Public {
		return "public"
	}
	return "private"
}

// ParseVisibility parses a visibility token. The match is
// case-insensitive and prefix-based: anything starting with "priv" or
// "pub" is accepted. Any other token is a configuration error.
func ParseVisibility(token string) (Visibility, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	switch {
	case strings.HasPrefix(t, "priv"):
		return Private, nil
	case strings.HasPrefix(t, "pub"):
		return Public, nil
	default:
		return Private, errors.Newf(errors.ErrBadVisibility, "invalid visibility %q", token)
	}
}

// Mode maps a visibility and the source file's owner-execute bit to the
// destination permission mode. No group or world write is ever granted.
func (v Visibility) Mode(executable bool) fs.FileMode {
	if executable {
		if v == Public {
			return 0555
		}
		return 0500
	}
	if v == Public {
		return 0444
	}
	return 0400
}

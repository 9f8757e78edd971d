package directive

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/arthur-debert/homesync/pkg/env"
	"github.com/arthur-debert/homesync/pkg/errors"
)

// BinarySniffLen is how many leading bytes are inspected for a NUL byte.
const BinarySniffLen = 4096

// IsBinary reports whether content looks like opaque binary data. Binary
// files are never directive-processed.
func IsBinary(content []byte) bool {
	head := content
	if len(head) > BinarySniffLen {
		head = head[:BinarySniffLen]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// inlineRef matches an inline reference: a key wrapped in the reserved
// marker syntax.
var inlineRef = regexp.MustCompile(`---@([A-Za-z_][A-Za-z0-9_]*)@---`)

// Process scans a file's lines in order, executing directives, and
// produces the file's single Action. The conditional machinery is a
// two-state machine (copying or skipping) plus a counter of unmatched
// conditional opens; conditionals never nest. defaultVis applies unless
// a vis directive overrides it.
//
// Configuration errors (bad visibility token, undefined substitution
// key, misplaced else, unclosed if) are fatal and abort the run.
func Process(content []byte, environ env.Environment, defaultVis Visibility, emptyOK bool) (Action, error) {
	copying := true
	ifDepth := 0
	vis := defaultVis

	var out strings.Builder

	for _, tok := range scan(string(content)) {
		switch tok.kind {
		case tokComment:
			// discarded

		case tokVis:
			if copying {
				v, err := ParseVisibility(tok.arg)
				if err != nil {
					return Action{}, err
				}
				vis = v
			}

		case tokEmptyOK:
			// not gated on copying
			emptyOK = true

		case tokIgnore:
			if copying {
				return Ignore(), nil
			}

		case tokDelete:
			if copying {
				return Delete(), nil
			}

		case tokLink:
			if copying {
				return Symlink(tok.arg), nil
			}

		case tokIf:
			ifDepth++
			copying = Evaluate(tok.arg, environ)

		case tokUnless:
			ifDepth++
			copying = !Evaluate(tok.arg, environ)

		case tokElse:
			if ifDepth != 1 {
				return Action{}, errors.New(errors.ErrInvalidElse, "invalid use of else")
			}
			copying = !copying

		case tokEnd:
			copying = true
			ifDepth = 0

		case tokPlain:
			if copying {
				line, err := substitute(tok.raw, environ)
				if err != nil {
					return Action{}, err
				}
				out.WriteString(line)
			}
		}
	}

	if ifDepth != 0 {
		return Action{}, errors.New(errors.ErrUnclosedIf, "unclosed if")
	}

	result := out.String()
	if !emptyOK && strings.TrimSpace(result) == "" {
		return Delete(), nil
	}
	return Data([]byte(result), vis), nil
}

// substitute replaces every inline reference in a retained line with the
// environment value. A reference to an undefined key is fatal.
func substitute(line string, environ env.Environment) (string, error) {
	if !strings.Contains(line, Marker) {
		return line, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range inlineRef.FindAllStringSubmatchIndex(line, -1) {
		key := line[m[2]:m[3]]
		value, ok := environ.Lookup(key)
		if !ok {
			return "", errors.Newf(errors.ErrUndefinedKey, "reference to undefined key %q", key)
		}
		b.WriteString(line[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(line[last:])
	return b.String(), nil
}

// scan splits content into classified lines, keeping line terminators
// attached so retained lines round-trip byte-for-byte.
func scan(content string) []token {
	var tokens []token
	for len(content) > 0 {
		i := strings.IndexByte(content, '\n')
		var line string
		if i < 0 {
			line = content
			content = ""
		} else {
			line = content[:i+1]
			content = content[i+1:]
		}
		tokens = append(tokens, tokenize(line))
	}
	return tokens
}

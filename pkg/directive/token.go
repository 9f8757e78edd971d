package directive

import "strings"

// Marker is the 4-byte sequence that introduces a directive line.
const Marker = "---@"

// tokenKind enumerates the directive kinds plus "plain line". The order
// of the constants mirrors the match priority in tokenize.
type tokenKind int

const (
	tokPlain tokenKind = iota
	tokComment
	tokVis
	tokEmptyOK
	tokIgnore
	tokDelete
	tokLink
	tokIf
	tokUnless
	tokElse
	tokEnd
)

// token is one classified input line. raw keeps the original line
// (terminator included) so plain lines pass through byte-for-byte.
type token struct {
	kind tokenKind
	arg  string
	raw  string
}

// tokenize classifies a single line. A line starting with the marker
// whose word is not a recognized directive falls through to a plain
// line; this is how inline-substitution-only lines and escaped literals
// survive.
func tokenize(raw string) token {
	line := strings.TrimRight(raw, "\r\n")
	if !strings.HasPrefix(line, Marker) {
		return token{kind: tokPlain, raw: raw}
	}
	rest := line[len(Marker):]

	switch {
	case strings.HasPrefix(rest, "@"):
		return token{kind: tokComment, raw: raw}
	case strings.HasPrefix(rest, "vis "):
		return token{kind: tokVis, arg: strings.TrimSpace(rest[4:]), raw: raw}
	case strings.TrimSpace(rest) == "emptyok":
		return token{kind: tokEmptyOK, raw: raw}
	case strings.TrimSpace(rest) == "ignore":
		return token{kind: tokIgnore, raw: raw}
	case strings.TrimSpace(rest) == "delete":
		return token{kind: tokDelete, raw: raw}
	case strings.HasPrefix(rest, "link "):
		return token{kind: tokLink, arg: strings.TrimSpace(rest[5:]), raw: raw}
	case strings.HasPrefix(rest, "if "):
		return token{kind: tokIf, arg: strings.TrimSpace(rest[3:]), raw: raw}
	case strings.HasPrefix(rest, "unless "):
		return token{kind: tokUnless, arg: strings.TrimSpace(rest[7:]), raw: raw}
	case strings.TrimSpace(rest) == "else":
		return token{kind: tokElse, raw: raw}
	case strings.TrimSpace(rest) == "":
		return token{kind: tokEnd, raw: raw}
	default:
		return token{kind: tokPlain, raw: raw}
	}
}

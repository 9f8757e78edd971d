package directive

import (
	"strings"

	"github.com/arthur-debert/homesync/pkg/env"
)

// Evaluate evaluates a boolean conditional expression against the
// environment. Two forms exist:
//
//	key=a|b|c   true iff env[key] equals one of the candidates
//	a|b|c       true iff any candidate key has a non-empty value
//
// Any defined non-empty value counts as truthy; the sentinel "1" is not
// special. Pure function, no side effects.
func Evaluate(expr string, environ env.Environment) bool {
	if key, list, found := strings.Cut(expr, "="); found {
		value, ok := environ.Lookup(strings.TrimSpace(key))
		if !ok {
			return false
		}
		value = strings.TrimSpace(value)
		for _, candidate := range strings.Split(list, "|") {
			if strings.TrimSpace(candidate) == value {
				return true
			}
		}
		return false
	}

	for _, key := range strings.Split(expr, "|") {
		if value, ok := environ.Lookup(strings.TrimSpace(key)); ok && value != "" {
			return true
		}
	}
	return false
}

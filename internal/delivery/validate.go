package delivery

import (
	"fmt"
	"regexp"
	"strings"
)

// Validate checks a network destination against the prefix convention and,
// when configured, the allow-list.
func (r *Resolver) Validate(path string) error {
	prefix := r.cfg.Security.NetworkPrefix
	if !strings.HasPrefix(path, prefix) {
		return fmt.Errorf("%w: %q does not start with %q", ErrPathInvalid, path, prefix)
	}

	patterns := r.cfg.Security.AllowedPatterns
	if len(patterns) == 0 {
		return nil
	}
	for _, pattern := range patterns {
		if globMatch(pattern, path) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q matches none of %d allowed patterns", ErrPathInvalid, path, len(patterns))
}

// globMatch matches path against a case-insensitive glob where `*` is any run
// of characters and `?` is one character. Backslashes are literal.
func globMatch(pattern, path string) bool {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

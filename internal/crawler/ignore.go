package crawler

import (
	"regexp"
	"strings"
)

// CompilePatterns compiles raw expressions so that MatchString is a
// full match, not a substring search. field names the setting in errors.
func CompilePatterns(field string, raw []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(raw))
	for _, expr := range raw {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			return nil, &ConfigurationError{Field: field, Reason: "bad pattern " + expr, Err: err}
		}
		out = append(out, re)
	}
	return out, nil
}

// MatchesAny reports whether s is fully matched by one of the compiled patterns.
func MatchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

package relay

import "regexp"

// Matcher selects which update paths an observation fires for. It is a tagged
// variant: either an exact path or a compiled pattern.
type Matcher struct {
	exact   string
	pattern *regexp.Regexp
}

// Exact matches a single path by string equality
func Exact(path string) Matcher {
	return Matcher{exact: path}
}

// Pattern matches any path the regular expression matches
func Pattern(re *regexp.Regexp) Matcher {
	return Matcher{pattern: re}
}

// IsExact reports whether the matcher names a single path. Only exact
// matchers trigger a bootstrap request on observe.
func (m Matcher) IsExact() bool {
	return m.pattern == nil
}

// Source returns the exact path or the pattern's source text. This is the
// string carried in SUBSCRIBE/UNSUBSCRIBE frames.
func (m Matcher) Source() string {
	if m.pattern != nil {
		return m.pattern.String()
	}
	return m.exact
}

// Matches reports whether the matcher fires for path
func (m Matcher) Matches(path string) bool {
	if m.pattern != nil {
		return m.pattern.MatchString(path)
	}
	return m.exact == path
}

// equal compares matchers for unobserve: exact paths by value, patterns by
// source text.
func (m Matcher) equal(other Matcher) bool {
	if m.IsExact() != other.IsExact() {
		return false
	}
	return m.Source() == other.Source()
}

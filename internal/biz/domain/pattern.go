package domain

import (
	"regexp"
	"strings"
)

// CompileURLPattern translates a match pattern where * is a wildcard into an
// anchored regular expression. All other characters match literally.
func CompileURLPattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// MatchURLPattern reports whether url matches the wildcard pattern.
// An empty pattern matches nothing.
func MatchURLPattern(pattern, url string) bool {
	if pattern == "" {
		return false
	}
	re, err := CompileURLPattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(url)
}

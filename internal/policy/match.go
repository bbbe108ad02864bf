package policy

import "strings"

const (
	wildcard       = "*"
	prefixWildcard = ".*"
)

// MatchAction reports whether pattern covers action. "*" matches anything, a
// pattern ending in ".*" matches every action starting with the part before
// it, and any other pattern must equal the action.
func MatchAction(pattern, action string) bool {
	switch {
	case pattern == wildcard:
		return true
	case pattern == action:
		return true
	case strings.HasSuffix(pattern, prefixWildcard):
		return strings.HasPrefix(action, strings.TrimSuffix(pattern, prefixWildcard))
	}
	return false
}

// ValidActionPattern reports whether pattern is a usable rule action: "*",
// a dotted name, or a dotted name followed by ".*". Wildcards anywhere else
// are rejected since they would only ever match literally.
func ValidActionPattern(pattern string) bool {
	if pattern == wildcard {
		return true
	}
	name := strings.TrimSuffix(pattern, prefixWildcard)
	if name == "" {
		return false
	}
	for _, segment := range strings.Split(name, ".") {
		if segment == "" || strings.Contains(segment, wildcard) {
			return false
		}
		if strings.ContainsAny(segment, " \t\r\n/") {
			return false
		}
	}
	return true
}

package policy

import "strings"

// DefaultAPIRoot is the path segment that starts the resource part of a URL.
const DefaultAPIRoot = "api"

// Resolver derives action names for requests.
type Resolver struct {
	Root string
}

// NewResolver returns a Resolver for the given API root segment.
func NewResolver(root string) *Resolver {
	root = strings.Trim(root, "/")
	if root == "" {
		root = DefaultAPIRoot
	}
	return &Resolver{Root: root}
}

var defaultResolver = NewResolver(DefaultAPIRoot)

// ResolveAction resolves an action with the default API root.
func ResolveAction(hint, path, method string) string {
	return defaultResolver.Resolve(hint, path, method)
}

// Resolve picks the action name for a request: an explicit handler hint wins,
// then the path segments after a leading API root joined with dots. Anything
// else falls back to the lower cased method, which is deliberately coarse.
func (r *Resolver) Resolve(hint, path, method string) string {
	if hint != "" {
		return hint
	}
	if action := r.fromPath(path); action != "" {
		return action
	}
	return strings.ToLower(method)
}

func (r *Resolver) fromPath(path string) string {
	parts := make([]string, 0, 8)
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			parts = append(parts, segment)
		}
	}
	if len(parts) < 2 || parts[0] != r.Root {
		return ""
	}
	return strings.Join(parts[1:], ".")
}

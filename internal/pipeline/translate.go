package pipeline

import (
	"regexp"
	"strings"
)

var braceParam = regexp.MustCompile(`^\{([^}]+)\}$`)

// ToRouterSegment rewrites a segment that is exactly `{name}` to `:name`.
// Anything else, including partial or malformed braces, is returned as is.
func ToRouterSegment(segment string) string {
	return braceParam.ReplaceAllString(segment, ":$1")
}

// ToRouterPath translates an API path template such as /widgets/{id} to the
// router pattern basePath + /widgets/:id.
func ToRouterPath(basePath, template string) string {
	rest := template
	if rest != "" {
		rest = rest[1:]
	}
	segments := strings.Split(rest, "/")
	for i, s := range segments {
		segments[i] = ToRouterSegment(s)
	}
	return basePath + "/" + strings.Join(segments, "/")
}

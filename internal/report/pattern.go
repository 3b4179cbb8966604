package report

import (
	"fmt"
	"regexp"
	"strings"
)

// BuildFileNamePattern compiles a matcher for resource-access report file
// names, which follow "<csp>_<account>_...<service>..._<date>.csv". An
// empty or "*" csp matches any provider; an empty service matches any
// service. Matching is case-insensitive via lowercased inputs.
func BuildFileNamePattern(csp, service string) (*regexp.Regexp, error) {
	var b strings.Builder
	if csp == "" || csp == "*" {
		b.WriteString("(.*)")
	} else {
		b.WriteString(regexp.QuoteMeta(strings.ToLower(csp)))
	}
	b.WriteString("_(.*)")
	if service != "" {
		b.WriteString(regexp.QuoteMeta(strings.ToLower(service)))
		b.WriteString("(.*)")
	}
	b.WriteString("_")

	pattern, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("building report file pattern for csp %q service %q: %w", csp, service, err)
	}
	return pattern, nil
}

// FilterFilesByPattern returns the file names matching the pattern, with
// matching done against the lowercased name.
func FilterFilesByPattern(names []string, pattern *regexp.Regexp) []string {
	var matched []string
	for _, name := range names {
		if pattern.MatchString(strings.ToLower(name)) {
			matched = append(matched, name)
		}
	}
	return matched
}

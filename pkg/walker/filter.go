package walker

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter narrows a walk to the artifacts one rule cares about.
type Filter struct {
	// Pattern, when set, must match the artifact's relative path.
	Pattern *regexp.Regexp

	// TextOnly skips files over the size limit and binary files.
	TextOnly bool
}

// NewFilter compiles pattern into a Filter. An empty pattern matches every
// artifact.
func NewFilter(pattern string, textOnly bool) (Filter, error) {
	f := Filter{TextOnly: textOnly}
	if strings.TrimSpace(pattern) == "" {
		return f, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	f.Pattern = re
	return f, nil
}

func (f Filter) matches(rel string) bool {
	return f.Pattern == nil || f.Pattern.MatchString(rel)
}

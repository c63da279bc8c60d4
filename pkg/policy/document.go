package policy

import (
	"slices"
	"strings"
)

// Document is a loaded policy: banner, rules and report templates.
type Document struct {
	Banner           string `yaml:"banner" json:"banner,omitempty"`
	Rules            []Rule `yaml:"rules" json:"rules"`
	ExitCritical     string `yaml:"exitcritical" json:"exit_critical,omitempty"`
	ExitWarning      string `yaml:"exitwarning" json:"exit_warning,omitempty"`
	ExitClean        string `yaml:"exitclean" json:"exit_clean,omitempty"`
	Exceptions       []int  `yaml:"exceptions" json:"exceptions,omitempty"`
	ExceptionMessage string `yaml:"exceptionmessage" json:"exception_message,omitempty"`

	// Path is where the document was loaded from, if anywhere.
	Path string `yaml:"-" json:"-"`
}

// Rule returns the rule with the given ID.
func (d *Document) Rule(id int) (*Rule, bool) {
	for i := range d.Rules {
		if d.Rules[i].ID == id {
			return &d.Rules[i], true
		}
	}
	return nil, false
}

// IsExcepted reports whether id is on the exceptions list.
func (d *Document) IsExcepted(id int) bool {
	return slices.Contains(d.Exceptions, id)
}

// Count returns the number of rules per type.
func (d *Document) Count() map[RuleType]int {
	counts := make(map[RuleType]int)
	for _, r := range d.Rules {
		counts[r.Type]++
	}
	return counts
}

// BannerLines returns the banner split into trimmed, non-empty lines.
func (d *Document) BannerLines() []string {
	var lines []string
	for _, l := range strings.Split(d.Banner, "\n") {
		if l = strings.TrimRight(l, " \t\r"); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

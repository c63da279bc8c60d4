package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/xfhg/intercept/pkg/policy"
)

// ConsoleRenderer writes a human-readable report. Evaluation errors are
// magenta with a "!" marker so they never read as policy findings.
type ConsoleRenderer struct {
	critical *color.Color
	warning  *color.Color
	clean    *color.Color
	info     *color.Color
	errored  *color.Color
	muted    *color.Color
	bold     *color.Color
}

// NewConsoleRenderer creates a console renderer.
func NewConsoleRenderer(noColor bool) *ConsoleRenderer {
	c := &ConsoleRenderer{
		critical: color.New(color.FgRed, color.Bold),
		warning:  color.New(color.FgYellow, color.Bold),
		clean:    color.New(color.FgGreen),
		info:     color.New(color.FgCyan),
		errored:  color.New(color.FgMagenta, color.Bold),
		muted:    color.New(color.Faint),
		bold:     color.New(color.Bold),
	}
	if noColor {
		for _, col := range []*color.Color{c.critical, c.warning, c.clean, c.info, c.errored, c.muted, c.bold} {
			col.DisableColor()
		}
	}
	return c
}

const rule = "────────────────────────────────────────────────────────────"

// Render implements Renderer.
func (c *ConsoleRenderer) Render(w io.Writer, r *Report) error {
	if r.Banner != "" {
		fmt.Fprintln(w, strings.TrimRight(r.Banner, "\n"))
		fmt.Fprintln(w)
	}
	if r.Environment != "" {
		c.muted.Fprintf(w, "environment: %s\n", r.Environment)
	}
	fmt.Fprintln(w, rule)

	for _, v := range r.Verdicts {
		c.renderVerdict(w, v)
	}

	fmt.Fprintln(w, rule)
	s := r.Summary
	fmt.Fprintf(w, "rules: %d  clean: %d  warning: %d  critical: %d  skipped: %d  errors: %d\n",
		s.Rules, s.Clean, s.Warning, s.Critical, s.Skipped, s.Errors)
	fmt.Fprintf(w, "violations: %d  informational: %d\n", s.Violations, s.Informational)
	fmt.Fprintln(w)

	status := c.severityColor(r.Status)
	if r.Interrupted {
		c.errored.Fprintln(w, "! run interrupted")
	}
	status.Fprintf(w, "%s", strings.ToUpper(r.Status.String()))
	if r.Message != "" {
		fmt.Fprintf(w, "  %s", r.Message)
	}
	fmt.Fprintln(w)
	_, err := fmt.Fprintf(w, "exit code %d\n", r.ExitCode)
	return err
}

func (c *ConsoleRenderer) renderVerdict(w io.Writer, v Verdict) {
	marker, col := c.verdictStyle(v)
	col.Fprintf(w, "%s ", marker)
	c.bold.Fprintf(w, "#%d %s", v.RuleID, v.RuleName)
	c.muted.Fprintf(w, "  [%s] %s", v.Type, v.Status)
	if v.Reason != "" {
		c.muted.Fprintf(w, " (%s)", v.Reason)
	}
	fmt.Fprintln(w)

	for _, x := range v.Violations {
		xcol, xmark := c.violationStyle(x.Kind)
		xcol.Fprintf(w, "    %s %s", xmark, x.Location)
		if x.Message != "" {
			fmt.Fprintf(w, "  %s", x.Message)
		}
		fmt.Fprintln(w)
		if x.Content != "" {
			c.muted.Fprintf(w, "      %s\n", oneLine(x.Content))
		}
	}
	for _, path := range v.Skipped {
		c.muted.Fprintf(w, "    ~ skipped %s\n", path)
	}
}

func (c *ConsoleRenderer) verdictStyle(v Verdict) (string, *color.Color) {
	switch {
	case v.Status == StatusError:
		return "!", c.errored
	case v.Status == StatusSkipped || v.Status == StatusExcepted || v.Status == StatusCancelled:
		return "-", c.muted
	case v.Severity == SeverityClean && len(v.Violations) > 0:
		return "i", c.info
	}
	switch v.Severity {
	case SeverityCritical:
		return "✗", c.critical
	case SeverityWarning:
		return "⚠", c.warning
	default:
		return "✓", c.clean
	}
}

func (c *ConsoleRenderer) violationStyle(kind policy.ViolationKind) (*color.Color, string) {
	switch kind {
	case policy.KindEvaluationError, policy.KindWalkError:
		return c.errored, "!"
	case policy.KindInformational:
		return c.info, "i"
	default:
		return c.warning, "•"
	}
}

func (c *ConsoleRenderer) severityColor(s Severity) *color.Color {
	switch s {
	case SeverityCritical:
		return c.critical
	case SeverityWarning:
		return c.warning
	default:
		return c.clean
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

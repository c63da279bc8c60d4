package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/xfhg/intercept/pkg/policy"
)

const informationURI = "https://github.com/xfhg/intercept"

// SARIFRenderer writes a SARIF 2.1.0 log with one result per violation.
type SARIFRenderer struct {
	Version string
}

// Render implements Renderer.
func (s *SARIFRenderer) Render(w io.Writer, r *Report) error {
	log, err := s.Build(r)
	if err != nil {
		return err
	}
	return log.PrettyWrite(w)
}

// Build converts r into a SARIF log.
func (s *SARIFRenderer) Build(r *Report) (*sarif.Report, error) {
	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("create sarif report: %w", err)
	}

	run := sarif.NewRunWithInformationURI("intercept", informationURI)
	if s.Version != "" {
		version := s.Version
		run.Tool.Driver.SemanticVersion = &version
	}

	for _, v := range r.Verdicts {
		id := strconv.Itoa(v.RuleID)

		pb := sarif.NewPropertyBag()
		pb.Add("name", v.RuleName)
		pb.Add("type", string(v.Type))
		pb.Add("status", string(v.Status))
		pb.Add("severity", v.Severity.String())
		pb.Add("enforcement", v.Enforcement)
		pb.Add("fatal", v.Fatal)
		if v.Confidence != "" {
			pb.Add("confidence", string(v.Confidence))
		}

		run.AddRule(id).
			WithDescription(v.RuleName).
			WithProperties(pb.Properties)

		for _, x := range v.Violations {
			run.CreateResultForRule(id).
				WithLevel(sarifLevel(v, x)).
				WithMessage(sarif.NewTextMessage(resultText(x))).
				AddLocation(sarif.NewLocationWithPhysicalLocation(physicalLocation(x)))
		}
	}

	log.AddRun(run)
	return log, nil
}

func physicalLocation(x policy.Violation) *sarif.PhysicalLocation {
	path := x.Location.Path
	if path == "" {
		path = "."
	}
	physical := sarif.NewPhysicalLocation().
		WithArtifactLocation(sarif.NewSimpleArtifactLocation(path))
	if x.Location.Line > 0 {
		region := sarif.NewSimpleRegion(x.Location.Line, x.Location.Line)
		if x.Content != "" {
			snippet := strings.TrimRight(x.Content, "\n")
			region.WithSnippet(&sarif.ArtifactContent{Text: &snippet})
		}
		physical.WithRegion(region)
	}
	return physical
}

// sarifLevel maps severity to SARIF levels: error for critical, warning for
// warning and note for informational or unenforced findings.
func sarifLevel(v Verdict, x policy.Violation) string {
	if x.Kind == policy.KindInformational {
		return "note"
	}
	switch v.Severity {
	case SeverityCritical:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func resultText(x policy.Violation) string {
	msg := x.Message
	if msg == "" {
		msg = string(x.Kind)
	}
	if x.Location.Logical != "" {
		msg += " (" + x.Location.Logical + ")"
	}
	return msg
}

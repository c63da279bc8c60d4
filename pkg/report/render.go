package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xfhg/intercept/pkg/config"
)

// Renderer writes a report in one output format.
type Renderer interface {
	Render(w io.Writer, r *Report) error
}

// RenderOptions configures renderers.
type RenderOptions struct {
	// NoColor disables ANSI colors in console output.
	NoColor bool

	// Version is recorded as the tool version in SARIF output.
	Version string
}

// NewRenderer returns the renderer for format.
func NewRenderer(format string, opts RenderOptions) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", config.FormatText:
		return NewConsoleRenderer(opts.NoColor), nil
	case config.FormatJSON:
		return &JSONRenderer{Indent: true}, nil
	case config.FormatSARIF:
		return &SARIFRenderer{Version: opts.Version}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

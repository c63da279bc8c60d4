package report

import (
	"encoding/json"
	"io"
)

// JSONRenderer writes the report as JSON. Field order follows the struct
// definitions and verdicts are already sorted, so equal reports encode to
// equal bytes.
type JSONRenderer struct {
	Indent bool
}

// Render implements Renderer.
func (j *JSONRenderer) Render(w io.Writer, r *Report) error {
	encoder := json.NewEncoder(w)
	if j.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(r)
}

package output

import (
	"encoding/json"
	"io"

	"github.com/gantryci/gantry/internal/provider"
	"github.com/gantryci/gantry/internal/report"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures the JSON output schema.
type Report struct {
	Provider  string                 `json:"provider"`
	Event     string                 `json:"event"`
	Branch    string                 `json:"branch,omitempty"`
	RunNumber int                    `json:"run_number"`
	Workflows []provider.Workflow    `json:"workflows"`
	Contexts  []report.ContextResult `json:"contexts,omitempty"`
	Summary   report.Summary         `json:"summary"`
	Warnings  []string               `json:"warnings,omitempty"`
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

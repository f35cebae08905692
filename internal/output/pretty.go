package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gantryci/gantry/internal/provider"
	"github.com/gantryci/gantry/internal/report"
)

// PrettyRenderer renders execution results in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderList renders workflows, their expanded contexts, and steps in list
// mode. The contexts carry the trigger verdict each one got for the chosen
// event.
func (p *PrettyRenderer) RenderList(workflows []provider.Workflow, contexts []report.ContextResult) error {
	byWorkflow := make(map[string][]report.ContextResult)
	for _, res := range contexts {
		byWorkflow[res.WorkflowPath] = append(byWorkflow[res.WorkflowPath], res)
	}

	for _, wf := range workflows {
		if _, err := fmt.Fprintf(p.out, "Workflow %s\n", decorateName(wf.Name, wf.Path)); err != nil {
			return err
		}
		for _, res := range byWorkflow[wf.Path] {
			verdict := string(res.Status)
			if res.Reason != "" {
				verdict = fmt.Sprintf("%s (%s)", verdict, res.Reason)
			}
			if _, err := fmt.Fprintf(p.out, "  Context %s [%s]\n", res.Context, verdict); err != nil {
				return err
			}
		}
		for _, job := range wf.Jobs {
			for _, step := range job.Steps {
				label := step.Name
				if label == "" {
					label = step.Run
				}
				if _, err := fmt.Fprintf(p.out, "    Step %s\n", label); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RenderResults renders per-context step outcomes followed by the summary.
func (p *PrettyRenderer) RenderResults(contexts []report.ContextResult, summary report.Summary) error {
	var lastWorkflow string
	for _, res := range contexts {
		if res.WorkflowPath != lastWorkflow {
			lastWorkflow = res.WorkflowPath
			fmt.Fprintf(p.out, "Workflow %s\n", decorateName(res.WorkflowName, res.WorkflowPath))
		}

		line := fmt.Sprintf("  %s %s [%s]", statusGlyph(res.Status), res.Context, res.Status)
		if res.Status == report.StatusSucceeded || res.Status == report.StatusFailed {
			line += fmt.Sprintf(" (%s)", formatDuration(res.Duration))
		}
		if res.Reason != "" {
			line += ": " + res.Reason
		}
		fmt.Fprintln(p.out, line)

		for _, step := range res.Steps {
			label := step.StepName
			if label == "" {
				label = step.StepRun
			}
			fmt.Fprintf(p.out, "    %s %s (%s)\n", statusGlyph(step.Status), label, formatDuration(step.Duration))
			if step.Status == report.StatusFailed && step.Stderr != "" {
				fmt.Fprintf(p.out, "      stderr:\n%s\n", indent(step.Stderr, "        "))
			}
			if step.Status == report.StatusSkipped && step.Stdout != "" {
				fmt.Fprintf(p.out, "      note: %s\n", strings.TrimSpace(step.Stdout))
			}
			if step.DryRun && step.StepRun != "" {
				fmt.Fprintf(p.out, "      command: %s\n", step.StepRun)
			}
		}
	}

	if summary.Release != nil {
		fmt.Fprintf(p.out, "Release %s (%q, prerelease=%v)\n", summary.Release.Tag, summary.Release.Title, summary.Release.Prerelease)
	}
	fmt.Fprintf(p.out, "SUMMARY: %d succeeded, %d failed, %d skipped, %d blocked (%s)\n",
		summary.Succeeded, summary.Failed, summary.Skipped, summary.Blocked, formatDuration(summary.Duration))
	return nil
}

func decorateName(name, path string) string {
	if name == "" || name == path {
		return path
	}
	return fmt.Sprintf("%s (%s)", name, path)
}

func statusGlyph(status report.Status) string {
	switch status {
	case report.StatusSucceeded:
		return "✓"
	case report.StatusFailed:
		return "✗"
	case report.StatusSkipped:
		return "-"
	case report.StatusPending:
		return "…"
	default:
		return "?"
	}
}

func indent(s, pad string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}

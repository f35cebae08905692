package github

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gantryci/gantry/internal/provider"
	"gopkg.in/yaml.v3"
)

const ProviderName = "github"

// Parser loads GitHub Actions workflow files from disk.
type Parser struct {
	Root string
}

// NewParser constructs a Parser that resolves workflow paths relative to root.
func NewParser(root string) *Parser {
	return &Parser{Root: root}
}

// Parse reads the supplied workflow paths and produces a Pipeline data model.
func (p *Parser) Parse(paths []string) (provider.Pipeline, error) {
	pipeline := provider.Pipeline{Provider: ProviderName}
	for _, relPath := range paths {
		full := relPath
		if !filepath.IsAbs(full) {
			full = filepath.Join(p.Root, relPath)
		}
		wf, warnings, err := parseWorkflow(full, relPath)
		if err != nil {
			return provider.Pipeline{}, err
		}
		pipeline.Workflows = append(pipeline.Workflows, wf)
		pipeline.Warnings = append(pipeline.Warnings, warnings...)
	}
	return pipeline, nil
}

func parseWorkflow(fullPath, displayPath string) (provider.Workflow, []provider.Warning, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		return provider.Workflow{}, nil, fmt.Errorf("open workflow %q: %w", displayPath, err)
	}
	defer f.Close()
	return decodeWorkflow(f, displayPath)
}

func decodeWorkflow(r io.Reader, displayPath string) (provider.Workflow, []provider.Warning, error) {
	decoder := yaml.NewDecoder(r)

	var wfDoc workflowDocument
	if err := decoder.Decode(&wfDoc); err != nil {
		return provider.Workflow{}, nil, fmt.Errorf("parse workflow %q: %w", displayPath, err)
	}

	wf := provider.Workflow{
		Path: displayPath,
		Name: wfDoc.Name,
		Env:  convertEnv(wfDoc.Env),
		Defaults: provider.Defaults{
			RunShell:         wfDoc.Defaults.Run.Shell,
			WorkingDirectory: wfDoc.Defaults.Run.WorkingDirectory,
		},
	}

	if wf.Name == "" {
		wf.Name = filepath.Base(displayPath)
	}

	warnings := make([]provider.Warning, 0)

	trigger, triggerWarnings, err := decodeTrigger(&wfDoc.On, displayPath)
	if err != nil {
		return provider.Workflow{}, nil, err
	}
	wf.Trigger = trigger
	warnings = append(warnings, triggerWarnings...)

	jobIDs := make([]string, 0, len(wfDoc.Jobs))
	for id := range wfDoc.Jobs {
		jobIDs = append(jobIDs, id)
	}
	sort.Strings(jobIDs)

	wf.Jobs = make([]provider.Job, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		jobDoc := wfDoc.Jobs[jobID]
		job := provider.Job{
			RawID: jobID,
			Name:  jobDoc.Name,
			If:    jobDoc.If,
			Env:   convertEnv(jobDoc.Env),
			Defaults: provider.Defaults{
				RunShell:         jobDoc.Defaults.Run.Shell,
				WorkingDirectory: jobDoc.Defaults.Run.WorkingDirectory,
			},
		}
		if job.Name == "" {
			job.Name = jobID
		}

		needs, err := decodeNeeds(&jobDoc.Needs)
		if err != nil {
			return provider.Workflow{}, nil, fmt.Errorf("workflow %q job %q: %w", displayPath, jobID, err)
		}
		job.Needs = needs

		matrix, matrixWarnings, err := decodeMatrix(&jobDoc.Strategy.Matrix, displayPath, jobID)
		if err != nil {
			return provider.Workflow{}, nil, err
		}
		job.Matrix = matrix
		warnings = append(warnings, matrixWarnings...)

		if jobDoc.Services != nil {
			warnings = append(warnings, provider.Warning{
				Workflow: displayPath,
				Job:      jobID,
				Message:  "services are not supported",
			})
		}
		if jobDoc.Container != nil {
			warnings = append(warnings, provider.Warning{
				Workflow: displayPath,
				Job:      jobID,
				Message:  "container jobs are not supported",
			})
		}

		job.Steps = make([]provider.Step, 0, len(jobDoc.Steps))
		for idx, stepDoc := range jobDoc.Steps {
			step := provider.Step{
				Name:             stepDoc.Name,
				Run:              stepDoc.Run,
				Uses:             stepDoc.Uses,
				With:             convertEnv(stepDoc.With),
				If:               stepDoc.If,
				Env:              convertEnv(stepDoc.Env),
				Shell:            stepDoc.Shell,
				WorkingDirectory: stepDoc.WorkingDirectory,
			}
			if step.Name == "" {
				if step.Uses != "" {
					step.Name = step.Uses
				} else {
					step.Name = fmt.Sprintf("step %d", idx+1)
				}
			}
			job.Steps = append(job.Steps, step)
		}

		wf.Jobs = append(wf.Jobs, job)
	}

	return wf, warnings, nil
}

// decodeTrigger accepts the three shapes the `on:` key takes in practice:
// a single event name, a list of event names, or a mapping from event name
// to its filters. Unknown event kinds produce a warning, not an error, so a
// workflow keeps loading even when it also reacts to kinds this engine
// never synthesizes.
func decodeTrigger(node *yaml.Node, displayPath string) (provider.Trigger, []provider.Warning, error) {
	var trigger provider.Trigger
	if node == nil || node.Kind == 0 {
		return trigger, nil, nil
	}

	var warnings []provider.Warning
	unknown := func(kind string) {
		warnings = append(warnings, provider.Warning{
			Workflow: displayPath,
			Message:  fmt.Sprintf("trigger %q is not supported", kind),
		})
	}

	switch node.Kind {
	case yaml.ScalarNode:
		applyBareTrigger(&trigger, node.Value, unknown)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			applyBareTrigger(&trigger, item.Value, unknown)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			value := node.Content[i+1]
			switch key {
			case "push":
				branches, err := decodeBranchFilter(value)
				if err != nil {
					return provider.Trigger{}, nil, fmt.Errorf("workflow %q trigger push: %w", displayPath, err)
				}
				trigger.Push = &provider.PushTrigger{Branches: branches}
			case "pull_request":
				branches, err := decodeBranchFilter(value)
				if err != nil {
					return provider.Trigger{}, nil, fmt.Errorf("workflow %q trigger pull_request: %w", displayPath, err)
				}
				trigger.PullRequest = &provider.PullRequestTrigger{Branches: branches}
			default:
				unknown(key)
			}
		}
	default:
		return provider.Trigger{}, nil, fmt.Errorf("workflow %q: unsupported `on` declaration", displayPath)
	}

	return trigger, warnings, nil
}

func applyBareTrigger(trigger *provider.Trigger, kind string, unknown func(string)) {
	switch kind {
	case "push":
		trigger.Push = &provider.PushTrigger{}
	case "pull_request":
		trigger.PullRequest = &provider.PullRequestTrigger{}
	default:
		unknown(kind)
	}
}

func decodeBranchFilter(node *yaml.Node) ([]string, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		// `push:` with no filters decodes as a null scalar.
		if node.Tag == "!!null" {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected scalar %q", node.Value)
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value != "branches" {
				continue
			}
			value := node.Content[i+1]
			if value.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("branches must be a list")
			}
			branches := make([]string, 0, len(value.Content))
			for _, item := range value.Content {
				branches = append(branches, item.Value)
			}
			return branches, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected trigger filter shape")
	}
}

// decodeMatrix preserves axis and value declaration order, which a plain
// map decode would lose. Expanded context names derive from that order, so
// it must be stable.
func decodeMatrix(node *yaml.Node, displayPath, jobID string) (provider.Matrix, []provider.Warning, error) {
	var matrix provider.Matrix
	if node == nil || node.Kind == 0 {
		return matrix, nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return matrix, nil, fmt.Errorf("workflow %q job %q: strategy.matrix must be a mapping", displayPath, jobID)
	}

	var warnings []provider.Warning
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]

		if key == "include" || key == "exclude" {
			warnings = append(warnings, provider.Warning{
				Workflow: displayPath,
				Job:      jobID,
				Message:  fmt.Sprintf("matrix %s is not supported", key),
			})
			continue
		}
		if value.Kind != yaml.SequenceNode {
			return provider.Matrix{}, nil, fmt.Errorf("workflow %q job %q: matrix axis %q must be a list", displayPath, jobID, key)
		}

		axis := provider.Axis{Name: key, Values: make([]string, 0, len(value.Content))}
		for _, item := range value.Content {
			axis.Values = append(axis.Values, item.Value)
		}
		matrix.Axes = append(matrix.Axes, axis)
	}

	return matrix, warnings, nil
}

func decodeNeeds(node *yaml.Node) ([]string, error) {
	if node == nil || node.Kind == 0 {
		return nil, nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		needs := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			needs = append(needs, item.Value)
		}
		return needs, nil
	default:
		return nil, fmt.Errorf("needs must be a job id or a list of job ids")
	}
}

type workflowDocument struct {
	Name     string                 `yaml:"name"`
	On       yaml.Node              `yaml:"on"`
	Env      map[string]interface{} `yaml:"env"`
	Defaults defaultsDocument       `yaml:"defaults"`
	Jobs     map[string]jobDocument `yaml:"jobs"`
}

type defaultsDocument struct {
	Run runDefaults `yaml:"run"`
}

type runDefaults struct {
	Shell            string `yaml:"shell"`
	WorkingDirectory string `yaml:"working-directory"`
}

type jobDocument struct {
	Name      string                 `yaml:"name"`
	Needs     yaml.Node              `yaml:"needs"`
	Env       map[string]interface{} `yaml:"env"`
	Defaults  defaultsDocument       `yaml:"defaults"`
	Steps     []stepDocument         `yaml:"steps"`
	Services  interface{}            `yaml:"services"`
	Container interface{}            `yaml:"container"`
	Strategy  strategyDocument       `yaml:"strategy"`
	If        string                 `yaml:"if"`
}

type strategyDocument struct {
	Matrix yaml.Node `yaml:"matrix"`
}

type stepDocument struct {
	Name             string                 `yaml:"name"`
	Run              string                 `yaml:"run"`
	Uses             string                 `yaml:"uses"`
	With             map[string]interface{} `yaml:"with"`
	Env              map[string]interface{} `yaml:"env"`
	Shell            string                 `yaml:"shell"`
	WorkingDirectory string                 `yaml:"working-directory"`
	If               string                 `yaml:"if"`
}

func convertEnv(input map[string]interface{}) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = fmt.Sprint(input[k])
	}
	return out
}

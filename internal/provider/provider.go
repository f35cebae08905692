package provider

// Pipeline represents a parsed set of workflows from a provider.
type Pipeline struct {
	Provider  string     `json:"provider"`
	Workflows []Workflow `json:"workflows"`
	Warnings  []Warning  `json:"warnings"`
}

// Warning captures non-fatal issues encountered while parsing workflows.
type Warning struct {
	Workflow string `json:"workflow"`
	Job      string `json:"job"`
	Message  string `json:"message"`
}

// Workflow mirrors a workflow file: trigger declaration, shared environment,
// defaults, and the jobs it defines.
type Workflow struct {
	Path     string            `json:"path"`
	Name     string            `json:"name"`
	Trigger  Trigger           `json:"trigger"`
	Env      map[string]string `json:"env,omitempty"`
	Defaults Defaults          `json:"defaults"`
	Jobs     []Job             `json:"jobs"`
}

// Trigger declares which event kinds start the workflow. A nil field means
// the workflow does not respond to that kind.
type Trigger struct {
	Push        *PushTrigger        `json:"push,omitempty"`
	PullRequest *PullRequestTrigger `json:"pull_request,omitempty"`
}

// PushTrigger filters push events by branch. An empty Branches list matches
// every branch.
type PushTrigger struct {
	Branches []string `json:"branches,omitempty"`
}

// PullRequestTrigger filters pull_request events by target branch.
type PullRequestTrigger struct {
	Branches []string `json:"branches,omitempty"`
}

// Defaults capture shared configuration for jobs and steps.
type Defaults struct {
	RunShell         string `json:"run_shell,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
}

// Job represents a workflow job with resolved steps, its dependency set, and
// an optional build matrix.
type Job struct {
	Name     string            `json:"name"`
	RawID    string            `json:"id"`
	Needs    []string          `json:"needs,omitempty"`
	If       string            `json:"if,omitempty"`
	Matrix   Matrix            `json:"matrix"`
	Env      map[string]string `json:"env,omitempty"`
	Defaults Defaults          `json:"defaults"`
	Steps    []Step            `json:"steps"`
}

// Matrix holds build-matrix axes in declaration order. Order matters: the
// names of expanded execution contexts derive from it.
type Matrix struct {
	Axes []Axis `json:"axes,omitempty"`
}

// Axis is one matrix dimension with its values in declaration order.
type Axis struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Empty reports whether the job declares no matrix at all.
func (m Matrix) Empty() bool {
	return len(m.Axes) == 0
}

// Step represents an individual workflow step: either a shell command (Run)
// or an invocation of a named action (Uses) with inputs (With).
type Step struct {
	Name             string            `json:"name"`
	Run              string            `json:"run,omitempty"`
	Uses             string            `json:"uses,omitempty"`
	With             map[string]string `json:"with,omitempty"`
	If               string            `json:"if,omitempty"`
	Shell            string            `json:"shell,omitempty"`
	WorkingDirectory string            `json:"working_directory,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
}

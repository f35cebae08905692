// Package engine schedules execution contexts over the job dependency
// graph. Contexts with no unmet dependencies run in parallel; a dependent
// context starts only once every dependency succeeded. Failures never cross
// context boundaries except through that gate: a failed build stops its
// dependents from starting but running siblings finish undisturbed.
package engine

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"time"

	"github.com/gantryci/gantry/internal/event"
	"github.com/gantryci/gantry/internal/expr"
	"github.com/gantryci/gantry/internal/matrix"
	"github.com/gantryci/gantry/internal/provider"
	"github.com/gantryci/gantry/internal/report"
	"github.com/gantryci/gantry/internal/runner"
	"github.com/rs/zerolog"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownDependency indicates a job needs a job id that does not
	// exist in its workflow.
	ErrUnknownDependency = errors.New("unknown job dependency")
	// ErrDependencyCycle indicates the needs graph contains a cycle.
	ErrDependencyCycle = errors.New("job dependency cycle")
)

// Options configure a pipeline run.
type Options struct {
	Runner      *runner.Runner
	Actions     *runner.Actions
	Event       event.Event
	RunNumber   int
	Parallelism int
	Log         zerolog.Logger
}

// Engine executes workflows for one event.
type Engine struct {
	opts Options
}

// New creates an engine.
func New(opts Options) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	return &Engine{opts: opts}
}

// RunResult bundles per-context results, in deterministic build order, with
// the aggregated summary.
type RunResult struct {
	Contexts []report.ContextResult `json:"contexts"`
	Summary  report.Summary         `json:"summary"`
}

// node is one execution context in the scheduling graph.
type node struct {
	spec       runner.ContextSpec
	status     report.Status
	reason     string
	result     report.ContextResult
	inDegree   int
	dependents []*node
	depFailed  bool
	depSkipped bool
}

type completion struct {
	n   *node
	res report.ContextResult
}

// synthesize builds a result record for a context that never ran.
func (n *node) synthesize() report.ContextResult {
	return report.ContextResult{
		WorkflowPath: n.spec.Workflow.Path,
		WorkflowName: n.spec.Workflow.Name,
		JobID:        n.spec.Job.RawID,
		JobName:      n.spec.Job.Name,
		Context:      n.spec.Name,
		Matrix:       n.spec.Assignment.Map(),
		Status:       n.status,
		Reason:       n.reason,
	}
}

// Plan expands workflows into contexts and evaluates their admission for
// the event without executing anything.
func (e *Engine) Plan(workflows []provider.Workflow) ([]report.ContextResult, error) {
	nodes, err := e.buildNodes(workflows)
	if err != nil {
		return nil, err
	}
	contexts := make([]report.ContextResult, 0, len(nodes))
	for _, n := range nodes {
		contexts = append(contexts, n.synthesize())
	}
	return contexts, nil
}

// Run expands, gates, and executes all workflows, returning every context's
// result. Configuration errors (unknown needs, cycles) fail the call;
// step failures are reported through statuses, not the error return.
func (e *Engine) Run(ctx context.Context, workflows []provider.Workflow) (RunResult, error) {
	nodes, err := e.buildNodes(workflows)
	if err != nil {
		return RunResult{}, err
	}

	started := time.Now()
	e.schedule(ctx, nodes)

	return e.collect(workflows, nodes, time.Since(started)), nil
}

// buildNodes expands every job into its matrix contexts, evaluates the
// trigger and job-level guard, and wires the dependency edges.
func (e *Engine) buildNodes(workflows []provider.Workflow) ([]*node, error) {
	var nodes []*node
	for _, wf := range workflows {
		if err := validateNeeds(wf); err != nil {
			return nil, err
		}
		triggered := event.Matches(e.opts.Event, wf.Trigger)
		byJob := make(map[string][]*node, len(wf.Jobs))

		for _, job := range wf.Jobs {
			for _, assignment := range matrix.Expand(job.Matrix) {
				scope := expr.Scope{
					EventName: string(e.opts.Event.Kind),
					Ref:       e.opts.Event.Ref(),
					RefName:   e.opts.Event.Branch,
					RunNumber: e.opts.RunNumber,
					Matrix:    assignment.Map(),
					RunnerOS:  runnerOS(assignment),
				}
				n := &node{
					spec: runner.ContextSpec{
						Workflow:   wf,
						Job:        job,
						Assignment: assignment,
						Name:       job.RawID + assignment.Suffix(),
						Scope:      scope,
					},
					status: report.StatusPending,
				}

				if !triggered {
					n.status = report.StatusSkipped
					n.reason = "trigger did not match event"
				} else if job.If != "" {
					admitted, err := expr.Eval(job.If, scope)
					if err != nil {
						return nil, zerr.With(zerr.Wrap(err, "evaluate job condition"), "job", job.RawID)
					}
					if !admitted {
						n.status = report.StatusSkipped
						n.reason = "job condition false"
					}
				}

				byJob[job.RawID] = append(byJob[job.RawID], n)
				nodes = append(nodes, n)
			}
		}

		// A context of a dependent job waits on every context of each
		// needed job.
		for _, job := range wf.Jobs {
			for _, needed := range job.Needs {
				depNodes, ok := byJob[needed]
				if !ok {
					return nil, zerr.With(zerr.With(ErrUnknownDependency, "job", job.RawID), "needs", needed)
				}
				for _, n := range byJob[job.RawID] {
					n.inDegree += len(depNodes)
					for _, dep := range depNodes {
						dep.dependents = append(dep.dependents, n)
					}
				}
			}
		}
	}
	return nodes, nil
}

// validateNeeds rejects workflows whose needs graph references unknown jobs
// or contains a cycle, before any context is built.
func validateNeeds(wf provider.Workflow) error {
	needs := make(map[string][]string, len(wf.Jobs))
	for _, job := range wf.Jobs {
		needs[job.RawID] = job.Needs
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(needs))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return zerr.With(ErrDependencyCycle, "job", id)
		}
		state[id] = visiting
		for _, dep := range needs[id] {
			if _, ok := needs[dep]; !ok {
				return zerr.With(zerr.With(ErrUnknownDependency, "job", id), "needs", dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for _, job := range wf.Jobs {
		if err := visit(job.RawID); err != nil {
			return err
		}
	}
	return nil
}

// schedule runs the ready/active loop: dispatch every unblocked pending
// context, collect completions, and release dependents as their
// dependencies reach a terminal state.
func (e *Engine) schedule(ctx context.Context, nodes []*node) {
	results := make(chan completion, e.opts.Parallelism)
	var g errgroup.Group
	g.SetLimit(e.opts.Parallelism)

	var ready []*node
	active := 0

	// Contexts skipped at build time (trigger mismatch, job guard) release
	// their dependents before anything runs; those skip in turn rather than
	// dangle as pending.
	for _, n := range nodes {
		if n.status == report.StatusSkipped {
			propagateSkip(n)
		}
	}

	for _, n := range nodes {
		if n.status == report.StatusPending && n.inDegree == 0 && !n.depFailed {
			ready = append(ready, n)
		}
	}

	for len(ready) > 0 || active > 0 {
		for len(ready) > 0 && active < e.opts.Parallelism {
			n := ready[0]
			ready = ready[1:]
			n.status = report.StatusRunning
			active++
			e.opts.Log.Debug().Str("context", n.spec.Name).Msg("context started")
			g.Go(func() error {
				results <- completion{n: n, res: e.opts.Runner.RunContext(ctx, n.spec)}
				return nil
			})
		}

		if active == 0 {
			break
		}

		done := <-results
		active--
		done.n.result = done.res
		done.n.status = done.res.Status
		e.opts.Log.Debug().
			Str("context", done.n.spec.Name).
			Str("status", string(done.n.status)).
			Dur("duration", done.res.Duration).
			Msg("context finished")

		if done.n.status == report.StatusFailed {
			for _, d := range done.n.dependents {
				markBlocked(d)
			}
			continue
		}

		for _, d := range done.n.dependents {
			d.inDegree--
			if d.status != report.StatusPending || d.inDegree > 0 || d.depFailed {
				continue
			}
			if d.depSkipped {
				d.status = report.StatusSkipped
				d.reason = "dependency skipped"
				propagateSkip(d)
				continue
			}
			ready = append(ready, d)
		}
	}

	_ = g.Wait()
}

// propagateSkip releases the dependents of a skipped context. A dependent
// whose dependencies have all settled, at least one of them skipped,
// becomes skipped itself and propagates further.
func propagateSkip(skipped *node) {
	queue := []*node{skipped}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range cur.dependents {
			d.depSkipped = true
			d.inDegree--
			if d.status == report.StatusPending && d.inDegree == 0 && !d.depFailed {
				d.status = report.StatusSkipped
				d.reason = "dependency skipped"
				queue = append(queue, d)
			}
		}
	}
}

// markBlocked pins a context and its transitive dependents in Pending: a
// failed dependency prevents them from ever starting, and that is reported
// as blocked rather than skipped.
func markBlocked(n *node) {
	if n.status != report.StatusPending || n.depFailed {
		return
	}
	n.depFailed = true
	n.reason = "blocked by failed dependency"
	for _, d := range n.dependents {
		markBlocked(d)
	}
}

func (e *Engine) collect(workflows []provider.Workflow, nodes []*node, elapsed time.Duration) RunResult {
	result := RunResult{Contexts: make([]report.ContextResult, 0, len(nodes))}
	summary := &result.Summary
	summary.TotalWorkflows = len(workflows)
	summary.TotalContexts = len(nodes)
	summary.Duration = elapsed
	summary.DurationMS = elapsed.Milliseconds()

	for _, n := range nodes {
		res := n.result
		if res.Context == "" {
			res = n.synthesize()
		}
		summary.TotalSteps += len(res.Steps)

		switch res.Status {
		case report.StatusSucceeded:
			summary.Succeeded++
		case report.StatusFailed:
			summary.Failed++
			summary.ExitCode = 1
		case report.StatusSkipped:
			summary.Skipped++
		case report.StatusPending:
			summary.Blocked++
			summary.ExitCode = 1
		}
		result.Contexts = append(result.Contexts, res)
	}

	if e.opts.Actions != nil {
		if released := e.opts.Actions.Released(); len(released) > 0 {
			summary.Release = &report.ReleaseResult{
				Tag:        released[0].Tag,
				Title:      released[0].Title,
				Prerelease: released[0].Prerelease,
			}
		}
	}
	return result
}

// runnerOS maps the matrix operating-system value to the runner.os form
// conditions compare against.
func runnerOS(assignment matrix.Assignment) string {
	value, ok := assignment.Value("os")
	if !ok {
		value, _ = assignment.Value("operating-system")
	}
	switch {
	case strings.HasPrefix(value, "ubuntu"), strings.HasPrefix(value, "linux"):
		return "Linux"
	case strings.HasPrefix(value, "macos"):
		return "macOS"
	case strings.HasPrefix(value, "windows"):
		return "Windows"
	}
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	default:
		return "Linux"
	}
}

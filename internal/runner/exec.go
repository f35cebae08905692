package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gantryci/gantry/internal/expr"
	"github.com/gantryci/gantry/internal/matrix"
	"github.com/gantryci/gantry/internal/provider"
	"github.com/gantryci/gantry/internal/report"
	"github.com/rs/zerolog"
)

// Options configure how the runner executes steps.
type Options struct {
	Root      string
	Stdout    io.Writer
	Stderr    io.Writer
	Verbose   bool
	DryRun    bool
	TailLines int
	Env       []string
	Now       func() time.Time
	Log       zerolog.Logger
	Actions   *Actions
}

// Runner executes the steps of one execution context in declared order.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 20
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Actions == nil {
		opts.Actions = &Actions{Log: opts.Log}
	}
	return &Runner{opts: opts}
}

// ContextSpec describes one execution context: a job narrowed to a single
// matrix assignment, plus the scope its conditions evaluate against.
type ContextSpec struct {
	Workflow   provider.Workflow
	Job        provider.Job
	Assignment matrix.Assignment
	Name       string
	Scope      expr.Scope
}

// RunContext executes the context's steps strictly in declared order. A
// step whose condition is false is skipped, not an error. The first failing
// step fails the whole context immediately; remaining steps do not run.
func (r *Runner) RunContext(ctx context.Context, spec ContextSpec) report.ContextResult {
	log := r.opts.Log.With().Str("context", spec.Name).Logger()

	ctxResult := report.ContextResult{
		WorkflowPath: spec.Workflow.Path,
		WorkflowName: spec.Workflow.Name,
		JobID:        spec.Job.RawID,
		JobName:      spec.Job.Name,
		Context:      spec.Name,
		Matrix:       spec.Assignment.Map(),
		Status:       report.StatusRunning,
	}

	started := r.opts.Now()
	for _, step := range spec.Job.Steps {
		result := report.StepResult{
			WorkflowPath: spec.Workflow.Path,
			WorkflowName: spec.Workflow.Name,
			JobName:      spec.Job.Name,
			Context:      spec.Name,
			StepName:     step.Name,
			StepRun:      step.Run,
			StepUses:     step.Uses,
			DryRun:       r.opts.DryRun,
		}

		guard, err := expr.Eval(step.If, spec.Scope)
		if err != nil {
			result.Status = report.StatusFailed
			result.Stderr = fmt.Sprintf("evaluate condition %q: %v", step.If, err)
			result.ExitCode = 1
			ctxResult.Steps = append(ctxResult.Steps, result)
			ctxResult.Status = report.StatusFailed
			break
		}
		if !guard {
			result.Status = report.StatusSkipped
			log.Debug().Str("step", step.Name).Str("condition", step.If).Msg("step condition false, skipping")
			ctxResult.Steps = append(ctxResult.Steps, result)
			continue
		}

		if r.opts.DryRun {
			result.Status = report.StatusSkipped
			ctxResult.Steps = append(ctxResult.Steps, result)
			continue
		}

		start := r.opts.Now()
		err = r.runStep(ctx, spec, step, &result)
		result.Duration = r.opts.Now().Sub(start)
		result.DurationMS = result.Duration.Milliseconds()

		if err != nil {
			result.Status = report.StatusFailed
			result.Stdout = tailLines(result.Stdout, r.opts.TailLines)
			result.Stderr = tailLines(result.Stderr, r.opts.TailLines)
			log.Warn().Str("step", step.Name).Int("exit_code", result.ExitCode).Msg("step failed")
			ctxResult.Steps = append(ctxResult.Steps, result)
			ctxResult.Status = report.StatusFailed
			break
		}

		if result.Status == "" {
			result.Status = report.StatusSucceeded
		}
		log.Debug().Str("step", step.Name).Dur("duration", result.Duration).Msg("step finished")
		ctxResult.Steps = append(ctxResult.Steps, result)
	}

	if ctxResult.Status == report.StatusRunning {
		ctxResult.Status = report.StatusSucceeded
	}
	ctxResult.Duration = r.opts.Now().Sub(started)
	ctxResult.DurationMS = ctxResult.Duration.Milliseconds()
	return ctxResult
}

func (r *Runner) runStep(ctx context.Context, spec ContextSpec, step provider.Step, result *report.StepResult) error {
	if step.Uses != "" {
		return r.runAction(ctx, spec, step, result)
	}

	env := mergeEnv(r.opts.Env,
		interpolateMap(spec.Workflow.Env, spec.Scope),
		interpolateMap(spec.Job.Env, spec.Scope),
		interpolateMap(step.Env, spec.Scope),
		runtimeEnv(spec))
	step.Run = expr.Interpolate(step.Run, spec.Scope)
	cmdArgs, err := buildCommand(step, spec.Job, spec.Workflow)
	if err != nil {
		result.Stderr = err.Error()
		result.ExitCode = 127
		return err
	}

	workingDir, err := resolveWorkingDirectory(r.opts.Root, spec.Workflow, spec.Job, step)
	if err != nil {
		result.Stderr = err.Error()
		result.ExitCode = 127
		return err
	}

	cmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = workingDir
	cmd.Env = env

	var stdoutBuf, stderrBuf strings.Builder
	if r.opts.Verbose {
		cmd.Stdout = io.MultiWriter(r.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(r.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	err = cmd.Run()
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.ExitCode = exitCode(err)
	return err
}

func (r *Runner) runAction(ctx context.Context, spec ContextSpec, step provider.Step, result *report.StepResult) error {
	workingDir, err := resolveWorkingDirectory(r.opts.Root, spec.Workflow, spec.Job, step)
	if err != nil {
		result.Stderr = err.Error()
		result.ExitCode = 127
		return err
	}

	output, skipped, err := r.opts.Actions.Run(ctx, step.Uses, interpolateMap(step.With, spec.Scope), workingDir)
	result.Stdout = output
	if err != nil {
		result.Stderr = err.Error()
		result.ExitCode = 1
		return err
	}
	if skipped {
		result.Status = report.StatusSkipped
	}
	return nil
}

func buildCommand(step provider.Step, job provider.Job, wf provider.Workflow) ([]string, error) {
	shell := strings.TrimSpace(step.Shell)
	if shell == "" {
		shell = strings.TrimSpace(job.Defaults.RunShell)
	}
	if shell == "" {
		shell = strings.TrimSpace(wf.Defaults.RunShell)
	}
	return commandArgs(shell, step.Run)
}

func commandArgs(shellSpec string, script string) ([]string, error) {
	if shellSpec == "" {
		if runtime.GOOS == "windows" {
			return []string{"cmd", "/C", script}, nil
		}
		return []string{"bash", "-c", script}, nil
	}

	fields := strings.Fields(shellSpec)
	shell := fields[0]
	args := append([]string{}, fields[1:]...)
	base := strings.ToLower(filepath.Base(shell))

	switch base {
	case "bash", "zsh", "ksh", "fish", "sh":
		args = append(args, "-c", script)
		return append([]string{shell}, args...), nil
	case "cmd", "cmd.exe":
		args = append(args, "/C", script)
		return append([]string{shell}, args...), nil
	case "pwsh", "powershell", "powershell.exe":
		args = append(args, "-Command", script)
		return append([]string{shell}, args...), nil
	case "python", "python3", "python.exe":
		args = append(args, "-c", script)
		return append([]string{shell}, args...), nil
	default:
		args = append(args, script)
		return append([]string{shell}, args...), nil
	}
}

func resolveWorkingDirectory(root string, wf provider.Workflow, job provider.Job, step provider.Step) (string, error) {
	candidates := []string{step.WorkingDirectory, job.Defaults.WorkingDirectory, wf.Defaults.WorkingDirectory}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}

		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, candidate)
		}
		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("working directory %q not found", candidate)
			}
			return "", fmt.Errorf("stat working directory %q: %w", candidate, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("working directory %q is not a directory", candidate)
		}
		return candidate, nil
	}
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
	}
	return root, nil
}

// runtimeEnv exposes the execution context to shell steps: the event, run
// number, and each matrix assignment as MATRIX_<AXIS>.
func runtimeEnv(spec ContextSpec) map[string]string {
	env := map[string]string{
		"GANTRY_EVENT":      spec.Scope.EventName,
		"GANTRY_REF":        spec.Scope.Ref,
		"GANTRY_RUN_NUMBER": fmt.Sprint(spec.Scope.RunNumber),
		"GANTRY_CONTEXT":    spec.Name,
	}
	for _, pair := range spec.Assignment {
		key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(pair.Axis))
		env["MATRIX_"+key] = pair.Value
	}
	return env
}

func interpolateMap(values map[string]string, scope expr.Scope) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = expr.Interpolate(v, scope)
	}
	return out
}

func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlays)*4)
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			key := kv[:idx]
			envMap[key] = kv[idx+1:]
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, envMap[k]))
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}

func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}

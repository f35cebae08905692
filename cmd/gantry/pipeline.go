package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/discovery"
	"github.com/gantryci/gantry/internal/event"
	"github.com/gantryci/gantry/internal/provider"
	"github.com/gantryci/gantry/internal/provider/filter"
	githubprovider "github.com/gantryci/gantry/internal/provider/github"
	"github.com/gantryci/gantry/internal/version"
)

// pipelineData bundles parsed workflows with warnings and metadata.
type pipelineData struct {
	provider  string
	workflows []provider.Workflow
	warnings  []provider.Warning
}

func workingRoot() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return root, nil
}

func loadPipeline(root string, cfg config.Config) (pipelineData, error) {
	providerName, err := resolveProvider(cfg.Provider)
	if err != nil {
		return pipelineData{}, err
	}

	paths, err := discovery.Workflows(root, cfg.Workflows)
	if err != nil {
		if errors.Is(err, discovery.ErrNoWorkflows) {
			return pipelineData{}, fmt.Errorf("no workflows found; specify --workflow to provide files")
		}
		return pipelineData{}, err
	}

	switch providerName {
	case config.ProviderGitHub:
		parser := githubprovider.NewParser(root)
		pipeline, err := parser.Parse(paths)
		if err != nil {
			return pipelineData{}, err
		}
		warnings := append(pipeline.Warnings, detectVersionWarnings(pipeline.Workflows, cfg)...)
		return pipelineData{provider: providerName, workflows: pipeline.Workflows, warnings: warnings}, nil
	default:
		return pipelineData{}, fmt.Errorf("provider %q not implemented", providerName)
	}
}

func resolveProvider(name string) (string, error) {
	switch name {
	case "", config.ProviderAuto, config.ProviderGitHub:
		return config.ProviderGitHub, nil
	default:
		return "", fmt.Errorf("unknown provider %q", name)
	}
}

func applyFilters(data pipelineData, cfg config.Config) (pipelineData, error) {
	jobPatterns, err := filter.Compile(cfg.Jobs)
	if err != nil {
		return pipelineData{}, err
	}
	onlyPatterns, err := filter.Compile(cfg.OnlySteps)
	if err != nil {
		return pipelineData{}, err
	}
	skipPatterns, err := filter.Compile(cfg.SkipSteps)
	if err != nil {
		return pipelineData{}, err
	}

	filtered := filter.FilterWorkflows(data.workflows, jobPatterns, onlyPatterns, skipPatterns)
	return pipelineData{provider: data.provider, workflows: filtered, warnings: data.warnings}, nil
}

func parseEvent(cfg config.Config) (event.Event, error) {
	switch cfg.Event {
	case config.EventPush:
		return event.Event{Kind: event.KindPush, Branch: cfg.Branch}, nil
	case config.EventPullRequest:
		return event.Event{Kind: event.KindPullRequest, Branch: cfg.Branch}, nil
	default:
		// Unknown kinds are legal: trigger evaluation fails closed and
		// every workflow is skipped.
		return event.Event{Kind: event.Kind(cfg.Event), Branch: cfg.Branch}, nil
	}
}

// detectVersionWarnings compares each matrix *-version axis against the
// locally installed interpreter and warns on mismatch.
func detectVersionWarnings(workflows []provider.Workflow, cfg config.Config) []provider.Warning {
	if !cfg.Warn.VersionMismatch {
		return nil
	}

	var warnings []provider.Warning
	for _, wf := range workflows {
		for _, job := range wf.Jobs {
			for _, axis := range job.Matrix.Axes {
				tool, ok := strings.CutSuffix(axis.Name, "-version")
				if !ok || !version.Supported(tool) {
					continue
				}
				info, err := version.Detect(tool)
				for _, required := range axis.Values {
					msg := buildVersionWarning(tool, required, info.Version, err)
					if msg == "" {
						continue
					}
					warnings = append(warnings, provider.Warning{Workflow: wf.Path, Job: job.RawID, Message: msg})
				}
			}
		}
	}
	return warnings
}

func buildVersionWarning(name, required, actual string, detectErr error) string {
	if detectErr != nil {
		if version.Missing(detectErr) {
			return fmt.Sprintf("%s executable not found; required %s", name, required)
		}
		return fmt.Sprintf("unable to detect %s version: %v", name, detectErr)
	}
	if !version.CompareMajorMinor(required, actual) {
		return fmt.Sprintf("%s version mismatch: matrix requests %s but found %s", name, required, actual)
	}
	return ""
}

func collapseWarnings(warnings []provider.Warning) []string {
	seen := make(map[string]struct{}, len(warnings))
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		var b strings.Builder
		if w.Workflow != "" {
			b.WriteString(w.Workflow)
			b.WriteString(": ")
		}
		if w.Job != "" {
			b.WriteString(w.Job)
			b.WriteString(": ")
		}
		b.WriteString(w.Message)
		msg := b.String()
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}
	return out
}

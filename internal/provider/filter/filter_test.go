package filter

import (
	"testing"

	"github.com/gantryci/gantry/internal/provider"
)

func TestFilterWorkflowsByJob(t *testing.T) {
	wf := provider.Workflow{
		Path: "wf.yml",
		Name: "Package",
		Jobs: []provider.Job{
			{
				Name:  "Build distribution",
				RawID: "build",
				Steps: []provider.Step{{Name: "Build", Run: "make dist"}},
			},
			{
				Name:  "Publish release",
				RawID: "release",
				Steps: []provider.Step{{Name: "Publish", Uses: "gantry/create-release"}},
			},
		},
	}

	patterns, err := Compile([]string{"build"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	filtered := FilterWorkflows([]provider.Workflow{wf}, patterns, nil, nil)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(filtered))
	}
	if len(filtered[0].Jobs) != 1 || filtered[0].Jobs[0].RawID != "build" {
		t.Fatalf("expected only build job, got %+v", filtered[0].Jobs)
	}
}

func TestFilterWorkflowsSteps(t *testing.T) {
	wf := provider.Workflow{
		Path: "wf.yml",
		Name: "Package",
		Jobs: []provider.Job{
			{
				Name:  "Build",
				RawID: "build",
				Steps: []provider.Step{
					{Name: "Checkout", Uses: "actions/checkout"},
					{Name: "Lint", Run: "make lint"},
					{Name: "Unit", Run: "make test"},
				},
			},
		},
	}

	only, err := Compile([]string{"/make/"})
	if err != nil {
		t.Fatalf("compile only: %v", err)
	}
	skip, err := Compile([]string{"unit"})
	if err != nil {
		t.Fatalf("compile skip: %v", err)
	}

	filtered := FilterWorkflows([]provider.Workflow{wf}, nil, only, skip)
	if len(filtered) != 1 {
		t.Fatalf("expected workflow retained")
	}
	steps := filtered[0].Jobs[0].Steps
	if len(steps) != 1 {
		t.Fatalf("expected 1 step after filtering, got %d", len(steps))
	}
	if steps[0].Name != "Lint" {
		t.Fatalf("expected Lint step, got %s", steps[0].Name)
	}
}

func TestFilterStepsMatchUses(t *testing.T) {
	wf := provider.Workflow{
		Path: "wf.yml",
		Name: "Package",
		Jobs: []provider.Job{
			{
				Name:  "Build",
				RawID: "build",
				Steps: []provider.Step{
					{Name: "fetch", Uses: "actions/download-artifact"},
					{Name: "build", Run: "make dist"},
				},
			},
		},
	}

	only, err := Compile([]string{"download-artifact"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	filtered := FilterWorkflows([]provider.Workflow{wf}, nil, only, nil)
	if len(filtered) != 1 || len(filtered[0].Jobs[0].Steps) != 1 {
		t.Fatalf("expected uses match to survive, got %+v", filtered)
	}
	if filtered[0].Jobs[0].Steps[0].Uses != "actions/download-artifact" {
		t.Fatalf("unexpected step: %+v", filtered[0].Jobs[0].Steps[0])
	}
}

func TestFilterDropsStepsWithoutWork(t *testing.T) {
	wf := provider.Workflow{
		Path: "wf.yml",
		Name: "Package",
		Jobs: []provider.Job{
			{
				Name:  "Build",
				RawID: "build",
				Steps: []provider.Step{
					{Name: "comment only"},
					{Name: "real", Run: "make dist"},
				},
			},
		},
	}

	filtered := FilterWorkflows([]provider.Workflow{wf}, nil, nil, nil)
	if len(filtered[0].Jobs[0].Steps) != 1 {
		t.Fatalf("expected empty step dropped, got %+v", filtered[0].Jobs[0].Steps)
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := Compile([]string{"/(/"}); err == nil {
		t.Fatalf("expected compile error")
	}
}

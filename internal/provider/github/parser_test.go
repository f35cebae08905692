package github

import (
	"errors"
	"strings"
	"testing"
)

func TestParserParsePackageWorkflow(t *testing.T) {
	parser := NewParser(".")
	pipeline, err := parser.Parse([]string{"testdata/workflows/package.yml"})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if pipeline.Provider != ProviderName {
		t.Fatalf("expected provider %q, got %q", ProviderName, pipeline.Provider)
	}
	if len(pipeline.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", pipeline.Warnings)
	}
	if len(pipeline.Workflows) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(pipeline.Workflows))
	}

	wf := pipeline.Workflows[0]
	if wf.Name != "Package" {
		t.Fatalf("expected workflow name 'Package', got %q", wf.Name)
	}
	if wf.Trigger.Push == nil {
		t.Fatalf("expected push trigger")
	}
	if len(wf.Trigger.Push.Branches) != 1 || wf.Trigger.Push.Branches[0] != "main" {
		t.Fatalf("unexpected push branches: %v", wf.Trigger.Push.Branches)
	}
	if wf.Trigger.PullRequest == nil {
		t.Fatalf("expected pull_request trigger")
	}
	if len(wf.Trigger.PullRequest.Branches) != 0 {
		t.Fatalf("expected unfiltered pull_request trigger, got %v", wf.Trigger.PullRequest.Branches)
	}

	if len(wf.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(wf.Jobs))
	}

	build := wf.Jobs[0]
	if build.RawID != "build" {
		t.Fatalf("expected jobs sorted by id, got %q first", build.RawID)
	}
	if build.Name != "Build distribution" {
		t.Fatalf("unexpected job name %q", build.Name)
	}
	if len(build.Matrix.Axes) != 2 {
		t.Fatalf("expected 2 matrix axes, got %d", len(build.Matrix.Axes))
	}
	if build.Matrix.Axes[0].Name != "os" || build.Matrix.Axes[1].Name != "python-version" {
		t.Fatalf("matrix axes out of declaration order: %v", build.Matrix.Axes)
	}
	if len(build.Matrix.Axes[0].Values) != 3 {
		t.Fatalf("expected 3 os values, got %v", build.Matrix.Axes[0].Values)
	}
	if build.Matrix.Axes[1].Values[0] != "3.12" {
		t.Fatalf("expected quoted version preserved as string, got %v", build.Matrix.Axes[1].Values)
	}
	if len(build.Steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(build.Steps))
	}
	if build.Steps[0].Name != "actions/checkout@v4" {
		t.Fatalf("expected uses fallback name, got %q", build.Steps[0].Name)
	}
	if build.Steps[1].With["python-version"] != "${{ matrix.python-version }}" {
		t.Fatalf("unexpected setup-python inputs: %v", build.Steps[1].With)
	}
	if build.Steps[3].If != "matrix.os == 'windows-latest'" {
		t.Fatalf("unexpected step condition %q", build.Steps[3].If)
	}
	if build.Steps[4].With["name"] != "dist-${{ matrix.os }}" {
		t.Fatalf("unexpected artifact name input: %v", build.Steps[4].With)
	}

	release := wf.Jobs[1]
	if release.RawID != "release" {
		t.Fatalf("expected release job, got %q", release.RawID)
	}
	if len(release.Needs) != 1 || release.Needs[0] != "build" {
		t.Fatalf("unexpected needs: %v", release.Needs)
	}
	if release.If != "github.event_name == 'push'" {
		t.Fatalf("unexpected job condition %q", release.If)
	}
	if !release.Matrix.Empty() {
		t.Fatalf("expected release job without matrix")
	}
}

func TestDecodeTriggerShapes(t *testing.T) {
	bare := `name: bare
on: push
jobs: {}
`
	wf, _, err := decodeWorkflow(strings.NewReader(bare), "bare.yml")
	if err != nil {
		t.Fatalf("decodeWorkflow error: %v", err)
	}
	if wf.Trigger.Push == nil || wf.Trigger.PullRequest != nil {
		t.Fatalf("unexpected trigger for bare form: %+v", wf.Trigger)
	}

	list := `name: list
on: [push, pull_request]
jobs: {}
`
	wf, _, err = decodeWorkflow(strings.NewReader(list), "list.yml")
	if err != nil {
		t.Fatalf("decodeWorkflow error: %v", err)
	}
	if wf.Trigger.Push == nil || wf.Trigger.PullRequest == nil {
		t.Fatalf("unexpected trigger for list form: %+v", wf.Trigger)
	}

	unfiltered := `name: unfiltered
on:
  push:
jobs: {}
`
	wf, _, err = decodeWorkflow(strings.NewReader(unfiltered), "unfiltered.yml")
	if err != nil {
		t.Fatalf("decodeWorkflow error: %v", err)
	}
	if wf.Trigger.Push == nil || len(wf.Trigger.Push.Branches) != 0 {
		t.Fatalf("expected unfiltered push trigger, got %+v", wf.Trigger.Push)
	}
}

func TestDecodeTriggerUnknownKind(t *testing.T) {
	yamlDoc := `name: scheduled
on:
  push:
    branches: [main]
  schedule:
    - cron: "0 0 * * *"
jobs: {}
`
	wf, warnings, err := decodeWorkflow(strings.NewReader(yamlDoc), "sched.yml")
	if err != nil {
		t.Fatalf("decodeWorkflow error: %v", err)
	}
	if wf.Trigger.Push == nil {
		t.Fatalf("expected push trigger to survive")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, `trigger "schedule" is not supported`) {
		t.Fatalf("expected unsupported trigger warning, got %v", warnings)
	}
}

func TestDecodeMatrixIncludeWarning(t *testing.T) {
	yamlDoc := `name: inc
jobs:
  build:
    strategy:
      matrix:
        os: [ubuntu-latest]
        include:
          - os: macos-latest
    steps:
      - run: echo hi
`
	wf, warnings, err := decodeWorkflow(strings.NewReader(yamlDoc), "inc.yml")
	if err != nil {
		t.Fatalf("decodeWorkflow error: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "matrix include is not supported") {
		t.Fatalf("expected include warning, got %v", warnings)
	}
	if len(wf.Jobs[0].Matrix.Axes) != 1 {
		t.Fatalf("include should not become an axis: %v", wf.Jobs[0].Matrix.Axes)
	}
}

func TestDecodeNeedsScalar(t *testing.T) {
	yamlDoc := `name: needs
jobs:
  release:
    needs: build
    steps:
      - run: echo hi
`
	wf, _, err := decodeWorkflow(strings.NewReader(yamlDoc), "needs.yml")
	if err != nil {
		t.Fatalf("decodeWorkflow error: %v", err)
	}
	needs := wf.Jobs[0].Needs
	if len(needs) != 1 || needs[0] != "build" {
		t.Fatalf("expected scalar needs decoded, got %v", needs)
	}
}

func TestStepNameFallback(t *testing.T) {
	yamlDoc := `name: unnamed
jobs:
  build:
    steps:
      - run: echo one
      - name: Explicit
        run: echo two
`
	wf, warnings, err := decodeWorkflow(strings.NewReader(yamlDoc), "temp.yml")
	if err != nil {
		t.Fatalf("decodeWorkflow error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	steps := wf.Jobs[0].Steps
	if steps[0].Name != "step 1" {
		t.Fatalf("expected first step name fallback 'step 1', got %q", steps[0].Name)
	}
	if steps[1].Name != "Explicit" {
		t.Fatalf("expected second step name preserved, got %q", steps[1].Name)
	}
}

func TestParserMissingFile(t *testing.T) {
	parser := NewParser(t.TempDir())
	if _, err := parser.Parse([]string{"missing.yml"}); err == nil {
		t.Fatalf("expected error for missing workflow")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, _, err := decodeWorkflow(strings.NewReader("::bad yaml"), "broken.yml"); err == nil {
		t.Fatalf("expected parse error for invalid yaml")
	}
}

func TestConvertEnv(t *testing.T) {
	env := map[string]interface{}{"B": 2, "A": "1"}
	converted := convertEnv(env)
	if converted["A"] != "1" || converted["B"] != "2" {
		t.Fatalf("unexpected conversion: %v", converted)
	}
}

func TestParseWorkflowReaderError(t *testing.T) {
	if _, _, err := decodeWorkflow(&errorReader{}, "bad.yml"); err == nil {
		t.Fatalf("expected error from reader")
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}

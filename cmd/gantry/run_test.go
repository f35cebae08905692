package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRunCommandDryRun(t *testing.T) {
	chdir(t, writeWorkspace(t, packageWorkflow))

	out, err := execute(t, "run", "--dry-run")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}
	if !strings.Contains(out, "SUMMARY:") {
		t.Fatalf("expected summary line, got:\n%s", out)
	}
	if !strings.Contains(out, "command: echo building") {
		t.Fatalf("expected dry run to show the command, got:\n%s", out)
	}
}

func TestRunCommandSuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("run tests use POSIX shell steps")
	}
	chdir(t, writeWorkspace(t, packageWorkflow))

	out, err := execute(t, "run")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}
	if !strings.Contains(out, "✓ build-ubuntu-latest [succeeded]") {
		t.Fatalf("expected build success, got:\n%s", out)
	}
	if !strings.Contains(out, "✓ release [succeeded]") {
		t.Fatalf("expected release to run on push, got:\n%s", out)
	}
	if !strings.Contains(out, "SUMMARY: 3 succeeded, 0 failed, 0 skipped, 0 blocked") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestRunCommandPullRequest(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("run tests use POSIX shell steps")
	}
	chdir(t, writeWorkspace(t, packageWorkflow))

	out, err := execute(t, "run", "--event", "pull_request")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}
	if !strings.Contains(out, "- release [skipped]") {
		t.Fatalf("expected release skipped on pull_request, got:\n%s", out)
	}
	if !strings.Contains(out, "SUMMARY: 2 succeeded, 0 failed, 1 skipped, 0 blocked") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestRunCommandFailureBlocksDependents(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("run tests use POSIX shell steps")
	}
	workflow := strings.Replace(packageWorkflow, "run: echo building", "run: exit 1", 1)
	chdir(t, writeWorkspace(t, workflow))

	out, err := execute(t, "run")
	if err == nil {
		t.Fatalf("expected run to fail")
	}
	if !strings.Contains(err.Error(), "one or more contexts failed") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "… release [pending]: blocked by failed dependency") {
		t.Fatalf("expected blocked release, got:\n%s", out)
	}
}

func TestRunCommandArtifactFlow(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("run tests use POSIX shell steps")
	}
	workflow := `name: Artifacts
on:
  push:

jobs:
  build:
    steps:
      - name: Produce
        run: mkdir -p dist && echo payload > dist/out.txt
      - name: Upload
        uses: actions/upload-artifact@v4
        with:
          name: dist-local
          path: dist

  consume:
    needs: build
    steps:
      - uses: actions/download-artifact@v4
        with:
          name: dist-local
          path: incoming
      - name: Check
        run: cat incoming/dist/out.txt
`
	root := writeWorkspace(t, workflow)
	chdir(t, root)

	out, err := execute(t, "run")
	if err != nil {
		t.Fatalf("command execute: %v\n%s", err, out)
	}
	if !strings.Contains(out, "SUMMARY: 2 succeeded, 0 failed, 0 skipped, 0 blocked") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(root, "incoming", "dist", "out.txt")); err != nil {
		t.Fatalf("expected downloaded file: %v", err)
	}
	// The store lives under the artifact dir and keeps the run counter.
	if _, err := os.Stat(filepath.Join(root, ".gantry", "run_number")); err != nil {
		t.Fatalf("expected persisted run counter: %v", err)
	}
}

func TestRunCommandUnknownEvent(t *testing.T) {
	chdir(t, writeWorkspace(t, packageWorkflow))

	out, err := execute(t, "run", "--event", "schedule")
	if err != nil {
		t.Fatalf("unknown events skip, not fail: %v", err)
	}
	if !strings.Contains(out, "SUMMARY: 0 succeeded, 0 failed, 3 skipped, 0 blocked") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

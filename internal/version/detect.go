package version

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Info captures an interpreter version installed on the system.
type Info struct {
	Name    string
	Version string
}

type probe struct {
	command string
	args    []string
	pattern *regexp.Regexp
}

var probes = map[string]probe{
	"python": {"python3", []string{"--version"}, regexp.MustCompile(`(?i)python\s+(\d+\.\d+(?:\.\d+)?)`)},
	"node":   {"node", []string{"-v"}, regexp.MustCompile(`(?i)v?(\d+\.\d+(?:\.\d+)?)`)},
	"ruby":   {"ruby", []string{"-v"}, regexp.MustCompile(`(?i)ruby\s+(\d+\.\d+(?:\.\d+)?)`)},
	"go":     {"go", []string{"version"}, regexp.MustCompile(`go(\d+\.\d+(?:\.\d+)?)`)},
}

// Supported reports whether a version probe exists for the named tool.
func Supported(name string) bool {
	_, ok := probes[name]
	return ok
}

// Detect returns the installed version of the named interpreter by invoking
// its version command.
func Detect(name string) (Info, error) {
	p, ok := probes[name]
	if !ok {
		return Info{}, fmt.Errorf("no version probe for %q", name)
	}
	out, err := runCommand(p.command, p.args...)
	if err != nil {
		return Info{}, err
	}
	match := p.pattern.FindStringSubmatch(out)
	if len(match) < 2 {
		return Info{}, fmt.Errorf("unable to parse %s version from %q", name, out)
	}
	return Info{Name: name, Version: match[1]}, nil
}

func runCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// CompareMajorMinor compares major.minor portions of two semver-like
// versions. Either side missing a parseable major.minor prefix counts as a
// mismatch.
func CompareMajorMinor(desired, actual string) bool {
	d := semverPrefix(desired)
	a := semverPrefix(actual)
	if d == "" || a == "" {
		return false
	}
	return strings.EqualFold(d, a)
}

func semverPrefix(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return ""
	}
	return fmt.Sprintf("%s.%s", parts[0], parts[1])
}

// Missing reports whether executing the command returns a not-found error.
func Missing(cmdErr error) bool {
	return errors.Is(cmdErr, exec.ErrNotFound)
}

package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitHost implements Host against a local git checkout. Tags are created
// with the git CLI and pushed when a remote is configured; release records
// are written under the record directory for inspection, standing in for
// the hosting API this engine does not call directly.
type GitHost struct {
	// Repo is the checkout to tag.
	Repo string
	// RecordDir receives one JSON record per release.
	RecordDir string
	// Remote, when non-empty, is pushed to after tagging.
	Remote string
	// Token authenticates the push. Read from the environment by the
	// caller; never logged.
	Token string
}

// CreateTag creates the tag and pushes it when a remote is configured.
// A pre-existing tag maps to ErrTagConflict.
func (h *GitHost) CreateTag(ctx context.Context, tag string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "tag", tag)
	cmd.Dir = h.Repo
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "already exists") {
			return ErrTagConflict
		}
		return fmt.Errorf("git tag %s: %w: %s", tag, err, strings.TrimSpace(stderr.String()))
	}

	if h.Remote == "" {
		return nil
	}

	args := []string{"push", h.Remote, "refs/tags/" + tag}
	if h.Token != "" {
		header := fmt.Sprintf("http.extraheader=Authorization: Bearer %s", h.Token)
		args = append([]string{"-c", header}, args...)
	}
	stderr.Reset()
	push := exec.CommandContext(ctx, "git", args...)
	push.Dir = h.Repo
	push.Stderr = &stderr
	if err := push.Run(); err != nil {
		return fmt.Errorf("git push tag %s: %w: %s", tag, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CreateRelease writes the release record as <RecordDir>/<tag>.json.
func (h *GitHost) CreateRelease(_ context.Context, rel Release) error {
	if err := os.MkdirAll(h.RecordDir, 0o755); err != nil {
		return fmt.Errorf("create release record dir: %w", err)
	}
	data, err := json.MarshalIndent(rel, "", "  ")
	if err != nil {
		return fmt.Errorf("encode release record: %w", err)
	}
	path := filepath.Join(h.RecordDir, rel.Tag+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write release record: %w", err)
	}
	return nil
}

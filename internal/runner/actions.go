package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gantryci/gantry/internal/artifact"
	"github.com/gantryci/gantry/internal/release"
	"github.com/gantryci/gantry/internal/version"
	"github.com/rs/zerolog"
)

// Actions dispatches `uses:` steps to builtin implementations. The set
// covers what build-and-release workflows of this shape invoke: checkout,
// interpreter setup, artifact upload/download, and release creation.
// Unknown actions skip the step with a notice rather than failing it.
type Actions struct {
	Store     *artifact.Store
	Publisher *release.Publisher
	RunNumber int
	Log       zerolog.Logger

	mu       sync.Mutex
	released []release.Release
}

// Released returns the releases published during this run.
func (a *Actions) Released() []release.Release {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]release.Release(nil), a.released...)
}

// Run executes the named action with its inputs. The version suffix
// (everything after "@") is ignored when resolving the action.
func (a *Actions) Run(ctx context.Context, uses string, with map[string]string, workdir string) (output string, skipped bool, err error) {
	name := uses
	if idx := strings.Index(name, "@"); idx != -1 {
		name = name[:idx]
	}

	switch name {
	case "actions/checkout":
		return "using existing working tree", false, nil
	case "actions/setup-python":
		return a.setupInterpreter("python", with["python-version"]), false, nil
	case "actions/setup-node":
		return a.setupInterpreter("node", with["node-version"]), false, nil
	case "actions/upload-artifact":
		return a.uploadArtifact(with, workdir)
	case "actions/download-artifact":
		return a.downloadArtifact(with, workdir)
	case "ncipollo/release-action", "softprops/action-gh-release", "gantry/create-release":
		return a.createRelease(ctx)
	default:
		a.Log.Warn().Str("action", uses).Msg("action is not supported locally, skipping step")
		return fmt.Sprintf("action %q is not supported locally", uses), true, nil
	}
}

// setupInterpreter does not install anything; it verifies the local
// interpreter against the requested version and reports the outcome. A
// mismatch is a notice, not a failure, matching how loose these checks can
// afford to be when the steps themselves will fail loudly on a truly wrong
// interpreter.
func (a *Actions) setupInterpreter(tool, want string) string {
	if want == "" {
		return fmt.Sprintf("using system %s", tool)
	}
	info, err := version.Detect(tool)
	if err != nil {
		if version.Missing(err) {
			return fmt.Sprintf("%s not found; required %s", tool, want)
		}
		return fmt.Sprintf("unable to detect %s version: %v", tool, err)
	}
	if !version.CompareMajorMinor(want, info.Version) {
		return fmt.Sprintf("%s version mismatch: requested %s, found %s", tool, want, info.Version)
	}
	return fmt.Sprintf("%s %s satisfies requested %s", tool, info.Version, want)
}

func (a *Actions) uploadArtifact(with map[string]string, workdir string) (string, bool, error) {
	if a.Store == nil {
		return "", false, fmt.Errorf("no artifact store configured")
	}
	name := with["name"]
	path := with["path"]
	if name == "" || path == "" {
		return "", false, fmt.Errorf("upload-artifact requires name and path inputs")
	}
	art, err := a.Store.Upload(name, workdir, path)
	if err != nil {
		return "", false, err
	}
	a.Log.Info().Str("artifact", art.Name).Int("files", len(art.Files)).Str("digest", art.Digest).Msg("uploaded artifact")
	return fmt.Sprintf("uploaded artifact %q (%d files, digest %s)", art.Name, len(art.Files), art.Digest), false, nil
}

func (a *Actions) downloadArtifact(with map[string]string, workdir string) (string, bool, error) {
	if a.Store == nil {
		return "", false, fmt.Errorf("no artifact store configured")
	}
	name := with["name"]
	if name == "" {
		return "", false, fmt.Errorf("download-artifact requires a name input")
	}
	dst := workdir
	if path := with["path"]; path != "" {
		if filepath.IsAbs(path) {
			dst = path
		} else {
			dst = filepath.Join(workdir, path)
		}
	}
	art, err := a.Store.Download(name, dst)
	if err != nil {
		return "", false, err
	}
	if err := artifact.Flatten(artifact.OSFS(), dst, name); err != nil {
		return "", false, err
	}
	a.Log.Info().Str("artifact", art.Name).Str("dest", dst).Msg("downloaded artifact")
	return fmt.Sprintf("downloaded artifact %q into %s", art.Name, dst), false, nil
}

func (a *Actions) createRelease(ctx context.Context) (string, bool, error) {
	if a.Publisher == nil {
		return "", false, fmt.Errorf("no release publisher configured")
	}
	rel, err := a.Publisher.Publish(ctx, a.RunNumber)
	if err != nil {
		return "", false, err
	}
	a.mu.Lock()
	a.released = append(a.released, rel)
	a.mu.Unlock()
	a.Log.Info().Str("tag", rel.Tag).Msg("published release")
	return fmt.Sprintf("published release %s (%s)", rel.Tag, rel.Title), false, nil
}

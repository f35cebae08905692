// Package artifact implements the run-scoped artifact namespace: a
// write-once name-to-files store shared by the execution contexts of one
// pipeline run. The store is passed explicitly into each context rather
// than living as ambient state.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.trai.ch/zerr"
)

var (
	// ErrNotFound indicates a download referenced a name never uploaded in
	// this run.
	ErrNotFound = errors.New("artifact not found")
	// ErrExists indicates a second upload under an already-taken name. The
	// namespace is write-once per run.
	ErrExists = errors.New("artifact already uploaded")
	// ErrNoFiles indicates an upload pattern matched nothing.
	ErrNoFiles = errors.New("no files match artifact pattern")
)

// Artifact describes one named upload.
type Artifact struct {
	Name     string    `json:"name"`
	Files    []string  `json:"files"`
	Digest   string    `json:"digest"`
	Uploaded time.Time `json:"uploaded"`
}

// Store is a directory-backed artifact store scoped to a single run.
type Store struct {
	root  string
	runID string
}

// NewStore opens (creating if needed) the store under root for the given
// run. An empty runID gets a fresh identifier.
func NewStore(root, runID string) (*Store, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	dir := filepath.Join(root, "runs", runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact store: %w", err)
	}
	return &Store{root: root, runID: runID}, nil
}

// RunID returns the identifier scoping this store.
func (s *Store) RunID() string {
	return s.runID
}

func (s *Store) artifactDir(name string) string {
	return filepath.Join(s.root, "runs", s.runID, name)
}

// Upload packages the files matching pattern (relative to workdir) as one
// named artifact. Uploading twice under the same name fails with ErrExists:
// contexts never overwrite each other.
func (s *Store) Upload(name, workdir, pattern string) (Artifact, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return Artifact{}, fmt.Errorf("invalid artifact name %q", name)
	}

	dir := s.artifactDir(name)
	if _, err := os.Stat(dir); err == nil {
		return Artifact{}, zerr.With(ErrExists, "name", name)
	}

	files, err := collectFiles(workdir, pattern)
	if err != nil {
		return Artifact{}, err
	}
	if len(files) == 0 {
		return Artifact{}, zerr.With(ErrNoFiles, "pattern", pattern)
	}

	digest := xxhash.New()
	for _, rel := range files {
		if err := copyFile(filepath.Join(workdir, rel), filepath.Join(dir, "files", rel), digest); err != nil {
			return Artifact{}, zerr.Wrap(err, "copy artifact file")
		}
	}

	art := Artifact{
		Name:     name,
		Files:    files,
		Digest:   fmt.Sprintf("%016x", digest.Sum64()),
		Uploaded: time.Now().UTC(),
	}
	if err := writeManifest(filepath.Join(dir, "manifest.json"), art); err != nil {
		return Artifact{}, err
	}
	return art, nil
}

// Download copies a previously uploaded artifact into dst/<name>, matching
// the layout the hosted service produces (artifact name as folder).
func (s *Store) Download(name, dst string) (Artifact, error) {
	art, err := s.Lookup(name)
	if err != nil {
		return Artifact{}, err
	}

	src := filepath.Join(s.artifactDir(name), "files")
	for _, rel := range art.Files {
		if err := copyFile(filepath.Join(src, rel), filepath.Join(dst, name, rel), nil); err != nil {
			return Artifact{}, zerr.Wrap(err, "copy artifact file")
		}
	}
	return art, nil
}

// Lookup returns the manifest for a named artifact without copying files.
func (s *Store) Lookup(name string) (Artifact, error) {
	data, err := os.ReadFile(filepath.Join(s.artifactDir(name), "manifest.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, zerr.With(ErrNotFound, "name", name)
		}
		return Artifact{}, fmt.Errorf("read artifact manifest: %w", err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return Artifact{}, fmt.Errorf("parse artifact manifest: %w", err)
	}
	return art, nil
}

// List returns every artifact uploaded in this run, sorted by name.
func (s *Store) List() ([]Artifact, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "runs", s.runID))
	if err != nil {
		return nil, fmt.Errorf("read artifact store: %w", err)
	}
	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		art, err := s.Lookup(entry.Name())
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, art)
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// NextRunNumber advances the persisted counter under root and returns the
// new value. Local runs stay monotonic across invocations the way hosted
// run numbers do.
func NextRunNumber(root string) (int, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("create store root: %w", err)
	}
	path := filepath.Join(root, "run_number")
	current := 0
	if data, err := os.ReadFile(path); err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil {
			current = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read run counter: %w", err)
	}
	next := current + 1
	if err := os.WriteFile(path, []byte(strconv.Itoa(next)+"\n"), 0o644); err != nil {
		return 0, fmt.Errorf("write run counter: %w", err)
	}
	return next, nil
}

// collectFiles resolves the glob to a sorted list of paths relative to
// workdir. Directory matches are walked recursively.
func collectFiles(workdir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(workdir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	seen := make(map[string]struct{})
	var files []string
	add := func(path string) error {
		rel, err := filepath.Rel(workdir, path)
		if err != nil {
			return fmt.Errorf("relativize %q: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, "..") {
			return fmt.Errorf("artifact path %q escapes the working directory", path)
		}
		if _, ok := seen[rel]; !ok {
			seen[rel] = struct{}{}
			files = append(files, rel)
		}
		return nil
	}

	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", match, err)
		}
		if !info.IsDir() {
			if err := add(match); err != nil {
				return nil, err
			}
			continue
		}
		walkErr := filepath.WalkDir(match, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			return add(path)
		})
		if walkErr != nil {
			return nil, fmt.Errorf("walk %q: %w", match, walkErr)
		}
	}

	sort.Strings(files)
	return files, nil
}

func copyFile(src, dst string, digest io.Writer) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	writer := io.Writer(out)
	if digest != nil {
		writer = io.MultiWriter(out, digest)
	}
	if _, err := io.Copy(writer, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeManifest(path string, art Artifact) error {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write artifact manifest: %w", err)
	}
	return nil
}

package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestStoreUploadDownload(t *testing.T) {
	root := t.TempDir()
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "dist", "pkg-1.0.tar.gz"), "tarball")
	writeFile(t, filepath.Join(work, "dist", "pkg-1.0-py3-none-any.whl"), "wheel")

	store, err := NewStore(root, "run-1")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.RunID() != "run-1" {
		t.Fatalf("unexpected run id %q", store.RunID())
	}

	art, err := store.Upload("dist-ubuntu-latest", work, "dist")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if art.Name != "dist-ubuntu-latest" {
		t.Fatalf("unexpected artifact name %q", art.Name)
	}
	if len(art.Files) != 2 {
		t.Fatalf("expected 2 files, got %v", art.Files)
	}
	if art.Files[0] != "dist/pkg-1.0-py3-none-any.whl" || art.Files[1] != "dist/pkg-1.0.tar.gz" {
		t.Fatalf("expected sorted relative paths, got %v", art.Files)
	}
	if art.Digest == "" {
		t.Fatalf("expected digest")
	}

	dst := t.TempDir()
	got, err := store.Download("dist-ubuntu-latest", dst)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got.Digest != art.Digest {
		t.Fatalf("manifest digest mismatch: %q vs %q", got.Digest, art.Digest)
	}
	data, err := os.ReadFile(filepath.Join(dst, "dist-ubuntu-latest", "dist", "pkg-1.0.tar.gz"))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "tarball" {
		t.Fatalf("unexpected file content %q", data)
	}
}

func TestStoreUploadWriteOnce(t *testing.T) {
	root := t.TempDir()
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "out.txt"), "one")

	store, err := NewStore(root, "run-1")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Upload("dist", work, "out.txt"); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	_, err = store.Upload("dist", work, "out.txt")
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestStoreDownloadNotFound(t *testing.T) {
	store, err := NewStore(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.Download("never-uploaded", t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreUploadNoMatches(t *testing.T) {
	store, err := NewStore(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.Upload("dist", t.TempDir(), "dist/*.whl")
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestStoreUploadInvalidName(t *testing.T) {
	store, err := NewStore(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for _, name := range []string{"", "a/b", `a\b`} {
		if _, err := store.Upload(name, t.TempDir(), "*"); err == nil {
			t.Fatalf("expected error for name %q", name)
		}
	}
}

func TestStoreScopedByRun(t *testing.T) {
	root := t.TempDir()
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "out.txt"), "one")

	first, err := NewStore(root, "run-1")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := first.Upload("dist", work, "out.txt"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	second, err := NewStore(root, "run-2")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := second.Lookup("dist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected runs to be isolated, got %v", err)
	}
	// Same name is free again in the new run.
	if _, err := second.Upload("dist", work, "out.txt"); err != nil {
		t.Fatalf("upload in second run: %v", err)
	}
}

func TestStoreList(t *testing.T) {
	root := t.TempDir()
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "out.txt"), "one")

	store, err := NewStore(root, "run-1")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for _, name := range []string{"dist-windows-latest", "dist-ubuntu-latest"} {
		if _, err := store.Upload(name, work, "out.txt"); err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
	}

	artifacts, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].Name != "dist-ubuntu-latest" || artifacts[1].Name != "dist-windows-latest" {
		t.Fatalf("expected names sorted, got %v", artifacts)
	}
}

func TestNextRunNumber(t *testing.T) {
	root := t.TempDir()
	for want := 1; want <= 3; want++ {
		got, err := NextRunNumber(root)
		if err != nil {
			t.Fatalf("NextRunNumber: %v", err)
		}
		if got != want {
			t.Fatalf("expected run number %d, got %d", want, got)
		}
	}
}

func TestNextRunNumberCorruptCounter(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "run_number"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	got, err := NextRunNumber(root)
	if err != nil {
		t.Fatalf("NextRunNumber: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected counter restart at 1, got %d", got)
	}
}

package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the slice of filesystem behavior Flatten needs. The indirection
// keeps Flatten a pure function over a snapshot, testable without real I/O.
type FS interface {
	Stat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

type osFS struct{}

func (osFS) Stat(name string) (os.FileInfo, error)      { return os.Stat(name) }
func (osFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (osFS) Rename(oldpath, newpath string) error       { return os.Rename(oldpath, newpath) }
func (osFS) Remove(name string) error                   { return os.Remove(name) }

// OSFS returns the real filesystem.
func OSFS() FS { return osFS{} }

// Flatten normalizes a download target: when dir contains a subdirectory
// named name (the artifact-name-as-folder layout), its contents move up one
// level and the emptied folder is removed. The operation is idempotent:
// an already-flat directory is left unchanged and no error is reported.
func Flatten(fsys FS, dir, name string) error {
	nested := filepath.Join(dir, name)
	info, err := fsys.Stat(nested)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %q: %w", nested, err)
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := fsys.ReadDir(nested)
	if err != nil {
		return fmt.Errorf("read %q: %w", nested, err)
	}

	// Refuse to clobber: a sibling with the same name as a nested entry
	// means something else already wrote into dir, and moving would lose
	// data.
	for _, entry := range entries {
		target := filepath.Join(dir, entry.Name())
		if entry.Name() == name {
			continue
		}
		if _, err := fsys.Stat(target); err == nil {
			return fmt.Errorf("flatten %q: %q already exists", dir, target)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %q: %w", target, err)
		}
	}

	for _, entry := range entries {
		if entry.Name() == name {
			// A nested folder repeating the artifact name stays put; moving
			// it onto itself would be ambiguous.
			continue
		}
		src := filepath.Join(nested, entry.Name())
		dst := filepath.Join(dir, entry.Name())
		if err := fsys.Rename(src, dst); err != nil {
			return fmt.Errorf("move %q: %w", src, err)
		}
	}

	remaining, err := fsys.ReadDir(nested)
	if err != nil {
		return fmt.Errorf("read %q: %w", nested, err)
	}
	if len(remaining) == 0 {
		if err := fsys.Remove(nested); err != nil {
			return fmt.Errorf("remove %q: %w", nested, err)
		}
	}
	return nil
}

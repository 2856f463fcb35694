package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/models"
)

const tmpPrefix = ".docvault-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: root %s: %w", abs, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s: %w", abs, apperr.ErrNotFound)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault root.
func (f *FS) Root() string { return f.root }

// SplitPath breaks a vault path into segments. Empty and "." segments are
// dropped; ".." is rejected because it would leave the vault.
func SplitPath(p string) ([]string, error) {
	parts := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == os.PathSeparator
	})
	segs := parts[:0]
	for _, s := range parts {
		switch s {
		case ".":
			continue
		case "..":
			return nil, fmt.Errorf("storage: %q: %w", p, apperr.ErrInvalidPath)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// JoinPath is the inverse of SplitPath. Empty and "." segments are dropped
// so that joining onto path.Dir of a root-level file stays relative.
func JoinPath(segs ...string) string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		for _, part := range strings.Split(s, "/") {
			if part != "" && part != "." {
				out = append(out, part)
			}
		}
	}
	return strings.Join(out, "/")
}

// resolve maps a vault path to an absolute path. Empty paths resolve to the
// root unless a file is required.
func (f *FS) resolve(rel string, needFile bool) (string, error) {
	segs, err := SplitPath(rel)
	if err != nil {
		return "", err
	}
	if len(segs) == 0 {
		if needFile {
			return "", fmt.Errorf("storage: empty file path: %w", apperr.ErrInvalidPath)
		}
		return f.root, nil
	}
	return filepath.Join(append([]string{f.root}, segs...)...), nil
}

func notFound(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("storage: %s %s: %w", op, path, apperr.ErrNotFound)
	}
	return fmt.Errorf("storage: %s %s: %w", op, path, err)
}

// ReadFile returns the raw bytes of a vault file.
func (f *FS) ReadFile(path string) ([]byte, error) {
	abs, err := f.resolve(path, true)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, notFound("read", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("storage: read %s: is a directory: %w", path, apperr.ErrNotFound)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, notFound("read", path, err)
	}
	return data, nil
}

// ReadText returns a vault file as text.
func (f *FS) ReadText(path string) (string, error) {
	data, err := f.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile atomically writes content: tmp file → fsync → rename.
// Concurrent writers to the same path race; the last rename wins and the
// file always holds one complete version.
func (f *FS) WriteFile(path string, content []byte) error {
	abs, err := f.resolve(path, true)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// EnsureDir creates every missing directory of path. Existing directories
// are left untouched.
func (f *FS) EnsureDir(path string) error {
	abs, err := f.resolve(path, false)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("storage: ensure dir %s: %w", path, err)
	}
	return nil
}

// Stat describes the entry at path.
func (f *FS) Stat(path string) (models.VaultEntry, error) {
	abs, err := f.resolve(path, false)
	if err != nil {
		return models.VaultEntry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.VaultEntry{}, notFound("stat", path, err)
	}
	return f.entry(abs, info.Name(), info.IsDir()), nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path, true)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return notFound("delete", path, err)
	}
	return nil
}

// DeleteTree removes a directory and everything below it. The root itself
// cannot be removed.
func (f *FS) DeleteTree(path string) error {
	abs, err := f.resolve(path, true)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return notFound("delete", path, err)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("storage: delete tree %s: %w", path, err)
	}
	return nil
}

// Move renames a file within the vault.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.resolve(oldPath, true)
	if err != nil {
		return err
	}
	absNew, err := f.resolve(newPath, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return notFound("move", oldPath, err)
	}
	return nil
}

func (f *FS) entry(abs, name string, isDir bool) models.VaultEntry {
	rel, _ := filepath.Rel(f.root, abs)
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}
	kind := models.KindFile
	if isDir {
		kind = models.KindDirectory
	}
	return models.VaultEntry{Kind: kind, Name: name, Path: rel, Native: abs}
}

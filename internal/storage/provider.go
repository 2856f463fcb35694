// Package storage implements path-addressed file I/O under a vault root.
package storage

import "github.com/starford/docvault/internal/models"

// Provider is the interface for vault file operations. Every path is
// slash-delimited and relative to the vault root.
type Provider interface {
	// ReadFile returns the raw bytes of the file at path.
	ReadFile(path string) ([]byte, error)
	// ReadText returns the file at path decoded as UTF-8 text.
	ReadText(path string) (string, error)
	// WriteFile atomically replaces the file at path, creating parents.
	WriteFile(path string, content []byte) error
	// EnsureDir creates every missing segment of path.
	EnsureDir(path string) error
	// Stat describes the entry at path.
	Stat(path string) (models.VaultEntry, error)
	// Walk lists every entry below dir, depth first.
	Walk(dir string) (WalkResult, error)
	// Delete removes the file at path.
	Delete(path string) error
	// DeleteTree removes the directory at path and its contents.
	DeleteTree(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}

var _ Provider = (*FS)(nil)

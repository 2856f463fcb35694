package capability

import (
	"errors"
	"io/fs"
	"os"
)

// Permission is the read/write state of a vault root.
type Permission string

const (
	PermissionPrompt  Permission = "prompt"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Probe reports whether root can be listed and written. It writes and
// removes a probe file; nothing is left behind.
func Probe(root string) Permission {
	if _, err := os.ReadDir(root); err != nil {
		return PermissionDenied
	}
	f, err := os.CreateTemp(root, ".docvault-tmp-probe-*")
	if err != nil {
		return PermissionDenied
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return PermissionDenied
	}
	return PermissionGranted
}

// requestPermission makes one attempt to grant the owner rwx on root and
// probes again.
func requestPermission(root string) Permission {
	info, err := os.Stat(root)
	if err != nil {
		return PermissionDenied
	}
	if err := os.Chmod(root, info.Mode().Perm()|0o700); err != nil && !errors.Is(err, fs.ErrPermission) {
		return PermissionDenied
	}
	return Probe(root)
}

package storage

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/starford/docvault/internal/models"
)

// WalkResult is the flat output of a recursive walk. Entries come in
// enumeration order, which callers must not depend on.
type WalkResult struct {
	Entries  []models.VaultEntry `json:"entries"`
	Warnings []models.Warning    `json:"warnings"`
}

// Files returns only the file entries.
func (r WalkResult) Files() []models.VaultEntry {
	out := make([]models.VaultEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Kind == models.KindFile {
			out = append(out, e)
		}
	}
	return out
}

// Walk traverses dir depth first and returns every file and directory below
// it. Unreadable entries become warnings; only a bad start directory is an error.
func (f *FS) Walk(dir string) (WalkResult, error) {
	base, err := f.resolve(dir, false)
	if err != nil {
		return WalkResult{}, err
	}

	var res WalkResult
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == base {
				return walkErr
			}
			res.Warnings = append(res.Warnings, models.Warning{
				Path:    f.entry(p, "", false).Path,
				Message: walkErr.Error(),
			})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == base {
			return nil
		}
		if strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			res.Warnings = append(res.Warnings, models.Warning{
				Path:    f.entry(p, "", false).Path,
				Message: "symlink skipped",
			})
			return nil
		}
		res.Entries = append(res.Entries, f.entry(p, d.Name(), d.IsDir()))
		return nil
	})
	if err != nil {
		return WalkResult{}, notFound("walk", dir, err)
	}
	return res, nil
}

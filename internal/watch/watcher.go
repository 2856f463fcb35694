// Package watch reports changes to vault files that affect the index.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/starford/docvault/internal/vaultindex"
)

// Event kinds passed to EventCallback.
const (
	KindCreated  = "created"
	KindUpdated  = "updated"
	KindDeleted  = "deleted"
	KindSelected = "selected"
)

// DefaultDebounce coalesces bursts such as temp-write-then-rename.
const DefaultDebounce = 150 * time.Millisecond

// EventCallback is called once per changed path after the debounce window.
// Paths are root-relative with forward slashes.
type EventCallback func(kind string, path string)

// Relevant reports whether a change at rel can affect the vault index.
// Removing an item directory counts even though it is not a marker.
func Relevant(rel string, removal bool) bool {
	if matchAny(vaultindex.MarkerPatterns, rel) {
		return true
	}
	return removal && matchAny(vaultindex.ItemDirPatterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Watch starts an fsnotify watcher on root and reports index-relevant
// changes until ctx is cancelled.
//
// New directories created at runtime are added to the watch list and any
// marker files already inside them are reported as created.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, logger); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := map[string]string{}
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	queue := func(kind, rel string) {
		// A create followed by writes is still a create.
		if prev, ok := pending[rel]; ok && prev == KindCreated && kind == KindUpdated {
			kind = KindCreated
		}
		pending[rel] = kind
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	flush := func() {
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			logger.Debug("watcher: changed", slog.String("path", p), slog.String("op", pending[p]))
			if cb != nil {
				cb(pending[p], p)
			}
		}
		pending = map[string]string{}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped", slog.String("root", root))
			return nil

		case <-flushCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			rel = filepath.ToSlash(rel)

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, logger); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					}
					for _, p := range markersUnder(root, ev.Name) {
						queue(KindCreated, p)
					}
					continue
				}
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				if Relevant(rel, false) {
					queue(KindCreated, rel)
				}
			case ev.Op&fsnotify.Write != 0:
				if Relevant(rel, false) {
					queue(KindUpdated, rel)
				}
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the old path only; the new
				// path arrives as a separate Create.
				if Relevant(rel, true) {
					queue(KindDeleted, rel)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// markersUnder lists marker files already present in a new directory.
func markersUnder(root, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if Relevant(rel, false) {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
// Only a failure on root itself is returned; a subdirectory that cannot be
// read or watched is logged and skipped.
func addDirsRecursive(w *fsnotify.Watcher, root string, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			return nil
		}
		if err == nil {
			err = w.Add(path)
		}
		if err == nil {
			return nil
		}
		if path == root {
			return err
		}
		logger.Warn("watcher: directory skipped", slog.String("path", path), slog.String("error", err.Error()))
		if d != nil && d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
}

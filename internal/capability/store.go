// Package capability owns the user-granted vault root for the process lifetime.
//
// The Store holds at most one Capability. Every other component borrows it
// per call through Ensure and must fail when none is selected. A successful
// Choose replaces the capability and bumps the generation; the store does
// not notify anyone, callers poll Generation to drop derived state.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/storage"
)

// Persister saves the chosen root between runs.
type Persister interface {
	SaveVaultRoot(ctx context.Context, root string) error
	LoadVaultRoot(ctx context.Context) (string, error)
}

// Capability is an immutable, permission-checked handle to a vault root.
type Capability struct {
	Name       string     `json:"name"`
	Root       string     `json:"root"`
	Permission Permission `json:"permission"`
	Generation uint64     `json:"generation"`

	fs *storage.FS
}

// FS returns the file I/O bound to the root.
func (c *Capability) FS() *storage.FS { return c.fs }

// Store is the single owner of the current capability.
type Store struct {
	picker    Picker
	persister Persister
	logger    *slog.Logger

	mu         sync.RWMutex
	current    *Capability
	generation uint64
}

// Option configures a Store.
type Option func(*Store)

// WithPicker sets the folder picker. Without one, Choose reports
// apperr.ErrUnsupportedPlatform.
func WithPicker(p Picker) Option {
	return func(s *Store) { s.picker = p }
}

// WithPersister enables saving and restoring the selection.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Choose runs the configured picker.
func (s *Store) Choose(ctx context.Context) (*Capability, error) {
	return s.ChooseWith(ctx, s.picker)
}

// ChooseWith runs picker instead of the configured one, e.g. a path sent in
// a request. Permission gets one repair attempt before PermissionDenied.
func (s *Store) ChooseWith(ctx context.Context, picker Picker) (*Capability, error) {
	if picker == nil {
		return nil, apperr.ErrUnsupportedPlatform
	}
	root, err := picker.Pick(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrSelectionCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("capability: pick: %w", err)
	}
	if root == "" {
		return nil, apperr.ErrSelectionCancelled
	}

	fsys, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}

	perm := Probe(fsys.Root())
	if perm != PermissionGranted {
		s.logger.Info("capability: permission not granted, requesting", slog.String("root", fsys.Root()))
		perm = requestPermission(fsys.Root())
	}
	if perm != PermissionGranted {
		return nil, fmt.Errorf("capability: %s: %w", fsys.Root(), apperr.ErrPermissionDenied)
	}

	c := s.install(fsys)
	s.logger.Info("capability: vault selected",
		slog.String("root", c.Root),
		slog.Uint64("generation", c.Generation))

	if s.persister != nil {
		if err := s.persister.SaveVaultRoot(ctx, c.Root); err != nil {
			s.logger.Warn("capability: persist selection failed", slog.String("error", err.Error()))
		}
	}
	return c, nil
}

// Restore re-installs the persisted root if it is still accessible. It never
// prompts and never repairs permissions; failure leaves the store empty.
func (s *Store) Restore(ctx context.Context) (*Capability, error) {
	if s.persister == nil {
		return nil, apperr.ErrNoVaultSelected
	}
	root, err := s.persister.LoadVaultRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capability: load persisted root: %w", err)
	}
	if root == "" {
		return nil, apperr.ErrNoVaultSelected
	}
	fsys, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	if Probe(fsys.Root()) != PermissionGranted {
		return nil, fmt.Errorf("capability: %s: %w", fsys.Root(), apperr.ErrPermissionDenied)
	}
	c := s.install(fsys)
	s.logger.Info("capability: vault restored", slog.String("root", c.Root))
	return c, nil
}

func (s *Store) install(fsys *storage.FS) *Capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	c := &Capability{
		Name:       filepath.Base(fsys.Root()),
		Root:       fsys.Root(),
		Permission: PermissionGranted,
		Generation: s.generation,
		fs:         fsys,
	}
	s.current = c
	return c
}

// Ensure returns the current capability or apperr.ErrNoVaultSelected.
func (s *Store) Ensure() (*Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, apperr.ErrNoVaultSelected
	}
	return s.current, nil
}

// Ready reports whether a vault is selected.
func (s *Store) Ready() bool {
	_, err := s.Ensure()
	return err == nil
}

// Generation changes on every successful selection; zero means never selected.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

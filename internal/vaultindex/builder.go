// Package vaultindex rebuilds the in-memory view of a vault from its files.
package vaultindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	stdpath "path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/parser"
	"github.com/starford/docvault/internal/storage"
)

// Vault is the part of capability.Store the builder needs.
type Vault interface {
	Ensure() (*capability.Capability, error)
}

// Builder loads indexes from the currently selected vault.
type Builder struct {
	vault  Vault
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(vault Vault, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{vault: vault, logger: logger}
}

// LoadIndex walks the whole vault and folds every canonical item into a
// fresh index. A broken item becomes a warning and never aborts the load.
func (b *Builder) LoadIndex(ctx context.Context) (*models.VaultIndex, error) {
	c, err := b.vault.Ensure()
	if err != nil {
		return nil, err
	}
	fsys := c.FS()

	res, err := fsys.Walk("")
	if err != nil {
		return nil, fmt.Errorf("vaultindex: walk: %w", err)
	}

	idx := &models.VaultIndex{
		Items:    []models.Item{},
		Clients:  []models.Client{},
		Warnings: append([]models.Warning{}, res.Warnings...),
	}
	warn := func(path string, err error) {
		b.logger.Warn("vaultindex: item skipped", slog.String("path", path), slog.String("error", err.Error()))
		idx.Warnings = append(idx.Warnings, models.Warning{Path: path, Message: err.Error()})
	}

	seen := make(map[string]string)
	for _, e := range res.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		typ, ok := MarkerType(e.Path)
		if !ok {
			continue
		}
		it, err := readItem(fsys, e.Path)
		if err != nil {
			warn(e.Path, err)
			continue
		}
		if it.ItemType != typ {
			warn(e.Path, fmt.Errorf("%w: item_type %q stored under %s", apperr.ErrValidation, it.ItemType, typ))
			continue
		}
		if dir := stdpath.Base(stdpath.Dir(e.Path)); dir != it.ID {
			warn(e.Path, fmt.Errorf("%w: id %s stored under directory %s", apperr.ErrValidation, it.ID, dir))
			continue
		}
		if first, dup := seen[it.ID]; dup {
			warn(e.Path, fmt.Errorf("%w: duplicate id %s, first seen at %s", apperr.ErrConflict, it.ID, first))
			continue
		}
		seen[it.ID] = e.Path
		idx.Items = append(idx.Items, *it)
	}
	sort.Slice(idx.Items, func(i, j int) bool { return idx.Items[i].Path < idx.Items[j].Path })

	clients, err := loadClients(fsys)
	if err != nil {
		warn(ClientsFile, err)
	} else {
		idx.Clients = clients
	}

	b.logger.Debug("vaultindex: loaded",
		slog.Int("items", len(idx.Items)),
		slog.Int("clients", len(idx.Clients)),
		slog.Int("warnings", len(idx.Warnings)))
	return idx, nil
}

// ReadItem reads and validates the item stored at a marker path.
func (b *Builder) ReadItem(ctx context.Context, path string) (*models.Item, error) {
	c, err := b.vault.Ensure()
	if err != nil {
		return nil, err
	}
	return readItem(c.FS(), path)
}

func readItem(fsys *storage.FS, path string) (*models.Item, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	it, err := parser.ParseItem(path, data)
	if err != nil {
		return nil, err
	}
	if err := it.Validate(); err != nil {
		return nil, err
	}
	return it, nil
}

// LoadClients returns the vault's clients. A missing clients.json is an
// empty list.
func (b *Builder) LoadClients(ctx context.Context) ([]models.Client, error) {
	c, err := b.vault.Ensure()
	if err != nil {
		return nil, err
	}
	return loadClients(c.FS())
}

func loadClients(fsys *storage.FS) ([]models.Client, error) {
	data, err := fsys.ReadFile(ClientsFile)
	if errors.Is(err, apperr.ErrNotFound) {
		return []models.Client{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f models.ClientsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &apperr.ParseError{Path: ClientsFile, Err: err}
	}
	if f.Clients == nil {
		f.Clients = []models.Client{}
	}
	return f.Clients, nil
}

// AddClient validates c, assigns an id and appends it to clients.json.
// An unreadable clients.json is left untouched.
func (b *Builder) AddClient(ctx context.Context, c models.Client) (*models.Client, error) {
	capb, err := b.vault.Ensure()
	if err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Role = strings.TrimSpace(c.Role)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	fsys := capb.FS()
	clients, err := loadClients(fsys)
	if err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	if c.Emails == nil {
		c.Emails = []string{}
	}
	if c.Phones == nil {
		c.Phones = []string{}
	}
	clients = append(clients, c)

	data, err := json.MarshalIndent(models.ClientsFile{Clients: clients}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("vaultindex: encode clients: %w", err)
	}
	if err := fsys.WriteFile(ClientsFile, data); err != nil {
		return nil, err
	}
	b.logger.Info("vaultindex: client added", slog.String("id", c.ID), slog.String("name", c.Name))
	return &c, nil
}

// ResolveClientForText loads the vault's clients and returns the id of the
// first one named in text.
func (b *Builder) ResolveClientForText(ctx context.Context, text string) (string, bool, error) {
	clients, err := b.LoadClients(ctx)
	if err != nil {
		return "", false, err
	}
	id, ok := MatchClient(clients, text)
	return id, ok, nil
}

// MatchClient returns the id of the first client whose first and last name
// both occur in text, ignoring case. Clients missing either name never match.
func MatchClient(clients []models.Client, text string) (string, bool) {
	folded := strings.ToLower(text)
	for _, c := range clients {
		first := strings.ToLower(strings.TrimSpace(c.FirstName))
		last := strings.ToLower(strings.TrimSpace(c.LastName))
		if first == "" || last == "" {
			continue
		}
		if strings.Contains(folded, first) && strings.Contains(folded, last) {
			return c.ID, true
		}
	}
	return "", false
}

// Package itemservice provides the list, read and edit operations a table or
// form UI performs on vault items.
package itemservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/checksum"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/parser"
	"github.com/starford/docvault/internal/vaultindex"
)

// ItemDetail is an item plus the values needed to edit it safely.
type ItemDetail struct {
	models.Item
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Title    string `json:"title"`
}

// Filter narrows ListItems.
type Filter struct {
	Type     models.ItemType
	Status   models.Status
	ClientID string
	// Query matches metadata keys and values, ignoring case.
	Query string
	// Sort is "newest" (default), "oldest" or "title".
	Sort   string
	Limit  int
	Offset int
}

// Patch is a partial update. Nil fields are left alone. A ClientID pointing
// at an empty string clears the client.
type Patch struct {
	ItemType *models.ItemType `json:"item_type,omitempty"`
	Status   *models.Status   `json:"status,omitempty"`
	ClientID *string          `json:"client_id,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// MemoInput is the body of a new memo.
type MemoInput struct {
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	ClientID *string `json:"client_id,omitempty"`
}

// Validate requires a title and text.
func (in MemoInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Text, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

// Service coordinates the index builder and vault writes.
type Service struct {
	index  *vaultindex.Builder
	vault  vaultindex.Vault
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new item service.
func NewService(vault vaultindex.Vault, index *vaultindex.Builder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{index: index, vault: vault, logger: logger, now: time.Now}
}

// ListItems loads a fresh index and returns the matching items with the
// total before paging.
func (s *Service) ListItems(ctx context.Context, f Filter) ([]models.Item, int, error) {
	idx, err := s.index.LoadIndex(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Item, 0, len(idx.Items))
	for _, it := range idx.Items {
		if f.matches(&it) {
			out = append(out, it)
		}
	}
	sortItems(out, f.Sort)

	total := len(out)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			out = out[:0]
		} else {
			out = out[f.Offset:]
		}
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (f Filter) matches(it *models.Item) bool {
	if f.Type != "" && it.ItemType != f.Type {
		return false
	}
	if f.Status != "" && it.Status != f.Status {
		return false
	}
	if f.ClientID != "" && (it.ClientID == nil || *it.ClientID != f.ClientID) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return metadataContains(it, q)
	}
	return true
}

func metadataContains(it *models.Item, q string) bool {
	if it.Source != nil && strings.Contains(strings.ToLower(it.Source.OriginalFilename), q) {
		return true
	}
	for k, v := range it.Metadata {
		if strings.Contains(strings.ToLower(k), q) {
			return true
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(v)), q) {
			return true
		}
	}
	return false
}

func sortItems(items []models.Item, mode string) {
	switch mode {
	case "oldest":
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	case "title":
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Title()) < strings.ToLower(items[j].Title())
		})
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	}
}

// GetItem reads one item by id from either item directory.
func (s *Service) GetItem(ctx context.Context, id string) (*ItemDetail, error) {
	it, data, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail(it, data), nil
}

// UpdateItem applies p to the item with optimistic concurrency: a non-empty
// ifMatch must equal the checksum of the stored file.
func (s *Service) UpdateItem(ctx context.Context, id string, p Patch, ifMatch string) (*ItemDetail, error) {
	it, data, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(data) {
		return nil, apperr.ErrConflict
	}
	if p.ItemType != nil && *p.ItemType != it.ItemType {
		return nil, fmt.Errorf("%w: item_type is immutable (%s → %s)", apperr.ErrInvalidTransition, it.ItemType, *p.ItemType)
	}
	if p.Status != nil {
		if err := it.Transition(*p.Status); err != nil {
			return nil, err
		}
		if *p.Status != models.StatusError {
			it.Error = ""
		}
	}
	if p.ClientID != nil {
		if *p.ClientID == "" {
			it.ClientID = nil
		} else {
			cid := *p.ClientID
			it.ClientID = &cid
		}
	}
	if p.Metadata != nil {
		it.Metadata = p.Metadata
	}
	if err := it.Validate(); err != nil {
		return nil, err
	}
	return s.write(it)
}

// CreateMemo writes a new memo item.
func (s *Service) CreateMemo(ctx context.Context, in MemoInput) (*ItemDetail, error) {
	if _, err := s.vault.Ensure(); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	it := &models.Item{
		ItemVersion: models.ItemVersion,
		ID:          id,
		ItemType:    models.ItemMemo,
		ClientID:    in.ClientID,
		Status:      models.StatusReady,
		CreatedAt:   s.now().UTC(),
		Metadata:    map[string]any{"title": in.Title, "text": in.Text},
		Path:        vaultindex.MarkerPath(models.ItemMemo, id),
	}
	if it.ClientID != nil && *it.ClientID == "" {
		it.ClientID = nil
	}
	d, err := s.write(it)
	if err != nil {
		return nil, err
	}
	s.logger.Info("itemservice: memo created", slog.String("id", id))
	return d, nil
}

// DeleteItem removes the item's directory with every artifact in it.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	it, _, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	c, err := s.vault.Ensure()
	if err != nil {
		return err
	}
	if err := c.FS().DeleteTree(vaultindex.ItemDir(it.ItemType, it.ID)); err != nil {
		return err
	}
	s.logger.Info("itemservice: item deleted", slog.String("id", id))
	return nil
}

// find looks for id under both item directories.
func (s *Service) find(ctx context.Context, id string) (*models.Item, []byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, apperr.ErrNotFound
	}
	c, err := s.vault.Ensure()
	if err != nil {
		return nil, nil, err
	}
	fsys := c.FS()
	for _, typ := range []models.ItemType{models.ItemDocument, models.ItemMemo} {
		p := vaultindex.MarkerPath(typ, id)
		data, err := fsys.ReadFile(p)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		it, err := parser.ParseItem(p, data)
		if err != nil {
			return nil, nil, err
		}
		if it.ItemType != typ || it.ID != id {
			return nil, nil, fmt.Errorf("%w: %s holds %s %s", apperr.ErrValidation, p, it.ItemType, it.ID)
		}
		return it, data, nil
	}
	return nil, nil, apperr.ErrNotFound
}

func (s *Service) write(it *models.Item) (*ItemDetail, error) {
	c, err := s.vault.Ensure()
	if err != nil {
		return nil, err
	}
	data, err := parser.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("itemservice: encode: %w", err)
	}
	if err := c.FS().WriteFile(it.Path, data); err != nil {
		return nil, err
	}
	return detail(it, data), nil
}

func detail(it *models.Item, data []byte) *ItemDetail {
	return &ItemDetail{
		Item:     *it,
		Path:     it.Path,
		Checksum: checksum.Sum(data),
		Title:    it.Title(),
	}
}

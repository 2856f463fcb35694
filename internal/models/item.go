// Package models defines the domain types stored in and derived from a vault.
package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/docvault/internal/apperr"
)

// ItemVersion is the canonical envelope version written by this application.
const ItemVersion = 1

// ItemType tags the Item union.
type ItemType string

const (
	ItemDocument ItemType = "document"
	ItemMemo     ItemType = "memo"
)

// Status is the processing state of an item.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// CanTransition reports whether an item may move from s to next.
// Only processing → ready and processing → error are allowed; staying put is fine.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	return s == StatusProcessing && (next == StatusReady || next == StatusError)
}

// Source describes the original upload of a document.
type Source struct {
	OriginalFilename string `json:"original_filename"`
	Path             string `json:"path"`
	SHA256           string `json:"sha256,omitempty"`
}

// Item is the durable JSON unit stored under the vault (document or memo).
type Item struct {
	ItemVersion int            `json:"item_version"`
	ID          string         `json:"id"`
	ItemType    ItemType       `json:"item_type"`
	ClientID    *string        `json:"client_id"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	Source      *Source        `json:"source,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	Error       string         `json:"error,omitempty"`

	// Path is the root-relative location of the marker file; never serialized.
	Path string `json:"-"`
}

// Validate checks the envelope invariants.
func (it *Item) Validate() error {
	err := validation.ValidateStruct(it,
		validation.Field(&it.ItemVersion, validation.Required, validation.In(ItemVersion)),
		validation.Field(&it.ID, validation.Required, is.UUID),
		validation.Field(&it.ItemType, validation.Required, validation.In(ItemDocument, ItemMemo)),
		validation.Field(&it.Status, validation.Required, validation.In(StatusProcessing, StatusReady, StatusError)),
		validation.Field(&it.CreatedAt, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

// Transition moves the item to next, enforcing the status lifecycle.
func (it *Item) Transition(next Status) error {
	if !it.Status.CanTransition(next) {
		return fmt.Errorf("%w: status %s → %s", apperr.ErrInvalidTransition, it.Status, next)
	}
	it.Status = next
	return nil
}

// Title returns the display title taken from metadata, if any.
func (it *Item) Title() string {
	if t, ok := it.Metadata["title"].(string); ok {
		return t
	}
	if it.Source != nil {
		return it.Source.OriginalFilename
	}
	return ""
}

// Client is a person or organisation items may be attributed to.
type Client struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	Role         string   `json:"role"`
	Organization string   `json:"organization,omitempty"`
	Emails       []string `json:"emails"`
	Phones       []string `json:"phones"`
}

// Validate requires the fields a new client or contact must carry.
func (c *Client) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Role, validation.Required),
		validation.Field(&c.Emails, validation.Each(is.EmailFormat)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

// ClientsFile is the on-disk shape of clients.json.
type ClientsFile struct {
	Clients []Client `json:"clients"`
}

// Contact is the backend-managed variant of a client.
type Contact = Client

// EntryKind distinguishes files from directories in a walk.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// VaultEntry is a file or directory discovered under the vault root.
type VaultEntry struct {
	Kind EntryKind `json:"kind"`
	Name string    `json:"name"`
	Path string    `json:"path"`

	// Native is the absolute filesystem path backing the entry.
	Native string `json:"-"`
}

// Warning is a recovered per-entry failure.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// VaultIndex is the derived aggregate rebuilt on every load.
type VaultIndex struct {
	Items    []Item    `json:"items"`
	Clients  []Client  `json:"clients"`
	Warnings []Warning `json:"warnings"`
}

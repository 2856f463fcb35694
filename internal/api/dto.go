package api

import (
	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/intake"
	"github.com/starford/docvault/internal/itemservice"
	"github.com/starford/docvault/internal/models"
)

// SelectVaultRequest is the request body for selecting a vault.
type SelectVaultRequest struct {
	Path string `json:"path" example:"/home/me/Documents/vault"`
}

// VaultResponse describes the current selection.
type VaultResponse struct {
	Selected   bool   `json:"selected" validate:"required"`
	Name       string `json:"name,omitempty" example:"vault"`
	Root       string `json:"root,omitempty" example:"/home/me/Documents/vault"`
	Permission string `json:"permission,omitempty" example:"granted"`
	Generation uint64 `json:"generation" example:"1"`
}

func vaultResponse(c *capability.Capability) VaultResponse {
	return VaultResponse{
		Selected:   true,
		Name:       c.Name,
		Root:       c.Root,
		Permission: string(c.Permission),
		Generation: c.Generation,
	}
}

// FileResponse is returned after a successful file write.
type FileResponse struct {
	Path     string `json:"path" example:"clients.json" validate:"required"`
	Size     int    `json:"size" example:"123" validate:"required"`
	Checksum string `json:"checksum" example:"abc123..." validate:"required"`
}

// ItemDetail is the full item response type (aliased from the domain layer).
type ItemDetail = itemservice.ItemDetail

// ItemListResponse wraps paginated item listings.
type ItemListResponse struct {
	Items []models.Item `json:"items" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// IntakeListResponse wraps the ingestion rows.
type IntakeListResponse struct {
	Rows []intake.Row `json:"rows" validate:"required"`
}

// ClientListResponse wraps the vault clients.
type ClientListResponse struct {
	Clients []models.Client `json:"clients" validate:"required"`
}

// ResolveClientRequest carries text to match against client names.
type ResolveClientRequest struct {
	Text string `json:"text" example:"Invoice for Jane Doe" validate:"required"`
}

// ResolveClientResponse is the first matching client, if any.
type ResolveClientResponse struct {
	ClientID string `json:"client_id,omitempty" example:"c1"`
	Matched  bool   `json:"matched"`
}

// ContactListResponse wraps database contacts.
type ContactListResponse struct {
	Contacts []models.Contact `json:"contacts" validate:"required"`
}

package db

import (
	"context"

	"github.com/starford/docvault/internal/models"
)

// ContactStore is the contacts backend. Consumers depend on this interface
// rather than the concrete *DB type.
type ContactStore interface {
	CreateContact(ctx context.Context, c models.Contact) (*models.Contact, error)
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	ListContacts(ctx context.Context) ([]models.Contact, error)
	SearchContacts(ctx context.Context, query string, limit int) ([]models.Contact, error)
}

// Verify *DB satisfies ContactStore at compile time.
var _ ContactStore = (*DB)(nil)

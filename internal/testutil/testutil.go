// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/db"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/parser"
	"github.com/starford/docvault/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *db.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "docvault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	d, err := db.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// TestVault creates a temporary vault directory and a capability store that
// has it selected.
func TestVault(t *testing.T) (*capability.Store, *storage.FS) {
	t.Helper()
	caps := capability.NewStore(capability.WithLogger(Logger()))
	c, err := caps.ChooseWith(context.Background(), capability.StaticPicker(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	return caps, c.FS()
}

// NewItem returns a valid ready item of the given type with a fresh id.
func NewItem(typ models.ItemType, metadata map[string]any) *models.Item {
	return &models.Item{
		ItemVersion: models.ItemVersion,
		ID:          uuid.NewString(),
		ItemType:    typ,
		Status:      models.StatusReady,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Metadata:    metadata,
	}
}

// WriteItem stores it at its canonical marker location and returns the path.
func WriteItem(t *testing.T, fsys *storage.FS, it *models.Item) string {
	t.Helper()
	var path string
	switch it.ItemType {
	case models.ItemMemo:
		path = storage.JoinPath("memos", it.ID, "item.json")
	default:
		path = storage.JoinPath("documents", it.ID, "meta.json")
	}
	data, err := parser.Marshal(it)
	if err != nil {
		t.Fatal(err)
	}
	if err := fsys.WriteFile(path, data); err != nil {
		t.Fatal(err)
	}
	return path
}

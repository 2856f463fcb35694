package vaultindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/parser"
	"github.com/starford/docvault/internal/testutil"
)

func TestLoadIndex_NoVault(t *testing.T) {
	b := NewBuilder(capability.NewStore(), testutil.Logger())
	_, err := b.LoadIndex(context.Background())
	assert.ErrorIs(t, err, apperr.ErrNoVaultSelected)
}

func TestLoadIndex_EmptyVault(t *testing.T) {
	caps, _ := testutil.TestVault(t)
	idx, err := NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Items)
	assert.NotNil(t, idx.Items)
	assert.Empty(t, idx.Clients)
	assert.NotNil(t, idx.Clients)
	assert.Empty(t, idx.Warnings)
}

func TestLoadIndex_CorruptItemBecomesWarning(t *testing.T) {
	caps, fsys := testutil.TestVault(t)
	good := testutil.NewItem(models.ItemDocument, map[string]any{"title": "Invoice"})
	testutil.WriteItem(t, fsys, good)
	require.NoError(t, fsys.WriteFile("documents/broken/meta.json", []byte("{not json")))

	idx, err := NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, idx.Items, 1)
	assert.Equal(t, good.ID, idx.Items[0].ID)
	assert.Equal(t, "Invoice", idx.Items[0].Title())
	require.Len(t, idx.Warnings, 1)
	assert.Equal(t, "documents/broken/meta.json", idx.Warnings[0].Path)
}

func TestLoadIndex_ItemsAndMemos(t *testing.T) {
	caps, fsys := testutil.TestVault(t)
	doc := testutil.NewItem(models.ItemDocument, nil)
	memo := testutil.NewItem(models.ItemMemo, map[string]any{"title": "Call", "text": "notes"})
	testutil.WriteItem(t, fsys, doc)
	testutil.WriteItem(t, fsys, memo)
	// Non-marker files are ignored.
	require.NoError(t, fsys.WriteFile("documents/"+doc.ID+"/text.txt", []byte("ocr")))
	require.NoError(t, fsys.WriteFile("notes/readme.json", []byte("{}")))

	idx, err := NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Len(t, idx.Items, 2)
	assert.Empty(t, idx.Warnings)

	byID := map[string]models.Item{}
	for _, it := range idx.Items {
		byID[it.ID] = it
	}
	assert.Equal(t, models.ItemDocument, byID[doc.ID].ItemType)
	assert.Equal(t, "memos/"+memo.ID+"/item.json", byID[memo.ID].Path)
}

func TestLoadIndex_TypeMismatchAndDuplicates(t *testing.T) {
	caps, fsys := testutil.TestVault(t)

	memoInDocs := testutil.NewItem(models.ItemMemo, nil)
	data := mustMarshal(t, memoInDocs)
	require.NoError(t, fsys.WriteFile("documents/"+memoInDocs.ID+"/meta.json", data))

	doc := testutil.NewItem(models.ItemDocument, nil)
	testutil.WriteItem(t, fsys, doc)
	require.NoError(t, fsys.WriteFile("documents/copy/meta.json", mustMarshal(t, doc)))

	idx, err := NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, idx.Items, 1)
	assert.Equal(t, doc.ID, idx.Items[0].ID)
	assert.Len(t, idx.Warnings, 2)
}

func TestLoadIndex_IDMustMatchDirectory(t *testing.T) {
	caps, fsys := testutil.TestVault(t)

	moved := testutil.NewItem(models.ItemDocument, map[string]any{"title": "Moved"})
	other := "0b7e7a53-7a3a-4a8e-9f2a-5e1f4b1c2d3e"
	require.NoError(t, fsys.WriteFile("documents/"+other+"/meta.json", mustMarshal(t, moved)))

	memo := testutil.NewItem(models.ItemMemo, map[string]any{"title": "m", "text": "t"})
	require.NoError(t, fsys.WriteFile("memos/"+other+"/item.json", mustMarshal(t, memo)))

	idx, err := NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Items)
	require.Len(t, idx.Warnings, 2)
	for _, w := range idx.Warnings {
		assert.Contains(t, w.Message, "stored under directory "+other)
	}
}

func TestLoadIndex_LegacyEnvelopeWarnsAboutMigrate(t *testing.T) {
	caps, fsys := testutil.TestVault(t)
	legacy := `{"schema_version":1,"id":"0b7e7a53-7a3a-4a8e-9f2a-5e1f4b1c2d3e","item_type":"document","status":"ready","created_at":"2024-01-02T03:04:05Z","original_filename":"a.pdf","metadata":{}}`
	require.NoError(t, fsys.WriteFile("documents/0b7e7a53-7a3a-4a8e-9f2a-5e1f4b1c2d3e/meta.json", []byte(legacy)))

	idx, err := NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Items)
	require.Len(t, idx.Warnings, 1)
	assert.Contains(t, idx.Warnings[0].Message, "migrate")
}

func TestLoadIndex_InvalidEnvelope(t *testing.T) {
	caps, fsys := testutil.TestVault(t)
	bad := testutil.NewItem(models.ItemDocument, nil)
	bad.Status = "archived"
	testutil.WriteItem(t, fsys, bad)

	idx, err := NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Items)
	require.Len(t, idx.Warnings, 1)
}

func TestLoadIndex_BadClientsFileIsWarning(t *testing.T) {
	caps, fsys := testutil.TestVault(t)
	require.NoError(t, fsys.WriteFile(ClientsFile, []byte("[")))
	testutil.WriteItem(t, fsys, testutil.NewItem(models.ItemDocument, nil))

	idx, err := NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Len(t, idx.Items, 1)
	assert.Empty(t, idx.Clients)
	require.Len(t, idx.Warnings, 1)
	assert.Equal(t, ClientsFile, idx.Warnings[0].Path)
}

func TestAddAndLoadClients(t *testing.T) {
	caps, _ := testutil.TestVault(t)
	b := NewBuilder(caps, testutil.Logger())
	ctx := context.Background()

	_, err := b.AddClient(ctx, models.Client{Name: "No Role"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	c, err := b.AddClient(ctx, models.Client{Name: "Jane Doe", FirstName: "Jane", LastName: "Doe", Role: "client"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	clients, err := b.LoadClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, c.ID, clients[0].ID)

	idx, err := b.LoadIndex(ctx)
	require.NoError(t, err)
	assert.Len(t, idx.Clients, 1)
}

func TestResolveClientForText(t *testing.T) {
	caps, fsys := testutil.TestVault(t)
	require.NoError(t, fsys.WriteFile(ClientsFile, []byte(`{"clients":[
		{"id":"c0","name":"Mononym","first_name":"Cher","role":"client","emails":[],"phones":[]},
		{"id":"c1","name":"Jane Doe","first_name":"Jane","last_name":"Doe","role":"client","emails":[],"phones":[]},
		{"id":"c2","name":"John Doe","first_name":"John","last_name":"Doe","role":"client","emails":[],"phones":[]}
	]}`)))
	b := NewBuilder(caps, testutil.Logger())
	ctx := context.Background()

	id, ok, err := b.ResolveClientForText(ctx, "Patient: JANE doe, DOB 1980")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	_, ok, err = b.ResolveClientForText(ctx, "Cher sang")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = b.ResolveClientForText(ctx, "nobody here")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveClientForText_NoClientsFile(t *testing.T) {
	caps, _ := testutil.TestVault(t)
	_, ok, err := NewBuilder(caps, testutil.Logger()).ResolveClientForText(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkerType(t *testing.T) {
	typ, ok := MarkerType("documents/x/meta.json")
	assert.True(t, ok)
	assert.Equal(t, models.ItemDocument, typ)

	typ, ok = MarkerType("memos/x/item.json")
	assert.True(t, ok)
	assert.Equal(t, models.ItemMemo, typ)

	_, ok = MarkerType("memos/x/meta.json")
	assert.False(t, ok)
	_, ok = MarkerType("documents/meta.json")
	assert.False(t, ok)
}

func mustMarshal(t *testing.T, it *models.Item) []byte {
	t.Helper()
	data, err := parser.Marshal(it)
	require.NoError(t, err)
	return data
}

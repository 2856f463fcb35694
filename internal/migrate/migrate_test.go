package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/checksum"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/storage"
	"github.com/starford/docvault/internal/testutil"
	"github.com/starford/docvault/internal/vaultindex"
)

var legacyPDF = []byte("%PDF-1.3\nlegacy scan\n%%EOF")

func seedLegacyVault(t *testing.T, fsys *storage.FS) {
	t.Helper()
	require.NoError(t, fsys.WriteFile("invoice_meta.json", []byte(`{
		"title": "Invoice 7",
		"document_type": "invoice",
		"total_bill": 99.5,
		"original_filename": "invoice.pdf",
		"created_at": "2023-06-01T10:00:00Z"
	}`)))
	require.NoError(t, fsys.WriteFile("invoice.pdf", legacyPDF))
	require.NoError(t, fsys.WriteFile("invoice.txt", []byte("ocr of invoice")))

	require.NoError(t, fsys.WriteFile("Vault/Memos/memo-1700000000000.json", []byte(`{
		"id": "memo-1700000000000",
		"kind": "memo",
		"title": "Call",
		"text": "Left voicemail",
		"created_at": "2023-11-14T22:13:20.000Z"
	}`)))

	require.NoError(t, fsys.WriteFile("documents/0b7e7a53-7a3a-4a8e-9f2a-5e1f4b1c2d3e/meta.json", []byte(`{
		"schema_version": 1,
		"id": "0b7e7a53-7a3a-4a8e-9f2a-5e1f4b1c2d3e",
		"item_type": "document",
		"status": "ready",
		"created_at": "2024-02-03T04:05:06Z",
		"original_filename": "scan.pdf",
		"metadata": {"title": "Scan"}
	}`)))

	require.NoError(t, fsys.WriteFile("notes/settings.json", []byte(`{"theme":"dark"}`)))
	require.NoError(t, fsys.WriteFile("broken_meta.json", []byte(`{`)))
}

func TestRun_MigratesEveryLegacyForm(t *testing.T) {
	caps, fsys := testutil.TestVault(t)
	seedLegacyVault(t, fsys)

	rep, err := New(fsys, false, testutil.Logger()).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.DryRun)
	assert.Len(t, rep.Changes, 3)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "broken_meta.json", rep.Skipped[0].Path)

	docID := checksum.DocumentID(legacyPDF)
	src, err := fsys.ReadFile("documents/" + docID + "/source.pdf")
	require.NoError(t, err)
	assert.Equal(t, legacyPDF, src)
	text, err := fsys.ReadText("documents/" + docID + "/text.txt")
	require.NoError(t, err)
	assert.Equal(t, "ocr of invoice", text)

	for _, gone := range []string{"invoice_meta.json", "invoice.pdf", "invoice.txt", "Vault/Memos/memo-1700000000000.json"} {
		_, err := fsys.ReadFile(gone)
		assert.ErrorIs(t, err, apperr.ErrNotFound, gone)
	}
	_, err = fsys.ReadFile("notes/settings.json")
	assert.NoError(t, err, "unrelated JSON must be left alone")

	idx, err := vaultindex.NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Warnings)
	require.Len(t, idx.Items, 3)

	byType := map[models.ItemType][]models.Item{}
	for _, it := range idx.Items {
		byType[it.ItemType] = append(byType[it.ItemType], it)
	}
	require.Len(t, byType[models.ItemDocument], 2)
	require.Len(t, byType[models.ItemMemo], 1)

	memo := byType[models.ItemMemo][0]
	assert.Equal(t, "Call", memo.Metadata["title"])
	assert.Equal(t, "memo-1700000000000", memo.Metadata["legacy_id"])

	var invoice, scan models.Item
	for _, it := range byType[models.ItemDocument] {
		if it.ID == docID {
			invoice = it
		} else {
			scan = it
		}
	}
	assert.Equal(t, "invoice.pdf", invoice.Source.OriginalFilename)
	assert.Equal(t, checksum.Sum(legacyPDF), invoice.Source.SHA256)
	assert.Equal(t, "invoice", invoice.Metadata["document_type"])
	assert.NotContains(t, invoice.Metadata, "original_filename")
	assert.Equal(t, "scan.pdf", scan.Source.OriginalFilename)
	assert.Equal(t, "Scan", scan.Title())
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	_, fsys := testutil.TestVault(t)
	seedLegacyVault(t, fsys)

	before, err := fsys.Walk("")
	require.NoError(t, err)

	rep, err := New(fsys, true, testutil.Logger()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Len(t, rep.Changes, 3)

	after, err := fsys.Walk("")
	require.NoError(t, err)
	assert.ElementsMatch(t, paths(before), paths(after))

	raw, err := fsys.ReadText("documents/0b7e7a53-7a3a-4a8e-9f2a-5e1f4b1c2d3e/meta.json")
	require.NoError(t, err)
	assert.Contains(t, raw, "schema_version")
}

func TestRun_Idempotent(t *testing.T) {
	_, fsys := testutil.TestVault(t)
	seedLegacyVault(t, fsys)

	_, err := New(fsys, false, testutil.Logger()).Run(context.Background())
	require.NoError(t, err)
	rep, err := New(fsys, false, testutil.Logger()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Changes)
}

func TestRun_ExistingTargetIsSkipped(t *testing.T) {
	_, fsys := testutil.TestVault(t)
	docID := checksum.DocumentID(legacyPDF)
	existing := testutil.NewItem(models.ItemDocument, nil)
	existing.ID = docID
	testutil.WriteItem(t, fsys, existing)

	require.NoError(t, fsys.WriteFile("a_meta.json", []byte(`{"title":"dup"}`)))
	require.NoError(t, fsys.WriteFile("a.pdf", legacyPDF))

	rep, err := New(fsys, false, testutil.Logger()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Changes)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "a_meta.json", rep.Skipped[0].Path)

	_, err = fsys.ReadFile("a.pdf")
	assert.NoError(t, err)
}

func TestRun_MetaWithoutPDFGetsRandomID(t *testing.T) {
	caps, fsys := testutil.TestVault(t)
	require.NoError(t, fsys.WriteFile("old/report_meta.json", []byte(`{"title":"Report"}`)))

	rep, err := New(fsys, false, testutil.Logger()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Changes, 1)
	assert.Empty(t, rep.Changes[0].Moved)

	idx, err := vaultindex.NewBuilder(caps, testutil.Logger()).LoadIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, idx.Items, 1)
	assert.Nil(t, idx.Items[0].Source)
	assert.False(t, idx.Items[0].CreatedAt.IsZero())
}

func paths(r storage.WalkResult) []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Path
	}
	return out
}

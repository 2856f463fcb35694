package vaultindex

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/storage"
)

// Vault layout.
const (
	DocumentsDir = "documents"
	MemosDir     = "memos"
	ClientsFile  = "clients.json"

	DocumentMarker = "meta.json"
	MemoMarker     = "item.json"
	SourceFile     = "source.pdf"
	TextFile       = "text.txt"
)

// Marker patterns, one per item type.
var (
	DocumentPattern = DocumentsDir + "/*/" + DocumentMarker
	MemoPattern     = MemosDir + "/*/" + MemoMarker
)

// MarkerPatterns lists every file whose content feeds the index.
var MarkerPatterns = []string{DocumentPattern, MemoPattern, ClientsFile}

// ItemDirPatterns match whole item directories.
var ItemDirPatterns = []string{DocumentsDir + "/*", MemosDir + "/*"}

// MarkerType reports which item type the marker at path holds.
func MarkerType(path string) (models.ItemType, bool) {
	if ok, _ := doublestar.Match(DocumentPattern, path); ok {
		return models.ItemDocument, true
	}
	if ok, _ := doublestar.Match(MemoPattern, path); ok {
		return models.ItemMemo, true
	}
	return "", false
}

// ItemDir returns the directory holding the item with the given type and id.
func ItemDir(typ models.ItemType, id string) string {
	if typ == models.ItemMemo {
		return storage.JoinPath(MemosDir, id)
	}
	return storage.JoinPath(DocumentsDir, id)
}

// MarkerPath returns the marker location of the item with the given type and id.
func MarkerPath(typ models.ItemType, id string) string {
	if typ == models.ItemMemo {
		return storage.JoinPath(ItemDir(typ, id), MemoMarker)
	}
	return storage.JoinPath(ItemDir(typ, id), DocumentMarker)
}

// Package parser decodes item JSON files and recognises older envelope layouts.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/models"
)

// Generation identifies which envelope layout a file uses.
type Generation int

const (
	// Canonical is the item_version envelope.
	Canonical Generation = iota
	// SchemaVersion is an envelope keyed by schema_version and/or carrying
	// original_filename at the top level.
	SchemaVersion
	// LegacyMemo is a flat memo: {"kind":"memo","title","text","created_at"}.
	LegacyMemo
	// LegacyMeta is a bare metadata object from a *_meta.json file.
	LegacyMeta
)

func (g Generation) String() string {
	switch g {
	case Canonical:
		return "canonical"
	case SchemaVersion:
		return "schema_version"
	case LegacyMemo:
		return "legacy_memo"
	case LegacyMeta:
		return "legacy_meta"
	default:
		return fmt.Sprintf("generation(%d)", int(g))
	}
}

// Result holds a decoded file.
type Result struct {
	Generation Generation
	// Item is the envelope normalised to the canonical layout. Legacy
	// layouts without a usable id leave Item.ID empty.
	Item *models.Item
	// Raw is the top-level JSON object as decoded.
	Raw map[string]any
}

// Parse decodes data read from path. Malformed JSON or a non-object top
// level yields an *apperr.ParseError.
func Parse(path string, data []byte) (*Result, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &apperr.ParseError{Path: path, Err: err}
	}
	if raw == nil {
		return nil, &apperr.ParseError{Path: path, Err: errors.New("top level is not an object")}
	}

	gen := classify(raw)
	var (
		item *models.Item
		err  error
	)
	switch gen {
	case Canonical:
		item, err = decodeCanonical(data)
	case SchemaVersion:
		item, err = fromSchemaVersion(raw)
	case LegacyMemo:
		item = fromLegacyMemo(raw)
	case LegacyMeta:
		item = fromLegacyMeta(raw)
	}
	if err != nil {
		return nil, &apperr.ParseError{Path: path, Err: err}
	}
	item.Path = path
	return &Result{Generation: gen, Item: item, Raw: raw}, nil
}

// ParseItem decodes a canonical envelope. Any other layout is a parse error
// that points at the migration.
func ParseItem(path string, data []byte) (*models.Item, error) {
	res, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	if res.Generation != Canonical {
		return nil, &apperr.ParseError{
			Path: path,
			Err:  fmt.Errorf("%s envelope, run `docvault migrate`", res.Generation),
		}
	}
	return res.Item, nil
}

// Marshal encodes an item the way it is stored on disk.
func Marshal(it *models.Item) ([]byte, error) {
	if it.Metadata == nil {
		it.Metadata = map[string]any{}
	}
	return json.MarshalIndent(it, "", "  ")
}

func classify(raw map[string]any) Generation {
	if _, ok := raw["item_version"]; ok {
		return Canonical
	}
	if _, ok := raw["schema_version"]; ok {
		return SchemaVersion
	}
	_, hasType := raw["item_type"]
	_, hasFilename := raw["original_filename"]
	if hasType && hasFilename {
		return SchemaVersion
	}
	if kind, _ := raw["kind"].(string); kind == "memo" {
		return LegacyMemo
	}
	return LegacyMeta
}

func decodeCanonical(data []byte) (*models.Item, error) {
	var it models.Item
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, err
	}
	if it.Metadata == nil {
		it.Metadata = map[string]any{}
	}
	return &it, nil
}

func fromSchemaVersion(raw map[string]any) (*models.Item, error) {
	it := &models.Item{
		ItemVersion: models.ItemVersion,
		ID:          str(raw["id"]),
		ItemType:    models.ItemType(str(raw["item_type"])),
		Status:      models.Status(str(raw["status"])),
		CreatedAt:   timeOf(raw["created_at"]),
		Metadata:    object(raw["metadata"]),
	}
	if it.ItemType == "" {
		it.ItemType = models.ItemDocument
	}
	if it.Status == "" {
		it.Status = models.StatusReady
	}
	if cid := str(raw["client_id"]); cid != "" {
		it.ClientID = &cid
	}

	src := object(raw["source"])
	name := str(src["original_filename"])
	if name == "" {
		name = str(raw["original_filename"])
	}
	if name != "" || len(src) > 0 {
		it.Source = &models.Source{
			OriginalFilename: name,
			Path:             str(src["path"]),
			SHA256:           str(src["sha256"]),
		}
	}
	return it, nil
}

func fromLegacyMemo(raw map[string]any) *models.Item {
	meta := map[string]any{
		"title": str(raw["title"]),
		"text":  str(raw["text"]),
	}
	if id := str(raw["id"]); id != "" {
		meta["legacy_id"] = id
	}
	return &models.Item{
		ItemVersion: models.ItemVersion,
		ItemType:    models.ItemMemo,
		Status:      models.StatusReady,
		CreatedAt:   timeOf(raw["created_at"]),
		Metadata:    meta,
	}
}

func fromLegacyMeta(raw map[string]any) *models.Item {
	meta := make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case "original_filename", "created_at":
			continue
		}
		meta[k] = v
	}
	it := &models.Item{
		ItemVersion: models.ItemVersion,
		ItemType:    models.ItemDocument,
		Status:      models.StatusReady,
		CreatedAt:   timeOf(raw["created_at"]),
		Metadata:    meta,
	}
	if name := str(raw["original_filename"]); name != "" {
		it.Source = &models.Source{OriginalFilename: name}
	}
	return it
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func object(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func timeOf(v any) time.Time {
	s := str(v)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Package migrate rewrites older vault layouts into the canonical one.
//
// Three forms are handled:
//   - flat "<name>_meta.json" files with optional "<name>.pdf" and
//     "<name>.txt" siblings become documents/{id}/ directories;
//   - flat memo files ({"kind":"memo",...}) become memos/{id}/item.json;
//   - envelopes already at a canonical location but written with
//     schema_version or a top-level original_filename are rewritten in place.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/checksum"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/parser"
	"github.com/starford/docvault/internal/storage"
	"github.com/starford/docvault/internal/vaultindex"
)

const legacyMetaSuffix = "_meta.json"

// Change kinds.
const (
	ChangeDocument = "document"
	ChangeMemo     = "memo"
	ChangeEnvelope = "envelope"
)

// Change is one migrated item.
type Change struct {
	Kind  string   `json:"kind"`
	From  string   `json:"from"`
	To    string   `json:"to"`
	Moved []string `json:"moved,omitempty"`
}

// Report lists what a run did, or would do in dry-run mode.
type Report struct {
	DryRun   bool             `json:"dry_run"`
	Changes  []Change         `json:"changes"`
	Skipped  []models.Warning `json:"skipped"`
	Warnings []models.Warning `json:"warnings"`
}

// Migrator rewrites one vault.
type Migrator struct {
	fsys   *storage.FS
	dryRun bool
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Migrator for fsys.
func New(fsys *storage.FS, dryRun bool, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{fsys: fsys, dryRun: dryRun, logger: logger, now: time.Now}
}

// Run walks the vault once and migrates every legacy file it finds. Files
// that cannot be migrated are reported as skipped; only a failed walk or a
// failed write aborts the run.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	res, err := m.fsys.Walk("")
	if err != nil {
		return nil, fmt.Errorf("migrate: walk: %w", err)
	}
	rep := &Report{
		DryRun:   m.dryRun,
		Changes:  []Change{},
		Skipped:  []models.Warning{},
		Warnings: append([]models.Warning{}, res.Warnings...),
	}

	present := make(map[string]bool, len(res.Entries))
	for _, e := range res.Entries {
		present[e.Path] = true
	}

	for _, e := range res.Files() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if !strings.HasSuffix(e.Path, ".json") || e.Path == vaultindex.ClientsFile {
			continue
		}

		var (
			ch  *Change
			err error
		)
		switch {
		case isCanonicalLocation(e.Path):
			ch, err = m.rewriteEnvelope(e.Path)
		case strings.HasSuffix(e.Path, legacyMetaSuffix):
			ch, err = m.migrateLegacyMeta(e.Path, present)
		default:
			ch, err = m.migrateLegacyMemo(e.Path)
		}

		var se *skipError
		switch {
		case errors.As(err, &se):
			rep.Skipped = append(rep.Skipped, models.Warning{Path: e.Path, Message: se.reason})
			m.logger.Warn("migrate: skipped", slog.String("path", e.Path), slog.String("reason", se.reason))
		case err != nil:
			return rep, err
		case ch != nil:
			rep.Changes = append(rep.Changes, *ch)
			m.logger.Info("migrate: migrated",
				slog.String("kind", ch.Kind),
				slog.String("from", ch.From),
				slog.String("to", ch.To),
				slog.Bool("dry_run", m.dryRun))
		}
	}
	return rep, nil
}

type skipError struct{ reason string }

func (e *skipError) Error() string { return e.reason }

func skip(format string, args ...any) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

func isCanonicalLocation(p string) bool {
	_, ok := vaultindex.MarkerType(p)
	return ok
}

// inItemTree reports whether p lives below documents/ or memos/.
func inItemTree(p string) bool {
	for _, pat := range []string{vaultindex.DocumentsDir + "/**", vaultindex.MemosDir + "/**"} {
		if ok, _ := doublestar.Match(pat, p); ok {
			return true
		}
	}
	return false
}

func (m *Migrator) parse(p string) (*parser.Result, error) {
	data, err := m.fsys.ReadFile(p)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(p, data)
	if errors.Is(err, apperr.ErrParse) {
		return nil, skip("%v", err)
	}
	return res, err
}

// rewriteEnvelope normalises a non-canonical envelope at a canonical path.
func (m *Migrator) rewriteEnvelope(p string) (*Change, error) {
	res, err := m.parse(p)
	if err != nil {
		return nil, err
	}
	if res.Generation == parser.Canonical {
		return nil, nil
	}

	typ, _ := vaultindex.MarkerType(p)
	dirID := path.Base(path.Dir(p))
	it := res.Item
	if _, err := uuid.Parse(it.ID); err != nil {
		if _, derr := uuid.Parse(dirID); derr != nil {
			return nil, skip("no usable id (directory %q is not a uuid)", dirID)
		}
		it.ID = dirID
	}
	if it.ID != dirID {
		return nil, skip("id %s does not match directory %s", it.ID, dirID)
	}
	it.ItemType = typ
	if typ == models.ItemDocument {
		m.completeSource(it, path.Dir(p))
	}
	m.stampCreated(p, it)
	if err := it.Validate(); err != nil {
		return nil, skip("%v", err)
	}
	if err := m.writeItem(p, it); err != nil {
		return nil, err
	}
	return &Change{Kind: ChangeEnvelope, From: p, To: p}, nil
}

// completeSource fills the source block from documents/{id}/source.pdf.
func (m *Migrator) completeSource(it *models.Item, dir string) {
	src := storage.JoinPath(dir, vaultindex.SourceFile)
	data, err := m.fsys.ReadFile(src)
	if err != nil {
		return
	}
	if it.Source == nil {
		it.Source = &models.Source{OriginalFilename: vaultindex.SourceFile}
	}
	it.Source.Path = src
	it.Source.SHA256 = checksum.Sum(data)
}

// migrateLegacyMeta moves <base>_meta.json and its siblings into a new
// document directory.
func (m *Migrator) migrateLegacyMeta(p string, present map[string]bool) (*Change, error) {
	if inItemTree(p) {
		return nil, skip("legacy metadata file inside an item directory")
	}
	res, err := m.parse(p)
	if err != nil {
		return nil, err
	}
	it := res.Item
	if it.ItemType != models.ItemDocument {
		return nil, skip("legacy metadata holds a %s", it.ItemType)
	}

	dir := path.Dir(p)
	base := strings.TrimSuffix(path.Base(p), legacyMetaSuffix)
	pdfPath := storage.JoinPath(dir, base+".pdf")
	txtPath := storage.JoinPath(dir, base+".txt")

	var pdf []byte
	if present[pdfPath] {
		if pdf, err = m.fsys.ReadFile(pdfPath); err != nil {
			return nil, err
		}
		it.ID = checksum.DocumentID(pdf)
	} else {
		it.ID = uuid.NewString()
	}
	m.stampCreated(p, it)

	target := vaultindex.ItemDir(models.ItemDocument, it.ID)
	marker := storage.JoinPath(target, vaultindex.DocumentMarker)
	if present[marker] || m.exists(marker) {
		return nil, skip("%s already exists", marker)
	}

	ch := &Change{Kind: ChangeDocument, From: p, To: marker}
	if pdf != nil {
		src := storage.JoinPath(target, vaultindex.SourceFile)
		if it.Source == nil {
			it.Source = &models.Source{OriginalFilename: base + ".pdf"}
		}
		it.Source.Path = src
		it.Source.SHA256 = checksum.Sum(pdf)
		ch.Moved = append(ch.Moved, pdfPath)
	}
	if present[txtPath] {
		ch.Moved = append(ch.Moved, txtPath)
	}
	if err := it.Validate(); err != nil {
		return nil, skip("%v", err)
	}
	if m.dryRun {
		return ch, nil
	}

	if pdf != nil {
		if err := m.fsys.Move(pdfPath, storage.JoinPath(target, vaultindex.SourceFile)); err != nil {
			return nil, err
		}
	}
	if present[txtPath] {
		if err := m.fsys.Move(txtPath, storage.JoinPath(target, vaultindex.TextFile)); err != nil {
			return nil, err
		}
	}
	if err := m.writeItem(marker, it); err != nil {
		return nil, err
	}
	if err := m.fsys.Delete(p); err != nil {
		return nil, err
	}
	return ch, nil
}

// migrateLegacyMemo turns a flat memo file into memos/{id}/item.json. JSON
// files that are not memos are left alone.
func (m *Migrator) migrateLegacyMemo(p string) (*Change, error) {
	if inItemTree(p) {
		return nil, nil
	}
	res, err := m.parse(p)
	var sk *skipError
	if errors.As(err, &sk) {
		// Not every stray JSON file is ours.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if res.Generation != parser.LegacyMemo {
		return nil, nil
	}
	it := res.Item
	it.ID = uuid.NewString()
	m.stampCreated(p, it)
	if err := it.Validate(); err != nil {
		return nil, skip("%v", err)
	}
	marker := vaultindex.MarkerPath(models.ItemMemo, it.ID)
	ch := &Change{Kind: ChangeMemo, From: p, To: marker}
	if m.dryRun {
		return ch, nil
	}
	if err := m.writeItem(marker, it); err != nil {
		return nil, err
	}
	if err := m.fsys.Delete(p); err != nil {
		return nil, err
	}
	return ch, nil
}

// stampCreated gives items without a readable created_at the migration time.
func (m *Migrator) stampCreated(p string, it *models.Item) {
	if !it.CreatedAt.IsZero() {
		return
	}
	it.CreatedAt = m.now().UTC()
	m.logger.Debug("migrate: created_at missing, using now", slog.String("path", p))
}

func (m *Migrator) exists(p string) bool {
	_, err := m.fsys.Stat(p)
	return err == nil
}

func (m *Migrator) writeItem(p string, it *models.Item) error {
	if m.dryRun {
		return nil
	}
	data, err := parser.Marshal(it)
	if err != nil {
		return fmt.Errorf("migrate: encode %s: %w", p, err)
	}
	return m.fsys.WriteFile(p, data)
}

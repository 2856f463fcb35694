// Package intake turns uploaded PDFs into document items in the vault.
//
// Each ingestion runs the steps uploading, digitizing, extracting and
// writing in order. A failing step marks the row as error and leaves every
// artifact already written in place; re-running the same file overwrites
// them because the document id is derived from the file's content.
package intake

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/checksum"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/parser"
	"github.com/starford/docvault/internal/storage"
	"github.com/starford/docvault/internal/vaultindex"
)

// MaxUploadSize bounds a single PDF.
const MaxUploadSize = 50 << 20

var pdfMagic = []byte("%PDF-")

// Backend is the remote OCR and metadata collaborator.
type Backend interface {
	Digitize(ctx context.Context, filename string, pdf []byte) (string, error)
	Extract(ctx context.Context, text, filename string) (map[string]any, error)
}

// ClientResolver picks a client id for OCR text.
type ClientResolver interface {
	ResolveClientForText(ctx context.Context, text string) (string, bool, error)
}

// Vault is the part of capability.Store intake needs.
type Vault interface {
	Ensure() (*capability.Capability, error)
}

// Upload is one PDF handed to the pipeline.
type Upload struct {
	Filename string
	Data     []byte
}

// Service runs ingestions and keeps their rows.
type Service struct {
	vault    Vault
	backend  Backend
	resolver ClientResolver
	logger   *slog.Logger
	now      func() time.Time

	rows   *tracker
	wg     sync.WaitGroup
	active atomic.Int64

	// abortCtx is cancelled when a bounded wait gives up on background runs.
	abortCtx context.Context
	abort    context.CancelFunc
}

// Option configures a Service.
type Option func(*Service)

// WithClientResolver enables client attribution from OCR text.
func WithClientResolver(r ClientResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithOnUpdate registers a callback for every row change. It runs on the
// ingesting goroutine and must not block.
func WithOnUpdate(fn func(Row)) Option {
	return func(s *Service) { s.rows.onUpdate = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.rows.now = now
	}
}

// NewService creates a Service.
func NewService(vault Vault, backend Backend, opts ...Option) *Service {
	s := &Service{
		vault:   vault,
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	s.rows = newTracker(nil, time.Now)
	s.abortCtx, s.abort = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// job is one prepared ingestion attempt.
type job struct {
	rowID    string
	docID    string
	filename string
	data     []byte
	fsys     *storage.FS
}

// Ingest runs the full pipeline for up and returns the final row. Without a
// selected vault it fails before writing anything or calling the backend.
func (s *Service) Ingest(ctx context.Context, up Upload) (Row, error) {
	j, err := s.prepare(up)
	if err != nil {
		return Row{}, err
	}
	return s.run(ctx, j)
}

// Start is Ingest on a background goroutine. It returns the placeholder row
// right away; Wait blocks until every started ingestion is finished.
func (s *Service) Start(ctx context.Context, up Upload) (Row, error) {
	j, err := s.prepare(up)
	if err != nil {
		return Row{}, err
	}
	return s.spawn(ctx, j), nil
}

// Retry re-runs the pipeline from the stored source.pdf of document id.
func (s *Service) Retry(ctx context.Context, id string) (Row, error) {
	j, err := s.prepareRetry(id)
	if err != nil {
		return Row{}, err
	}
	return s.run(ctx, j)
}

// StartRetry is Retry on a background goroutine.
func (s *Service) StartRetry(ctx context.Context, id string) (Row, error) {
	j, err := s.prepareRetry(id)
	if err != nil {
		return Row{}, err
	}
	return s.spawn(ctx, j), nil
}

// Wait blocks until all background ingestions have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// WaitContext is Wait bounded by ctx. When ctx ends first, the background
// ingestions still running are cancelled, which records them as failed, and
// their number is returned with ctx's error.
func (s *Service) WaitContext(ctx context.Context) (int, error) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return 0, nil
	case <-ctx.Done():
		n := int(s.active.Load())
		s.abort()
		return n, ctx.Err()
	}
}

// Rows returns every row in insertion order.
func (s *Service) Rows() []Row {
	return s.rows.list()
}

// Row returns one row or apperr.ErrNotFound.
func (s *Service) Row(id string) (Row, error) {
	return s.rows.get(id)
}

func (s *Service) spawn(ctx context.Context, j *job) Row {
	row, _ := s.rows.get(j.rowID)
	// The request that started the ingestion may end long before it does.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.abortCtx, cancel)
	s.wg.Add(1)
	s.active.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)
		defer cancel()
		defer stop()
		_, _ = s.run(runCtx, j)
	}()
	return row
}

func (s *Service) prepare(up Upload) (*job, error) {
	c, err := s.vault.Ensure()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(path.Base(strings.ReplaceAll(up.Filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: filename is required", apperr.ErrValidation)
	}
	if err := checkPDF(up.Data); err != nil {
		return nil, err
	}
	j := &job{
		docID:    checksum.DocumentID(up.Data),
		filename: name,
		data:     up.Data,
		fsys:     c.FS(),
	}
	j.rowID = s.insertRow(j)
	return j, nil
}

func (s *Service) prepareRetry(id string) (*job, error) {
	c, err := s.vault.Ensure()
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: document id %q", apperr.ErrValidation, id)
	}
	fsys := c.FS()
	dir := vaultindex.ItemDir(models.ItemDocument, id)
	data, err := fsys.ReadFile(storage.JoinPath(dir, vaultindex.SourceFile))
	if err != nil {
		return nil, err
	}
	name := vaultindex.SourceFile
	marker := storage.JoinPath(dir, vaultindex.DocumentMarker)
	if raw, err := fsys.ReadFile(marker); err == nil {
		if it, err := parser.ParseItem(marker, raw); err == nil && it.Source != nil && it.Source.OriginalFilename != "" {
			name = it.Source.OriginalFilename
		}
	}
	j := &job{docID: id, filename: name, data: data, fsys: fsys}
	j.rowID = s.insertRow(j)
	return j, nil
}

func (s *Service) insertRow(j *job) string {
	r := s.rows.insert(Row{
		ID:         uuid.NewString(),
		DocumentID: j.docID,
		Filename:   j.filename,
		State:      StateIdle,
	})
	return r.ID
}

func checkPDF(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty upload", apperr.ErrValidation)
	}
	if len(data) > MaxUploadSize {
		return fmt.Errorf("%w: file too large: %d bytes (max %d)", apperr.ErrValidation, len(data), MaxUploadSize)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return fmt.Errorf("%w: content is not a PDF", apperr.ErrValidation)
	}
	return nil
}

// run executes the pipeline. Artifacts written before a failure stay.
func (s *Service) run(ctx context.Context, j *job) (Row, error) {
	inFlight.Inc()
	defer inFlight.Dec()

	logger := s.logger.With(slog.String("document_id", j.docID), slog.String("row", j.rowID))
	dir := vaultindex.ItemDir(models.ItemDocument, j.docID)
	sourcePath := storage.JoinPath(dir, vaultindex.SourceFile)
	textPath := storage.JoinPath(dir, vaultindex.TextFile)
	markerPath := storage.JoinPath(dir, vaultindex.DocumentMarker)

	if _, err := j.fsys.Stat(markerPath); err == nil {
		logger.Info("intake: overwriting prior artifacts", slog.String("path", dir))
	}

	item := &models.Item{
		ItemVersion: models.ItemVersion,
		ID:          j.docID,
		ItemType:    models.ItemDocument,
		Status:      models.StatusProcessing,
		CreatedAt:   s.now().UTC(),
		Source: &models.Source{
			OriginalFilename: j.filename,
			Path:             sourcePath,
			SHA256:           checksum.Sum(j.data),
		},
		Metadata: map[string]any{},
	}

	var (
		step         State
		sourceStored bool
		stepStart    time.Time
	)
	enter := func(next State) {
		if step != "" {
			stepDuration.WithLabelValues(string(step)).Observe(time.Since(stepStart).Seconds())
		}
		step, stepStart = next, time.Now()
		s.rows.update(j.rowID, func(r *Row) { r.State = next })
		logger.Debug("intake: step", slog.String("state", string(next)))
	}
	fail := func(err error) (Row, error) {
		stepFailuresTotal.WithLabelValues(string(step)).Inc()
		ingestionsTotal.WithLabelValues(string(StateError)).Inc()
		logger.Error("intake: failed", slog.String("state", string(step)), slog.String("error", err.Error()))

		if sourceStored {
			item.Error = err.Error()
			if terr := item.Transition(models.StatusError); terr == nil {
				if werr := s.writeItem(j.fsys, markerPath, item); werr != nil {
					logger.Warn("intake: write error marker failed", slog.String("error", werr.Error()))
				}
			}
		}
		row := s.rows.update(j.rowID, func(r *Row) {
			r.State = StateError
			r.Error = err.Error()
			if sourceStored {
				r.Path = markerPath
			}
		})
		return row, fmt.Errorf("intake: %s: %w", step, err)
	}

	enter(StateUploading)
	if err := j.fsys.WriteFile(sourcePath, j.data); err != nil {
		return fail(err)
	}
	sourceStored = true
	if err := s.writeItem(j.fsys, markerPath, item); err != nil {
		return fail(err)
	}

	enter(StateDigitizing)
	text, err := s.backend.Digitize(ctx, j.filename, j.data)
	if err != nil {
		return fail(err)
	}
	if err := j.fsys.WriteFile(textPath, []byte(text)); err != nil {
		return fail(err)
	}

	enter(StateExtracting)
	meta, err := s.backend.Extract(ctx, text, j.filename)
	if err != nil {
		return fail(err)
	}

	enter(StateWriting)
	if meta == nil {
		meta = map[string]any{}
	}
	// item stays in processing until the ready envelope is on disk, so a
	// failed final write can still be recorded as an error.
	ready := *item
	ready.Metadata = meta
	var clientID string
	if s.resolver != nil {
		id, ok, rerr := s.resolver.ResolveClientForText(ctx, text)
		switch {
		case rerr != nil:
			logger.Warn("intake: client resolution skipped", slog.String("error", rerr.Error()))
		case ok:
			clientID = id
			ready.ClientID = &id
		}
	}
	if err := ready.Transition(models.StatusReady); err != nil {
		return fail(err)
	}
	if err := s.writeItem(j.fsys, markerPath, &ready); err != nil {
		return fail(err)
	}

	enter(StateReady)
	ingestionsTotal.WithLabelValues(string(StateReady)).Inc()
	row := s.rows.update(j.rowID, func(r *Row) {
		r.Path = markerPath
		r.ClientID = clientID
	})
	logger.Info("intake: document ready", slog.String("path", markerPath), slog.String("filename", j.filename))
	return row, nil
}

func (s *Service) writeItem(fsys *storage.FS, p string, it *models.Item) error {
	data, err := parser.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	return fsys.WriteFile(p, data)
}

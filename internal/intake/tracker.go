package intake

import (
	"sync"
	"time"

	"github.com/starford/docvault/internal/apperr"
)

// State is the position of one ingestion in the pipeline.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateDigitizing State = "digitizing"
	StateExtracting State = "extracting"
	StateWriting    State = "writing"
	StateReady      State = "ready"
	StateError      State = "error"
)

// Terminal reports whether the state ends an ingestion.
func (s State) Terminal() bool {
	return s == StateReady || s == StateError
}

// Row is the table entry for one ingestion attempt.
type Row struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	Path       string    `json:"path,omitempty"`
	ClientID   string    `json:"client_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// tracker holds rows in insertion order and reports every change.
type tracker struct {
	mu       sync.Mutex
	rows     map[string]*Row
	order    []string
	onUpdate func(Row)
	now      func() time.Time
}

func newTracker(onUpdate func(Row), now func() time.Time) *tracker {
	return &tracker{rows: make(map[string]*Row), onUpdate: onUpdate, now: now}
}

func (t *tracker) insert(r Row) Row {
	t.mu.Lock()
	r.StartedAt = t.now()
	r.UpdatedAt = r.StartedAt
	cp := r
	t.rows[r.ID] = &cp
	t.order = append(t.order, r.ID)
	t.mu.Unlock()

	t.notify(r)
	return r
}

func (t *tracker) update(id string, fn func(*Row)) Row {
	t.mu.Lock()
	r, ok := t.rows[id]
	if !ok {
		t.mu.Unlock()
		return Row{}
	}
	fn(r)
	r.UpdatedAt = t.now()
	snap := *r
	t.mu.Unlock()

	t.notify(snap)
	return snap
}

func (t *tracker) notify(r Row) {
	if t.onUpdate != nil {
		t.onUpdate(r)
	}
}

func (t *tracker) get(id string) (Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rows[id]
	if !ok {
		return Row{}, apperr.ErrNotFound
	}
	return *r, nil
}

func (t *tracker) list() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Row, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.rows[id])
	}
	return out
}

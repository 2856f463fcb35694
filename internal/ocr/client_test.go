package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/docvault/internal/apperr"
)

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(UploadPath, func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusUnprocessableEntity)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ocr_text": hdr.Filename + ":" + string(data),
		})
	})
	mux.HandleFunc(ExtractPath, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{
				"title":    r.FormValue("filename"),
				"excerpt":  r.FormValue("text"),
				"facts":    []string{"a", "b"},
				"pages":    2,
				"optional": nil,
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDigitize(t *testing.T) {
	srv := fakeBackend(t)
	c := New(srv.URL, 0)

	text, err := c.Digitize(context.Background(), "scan.pdf", []byte("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf:%PDF-1.4 body", text)
}

func TestExtract(t *testing.T) {
	srv := fakeBackend(t)
	c := New(srv.URL, 0)

	meta, err := c.Extract(context.Background(), "hello world", "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", meta["title"])
	assert.Equal(t, "hello world", meta["excerpt"])
	assert.Contains(t, meta, "facts")
}

func TestNon2xxIsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := New(srv.URL, 0)

	_, err := c.Digitize(context.Background(), "a.pdf", []byte("x"))
	require.ErrorIs(t, err, apperr.ErrUpstreamFailure)
	var ue *apperr.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusServiceUnavailable, ue.StatusCode)
	assert.Equal(t, UploadPath, ue.Endpoint)
	assert.Contains(t, ue.Body, "model offline")

	_, err = c.Extract(context.Background(), "text", "")
	assert.ErrorIs(t, err, apperr.ErrUpstreamFailure)
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Digitize(context.Background(), "a.pdf", []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrUpstreamFailure)
}

func TestContextCancelled(t *testing.T) {
	srv := fakeBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL, 0).Digitize(ctx, "a.pdf", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/checksum"
)

const maxFileBytes = 50 << 20 // 50 MB

// Handler holds API route handlers.
type Handler struct {
	svc         Services
	authEnabled bool
}

// NewHandler creates a new Handler.
func NewHandler(svc Services, authEnabled bool) *Handler {
	return &Handler{svc: svc, authEnabled: authEnabled}
}

// wildcardPath extracts the vault path from the URL (everything after the
// route prefix). Supports encoded slashes from OpenAPI clients (e.g. documents%2Fx).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ifMatch returns the If-Match header without ETag quotes.
func ifMatch(r *http.Request) string {
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

// GetVault handles GET /api/vault.
//
//	@Summary		Describe the selected vault
//	@Tags			vault
//	@Produce		json
//	@Success		200	{object}	VaultResponse
//	@Security		BearerAuth
//	@Router			/vault [get]
func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Vault.Ensure()
	if errors.Is(err, apperr.ErrNoVaultSelected) {
		writeJSON(w, http.StatusOK, VaultResponse{Selected: false, Generation: h.svc.Vault.Generation()})
		return
	}
	if err != nil {
		writeError(w, "get vault", err)
		return
	}
	writeJSON(w, http.StatusOK, vaultResponse(c))
}

// SelectVault handles POST /api/vault. A body with a path selects that
// directory; an empty body runs the server's own picker.
//
//	@Summary		Select the vault directory
//	@Tags			vault
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectVaultRequest	false	"Directory to select"
//	@Success		200		{object}	VaultResponse
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		501		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vault [post]
func (h *Handler) SelectVault(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SelectVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	var (
		c   *capability.Capability
		err error
	)
	if p := strings.TrimSpace(req.Path); p != "" {
		if err := h.allowVaultPath(p); err != nil {
			writeError(w, "select vault", err)
			return
		}
		c, err = h.svc.Vault.ChooseWith(r.Context(), capability.StaticPicker(p))
	} else {
		c, err = h.svc.Vault.Choose(r.Context())
	}
	if err != nil {
		writeError(w, "select vault", err)
		return
	}
	writeJSON(w, http.StatusOK, vaultResponse(c))
}

// allowVaultPath decides whether a client may select dir by path. With
// configured roots dir must resolve inside one of them; without roots the
// request must be authenticated.
func (h *Handler) allowVaultPath(dir string) error {
	if len(h.svc.VaultRoots) == 0 {
		if !h.authEnabled {
			return fmt.Errorf("%w: selecting a vault by path needs token auth or vault.allowed_roots", apperr.ErrPermissionDenied)
		}
		return nil
	}
	target := resolveDir(dir)
	for _, root := range h.svc.VaultRoots {
		rel, err := filepath.Rel(resolveDir(root), target)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is outside vault.allowed_roots", apperr.ErrPermissionDenied, dir)
}

// resolveDir returns the absolute, symlink-free form of dir, or its cleaned
// absolute form when it does not exist.
func resolveDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// LoadIndex handles GET /api/index.
//
//	@Summary		Rebuild and return the vault index
//	@Tags			vault
//	@Produce		json
//	@Success		200	{object}	models.VaultIndex
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index [get]
func (h *Handler) LoadIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := h.svc.Index.LoadIndex(r.Context())
	if err != nil {
		writeError(w, "load index", err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// Tree handles GET /api/tree?dir=.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Vault.Ensure()
	if err != nil {
		writeError(w, "tree", err)
		return
	}
	res, err := c.FS().Walk(r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, "tree", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReadFile handles GET /api/files/*. The checksum is sent as ETag.
//
//	@Summary		Read a vault file
//	@Tags			files
//	@Produce		octet-stream
//	@Param			path	path	string	true	"Vault path"
//	@Success		200
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [get]
func (h *Handler) ReadFile(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	c, err := h.svc.Vault.Ensure()
	if err != nil {
		writeError(w, "read file", err)
		return
	}
	data, err := c.FS().ReadFile(p)
	if err != nil {
		writeError(w, "read file", err)
		return
	}
	ct := mime.TypeByExtension(path.Ext(p))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("ETag", `"`+checksum.Sum(data)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// WriteFile handles PUT /api/files/*. The raw body replaces the file.
//
//	@Summary		Write a vault file with optional optimistic concurrency
//	@Tags			files
//	@Accept			octet-stream
//	@Produce		json
//	@Param			path		path	string	true	"Vault path"
//	@Param			If-Match	header	string	false	"SHA-256 checksum of the current content"
//	@Success		200			{object}	FileResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [put]
func (h *Handler) WriteFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes)
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	c, err := h.svc.Vault.Ensure()
	if err != nil {
		writeError(w, "write file", err)
		return
	}
	fsys := c.FS()
	if want := ifMatch(r); want != "" {
		cur, err := fsys.ReadFile(p)
		if err != nil {
			writeError(w, "write file", err)
			return
		}
		if checksum.Sum(cur) != want {
			writeJSON(w, http.StatusConflict, errResponse{Error: "checksum mismatch", Code: "conflict"})
			return
		}
	}
	if err := fsys.WriteFile(p, body); err != nil {
		writeError(w, "write file", err)
		return
	}
	writeJSON(w, http.StatusOK, FileResponse{Path: p, Size: len(body), Checksum: checksum.Sum(body)})
}

// EnsureDir handles POST /api/dirs/*.
func (h *Handler) EnsureDir(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	c, err := h.svc.Vault.Ensure()
	if err != nil {
		writeError(w, "ensure dir", err)
		return
	}
	if err := c.FS().EnsureDir(p); err != nil {
		writeError(w, "ensure dir", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": p})
}

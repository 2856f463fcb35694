package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docvault/internal/itemservice"
	"github.com/starford/docvault/internal/models"
)

// ListItems handles GET /api/items.
//
//	@Summary		List vault items with filtering and pagination
//	@Tags			items
//	@Produce		json
//	@Param			type		query		string	false	"Item type"	Enums(document, memo)
//	@Param			status		query		string	false	"Status"	Enums(processing, ready, error)
//	@Param			client_id	query		string	false	"Client id"
//	@Param			q			query		string	false	"Text matched against metadata"
//	@Param			sort		query		string	false	"Sort order"	Enums(newest, oldest, title)
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	ItemListResponse
//	@Security		BearerAuth
//	@Router			/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	f := itemservice.Filter{
		Type:     models.ItemType(q.Get("type")),
		Status:   models.Status(q.Get("status")),
		ClientID: q.Get("client_id"),
		Query:    q.Get("q"),
		Sort:     q.Get("sort"),
		Limit:    limit,
		Offset:   offset,
	}
	items, total, err := h.svc.Items.ListItems(r.Context(), f)
	if err != nil {
		writeError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: total})
}

// GetItem handles GET /api/items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Items.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// UpdateItem handles PATCH /api/items/{id}.
//
//	@Summary		Update item metadata, client or status
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Item id"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		itemservice.Patch	true	"Fields to change"
//	@Success		200			{object}	ItemDetail
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{id} [patch]
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var p itemservice.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.svc.Items.UpdateItem(r.Context(), chi.URLParam(r, "id"), p, ifMatch(r))
	if err != nil {
		writeError(w, "update item", err)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// DeleteItem handles DELETE /api/items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Items.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateMemo handles POST /api/memos.
//
//	@Summary		Create a memo
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		itemservice.MemoInput	true	"Memo to create"
//	@Success		201		{object}	ItemDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memos [post]
func (h *Handler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var in itemservice.MemoInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.svc.Items.CreateMemo(r.Context(), in)
	if err != nil {
		writeError(w, "create memo", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

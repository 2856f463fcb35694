package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docvault/internal/models"
)

// ListClients handles GET /api/clients (the vault's clients.json).
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.Index.LoadClients(r.Context())
	if err != nil {
		writeError(w, "list clients", err)
		return
	}
	writeJSON(w, http.StatusOK, ClientListResponse{Clients: clients})
}

// CreateClient handles POST /api/clients.
//
//	@Summary		Append a client to clients.json
//	@Tags			clients
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Client	true	"Client to add"
//	@Success		201		{object}	models.Client
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/clients [post]
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var c models.Client
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	created, err := h.svc.Index.AddClient(r.Context(), c)
	if err != nil {
		writeError(w, "create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ResolveClient handles POST /api/clients/resolve.
func (h *Handler) ResolveClient(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ResolveClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	id, ok, err := h.svc.Index.ResolveClientForText(r.Context(), req.Text)
	if err != nil {
		writeError(w, "resolve client", err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveClientResponse{ClientID: id, Matched: ok})
}

// ListContacts handles GET /api/contacts. With ?q= it searches instead.
//
//	@Summary		List or search contacts
//	@Tags			contacts
//	@Produce		json
//	@Param			q		query		string	false	"Search text"
//	@Param			limit	query		int		false	"Max results when searching"
//	@Success		200		{object}	ContactListResponse
//	@Security		BearerAuth
//	@Router			/contacts [get]
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	var (
		contacts []models.Contact
		err      error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		contacts, err = h.svc.Contacts.SearchContacts(r.Context(), q, limit)
	} else {
		contacts, err = h.svc.Contacts.ListContacts(r.Context())
	}
	if err != nil {
		writeError(w, "list contacts", err)
		return
	}
	writeJSON(w, http.StatusOK, ContactListResponse{Contacts: contacts})
}

// CreateContact handles POST /api/contacts.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var c models.Contact
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	created, err := h.svc.Contacts.CreateContact(r.Context(), c)
	if err != nil {
		writeError(w, "create contact", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetContact handles GET /api/contacts/{id}.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Contacts.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get contact", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

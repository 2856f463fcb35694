package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/db"
	"github.com/starford/docvault/internal/intake"
	"github.com/starford/docvault/internal/itemservice"
	"github.com/starford/docvault/internal/vaultindex"
)

// Services are the domain components the API delegates to.
type Services struct {
	Vault    *capability.Store
	Index    *vaultindex.Builder
	Items    *itemservice.Service
	Intake   *intake.Service
	Contacts db.ContactStore

	// VaultRoots are the directories POST /vault may select by path. Empty
	// means any directory, but only when auth is enabled.
	VaultRoots []string
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Services, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, authEnabled)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Vault selection and raw file access.
	r.Get("/vault", h.GetVault)
	r.Post("/vault", h.SelectVault)
	r.Get("/index", h.LoadIndex)
	r.Get("/tree", h.Tree)
	r.Get("/files/*", h.ReadFile)
	r.Put("/files/*", h.WriteFile)
	r.Post("/dirs/*", h.EnsureDir)

	// Items.
	r.Get("/items", h.ListItems)
	r.Get("/items/{id}", h.GetItem)
	r.Patch("/items/{id}", h.UpdateItem)
	r.Delete("/items/{id}", h.DeleteItem)
	r.Post("/memos", h.CreateMemo)

	// Intake.
	r.Post("/documents", h.UploadDocument)
	r.Post("/documents/{id}/retry", h.RetryDocument)
	r.Get("/intake", h.ListIntake)
	r.Get("/intake/{id}", h.GetIntake)

	// Clients (vault) and contacts (database).
	r.Get("/clients", h.ListClients)
	r.Post("/clients", h.CreateClient)
	r.Post("/clients/resolve", h.ResolveClient)
	r.Get("/contacts", h.ListContacts)
	r.Post("/contacts", h.CreateContact)
	r.Get("/contacts/{id}", h.GetContact)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

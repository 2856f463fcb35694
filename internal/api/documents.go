package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docvault/internal/intake"
)

// multipart framing on top of the PDF itself
const maxUploadBytes = intake.MaxUploadSize + 1<<20

// UploadDocument handles POST /api/documents (multipart/form-data, field "file").
// The ingestion runs in the background; the placeholder row is returned
// right away and later states arrive as intake.updated events.
//
//	@Summary		Upload a PDF for OCR and metadata extraction
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"PDF file"
//	@Success		202		{object}	intake.Row
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	row, err := h.svc.Intake.Start(r.Context(), intake.Upload{Filename: header.Filename, Data: data})
	if err != nil {
		writeError(w, "upload document", err)
		return
	}
	writeJSON(w, http.StatusAccepted, row)
}

// RetryDocument handles POST /api/documents/{id}/retry.
func (h *Handler) RetryDocument(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.Intake.StartRetry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "retry document", err)
		return
	}
	writeJSON(w, http.StatusAccepted, row)
}

// ListIntake handles GET /api/intake.
func (h *Handler) ListIntake(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, IntakeListResponse{Rows: h.svc.Intake.Rows()})
}

// GetIntake handles GET /api/intake/{id}.
func (h *Handler) GetIntake(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.Intake.Row(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get intake", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

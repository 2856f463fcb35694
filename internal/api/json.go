package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/docvault/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps a domain error to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNoVaultSelected):
		return http.StatusConflict, "no_vault_selected"
	case errors.Is(err, apperr.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, apperr.ErrUnsupportedPlatform):
		return http.StatusNotImplemented, "unsupported_platform"
	case errors.Is(err, apperr.ErrSelectionCancelled):
		return http.StatusBadRequest, "selection_cancelled"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrInvalidPath):
		return http.StatusBadRequest, "invalid_path"
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, apperr.ErrUpstreamFailure):
		return http.StatusBadGateway, "upstream_failure"
	case errors.Is(err, apperr.ErrParse):
		return http.StatusUnprocessableEntity, "parse"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError logs server-side failures and answers with the mapped status.
// Internal errors never leak their message.
func writeError(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		slog.Error(op+" failed", slog.String("error", err.Error()))
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errResponse{Error: msg, Code: code})
}

// Package apperr holds the sentinel errors shared across the vault layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	ErrUnsupportedPlatform = errors.New("folder picker not supported")
	ErrSelectionCancelled  = errors.New("vault selection cancelled")
	ErrPermissionDenied    = errors.New("vault permission not granted")
	ErrNoVaultSelected     = errors.New("vault not selected")

	ErrInvalidPath       = errors.New("invalid path")
	ErrParse             = errors.New("parse error")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUpstreamFailure   = errors.New("upstream failure")
)

// ParseError reports a vault file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// UpstreamError is a non-2xx answer from the OCR or metadata backend.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamFailure }

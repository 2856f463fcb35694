package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := fmt.Errorf("load: %w", &ParseError{Path: "documents/x/meta.json", Err: cause})

	if !errors.Is(err, ErrParse) {
		t.Error("expected ErrParse match")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to stay reachable")
	}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Path != "documents/x/meta.json" {
		t.Errorf("errors.As = %+v", pe)
	}
}

func TestUpstreamErrorMatchesSentinel(t *testing.T) {
	err := &UpstreamError{Endpoint: "/upload-pdf/", StatusCode: 502, Body: "bad gateway"}
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Error("expected ErrUpstreamFailure match")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("unexpected ErrNotFound match")
	}
	if got := err.Error(); got != "/upload-pdf/: HTTP 502: bad gateway" {
		t.Errorf("Error() = %q", got)
	}
}

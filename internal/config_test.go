package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Vault.Path != "" {
		t.Errorf("default vault path = %q, want none", cfg.Vault.Path)
	}
}

func TestOCRConfig_Validation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.OCR.BaseURL = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "ocr") {
		t.Errorf("missing base url: %v", err)
	}

	cfg = NewDefaultConfig()
	cfg.OCR.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid base url should fail")
	}

	cfg = NewDefaultConfig()
	cfg.OCR.Timeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("negative timeout should fail")
	}
}

func TestEventsConfig_NegativeThrottle(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Events.Throttle = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative throttle should fail")
	}
}

func TestHTTPConfig_DefaultsToLoopback(t *testing.T) {
	cfg := NewDefaultConfig()
	if got := cfg.App.HTTP.Address(); got != "127.0.0.1:8080" {
		t.Errorf("default address = %q, want 127.0.0.1:8080", got)
	}

	cfg.App.HTTP.Host = "0.0.0.0"
	if got := cfg.App.HTTP.Address(); got != "0.0.0.0:8080" {
		t.Errorf("address = %q", got)
	}
	cfg.App.HTTP.Host = "::1"
	if got := cfg.App.HTTP.Address(); got != "[::1]:8080" {
		t.Errorf("ipv6 address = %q", got)
	}

	cfg.App.HTTP.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty host should fail")
	}
}

package internal

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// EnvPrefix prefixes environment overrides, e.g. DOCVAULT_OCR_BASE_URL.
const EnvPrefix = "DOCVAULT"

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app" envconfig:"app"`
	Vault  VaultConfig       `yaml:"vault" envconfig:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite" envconfig:"sqlite"`
	Auth   AuthConfig        `yaml:"auth" envconfig:"auth"`
	OCR    OCRConfig         `yaml:"ocr" envconfig:"ocr"`
	Events EventsConfig      `yaml:"events" envconfig:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.OCR.Validate(); err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" envconfig:"log_level"`
	HTTP     HTTPConfig `yaml:"http" envconfig:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. Host defaults to loopback;
// set it to 0.0.0.0 to listen on every interface.
type HTTPConfig struct {
	Host string `yaml:"host" envconfig:"host"`
	Port int    `yaml:"port" envconfig:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required, is.Host),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig controls the initial vault selection.
//
// Path, when set, is selected at startup. Otherwise the root saved by the
// last selection is restored when PersistSelection is on. With neither, the
// service starts without a vault and waits for POST /api/vault.
//
// AllowedRoots limits the directories POST /api/vault may select by path.
// When empty, selecting by path over HTTP requires token auth.
type VaultConfig struct {
	Path             string   `yaml:"path" envconfig:"path"`
	PersistSelection bool     `yaml:"persist_selection" envconfig:"persist_selection"`
	AllowedRoots     []string `yaml:"allowed_roots" envconfig:"allowed_roots"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" envconfig:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" envconfig:"mode"`
	Token string `yaml:"token" envconfig:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// OCRConfig points at the OCR and metadata extraction backend.
// A zero Timeout means requests wait as long as the backend takes.
type OCRConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"base_url"`
	Timeout time.Duration `yaml:"timeout" envconfig:"timeout"`
}

// Validate validates the OCR configuration.
func (c *OCRConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// EventsConfig tunes the change feed.
type EventsConfig struct {
	// Throttle is the minimum spacing of index.invalidated events.
	Throttle time.Duration `yaml:"throttle" envconfig:"throttle"`
	// Debounce coalesces bursts of file events for one path.
	Debounce time.Duration `yaml:"debounce" envconfig:"debounce"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			PersistSelection: true,
		},
		SQLite: SQLiteConfig{
			Path: "./docvault.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		OCR: OCRConfig{
			BaseURL: "http://localhost:8000",
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
			Debounce: 150 * time.Millisecond,
		},
	}
}

package internal

import (
	"io"

	"github.com/starford/docvault/internal/capability"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	vaultPath string
	picker    capability.Picker
	version   string
	out       io.Writer
	logOut    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVaultPath selects path at startup, overriding vault.path.
func WithVaultPath(path string) Option {
	return func(a *application) {
		a.vaultPath = path
	}
}

// WithPicker sets the folder picker used when no vault is configured or
// restored. Without one, selection is only possible through the API.
func WithPicker(p capability.Picker) Option {
	return func(a *application) {
		a.picker = p
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithOutput sets where command results are written.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithLogOutput sets where logs are written. The MCP server needs stdout for
// the protocol, so its logs go elsewhere.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

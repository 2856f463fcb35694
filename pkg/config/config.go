// Package config provides YAML-based configuration loading with environment
// variable expansion and overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

type loadOptions struct {
	envPrefix    string
	allowMissing bool
}

// Option tunes Load.
type Option func(*loadOptions)

// WithEnvPrefix applies environment overrides after the file is parsed.
// Keys follow the struct's envconfig tags, e.g. PREFIX_OCR_BASE_URL.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// AllowMissing keeps the target's defaults when the file does not exist.
func AllowMissing() Option {
	return func(o *loadOptions) { o.allowMissing = true }
}

// Load loads configuration from a YAML file with environment variable
// expansion, applies environment overrides, then validates the result.
func Load[T any](filename string, target *T, opts ...Option) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist) && o.allowMissing:
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	default:
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	if o.envPrefix != "" {
		if err := envconfig.Process(o.envPrefix, target); err != nil {
			return fmt.Errorf("failed to apply %s_* environment: %w", o.envPrefix, err)
		}
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

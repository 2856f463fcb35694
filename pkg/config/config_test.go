package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	Port    int           `yaml:"port" envconfig:"port"`
	Timeout time.Duration `yaml:"timeout" envconfig:"timeout"`
}

type sample struct {
	Name   string `yaml:"name" envconfig:"name"`
	Server server `yaml:"server" envconfig:"server"`
}

func (s *sample) Validate() error {
	if s.Server.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_HOST_NAME", "vault-box")
	p := writeConfig(t, "name: ${SAMPLE_HOST_NAME}\nserver:\n  port: 9000\n  timeout: 2s\n")

	var cfg sample
	require.NoError(t, Load(p, &cfg))
	assert.Equal(t, "vault-box", cfg.Name)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TESTAPP_SERVER_PORT", "7000")
	t.Setenv("TESTAPP_SERVER_TIMEOUT", "500ms")
	p := writeConfig(t, "name: file\nserver:\n  port: 9000\n")

	var cfg sample
	require.NoError(t, Load(p, &cfg, WithEnvPrefix("TESTAPP")))
	assert.Equal(t, "file", cfg.Name)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	var cfg sample
	assert.Error(t, Load(missing, &cfg))

	cfg = sample{Server: server{Port: 8080}}
	require.NoError(t, Load(missing, &cfg, AllowMissing()))
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_ValidationAndParseErrors(t *testing.T) {
	var cfg sample
	err := Load(writeConfig(t, "name: x\n"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port is required")

	err = Load(writeConfig(t, "server: [\n"), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

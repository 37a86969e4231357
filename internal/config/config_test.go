package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err, "explicit missing file must fail")

	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "lighthouse.dev", cfg.Platform.DomainSuffix)
	require.Equal(t, 5*time.Second, cfg.Platform.ActivationWait)
	require.Equal(t, 7*24*time.Hour, cfg.Platform.LogRetention)
}

func TestYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lighthouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
server:
  addr: ":9090"
platform:
  domain_suffix: apps.example.com
  log_page_cap: 50
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "apps.example.com", cfg.Platform.DomainSuffix)
	require.Equal(t, 50, cfg.Platform.LogPageCap)
	// Untouched sections keep their defaults.
	require.Equal(t, 5*time.Second, cfg.Platform.ActivationWait)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lighthouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))

	t.Setenv("LIGHTHOUSE_SERVER_ADDR", ":7070")
	t.Setenv("LIGHTHOUSE_DATABASE_DSN", "postgres://env/db")
	t.Setenv("LIGHTHOUSE_ACTIVATION_WAIT", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Server.Addr)
	require.Equal(t, "postgres://env/db", cfg.Database.DSN)
	require.Equal(t, 30*time.Second, cfg.Platform.ActivationWait)
}

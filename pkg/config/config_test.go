package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/sciworld/pkg/prompt"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "sciworld.yaml", `
server:
  addr: ":9000"
  session_ttl: 30m
client:
  transport: ws
  timeout: 10s
prompt:
  style: catalog_table
store:
  path: /tmp/episodes.sqlite
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, 1000, cfg.Server.StepLimit)
	assert.Equal(t, TransportWS, cfg.Client.Transport)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "http://localhost:8000", cfg.Client.URL)
	assert.Equal(t, "/tmp/episodes.sqlite", cfg.Store.Path)
	assert.Equal(t, "json", cfg.Logging.Format)

	style, err := cfg.Style()
	require.NoError(t, err)
	assert.Equal(t, prompt.SourceStatic, style.CatalogSource)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, ":7000")
	t.Setenv(EnvURL, "http://gateway:7000")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvStore, "/data/db.sqlite")

	cfg, err := Load(writeFile(t, "c.yaml", "server:\n  addr: \":9000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "http://gateway:7000", cfg.Client.URL)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/data/db.sqlite", cfg.Store.Path)
}

func TestInvalid(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "client:\n  transport: carrier-pigeon\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "server: [1, 2"))
	assert.Error(t, err)

	cfg := Default()
	cfg.Prompt.Style = "haiku"
	_, err = cfg.Style()
	assert.True(t, errors.Is(err, prompt.ErrUnknownStyle))
}

func TestStylesFile(t *testing.T) {
	path := writeFile(t, "styles.yaml", `
styles:
  - name: terse
    base: zero_shot
    user: "{{.observation}}"
`)
	cfg := Default()
	cfg.Prompt.StylesFile = path
	cfg.Prompt.Style = "terse"

	style, err := cfg.Style()
	require.NoError(t, err)
	assert.Equal(t, "{{.observation}}", style.User)
	assert.Equal(t, prompt.RefreshOnce, style.SystemRefresh)
}

func TestExampleFiles(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "sciworld.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)

	reg := prompt.NewRegistry()
	require.NoError(t, reg.LoadFile(filepath.Join("..", "..", "configs", "styles.example.yaml")))
	for _, name := range []string{"zero_shot_numbered", "dynamic_table"} {
		style, err := reg.Get(name)
		require.NoError(t, err)
		_, err = prompt.Compile(style)
		require.NoError(t, err, name)
	}
}

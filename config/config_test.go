package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnv, "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Server.Backend)
	assert.Equal(t, "demo.db", cfg.Server.DatabasePath)
	assert.Equal(t, "http://127.0.0.1:8000/sse", cfg.Agent.ServerURL)
	assert.Equal(t, 120*time.Second, cfg.LLM.RequestTimeout)
	assert.True(t, cfg.Agent.Verbose)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peoplepod.yaml")
	yamlDoc := `
server:
  addr: 0.0.0.0:9000
  database_path: /tmp/people.db
agent:
  verbose: false
  max_tool_rounds: 3
  instructions: Answer briefly.
llm:
  model: qwen2.5:7b
  request_timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv(FileEnv, path)
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("AGENT_MAX_TOOL_ROUNDS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/people.db", cfg.Server.DatabasePath)
	assert.False(t, cfg.Agent.Verbose)
	assert.Equal(t, 30*time.Second, cfg.LLM.RequestTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model, "environment overrides the file")
	assert.Equal(t, 5, cfg.Agent.MaxToolRounds)
	assert.Equal(t, "Answer briefly.", cfg.Agent.Instructions)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv(FileEnv, "")

	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "postgres")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("AGENT_VERBOSE", "sometimes")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("LLM_REQUEST_TIMEOUT", "soon")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(FileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		require.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "tool", "add_data")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "json handler expected, got %q", out)
	assert.Contains(t, out, `"tool":"add_data"`)
}

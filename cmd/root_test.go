package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/runwatch/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestConfigCommandPrintsRedactedYAML resolves file values and masks secrets.
func TestConfigCommandPrintsRedactedYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
streams:
  base_url: http://localhost:5000/stream
  headers:
    authorization: Bearer abc
server:
  api_key: secret
logging:
  level: error
`)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", path})
	require.NoError(t, root.ExecuteContext(context.Background()))

	var got config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	require.Equal(t, "http://localhost:5000/stream", got.Streams.BaseURL)
	require.Equal(t, "****", got.Server.APIKey)
	require.Equal(t, "****", got.Streams.Headers["authorization"])
	require.Equal(t, "run", got.Monitor.Category)
	require.Contains(t, out.String(), "poll_interval: 1s")
}

// TestWatchRejectsInvalidConfig fails before any stream is opened.
func TestWatchRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "logging:\n  level: error\n")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"watch", "--config", path, "--category", "deploy", "--base-url", "http://localhost:5000/stream"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "monitor.category")
}

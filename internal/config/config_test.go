package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.ProjectID)
	assert.Equal(t, "pennywise", cfg.DatasetID)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, 50, cfg.OracleBatchSize)
	assert.Equal(t, 4, cfg.OracleConcurrency)
	assert.Equal(t, 30*time.Second, cfg.OracleTimeout())
	assert.Equal(t, 4, cfg.ParseConcurrency)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `project_id: my-project
oracle_batch_size: 25
port: "9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "my-project", cfg.ProjectID)
	assert.Equal(t, 25, cfg.OracleBatchSize)
	assert.Equal(t, "9090", cfg.Port)

	// Everything unset falls back to defaults.
	assert.Equal(t, "pennywise", cfg.DatasetID)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.OracleTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not: valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

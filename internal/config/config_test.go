package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)

		assert.Equal(t, "offline", cfg.Provider.Backend)
		assert.Equal(t, "http://localhost:6333", cfg.Qdrant.URL)
		assert.Equal(t, 5, cfg.Indexing.BatchSize)
		assert.Equal(t, int64(500_000), cfg.Indexing.MaxFileSize)
		assert.Equal(t, 0.5, cfg.Search.DefaultThreshold)
		assert.Equal(t, 0.3, cfg.Search.FallbackThreshold)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "semlens.yaml")
		content := `
provider:
  backend: openai
  embedding_model: text-embedding-3-small
qdrant:
  url: http://qdrant:6333
  collection: myproject
indexing:
  batch_size: 10
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "openai", cfg.Provider.Backend)
		assert.Equal(t, "http://qdrant:6333", cfg.Qdrant.URL)
		assert.Equal(t, "myproject", cfg.Qdrant.Collection)
		assert.Equal(t, 10, cfg.Indexing.BatchSize)
		// Unset values still defaulted
		assert.Equal(t, int64(500_000), cfg.Indexing.MaxFileSize)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "semlens.yaml")
		require.NoError(t, os.WriteFile(path, []byte("provider:\n  backend: openai\n"), 0644))

		t.Setenv("SEMLENS_PROVIDER", "ollama")
		t.Setenv("SEMLENS_QDRANT_URL", "http://elsewhere:6333")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "ollama", cfg.Provider.Backend)
		assert.Equal(t, "http://elsewhere:6333", cfg.Qdrant.URL)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "semlens.yaml")
		require.NoError(t, os.WriteFile(path, []byte("provider: [broken"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

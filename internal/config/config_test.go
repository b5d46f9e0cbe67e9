package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, filepath.Join("artifacts", "index.db"), cfg.IndexPath())
	assert.Equal(t, filepath.Join("artifacts", "headings_dict.json"), cfg.HeadingsCachePath())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  dir: /srv/hs
embedder:
  type: openai
vector_store:
  type: chromem
search:
  top_k: 12
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/hs", cfg.Data.Dir)
	assert.Equal(t, "hs_code.csv", cfg.Data.Nomenclature, "unset keys keep defaults")
	assert.Equal(t, 12, cfg.Search.TopK)
	assert.Equal(t, "cosine", cfg.VectorStore.Metric)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 32, cfg.Embedder.OpenAI.BatchSize)
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("HSINDEX_SEARCH__TOP_K", "7")
	t.Setenv("HSINDEX_VECTOR_STORE__QDRANT__HOST", "qdrant.internal")
	t.Setenv("HSINDEX_LOGGING__LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.TopK)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	t.Setenv("HSINDEX_EMBEDDER__TYPE", "word2vec")
	_, err := Load("")
	assert.ErrorContains(t, err, "unknown embedder type")
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := defaultConfig()
	want.Artifacts.Index = "/var/lib/hsindex/index.db"
	want.Search.ExcerptSentences = 0
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "/var/lib/hsindex/index.db", got.IndexPath())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "vector_store.qdrant.api_key", envKey("HSINDEX_VECTOR_STORE__QDRANT__API_KEY"))
	assert.Equal(t, "search.top_k", envKey("HSINDEX_SEARCH__TOP_K"))
}

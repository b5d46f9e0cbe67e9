package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsindex/internal/app"
	"hsindex/internal/config"
	"hsindex/internal/resolver"
	"hsindex/internal/vectorstore"
)

func TestStoreFactory(t *testing.T) {
	st, err := app.StoreFactory(config.VectorStoreConfig{Type: "memory", Metric: "cosine"})()
	require.NoError(t, err)
	assert.Equal(t, vectorstore.MetricCosine, st.Metric())

	st, err = app.StoreFactory(config.VectorStoreConfig{Type: "memory"})()
	require.NoError(t, err)
	assert.Equal(t, vectorstore.MetricL2, st.Metric())

	st, err = app.StoreFactory(config.VectorStoreConfig{Type: "chromem"})()
	require.NoError(t, err)
	assert.Equal(t, vectorstore.MetricCosine, st.Metric())

	_, err = app.StoreFactory(config.VectorStoreConfig{Type: "faiss"})()
	assert.ErrorContains(t, err, "unknown vector store")
}

func TestEmbedderFactory(t *testing.T) {
	emb, err := app.EmbedderFactory(config.EmbedderConfig{Type: "tfidf"})()
	require.NoError(t, err)
	assert.Equal(t, "tfidf", emb.Name())

	t.Setenv("HSINDEX_TEST_OPENAI_KEY", "")
	_, err = app.EmbedderFactory(config.EmbedderConfig{
		Type:   "openai",
		OpenAI: config.OpenAIEmbedderConfig{APIKeyEnv: "HSINDEX_TEST_OPENAI_KEY"},
	})()
	assert.ErrorContains(t, err, "HSINDEX_TEST_OPENAI_KEY")

	_, err = app.EmbedderFactory(config.EmbedderConfig{Type: "word2vec"})()
	assert.ErrorContains(t, err, "unknown embedder")
}

func TestNewSummarizer(t *testing.T) {
	s, err := app.NewSummarizer(config.SummarizerConfig{Type: "frequency"})
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = app.NewSummarizer(config.SummarizerConfig{Type: "llm"})
	assert.Error(t, err)
}

func TestNewEngine_BuildsFromConfig(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(filepath.Join(data, "headings"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "hs_code.csv"),
		[]byte("HS Code,Product Name\n35,Albuminoidal substances\n350211,Dried egg albumin\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "headings", "35.txt"),
		[]byte("35.02 Albumins.\n3502.11 - Dried\n"), 0o644))

	cfg := config.Default()
	cfg.Data.Dir = data
	cfg.Data.HeadingsDir = filepath.Join(data, "headings")
	cfg.Artifacts.Dir = filepath.Join(dir, "artifacts")

	e, err := app.NewEngine(cfg, app.Options{})
	require.NoError(t, err)
	rep, err := e.Build(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, rep.Failures, "df1_updated.csv")
	assert.FileExists(t, cfg.IndexPath())
	assert.FileExists(t, cfg.HeadingsCachePath())

	res, err := e.Lookup("3502")
	require.NoError(t, err)
	assert.Equal(t, resolver.HeadingResult{Heading: "35.02 Albumins.", RelatedCodes: []string{"3502.11 - Dried"}}, res)
}

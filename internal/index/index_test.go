package index_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hsindex/internal/dataset"
	"hsindex/internal/domain"
	"hsindex/internal/embedding/tfidf"
	"hsindex/internal/headings"
	"hsindex/internal/index"
	"hsindex/internal/vectorstore"
	"hsindex/internal/vectorstore/chromem"
	"hsindex/internal/vectorstore/memory"
)

func corpus() []index.Unit {
	set := headings.NewSet([]domain.Section{
		{Heading: "35.02 Albumins, albuminates and other albumin derivatives.", Lines: []string{
			"3502.11 - -- Dried egg albumin",
			"3502.19 - -- Other egg albumin",
			"Subheading note 1",
		}},
	})
	nomenclature := dataset.NewTable("hs_code.csv", dataset.SourceNomenclature, []dataset.Row{
		{Code: "4001", Name: "Natural rubber, balata, gutta-percha"},
		{Code: "400122", Name: "Technically specified natural rubber"},
		{Code: "40012210", Name: "Technically specified natural rubber, grade 10"},
		{Code: "", Name: "no code, skipped"},
	})
	decisions := dataset.NewTable("df1_updated.csv", dataset.SourceDecisions, []dataset.Row{
		{Code: "40012990", Description: "Smoked sheets of natural rubber", File: "modification session 63.pdf"},
	})
	return index.Units(set, nomenclature, decisions)
}

func TestUnits_Rendering(t *testing.T) {
	units := corpus()
	require.Len(t, units, 8)

	assert.Equal(t, "3502", units[0].Code)
	assert.Equal(t, dataset.SourceHeadings, units[0].Source)

	assert.Equal(t, "350211", units[1].Code)
	assert.Equal(t, "-- Dried egg albumin", units[1].Description)
	assert.Equal(t, units[0].Heading, units[1].Heading)

	assert.Equal(t, "", units[3].Code, "non-code lines keep no code")
	assert.Equal(t, "Subheading note 1", units[3].Description)

	assert.Equal(t, "400122 - Technically specified natural rubber", units[5].Text)
	assert.Equal(t, dataset.SourceDecisions, units[7].Source)
	assert.Equal(t, "modification session 63.pdf", units[7].File)
	for i, u := range units {
		assert.Equal(t, i, u.Slot)
	}
}

func build(t *testing.T, store vectorstore.Storage, opts ...index.Option) *index.Index {
	t.Helper()
	ix := index.New(tfidf.NewEmbedder(), store, opts...)
	require.NoError(t, ix.Build(context.Background(), corpus()))
	return ix
}

func TestQuery_NotBuilt(t *testing.T) {
	ix := index.New(tfidf.NewEmbedder(), memory.NewStorage(vectorstore.MetricL2))
	_, err := ix.Query(context.Background(), "rubber", 3)
	assert.ErrorIs(t, err, index.ErrNotBuilt)
	assert.False(t, ix.Built())
}

func TestBuild_EmptyCorpus(t *testing.T) {
	ix := index.New(tfidf.NewEmbedder(), memory.NewStorage(vectorstore.MetricL2))
	assert.ErrorIs(t, ix.Build(context.Background(), nil), index.ErrEmptyCorpus)
}

func TestQuery_ScoreConventionsAgree(t *testing.T) {
	ctx := context.Background()
	l2 := build(t, memory.NewStorage(vectorstore.MetricL2))
	cos := build(t, memory.NewStorage(vectorstore.MetricCosine))

	a, err := l2.Query(ctx, "dried egg albumin", 3)
	require.NoError(t, err)
	b, err := cos.Query(ctx, "dried egg albumin", 3)
	require.NoError(t, err)
	require.Len(t, a, 3)
	require.Len(t, b, 3)

	assert.Equal(t, "350211", a[0].Unit.Code)
	for i := range a {
		assert.Equal(t, a[i].Unit.Slot, b[i].Unit.Slot)
		assert.InDelta(t, a[i].Similarity, b[i].Similarity, 1e-5)
		assert.InDelta(t, a[i].Distance, b[i].Distance, 1e-5)
		assert.InDelta(t, 1-a[i].Distance/2, a[i].Similarity, 1e-9)
		if i > 0 {
			assert.LessOrEqual(t, a[i-1].Distance, a[i].Distance, "nearest first")
			assert.GreaterOrEqual(t, a[i-1].Similarity, a[i].Similarity)
		}
	}
}

func TestQuery_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	units := []index.Unit{
		{Slot: 0, Text: "natural rubber", Code: "400121"},
		{Slot: 1, Text: "egg albumin", Code: "350211"},
		{Slot: 2, Text: "natural rubber", Code: "400122"},
		{Slot: 3, Text: "natural rubber", Code: "400129"},
	}
	ix := index.New(tfidf.NewEmbedder(), memory.NewStorage(vectorstore.MetricL2))
	require.NoError(t, ix.Build(ctx, units))

	got, err := ix.Query(ctx, "natural rubber", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, []int{got[0].Unit.Slot, got[1].Unit.Slot, got[2].Unit.Slot})
}

// reversedStore scores every unit the same and returns them in reverse slot
// order, cut to topK.
type reversedStore struct {
	vectorstore.Storage
	requested []int
}

func (s *reversedStore) Search(_ context.Context, _ []float32, topK int) ([]vectorstore.Match, error) {
	s.requested = append(s.requested, topK)
	n := s.Storage.(*memory.Storage).Len()
	var out []vectorstore.Match
	for slot := n - 1; slot >= 0 && len(out) < topK; slot-- {
		out = append(out, vectorstore.Match{Slot: slot, Score: 0.5})
	}
	return out, nil
}

func TestQuery_TiesAtCutoffKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := &reversedStore{Storage: memory.NewStorage(vectorstore.MetricL2)}
	ix := build(t, store)

	got, err := ix.Query(ctx, "natural rubber", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Unit.Slot)
	assert.Equal(t, 1, got[1].Unit.Slot)
	assert.Equal(t, []int{3, 6, 12}, store.requested)
}

func TestQuery_LexicalFallbackForZeroVector(t *testing.T) {
	ctx := context.Background()
	ix := build(t, memory.NewStorage(vectorstore.MetricL2))

	// stopwords only: the embedder yields a zero vector
	got, err := ix.Query(ctx, "and with", 2)
	require.NoError(t, err)
	require.Len(t, got, 1, "only the heading label shares a token")
	assert.Equal(t, 0, got[0].Unit.Slot)
	assert.InDelta(t, 1/math.Sqrt(12), got[0].Similarity, 1e-9)
}

func TestQuery_UnmatchedTermsReturnNothing(t *testing.T) {
	ctx := context.Background()
	ix := build(t, memory.NewStorage(vectorstore.MetricL2))

	got, err := ix.Query(ctx, "qwertyuiop", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuild_ProgressReported(t *testing.T) {
	var done, total int
	build(t, memory.NewStorage(vectorstore.MetricL2), index.WithProgress(func(d, tot int) { done, total = d, tot }), index.WithLogger(zap.NewNop()))
	assert.Equal(t, 8, done)
	assert.Equal(t, 8, total)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "artifacts", "index.db")
	ix := build(t, memory.NewStorage(vectorstore.MetricL2))
	require.NoError(t, ix.Save(ctx, path))

	loaded := index.New(tfidf.NewEmbedder(), memory.NewStorage(vectorstore.MetricL2))
	require.NoError(t, loaded.Load(ctx, path))
	assert.Equal(t, ix.Units(), loaded.Units())
	assert.Equal(t, ix.Info().BuildID, loaded.Info().BuildID)
	assert.Equal(t, ix.Info().Dimension, loaded.Info().Dimension)

	want, err := ix.Query(ctx, "technically specified rubber", 5)
	require.NoError(t, err)
	got, err := loaded.Query(ctx, "technically specified rubber", 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

type renamed struct{ *tfidf.Embedder }

func (renamed) Name() string { return "other" }

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	err := index.New(tfidf.NewEmbedder(), memory.NewStorage("")).Load(ctx, path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	ix := build(t, memory.NewStorage(vectorstore.MetricL2))
	require.NoError(t, ix.Save(ctx, path))

	err = index.New(renamed{tfidf.NewEmbedder()}, memory.NewStorage("")).Load(ctx, path)
	assert.ErrorIs(t, err, index.ErrArtifactMismatch)

	unbuilt := index.New(tfidf.NewEmbedder(), memory.NewStorage(""))
	assert.ErrorIs(t, unbuilt.Save(ctx, filepath.Join(dir, "x.db")), index.ErrNotBuilt)
}

func TestQuery_ChromemMatchesMemory(t *testing.T) {
	ctx := context.Background()
	mem := build(t, memory.NewStorage(vectorstore.MetricCosine))
	chr := build(t, chromem.NewStorage(""))

	a, err := mem.Query(ctx, "natural rubber grade 10", 3)
	require.NoError(t, err)
	b, err := chr.Query(ctx, "natural rubber grade 10", 3)
	require.NoError(t, err)
	require.NotEmpty(t, b)
	assert.Equal(t, a[0].Unit.Slot, b[0].Unit.Slot)
	assert.InDelta(t, a[0].Similarity, b[0].Similarity, 1e-4)
	assert.Equal(t, "cosine", chr.Info().Metric)
}

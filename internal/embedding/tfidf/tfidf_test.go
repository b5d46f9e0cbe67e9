package tfidf_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsindex/internal/embedding"
	"hsindex/internal/embedding/tfidf"
)

var corpus = []string{
	"4001 - Natural rubber, balata, gutta-percha",
	"400122 - Technically specified natural rubber (TSNR)",
	"3502 - Albumins, albuminates and other albumin derivatives",
	"350211 - Egg albumin, dried",
}

func TestEmbed_UnitLength(t *testing.T) {
	ctx := context.Background()
	e := tfidf.NewEmbedder()
	require.NoError(t, e.Prepare(ctx, corpus))

	v, err := e.Embed(ctx, "natural rubber")
	require.NoError(t, err)
	assert.Len(t, v, e.Dimension())

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbed_DigitsAreTokens(t *testing.T) {
	ctx := context.Background()
	e := tfidf.NewEmbedder()
	require.NoError(t, e.Prepare(ctx, corpus))

	v, err := e.Embed(ctx, "350211")
	require.NoError(t, err)
	assert.False(t, embedding.IsZero(v))
}

func TestEmbed_UnknownTermsGiveZeroVector(t *testing.T) {
	ctx := context.Background()
	e := tfidf.NewEmbedder()
	require.NoError(t, e.Prepare(ctx, corpus))

	v, err := e.Embed(ctx, "the of and")
	require.NoError(t, err)
	assert.True(t, embedding.IsZero(v))
}

func TestEmbed_NotPrepared(t *testing.T) {
	_, err := tfidf.NewEmbedder().Embed(context.Background(), "rubber")
	assert.Error(t, err)
}

func TestPrepare_EmptyCorpus(t *testing.T) {
	assert.Error(t, tfidf.NewEmbedder().Prepare(context.Background(), nil))
}

func TestState_RestoresIdenticalVectors(t *testing.T) {
	ctx := context.Background()
	e := tfidf.NewEmbedder()
	require.NoError(t, e.Prepare(ctx, corpus))
	state, err := e.MarshalState()
	require.NoError(t, err)

	restored := tfidf.NewEmbedder()
	require.NoError(t, restored.UnmarshalState(state))
	assert.Equal(t, e.Dimension(), restored.Dimension())

	want, err := e.EmbedBatch(ctx, corpus)
	require.NoError(t, err)
	got, err := restored.EmbedBatch(ctx, corpus)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

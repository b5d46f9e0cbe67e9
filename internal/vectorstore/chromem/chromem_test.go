package chromem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsindex/internal/vectorstore"
	"hsindex/internal/vectorstore/chromem"
)

func TestStorage_SearchBestFirst(t *testing.T) {
	ctx := context.Background()
	s := chromem.NewStorage("")
	require.NoError(t, s.Init(ctx, 3))
	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{
		{Slot: 0, Vector: []float32{1, 0, 0}, Text: "natural rubber", Code: "4001", Source: "nomenclature"},
		{Slot: 1, Vector: []float32{0, 1, 0}, Text: "egg albumin", Code: "350211", Source: "nomenclature"},
		{Slot: 7, Vector: []float32{0.6, 0.8, 0}, Text: "mixed", Code: "", Source: "headings"},
	}))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, vectorstore.MetricCosine, s.Metric())

	got, err := s.Search(ctx, []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 3, "topK is clamped to the collection size")
	assert.Equal(t, 1, got[0].Slot)
	assert.InDelta(t, 1.0, got[0].Score, 1e-5)
	assert.Equal(t, 7, got[1].Slot)
	assert.InDelta(t, 0.8, got[1].Score, 1e-5)
}

func TestStorage_ClearAndErrors(t *testing.T) {
	ctx := context.Background()
	s := chromem.NewStorage("units")
	_, err := s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrNotInitialized)

	require.NoError(t, s.Init(ctx, 2))
	err = s.Upsert(ctx, []vectorstore.Point{{Slot: 0, Vector: []float32{1, 0, 0}, Text: "x"}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	require.NoError(t, s.Upsert(ctx, []vectorstore.Point{{Slot: 0, Vector: []float32{1, 0}, Text: "x"}}))
	require.NoError(t, s.Clear(ctx))
	got, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

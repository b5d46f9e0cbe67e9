package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsindex/internal/vectorstore"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, "hs_units", cfg.Collection)
	assert.Equal(t, 256, cfg.BatchSize)
}

func TestCollectionName_UniquePerStorage(t *testing.T) {
	a, b := collectionName("hs_units"), collectionName("hs_units")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^hs_units_[0-9a-f]{12}$`, a)
	assert.Regexp(t, `^hs_units_[0-9a-f]{12}$`, b)
}

func TestToPoints(t *testing.T) {
	pts, err := toPoints([]vectorstore.Point{
		{Slot: 42, Vector: []float32{0.6, 0.8}, Code: "350211", Source: "nomenclature", Text: "350211 - Dried"},
	}, 2)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, uint64(42), pts[0].GetId().GetNum())
	assert.Equal(t, "350211", pts[0].GetPayload()["code"].GetStringValue())
	assert.Equal(t, "nomenclature", pts[0].GetPayload()["source"].GetStringValue())

	_, err = toPoints([]vectorstore.Point{{Slot: 1, Vector: []float32{1}}}, 2)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	_, err = toPoints([]vectorstore.Point{{Slot: -1, Vector: []float32{1, 0}}}, 2)
	assert.Error(t, err)
}

func TestToMatches(t *testing.T) {
	got, err := toMatches([]*qdrant.ScoredPoint{
		{Id: qdrant.NewIDNum(3), Score: 0.9},
		{Id: qdrant.NewIDNum(1), Score: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, []vectorstore.Match{{Slot: 3, Score: 0.9}, {Slot: 1, Score: 0.5}}, got)

	_, err = toMatches([]*qdrant.ScoredPoint{{Id: qdrant.NewIDUUID("5c56c793-69f3-4fbf-87e6-c4bf54c28c26")}})
	assert.ErrorIs(t, err, errUUIDPoint)
}

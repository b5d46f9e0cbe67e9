package hierarchy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"hsindex/internal/hierarchy"
	"hsindex/internal/hscode"
)

func rubberEntries() []hierarchy.Entry {
	return []hierarchy.Entry{
		{Code: "40", Name: "Rubber and articles thereof"},
		{Code: "4001", Name: "Natural rubber"},
		{Code: "40012210", Name: "TSNR grade 10"},
		{Code: "400122", Name: "Technically specified natural rubber"},
		{Code: "40012200", Name: "TSNR other"},
		{Code: "40012990", Name: "Other forms"},
		{Code: "4", Name: "ignored"},
		{Code: "4001221000", Name: "national line"},
	}
}

func TestBuild_DeferredLinking(t *testing.T) {
	tree := hierarchy.Build(rubberEntries(), zap.NewNop())

	ch, ok := tree.Chapter("40")
	require.True(t, ok)
	require.Len(t, ch.Children, 1)
	heading := ch.Children[0]
	assert.Equal(t, "4001", heading.Code)
	require.Len(t, heading.Children, 1)

	code := heading.Children[0]
	assert.Equal(t, "400122", code.Code)
	assert.Equal(t, "Technically specified natural rubber", code.Name)

	var subs []string
	for _, c := range code.Children {
		subs = append(subs, c.Code)
	}
	assert.ElementsMatch(t, []string{"40012210", "40012200"}, subs)

	require.Len(t, tree.Orphans(), 1)
	assert.Equal(t, "40012990", tree.Orphans()[0].Code)
}

func TestBuild_FlatTableCoversAllLengths(t *testing.T) {
	tree := hierarchy.Build(rubberEntries(), zap.NewNop())

	name, ok := tree.Name("4001221000")
	require.True(t, ok)
	assert.Equal(t, "national line", name)

	name, ok = tree.Name("40012990")
	require.True(t, ok, "orphans stay reachable by flat lookup")
	assert.Equal(t, "Other forms", name)

	_, ok = tree.Name("4")
	assert.False(t, ok)
	_, ok = tree.Node("4001221000")
	assert.False(t, ok)
}

func TestBuild_EveryLinkedSubCodeReachable(t *testing.T) {
	entries := []hierarchy.Entry{
		{Code: "35021100", Name: "dried, 00 line before its parent"},
		{Code: "35021190", Name: "dried, other"},
		{Code: "350211", Name: "Dried"},
		{Code: "35021910", Name: "other, first"},
		{Code: "350219", Name: "Other"},
	}
	tree := hierarchy.Build(entries, nil)

	reached := map[string]bool{}
	tree.Walk(func(n *hierarchy.Node, _ int) bool {
		reached[n.Code] = true
		return true
	})
	for _, e := range entries {
		assert.True(t, reached[e.Code], e.Code)
	}
	assert.Empty(t, tree.Orphans())

	heading, ok := tree.Heading("3502")
	require.True(t, ok)
	assert.True(t, heading.Placeholder())
	ch, ok := tree.Chapter("35")
	require.True(t, ok)
	assert.True(t, ch.Placeholder())
}

func TestBuild_Idempotent(t *testing.T) {
	once := hierarchy.Build(rubberEntries(), zap.NewNop())
	twice := hierarchy.Build(append(rubberEntries(), rubberEntries()...), zap.NewNop())

	assert.Equal(t, once.Len(), twice.Len())
	assert.Equal(t, once.FlatLen(), twice.FlatLen())
	code, ok := twice.Node("400122")
	require.True(t, ok)
	assert.Len(t, code.Children, 2, "duplicate rows must not duplicate children")
}

func TestBuild_PlaceholderGetsNameLater(t *testing.T) {
	tree := hierarchy.Build([]hierarchy.Entry{
		{Code: "400122", Name: "TSNR"},
		{Code: "4001", Name: "Natural rubber"},
	}, nil)
	heading, ok := tree.Heading("4001")
	require.True(t, ok)
	assert.Equal(t, "Natural rubber", heading.Name)
	assert.Len(t, heading.Children, 1)
}

func TestBuild_OrphanWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hierarchy.Build([]hierarchy.Entry{{Code: "99999911", Name: "orphan"}}, zap.New(core))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Contains(t, entry.Message, "partial hierarchy")
	assert.EqualValues(t, 1, entry.ContextMap()["orphans"])
}

func TestPathAndStats(t *testing.T) {
	tree := hierarchy.Build(rubberEntries(), zap.NewNop())

	var codes []string
	for _, n := range tree.Path("40012210") {
		codes = append(codes, n.Code)
	}
	assert.Equal(t, []string{"40", "4001", "400122", "40012210"}, codes)
	assert.Nil(t, tree.Path("12345678"))

	stats := tree.Stats()
	assert.Equal(t, 1, stats[hscode.LevelChapter])
	assert.Equal(t, 2, stats[hscode.LevelSubCode])
}

func TestBuild_RubberAlbuminoidal(t *testing.T) {
	tree := hierarchy.Build([]hierarchy.Entry{
		{Code: "35", Name: "Rubber"},
		{Code: "3502", Name: "Albuminoidal"},
		{Code: "350211", Name: "Albumins - Eggs"},
	}, nil)

	name, ok := tree.Name("350211")
	require.True(t, ok)
	assert.Equal(t, "Albumins - Eggs", name)

	h, ok := tree.Heading("3502")
	require.True(t, ok)
	assert.Equal(t, "Albuminoidal", h.Name)
	require.Len(t, h.Children, 1)
	assert.Equal(t, "350211", h.Children[0].Code)
	assert.Equal(t, "Albumins - Eggs", h.Children[0].Name)
}

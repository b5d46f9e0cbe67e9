package hscode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hsindex/internal/hscode"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3502.11", "350211"},
		{" 35 02 11 00 ", "35021100"},
		{"35.02", "3502"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hscode.Normalize(tt.in), tt.in)
	}
}

func TestLevelOf(t *testing.T) {
	assert.Equal(t, hscode.LevelChapter, hscode.LevelOf("35"))
	assert.Equal(t, hscode.LevelHeading, hscode.LevelOf("3502"))
	assert.Equal(t, hscode.LevelCode, hscode.LevelOf("350211"))
	assert.Equal(t, hscode.LevelSubCode, hscode.LevelOf("35021100"))
	assert.Equal(t, hscode.LevelUnknown, hscode.LevelOf("3502110000"))
	assert.Equal(t, "sub-code", hscode.LevelSubCode.String())
}

func TestPrefixes(t *testing.T) {
	code := "40012200"
	assert.Equal(t, "40", hscode.Chapter(code))
	assert.Equal(t, "4001", hscode.Heading(code))
	assert.Equal(t, "400122", hscode.Parent(code))
	assert.Equal(t, "00", hscode.Suffix(code))
	assert.Equal(t, "", hscode.Parent("4001"))
}

func TestLineCodes(t *testing.T) {
	assert.True(t, hscode.IsLineCode("3502.11"))
	assert.True(t, hscode.IsLineCode("3502.11-00"))
	assert.False(t, hscode.IsLineCode("-- Dried"))
	assert.Equal(t, "35021100", hscode.LineCode("3502.11-00"))

	assert.True(t, hscode.IsDotted("3502.11"))
	assert.True(t, hscode.IsDotted("35.02"))
	assert.False(t, hscode.IsDotted("3.50211"))
	assert.False(t, hscode.IsDotted("350.211"))
}

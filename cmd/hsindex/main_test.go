package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(filepath.Join(data, "headings"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "hs_code.csv"),
		[]byte("HS Code,Product Name\n35,Albuminoidal substances\n3502,Albumins\n350211,Dried egg albumin\n35021190,Other\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "headings", "35.txt"),
		[]byte("35.02 Albumins.\n3502.11 - Dried\n"), 0o644))

	cfg := "data:\n" +
		"  dir: " + data + "\n" +
		"  headings_dir: " + filepath.Join(data, "headings") + "\n" +
		"artifacts:\n" +
		"  dir: " + filepath.Join(dir, "artifacts") + "\n" +
		"logging:\n" +
		"  level: error\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("CI", "1")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestLookupCommand_JSON(t *testing.T) {
	cfg := writeConfig(t)
	out := run(t, "--config", cfg, "--json", "lookup", "350211")

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]string{"hs_code": "3502.11", "description": "Dried"}, got)
}

func TestTreeCommand(t *testing.T) {
	cfg := writeConfig(t)
	out := run(t, "--config", cfg, "tree", "350211")
	assert.Equal(t, "3502  Albumins\n  350211  Dried egg albumin\n    35021190  Other\n", out)
}

func TestBuildCommand_JSON(t *testing.T) {
	cfg := writeConfig(t)
	out := run(t, "--config", cfg, "--json", "build")

	var rep struct {
		Units    int               `json:"units"`
		Restored bool              `json:"restored"`
		Failures map[string]string `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 6, rep.Units)
	assert.False(t, rep.Restored)
	assert.Contains(t, rep.Failures, "df_full_content.csv")
}

func TestSearchCommand(t *testing.T) {
	cfg := writeConfig(t)
	out := run(t, "--config", cfg, "search", "-k", "3", "dried", "egg", "albumin")
	assert.Contains(t, out, "350211")
	assert.Contains(t, out, "[90] 35021190")
}

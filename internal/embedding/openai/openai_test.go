package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsindex/internal/embedding/openai"
)

func fakeServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		// reversed to check reordering by index
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = item{Object: "embedding", Embedding: []float32{1, float32(j), 0}, Index: j}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "m"})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_EmbedBatch(t *testing.T) {
	srv, calls := fakeServer(t, 0)
	t.Setenv("TEST_OPENAI_KEY", "k")
	c, err := openai.NewClient(openai.Config{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY", Model: "m", BatchSize: 2})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.InDelta(t, 1.0, vecs[0][0], 1e-6)
	assert.Zero(t, vecs[0][1], "data is placed by index")
	assert.Greater(t, vecs[1][1], float32(0))
	assert.InDelta(t, 1.0, vecs[1][0]*vecs[1][0]+vecs[1][1]*vecs[1][1], 1e-5, "vectors are normalized")
	assert.Equal(t, 3, c.Dimension())
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, "openai:m", c.Name())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	srv, calls := fakeServer(t, 1)
	t.Setenv("TEST_OPENAI_KEY", "k")
	c, err := openai.NewClient(openai.Config{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY"})
	require.NoError(t, err)

	v, err := c.Embed(context.Background(), "albumin")
	require.NoError(t, err)
	assert.Len(t, v, 3)
	assert.EqualValues(t, 2, calls.Load())
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "")
	_, err := openai.NewClient(openai.Config{APIKeyEnv: "TEST_OPENAI_KEY"})
	assert.Error(t, err)
}

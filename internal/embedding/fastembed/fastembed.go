//go:build cgo

// Package fastembed embeds text locally with ONNX sentence models.
package fastembed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"hsindex/internal/embedding"
)

// Config holds configuration for the local embedder.
type Config struct {
	// Model is a fastembed model name, e.g. "fast-all-MiniLM-L6-v2".
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
}

// Embedder wraps a fastembed FlagEmbedding model.
type Embedder struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	name      string
	dimension int
	batchSize int
}

var models = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"fast-bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"fast-bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"fast-all-MiniLM-L6-v2":                  fastembed.AllMiniLML6V2,
}

var dimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseENV15:  768,
	fastembed.AllMiniLML6V2: 384,
}

// New loads the configured model, downloading it into CacheDir if needed.
func New(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = "fast-all-MiniLM-L6-v2"
	}
	model, ok := models[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, cfg.Model)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(".", "local_cache")
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 512
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	showProgress := false
	fe, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}
	return &Embedder{model: fe, name: cfg.Model, dimension: dimensions[model], batchSize: cfg.BatchSize}, nil
}

func (e *Embedder) Name() string { return "fastembed:" + e.name }

// Prepare is a no-op; the model is pretrained.
func (e *Embedder) Prepare(context.Context, []string) error { return nil }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed embeds a query with the model's query prefix.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("fastembed query: %w", err)
	}
	return embedding.Normalize(v), nil
}

// EmbedBatch embeds passages for indexing.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	vecs, err := e.model.PassageEmbed(texts, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fastembed passages: %w", err)
	}
	for _, v := range vecs {
		embedding.Normalize(v)
	}
	return vecs, nil
}

// Close releases the ONNX runtime session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}

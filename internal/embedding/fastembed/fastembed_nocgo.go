//go:build !cgo

// Package fastembed embeds text locally with ONNX sentence models.
package fastembed

import "context"

// Config holds configuration for the local embedder.
type Config struct {
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
}

// Embedder is a stub for builds without cgo.
type Embedder struct{}

// New returns ErrNotAvailable when cgo is disabled.
func New(Config) (*Embedder, error) { return nil, ErrNotAvailable }

func (e *Embedder) Name() string                            { return "fastembed" }
func (e *Embedder) Prepare(context.Context, []string) error { return ErrNotAvailable }
func (e *Embedder) Dimension() int                          { return 0 }

func (e *Embedder) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrNotAvailable
}

func (e *Embedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrNotAvailable
}

func (e *Embedder) Close() error { return nil }

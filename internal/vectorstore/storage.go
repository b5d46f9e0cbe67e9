package vectorstore

import (
	"context"
	"errors"
)

var (
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrNotInitialized    = errors.New("vector store not initialized")
)

// Metric is the native scoring of a store.
type Metric string

const (
	// MetricL2 scores by squared Euclidean distance; lower is nearer.
	MetricL2 Metric = "l2"
	// MetricCosine scores by cosine similarity; higher is nearer.
	MetricCosine Metric = "cosine"
)

// Point is one vector keyed by its index slot.
type Point struct {
	Slot   int
	Vector []float32
	Text   string
	Code   string
	Source string
}

// Match is a search hit in the store's native metric.
type Match struct {
	Slot  int
	Score float32
}

// Storage persists vectors and supports similarity search.
// Search returns matches best first.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Metric() Metric
	Clear(ctx context.Context) error
}

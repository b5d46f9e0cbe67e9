package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"hsindex/internal/vectorstore"
)

const defaultCollection = "hs_units"

var errNoEmbedding = errors.New("chromem: documents must carry precomputed embeddings")

// Storage keeps vectors in an in-process chromem-go collection.
// chromem scores by cosine similarity.
type Storage struct {
	mu         sync.RWMutex
	name       string
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
}

// NewStorage returns a store using the named collection.
func NewStorage(collection string) *Storage {
	if collection == "" {
		collection = defaultCollection
	}
	return &Storage{name: collection}
}

func (s *Storage) Metric() vectorstore.Metric { return vectorstore.MetricCosine }

// Init starts from an empty database.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset(dimension)
}

func (s *Storage) reset(dimension int) error {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(s.name, nil, refuseEmbedding)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.db, s.collection, s.dimension = db, col, dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection == nil {
		return vectorstore.ErrNotInitialized
	}
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("%w: slot %d has %d, want %d", vectorstore.ErrDimensionMismatch, p.Slot, len(p.Vector), s.dimension)
		}
		// chromem normalizes in place
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(p.Slot),
			Content:   p.Text,
			Metadata:  map[string]string{"code": p.Code, "source": p.Source},
			Embedding: vec,
		}
	}
	// Concurrency of 1 since we already have embeddings.
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return nil, vectorstore.ErrNotInitialized
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, want %d", vectorstore.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 5
	}
	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	query := make([]float32, len(vector))
	copy(query, vector)
	results, err := s.collection.QueryEmbedding(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	matches := make([]vectorstore.Match, 0, len(results))
	for _, r := range results {
		slot, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("chromem: bad document id %q: %w", r.ID, err)
		}
		matches = append(matches, vectorstore.Match{Slot: slot, Score: r.Similarity})
	}
	return matches, nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection == nil {
		return nil
	}
	return s.reset(s.dimension)
}

// Len returns the number of stored documents.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return 0
	}
	return s.collection.Count()
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"hsindex/internal/vectorstore"
)

// Storage is an in-memory vector store doing exact brute-force search.
// Ties are broken by slot so results are deterministic.
type Storage struct {
	mu        sync.RWMutex
	metric    vectorstore.Metric
	dimension int
	vectors   [][]float32
	slots     []int
}

// NewStorage returns a store using metric, defaulting to squared L2.
func NewStorage(metric vectorstore.Metric) *Storage {
	if metric != vectorstore.MetricCosine {
		metric = vectorstore.MetricL2
	}
	return &Storage{metric: metric}
}

func (s *Storage) Metric() vectorstore.Metric { return s.metric }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.slots = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return vectorstore.ErrNotInitialized
	}
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("%w: slot %d has %d, want %d", vectorstore.ErrDimensionMismatch, p.Slot, len(p.Vector), s.dimension)
		}
	}
	for _, p := range points {
		s.slots = append(s.slots, p.Slot)
		s.vectors = append(s.vectors, p.Vector)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension == 0 {
		return nil, vectorstore.ErrNotInitialized
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, want %d", vectorstore.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 5
	}
	matches := make([]vectorstore.Match, len(s.vectors))
	for i, v := range s.vectors {
		var score float32
		if s.metric == vectorstore.MetricCosine {
			score = dot(v, vector)
		} else {
			score = squaredL2(v, vector)
		}
		matches[i] = vectorstore.Match{Slot: s.slots[i], Score: score}
	}
	lowerFirst := s.metric == vectorstore.MetricL2
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			if lowerFirst {
				return a.Score < b.Score
			}
			return a.Score > b.Score
		}
		return a.Slot < b.Slot
	})
	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.slots = nil
	return nil
}

// Len returns the number of stored vectors.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

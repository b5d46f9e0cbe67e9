// Package index embeds the corpus units and answers nearest-neighbour
// queries over them.
//
// Scores are reported in two directions so callers never mix them up:
// Distance is the squared Euclidean distance between unit vectors (lower
// is nearer) and Similarity is the cosine similarity (higher is nearer).
// For unit vectors Similarity = 1 - Distance/2. Each store reports its own
// native score and the conversion happens here, once.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hsindex/internal/embedding"
	"hsindex/internal/vectorstore"
)

var (
	// ErrNotBuilt is returned when querying before Build or Load.
	ErrNotBuilt = errors.New("index not built")
	// ErrEmptyCorpus is returned when Build receives no units.
	ErrEmptyCorpus = errors.New("no units to index")
)

const embedBatch = 256

// Neighbor is a unit with its score in both conventions.
type Neighbor struct {
	Unit       Unit    `json:"unit"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// ProgressFunc is called after each embedded batch.
type ProgressFunc func(done, total int)

// Index owns the units, their vectors and the store holding them.
type Index struct {
	mu       sync.RWMutex
	embedder embedding.Embedder
	store    vectorstore.Storage
	logger   *zap.Logger
	progress ProgressFunc

	units   []Unit
	vectors [][]float32
	built   bool
	buildID string
	builtAt time.Time
}

// Option configures an Index.
type Option func(*Index)

func WithLogger(l *zap.Logger) Option { return func(ix *Index) { ix.logger = l } }

func WithProgress(fn ProgressFunc) Option { return func(ix *Index) { ix.progress = fn } }

// New returns an empty index.
func New(embedder embedding.Embedder, store vectorstore.Storage, opts ...Option) *Index {
	ix := &Index{embedder: embedder, store: store, logger: zap.NewNop()}
	for _, o := range opts {
		o(ix)
	}
	if ix.logger == nil {
		ix.logger = zap.NewNop()
	}
	return ix
}

// Build prepares the embedder on the unit texts, embeds every unit and
// loads the store. Units whose vector is all zeros stay addressable but
// are not inserted into the store.
func (ix *Index) Build(ctx context.Context, units []Unit) error {
	if len(units) == 0 {
		return ErrEmptyCorpus
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	start := time.Now()

	texts := make([]string, len(units))
	for i, u := range units {
		if u.Slot != i {
			return fmt.Errorf("unit %d has slot %d", i, u.Slot)
		}
		texts[i] = u.Text
	}
	if err := ix.embedder.Prepare(ctx, texts); err != nil {
		return fmt.Errorf("prepare embedder: %w", err)
	}
	vectors := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += embedBatch {
		hi := min(lo+embedBatch, len(texts))
		batch, err := ix.embedder.EmbedBatch(ctx, texts[lo:hi])
		if err != nil {
			return fmt.Errorf("embed units %d-%d: %w", lo, hi, err)
		}
		vectors = append(vectors, batch...)
		if ix.progress != nil {
			ix.progress(hi, len(texts))
		}
	}
	if err := ix.fill(ctx, ix.embedder.Dimension(), units, vectors); err != nil {
		return err
	}
	ix.buildID = uuid.NewString()
	ix.builtAt = time.Now().UTC()
	ix.logger.Info("index built",
		zap.String("build_id", ix.buildID),
		zap.Int("units", len(units)),
		zap.Int("dimension", ix.embedder.Dimension()),
		zap.String("embedder", ix.embedder.Name()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// fill loads vectors into a fresh store and publishes units.
func (ix *Index) fill(ctx context.Context, dim int, units []Unit, vectors [][]float32) error {
	if len(vectors) != len(units) {
		return fmt.Errorf("got %d vectors for %d units", len(vectors), len(units))
	}
	if err := ix.store.Init(ctx, dim); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	points := make([]vectorstore.Point, 0, len(units))
	skipped := 0
	for i, v := range vectors {
		if v == nil || embedding.IsZero(v) {
			skipped++
			continue
		}
		u := units[i]
		points = append(points, vectorstore.Point{Slot: u.Slot, Vector: v, Text: u.Text, Code: u.Code, Source: string(u.Source)})
	}
	if err := ix.store.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if skipped > 0 {
		ix.logger.Debug("units without terms left out of the store", zap.Int("count", skipped))
	}
	ix.units = units
	ix.vectors = vectors
	ix.built = true
	return nil
}

// Query returns up to k neighbours of text, nearest first. Exact ties keep
// slot order. A query that embeds to the zero vector is ranked by token
// overlap instead.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Neighbor, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.built {
		return nil, ErrNotBuilt
	}
	if k <= 0 {
		k = 5
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if embedding.IsZero(vec) {
		return ix.lexicalSearch(text, k), nil
	}
	matches, err := ix.searchTies(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbor, 0, len(matches))
	relevant := false
	for _, m := range matches {
		if m.Slot < 0 || m.Slot >= len(ix.units) {
			return nil, fmt.Errorf("store returned unknown slot %d", m.Slot)
		}
		n := ix.convert(m)
		if n.Similarity > 1e-9 {
			relevant = true
		}
		out = append(out, n)
	}
	if !relevant {
		return ix.lexicalSearch(text, k), nil
	}
	sortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// searchTies asks the store for more than k matches, widening the request
// until the k-th score no longer ties with the last one returned, so every
// unit tied at the cut is seen before slot order breaks the tie.
func (ix *Index) searchTies(ctx context.Context, vec []float32, k int) ([]vectorstore.Match, error) {
	fetch := k + 1
	for {
		matches, err := ix.store.Search(ctx, vec, fetch)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		if len(matches) < fetch || fetch >= len(ix.units) || matches[k-1].Score != matches[len(matches)-1].Score {
			return matches, nil
		}
		fetch *= 2
	}
}

func (ix *Index) convert(m vectorstore.Match) Neighbor {
	n := Neighbor{Unit: ix.units[m.Slot]}
	score := float64(m.Score)
	switch ix.store.Metric() {
	case vectorstore.MetricCosine:
		n.Similarity = score
		n.Distance = max(0, 2-2*score)
	default:
		n.Distance = score
		n.Similarity = 1 - score/2
	}
	return n
}

func sortNeighbors(ns []Neighbor) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Distance != ns[j].Distance {
			return ns[i].Distance < ns[j].Distance
		}
		return ns[i].Unit.Slot < ns[j].Unit.Slot
	})
}

// Units returns the indexed units in slot order.
func (ix *Index) Units() []Unit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.units
}

// Store returns the backing vector store.
func (ix *Index) Store() vectorstore.Storage { return ix.store }

// Len returns the number of units.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.units)
}

// Built reports whether the index can be queried.
func (ix *Index) Built() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.built
}

// Info describes the current build.
type Info struct {
	BuildID   string    `json:"build_id"`
	BuiltAt   time.Time `json:"built_at"`
	Units     int       `json:"units"`
	Dimension int       `json:"dimension"`
	Embedder  string    `json:"embedder"`
	Metric    string    `json:"metric"`
}

func (ix *Index) Info() Info {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Info{
		BuildID:   ix.buildID,
		BuiltAt:   ix.builtAt,
		Units:     len(ix.units),
		Dimension: ix.embedder.Dimension(),
		Embedder:  ix.embedder.Name(),
		Metric:    string(ix.store.Metric()),
	}
}

// Package service owns the loaded corpus and answers every query against
// one immutable snapshot. Rebuilds assemble a new snapshot off to the side
// and publish it atomically; readers never see a half-built state.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hsindex/internal/dataset"
	"hsindex/internal/domain"
	"hsindex/internal/embedding"
	"hsindex/internal/headings"
	"hsindex/internal/hierarchy"
	"hsindex/internal/index"
	"hsindex/internal/metrics"
	"hsindex/internal/resolver"
	"hsindex/internal/search"
	"hsindex/internal/vectorstore"
)

var (
	// ErrNotReady is returned by queries issued before the first build
	// has been published.
	ErrNotReady = errors.New("engine not ready: no snapshot built")
	// ErrNotFound is returned when a code or heading does not exist.
	ErrNotFound = errors.New("not found")
)

// Paths locates inputs and persisted artifacts. Empty artifact paths
// disable caching.
type Paths struct {
	DataDir       string
	Files         dataset.Files
	HeadingsDir   string
	HeadingsCache string
	IndexArtifact string
}

// Deps supplies the pluggable parts. NewEmbedder and NewStore are called
// once per build so a rebuild never mutates state a published snapshot
// still reads.
type Deps struct {
	NewEmbedder func() (embedding.Embedder, error)
	NewStore    func() (vectorstore.Storage, error)
	Sectioner   domain.Sectioner
	Summarizer  domain.Summarizer
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Progress    index.ProgressFunc
}

// Snapshot is everything a query needs. It is never mutated once published.
type Snapshot struct {
	Sources    *dataset.Sources
	Headings   *headings.Set
	Tree       *hierarchy.Tree
	Index      *index.Index
	Resolver   *resolver.Resolver
	Aggregator *search.Aggregator
	Report     BuildReport

	// inUse is read-held by every query running against the snapshot;
	// retirement takes it exclusively before releasing the store.
	inUse   sync.RWMutex
	retired bool
}

// BuildReport summarises one build.
type BuildReport struct {
	BuildID    string            `json:"build_id"`
	Units      int               `json:"units"`
	Orphans    int               `json:"orphans"`
	Restored   bool              `json:"restored"`
	Took       time.Duration     `json:"took"`
	Extraction dataset.Report    `json:"extraction"`
	Failures   map[string]string `json:"failures,omitempty"`
}

// Engine is safe for concurrent use.
type Engine struct {
	paths  Paths
	search search.Config
	topK   int
	deps   Deps
	logger *zap.Logger

	buildMu sync.Mutex
	current atomic.Pointer[Snapshot]
}

// New returns an engine with no snapshot; call Build before querying.
func New(paths Paths, searchCfg search.Config, topK int, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sectioner == nil {
		deps.Sectioner = headings.NewLineSectioner()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Engine{paths: paths, search: searchCfg, topK: topK, deps: deps, logger: deps.Logger}
}

// Build loads the sources, builds the hierarchy and either restores the
// index artifact or embeds the corpus afresh, then publishes the result.
// With force set, caches are ignored and rewritten. Concurrent calls are
// serialised; queries keep using the previous snapshot until the swap.
func (e *Engine) Build(ctx context.Context, force bool) (BuildReport, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	snap, err := e.build(ctx, force)
	took := time.Since(start)
	if err != nil {
		e.deps.Metrics.Build(err, took, 0, 0)
		return BuildReport{}, err
	}
	snap.Report.Took = took

	prev := e.current.Swap(snap)
	e.deps.Metrics.Build(nil, took, snap.Report.Units, snap.Report.Orphans)
	e.logger.Info("snapshot published",
		zap.String("build_id", snap.Report.BuildID),
		zap.Int("units", snap.Report.Units),
		zap.Int("orphans", snap.Report.Orphans),
		zap.Bool("restored", snap.Report.Restored),
		zap.Duration("took", took),
	)
	if prev != nil {
		if err := e.retire(ctx, prev); err != nil {
			e.logger.Warn("previous vector store not released", zap.String("build_id", prev.Report.BuildID), zap.Error(err))
		} else {
			e.logger.Debug("previous snapshot retired", zap.String("build_id", prev.Report.BuildID))
		}
	}
	return snap.Report, nil
}

// retire waits for queries still running on s, then drops and closes its
// store. Queries that loaded s after the swap see it retired and reload.
func (e *Engine) retire(ctx context.Context, s *Snapshot) error {
	s.inUse.Lock()
	s.retired = true
	s.inUse.Unlock()
	return discard(ctx, s.Index.Store())
}

// discard empties store, which drops remote collections, and closes it
// when it holds connections.
func discard(ctx context.Context, store vectorstore.Storage) error {
	ctx = context.WithoutCancel(ctx)
	err := store.Clear(ctx)
	if c, ok := store.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

// acquire returns the published snapshot read-held; call release when the
// query is done.
func (e *Engine) acquire() (snap *Snapshot, release func(), err error) {
	for {
		s := e.current.Load()
		if s == nil {
			return nil, func() {}, ErrNotReady
		}
		s.inUse.RLock()
		if !s.retired {
			return s, s.inUse.RUnlock, nil
		}
		s.inUse.RUnlock()
	}
}

func (e *Engine) build(ctx context.Context, force bool) (_ *Snapshot, err error) {
	src := dataset.LoadSources(e.paths.DataDir, e.paths.Files, e.logger)

	set, err := e.loadHeadings(ctx, force)
	if err != nil {
		return nil, fmt.Errorf("headings: %w", err)
	}

	tree := hierarchy.Build(entries(src.Nomenclature), e.logger)
	units := index.Units(set, src.Tables()...)
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: no headings and no table rows under %s", index.ErrEmptyCorpus, e.paths.DataDir)
	}

	emb, err := e.deps.NewEmbedder()
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	store, err := e.deps.NewStore()
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	defer func() {
		if err != nil {
			if derr := discard(ctx, store); derr != nil {
				e.logger.Warn("unpublished vector store not released", zap.Error(derr))
			}
		}
	}()
	ix := index.New(emb, store, index.WithLogger(e.logger), index.WithProgress(e.deps.Progress))

	restored := false
	if !force && e.paths.IndexArtifact != "" {
		restored = e.restore(ctx, ix, units)
	}
	if !restored {
		if err := ix.Build(ctx, units); err != nil {
			return nil, err
		}
		if e.paths.IndexArtifact != "" {
			if err := ix.Save(ctx, e.paths.IndexArtifact); err != nil {
				e.logger.Warn("index artifact not written", zap.String("path", e.paths.IndexArtifact), zap.Error(err))
			}
		}
	}

	failures := make(map[string]string, len(src.Failures))
	for name, err := range src.Failures {
		failures[name] = err.Error()
	}
	return &Snapshot{
		Sources:  src,
		Headings: set,
		Tree:     tree,
		Index:    ix,
		Resolver: resolver.New(set, tree),
		Aggregator: search.New(ix, src, tree,
			search.WithConfig(e.search),
			search.WithSummarizer(e.deps.Summarizer),
			search.WithLogger(e.logger),
		),
		Report: BuildReport{
			BuildID:    ix.Info().BuildID,
			Units:      ix.Len(),
			Orphans:    len(tree.Orphans()),
			Restored:   restored,
			Extraction: src.ExtractionReport,
			Failures:   failures,
		},
	}, nil
}

func (e *Engine) loadHeadings(ctx context.Context, force bool) (*headings.Set, error) {
	if !force {
		return headings.LoadOrExtract(ctx, e.paths.HeadingsCache, e.paths.HeadingsDir, e.deps.Sectioner, e.logger)
	}
	if e.paths.HeadingsDir == "" {
		return headings.NewSet(nil), nil
	}
	set, err := headings.Extract(ctx, e.paths.HeadingsDir, e.deps.Sectioner, e.logger)
	if err != nil {
		return nil, err
	}
	if e.paths.HeadingsCache != "" {
		if err := headings.Save(e.paths.HeadingsCache, set); err != nil {
			e.logger.Warn("heading cache not written", zap.String("path", e.paths.HeadingsCache), zap.Error(err))
		}
	}
	return set, nil
}

// restore loads the artifact into ix and reports whether it still matches
// the corpus. Any failure means a rebuild.
func (e *Engine) restore(ctx context.Context, ix *index.Index, units []index.Unit) bool {
	path := e.paths.IndexArtifact
	if err := ix.Load(ctx, path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("index artifact unusable, rebuilding", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	if !slices.Equal(ix.Units(), units) {
		e.logger.Info("index artifact is stale, rebuilding", zap.String("path", path))
		return false
	}
	return true
}

func entries(t *dataset.Table) []hierarchy.Entry {
	if t == nil {
		return nil
	}
	out := make([]hierarchy.Entry, 0, len(t.Rows))
	for _, r := range t.Rows {
		name := r.Name
		if name == "" {
			name = r.Description
		}
		out = append(out, hierarchy.Entry{Code: r.Code, Name: name})
	}
	return out
}

// Snapshot returns the published snapshot or ErrNotReady.
func (e *Engine) Snapshot() (*Snapshot, error) {
	s := e.current.Load()
	if s == nil {
		return nil, ErrNotReady
	}
	return s, nil
}

// Ready reports whether a snapshot has been published.
func (e *Engine) Ready() bool { return e.current.Load() != nil }

// Close unpublishes the snapshot and releases its store. Queries issued
// afterwards get ErrNotReady.
func (e *Engine) Close() error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	s := e.current.Swap(nil)
	if s == nil {
		return nil
	}
	return e.retire(context.Background(), s)
}

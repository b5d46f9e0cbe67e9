package service

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"hsindex/internal/dataset"
	"hsindex/internal/hierarchy"
	"hsindex/internal/hscode"
	"hsindex/internal/index"
	"hsindex/internal/metrics"
	"hsindex/internal/resolver"
	"hsindex/internal/search"
)

// Lookup resolves a heading or code structurally. Nothing matching is a
// NotFound result, not an error.
func (e *Engine) Lookup(query string) (res resolver.Result, err error) {
	defer e.observe("lookup", time.Now(), &err, func() bool { return res != nil && !res.Found() })
	snap, release, err := e.acquire()
	defer release()
	if err != nil {
		return nil, err
	}
	return snap.Resolver.Lookup(query), nil
}

// Search returns the aggregated code families for query. k <= 0 uses the
// configured default.
func (e *Engine) Search(ctx context.Context, query string, k int) (res []search.Result, err error) {
	defer e.observe("search", time.Now(), &err, func() bool { return len(res) == 0 })
	snap, release, err := e.acquire()
	defer release()
	if err != nil {
		return nil, err
	}
	return snap.Aggregator.Search(ctx, query, e.k(k))
}

// Nearest returns the raw neighbours of query with their unit metadata.
func (e *Engine) Nearest(ctx context.Context, query string, k int) (res []index.Neighbor, err error) {
	defer e.observe("nearest", time.Now(), &err, func() bool { return len(res) == 0 })
	snap, release, err := e.acquire()
	defer release()
	if err != nil {
		return nil, err
	}
	return snap.Index.Query(ctx, query, e.k(k))
}

// Subtree returns the heading addressed by query with its descendants.
func (e *Engine) Subtree(query string) (node *hierarchy.Node, err error) {
	defer e.observe("subtree", time.Now(), &err, func() bool { return false })
	snap, release, err := e.acquire()
	defer release()
	if err != nil {
		return nil, err
	}
	node, err = snap.Resolver.Subtree(query)
	if err != nil {
		return nil, errors.Join(ErrNotFound, err)
	}
	return node, nil
}

// Headings returns the heading subtrees nearest to query.
func (e *Engine) Headings(ctx context.Context, query string, k int) (res []search.HeadingTree, err error) {
	defer e.observe("headings", time.Now(), &err, func() bool { return len(res) == 0 })
	snap, release, err := e.acquire()
	defer release()
	if err != nil {
		return nil, err
	}
	return snap.Aggregator.Headings(ctx, query, e.k(k))
}

// Path returns the chapter-to-code chain for a code in the hierarchy.
func (e *Engine) Path(code string) ([]*hierarchy.Node, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	path := snap.Tree.Path(hscode.Normalize(code))
	if len(path) == 0 {
		return nil, ErrNotFound
	}
	return path, nil
}

func (e *Engine) k(k int) int {
	if k <= 0 {
		return e.topK
	}
	return k
}

// observe records the query outcome. empty reports a successful query that
// found nothing.
func (e *Engine) observe(kind string, start time.Time, err *error, empty func() bool) {
	result := metrics.ResultOK
	switch {
	case errors.Is(*err, ErrNotReady):
		result = metrics.ResultNotReady
	case errors.Is(*err, ErrNotFound):
		result = metrics.ResultNotFound
	case *err != nil:
		result = metrics.ResultError
	case empty():
		result = metrics.ResultNotFound
	}
	e.deps.Metrics.Query(kind, result, time.Since(start))
}

// Stats describes the published snapshot.
type Stats struct {
	Tables     map[string]int       `json:"tables"`
	Contents   int                  `json:"contents"`
	Documents  map[string]int       `json:"documents"`
	Headings   int                  `json:"headings"`
	Lines      int                  `json:"heading_lines"`
	Levels     map[hscode.Level]int `json:"hierarchy"`
	FlatCodes  int                  `json:"flat_codes"`
	Orphans    []string             `json:"orphans,omitempty"`
	Index      index.Info           `json:"index"`
	LastBuild  BuildReport          `json:"last_build"`
	DataErrors map[string]string    `json:"data_errors,omitempty"`
}

// Stats counts what the snapshot holds and the documents under the data
// directory.
func (e *Engine) Stats() (Stats, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Tables:     make(map[string]int),
		Contents:   len(snap.Sources.Contents),
		Headings:   snap.Headings.Len(),
		Lines:      snap.Headings.LineCount(),
		Levels:     snap.Tree.Stats(),
		FlatCodes:  snap.Tree.FlatLen(),
		Index:      snap.Index.Info(),
		LastBuild:  snap.Report,
		DataErrors: snap.Report.Failures,
	}
	for _, t := range snap.Sources.Tables() {
		if t != nil && t.Name != "" {
			st.Tables[filepath.Base(t.Name)] = t.Len()
		}
	}
	for _, o := range snap.Tree.Orphans() {
		st.Orphans = append(st.Orphans, o.Code)
	}
	if e.paths.DataDir != "" {
		docs, err := dataset.Discover(e.paths.DataDir, "**/*.csv", "**/*.txt", "**/*.docx", "**/*.pdf")
		if err != nil {
			e.logger.Debug("document discovery failed", zap.Error(err))
		}
		st.Documents = dataset.CountByExtension(docs)
	}
	return st, nil
}

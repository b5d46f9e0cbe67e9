// Package search turns nearest-neighbour hits into ranked, enriched code
// families: each 6-digit parent with its 8-digit sub-codes grouped by their
// last two digits.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"hsindex/internal/dataset"
	"hsindex/internal/domain"
	"hsindex/internal/hierarchy"
	"hsindex/internal/hscode"
	"hsindex/internal/index"
)

// NoteSuffix labels the synthetic chapter-note group.
const NoteSuffix = "note"

// Querier is the slice of the vector index the aggregator needs.
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]index.Neighbor, error)
}

// Config tunes enrichment.
type Config struct {
	// DefaultFile is reported when no table names a source file.
	DefaultFile string
	// ChapterNote is a fmt template taking the two-digit chapter.
	ChapterNote string
	// ExcerptSentences bounds record content; 0 keeps it whole.
	ExcerptSentences int
}

func DefaultConfig() Config {
	return Config{
		DefaultFile:      "à partir de hs_codes.csv",
		ChapterNote:      "Chapitre %s.docx",
		ExcerptSentences: 3,
	}
}

// Record describes one code, or a chapter note, with its source document.
type Record struct {
	Code        string          `json:"hs_code,omitempty"`
	Description string          `json:"description"`
	File        string          `json:"file"`
	Category    domain.Category `json:"category"`
	Score       *float64        `json:"score"`
	Content     string          `json:"content"`
}

// Group holds the sub-codes sharing a two-digit suffix.
type Group struct {
	Suffix  string   `json:"suffix"`
	Records []Record `json:"records"`
}

// Result is a 6-digit parent code and its family.
type Result struct {
	Code        string          `json:"hs_code"`
	Description string          `json:"description"`
	File        string          `json:"file"`
	Category    domain.Category `json:"category"`
	Score       float64         `json:"score"`
	Content     string          `json:"content"`
	SubCodes    []Group         `json:"sub_codes"`
}

// Aggregator is read-only after New and safe for concurrent use.
type Aggregator struct {
	index      Querier
	sources    *dataset.Sources
	tree       *hierarchy.Tree
	summarizer domain.Summarizer
	cfg        Config
	logger     *zap.Logger

	// 6-digit prefix -> sorted distinct 8-digit codes across all tables
	family map[string][]string
}

type Option func(*Aggregator)

func WithLogger(l *zap.Logger) Option { return func(a *Aggregator) { a.logger = l } }

func WithSummarizer(s domain.Summarizer) Option { return func(a *Aggregator) { a.summarizer = s } }

func WithConfig(cfg Config) Option { return func(a *Aggregator) { a.cfg = cfg } }

func New(ix Querier, sources *dataset.Sources, tree *hierarchy.Tree, opts ...Option) *Aggregator {
	a := &Aggregator{
		index:   ix,
		sources: sources,
		tree:    tree,
		cfg:     DefaultConfig(),
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.sources == nil {
		a.sources = &dataset.Sources{}
	}
	if a.cfg.ChapterNote == "" {
		a.cfg.ChapterNote = DefaultConfig().ChapterNote
	}
	a.family = families(a.sources.Tables())
	return a
}

func families(tables []*dataset.Table) map[string][]string {
	seen := make(map[string]struct{})
	out := make(map[string][]string)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, r := range t.Rows {
			if hscode.LevelOf(r.Code) != hscode.LevelSubCode || !hscode.IsDigits(r.Code) {
				continue
			}
			if _, ok := seen[r.Code]; ok {
				continue
			}
			seen[r.Code] = struct{}{}
			p := hscode.Parent(r.Code)
			out[p] = append(out[p], r.Code)
		}
	}
	for _, codes := range out {
		sort.Strings(codes)
	}
	return out
}

// Search ranks the 6-digit parents behind the top k neighbours of query.
// A parent's score is the best similarity among its hits; parents come out
// by descending score, ties by code.
func (a *Aggregator) Search(ctx context.Context, query string, k int) ([]Result, error) {
	neighbors, err := a.index.Query(ctx, query, k)
	if err != nil {
		return nil, err
	}

	best := make(map[string]float64)
	children := make(map[string]map[string]struct{})
	for _, n := range neighbors {
		code := n.Unit.Code
		if !hscode.IsDigits(code) || (len(code) != 6 && len(code) != 8) {
			continue
		}
		p6 := hscode.Parent(code)
		if s, ok := best[p6]; !ok || n.Similarity > s {
			best[p6] = n.Similarity
		}
		if children[p6] == nil {
			children[p6] = make(map[string]struct{})
		}
		if len(code) == 8 {
			children[p6][code] = struct{}{}
		}
	}
	for p6, set := range children {
		for _, c := range a.family[p6] {
			set[c] = struct{}{}
		}
	}

	parents := make([]string, 0, len(best))
	for p6 := range best {
		parents = append(parents, p6)
	}
	sort.Slice(parents, func(i, j int) bool {
		si, sj := best[parents[i]], best[parents[j]]
		if si != sj {
			return si > sj
		}
		return parents[i] < parents[j]
	})

	out := make([]Result, 0, len(parents))
	for _, p6 := range parents {
		out = append(out, a.result(p6, best[p6], children[p6]))
	}
	a.logger.Debug("search aggregated",
		zap.String("query", query),
		zap.Int("neighbors", len(neighbors)),
		zap.Int("parents", len(out)),
	)
	return out, nil
}

func (a *Aggregator) result(p6 string, score float64, children map[string]struct{}) Result {
	parent := a.record(p6, &score)
	res := Result{
		Code:        p6,
		Description: parent.Description,
		File:        parent.File,
		Category:    parent.Category,
		Score:       score,
		Content:     parent.Content,
		SubCodes:    []Group{},
	}
	if note, ok := a.chapterNote(hscode.Chapter(p6)); ok {
		res.SubCodes = append(res.SubCodes, Group{Suffix: NoteSuffix, Records: []Record{note}})
	}

	groups := make(map[string][]string)
	for c := range children {
		sfx := hscode.Suffix(c)
		groups[sfx] = append(groups[sfx], c)
	}
	suffixes := make([]string, 0, len(groups))
	for sfx := range groups {
		suffixes = append(suffixes, sfx)
	}
	sort.Strings(suffixes)
	for _, sfx := range suffixes {
		codes := groups[sfx]
		sort.Strings(codes)
		g := Group{Suffix: sfx, Records: make([]Record, 0, len(codes))}
		for _, c := range codes {
			g.Records = append(g.Records, a.record(c, &score))
		}
		res.SubCodes = append(res.SubCodes, g)
	}
	return res
}

// record enriches one code. Documents whose name does not classify fall
// back to the decisions table for sub-codes and to the extraction table
// for 6-digit codes.
func (a *Aggregator) record(code string, score *float64) Record {
	r := Record{Code: code, Score: score}
	r.Description, _ = resolve(descriptionChain, a.sources, code)
	file, ok := resolve(fileChain, a.sources, code)
	if !ok {
		file = a.cfg.DefaultFile
	}
	r.File = file
	r.Category = Categorize(file)
	r.Content, _ = a.sources.Contents.Get(file)

	if r.Category == domain.CategoryNone {
		switch len(code) {
		case 8:
			if row, ok := a.sources.Decisions.Lookup(code); ok {
				r.Category = domain.CategoryRuling
				r.File = row.File
				r.Content = row.Description
			}
		case 6:
			if row, ok := a.sources.Extraction.Lookup(code); ok {
				r.Category = domain.CategoryExplanatoryNote
				r.Description = row.Description
				r.Content = row.Description
			}
		}
	}
	r.Content = a.excerpt(r.Content)
	return r
}

func (a *Aggregator) chapterNote(chapter string) (Record, bool) {
	if chapter == "" {
		return Record{}, false
	}
	name := fmt.Sprintf(a.cfg.ChapterNote, chapter)
	content, ok := a.sources.Contents.Get(name)
	if !ok {
		return Record{}, false
	}
	return Record{
		Code:        chapter,
		Description: "Note explicative du Chapitre " + chapter,
		File:        name,
		Category:    domain.CategoryExplanatoryNote,
		Content:     a.excerpt(content),
	}, true
}

func (a *Aggregator) excerpt(text string) string {
	text = strings.TrimSpace(text)
	if a.summarizer == nil || a.cfg.ExcerptSentences <= 0 || text == "" {
		return text
	}
	out, err := a.summarizer.Summarize(text, a.cfg.ExcerptSentences)
	if err != nil {
		a.logger.Debug("excerpt failed, keeping full content", zap.Error(err))
		return text
	}
	return out
}

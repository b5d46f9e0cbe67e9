// Package headings turns nomenclature text documents into heading sections
// and keeps them, in document order, for prefix lookups and indexing.
package headings

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"hsindex/internal/dataset"
	"hsindex/internal/domain"
)

// Set is an ordered collection of sections with unique heading labels.
// A label seen again keeps its first position and takes the later lines.
type Set struct {
	sections []domain.Section
	byLabel  map[string]int
}

// NewSet builds a Set from sections in order.
func NewSet(sections []domain.Section) *Set {
	s := &Set{byLabel: make(map[string]int, len(sections))}
	for _, sec := range sections {
		s.add(sec)
	}
	return s
}

func (s *Set) add(sec domain.Section) {
	if i, ok := s.byLabel[sec.Heading]; ok {
		s.sections[i].Lines = sec.Lines
		return
	}
	s.byLabel[sec.Heading] = len(s.sections)
	s.sections = append(s.sections, sec)
}

// Sections returns the sections in document order.
func (s *Set) Sections() []domain.Section {
	if s == nil {
		return nil
	}
	return s.sections
}

// Len returns the number of sections.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sections)
}

// LineCount returns the total number of lines across sections.
func (s *Set) LineCount() int {
	n := 0
	for _, sec := range s.Sections() {
		n += len(sec.Lines)
	}
	return n
}

// Extract reads every text document under dir and sections it.
func Extract(ctx context.Context, dir string, sectioner domain.Sectioner, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths, err := dataset.Discover(dir, "**/*.txt")
	if err != nil {
		return nil, fmt.Errorf("discover heading documents: %w", err)
	}
	set := NewSet(nil)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		full := filepath.Join(dir, filepath.FromSlash(p))
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, err
		}
		doc := domain.Document{ID: hashString(full), Path: full, Content: string(data)}
		sections, err := sectioner.Sections(doc)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", p, err)
		}
		for _, sec := range sections {
			set.add(sec)
		}
		logger.Debug("heading document sectioned", zap.String("path", p), zap.Int("sections", len(sections)))
	}
	return set, nil
}

// Save writes the set as a JSON array to path.
func Save(path string, set *Set) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(set.Sections(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a set saved by Save.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sections []domain.Section
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return NewSet(sections), nil
}

// LoadOrExtract returns the cached set at cachePath when present; otherwise
// it extracts from dir and writes the cache.
func LoadOrExtract(ctx context.Context, cachePath, dir string, sectioner domain.Sectioner, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cachePath != "" {
		set, err := Load(cachePath)
		if err == nil {
			logger.Debug("heading cache loaded", zap.String("path", cachePath), zap.Int("sections", set.Len()))
			return set, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("heading cache unreadable, rebuilding", zap.String("path", cachePath), zap.Error(err))
		}
	}
	if dir == "" {
		return NewSet(nil), nil
	}
	set, err := Extract(ctx, dir, sectioner, logger)
	if err != nil {
		return nil, err
	}
	if cachePath != "" {
		if err := Save(cachePath, set); err != nil {
			logger.Warn("heading cache not written", zap.String("path", cachePath), zap.Error(err))
		}
	}
	return set, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}

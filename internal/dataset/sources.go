package dataset

import (
	"path/filepath"

	"go.uber.org/zap"
)

// Files names the source tables inside a data directory. Empty names are
// skipped.
type Files struct {
	Nomenclature string
	Decisions    string
	Extraction   string
	Contents     string
}

// DefaultFiles are the table names the corpus is shipped with.
var DefaultFiles = Files{
	Nomenclature: "hs_code.csv",
	Decisions:    "df1_updated.csv",
	Extraction:   "df_Extraction_final.csv",
	Contents:     "df_full_content.csv",
}

// Sources is the set of reconciled tables. A table that failed to load is
// present but empty, and its error is kept in Failures.
type Sources struct {
	Nomenclature *Table
	Decisions    *Table
	Extraction   *Table
	Contents     Contents

	ExtractionReport Report
	Failures         map[string]error
}

// Tables returns the code tables in description precedence order.
func (s *Sources) Tables() []*Table {
	return []*Table{s.Nomenclature, s.Decisions, s.Extraction}
}

// LoadSources reads every configured table from dir. A table that is
// missing or lacks required columns is logged and left empty; the others
// still load.
func LoadSources(dir string, files Files, logger *zap.Logger) *Sources {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sources{Failures: make(map[string]error)}

	load := func(name string, src Source, schema Schema) *Table {
		if name == "" {
			return NewTable("", src, nil)
		}
		t, err := LoadTable(filepath.Join(dir, name), src, schema)
		if err != nil {
			logger.Warn("source table not loaded", zap.String("table", name), zap.Error(err))
			s.Failures[name] = err
			return NewTable(name, src, nil)
		}
		logger.Debug("source table loaded", zap.String("table", name), zap.Int("rows", t.Len()))
		return t
	}

	s.Nomenclature = load(files.Nomenclature, SourceNomenclature, NomenclatureSchema)
	s.Decisions = load(files.Decisions, SourceDecisions, DecisionsSchema)
	raw := load(files.Extraction, SourceExtraction, ExtractionSchema)
	s.Extraction, s.ExtractionReport = NormalizeExtraction(raw)
	if s.ExtractionReport.Dropped > 0 {
		logger.Debug("extraction rows dropped",
			zap.Int("dropped", s.ExtractionReport.Dropped),
			zap.Int("backfilled", s.ExtractionReport.Backfilled),
		)
	}

	s.Contents = Contents{}
	if files.Contents != "" {
		c, err := LoadContents(filepath.Join(dir, files.Contents))
		if err != nil {
			logger.Warn("content table not loaded", zap.String("table", files.Contents), zap.Error(err))
			s.Failures[files.Contents] = err
		} else {
			s.Contents = c
		}
	}
	return s
}

package search

import (
	"regexp"
	"strings"

	"hsindex/internal/dataset"
	"hsindex/internal/domain"
)

// fieldSource reads one field of the row a table holds for a code.
type fieldSource struct {
	table func(*dataset.Sources) *dataset.Table
	field func(dataset.Row) string
}

func nomenclature(s *dataset.Sources) *dataset.Table { return s.Nomenclature }
func decisions(s *dataset.Sources) *dataset.Table    { return s.Decisions }
func extraction(s *dataset.Sources) *dataset.Table   { return s.Extraction }

func rowName(r dataset.Row) string { return r.Name }
func rowFile(r dataset.Row) string { return r.File }

// Resolution order for a code's description and source file. The first
// source whose table has the code with a non-empty value wins.
var (
	descriptionChain = []fieldSource{
		{nomenclature, rowName},
		{decisions, rowName},
		{extraction, rowName},
	}
	fileChain = []fieldSource{
		{nomenclature, rowFile},
		{extraction, rowFile},
		{decisions, rowFile},
	}
)

func resolve(chain []fieldSource, src *dataset.Sources, code string) (string, bool) {
	for _, p := range chain {
		row, ok := p.table(src).Lookup(code)
		if !ok {
			continue
		}
		if v := strings.TrimSpace(p.field(row)); v != "" {
			return v, true
		}
	}
	return "", false
}

var categoryRules = []struct {
	pattern  *regexp.Regexp
	category domain.Category
}{
	{regexp.MustCompile(`^chapitre\s*\d+\.docx$`), domain.CategoryExplanatoryNote},
	{regexp.MustCompile(`^modification session\s*\d+\.pdf$`), domain.CategoryRuling},
	{regexp.MustCompile(`^affaire\s+.+\.pdf$`), domain.CategoryCourtCase},
}

// Categorize classifies a source document by its file name, ignoring case.
// Unknown names yield CategoryNone.
func Categorize(file string) domain.Category {
	name := strings.ToLower(strings.TrimSpace(file))
	for _, r := range categoryRules {
		if r.pattern.MatchString(name) {
			return r.category
		}
	}
	return domain.CategoryNone
}

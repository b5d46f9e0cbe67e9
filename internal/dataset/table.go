// Package dataset loads the tabular code sources and reconciles their column
// naming differences.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"hsindex/internal/hscode"
)

// ErrMissingColumn is returned when a table lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Source identifies the table a record came from.
type Source string

const (
	SourceNomenclature Source = "nomenclature"
	SourceDecisions    Source = "decisions"
	SourceExtraction   Source = "extraction"
	SourceHeadings     Source = "headings"
)

// Column is a logical column name shared by every table.
type Column string

const (
	ColCode        Column = "code"
	ColName        Column = "name"
	ColDescription Column = "description"
	ColFile        Column = "file"
	ColContent     Column = "content"
)

// aliases maps lowercased physical headers onto logical columns.
var aliases = map[string]Column{
	"hs code":      ColCode,
	"hs_code":      ColCode,
	"hscode":       ColCode,
	"code":         ColCode,
	"cn_code":      ColCode,
	"product name": ColName,
	"product_name": ColName,
	"name":         ColName,
	"label":        ColName,
	"description":  ColDescription,
	"desc":         ColDescription,
	"file name":    ColFile,
	"file_name":    ColFile,
	"filename":     ColFile,
	"file":         ColFile,
	"content":      ColContent,
	"text":         ColContent,
}

// Schema lists the logical columns a table must carry. RawCodes keeps the
// trimmed code as written instead of normalizing it.
type Schema struct {
	Required []Column
	RawCodes bool
}

var (
	NomenclatureSchema = Schema{Required: []Column{ColCode, ColName}}
	DecisionsSchema    = Schema{Required: []Column{ColCode, ColDescription}}
	ExtractionSchema   = Schema{Required: []Column{ColCode, ColDescription}, RawCodes: true}
	ContentSchema      = Schema{Required: []Column{ColFile, ColContent}}
)

// Row is one reconciled record. Absent optional columns are empty.
type Row struct {
	Code        string
	Name        string
	Description string
	File        string
}

// Label is the text shown for the row: its description, else its name.
func (r Row) Label() string {
	if strings.TrimSpace(r.Description) != "" {
		return r.Description
	}
	return r.Name
}

// Table is an ordered set of rows from one source.
type Table struct {
	Name   string
	Source Source
	Rows   []Row

	byCode map[string]int
}

// NewTable builds a table and its first-occurrence code index.
func NewTable(name string, src Source, rows []Row) *Table {
	t := &Table{Name: name, Source: src, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.byCode = make(map[string]int, len(t.Rows))
	for i, r := range t.Rows {
		if _, ok := t.byCode[r.Code]; !ok {
			t.byCode[r.Code] = i
		}
	}
}

// Lookup returns the first row carrying code.
func (t *Table) Lookup(code string) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	i, ok := t.byCode[code]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// Len returns the number of rows; a nil table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ReadTable parses CSV from r, mapping headers onto logical columns.
// Codes are normalized with hscode.Normalize unless schema.RawCodes is set.
func ReadTable(r io.Reader, name string, src Source, schema Schema) (*Table, error) {
	records, positions, err := readCSV(r, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		code := strings.TrimSpace(field(rec, positions, ColCode))
		if !schema.RawCodes {
			code = hscode.Normalize(code)
		}
		rows = append(rows, Row{
			Code:        code,
			Name:        strings.TrimSpace(field(rec, positions, ColName)),
			Description: strings.TrimSpace(field(rec, positions, ColDescription)),
			File:        strings.TrimSpace(field(rec, positions, ColFile)),
		})
	}
	return NewTable(name, src, rows), nil
}

// LoadTable reads a CSV table from path.
func LoadTable(path string, src Source, schema Schema) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f, path, src, schema)
}

func readCSV(r io.Reader, schema Schema) ([][]string, map[Column]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("empty table: %w", ErrMissingColumn)
		}
		return nil, nil, err
	}
	positions := make(map[Column]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if col, ok := aliases[h]; ok {
			if _, seen := positions[col]; !seen {
				positions[col] = i
			}
		}
	}
	for _, col := range schema.Required {
		if _, ok := positions[col]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return records, positions, nil
}

func field(rec []string, positions map[Column]int, col Column) string {
	i, ok := positions[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

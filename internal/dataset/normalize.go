package dataset

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var extractionCodeRe = regexp.MustCompile(`^\d{6,10}$`)

var placeholders = map[string]struct{}{
	"n/a":  {},
	"na":   {},
	"null": {},
	"none": {},
	"vide": {},
	"nan":  {},
}

// Report counts what normalization did to a table.
type Report struct {
	Kept       int `json:"kept"`
	Dropped    int `json:"dropped"`
	Backfilled int `json:"backfilled"`
}

// NormalizeExtraction drops rows whose code is not 6 to 10 bare digits and
// backfills suspect descriptions from the product name. The input table is
// not modified.
func NormalizeExtraction(t *Table) (*Table, Report) {
	var rep Report
	rows := make([]Row, 0, t.Len())
	for _, r := range t.Rows {
		if !extractionCodeRe.MatchString(r.Code) {
			rep.Dropped++
			continue
		}
		if SuspectDescription(r.Description) && strings.TrimSpace(r.Name) != "" {
			r.Description = r.Name
			rep.Backfilled++
		}
		rows = append(rows, r)
	}
	rep.Kept = len(rows)
	return NewTable(t.Name, t.Source, rows), rep
}

// SuspectDescription reports whether desc is too weak to display: empty,
// shorter than five characters, only digits, only punctuation, or a
// placeholder token.
func SuspectDescription(desc string) bool {
	d := strings.TrimSpace(desc)
	if d == "" || utf8.RuneCountInString(d) < 5 {
		return true
	}
	if _, ok := placeholders[strings.ToLower(d)]; ok {
		return true
	}
	allDigits, allPunct := true, true
	for _, r := range d {
		if !unicode.IsDigit(r) {
			allDigits = false
		}
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			allPunct = false
		}
	}
	return allDigits || allPunct
}

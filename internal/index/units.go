package index

import (
	"strings"

	"hsindex/internal/dataset"
	"hsindex/internal/headings"
	"hsindex/internal/hscode"
)

// Unit is one indexed text passage and its side-table metadata.
// Slot is its position in the index and never changes after build.
type Unit struct {
	Slot        int            `json:"slot"`
	Text        string         `json:"text"`
	Source      dataset.Source `json:"source"`
	Code        string         `json:"code,omitempty"`
	Heading     string         `json:"heading,omitempty"`
	Description string         `json:"description,omitempty"`
	File        string         `json:"file,omitempty"`
}

// Units renders the corpus in slot order: each heading label followed by
// its nomenclature lines, then every row of every table as
// "code - description".
func Units(set *headings.Set, tables ...*dataset.Table) []Unit {
	var units []Unit
	add := func(u Unit) {
		u.Slot = len(units)
		units = append(units, u)
	}
	for _, sec := range set.Sections() {
		add(Unit{
			Text:    sec.Heading,
			Source:  dataset.SourceHeadings,
			Code:    headingCode(sec.Heading),
			Heading: sec.Heading,
		})
		for _, line := range sec.Lines {
			code, desc := splitLine(line)
			add(Unit{
				Text:        line,
				Source:      dataset.SourceHeadings,
				Code:        code,
				Heading:     sec.Heading,
				Description: desc,
			})
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, r := range t.Rows {
			if r.Code == "" {
				continue
			}
			add(Unit{
				Text:        r.Code + " - " + r.Label(),
				Source:      t.Source,
				Code:        r.Code,
				Description: r.Label(),
				File:        r.File,
			})
		}
	}
	return units
}

// headingCode extracts "3502" from a label such as "35.02 Albumins".
func headingCode(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	tok := strings.TrimSuffix(fields[0], ".")
	if !hscode.IsLineCode(tok) {
		return ""
	}
	code := hscode.LineCode(tok)
	if hscode.LevelOf(code) != hscode.LevelHeading {
		return ""
	}
	return code
}

// splitLine separates "3502.11 - -- Dried" into its code and description.
// Lines whose leading token is not a code keep all text as description.
func splitLine(line string) (code, desc string) {
	token, rest, _ := strings.Cut(line, " - ")
	token = strings.TrimSpace(token)
	rest = strings.TrimSpace(rest)
	if !hscode.IsLineCode(token) {
		return "", strings.TrimSpace(token + " " + rest)
	}
	return hscode.LineCode(token), rest
}

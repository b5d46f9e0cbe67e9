// Package resolver answers exact structural lookups: a query naming a
// heading or a code is resolved against the heading sections and the flat
// nomenclature table without touching the vector index.
package resolver

import (
	"errors"
	"strings"

	"hsindex/internal/domain"
	"hsindex/internal/headings"
	"hsindex/internal/hierarchy"
	"hsindex/internal/hscode"
)

// NotFoundMessage is the error text of a lookup that matched nothing.
const NotFoundMessage = "No matching heading or H.S. code found."

var (
	ErrChapterNotFound = errors.New("chapter not found")
	ErrHeadingNotFound = errors.New("no valid heading found")
)

// Result is one of HeadingResult, CodeResult or NotFound.
type Result interface {
	isResult()
	Found() bool
}

// HeadingResult is a heading section whose label starts with the query.
type HeadingResult struct {
	Heading      string   `json:"heading"`
	RelatedCodes []string `json:"related_hs_codes"`
}

// CodeResult is a single code and its description.
type CodeResult struct {
	Code        string `json:"hs_code"`
	Description string `json:"description"`
}

// NotFound carries the lookup failure message.
type NotFound struct {
	Error string `json:"error"`
}

func (HeadingResult) isResult() {}
func (CodeResult) isResult()    {}
func (NotFound) isResult()      {}

func (HeadingResult) Found() bool { return true }
func (CodeResult) Found() bool    { return true }
func (NotFound) Found() bool      { return false }

// Names resolves a normalized code to its nomenclature name.
type Names interface {
	Name(code string) (string, bool)
}

// Resolver is safe for concurrent use; it never mutates its inputs.
type Resolver struct {
	sections []domain.Section
	names    Names
	tree     *hierarchy.Tree
}

// New builds a resolver over the heading sections and the hierarchy, whose
// flat table serves as the last-resort code lookup.
func New(set *headings.Set, tree *hierarchy.Tree) *Resolver {
	r := &Resolver{tree: tree}
	if set != nil {
		r.sections = set.Sections()
	}
	if tree != nil {
		r.names = tree
	}
	return r
}

// Lookup resolves query to a heading, a code or NotFound. A query without a
// separator is retried with a '.' inserted after each position in turn and
// finally as typed; the first variant that matches wins. Heading-text
// matches report the variant as typed, flat-table matches report the
// canonical digits.
func (r *Resolver) Lookup(query string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return NotFound{Error: NotFoundMessage}
	}
	if strings.Contains(query, ".") {
		return r.match(query)
	}
	for _, v := range Variants(query) {
		if res := r.match(v); res.Found() {
			return res
		}
	}
	return NotFound{Error: NotFoundMessage}
}

// Variants lists the dotted forms of query followed by query itself.
func Variants(query string) []string {
	out := make([]string, 0, len(query)+1)
	for i := range len(query) {
		out = append(out, query[:i+1]+"."+query[i+1:])
	}
	return append(out, query)
}

func (r *Resolver) match(q string) Result {
	for _, sec := range r.sections {
		if strings.HasPrefix(sec.Heading, q) {
			return HeadingResult{Heading: sec.Heading, RelatedCodes: lines(sec.Lines)}
		}
	}
	for _, sec := range r.sections {
		for _, line := range sec.Lines {
			if !strings.HasPrefix(line, q) {
				continue
			}
			desc := line
			if _, after, ok := strings.Cut(line, " - "); ok {
				desc = after
			}
			return CodeResult{Code: q, Description: strings.TrimSpace(desc)}
		}
	}
	if r.names != nil {
		key := q
		if hscode.IsDotted(q) {
			key = hscode.Normalize(q)
		}
		if name, ok := r.names.Name(key); ok {
			return CodeResult{Code: key, Description: name}
		}
	}
	return NotFound{Error: NotFoundMessage}
}

func lines(ls []string) []string {
	if ls == nil {
		return []string{}
	}
	return ls
}

// Subtree returns the heading node addressed by the first four digits of
// query. Spaces and dots are ignored.
func (r *Resolver) Subtree(query string) (*hierarchy.Node, error) {
	q := hscode.Normalize(query)
	if r.tree == nil || len(q) < 2 {
		return nil, ErrChapterNotFound
	}
	if _, ok := r.tree.Chapter(q[:2]); !ok {
		return nil, ErrChapterNotFound
	}
	if len(q) < 4 {
		return nil, ErrHeadingNotFound
	}
	h, ok := r.tree.Heading(q[:4])
	if !ok {
		return nil, ErrHeadingNotFound
	}
	return h, nil
}

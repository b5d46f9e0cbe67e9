package search

import (
	"context"

	"hsindex/internal/hierarchy"
	"hsindex/internal/hscode"
)

// HeadingTree is a heading subtree touched by a query.
type HeadingTree struct {
	Query string          `json:"query"`
	Score float64         `json:"score"`
	Node  *hierarchy.Node `json:"heading"`
}

// Headings returns the distinct headings of the top k neighbours of query
// in rank order, each with its subtree. Hits whose heading is not in the
// hierarchy are skipped.
func (a *Aggregator) Headings(ctx context.Context, query string, k int) ([]HeadingTree, error) {
	neighbors, err := a.index.Query(ctx, query, k)
	if err != nil {
		return nil, err
	}
	var out []HeadingTree
	if a.tree == nil {
		return out, nil
	}
	seen := make(map[string]struct{})
	for _, n := range neighbors {
		code := n.Unit.Code
		if !hscode.IsDigits(code) || len(code) < 4 {
			continue
		}
		h := hscode.Heading(code)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		node, ok := a.tree.Heading(h)
		if !ok {
			continue
		}
		out = append(out, HeadingTree{Query: query, Score: n.Similarity, Node: node})
	}
	return out, nil
}

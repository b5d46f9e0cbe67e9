// Package hierarchy rebuilds the chapter → heading → code → sub-code tree
// from flat (code, name) records of mixed length.
package hierarchy

import (
	"sort"

	"go.uber.org/zap"

	"hsindex/internal/hscode"
)

// Entry is one normalized input record.
type Entry struct {
	Code string
	Name string
}

// Node is a tree node. Name is empty for placeholders created before their
// own row was seen.
type Node struct {
	Code     string       `json:"code"`
	Name     string       `json:"name"`
	Level    hscode.Level `json:"level"`
	Children []*Node      `json:"children,omitempty"`
}

// Placeholder reports whether the node was only implied by a descendant.
func (n *Node) Placeholder() bool { return n.Name == "" }

// Tree is the built hierarchy plus a flat code → name table.
// It is read-only once Build returns.
type Tree struct {
	chapters []*Node
	nodes    map[string]*Node
	flat     map[string]string
	orphans  []Entry
}

// Build constructs the tree in two phases. Sub-codes not ending in "00"
// are deferred and linked to their 6-digit parent afterwards; those whose
// parent never appears are recorded as orphans instead of being attached.
func Build(entries []Entry, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tree{
		nodes: make(map[string]*Node),
		flat:  make(map[string]string),
	}
	var pending []Entry
	for _, e := range entries {
		code := hscode.Normalize(e.Code)
		if len(code) < 2 {
			continue
		}
		t.flat[code] = e.Name
		switch len(code) {
		case 2, 4, 6:
			t.upsert(code, e.Name)
		case 8:
			if hscode.Suffix(code) == "00" {
				t.upsert(code, e.Name)
			} else {
				pending = append(pending, Entry{Code: code, Name: e.Name})
			}
		}
	}
	for _, e := range pending {
		if _, ok := t.nodes[hscode.Parent(e.Code)]; !ok {
			t.orphans = append(t.orphans, e)
			continue
		}
		t.upsert(e.Code, e.Name)
	}
	if len(t.orphans) > 0 {
		logger.Warn("partial hierarchy: sub-codes without a parent code",
			zap.Int("orphans", len(t.orphans)),
			zap.String("first", t.orphans[0].Code),
		)
	}
	return t
}

// upsert creates or renames the node for code, creating placeholder
// ancestors as needed.
func (t *Tree) upsert(code, name string) *Node {
	if n, ok := t.nodes[code]; ok {
		if name != "" {
			n.Name = name
		}
		return n
	}
	n := &Node{Code: code, Name: name, Level: hscode.LevelOf(code)}
	t.nodes[code] = n
	if len(code) == 2 {
		t.chapters = append(t.chapters, n)
		return n
	}
	parent := t.upsert(parentCode(code), "")
	parent.Children = append(parent.Children, n)
	return n
}

func parentCode(code string) string {
	switch len(code) {
	case 4:
		return hscode.Chapter(code)
	case 6:
		return hscode.Heading(code)
	default:
		return hscode.Parent(code)
	}
}

// Node returns the tree node for a normalized code.
func (t *Tree) Node(code string) (*Node, bool) {
	n, ok := t.nodes[code]
	return n, ok
}

// Chapter returns the chapter node.
func (t *Tree) Chapter(code string) (*Node, bool) { return t.level(code, hscode.LevelChapter) }

// Heading returns the heading node.
func (t *Tree) Heading(code string) (*Node, bool) { return t.level(code, hscode.LevelHeading) }

func (t *Tree) level(code string, l hscode.Level) (*Node, bool) {
	n, ok := t.nodes[code]
	if !ok || n.Level != l {
		return nil, false
	}
	return n, true
}

// Name looks a code up in the flat table, which covers every code of
// length two or more including ones that are not tree nodes.
func (t *Tree) Name(code string) (string, bool) {
	name, ok := t.flat[code]
	return name, ok
}

// Path returns the nodes from the chapter down to code.
func (t *Tree) Path(code string) []*Node {
	n, ok := t.nodes[code]
	if !ok {
		return nil
	}
	var path []*Node
	for _, c := range []string{hscode.Chapter(code), hscode.Heading(code), hscode.Parent(code)} {
		if c == "" || c == code {
			continue
		}
		if a, ok := t.nodes[c]; ok {
			path = append(path, a)
		}
	}
	return append(path, n)
}

// Chapters returns chapters in first-seen order.
func (t *Tree) Chapters() []*Node { return t.chapters }

// Walk visits every node depth-first in child order. Returning false stops
// descent below that node.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, c := range t.chapters {
		visit(c, 0)
	}
}

// Orphans returns the sub-codes that could not be linked.
func (t *Tree) Orphans() []Entry { return t.orphans }

// Len returns the number of tree nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// FlatLen returns the number of codes in the flat table.
func (t *Tree) FlatLen() int { return len(t.flat) }

// Stats counts nodes per level.
func (t *Tree) Stats() map[hscode.Level]int {
	out := make(map[hscode.Level]int, 4)
	for _, n := range t.nodes {
		out[n.Level]++
	}
	return out
}

// Codes returns the flat table's codes, sorted.
func (t *Tree) Codes() []string {
	codes := make([]string, 0, len(t.flat))
	for c := range t.flat {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

package index

import (
	"math"
	"regexp"
	"strings"
)

var unicodeWordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// lexicalSearch ranks units by the Ochiai overlap of their token sets with
// the query. Units sharing no token are left out, so an unmatched query
// yields nothing. Callers hold the read lock.
func (ix *Index) lexicalSearch(query string, k int) []Neighbor {
	qset := toTokenSet(query)
	out := make([]Neighbor, 0, k)
	for _, u := range ix.units {
		sim := overlapOchiai(qset, u.Text)
		if sim == 0 {
			continue
		}
		out = append(out, Neighbor{Unit: u, Similarity: sim, Distance: 2 - 2*sim})
	}
	sortNeighbors(out)
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai is |A∩B| / sqrt(|A||B|).
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	stoks := unicodeWordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(stoks))
	inter := 0
	for _, t := range stoks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}

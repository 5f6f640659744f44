package retrieval

import (
	"sort"
	"strings"
)

// orderedSet keeps the first occurrence of each string.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

// ExpandTerms grows search terms through the vocabulary. Each term is kept verbatim,
// followed by its forward mapping, then any keys mapping back to it. With semantic
// expansion, every pair whose value contains the term is added as well. Output order
// is deterministic: input order, vocabulary scanned in sorted key order.
func ExpandTerms(terms []string, vocabulary map[string]string, semantic bool) []string {
	keys := make([]string, 0, len(vocabulary))
	for k := range vocabulary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := newOrderedSet()
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		out.add(term)

		lower := strings.ToLower(term)
		if v, ok := vocabulary[lower]; ok {
			out.add(v)
		}
		for _, k := range keys {
			if strings.EqualFold(vocabulary[k], term) {
				out.add(k)
			}
		}

		if !semantic {
			continue
		}
		for _, k := range keys {
			v := vocabulary[k]
			if strings.Contains(strings.ToLower(v), lower) {
				out.add(k)
				out.add(v)
			}
		}
	}
	return out.items
}

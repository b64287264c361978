// Package match tests extracted text against a taxonomy.
package match

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/kalambet/laiwatch/internal/taxonomy"
)

// Hit is one keyword found in a text.
type Hit struct {
	Category string
	Keyword  string
}

// Matcher finds taxonomy keywords in text with a single pass over the
// input. It is built once per taxonomy and is safe for concurrent use.
type Matcher struct {
	matcher *ahocorasick.Matcher
	hits    [][]Hit // dictionary index -> taxonomy pairs sharing that keyword
	order   map[Hit]int
}

// New builds a Matcher for tax. Keywords are compared case-insensitively.
func New(tax taxonomy.Taxonomy) *Matcher {
	m := &Matcher{order: make(map[Hit]int)}
	index := make(map[string]int)
	var dict []string
	for _, e := range tax {
		for _, kw := range e.Keywords {
			lower := strings.ToLower(kw)
			if lower == "" {
				continue
			}
			h := Hit{Category: e.Category, Keyword: kw}
			if _, dup := m.order[h]; dup {
				continue
			}
			m.order[h] = len(m.order)

			i, ok := index[lower]
			if !ok {
				i = len(dict)
				index[lower] = i
				dict = append(dict, lower)
				m.hits = append(m.hits, nil)
			}
			m.hits[i] = append(m.hits[i], h)
		}
	}
	if len(dict) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(dict)
	}
	return m
}

// Match returns every (category, keyword) pair whose keyword occurs in text
// as a contiguous, case-insensitive substring, in taxonomy order. No
// stemming or tokenisation is applied, so "ata" also matches "data".
func (m *Matcher) Match(text string) []Hit {
	if m.matcher == nil || text == "" {
		return nil
	}

	idx := m.matcher.MatchThreadSafe([]byte(strings.ToLower(text)))
	if len(idx) == 0 {
		return nil
	}

	found := make([]Hit, 0, len(idx))
	for _, i := range idx {
		found = append(found, m.hits[i]...)
	}
	hits := make([]Hit, len(m.order))
	present := make([]bool, len(m.order))
	for _, h := range found {
		pos := m.order[h]
		hits[pos] = h
		present[pos] = true
	}

	out := make([]Hit, 0, len(found))
	for i, ok := range present {
		if ok {
			out = append(out, hits[i])
		}
	}
	return out
}

// Match is a convenience for one-off checks; callers matching many texts
// against the same taxonomy should build a Matcher once.
func Match(text string, tax taxonomy.Taxonomy) []Hit {
	return New(tax).Match(text)
}

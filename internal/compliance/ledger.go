// Package compliance accumulates keyword evidence for one crawl run.
package compliance

import (
	"github.com/kalambet/laiwatch/internal/match"
	"github.com/kalambet/laiwatch/internal/taxonomy"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusFound   Status = "found"
)

// Record is the state of one (category, keyword) requirement.
type Record struct {
	Category    string `json:"category"`
	Keyword     string `json:"keyword"`
	Status      Status `json:"status"`
	EvidenceURL string `json:"evidence_url,omitempty"`
}

type key struct {
	category string
	keyword  string
}

// Ledger holds one record per (category, keyword) pair of a taxonomy. A
// record only ever moves from pending to found and keeps the first evidence
// URL. Ledger is not safe for concurrent use.
type Ledger struct {
	order   []key
	records map[key]*Record
}

// NewLedger creates a ledger with every pair of tax pending.
func NewLedger(tax taxonomy.Taxonomy) *Ledger {
	l := &Ledger{
		order:   make([]key, 0, tax.KeywordCount()),
		records: make(map[key]*Record, tax.KeywordCount()),
	}
	for _, e := range tax {
		for _, kw := range e.Keywords {
			k := key{e.Category, kw}
			if _, ok := l.records[k]; ok {
				continue
			}
			l.order = append(l.order, k)
			l.records[k] = &Record{Category: e.Category, Keyword: kw, Status: StatusPending}
		}
	}
	return l
}

// Apply marks every hit as found with evidenceURL unless it already is.
// Hits for pairs outside the taxonomy are ignored. It returns the number of
// records that changed.
func (l *Ledger) Apply(evidenceURL string, hits []match.Hit) int {
	changed := 0
	for _, h := range hits {
		r, ok := l.records[key{h.Category, h.Keyword}]
		if !ok || r.Status == StatusFound {
			continue
		}
		r.Status = StatusFound
		r.EvidenceURL = evidenceURL
		changed++
	}
	return changed
}

// Records returns a copy of every record in taxonomy order.
func (l *Ledger) Records() []Record {
	out := make([]Record, len(l.order))
	for i, k := range l.order {
		out[i] = *l.records[k]
	}
	return out
}

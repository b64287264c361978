// Package taxonomy defines the compliance categories a crawl checks for and
// the keyword synonyms that count as evidence for each one.
package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one compliance category and its keywords.
type Entry struct {
	Category string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Taxonomy is an ordered list of entries. Order is preserved so records and
// scores are reported in declaration order.
type Taxonomy []Entry

var (
	ErrEmptyCategory = errors.New("category name is empty")
	ErrDuplicate     = errors.New("duplicate category")
	ErrNoKeywords    = errors.New("category has no keywords")
)

// New validates entries and returns a normalized copy: names and keywords
// are trimmed and keywords that differ only in case are collapsed to the
// first occurrence.
func New(entries []Entry) (Taxonomy, error) {
	out := make(Taxonomy, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Category)
		if name == "" {
			return nil, ErrEmptyCategory
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
		}
		seen[name] = true

		kws := make([]string, 0, len(e.Keywords))
		seenKW := make(map[string]bool, len(e.Keywords))
		for _, kw := range e.Keywords {
			kw = strings.TrimSpace(kw)
			key := strings.ToLower(kw)
			if kw == "" || seenKW[key] {
				continue
			}
			seenKW[key] = true
			kws = append(kws, kw)
		}
		if len(kws) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoKeywords, name)
		}
		out = append(out, Entry{Category: name, Keywords: kws})
	}
	return out, nil
}

// KeywordCount returns the number of (category, keyword) pairs.
func (t Taxonomy) KeywordCount() int {
	n := 0
	for _, e := range t {
		n += len(e.Keywords)
	}
	return n
}

// Clone returns a deep copy.
func (t Taxonomy) Clone() Taxonomy {
	if t == nil {
		return nil
	}
	out := make(Taxonomy, len(t))
	for i, e := range t {
		out[i] = Entry{Category: e.Category, Keywords: append([]string(nil), e.Keywords...)}
	}
	return out
}

type fileFormat struct {
	Categories []Entry `yaml:"categories"`
}

// Parse decodes a taxonomy document. JSON input is accepted because it is
// valid YAML.
func Parse(data []byte) (Taxonomy, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding taxonomy: %w", err)
	}
	return New(f.Categories)
}

// LoadFile reads and parses a taxonomy file.
func LoadFile(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy %s: %w", path, err)
	}
	return Parse(data)
}

// Marshal encodes t in the file format accepted by Parse.
func Marshal(t Taxonomy) ([]byte, error) {
	return yaml.Marshal(fileFormat{Categories: t})
}

// File is a taxonomy source backed by a file that is re-read on every call,
// so edits apply to the next run without a restart.
type File string

func (f File) Taxonomy() (Taxonomy, error) {
	return LoadFile(string(f))
}

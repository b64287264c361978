// Package links enumerates crawl targets from a parsed HTML page.
package links

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/publicsuffix"
)

// Scope restricts which discovered links belong to the crawl.
type Scope int

const (
	// ScopeHost keeps links with the seed's scheme and host (including port).
	ScopeHost Scope = iota
	// ScopeSite keeps http(s) links under the seed's registrable domain,
	// so www.example.gov.br and dados.example.gov.br share a site.
	ScopeSite
)

// ParseScope maps a config value to a Scope. Unknown values mean ScopeHost.
func ParseScope(s string) Scope {
	if strings.EqualFold(s, "site") {
		return ScopeSite
	}
	return ScopeHost
}

func (s Scope) String() string {
	if s == ScopeSite {
		return "site"
	}
	return "host"
}

var documentSuffixes = []string{".pdf", ".csv", ".xls", ".xlsx"}

// Discover returns the in-scope anchor targets of doc, fragment-stripped and
// deduplicated, in document order. base is the URL the page was served
// from; it decides scope and is never included itself. Relative hrefs
// resolve against the page's <base href> when it has one. A nil doc yields
// nil.
func Discover(base *url.URL, doc *html.Node, scope Scope) []string {
	if base == nil || doc == nil {
		return nil
	}
	seed := normalize(base)
	seen := map[string]bool{seed: true}
	var out []string
	for _, u := range anchors(base, doc) {
		if !inScope(base, u, scope) {
			continue
		}
		s := u.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Documents returns anchor targets whose path ends in a document suffix
// (.pdf, .csv, .xls, .xlsx), deduplicated, in document order. Documents are
// not restricted to the seed's host.
func Documents(base *url.URL, doc *html.Node) []string {
	if base == nil || doc == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, u := range anchors(base, doc) {
		if !IsDocument(u.Path) {
			continue
		}
		s := u.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// IsDocument reports whether p ends in one of the document suffixes.
func IsDocument(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, s := range documentSuffixes {
		if ext == s {
			return true
		}
	}
	return false
}

// anchors resolves every <a href> in doc to an absolute http(s) URL
// without fragment.
func anchors(page *url.URL, doc *html.Node) []*url.URL {
	base := Base(page, doc)
	var out []*url.URL
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				if u := resolve(base, a.Val); u != nil {
					out = append(out, u)
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// Base returns the URL relative links in doc resolve against: the first
// <base href> resolved against page, or page itself.
func Base(page *url.URL, doc *html.Node) *url.URL {
	if n := findBase(doc); n != nil {
		for _, a := range n.Attr {
			if a.Key != "href" {
				continue
			}
			href := strings.TrimSpace(a.Val)
			if href == "" {
				break
			}
			if ref, err := url.Parse(href); err == nil {
				return page.ResolveReference(ref)
			}
			break
		}
	}
	return page
}

func findBase(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Base {
		for _, a := range n.Attr {
			if a.Key == "href" {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBase(c); b != nil {
			return b
		}
	}
	return nil
}

func resolve(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	u := base.ResolveReference(ref)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u
}

func normalize(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

func inScope(base, u *url.URL, scope Scope) bool {
	if scope == ScopeSite {
		return sameSite(base.Hostname(), u.Hostname())
	}
	return u.Scheme == base.Scheme && strings.EqualFold(u.Host, base.Host)
}

func sameSite(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	ra, err := publicsuffix.EffectiveTLDPlusOne(a)
	if err != nil {
		return false
	}
	rb, err := publicsuffix.EffectiveTLDPlusOne(b)
	if err != nil {
		return false
	}
	return ra == rb
}

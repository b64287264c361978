// Package report renders a static HTML page from a crawl snapshot.
package report

import (
	"fmt"
	"html/template"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/kalambet/laiwatch/internal/crawl"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// URLs returns every http(s) URL mentioned in lines, deduplicated and sorted.
func URLs(lines []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range lines {
		for _, u := range urlPattern.FindAllString(line, -1) {
			u = strings.TrimRight(u, ".,;:)")
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

type pageData struct {
	Snapshot crawl.Snapshot
	Links    []string
}

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}).Parse(reportHTML))

// Write renders s as a standalone HTML document.
func Write(w io.Writer, s crawl.Snapshot) error {
	if err := page.Execute(w, pageData{Snapshot: s, Links: URLs(s.Log)}); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

const reportHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>laiwatch report{{with .Snapshot.Seed}} - {{.}}{{end}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
</style>
</head>
<body>
<h1>Compliance report</h1>
<p>Seed: {{if .Snapshot.Seed}}<a href="{{.Snapshot.Seed}}">{{.Snapshot.Seed}}</a>{{else}}none{{end}}</p>
<p>State: {{.Snapshot.State}}. Links processed: {{.Snapshot.Progress.ProcessedLinks}} of {{.Snapshot.Progress.TotalLinks}}.</p>
<p>Keywords found: {{.Snapshot.Summary.Found}} of {{.Snapshot.Summary.Total}}.</p>
<h2>Scores</h2>
<table>
<tr><th>Category</th><th>Found</th><th>Total</th><th>Score</th></tr>
{{range .Snapshot.Scores}}<tr><td>{{.Category}}</td><td>{{.Found}}</td><td>{{.Total}}</td><td>{{percent .Score}}</td></tr>
{{end}}</table>
<h2>Links ({{len .Links}})</h2>
<ul>
{{range .Links}}<li><a href="{{.}}">{{.}}</a></li>
{{end}}</ul>
</body>
</html>
`

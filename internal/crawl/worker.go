package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kalambet/laiwatch/internal/extract"
	"github.com/kalambet/laiwatch/internal/links"
	"github.com/kalambet/laiwatch/internal/match"
	"github.com/kalambet/laiwatch/internal/metrics"
)

// worker processes the links of one run. Its fields are owned by the
// worker goroutine; shared state is reached only through the controller.
type worker struct {
	c       *Controller
	seed    *url.URL
	matcher *match.Matcher
	limiter *rate.Limiter // nil when there is no link delay
	seen    map[string]bool
}

func newWorker(c *Controller, seed *url.URL, m *match.Matcher) *worker {
	w := &worker{c: c, seed: seed, matcher: m, seen: make(map[string]bool)}
	if d := c.opts.LinkDelay; d > 0 {
		w.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
	return w
}

type evidence struct {
	url  string
	hits []match.Hit
}

// outcome is everything one link contributes, committed atomically.
type outcome struct {
	lines    []string
	evidence []evidence
	doc      *html.Node
	// page is the URL doc was served from, after redirects.
	page *url.URL
}

func (o *outcome) logf(format string, args ...any) {
	o.lines = append(o.lines, fmt.Sprintf(format, args...))
}

func (w *worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if ctx.Err() != nil {
		w.c.cancelled()
		return
	}

	if w.limiter != nil {
		w.limiter.Allow()
	}
	seed := w.seed.String()
	out := w.process(ctx, seed)

	var targets []string
	if out.doc != nil {
		targets = links.Discover(out.page, out.doc, w.c.opts.Scope)
	}
	out.logf("Total links: %d", 1+len(targets))
	w.c.commit(out, 1+len(targets))

	for _, link := range targets {
		if !w.pause(ctx) {
			w.c.cancelled()
			return
		}
		w.c.commit(w.process(ctx, link), 0)
	}
}

// pause spaces link starts at least LinkDelay apart and reports whether
// the run should continue. It is the per-link cancellation checkpoint.
func (w *worker) pause(ctx context.Context) bool {
	if w.limiter != nil {
		// Wait fails only when ctx is done, which the return value reports.
		_ = w.limiter.Wait(ctx)
	}
	return ctx.Err() == nil
}

// process fetches, extracts and matches one link and the documents it
// links to. Network calls ignore run cancellation and are bounded by the
// fetcher's timeout only.
func (w *worker) process(ctx context.Context, rawURL string) *outcome {
	w.c.appendLine("Processing: " + rawURL)
	out := &outcome{}

	if w.seen[rawURL] {
		out.logf("Skipping %s: already processed", rawURL)
		return out
	}
	w.seen[rawURL] = true

	fctx := context.WithoutCancel(ctx)
	r := w.fetchAndMatch(fctx, rawURL)
	out.lines = append(out.lines, r.lines...)
	out.evidence = append(out.evidence, evidence{url: rawURL, hits: r.hits})
	if r.kind != extract.KindHTML || r.doc == nil {
		return out
	}
	page, err := url.Parse(r.url)
	if err != nil {
		return out
	}
	if r.url != rawURL {
		out.logf("Redirected to %s", r.url)
		w.seen[r.url] = true
	}
	out.doc, out.page = r.doc, page

	docs := w.unseen(links.Documents(page, r.doc))
	if limit := w.c.opts.MaxDocuments; limit > 0 && len(docs) > limit {
		out.logf("Skipping %d document(s) on %s beyond the limit of %d", len(docs)-limit, rawURL, limit)
		docs = docs[:limit]
	}
	if len(docs) == 0 {
		return out
	}
	for _, d := range docs {
		w.seen[d] = true
	}

	results := make([]result, len(docs))
	g := new(errgroup.Group)
	g.SetLimit(w.c.opts.DocumentWorkers)
	for i, d := range docs {
		g.Go(func() error {
			results[i] = w.fetchAndMatch(fctx, d)
			return nil
		})
	}
	_ = g.Wait()

	for i, d := range docs {
		out.logf("  -> %s: %s", documentLabel(d), d)
		out.lines = append(out.lines, results[i].lines...)
		out.evidence = append(out.evidence, evidence{url: d, hits: results[i].hits})
	}
	return out
}

// unseen filters urls already processed in this run.
func (w *worker) unseen(urls []string) []string {
	var out []string
	for _, u := range urls {
		if !w.seen[u] {
			out = append(out, u)
		}
	}
	return out
}

type result struct {
	url   string // final URL after redirects
	kind  extract.Kind
	hits  []match.Hit
	doc   *html.Node
	lines []string
}

// fetchAndMatch never fails: errors become activity lines and empty text.
func (w *worker) fetchAndMatch(ctx context.Context, rawURL string) result {
	start := time.Now()
	res, err := w.c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		metrics.FetchDuration.WithLabelValues(metrics.ResultError).Observe(time.Since(start).Seconds())
		metrics.ResourcesTotal.WithLabelValues("unfetched", metrics.ResultError).Inc()
		w.c.log.Debug("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return result{lines: []string{fmt.Sprintf("Error fetching %s: %v", rawURL, err)}}
	}
	metrics.FetchDuration.WithLabelValues(metrics.ResultOK).Observe(time.Since(start).Seconds())

	r := result{url: res.URL}
	if r.url == "" {
		r.url = rawURL
	}
	if res.Truncated {
		r.lines = append(r.lines, fmt.Sprintf("Truncated %s at %d bytes", rawURL, len(res.Body)))
	}

	r.kind = extract.Classify(rawURL, res.ContentType, res.Body)
	content, err := extract.For(r.kind).Extract(res.Body, res.ContentType)
	if err != nil {
		metrics.ResourcesTotal.WithLabelValues(r.kind.String(), metrics.ResultError).Inc()
		w.c.log.Debug("extract failed", zap.String("url", rawURL), zap.Stringer("kind", r.kind), zap.Error(err))
		r.lines = append(r.lines, fmt.Sprintf("Error extracting %s %s: %v", r.kind, rawURL, err))
		return r
	}
	metrics.ResourcesTotal.WithLabelValues(r.kind.String(), metrics.ResultOK).Inc()

	r.hits = w.matcher.Match(content.Text)
	r.doc = content.Doc
	return r
}

func documentLabel(rawURL string) string {
	switch extract.Classify(rawURL, "", nil) {
	case extract.KindPDF:
		return "PDF"
	case extract.KindSpreadsheet:
		return "Spreadsheet"
	default:
		return "Document"
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/laiwatch/internal/api"
	"github.com/kalambet/laiwatch/internal/compliance"
	"github.com/kalambet/laiwatch/internal/config"
	"github.com/kalambet/laiwatch/internal/crawl"
	"github.com/kalambet/laiwatch/internal/fetch"
	"github.com/kalambet/laiwatch/internal/storage"
	"github.com/kalambet/laiwatch/internal/taxonomy"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestStartRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /crawl": `{"run_id":"run-123","state":"running"}`,
	})

	resp, err := ts.client().post(ctx, "/crawl", api.StartRequest{URL: "https://example.gov.br/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result api.StartResponse
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.RunID != "run-123" {
		t.Errorf("run_id = %q, want %q", result.RunID, "run-123")
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["url"] != "https://example.gov.br/" {
		t.Errorf("body.url = %v, want https://example.gov.br/", body["url"])
	}
}

func TestStopRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /crawl": `{"stopped":true}`,
	})

	resp, err := ts.client().delete(ctx, "/crawl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result api.StopResponse
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !result.Stopped {
		t.Error("stopped = false, want true")
	}
	if ts.requests[0].Method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", ts.requests[0].Method)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestAPIClient_NoTokenNoHeader(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /crawl": `{"state":"idle"}`})
	client := ts.client()
	client.token = ""

	resp, err := client.get(ctx, "/crawl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if ts.requests[0].Auth != "" {
		t.Errorf("auth = %q, want empty", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"message":"a crawl is already running","type":"already_running"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}

	resp, err := client.post(ctx, "/crawl", api.StartRequest{URL: "https://example.gov.br/"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	if !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "already_running") {
		t.Errorf("error = %q, want it to contain 409 and already_running", err.Error())
	}
}

func TestFetchReport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crawl/report" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>report</html>"))
	}))
	defer ts.Close()

	var buf bytes.Buffer
	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	if err := fetchReport(ctx, client, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "<html>report</html>" {
		t.Errorf("body = %q", buf.String())
	}

	client.baseURL = ts.URL + "/missing"
	if err := fetchReport(ctx, client, &buf); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Crawl.Scope = config.ScopeSite

	found := 0
	for _, k := range config.ShowAll(cfg) {
		if (k.Key == "server.port" && k.Value == "4000") || (k.Key == "crawl.scope" && k.Value == "site") {
			found++
		}
	}
	if found != 2 {
		t.Errorf("found %d expected keys in ShowAll output, want 2", found)
	}
}

func TestWriteScores(t *testing.T) {
	var buf bytes.Buffer
	err := writeScores(&buf, []compliance.CategoryScore{
		{Category: "Licitações", Found: 1, Total: 4, Score: 0.25},
		{Category: "Contratos", Found: 2, Total: 2, Score: 1},
	}, compliance.Summary{Found: 3, NotFound: 3, Total: 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Licitações", "25%", "100%", "Found 3 of 6 keyword(s); 3 not found."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteEvidence_OnlyFound(t *testing.T) {
	var buf bytes.Buffer
	writeEvidence(&buf, []compliance.Record{
		{Category: "Contratos", Keyword: "contrato", Status: compliance.StatusFound, EvidenceURL: "https://example.gov.br/c"},
		{Category: "Contratos", Keyword: "aditivo", Status: compliance.StatusPending},
	})
	if !strings.Contains(buf.String(), "https://example.gov.br/c") {
		t.Errorf("missing evidence URL:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "aditivo") {
		t.Errorf("pending record should not be listed:\n%s", buf.String())
	}
}

// newSite serves a seed page linking to two subpages. The seed response is
// delayed by seedDelay.
func newSite(t *testing.T, seedDelay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			time.Sleep(seedDelay)
			fmt.Fprint(w, `<html><body><a href="/contratos">Contratos</a> <a href="/obras">Obras</a></body></html>`)
		case "/contratos":
			fmt.Fprint(w, `<html><body>Relação de contratos vigentes</body></html>`)
		case "/obras":
			fmt.Fprint(w, `<html><body>Obras públicas em andamento</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testController(t *testing.T) *crawl.Controller {
	t.Helper()
	tax, err := taxonomy.New([]taxonomy.Entry{
		{Category: "Contratos", Keywords: []string{"contratos", "aditivos"}},
		{Category: "Obras", Keywords: []string{"obras"}},
	})
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	c := crawl.New(fetch.New(fetch.WithTimeout(5*time.Second)), crawl.StaticTaxonomy(tax), crawl.Options{})
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Close(closeCtx)
	})
	return c
}

func TestFollowCrawl_Completes(t *testing.T) {
	site := newSite(t, 0)
	c := testController(t)

	snap, err := followCrawl(ctx, c, site.URL+"/", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.State != crawl.StateCompleted {
		t.Fatalf("state = %s, want completed", snap.State)
	}
	if snap.Progress.ProcessedLinks != 3 || snap.Progress.TotalLinks != 3 {
		t.Errorf("progress = %+v, want 3/3", snap.Progress)
	}
	if snap.Summary.Found != 2 || snap.Summary.Total != 3 {
		t.Errorf("summary = %+v, want 2 of 3 found", snap.Summary)
	}
}

func TestFollowCrawl_CancelStopsRun(t *testing.T) {
	site := newSite(t, 200*time.Millisecond)
	c := testController(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := followCrawl(cancelled, c, site.URL+"/", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != crawl.StateCancelled {
		t.Fatalf("state = %s, want cancelled", snap.State)
	}
	if snap.Progress.ProcessedLinks > 1 || snap.Progress.TotalLinks != snap.Progress.ProcessedLinks {
		t.Errorf("progress = %+v, want at most the seed and no pending links", snap.Progress)
	}
}

func TestFollowCrawl_InvalidSeed(t *testing.T) {
	c := testController(t)
	if _, err := followCrawl(ctx, c, "not a url", time.Millisecond); err == nil {
		t.Fatal("expected error for invalid seed")
	}
}

func TestTaxonomySource_SeedsStore(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	src, err := taxonomySource(config.Config{}, store, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tax, err := src.Taxonomy()
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	if tax.KeywordCount() != taxonomy.Default().KeywordCount() {
		t.Errorf("keywords = %d, want built-in %d", tax.KeywordCount(), taxonomy.Default().KeywordCount())
	}
}

func TestTaxonomySource_PrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tax.yaml")
	if err := os.WriteFile(path, []byte("categories: [{name: A, keywords: [x]}]"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{}
	cfg.Taxonomy.File = path
	src, err := taxonomySource(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := src.(taxonomy.File); !ok {
		t.Errorf("source = %T, want taxonomy.File", src)
	}

	cfg.Taxonomy.File = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := taxonomySource(cfg, nil, zap.NewNop()); err == nil {
		t.Error("expected error for missing taxonomy file")
	}
}

func TestCurrentTaxonomy_BuiltInBeforeImport(t *testing.T) {
	cfg := config.Config{}
	cfg.Storage.DataDir = t.TempDir()

	tax, source, err := currentTaxonomy(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "built-in" {
		t.Errorf("source = %q, want built-in", source)
	}
	if len(tax) != len(taxonomy.Default()) {
		t.Errorf("categories = %d, want %d", len(tax), len(taxonomy.Default()))
	}
}

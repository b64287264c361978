package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/laiwatch/internal/compliance"
	"github.com/kalambet/laiwatch/internal/crawl"
)

const testToken = "test-token-12345"

type fakeCrawler struct {
	mu       sync.Mutex
	running  bool
	starts   []string
	startErr error
	snap     crawl.Snapshot
}

func (f *fakeCrawler) Start(seedURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	if f.running {
		return "", crawl.ErrAlreadyRunning
	}
	f.running = true
	f.starts = append(f.starts, seedURL)
	return "run-1", nil
}

func (f *fakeCrawler) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.running
	f.running = false
	return was
}

func (f *fakeCrawler) Snapshot() crawl.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func sampleSnapshot() crawl.Snapshot {
	records := []compliance.Record{
		{Category: "Contratos", Keyword: "contrato", Status: compliance.StatusFound, EvidenceURL: "https://example.gov.br/c"},
		{Category: "Contratos", Keyword: "aditivo", Status: compliance.StatusPending},
	}
	return crawl.Snapshot{
		RunID:    "run-1",
		Seed:     "https://example.gov.br/",
		State:    crawl.StateCompleted,
		Progress: crawl.Progress{TotalLinks: 1, ProcessedLinks: 1},
		Records:  records,
		Scores:   compliance.Scores(records),
		Summary:  compliance.Summarize(records),
		Log:      []string{"2026-01-02 10:00:00 Processing: https://example.gov.br/c"},
	}
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Type
}

func TestHealth(t *testing.T) {
	h := NewAppHandler(AppDeps{Crawler: &fakeCrawler{}, Token: testToken})

	w := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStartCrawl(t *testing.T) {
	fc := &fakeCrawler{}
	h := NewAppHandler(AppDeps{Crawler: fc})

	w := do(t, h, http.MethodPost, "/crawl", `{"url":"https://example.gov.br/"}`, "")
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "running", resp.State)
	assert.Equal(t, []string{"https://example.gov.br/"}, fc.starts)
}

func TestStartCrawl_AlreadyRunning(t *testing.T) {
	fc := &fakeCrawler{running: true}
	h := NewAppHandler(AppDeps{Crawler: fc})

	w := do(t, h, http.MethodPost, "/crawl", `{"url":"https://example.gov.br/"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_running", errorType(t, w))
	assert.Empty(t, fc.starts)
}

func TestStartCrawl_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"malformed body", `{"url":`, nil},
		{"missing url", `{}`, nil},
		{"invalid seed", `{"url":"ftp://example.gov.br"}`, crawl.ErrInvalidSeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAppHandler(AppDeps{Crawler: &fakeCrawler{startErr: tt.err}})
			w := do(t, h, http.MethodPost, "/crawl", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_request_error", errorType(t, w))
		})
	}
}

func TestStopCrawl(t *testing.T) {
	fc := &fakeCrawler{running: true}
	h := NewAppHandler(AppDeps{Crawler: fc})

	w := do(t, h, http.MethodDelete, "/crawl", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":true}`, w.Body.String())

	w = do(t, h, http.MethodDelete, "/crawl", "", "")
	assert.JSONEq(t, `{"stopped":false}`, w.Body.String())
}

func TestGetSnapshot(t *testing.T) {
	fc := &fakeCrawler{snap: sampleSnapshot()}
	h := NewAppHandler(AppDeps{Crawler: fc})

	w := do(t, h, http.MethodGet, "/crawl", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got crawl.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, crawl.StateCompleted, got.State)
	assert.Equal(t, 1, got.Progress.ProcessedLinks)
	require.Len(t, got.Records, 2)
	assert.Equal(t, "https://example.gov.br/c", got.Records[0].EvidenceURL)
}

func TestGetScores(t *testing.T) {
	fc := &fakeCrawler{snap: sampleSnapshot()}
	h := NewAppHandler(AppDeps{Crawler: fc})

	w := do(t, h, http.MethodGet, "/crawl/scores", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got ScoresResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Scores, 1)
	assert.Equal(t, 0.5, got.Scores[0].Score)
	assert.Equal(t, compliance.Summary{Found: 1, NotFound: 1, Total: 2}, got.Summary)
}

func TestGetReport(t *testing.T) {
	fc := &fakeCrawler{snap: sampleSnapshot()}
	h := NewAppHandler(AppDeps{Crawler: fc})

	w := do(t, h, http.MethodGet, "/crawl/report", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "https://example.gov.br/c")
}

func TestAuth(t *testing.T) {
	h := NewAppHandler(AppDeps{Crawler: &fakeCrawler{snap: sampleSnapshot()}, Token: testToken})

	w := do(t, h, http.MethodGet, "/crawl", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication_error", errorType(t, w))
	assert.Equal(t, `Bearer realm="laiwatch"`, w.Header().Get("WWW-Authenticate"))

	w = do(t, h, http.MethodGet, "/crawl", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodGet, "/crawl", "", testToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/crawl", nil)
	req.Header.Set("Authorization", "bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/crawl", nil)
	req.Header.Set("Authorization", "Basic "+testToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewAppHandler(AppDeps{Crawler: &fakeCrawler{}})

	do(t, h, http.MethodGet, "/health", "", "")
	w := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "laiwatch_http_requests_total")
}

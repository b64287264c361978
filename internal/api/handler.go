package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kalambet/laiwatch/internal/compliance"
	"github.com/kalambet/laiwatch/internal/crawl"
	"github.com/kalambet/laiwatch/internal/metrics"
	"github.com/kalambet/laiwatch/internal/report"
)

const maxStartBodySize = 64 << 10

// Crawler is the control surface of a crawl controller.
// *crawl.Controller satisfies it.
type Crawler interface {
	Start(seedURL string) (string, error)
	Stop() bool
	Snapshot() crawl.Snapshot
}

type AppDeps struct {
	Crawler Crawler
	Token   string // optional; when empty /crawl routes are open
	Logger  *zap.Logger
}

type StartRequest struct {
	URL string `json:"url"`
}

type StartResponse struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

type StopResponse struct {
	Stopped bool `json:"stopped"`
}

type ScoresResponse struct {
	State   crawl.State                `json:"state"`
	Scores  []compliance.CategoryScore `json:"scores"`
	Summary compliance.Summary         `json:"summary"`
}

func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(metrics.Middleware)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/crawl", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/", handleStart(deps))
		r.Delete("/", handleStop(deps))
		r.Get("/", handleSnapshot(deps))
		r.Get("/scores", handleScores(deps))
		r.Get("/report", handleReport(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStart(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxStartBodySize)
		defer r.Body.Close()

		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		runID, err := deps.Crawler.Start(req.URL)
		switch {
		case errors.Is(err, crawl.ErrAlreadyRunning):
			httpError(w, http.StatusConflict, "already_running", "a crawl is already running")
			return
		case errors.Is(err, crawl.ErrInvalidSeed):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case err != nil:
			deps.Logger.Error("start crawl failed", zap.String("url", req.URL), zap.Error(err))
			httpError(w, http.StatusInternalServerError, "server_error", "failed to start crawl: %v", err)
			return
		}

		deps.Logger.Info("crawl started", zap.String("run_id", runID), zap.String("url", req.URL))
		writeJSON(w, http.StatusAccepted, StartResponse{RunID: runID, State: string(crawl.StateRunning)})
	}
}

func handleStop(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stopped := deps.Crawler.Stop()
		if stopped {
			deps.Logger.Info("crawl stop requested")
		}
		writeJSON(w, http.StatusOK, StopResponse{Stopped: stopped})
	}
}

func handleSnapshot(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Crawler.Snapshot())
	}
}

func handleScores(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Crawler.Snapshot()
		writeJSON(w, http.StatusOK, ScoresResponse{State: s.State, Scores: s.Scores, Summary: s.Summary})
	}
}

func handleReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := report.Write(w, deps.Crawler.Snapshot()); err != nil {
			deps.Logger.Error("rendering report failed", zap.Error(err))
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

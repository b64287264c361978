package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/laiwatch/internal/api"
	"github.com/kalambet/laiwatch/internal/config"
	"github.com/kalambet/laiwatch/internal/crawl"
	"github.com/kalambet/laiwatch/internal/fetch"
	"github.com/kalambet/laiwatch/internal/links"
	"github.com/kalambet/laiwatch/internal/logging"
	"github.com/kalambet/laiwatch/internal/schedule"
	"github.com/kalambet/laiwatch/internal/storage"
	"github.com/kalambet/laiwatch/internal/taxonomy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the laiwatch server (foreground)",
	Long: `Run the crawl controller behind the HTTP API.

With --mcp the MCP tool server is also attached to stdin/stdout, so
laiwatch can be registered as an MCP server by a client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(cmd.Context(), withMCP)
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop the running laiwatch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and crawl status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "laiwatch.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// taxonomySource picks the configured taxonomy file, falling back to the
// store. The store is seeded with the built-in taxonomy on first use.
func taxonomySource(cfg config.Config, store *storage.Store, logger *zap.Logger) (crawl.TaxonomySource, error) {
	if cfg.Taxonomy.File != "" {
		if _, err := taxonomy.LoadFile(cfg.Taxonomy.File); err != nil {
			return nil, err
		}
		logger.Info("using taxonomy file", zap.String("path", cfg.Taxonomy.File))
		return taxonomy.File(cfg.Taxonomy.File), nil
	}

	seeded, err := store.SeedTaxonomy(taxonomy.Default())
	if err != nil {
		return nil, fmt.Errorf("seeding taxonomy: %w", err)
	}
	if seeded {
		logger.Info("seeded built-in taxonomy", zap.Int("keywords", taxonomy.Default().KeywordCount()))
	}
	return store, nil
}

func newController(cfg config.Config, src crawl.TaxonomySource, logger *zap.Logger) *crawl.Controller {
	fetcher := fetch.New(
		fetch.WithTimeout(cfg.Crawl.FetchTimeoutDuration()),
		fetch.WithMaxBytes(int64(cfg.Crawl.MaxBodyBytes)),
		fetch.WithUserAgent(cfg.Crawl.UserAgent),
	)
	return crawl.New(fetcher, src, crawl.Options{
		Scope:           links.ParseScope(cfg.Crawl.Scope),
		LinkDelay:       cfg.Crawl.LinkDelayDuration(),
		LogCapacity:     cfg.Crawl.LogCapacity,
		MaxDocuments:    cfg.Crawl.MaxDocuments,
		DocumentWorkers: cfg.Crawl.DocumentWorkers,
		Logger:          logger,
	})
}

func runServer(ctx context.Context, withMCP bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("laiwatch starting", zap.String("version", version))

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("laiwatch is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("laiwatch is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()

	src, err := taxonomySource(cfg, store, logger)
	if err != nil {
		return err
	}
	controller := newController(cfg, src, logger)

	if cfg.Server.APIToken == "" {
		logger.Warn("LAIWATCH_API_TOKEN is not set; /crawl routes are unauthenticated")
	}
	handler := api.NewAppHandler(api.AppDeps{
		Crawler: controller,
		Token:   cfg.Server.APIToken,
		Logger:  logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *schedule.Scheduler
	if cfg.Crawl.Schedule != "" {
		sched, err = schedule.New(controller, cfg.Crawl.Schedule, cfg.Crawl.ScheduleURL, logger)
		if err != nil {
			return err
		}
		sched.Start()
	}

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Crawler: controller, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", zap.Error(err))
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Warn("schedule did not stop before shutdown deadline", zap.Error(err))
		}
	}
	if err := controller.Close(shutdownCtx); err != nil {
		logger.Warn("crawl did not stop before shutdown deadline", zap.Error(err))
	}
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("laiwatch is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop laiwatch (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to laiwatch (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient.Timeout = 2 * time.Second

	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return nil
	}
	printStatus("Server", "running on port %d", cfg.Server.Port)

	snapResp, err := client.get(ctx, "/crawl")
	if err != nil {
		return err
	}
	var snap crawl.Snapshot
	if err := decodeJSON(snapResp, &snap); err != nil {
		return err
	}
	printSnapshotStatus(snap)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func printSnapshotStatus(s crawl.Snapshot) {
	printStatus("Crawl", "%s", s.State)
	if s.Seed == "" {
		return
	}
	printStatus("Seed", "%s", s.Seed)
	printStatus("Links", "%d of %d processed", s.Progress.ProcessedLinks, s.Progress.TotalLinks)
	printStatus("Keywords", "%d of %d found", s.Summary.Found, s.Summary.Total)
	if s.StartedAt != nil {
		printStatus("Started", "%s", s.StartedAt.Format(time.RFC3339))
	}
	if s.FinishedAt != nil {
		printStatus("Finished", "%s", s.FinishedAt.Format(time.RFC3339))
	}
}

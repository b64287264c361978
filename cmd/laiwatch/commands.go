package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/laiwatch/internal/api"
	"github.com/kalambet/laiwatch/internal/config"
	"github.com/kalambet/laiwatch/internal/crawl"
	"github.com/kalambet/laiwatch/internal/logging"
	"github.com/kalambet/laiwatch/internal/report"
	"github.com/kalambet/laiwatch/internal/storage"
	"github.com/kalambet/laiwatch/internal/taxonomy"
)

// --- crawl ---

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a portal in the foreground and print its scores",
	Long: `Crawl a portal without a running server. Progress is printed while
the crawl runs; Ctrl-C stops it and keeps the results found so far.

Examples:
  laiwatch crawl https://transparencia.example.gov.br/
  laiwatch crawl https://example.gov.br/ --report report.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		reportPath, _ := cmd.Flags().GetString("report")
		return runCrawl(cmd.Context(), args[0], interval, reportPath, os.Stdout)
	},
}

func init() {
	crawlCmd.Flags().Duration("interval", 500*time.Millisecond, "progress polling interval")
	crawlCmd.Flags().String("report", "", "write an HTML report to this path")
}

func runCrawl(ctx context.Context, seed string, interval time.Duration, reportPath string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

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

	snap, err := followCrawl(ctx, controller, seed, interval)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	if err := writeScores(out, snap.Scores, snap.Summary); err != nil {
		return err
	}
	if snap.Summary.Found > 0 {
		fmt.Fprintln(out)
		writeEvidence(out, snap.Records)
	}

	if reportPath != "" {
		if err := writeReportFile(reportPath, snap); err != nil {
			return err
		}
		printSuccess("Report written to %s", reportPath)
	}
	return nil
}

// followCrawl starts a run and polls it until it is terminal, printing a
// progress line whenever it changes. Cancelling ctx stops the run; the
// partial results are still returned.
func followCrawl(ctx context.Context, c api.Crawler, seed string, interval time.Duration) (crawl.Snapshot, error) {
	runID, err := c.Start(seed)
	if err != nil {
		return crawl.Snapshot{}, err
	}
	printStep("Crawl %s started", runID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := ctx.Done()
	var last string
	for {
		snap := c.Snapshot()
		if line := progressLine(snap); line != last {
			printStep("%s", line)
			last = line
		}
		if snap.Terminal() {
			if snap.State == crawl.StateCancelled {
				printWarning("Crawl cancelled; results are partial")
			} else {
				printSuccess("Crawl completed")
			}
			return snap, nil
		}

		select {
		case <-done:
			printWarning("Stopping crawl...")
			c.Stop()
			done = nil
		case <-ticker.C:
		}
	}
}

func writeReportFile(path string, snap crawl.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.Write(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// --- start / stop ---

var startCmd = &cobra.Command{
	Use:   "start <url>",
	Short: "Start a crawl on the running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/crawl", api.StartRequest{URL: args[0]})
		if err != nil {
			return err
		}

		var result api.StartResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Started crawl %s of %s", result.RunID, args[0])
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the crawl running on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/crawl")
		if err != nil {
			return err
		}

		var result api.StopResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if !result.Stopped {
			printWarning("No crawl is running")
			return nil
		}
		printSuccess("Stop requested")
		return nil
	},
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch the HTML report of the server's latest crawl",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := fetchReport(cmd.Context(), client, w); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Report written to %s", output)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().String("output", "", "output file path (default: stdout)")
}

func fetchReport(ctx context.Context, client *apiClient, w io.Writer) error {
	resp, err := client.get(ctx, "/crawl/report")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// --- taxonomy ---

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Show or import the keyword taxonomy",
}

var taxonomyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the taxonomy used for the next crawl as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		tax, source, err := currentTaxonomy(cfg)
		if err != nil {
			return err
		}

		data, err := taxonomy.Marshal(tax)
		if err != nil {
			return err
		}
		printStatus("Source", "%s", source)
		printStatus("Keywords", "%d in %d categories", tax.KeywordCount(), len(tax))
		_, err = os.Stdout.Write(data)
		return err
	},
}

var taxonomyImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored taxonomy with a YAML or JSON file",
	Long: `Replace the stored taxonomy. The file lists categories and keywords:

  categories:
    - name: Licitações
      keywords: [licitação, pregão, edital]

The stored taxonomy is used when taxonomy.file is not set. The running
server picks it up at the next crawl.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		tax, err := taxonomy.LoadFile(args[0])
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		if err := store.SaveTaxonomy(tax, args[0]); err != nil {
			return err
		}

		printSuccess("Imported %d keyword(s) in %d categories from %s", tax.KeywordCount(), len(tax), args[0])
		if cfg.Taxonomy.File != "" {
			printWarning("taxonomy.file is set to %s and takes precedence over the stored taxonomy", cfg.Taxonomy.File)
		}
		return nil
	},
}

func init() {
	taxonomyCmd.AddCommand(taxonomyShowCmd)
	taxonomyCmd.AddCommand(taxonomyImportCmd)
}

// currentTaxonomy resolves the taxonomy the next crawl would use and
// describes where it comes from.
func currentTaxonomy(cfg config.Config) (taxonomy.Taxonomy, string, error) {
	if cfg.Taxonomy.File != "" {
		tax, err := taxonomy.LoadFile(cfg.Taxonomy.File)
		return tax, cfg.Taxonomy.File, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, "", fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	tax, err := store.LoadTaxonomy()
	if errors.Is(err, storage.ErrNotFound) {
		return taxonomy.Default(), "built-in", nil
	}
	if err != nil {
		return nil, "", err
	}

	source := "store"
	if imp, err := store.LastImport(); err == nil {
		source = fmt.Sprintf("store (imported from %s at %s)", imp.Source, imp.ImportedAt.Format(time.RFC3339))
	}
	return tax, source, nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

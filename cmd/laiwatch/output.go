package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kalambet/laiwatch/internal/compliance"
	"github.com/kalambet/laiwatch/internal/crawl"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func progressLine(s crawl.Snapshot) string {
	return fmt.Sprintf("%s  %d/%d links  %d/%d keywords",
		s.State, s.Progress.ProcessedLinks, s.Progress.TotalLinks, s.Summary.Found, s.Summary.Total)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// writeScores prints the per-category table followed by the summary line.
func writeScores(w io.Writer, scores []compliance.CategoryScore, sum compliance.Summary) error {
	t := newTable(w)
	t.AppendHeader(table.Row{"Category", "Found", "Total", "Score"})
	for _, s := range scores {
		t.AppendRow(table.Row{s.Category, s.Found, s.Total, fmt.Sprintf("%.0f%%", s.Score*100)})
	}
	t.Render()

	_, err := fmt.Fprintf(w, "\nFound %d of %d keyword(s); %d not found.\n", sum.Found, sum.Total, sum.NotFound)
	return err
}

// writeEvidence lists the found records and where each was found.
func writeEvidence(w io.Writer, records []compliance.Record) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Category", "Keyword", "Evidence"})
	for _, r := range records {
		if r.Status != compliance.StatusFound {
			continue
		}
		t.AppendRow(table.Row{r.Category, r.Keyword, r.EvidenceURL})
	}
	t.Render()
}

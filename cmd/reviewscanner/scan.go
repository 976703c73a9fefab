package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/report"
	"ReviewScanner/internal/usecase"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url-or-file>",
		Short: "Classify every review on one page",
		Long: `Scan loads a review page, classifies each review with the prediction
backend and prints the verdicts.

Examples:
  # Scan a live Yelp page
  reviewscanner scan --site yelp https://www.yelp.com/biz/some-place

  # Scan a saved page and keep the annotated copy
  reviewscanner scan --site amazon --page-out marked.html saved.html

  # Write a Markdown report with charts
  reviewscanner scan --site trustpilot --report md -o report.md https://...`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("site", "s", "", "Site id (google, yelp, amazon, tripadvisor, trustpilot)")
	cmd.Flags().String("page-out", "", "Write the annotated page to this file")
	cmd.Flags().StringP("report", "r", "", "Report format: md or csv")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().Duration("timeout", 2*time.Minute, "Give up waiting for verdicts after this long")
	_ = cmd.MarkFlagRequired("site")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	site, _ := cmd.Flags().GetString("site")
	pageOut, _ := cmd.Flags().GetString("page-out")
	format, _ := cmd.Flags().GetString("report")
	output, _ := cmd.Flags().GetString("output")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if format != "" && format != "md" && format != "csv" {
		return fmt.Errorf("unknown report format %q", format)
	}

	application, _, logger, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(context.Background()); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := application.Orchestrator().Scan(ctx, usecase.ScanCommand{Site: site, Location: args[0]})
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := run.Wait(waitCtx); err != nil {
		return fmt.Errorf("waiting for scan %s: %w", run.ID(), err)
	}

	printRun(cmd.OutOrStdout(), run)

	if pageOut != "" {
		page, err := run.HTML()
		if err != nil {
			return fmt.Errorf("serialise page: %w", err)
		}
		if err := writeFile(pageOut, []byte(page)); err != nil {
			return err
		}
	}

	if format == "" {
		return nil
	}
	state := run.State()
	meta := report.Meta{ScanID: state.ScanID, Site: state.Site, Page: run.Location(), GeneratedAt: time.Now()}
	return writeReport(cmd.OutOrStdout(), output, format, meta, report.FromRun(run))
}

func printRun(w io.Writer, run *usecase.Run) {
	state := run.State()
	fmt.Fprintf(w, "scan %s: %s, %d reviews (%d new)\n", state.ScanID, state.Phase, state.MatchedCount, state.NewCount)
	for _, n := range run.Notices() {
		fmt.Fprintf(w, "! %s\n", n.Message)
	}

	results := run.Results()
	if len(results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERDICT\tSENTIMENT\tREVIEW")
	for _, r := range results {
		verdict, sentiment := "error", "-"
		if r.Verdict != nil {
			verdict = r.Verdict.Label.Title()
			if r.Verdict.SentimentScore != nil {
				sentiment = fmt.Sprintf("%.2f", *r.Verdict.SentimentScore)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", verdict, sentiment, shorten(r.Text, 60))
	}
	_ = tw.Flush()

	summary := report.Summarize(report.FromRun(run))
	fmt.Fprintf(w, "%d fake, %d suspicious, %d genuine, %d failed\n", summary.Fake, summary.Suspicious, summary.Genuine, summary.Failed)
}

// writeReport renders rows as md or csv to path, or to stdout when path
// is empty.
func writeReport(stdout io.Writer, path, format string, meta report.Meta, rows []report.Row) error {
	w := stdout
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "csv":
		return report.WriteCSV(w, rows)
	default:
		return report.WriteMarkdown(w, meta, rows)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func labelOrDash(l domain.Label) string {
	if l == "" {
		return "-"
	}
	return l.Title()
}

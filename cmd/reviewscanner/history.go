package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ReviewScanner/internal/api"
	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/report"
)

func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("site", "", "Only this site")
	cmd.Flags().String("label", "", "Only this verdict (fake, suspicious, genuine)")
	cmd.Flags().StringP("query", "q", "", "Keyword contained in the review text")
	cmd.Flags().String("since", "", "RFC 3339 time or a duration such as 168h")
	cmd.Flags().String("sort", "newest", "newest or oldest")
	cmd.Flags().IntP("limit", "n", 0, "Maximum number of entries (0 means all)")
}

func historyQuery(cmd *cobra.Command) (domain.HistoryQuery, error) {
	site, _ := cmd.Flags().GetString("site")
	label, _ := cmd.Flags().GetString("label")
	keyword, _ := cmd.Flags().GetString("query")
	since, _ := cmd.Flags().GetString("since")
	sort, _ := cmd.Flags().GetString("sort")
	limit, _ := cmd.Flags().GetInt("limit")
	return api.ParseHistoryQuery(site, label, keyword, since, sort, fmt.Sprint(limit))
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past verdicts",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	addHistoryFlags(cmd)
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	q, err := historyQuery(cmd)
	if err != nil {
		return err
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

	entries, err := application.Store().ListHistory(cmd.Context(), q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSITE\tVERDICT\tREVIEW")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Site, labelOrDash(e.Verdict.Label), shorten(e.Text, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := report.Summarize(report.FromHistory(entries))
	fmt.Fprintf(cmd.OutOrStdout(), "%d entries: %d fake, %d suspicious, %d genuine\n", s.Total, s.Fake, s.Suspicious, s.Genuine)
	return nil
}

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export past verdicts as Markdown or CSV",
		Long: `Export writes the review history as a CSV file or a Markdown report with
verdict and sentiment pie charts.

Examples:
  reviewscanner export --format csv -o reviews.csv
  reviewscanner export --site yelp --since 720h -o yelp.md`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}
	addHistoryFlags(cmd)
	cmd.Flags().StringP("format", "f", "md", "md or csv")
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	if format != "md" && format != "csv" {
		return fmt.Errorf("unknown export format %q", format)
	}

	q, err := historyQuery(cmd)
	if err != nil {
		return err
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

	entries, err := application.Store().ListHistory(cmd.Context(), q)
	if err != nil {
		return err
	}

	meta := report.Meta{Title: "Review History", Site: q.Site, GeneratedAt: time.Now()}
	return writeReport(cmd.OutOrStdout(), output, format, meta, report.FromHistory(entries))
}

package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

const maxExcerpt = 80

// WriteMarkdown writes a human-readable report with verdict and sentiment charts.
func WriteMarkdown(w io.Writer, meta Meta, rows []Row) error {
	md := markdown.NewMarkdown(w)
	summary := Summarize(rows)

	writeHeader(md, meta)
	writeSummary(md, summary)
	writeRows(md, rows)

	return md.Build()
}

func writeHeader(md *markdown.Markdown, meta Meta) {
	title := meta.Title
	if title == "" {
		title = "Review Scan Report"
	}
	md.H1(title)
	md.PlainText("")

	props := [][]string{}
	if meta.ScanID != "" {
		props = append(props, []string{"Scan", "`" + meta.ScanID + "`"})
	}
	if meta.Site != "" {
		props = append(props, []string{"Site", string(meta.Site)})
	}
	if meta.Page != "" {
		props = append(props, []string{"Page", meta.Page})
	}
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	props = append(props, []string{"Generated", generated.Format("2006-01-02 15:04:05 MST")})

	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: props})
	md.PlainText("")
}

func writeSummary(md *markdown.Markdown, s Summary) {
	md.H2("Verdicts")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Verdict", "Count"},
		Rows: [][]string{
			{"🔴 Fake", strconv.Itoa(s.Fake)},
			{"🟡 Suspicious", strconv.Itoa(s.Suspicious)},
			{"🟢 Genuine", strconv.Itoa(s.Genuine)},
			{"⚪ Unavailable", strconv.Itoa(s.Failed)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Fake+s.Suspicious+s.Genuine > 0 {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, pieChart("Review Verdicts", []slice{
			{"Fake", s.Fake}, {"Suspicious", s.Suspicious}, {"Genuine", s.Genuine},
		}))
		md.PlainText("")
	}

	if s.Positive+s.Negative+s.Neutral > 0 {
		md.H2("Sentiment")
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, pieChart("Sentiment Analysis", []slice{
			{"Positive", s.Positive}, {"Negative", s.Negative}, {"Neutral", s.Neutral},
		}))
		md.PlainText("")
	}

	switch {
	case s.Fake > 0:
		md.Cautionf("%d of %d reviews look fake.", s.Fake, s.Total)
	case s.Suspicious > 0:
		md.Warningf("%d of %d reviews look suspicious.", s.Suspicious, s.Total)
	case s.Failed > 0 && s.Failed == s.Total:
		md.Note("No predictions were available.")
	default:
		md.Tip("No fake reviews detected.")
	}
	md.PlainText("")
}

func writeRows(md *markdown.Markdown, rows []Row) {
	md.H2("Reviews")
	md.PlainText("")
	if len(rows) == 0 {
		md.PlainText("No reviews.")
		md.PlainText("")
		return
	}

	table := make([][]string, 0, len(rows))
	for i, r := range rows {
		label := r.Label.Title()
		if r.Label == "" {
			label = "Unavailable"
		}
		sentiment := "-"
		if r.SentimentScore != nil {
			sentiment = strconv.FormatFloat(*r.SentimentScore, 'f', 2, 64)
		}
		table = append(table, []string{strconv.Itoa(i + 1), label, sentiment, excerpt(r.Text)})
	}
	md.Table(markdown.TableSet{Header: []string{"#", "Verdict", "Sentiment", "Review"}, Rows: table})
	md.PlainText("")
}

type slice struct {
	label string
	n     int
}

// pieChart renders a Mermaid pie chart, skipping empty slices.
func pieChart(title string, slices []slice) string {
	chart := piechart.NewPieChart(io.Discard, piechart.WithTitle(title), piechart.WithShowData(true))
	for _, sl := range slices {
		if sl.n > 0 {
			chart.LabelAndIntValue(sl.label, uint64(sl.n))
		}
	}
	return chart.String()
}

// excerpt shortens text for a table cell and keeps the table intact.
func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = strings.ReplaceAll(text, "|", "/")
	if runes := []rune(text); len(runes) > maxExcerpt {
		text = string(runes[:maxExcerpt-1]) + "…"
	}
	return text
}

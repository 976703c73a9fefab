// Package report turns scan results and review history into exports:
// CSV rows and a Markdown summary with Mermaid pie charts.
package report

import (
	"time"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/usecase"
)

// Sentiment scores within ±neutralBand count as neutral.
const neutralBand = 0.05

// Row is one review in an export.
type Row struct {
	ReviewID       string
	Site           domain.SiteID
	Text           string
	Label          domain.Label
	Message        string
	SentimentScore *float64
	Error          string
	At             time.Time
}

// Summary holds the verdict and sentiment totals used by charts and analytics.
type Summary struct {
	Total      int `json:"total"`
	Fake       int `json:"fake"`
	Suspicious int `json:"suspicious"`
	Genuine    int `json:"genuine"`
	Failed     int `json:"failed"`
	Positive   int `json:"positive"`
	Negative   int `json:"negative"`
	Neutral    int `json:"neutral"`
}

// Meta describes what the export covers.
type Meta struct {
	Title       string
	ScanID      string
	Site        domain.SiteID
	Page        string
	GeneratedAt time.Time
}

// FromRun builds rows from a run's delivered results.
func FromRun(run *usecase.Run) []Row {
	state := run.State()
	results := run.Results()
	rows := make([]Row, 0, len(results))
	for _, res := range results {
		row := Row{ReviewID: res.ReviewID, Site: state.Site, Text: res.Text, Error: res.Error, At: state.StartedAt}
		if res.Verdict != nil {
			row.Label = res.Verdict.Label
			row.Message = res.Verdict.Message
			row.SentimentScore = res.Verdict.SentimentScore
		}
		rows = append(rows, row)
	}
	return rows
}

// FromHistory builds rows from persisted verdicts.
func FromHistory(entries []domain.HistoryEntry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Row{
			ReviewID:       e.ReviewID,
			Site:           e.Site,
			Text:           e.Text,
			Label:          e.Verdict.Label,
			Message:        e.Verdict.Message,
			SentimentScore: e.Verdict.SentimentScore,
			At:             e.CreatedAt,
		})
	}
	return rows
}

// Summarize counts verdicts and sentiment buckets.
func Summarize(rows []Row) Summary {
	var s Summary
	for _, r := range rows {
		s.Total++
		switch r.Label {
		case domain.LabelFake:
			s.Fake++
		case domain.LabelSuspicious:
			s.Suspicious++
		case domain.LabelGenuine:
			s.Genuine++
		default:
			s.Failed++
		}
		if r.SentimentScore == nil {
			continue
		}
		switch score := *r.SentimentScore; {
		case score > neutralBand:
			s.Positive++
		case score < -neutralBand:
			s.Negative++
		default:
			s.Neutral++
		}
	}
	return s
}

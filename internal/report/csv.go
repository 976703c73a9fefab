package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"ReviewScanner/internal/domain"
)

var csvHeader = []string{"id", "site", "label", "is_fake", "sentimentScore", "text", "error", "at"}

// WriteCSV writes one line per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range rows {
		sentiment := ""
		if r.SentimentScore != nil {
			sentiment = strconv.FormatFloat(*r.SentimentScore, 'f', -1, 64)
		}
		at := ""
		if !r.At.IsZero() {
			at = r.At.UTC().Format(time.RFC3339)
		}
		record := []string{
			r.ReviewID,
			string(r.Site),
			string(r.Label),
			strconv.FormatBool(r.Label == domain.LabelFake),
			sentiment,
			r.Text,
			r.Error,
			at,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ReviewID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// SiteID identifies a supported review-hosting website.
type SiteID string

const (
	SiteGoogle      SiteID = "google"
	SiteYelp        SiteID = "yelp"
	SiteAmazon      SiteID = "amazon"
	SiteTripadvisor SiteID = "tripadvisor"
	SiteTrustpilot  SiteID = "trustpilot"
)

// ParseSiteID normalises user input into a SiteID. It does not check
// registration; the scanner registry decides whether a site is supported.
func ParseSiteID(raw string) SiteID {
	return SiteID(strings.ToLower(strings.TrimSpace(raw)))
}

// ExtractionRule is a site's DOM query used to locate review elements.
type ExtractionRule struct {
	Site     SiteID
	Selector string
}

// RawReview is one matched review element of the current page.
type RawReview struct {
	ID    string
	Site  SiteID
	Index int
	Text  string
	// Node is the source element; only valid while the page document lives.
	Node *goquery.Selection
}

// Label is the classification returned by the prediction service.
type Label string

const (
	LabelFake       Label = "fake"
	LabelSuspicious Label = "suspicious"
	LabelGenuine    Label = "genuine"
)

// Title returns the capitalised label used in rendered markers.
func (l Label) Title() string {
	switch l {
	case LabelFake:
		return "Fake"
	case LabelSuspicious:
		return "Suspicious"
	case LabelGenuine:
		return "Genuine"
	default:
		return string(l)
	}
}

// ParseLabel maps the textual labels a backend may return onto Label.
func ParseLabel(raw string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fake", "true", "spam", "fraudulent":
		return LabelFake, nil
	case "suspicious", "maybe", "uncertain":
		return LabelSuspicious, nil
	case "genuine", "real", "legit", "false", "authentic":
		return LabelGenuine, nil
	default:
		return "", fmt.Errorf("unknown label %q", raw)
	}
}

// Verdict is the prediction result for one review's text.
type Verdict struct {
	Label          Label    `json:"label"`
	Message        string   `json:"message,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
}

// Phase enumerates scan orchestrator states.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseLoading         Phase = "loading"
	PhaseEmpty           Phase = "empty"
	PhasePredicting      Phase = "predicting"
	PhaseDone            Phase = "done"
	PhaseUnsupportedSite Phase = "unsupported_site"
	PhaseFailed          Phase = "failed"
)

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseEmpty, PhaseDone, PhaseUnsupportedSite, PhaseFailed:
		return true
	default:
		return false
	}
}

// ScanState is the transient state of one scan.
type ScanState struct {
	ScanID       string    `json:"scan_id"`
	Site         SiteID    `json:"site"`
	PageKey      string    `json:"page"`
	Phase        Phase     `json:"phase"`
	InProgress   bool      `json:"in_progress"`
	MatchedCount int       `json:"matched_count"`
	NewCount     int       `json:"new_count"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}

// HistoryEntry is a persisted past verdict.
type HistoryEntry struct {
	ReviewID  string    `json:"review_id"`
	Site      SiteID    `json:"site"`
	PageURL   string    `json:"page_url"`
	Text      string    `json:"text"`
	Verdict   Verdict   `json:"verdict"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryQuery narrows ListHistory results.
type HistoryQuery struct {
	Site    SiteID
	Label   Label
	Keyword string
	Since   time.Time
	Oldest  bool
	Limit   int
}

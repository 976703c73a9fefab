package ports

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/session"
)

// PageLoader turns a page location into a parsed document.
type PageLoader interface {
	Load(ctx context.Context, location string) (*goquery.Document, error)
}

// ReviewExtractor applies a site's rule to a document.
type ReviewExtractor interface {
	Extract(doc *goquery.Document, site domain.SiteID) ([]domain.RawReview, error)
}

// Predictor sends one review's text to the remote prediction service.
type Predictor interface {
	Predict(ctx context.Context, sess *session.Session, text string) (domain.Verdict, error)
}

// SentimentAnalyzer scores the sentiment of a review's text.
type SentimentAnalyzer interface {
	Sentiment(ctx context.Context, text string) (float64, error)
}

// Presenter renders scan progress and verdicts onto a document.
// Implementations are not safe for concurrent use on the same document.
type Presenter interface {
	Reset(doc *goquery.Document)
	ApplySettings(doc *goquery.Document, settings domain.Settings)
	ShowLoading(doc *goquery.Document)
	HideLoading(doc *goquery.Document)
	Render(raw domain.RawReview, verdict domain.Verdict)
}

// Alerter surfaces user-facing notices.
type Alerter interface {
	Alert(ctx context.Context, notice domain.Notice)
}

// HistoryRepository persists verdicts for deduplication and the review history.
type HistoryRepository interface {
	AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error)
	SaveEntry(ctx context.Context, entry domain.HistoryEntry) error
	ListHistory(ctx context.Context, q domain.HistoryQuery) ([]domain.HistoryEntry, error)
}

// SettingsStore persists userSettings and userProfile.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error
	LoadProfile(ctx context.Context) (domain.Profile, error)
	SaveProfile(ctx context.Context, profile domain.Profile) error
}

// SessionStore keeps the access token across process restarts.
type SessionStore interface {
	LoadSessionToken(ctx context.Context) (string, error)
	SaveSessionToken(ctx context.Context, token string) error
	ClearSessionToken(ctx context.Context) error
}

// Feedback is the operator's judgment on one rendered verdict.
type Feedback struct {
	ReviewID   string `json:"review_id"`
	IsPositive bool   `json:"is_positive"`
}

// TextFeedback is the free-text feedback flow.
type TextFeedback struct {
	ReviewText string `json:"review_text"`
	Prediction string `json:"prediction"`
	Feedback   string `json:"feedback"`
}

// Credentials carries either a Google id token or a username/password pair.
type Credentials struct {
	IDToken  string `json:"id_token,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Ack is the acknowledgement returned by submission endpoints.
type Ack struct {
	Message string `json:"message"`
}

// ReviewAPI groups the remote calls behind the interactive affordances.
type ReviewAPI interface {
	SubmitFeedback(ctx context.Context, sess *session.Session, fb Feedback) (Ack, error)
	SubmitTextFeedback(ctx context.Context, sess *session.Session, fb TextFeedback) (Ack, error)
	Report(ctx context.Context, sess *session.Session, reviewText string) (Ack, error)
	Rate(ctx context.Context, sess *session.Session, reviewID string, rating int) (Ack, error)
	Login(ctx context.Context, creds Credentials) (*session.Session, error)
}

// Notifier streams short messages to Telegram or other channels.
type Notifier interface {
	Publish(ctx context.Context, text string) error
}

// Explainer produces a human-readable explanation of a verdict.
type Explainer interface {
	Explain(ctx context.Context, reviewText string, verdict domain.Verdict) (string, error)
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

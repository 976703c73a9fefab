package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ReviewScanner/internal/config"
	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/ports"
	"ReviewScanner/internal/session"
)

// Client talks to the remote review backend: predictions, feedback,
// reports, ratings and login.
type Client struct {
	cfg  config.APIConfig
	http *http.Client
	now  func() time.Time
}

var _ ports.Predictor = (*Client)(nil)
var _ ports.SentimentAnalyzer = (*Client)(nil)
var _ ports.ReviewAPI = (*Client)(nil)

// NewClient creates a reusable HTTP client. A nil httpClient gets cfg.Timeout.
func NewClient(cfg config.APIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

type predictResponse struct {
	Prediction     json.RawMessage `json:"prediction"`
	Message        string          `json:"message"`
	Reasons        []string        `json:"reasons"`
	SentimentScore *float64        `json:"sentimentScore"`
}

// Predict sends one review's text for classification. Each call is
// independent: no retry, batching or caching.
func (c *Client) Predict(ctx context.Context, sess *session.Session, text string) (domain.Verdict, error) {
	var resp predictResponse
	if err := c.post(ctx, c.cfg.PredictPath, sess, map[string]any{"review_text": text}, &resp); err != nil {
		return domain.Verdict{}, domain.NewError(domain.KindPredictionUnavailable, "predict", err)
	}

	label, err := c.decodeLabel(resp.Prediction)
	if err != nil {
		return domain.Verdict{}, domain.NewError(domain.KindPredictionUnavailable, "decode prediction", err)
	}

	return domain.Verdict{
		Label:          label,
		Message:        resp.Message,
		Reasons:        resp.Reasons,
		SentimentScore: resp.SentimentScore,
	}, nil
}

// decodeLabel accepts a label string, a boolean "is fake", or a fake
// probability (possibly nested in arrays, as model.predict returns it).
func (c *Client) decodeLabel(raw json.RawMessage) (domain.Label, error) {
	if len(raw) == 0 {
		return "", errors.New("response has no prediction")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return c.labelOf(v)
}

func (c *Client) labelOf(v any) (domain.Label, error) {
	switch t := v.(type) {
	case string:
		return domain.ParseLabel(t)
	case bool:
		if t {
			return domain.LabelFake, nil
		}
		return domain.LabelGenuine, nil
	case float64:
		switch {
		case t >= c.cfg.FakeThreshold:
			return domain.LabelFake, nil
		case t >= c.cfg.SuspiciousThreshold:
			return domain.LabelSuspicious, nil
		default:
			return domain.LabelGenuine, nil
		}
	case []any:
		if len(t) == 0 {
			return "", errors.New("empty prediction array")
		}
		return c.labelOf(t[0])
	default:
		return "", fmt.Errorf("unsupported prediction %v", v)
	}
}

// Sentiment scores a review through the optional sentiment service.
func (c *Client) Sentiment(ctx context.Context, text string) (float64, error) {
	if c.cfg.SentimentURL == "" {
		return 0, errors.New("sentiment service is not configured")
	}
	var resp struct {
		SentimentScore *float64 `json:"sentimentScore"`
	}
	if err := c.postURL(ctx, c.cfg.SentimentURL, nil, map[string]any{"text": text}, &resp); err != nil {
		return 0, fmt.Errorf("sentiment: %w", err)
	}
	if resp.SentimentScore == nil {
		return 0, errors.New("sentiment: response has no sentimentScore")
	}
	return *resp.SentimentScore, nil
}

// SubmitFeedback sends a thumbs up/down for a rendered verdict.
func (c *Client) SubmitFeedback(ctx context.Context, sess *session.Session, fb ports.Feedback) (ports.Ack, error) {
	return c.submit(ctx, c.cfg.FeedbackPath, sess, fb, false)
}

// SubmitTextFeedback sends free-text feedback about a prediction.
func (c *Client) SubmitTextFeedback(ctx context.Context, sess *session.Session, fb ports.TextFeedback) (ports.Ack, error) {
	return c.submit(ctx, c.cfg.FeedbackPath, sess, fb, false)
}

// Report flags a review for moderation; it needs a session.
func (c *Client) Report(ctx context.Context, sess *session.Session, reviewText string) (ports.Ack, error) {
	return c.submit(ctx, c.cfg.ReportPath, sess, map[string]any{"review_text": reviewText}, true)
}

// Rate submits a 1–5 star rating for a review.
func (c *Client) Rate(ctx context.Context, sess *session.Session, reviewID string, rating int) (ports.Ack, error) {
	if rating < 1 || rating > 5 {
		return ports.Ack{}, domain.NewError(domain.KindSubmissionFailed, fmt.Sprintf("rating %d out of range 1-5", rating), nil)
	}
	return c.submit(ctx, c.cfg.RatePath, sess, map[string]any{"review_id": reviewID, "rating": rating}, false)
}

// Login exchanges a Google id token or username/password for a session.
func (c *Client) Login(ctx context.Context, creds ports.Credentials) (*session.Session, error) {
	if creds.IDToken == "" && (creds.Username == "" || creds.Password == "") {
		return nil, domain.NewError(domain.KindSubmissionFailed, "login needs an id token or username and password", nil)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.post(ctx, c.cfg.LoginPath, nil, creds, &resp); err != nil {
		return nil, domain.NewError(domain.KindSubmissionFailed, "login failed", err)
	}
	if resp.AccessToken == "" {
		return nil, domain.NewError(domain.KindSubmissionFailed, "login response has no access_token", nil)
	}
	return session.New(resp.AccessToken, c.now()), nil
}

func (c *Client) submit(ctx context.Context, path string, sess *session.Session, payload any, requireSession bool) (ports.Ack, error) {
	if requireSession && !sess.Valid(c.now()) {
		return ports.Ack{}, domain.NewError(domain.KindAuthRequired, "log in to submit", nil)
	}
	var ack ports.Ack
	if err := c.post(ctx, path, sess, payload, &ack); err != nil {
		return ports.Ack{}, domain.NewError(domain.KindSubmissionFailed, strings.TrimPrefix(path, "/"), err)
	}
	return ack, nil
}

func (c *Client) post(ctx context.Context, path string, sess *session.Session, payload any, v any) error {
	return c.postURL(ctx, strings.TrimSuffix(c.cfg.BaseURL, "/")+path, sess, payload, v)
}

func (c *Client) postURL(ctx context.Context, endpoint string, sess *session.Session, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth := sess.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	} else if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s: %s", resp.Status, errorMessage(resp.Body))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the backend's "error" or "message" field, falling
// back to the raw body.
func errorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 1024))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

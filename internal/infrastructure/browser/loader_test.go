package browser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"ReviewScanner/internal/domain"

	"ReviewScanner/internal/config"
)

type stubLoader struct {
	calls []string
}

func (s *stubLoader) Load(_ context.Context, location string) (*goquery.Document, error) {
	s.calls = append(s.calls, location)
	return goquery.NewDocumentFromReader(strings.NewReader(`<div class="review">ok</div>`))
}

func TestLocalPagesSkipChrome(t *testing.T) {
	t.Parallel()

	fallback := &stubLoader{}
	loader := NewLoader(config.PageConfig{}, fallback, nil)

	doc, err := loader.Load(context.Background(), "testdata/page.html")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if doc.Find(".review").Length() != 1 {
		t.Fatalf("expected fallback document")
	}
	if len(fallback.calls) != 1 || fallback.calls[0] != "testdata/page.html" {
		t.Fatalf("unexpected fallback calls: %v", fallback.calls)
	}
	if err := loader.Close(); err != nil {
		t.Fatalf("Close on idle loader: %v", err)
	}
}

func TestFailedConnectKillsLaunchedChrome(t *testing.T) {
	t.Parallel()

	killed := 0
	loader := NewLoader(config.PageConfig{}, &stubLoader{}, nil)
	loader.launch = func() (string, func(), error) {
		return "ws://127.0.0.1:1/devtools", func() { killed++ }, nil
	}
	loader.dial = func(string) (*rod.Browser, error) {
		return nil, errors.New("connection refused")
	}

	_, err := loader.Load(context.Background(), "https://www.yelp.com/biz/x")
	if !errors.Is(err, domain.ErrPageUnavailable) {
		t.Fatalf("expected page unavailable, got %v", err)
	}
	if killed != 1 {
		t.Fatalf("expected launched chrome to be killed once, got %d", killed)
	}
	if loader.kill != nil || loader.browser != nil {
		t.Fatalf("failed connect left state behind")
	}
	if err := loader.Close(); err != nil || killed != 1 {
		t.Fatalf("Close after failed connect: err=%v killed=%d", err, killed)
	}
}

func TestRemoteBrowserIsNeverLaunched(t *testing.T) {
	t.Parallel()

	loader := NewLoader(config.PageConfig{BrowserURL: "ws://chrome:9222"}, nil, nil)
	loader.launch = func() (string, func(), error) {
		t.Fatalf("launch called with a configured browser URL")
		return "", nil, nil
	}
	var dialed string
	loader.dial = func(u string) (*rod.Browser, error) {
		dialed = u
		return nil, errors.New("unreachable")
	}

	if _, err := loader.Load(context.Background(), "https://example.com"); err == nil {
		t.Fatalf("expected an error")
	}
	if dialed != "ws://chrome:9222" {
		t.Fatalf("dialed %q", dialed)
	}
}

func TestUserAgentOverride(t *testing.T) {
	t.Parallel()

	if ua := NewLoader(config.PageConfig{}, nil, nil).userAgent(); ua != nil {
		t.Fatalf("expected no override, got %+v", ua)
	}
	ua := NewLoader(config.PageConfig{UserAgent: " ReviewScanner/1.0 "}, nil, nil).userAgent()
	if ua == nil || ua.UserAgent != "ReviewScanner/1.0" {
		t.Fatalf("unexpected override %+v", ua)
	}
}

package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/ports"
)

const maxPageBytes = 10 << 20

// PageLoader fetches pages over HTTP(S) or reads them from disk.
type PageLoader struct {
	client    *http.Client
	userAgent string
}

var _ ports.PageLoader = (*PageLoader)(nil)

// NewPageLoader wires an HTTP client; a nil client gets a 20s timeout.
func NewPageLoader(client *http.Client, userAgent string) *PageLoader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = "ReviewScanner/1.0"
	}
	return &PageLoader{client: client, userAgent: userAgent}
}

// Load returns the parsed document for location.
func (l *PageLoader) Load(ctx context.Context, location string) (*goquery.Document, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, domain.NewError(domain.KindPageUnavailable, "no page location", nil)
	}
	if path, ok := LocalPath(location); ok {
		return l.loadFile(path)
	}
	return l.fetchDocument(ctx, location)
}

func (l *PageLoader) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "build request", err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "request document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.KindPageUnavailable, fmt.Sprintf("%s returned %s", pageURL, resp.Status), nil)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "parse document", err)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

func (l *PageLoader) loadFile(path string) (*goquery.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "open page", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(f, maxPageBytes))
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "parse page", err)
	}
	return doc, nil
}

// LocalPath reports whether location names a file rather than a URL.
func LocalPath(location string) (string, bool) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// no scheme, or a Windows drive letter
		return location, true
	}
	if u.Scheme == "file" {
		return u.Path, true
	}
	return "", false
}

// ParseHTML parses markup posted by a caller in place of a location.
func ParseHTML(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "parse posted page", err)
	}
	return doc, nil
}

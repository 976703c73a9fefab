// Package browser renders pages in headless Chrome before extraction, for
// sites that build their review lists with scripts.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"ReviewScanner/internal/config"
	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/ports"
)

// Loader fetches pages through a lazily started Chrome. Local files are
// delegated to the fallback loader.
type Loader struct {
	cfg      config.PageConfig
	fallback ports.PageLoader
	logger   *slog.Logger

	// launch starts a local Chrome and returns its control URL and a kill
	// func; dial connects to a control URL.
	launch func() (string, func(), error)
	dial   func(wsURL string) (*rod.Browser, error)

	mu      sync.Mutex
	browser *rod.Browser
	kill    func()
}

var _ ports.PageLoader = (*Loader)(nil)

// NewLoader does not start Chrome; the first remote Load does.
func NewLoader(cfg config.PageConfig, fallback ports.PageLoader, logger *slog.Logger) *Loader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cfg: cfg, fallback: fallback, logger: logger, launch: launchChrome, dial: dialChrome}
}

func launchChrome() (string, func(), error) {
	lnch := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
	u, err := lnch.Launch()
	if err != nil {
		return "", nil, err
	}
	return u, lnch.Kill, nil
}

func dialChrome(wsURL string) (*rod.Browser, error) {
	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, err
	}
	return b, nil
}

// userAgent is nil when no User-Agent is configured, keeping Chrome's own.
func (l *Loader) userAgent() *proto.NetworkSetUserAgentOverride {
	ua := strings.TrimSpace(l.cfg.UserAgent)
	if ua == "" {
		return nil
	}
	return &proto.NetworkSetUserAgentOverride{UserAgent: ua}
}

// Load navigates to location and parses the rendered DOM.
func (l *Loader) Load(ctx context.Context, location string) (*goquery.Document, error) {
	if isLocal(location) && l.fallback != nil {
		return l.fallback.Load(ctx, location)
	}

	b, err := l.connect()
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "start browser", err)
	}

	var page *rod.Page
	if l.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "open tab", err)
	}
	defer func() { _ = page.Close() }()

	if ua := l.userAgent(); ua != nil {
		if err := page.SetUserAgent(ua); err != nil {
			return nil, domain.NewError(domain.KindPageUnavailable, "set user agent", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(location); err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "navigate "+location, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		l.logger.Warn("wait load timeout", "url", location, "error", err)
	}

	markup, err := page.Context(navCtx).HTML()
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "read DOM", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "parse DOM", err)
	}
	return doc, nil
}

// Close shuts Chrome down if it was started.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.browser != nil {
		err = l.browser.Close()
		l.browser = nil
	}
	if l.kill != nil {
		l.kill()
		l.kill = nil
	}
	return err
}

func (l *Loader) connect() (*rod.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil {
		return l.browser, nil
	}

	wsURL := l.cfg.BrowserURL
	var kill func()
	if wsURL == "" {
		u, k, err := l.launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		wsURL, kill = u, k
		l.logger.Info("launched local chrome", "url", wsURL)
	}

	b, err := l.dial(wsURL)
	if err != nil {
		if kill != nil {
			kill()
		}
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	l.browser, l.kill = b, kill
	return b, nil
}

func isLocal(location string) bool {
	lower := strings.ToLower(strings.TrimSpace(location))
	return !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://")
}

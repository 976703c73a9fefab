package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ReviewScanner/internal/config"
	"ReviewScanner/internal/infrastructure/storage"
	"ReviewScanner/internal/logging"
	"ReviewScanner/internal/ports"
)

func testConfig(t *testing.T, backendURL string) config.Config {
	t.Helper()
	cfg := config.LoadFile("")
	cfg.API.BaseURL = backendURL
	cfg.Storage.Path = storage.MemoryPath
	cfg.ChatGPT.APIKey = ""
	cfg.Notifications.Telegram = config.TelegramConfig{}
	cfg.Sites = []config.SiteConfig{{Name: "ebay", Selector: ".review-item-content"}}
	return cfg
}

func TestNewWiresConfiguredSites(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig(t, "http://127.0.0.1:0"), logging.Discard())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Close(context.Background())

	sites := a.Orchestrator().Sites()
	found := false
	for _, s := range sites {
		found = found || s == "ebay"
	}
	if !found || len(sites) != 6 {
		t.Fatalf("expected built-in sites plus ebay, got %v", sites)
	}
	if a.Explainer() != nil {
		t.Fatalf("explainer should be off without an API key")
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ebay") {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestNewRejectsBadSiteRule(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Sites = []config.SiteConfig{{Name: "ebay"}}
	if _, err := New(cfg, logging.Discard()); err == nil {
		t.Fatalf("expected error for empty selector")
	}
}

func TestLoginPersistsSession(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"abc"}`)
	}))
	defer backend.Close()

	a, err := New(testConfig(t, backend.URL), logging.Discard())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Close(context.Background())

	ctx := context.Background()
	if _, err := a.Login(ctx, ports.Credentials{Username: "ana", Password: "pw"}); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if tok, _ := a.Store().LoadSessionToken(ctx); tok != "abc" {
		t.Fatalf("expected stored token, got %q", tok)
	}

	if err := a.Logout(ctx); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if tok, _ := a.Store().LoadSessionToken(ctx); tok != "" {
		t.Fatalf("token survived logout: %q", tok)
	}
}

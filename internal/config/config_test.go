package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
api:
  baseUrl: https://predict.example.org
  timeout: 3s
scan:
  requireLogin: true
  maxInFlight: 2
watch:
  interval: 10m
  targets:
    - site: yelp
      url: https://www.yelp.com/biz/example
sites:
  - name: etsy
    selector: .review-body
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFile(path)

	if cfg.API.BaseURL != "https://predict.example.org" {
		t.Fatalf("unexpected base url: %s", cfg.API.BaseURL)
	}
	if cfg.API.PredictPath != "/api/predict" {
		t.Fatalf("default predict path lost: %s", cfg.API.PredictPath)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.API.Timeout)
	}
	if !cfg.Scan.RequireLogin || cfg.Scan.MaxInFlight != 2 || cfg.Scan.KeepRuns != 20 {
		t.Fatalf("unexpected scan config: %+v", cfg.Scan)
	}
	if cfg.Watch.Interval != 10*time.Minute || len(cfg.Watch.Targets) != 1 {
		t.Fatalf("unexpected watch config: %+v", cfg.Watch)
	}
	if len(cfg.Sites) != 1 || cfg.Sites[0].Selector != ".review-body" {
		t.Fatalf("unexpected sites: %+v", cfg.Sites)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv(apiURLEnv, "https://env.example.org")
	t.Setenv(databasePathEnv, "/tmp/reviews.db")
	t.Setenv(telegramChatIDEnv, "42")

	cfg := LoadFile("")

	if cfg.API.BaseURL != "https://env.example.org" {
		t.Fatalf("unexpected base url: %s", cfg.API.BaseURL)
	}
	if cfg.Storage.Path != "/tmp/reviews.db" {
		t.Fatalf("unexpected storage path: %s", cfg.Storage.Path)
	}
	if cfg.Notifications.Telegram.ChatID != "42" {
		t.Fatalf("unexpected chat id: %s", cfg.Notifications.Telegram.ChatID)
	}
}

func TestUnreadableFileFallsBackToDefaults(t *testing.T) {
	cfg := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Page.Renderer != "http" {
		t.Fatalf("expected defaults, got renderer %q", cfg.Page.Renderer)
	}
}

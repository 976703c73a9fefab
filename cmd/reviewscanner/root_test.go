package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	if cmd.Use != "reviewscanner" {
		t.Fatalf("expected use 'reviewscanner', got %q", cmd.Use)
	}
	for _, name := range []string{"config", "verbose"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Fatalf("expected persistent flag %q", name)
		}
	}

	want := map[string]bool{"scan": false, "serve": false, "watch": false, "login": false, "logout": false, "history": false, "export": false, "settings": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

// testEnv is a config file pointing at a fake backend and a temp database.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/predict":
			fmt.Fprint(w, `{"prediction":"fake","message":"Looks generated","reasons":["repetitive"]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf("api:\n  baseUrl: %s\nstorage:\n  path: %s\n", backend.URL, filepath.Join(dir, "reviews.db"))
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return testEnv{dir: dir, config: path}
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScanCommandWritesReportAndHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	page := filepath.Join(env.dir, "page.html")
	markup := `<html><body><div class="review">Amazing!!! Best ever!!!</div><div class="review">Amazing!!! Buy now!!!</div></body></html>`
	if err := os.WriteFile(page, []byte(markup), 0o600); err != nil {
		t.Fatalf("write page: %v", err)
	}

	reportPath := filepath.Join(env.dir, "out", "report.md")
	marked := filepath.Join(env.dir, "out", "marked.html")
	out, err := env.run(t, "scan", "--site", "yelp", "--report", "md", "-o", reportPath, "--page-out", marked, page)
	if err != nil {
		t.Fatalf("scan failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 fake, 0 suspicious, 0 genuine, 0 failed") {
		t.Fatalf("unexpected scan output:\n%s", out)
	}

	md, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(md), "2 of 2 reviews look fake.") {
		t.Fatalf("unexpected report:\n%s", md)
	}

	html, err := os.ReadFile(marked)
	if err != nil {
		t.Fatalf("read annotated page: %v", err)
	}
	if strings.Count(string(html), "reviewscan-flag flag-red") != 2 {
		t.Fatalf("expected two red markers:\n%s", html)
	}

	out, err = env.run(t, "history", "--label", "fake")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "2 entries: 2 fake") {
		t.Fatalf("unexpected history output:\n%s", out)
	}

	out, err = env.run(t, "export", "--format", "csv")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if lines := strings.Count(strings.TrimSpace(out), "\n"); lines != 2 {
		t.Fatalf("expected header plus 2 rows:\n%s", out)
	}
}

func TestScanCommandRejectsUnsupportedSite(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if _, err := env.run(t, "scan", "--site", "ebay", "https://ebay.example"); err == nil {
		t.Fatalf("expected unsupported site error")
	}
	if _, err := env.run(t, "scan", "--site", "yelp", "--report", "pdf", "x.html"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestSettingsCommand(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	out, err := env.run(t, "settings", "--language", "fr", "--layout", "detailed")
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	if !strings.Contains(out, `"language": "fr"`) {
		t.Fatalf("unexpected settings output:\n%s", out)
	}

	out, err = env.run(t, "settings")
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	if !strings.Contains(out, `"layout": "detailed"`) {
		t.Fatalf("settings not persisted:\n%s", out)
	}

	if _, err := env.run(t, "settings", "--layout", "grid"); err == nil {
		t.Fatalf("expected invalid layout error")
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if _, err := env.run(t, "login", "--username", "ana"); err == nil {
		t.Fatalf("expected missing password error")
	}
}

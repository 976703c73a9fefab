package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ReviewScanner/internal/domain"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Publish(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type staticSettings struct {
	settings domain.Settings
}

func (s *staticSettings) LoadSettings(context.Context) (domain.Settings, error) {
	return s.settings, nil
}
func (s *staticSettings) SaveSettings(_ context.Context, v domain.Settings) error {
	s.settings = v
	return nil
}
func (s *staticSettings) LoadProfile(context.Context) (domain.Profile, error) {
	return domain.Profile{}, nil
}
func (s *staticSettings) SaveProfile(context.Context, domain.Profile) error { return nil }

func TestWatcherAnnouncesOnlyNewReviews(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"https://yelp.example/biz": yelpThree}, nil)
	notifier := &recordingNotifier{}
	w := NewWatcher(WatchDeps{
		Orchestrator: h.orch,
		Notifier:     notifier,
		Settings:     &staticSettings{settings: domain.DefaultSettings()},
		Targets:      []WatchTarget{{Site: "yelp", Location: "https://yelp.example/biz"}},
	})

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 new reviews, got %d", n)
	}
	if sent := notifier.sent(); len(sent) != 1 || sent[0] != "Found 3 new reviews!" {
		t.Fatalf("unexpected notifications %v", sent)
	}

	n, err = w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce error: %v", err)
	}
	if n != 0 || len(notifier.sent()) != 1 {
		t.Fatalf("second cycle should be silent, got n=%d sent=%v", n, notifier.sent())
	}
}

func TestWatcherRespectsPreferences(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"p": yelpThree}, nil)
	notifier := &recordingNotifier{}
	settings := domain.DefaultSettings()
	settings.NotificationPreferences.NewReviews = false

	w := NewWatcher(WatchDeps{
		Orchestrator: h.orch,
		Notifier:     notifier,
		Settings:     &staticSettings{settings: settings},
		Targets:      []WatchTarget{{Site: "yelp", Location: "p"}},
	})
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if len(notifier.sent()) != 0 {
		t.Fatalf("notifications disabled but sent %v", notifier.sent())
	}
}

func TestWatcherCollectsRejectedTargets(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"p": yelpThree}, nil)
	w := NewWatcher(WatchDeps{
		Orchestrator: h.orch,
		Targets:      []WatchTarget{{Site: "myspace", Location: "x"}, {Site: "yelp", Location: "p"}},
	})

	n, err := w.RunOnce(context.Background())
	if !errors.Is(err, domain.ErrUnsupportedSite) {
		t.Fatalf("expected unsupported site in joined error, got %v", err)
	}
	if n != 3 {
		t.Fatalf("supported target should still be scanned, got %d", n)
	}
}

func TestNotifierAlerterHonoursFailurePreference(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	settings := &staticSettings{settings: domain.DefaultSettings()}
	alerter := NewNotifierAlerter(notifier, settings, nil)
	notice := domain.Notice{Kind: domain.KindPredictionUnavailable, Message: "boom"}

	alerter.Alert(context.Background(), notice)
	if len(notifier.sent()) != 0 {
		t.Fatalf("failures are opt-in")
	}

	settings.settings.NotificationPreferences.Failures = true
	Alerters{NewLogAlerter(nil), alerter}.Alert(context.Background(), notice)
	if sent := notifier.sent(); len(sent) != 1 || sent[0] != "boom" {
		t.Fatalf("unexpected notifications %v", sent)
	}
}

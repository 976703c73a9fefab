package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/i18n"
	"ReviewScanner/internal/ports"
)

// WatchTarget is one page rescanned on every tick.
type WatchTarget struct {
	Site     string
	Location string
}

// WatchDeps wires the watcher.
type WatchDeps struct {
	Driver       ports.Scheduler
	Orchestrator *Orchestrator
	Notifier     ports.Notifier
	Settings     ports.SettingsStore
	Targets      []WatchTarget
	Logger       *slog.Logger
}

// Watcher wires the interval driver with the orchestrator and announces
// newly seen reviews.
type Watcher struct {
	driver   ports.Scheduler
	orch     *Orchestrator
	notifier ports.Notifier
	settings ports.SettingsStore
	targets  []WatchTarget
	logger   *slog.Logger
}

// NewWatcher returns a helper to start/stop recurring scans.
func NewWatcher(deps WatchDeps) *Watcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		driver:   deps.Driver,
		orch:     deps.Orchestrator,
		notifier: deps.Notifier,
		settings: deps.Settings,
		targets:  deps.Targets,
		logger:   logger,
	}
}

// Start registers the scan job with the driver.
func (w *Watcher) Start(ctx context.Context) error {
	if w.driver == nil || w.orch == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Warn("watch cycle failed", "trigger", trigger, "error", err)
		}
	}

	return w.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.driver == nil {
		return nil
	}

	return w.driver.Stop(ctx)
}

// RunOnce scans every target, waits for each to settle and publishes a
// notification per target that has new reviews. It returns the total
// number of new reviews.
func (w *Watcher) RunOnce(ctx context.Context) (int, error) {
	if w.orch == nil {
		return 0, nil
	}

	settings := domain.DefaultSettings()
	if w.settings != nil {
		if s, err := w.settings.LoadSettings(ctx); err == nil {
			settings = s
		}
	}

	var (
		total int
		errs  []error
	)
	for _, target := range w.targets {
		run, err := w.orch.Scan(ctx, ScanCommand{Site: target.Site, Location: target.Location})
		if err != nil {
			w.logger.Warn("watch scan rejected", "site", target.Site, "page", target.Location, "error", err)
			errs = append(errs, err)
			continue
		}
		if err := run.Wait(ctx); err != nil {
			return total, err
		}

		state := run.State()
		w.logger.Info("watch scan settled", "site", state.Site, "page", target.Location, "phase", state.Phase, "new", state.NewCount)
		if state.NewCount == 0 {
			continue
		}
		total += state.NewCount
		w.announce(ctx, settings, state.NewCount)
	}
	return total, errors.Join(errs...)
}

func (w *Watcher) announce(ctx context.Context, settings domain.Settings, n int) {
	prefs := settings.NotificationPreferences
	if w.notifier == nil || !prefs.Enabled || !prefs.NewReviews {
		return
	}
	if err := w.notifier.Publish(ctx, i18n.Sprintf(settings.Language, i18n.NewReviews, n)); err != nil {
		w.logger.Warn("publish new reviews failed", "error", err)
	}
}

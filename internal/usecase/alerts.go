package usecase

import (
	"context"
	"log/slog"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/ports"
)

// LogAlerter writes notices to the structured log.
type LogAlerter struct {
	logger *slog.Logger
}

var _ ports.Alerter = (*LogAlerter)(nil)

// NewLogAlerter wraps a logger; nil discards.
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// Alert logs the notice at warn level.
func (a *LogAlerter) Alert(ctx context.Context, n domain.Notice) {
	if a == nil || a.logger == nil {
		return
	}
	attrs := []any{"kind", n.Kind}
	if n.ReviewID != "" {
		attrs = append(attrs, "review_id", n.ReviewID)
	}
	a.logger.WarnContext(ctx, n.Message, attrs...)
}

// NotifierAlerter forwards failure notices to a Notifier when the
// operator opted into failure notifications.
type NotifierAlerter struct {
	notifier ports.Notifier
	settings ports.SettingsStore
	logger   *slog.Logger
}

var _ ports.Alerter = (*NotifierAlerter)(nil)

// NewNotifierAlerter wires the notifier and preference store.
func NewNotifierAlerter(notifier ports.Notifier, settings ports.SettingsStore, logger *slog.Logger) *NotifierAlerter {
	return &NotifierAlerter{notifier: notifier, settings: settings, logger: logger}
}

// Alert publishes the notice message if preferences allow it.
func (a *NotifierAlerter) Alert(ctx context.Context, n domain.Notice) {
	if a == nil || a.notifier == nil {
		return
	}
	prefs := domain.DefaultSettings().NotificationPreferences
	if a.settings != nil {
		if s, err := a.settings.LoadSettings(ctx); err == nil {
			prefs = s.NotificationPreferences
		}
	}
	if !prefs.Enabled || !prefs.Failures {
		return
	}
	if err := a.notifier.Publish(ctx, n.Message); err != nil && a.logger != nil {
		a.logger.Warn("publish notice failed", "kind", n.Kind, "error", err)
	}
}

// Alerters fans a notice out to every alerter.
type Alerters []ports.Alerter

var _ ports.Alerter = Alerters(nil)

// Alert forwards to each non-nil alerter in order.
func (as Alerters) Alert(ctx context.Context, n domain.Notice) {
	for _, a := range as {
		if a != nil {
			a.Alert(ctx, n)
		}
	}
}

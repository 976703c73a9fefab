package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ReviewScanner/internal/api"
	"ReviewScanner/internal/config"
	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/infrastructure/browser"
	"ReviewScanner/internal/infrastructure/llm"
	"ReviewScanner/internal/infrastructure/ml"
	"ReviewScanner/internal/infrastructure/parser"
	"ReviewScanner/internal/infrastructure/scheduler"
	"ReviewScanner/internal/infrastructure/storage"
	"ReviewScanner/internal/infrastructure/telegram"
	"ReviewScanner/internal/logging"
	"ReviewScanner/internal/ports"
	"ReviewScanner/internal/presenter"
	"ReviewScanner/internal/scanner"
	"ReviewScanner/internal/session"
	"ReviewScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store     *storage.Store
	sessions  *session.Manager
	client    *ml.Client
	explainer ports.Explainer
	browser   *browser.Loader

	orchestrator *usecase.Orchestrator
	watcher      *usecase.Watcher
}

// New opens the database and builds every component. Close releases them.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	}

	registry := scanner.NewRegistry()
	for _, site := range cfg.Sites {
		rule := domain.ExtractionRule{Site: domain.ParseSiteID(site.Name), Selector: site.Selector}
		if err := registry.Register(rule); err != nil {
			return nil, fmt.Errorf("register site: %w", err)
		}
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger, store: store}

	a.sessions = session.NewManager(nil)
	a.restoreSession(context.Background())

	var loader ports.PageLoader = parser.NewPageLoader(&http.Client{Timeout: cfg.Page.Timeout}, cfg.Page.UserAgent)
	if strings.EqualFold(cfg.Page.Renderer, "browser") {
		a.browser = browser.NewLoader(cfg.Page, loader, baseLogger.With("component", "browser"))
		loader = a.browser
	}

	a.client = ml.NewClient(cfg.API, nil)
	var sentiment ports.SentimentAnalyzer
	if cfg.API.SentimentURL != "" {
		sentiment = a.client
	}

	if chat := llm.NewChatGPTClient(cfg.ChatGPT, nil); chat.Configured() {
		a.explainer = chat
	}

	var notifier ports.Notifier
	alerters := usecase.Alerters{usecase.NewLogAlerter(baseLogger.With("component", "alerts"))}
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
		alerters = append(alerters, usecase.NewNotifierAlerter(tg, store, baseLogger.With("component", "notifier")))
	}

	a.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Registry:     registry,
		Loader:       loader,
		Extractor:    parser.NewExtractor(registry, baseLogger.With("component", "extractor")),
		Predictor:    a.client,
		Sentiment:    sentiment,
		Presenter:    presenter.New(),
		Alerter:      alerters,
		History:      store,
		Settings:     store,
		Sessions:     a.sessions,
		RequireLogin: cfg.Scan.RequireLogin,
		MaxInFlight:  cfg.Scan.MaxInFlight,
		KeepRuns:     cfg.Scan.KeepRuns,
		Logger:       baseLogger.With("component", "orchestrator"),
	})

	targets := make([]usecase.WatchTarget, 0, len(cfg.Watch.Targets))
	for _, t := range cfg.Watch.Targets {
		targets = append(targets, usecase.WatchTarget{Site: t.Site, Location: t.URL})
	}
	a.watcher = usecase.NewWatcher(usecase.WatchDeps{
		Driver:       scheduler.NewIntervalScheduler(cfg.Watch.Interval),
		Orchestrator: a.orchestrator,
		Notifier:     notifier,
		Settings:     store,
		Targets:      targets,
		Logger:       baseLogger.With("component", "watch"),
	})

	return a, nil
}

func (a *Application) restoreSession(ctx context.Context) {
	token, err := a.store.LoadSessionToken(ctx)
	if err != nil {
		a.logger.Warn("restore session failed", "error", err)
		return
	}
	if token == "" {
		return
	}
	a.sessions.Begin(session.New(token, time.Now()))
	if _, err := a.sessions.Current(); err != nil {
		a.logger.Info("stored session expired")
		_ = a.store.ClearSessionToken(ctx)
	}
}

// Orchestrator returns the scan orchestrator.
func (a *Application) Orchestrator() *usecase.Orchestrator { return a.orchestrator }

// Watcher returns the interval rescanner.
func (a *Application) Watcher() *usecase.Watcher { return a.watcher }

// Store returns the local database.
func (a *Application) Store() *storage.Store { return a.store }

// Reviews returns the remote backend client.
func (a *Application) Reviews() *ml.Client { return a.client }

// Explainer is nil unless ChatGPT is configured.
func (a *Application) Explainer() ports.Explainer { return a.explainer }

// Login exchanges credentials and persists the resulting session.
func (a *Application) Login(ctx context.Context, creds ports.Credentials) (*session.Session, error) {
	sess, err := a.client.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	a.sessions.Begin(sess)
	if err := a.store.SaveSessionToken(ctx, sess.Token); err != nil {
		return sess, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

// Logout drops the session from memory and disk.
func (a *Application) Logout(ctx context.Context) error {
	a.sessions.End()
	return a.store.ClearSessionToken(ctx)
}

// Handler builds the gin engine for the command service.
func (a *Application) Handler() *gin.Engine {
	h := api.NewHandler(api.HandlerDeps{
		Orchestrator: a.orchestrator,
		ReviewAPI:    a.client,
		Explainer:    a.explainer,
		Settings:     a.store,
		SessionStore: a.store,
		Sessions:     a.sessions,
		History:      a.store,
		Logger:       a.logger.With("component", "api"),
	})
	return api.NewServer(h, a.logger.With("component", "http"))
}

// Close stops the watcher and releases the browser and database.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if err := a.watcher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop watcher: %w", err))
	}
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/i18n"
	"ReviewScanner/internal/infrastructure/parser"
	"ReviewScanner/internal/ports"
	"ReviewScanner/internal/scanner"
	"ReviewScanner/internal/session"
)

const (
	defaultMaxInFlight = 8
	defaultKeepRuns    = 20
)

// postedPageNamespace derives page keys for markup posted without a location.
var postedPageNamespace = uuid.MustParse("0b6f3c2e-5d4a-4f7e-9a61-2c8d7e1f4b30")

// ScanCommand asks for one page to be scanned. HTML, when set, is used
// instead of loading Location. Session overrides the manager's session.
type ScanCommand struct {
	Site     string
	Location string
	HTML     string
	Session  *session.Session
}

// OrchestratorDeps wires all driven adapters into the scan workflow.
type OrchestratorDeps struct {
	Registry  *scanner.Registry
	Loader    ports.PageLoader
	Extractor ports.ReviewExtractor
	Predictor ports.Predictor
	Sentiment ports.SentimentAnalyzer
	Presenter ports.Presenter
	Alerter   ports.Alerter
	History   ports.HistoryRepository
	Settings  ports.SettingsStore
	Sessions  *session.Manager

	RequireLogin bool
	MaxInFlight  int
	KeepRuns     int

	Logger *slog.Logger
	Now    func() time.Time
}

// Orchestrator implements the scan workflow: resolve, load, extract,
// predict per review, render.
type Orchestrator struct {
	registry  *scanner.Registry
	loader    ports.PageLoader
	extractor ports.ReviewExtractor
	predictor ports.Predictor
	sentiment ports.SentimentAnalyzer
	presenter ports.Presenter
	alerter   ports.Alerter
	history   ports.HistoryRepository
	settings  ports.SettingsStore
	sessions  *session.Manager

	requireLogin bool
	maxInFlight  int64
	keepRuns     int

	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	active  map[string]*Run
	runs    map[string]*Run
	order   []string
	current *Run
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	o := &Orchestrator{
		registry:     deps.Registry,
		loader:       deps.Loader,
		extractor:    deps.Extractor,
		predictor:    deps.Predictor,
		sentiment:    deps.Sentiment,
		presenter:    deps.Presenter,
		alerter:      deps.Alerter,
		history:      deps.History,
		settings:     deps.Settings,
		sessions:     deps.Sessions,
		requireLogin: deps.RequireLogin,
		maxInFlight:  int64(deps.MaxInFlight),
		keepRuns:     deps.KeepRuns,
		logger:       deps.Logger,
		now:          deps.Now,
		active:       make(map[string]*Run),
		runs:         make(map[string]*Run),
	}
	if o.registry == nil {
		o.registry = scanner.NewRegistry()
	}
	if o.maxInFlight <= 0 {
		o.maxInFlight = defaultMaxInFlight
	}
	if o.keepRuns <= 0 {
		o.keepRuns = defaultKeepRuns
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Scan validates the command synchronously and runs the rest in the
// background. The returned run is never nil: on ScanInProgress it is the
// run already scanning that page.
func (o *Orchestrator) Scan(ctx context.Context, cmd ScanCommand) (*Run, error) {
	site := domain.ParseSiteID(cmd.Site)
	location := strings.TrimSpace(cmd.Location)
	pageKey := pageKeyOf(site, location, cmd.HTML)
	settings := o.loadSettings(ctx)

	run := newRun(uuid.NewString(), site, pageKey, location, settings, o.now())

	if _, err := o.registry.Resolve(site); err != nil {
		o.reject(ctx, run, domain.PhaseUnsupportedSite, err)
		return run, err
	}

	sess := cmd.Session
	if sess == nil && o.sessions != nil {
		sess = o.sessions.Optional()
	}
	if o.requireLogin && !sess.Valid(o.now()) {
		err := domain.NewError(domain.KindAuthRequired, "log in to scan reviews", nil)
		o.reject(ctx, run, domain.PhaseFailed, err)
		return run, err
	}

	if cmd.HTML == "" && location == "" {
		err := domain.NewError(domain.KindPageUnavailable, "no page location or markup", nil)
		o.reject(ctx, run, domain.PhaseFailed, err)
		return run, err
	}

	if existing, ok := o.claim(pageKey, run); !ok {
		err := domain.NewError(domain.KindScanInProgress, pageKey, nil)
		o.logger.Info("scan rejected", "page", pageKey, "running", existing.ID())
		return existing, err
	}

	run.mu.Lock()
	run.state.Phase = domain.PhaseLoading
	run.state.InProgress = true
	run.mu.Unlock()
	o.remember(run)

	o.logger.Info("scan started", "scan_id", run.ID(), "site", site, "page", location)
	go o.execute(context.WithoutCancel(ctx), run, cmd, sess)
	return run, nil
}

// pageKeyOf identifies the page a scan runs against. Markup posted without
// a location is keyed by its content.
func pageKeyOf(site domain.SiteID, location, markup string) string {
	if location == "" && markup != "" {
		location = "posted:" + uuid.NewSHA1(postedPageNamespace, []byte(markup)).String()
	}
	return string(site) + "|" + location
}

// Current returns the state of the most recent scan, or idle.
func (o *Orchestrator) Current() (*Run, domain.ScanState) {
	o.mu.Lock()
	run := o.current
	o.mu.Unlock()
	if run == nil {
		return nil, domain.ScanState{Phase: domain.PhaseIdle}
	}
	return run, run.State()
}

// Lookup finds a recent run by id.
func (o *Orchestrator) Lookup(id string) (*Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[id]
	return run, ok
}

// Sites lists the supported site ids.
func (o *Orchestrator) Sites() []domain.SiteID {
	return o.registry.Sites()
}

type delivery struct {
	review  domain.RawReview
	verdict domain.Verdict
	err     error
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, cmd ScanCommand, sess *session.Session) {
	state := run.State()
	logger := o.logger.With("scan_id", state.ScanID, "site", state.Site)

	doc, err := o.loadDocument(ctx, cmd)
	if err != nil {
		logger.Warn("load page failed", "error", err)
		o.fail(ctx, run, domain.PhaseFailed, err)
		return
	}

	settings := run.Settings()
	run.mu.Lock()
	run.doc = doc
	if o.presenter != nil {
		o.presenter.Reset(doc)
		o.presenter.ApplySettings(doc, settings)
		o.presenter.ShowLoading(doc)
	}
	run.mu.Unlock()

	reviews, err := o.extractor.Extract(doc, state.Site)
	if err != nil {
		o.hideLoading(run)
		logger.Warn("extract reviews failed", "error", err)
		o.fail(ctx, run, domain.PhaseFailed, err)
		return
	}

	if len(reviews) == 0 {
		o.hideLoading(run)
		logger.Info("no reviews found")
		o.fail(ctx, run, domain.PhaseEmpty, domain.NewError(domain.KindNoReviewsFound, "", nil))
		return
	}

	newCount := o.countNew(ctx, reviews, logger)

	run.mu.Lock()
	run.state.MatchedCount = len(reviews)
	run.state.NewCount = newCount
	run.state.Phase = domain.PhasePredicting
	run.mu.Unlock()
	logger.Info("predicting", "matched", len(reviews), "new", newCount)

	deliveries := make(chan delivery, len(reviews))
	go o.renderLoop(ctx, run, deliveries, logger)

	sem := semaphore.NewWeighted(o.maxInFlight)
	var wg sync.WaitGroup
	for _, review := range reviews {
		wg.Add(1)
		go func(review domain.RawReview) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				deliveries <- delivery{review: review, err: err}
				return
			}
			defer sem.Release(1)
			deliveries <- o.predictOne(ctx, run, sess, review, logger)
		}(review)
	}

	o.hideLoading(run)
	run.setPhase(domain.PhaseDone)

	go func() {
		wg.Wait()
		close(deliveries)
	}()
}

func (o *Orchestrator) predictOne(ctx context.Context, run *Run, sess *session.Session, review domain.RawReview, logger *slog.Logger) delivery {
	verdict, err := o.predictor.Predict(ctx, sess, review.Text)
	if err != nil {
		return delivery{review: review, err: err}
	}

	if o.sentiment != nil && verdict.SentimentScore == nil {
		if score, sErr := o.sentiment.Sentiment(ctx, review.Text); sErr != nil {
			logger.Debug("sentiment unavailable", "review_id", review.ID, "error", sErr)
		} else {
			verdict.SentimentScore = &score
		}
	}

	if o.history != nil {
		entry := domain.HistoryEntry{
			ReviewID:  review.ID,
			Site:      review.Site,
			PageURL:   run.Location(),
			Text:      review.Text,
			Verdict:   verdict,
			CreatedAt: o.now(),
		}
		if hErr := o.history.SaveEntry(ctx, entry); hErr != nil {
			logger.Warn("save history failed", "review_id", review.ID, "error", hErr)
		}
	}

	return delivery{review: review, verdict: verdict}
}

// renderLoop is the only writer to the run's document once predictions
// are in flight. Deliveries may arrive in any order.
func (o *Orchestrator) renderLoop(ctx context.Context, run *Run, deliveries <-chan delivery, logger *slog.Logger) {
	for d := range deliveries {
		res := Result{ReviewID: d.review.ID, Index: d.review.Index, Text: d.review.Text}
		if d.err != nil {
			res.Error = d.err.Error()
			run.mu.Lock()
			run.results[d.review.ID] = res
			run.mu.Unlock()
			logger.Warn("prediction failed", "review_id", d.review.ID, "error", d.err)
			o.alert(ctx, run, domain.KindPredictionUnavailable, d.review.ID)
			continue
		}

		verdict := d.verdict
		res.Verdict = &verdict
		run.mu.Lock()
		run.results[d.review.ID] = res
		if o.presenter != nil {
			o.presenter.Render(d.review, verdict)
		}
		run.mu.Unlock()
	}

	o.release(run)
	run.settle("", o.now())
	state := run.State()
	logger.Info("scan settled", "matched", state.MatchedCount, "new", state.NewCount)
}

func (o *Orchestrator) loadDocument(ctx context.Context, cmd ScanCommand) (*goquery.Document, error) {
	if cmd.HTML != "" {
		return parser.ParseHTML(cmd.HTML)
	}
	if o.loader == nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "no page loader configured", nil)
	}
	doc, err := o.loader.Load(ctx, strings.TrimSpace(cmd.Location))
	if err != nil {
		if domain.KindOf(err) == "" {
			err = domain.NewError(domain.KindPageUnavailable, cmd.Location, err)
		}
		return nil, err
	}
	return doc, nil
}

func (o *Orchestrator) countNew(ctx context.Context, reviews []domain.RawReview, logger *slog.Logger) int {
	if o.history == nil {
		return len(reviews)
	}
	ids := make([]string, len(reviews))
	for i, r := range reviews {
		ids[i] = r.ID
	}
	seen, err := o.history.AlreadyProcessed(ctx, ids)
	if err != nil {
		logger.Warn("load processed failed", "error", err)
		return len(reviews)
	}
	n := 0
	for _, id := range ids {
		if !seen[id] {
			n++
		}
	}
	return n
}

func (o *Orchestrator) loadSettings(ctx context.Context) domain.Settings {
	if o.settings == nil {
		return domain.DefaultSettings()
	}
	s, err := o.settings.LoadSettings(ctx)
	if err != nil {
		o.logger.Warn("load settings failed", "error", err)
		return domain.DefaultSettings()
	}
	return s
}

func (o *Orchestrator) hideLoading(run *Run) {
	if o.presenter == nil {
		return
	}
	run.withDocument(func(doc *goquery.Document) {
		o.presenter.HideLoading(doc)
	})
}

// reject finishes a run that never started and makes it current.
func (o *Orchestrator) reject(ctx context.Context, run *Run, phase domain.Phase, err error) {
	o.remember(run)
	o.fail(ctx, run, phase, err)
}

func (o *Orchestrator) fail(ctx context.Context, run *Run, phase domain.Phase, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		kind = domain.KindPageUnavailable
	}
	o.alert(ctx, run, kind, "")
	o.release(run)
	run.settle(phase, o.now())
}

func (o *Orchestrator) alert(ctx context.Context, run *Run, kind domain.ErrorKind, reviewID string) {
	notice := domain.Notice{
		Kind:     kind,
		Message:  i18n.Sprintf(run.Settings().Language, noticeKey(kind)),
		ReviewID: reviewID,
		At:       o.now(),
	}
	run.addNotice(notice)
	if o.alerter != nil {
		o.alerter.Alert(ctx, notice)
	}
}

func noticeKey(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindUnsupportedSite:
		return i18n.UnsupportedSite
	case domain.KindNoReviewsFound:
		return i18n.NoReviewsFound
	case domain.KindPredictionUnavailable:
		return i18n.PredictionUnavailable
	case domain.KindAuthRequired:
		return i18n.AuthRequired
	case domain.KindScanInProgress:
		return i18n.ScanInProgress
	case domain.KindSubmissionFailed:
		return i18n.SubmissionFailed
	default:
		return i18n.PageUnavailable
	}
}

// claim reserves pageKey for run, or returns the run holding it.
func (o *Orchestrator) claim(pageKey string, run *Run) (*Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.active[pageKey]; ok {
		return existing, false
	}
	o.active[pageKey] = run
	return run, true
}

func (o *Orchestrator) release(run *Run) {
	key := run.State().PageKey
	o.mu.Lock()
	if o.active[key] == run {
		delete(o.active, key)
	}
	o.mu.Unlock()
}

// remember makes run current and evicts the oldest settled runs.
func (o *Orchestrator) remember(run *Run) {
	id := run.ID()
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.runs[id]; !ok {
		o.order = append(o.order, id)
	}
	o.runs[id] = run
	o.current = run

	for len(o.order) > o.keepRuns {
		oldest := o.runs[o.order[0]]
		if oldest != nil && oldest.State().InProgress {
			break
		}
		delete(o.runs, o.order[0])
		o.order = o.order[1:]
	}
}

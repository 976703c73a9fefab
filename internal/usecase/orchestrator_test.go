package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/infrastructure/parser"
	"ReviewScanner/internal/presenter"
	"ReviewScanner/internal/scanner"
	"ReviewScanner/internal/session"
)

const yelpThree = `<html><body>
<div class="review">Great tacos and friendly staff.</div>
<div class="review">Loved the patio.</div>
<div class="review">A bit slow, but worth it.</div>
</body></html>`

type fakeLoader struct {
	pages map[string]string
	calls atomic.Int32
}

func (l *fakeLoader) Load(_ context.Context, location string) (*goquery.Document, error) {
	l.calls.Add(1)
	page, ok := l.pages[location]
	if !ok {
		return nil, domain.NewError(domain.KindPageUnavailable, location, nil)
	}
	return parser.ParseHTML(page)
}

type fakePredictor struct {
	calls   atomic.Int32
	predict func(text string) (domain.Verdict, error)
}

func (p *fakePredictor) Predict(_ context.Context, _ *session.Session, text string) (domain.Verdict, error) {
	p.calls.Add(1)
	if p.predict == nil {
		return domain.Verdict{Label: domain.LabelGenuine, Message: "m"}, nil
	}
	return p.predict(text)
}

type memoryHistory struct {
	mu      sync.Mutex
	entries map[string]domain.HistoryEntry
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{entries: make(map[string]domain.HistoryEntry)}
}

func (h *memoryHistory) AlreadyProcessed(_ context.Context, ids []string) (map[string]bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := h.entries[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (h *memoryHistory) SaveEntry(_ context.Context, e domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[e.ReviewID] = e
	return nil
}

func (h *memoryHistory) ListHistory(context.Context, domain.HistoryQuery) ([]domain.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.HistoryEntry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e)
	}
	return out, nil
}

type recordingAlerter struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (a *recordingAlerter) Alert(_ context.Context, n domain.Notice) {
	a.mu.Lock()
	a.notices = append(a.notices, n)
	a.mu.Unlock()
}

func (a *recordingAlerter) kinds() []domain.ErrorKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.ErrorKind, len(a.notices))
	for i, n := range a.notices {
		out[i] = n.Kind
	}
	return out
}

type harness struct {
	orch      *Orchestrator
	loader    *fakeLoader
	predictor *fakePredictor
	alerter   *recordingAlerter
	history   *memoryHistory
	sessions  *session.Manager
}

func newHarness(t *testing.T, pages map[string]string, mutate func(*OrchestratorDeps)) *harness {
	t.Helper()

	registry := scanner.NewRegistry()
	h := &harness{
		loader:    &fakeLoader{pages: pages},
		predictor: &fakePredictor{},
		alerter:   &recordingAlerter{},
		history:   newMemoryHistory(),
		sessions:  session.NewManager(nil),
	}
	deps := OrchestratorDeps{
		Registry:  registry,
		Loader:    h.loader,
		Extractor: parser.NewExtractor(registry, nil),
		Predictor: h.predictor,
		Presenter: presenter.New(),
		Alerter:   h.alerter,
		History:   h.history,
		Sessions:  h.sessions,
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.orch = NewOrchestrator(deps)
	return h
}

func waitRun(t *testing.T, run *Run) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := run.Wait(ctx); err != nil {
		t.Fatalf("run did not settle: %v", err)
	}
}

func TestScanUnsupportedSiteMakesNoCalls(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"page": yelpThree}, nil)
	run, err := h.orch.Scan(context.Background(), ScanCommand{Site: "ebay", Location: "page"})
	if !errors.Is(err, domain.ErrUnsupportedSite) {
		t.Fatalf("expected unsupported site, got %v", err)
	}

	state := run.State()
	if state.Phase != domain.PhaseUnsupportedSite || state.InProgress {
		t.Fatalf("unexpected state %+v", state)
	}
	if h.loader.calls.Load() != 0 || h.predictor.calls.Load() != 0 {
		t.Fatalf("expected no loading or network, got loads=%d predicts=%d", h.loader.calls.Load(), h.predictor.calls.Load())
	}
	if html, _ := run.HTML(); html != "" {
		t.Fatalf("no document should be attached")
	}
	if kinds := h.alerter.kinds(); len(kinds) != 1 || kinds[0] != domain.KindUnsupportedSite {
		t.Fatalf("unexpected alerts %v", kinds)
	}
	if _, current := h.orch.Current(); current.ScanID != state.ScanID {
		t.Fatalf("rejected scan should be current")
	}
}

func TestScanEmptyPage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"page": `<html><body><p>Menu</p></body></html>`}, nil)
	run, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", Location: "page"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	waitRun(t, run)

	if run.State().Phase != domain.PhaseEmpty {
		t.Fatalf("expected empty phase, got %s", run.State().Phase)
	}
	if h.predictor.calls.Load() != 0 {
		t.Fatalf("expected zero prediction calls, got %d", h.predictor.calls.Load())
	}
	notices := run.Notices()
	if len(notices) != 1 || notices[0].Message != "No reviews found for the selected site." {
		t.Fatalf("unexpected notices %+v", notices)
	}
	html, _ := run.HTML()
	doc, _ := parser.ParseHTML(html)
	if doc.Find("#"+presenter.LoadingID).Length() != 0 {
		t.Fatalf("loading indicator left on page")
	}
}

func TestScanPredictsOncePerReview(t *testing.T) {
	t.Parallel()

	page := "<html><body>" + strings.Repeat(`<span class="review-text">Solid product.</span>`, 5) + "</body></html>"
	h := newHarness(t, map[string]string{"p": page}, func(d *OrchestratorDeps) { d.MaxInFlight = 2 })

	run, err := h.orch.Scan(context.Background(), ScanCommand{Site: "amazon", Location: "p"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	waitRun(t, run)

	if got := h.predictor.calls.Load(); got != 5 {
		t.Fatalf("expected 5 prediction calls, got %d", got)
	}
	if len(run.Results()) != 5 {
		t.Fatalf("expected 5 results, got %d", len(run.Results()))
	}
}

func TestScanYelpGenuineReviews(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"https://yelp.example/biz": yelpThree}, nil)
	run, err := h.orch.Scan(context.Background(), ScanCommand{Site: "Yelp", Location: "https://yelp.example/biz"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	waitRun(t, run)

	state := run.State()
	if state.MatchedCount != 3 || state.Phase != domain.PhaseDone || state.InProgress {
		t.Fatalf("unexpected state %+v", state)
	}

	html, err := run.HTML()
	if err != nil {
		t.Fatalf("HTML error: %v", err)
	}
	doc, _ := parser.ParseHTML(html)
	flags := doc.Find(".reviewscan-flag.flag-green")
	if flags.Length() != 3 {
		t.Fatalf("expected 3 green markers, got %d", flags.Length())
	}
	flags.Each(func(_ int, s *goquery.Selection) {
		if title := s.AttrOr("title", ""); !strings.Contains(title, "m") {
			t.Errorf("hover detail missing message: %q", title)
		}
	})
	if doc.Find("#"+presenter.LoadingID).Length() != 0 {
		t.Fatalf("loading indicator left on page")
	}
	if len(h.alerter.kinds()) != 0 {
		t.Fatalf("unexpected alerts %v", h.alerter.kinds())
	}
}

func TestScanPredictionFailuresAreIndependent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"page": yelpThree}, nil)
	h.predictor.predict = func(text string) (domain.Verdict, error) {
		if strings.Contains(text, "patio") {
			return domain.Verdict{}, domain.NewError(domain.KindPredictionUnavailable, "500", nil)
		}
		return domain.Verdict{Label: domain.LabelFake}, nil
	}

	run, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", Location: "page"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	waitRun(t, run)

	results := run.Results()
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].Verdict != nil || results[1].Error == "" {
		t.Fatalf("second review should have failed: %+v", results[1])
	}
	if results[0].Verdict == nil || results[2].Verdict == nil {
		t.Fatalf("siblings should succeed: %+v", results)
	}

	html, _ := run.HTML()
	doc, _ := parser.ParseHTML(html)
	if doc.Find(".reviewscan-flag.flag-red").Length() != 2 {
		t.Fatalf("expected 2 red markers")
	}

	notices := run.Notices()
	if len(notices) != 1 || notices[0].Kind != domain.KindPredictionUnavailable || notices[0].ReviewID != results[1].ReviewID {
		t.Fatalf("unexpected notices %+v", notices)
	}
	if notices[0].Message != "An error occurred while fetching the prediction. Please try again." {
		t.Fatalf("unexpected message %q", notices[0].Message)
	}
}

func TestScanRequiresLoginWhenConfigured(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]string{"page": yelpThree}, func(d *OrchestratorDeps) { d.RequireLogin = true })

	_, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", Location: "page"})
	if !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	if h.loader.calls.Load() != 0 || h.predictor.calls.Load() != 0 {
		t.Fatalf("scan should not start without a session")
	}

	h.sessions.Begin(session.New("tok", time.Now()))
	run, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", Location: "page"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	waitRun(t, run)
	if h.predictor.calls.Load() != 3 {
		t.Fatalf("expected 3 predictions, got %d", h.predictor.calls.Load())
	}
}

func TestScanRejectsOverlappingScanOfSamePage(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	h := newHarness(t, map[string]string{"a": yelpThree, "b": yelpThree}, nil)
	h.predictor.predict = func(text string) (domain.Verdict, error) {
		<-release
		return domain.Verdict{Label: domain.LabelGenuine}, nil
	}

	first, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", Location: "a"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	again, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", Location: "a"})
	if !errors.Is(err, domain.ErrScanInProgress) {
		t.Fatalf("expected scan in progress, got %v", err)
	}
	if again != first {
		t.Fatalf("rejected scan should return the running one")
	}

	other, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", Location: "b"})
	if err != nil {
		t.Fatalf("other page should scan independently: %v", err)
	}

	close(release)
	waitRun(t, first)
	waitRun(t, other)

	next, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", Location: "a"})
	if err != nil {
		t.Fatalf("rescan after settle should be accepted: %v", err)
	}
	waitRun(t, next)
	if next.State().NewCount != 0 {
		t.Fatalf("rescan should find no new reviews, got %d", next.State().NewCount)
	}
	if first.State().NewCount != 3 {
		t.Fatalf("first scan should find 3 new reviews, got %d", first.State().NewCount)
	}
}

func TestScanPostedMarkup(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, nil)
	run, err := h.orch.Scan(context.Background(), ScanCommand{
		Site:     "trustpilot",
		Location: "https://trustpilot.example/review/shop",
		HTML:     `<div class="review-content__text">Fast delivery.</div>`,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	waitRun(t, run)

	if h.loader.calls.Load() != 0 {
		t.Fatalf("posted markup should not be fetched")
	}
	if run.State().MatchedCount != 1 {
		t.Fatalf("expected one review, got %d", run.State().MatchedCount)
	}
}

func TestScanPostedPagesAreKeyedByContent(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	h := newHarness(t, nil, nil)
	h.predictor.predict = func(string) (domain.Verdict, error) {
		<-release
		return domain.Verdict{Label: domain.LabelGenuine}, nil
	}

	pageA := `<div class="review">Great tacos.</div>`
	pageB := `<div class="review">Cold fries.</div>`

	first, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", HTML: pageA})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	second, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", HTML: pageB})
	if err != nil {
		t.Fatalf("different posted page should scan independently: %v", err)
	}
	if _, err := h.orch.Scan(context.Background(), ScanCommand{Site: "yelp", HTML: pageA}); !errors.Is(err, domain.ErrScanInProgress) {
		t.Fatalf("same posted page should be rejected while running, got %v", err)
	}

	close(release)
	waitRun(t, first)
	waitRun(t, second)
	if first.State().PageKey == second.State().PageKey {
		t.Fatalf("posted pages share key %q", first.State().PageKey)
	}
}

func TestPageKeyOf(t *testing.T) {
	t.Parallel()

	if got := pageKeyOf(domain.SiteYelp, "https://yelp.example/biz", "<p>a</p>"); got != "yelp|https://yelp.example/biz" {
		t.Fatalf("located page keyed by content: %q", got)
	}
	a := pageKeyOf(domain.SiteYelp, "", "<p>a</p>")
	if a != pageKeyOf(domain.SiteYelp, "", "<p>a</p>") || a == pageKeyOf(domain.SiteYelp, "", "<p>b</p>") {
		t.Fatalf("posted page keys should follow content, got %q", a)
	}
	if !strings.HasPrefix(a, "yelp|posted:") {
		t.Fatalf("unexpected key %q", a)
	}
}

func TestScanPageUnavailable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, nil)
	run, err := h.orch.Scan(context.Background(), ScanCommand{Site: "google", Location: "missing"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	waitRun(t, run)

	if run.State().Phase != domain.PhaseFailed {
		t.Fatalf("expected failed phase, got %s", run.State().Phase)
	}
	if kinds := h.alerter.kinds(); len(kinds) != 1 || kinds[0] != domain.KindPageUnavailable {
		t.Fatalf("unexpected alerts %v", kinds)
	}
}

func TestOrchestratorKeepsRecentRuns(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, func(d *OrchestratorDeps) { d.KeepRuns = 2 })

	var ids []string
	for range 3 {
		run, _ := h.orch.Scan(context.Background(), ScanCommand{Site: "nowhere"})
		ids = append(ids, run.ID())
	}

	if _, ok := h.orch.Lookup(ids[0]); ok {
		t.Fatalf("oldest run should be evicted")
	}
	for _, id := range ids[1:] {
		if _, ok := h.orch.Lookup(id); !ok {
			t.Fatalf("run %s should be kept", id)
		}
	}
}

package usecase

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ReviewScanner/internal/domain"
)

// Result is the outcome for one review of a run. Verdict is nil when the
// prediction failed.
type Result struct {
	ReviewID string          `json:"review_id"`
	Index    int             `json:"index"`
	Text     string          `json:"text"`
	Verdict  *domain.Verdict `json:"verdict,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Run is one scan of one page. All accessors are safe for concurrent use.
type Run struct {
	mu       sync.Mutex
	state    domain.ScanState
	location string
	settings domain.Settings
	doc      *goquery.Document
	results  map[string]Result
	notices  []domain.Notice

	settled    chan struct{}
	settleOnce sync.Once
}

func newRun(id string, site domain.SiteID, pageKey, location string, settings domain.Settings, now time.Time) *Run {
	return &Run{
		state: domain.ScanState{
			ScanID:    id,
			Site:      site,
			PageKey:   pageKey,
			Phase:     domain.PhaseIdle,
			StartedAt: now,
		},
		location: location,
		settings: settings,
		results:  make(map[string]Result),
		settled:  make(chan struct{}),
	}
}

// ID is the scan id.
func (r *Run) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.ScanID
}

// State returns a snapshot of the scan state.
func (r *Run) State() domain.ScanState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Settings returns the settings the run was rendered with.
func (r *Run) Settings() domain.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Location is the scanned page's URL or path; empty for posted markup.
func (r *Run) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Notices returns the alerts raised during the run.
func (r *Run) Notices() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.notices)
}

// Results returns delivered outcomes ordered by page position.
func (r *Run) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Result, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res)
	}
	slices.SortFunc(out, func(a, b Result) int { return a.Index - b.Index })
	return out
}

// Result looks up the outcome for one review.
func (r *Run) Result(reviewID string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[reviewID]
	return res, ok
}

// HTML serialises the run's annotated document.
func (r *Run) HTML() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return "", nil
	}
	return r.doc.Html()
}

// Done is closed once every delivery has been rendered.
func (r *Run) Done() <-chan struct{} {
	return r.settled
}

// Wait blocks until the run settles or ctx ends.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) setPhase(phase domain.Phase) {
	r.mu.Lock()
	r.state.Phase = phase
	r.mu.Unlock()
}

func (r *Run) addNotice(n domain.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// withDocument runs fn while holding the run lock.
func (r *Run) withDocument(fn func(doc *goquery.Document)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.doc)
}

// settle marks the run finished. phase is applied unless empty.
func (r *Run) settle(phase domain.Phase, now time.Time) {
	r.settleOnce.Do(func() {
		r.mu.Lock()
		if phase != "" {
			r.state.Phase = phase
		}
		r.state.InProgress = false
		r.state.FinishedAt = now
		r.mu.Unlock()
		close(r.settled)
	})
}

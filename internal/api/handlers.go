package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/i18n"
	"ReviewScanner/internal/ports"
	"ReviewScanner/internal/report"
	"ReviewScanner/internal/session"
	"ReviewScanner/internal/usecase"
)

const scanAction = "scanReviews"

// HandlerDeps wires the handler.
type HandlerDeps struct {
	Orchestrator *usecase.Orchestrator
	ReviewAPI    ports.ReviewAPI
	Explainer    ports.Explainer
	Settings     ports.SettingsStore
	SessionStore ports.SessionStore
	Sessions     *session.Manager
	History      ports.HistoryRepository
	Logger       *slog.Logger
	Now          func() time.Time
}

// Handler serves the command service.
type Handler struct {
	orch      *usecase.Orchestrator
	reviews   ports.ReviewAPI
	explainer ports.Explainer
	settings  ports.SettingsStore
	store     ports.SessionStore
	sessions  *session.Manager
	history   ports.HistoryRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler builds a handler; nil Explainer makes explain return 501.
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		orch:      deps.Orchestrator,
		reviews:   deps.ReviewAPI,
		explainer: deps.Explainer,
		settings:  deps.Settings,
		store:     deps.SessionStore,
		sessions:  deps.Sessions,
		history:   deps.History,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.sessions == nil {
		h.sessions = session.NewManager(h.now)
	}
	return h
}

type commandRequest struct {
	Action string `json:"action" binding:"required"`
	Site   string `json:"site"`
	URL    string `json:"url"`
	HTML   string `json:"html"`
}

// Command accepts {"action":"scanReviews"} and acknowledges before any
// prediction completes.
func (h *Handler) Command(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Action != scanAction {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + strconv.Quote(req.Action)})
		return
	}

	run, err := h.orch.Scan(c.Request.Context(), usecase.ScanCommand{
		Site:     req.Site,
		Location: req.URL,
		HTML:     req.HTML,
		Session:  h.session(c),
	})
	if err != nil {
		h.writeError(c, err, gin.H{"scan_id": run.ID()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": i18n.Sprintf(run.Settings().Language, i18n.ScanStarted),
		"scan_id": run.ID(),
	})
}

type scanView struct {
	State   domain.ScanState `json:"state"`
	Notices []domain.Notice  `json:"notices"`
	Results []usecase.Result `json:"results,omitempty"`
	Summary *report.Summary  `json:"summary,omitempty"`
}

func viewOf(run *usecase.Run, withResults bool) scanView {
	v := scanView{State: run.State(), Notices: run.Notices()}
	if withResults {
		v.Results = run.Results()
		summary := report.Summarize(report.FromRun(run))
		v.Summary = &summary
	}
	return v
}

// CurrentScan returns the most recent scan state, or idle.
func (h *Handler) CurrentScan(c *gin.Context) {
	run, state := h.orch.Current()
	if run == nil {
		c.JSON(http.StatusOK, scanView{State: state, Notices: []domain.Notice{}})
		return
	}
	c.JSON(http.StatusOK, viewOf(run, false))
}

// GetScan returns state, notices and results of one scan.
func (h *Handler) GetScan(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewOf(run, true))
}

// ScanPage returns the annotated page.
func (h *Handler) ScanPage(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	page, err := run.HTML()
	if err != nil {
		h.logger.Error("serialise page", "scan_id", run.ID(), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if page == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan has no page"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// ScanReportMarkdown exports the scan as Markdown.
func (h *Handler) ScanReportMarkdown(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	state := run.State()
	var buf bytes.Buffer
	meta := report.Meta{ScanID: state.ScanID, Site: state.Site, Page: run.Location(), GeneratedAt: h.now()}
	if err := report.WriteMarkdown(&buf, meta, report.FromRun(run)); err != nil {
		h.logger.Error("render markdown report", "scan_id", state.ScanID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
}

// ScanReportCSV exports the scan as CSV.
func (h *Handler) ScanReportCSV(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, report.FromRun(run)); err != nil {
		h.logger.Error("render csv report", "scan_id", run.ID(), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reviews.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Explain asks the explainer why one review got its verdict.
func (h *Handler) Explain(c *gin.Context) {
	if h.explainer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "explanations are not configured"})
		return
	}
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	res, found := run.Result(c.Param("rid"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}
	if res.Verdict == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "review has no verdict"})
		return
	}

	text, err := h.explainer.Explain(c.Request.Context(), res.Text, *res.Verdict)
	if err != nil {
		h.logger.Warn("explain review", "review_id", res.ReviewID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"review_id": res.ReviewID, "explanation": text})
}

// Login exchanges credentials for a session and keeps it.
func (h *Handler) Login(c *gin.Context) {
	var creds ports.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.reviews.Login(c.Request.Context(), creds)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "kind": domain.KindOf(err)})
		return
	}
	h.sessions.Begin(sess)
	if h.store != nil {
		if err := h.store.SaveSessionToken(c.Request.Context(), sess.Token); err != nil {
			h.logger.Warn("persist session", "error", err)
		}
	}

	body := gin.H{"access_token": sess.Token}
	if !sess.ExpiresAt.IsZero() {
		body["expires_at"] = sess.ExpiresAt
	}
	c.JSON(http.StatusOK, body)
}

// Logout destroys the process session.
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.End()
	if h.store != nil {
		if err := h.store.ClearSessionToken(c.Request.Context()); err != nil {
			h.logger.Warn("clear session", "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

type feedbackRequest struct {
	ReviewID   string `json:"review_id"`
	IsPositive *bool  `json:"is_positive"`
	ReviewText string `json:"review_text"`
	Prediction string `json:"prediction"`
	Feedback   string `json:"feedback"`
}

// Feedback forwards either the thumbs flow or the free-text flow.
func (h *Handler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		ack ports.Ack
		err error
	)
	switch {
	case req.ReviewID != "" && req.IsPositive != nil:
		ack, err = h.reviews.SubmitFeedback(c.Request.Context(), h.session(c), ports.Feedback{ReviewID: req.ReviewID, IsPositive: *req.IsPositive})
	case req.ReviewText != "" && req.Feedback != "":
		ack, err = h.reviews.SubmitTextFeedback(c.Request.Context(), h.session(c), ports.TextFeedback{
			ReviewText: req.ReviewText,
			Prediction: req.Prediction,
			Feedback:   req.Feedback,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "send review_id and is_positive, or review_text and feedback"})
		return
	}
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	h.ack(c, ack)
}

// Report flags a review; it needs a session.
func (h *Handler) Report(c *gin.Context) {
	var req struct {
		ReviewText string `json:"review_text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ack, err := h.reviews.Report(c.Request.Context(), h.session(c), req.ReviewText)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	h.ack(c, ack)
}

// Rate forwards a 1-5 star rating.
func (h *Handler) Rate(c *gin.Context) {
	var req struct {
		ReviewID string `json:"review_id" binding:"required"`
		Rating   int    `json:"rating" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}
	ack, err := h.reviews.Rate(c.Request.Context(), h.session(c), req.ReviewID, req.Rating)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	h.ack(c, ack)
}

// GetSettings returns userSettings.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settings.LoadSettings(c.Request.Context())
	if err != nil {
		h.logger.Error("load settings", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PutSettings validates and replaces userSettings.
func (h *Handler) PutSettings(c *gin.Context) {
	var settings domain.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	normalized, err := settings.Normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.settings.SaveSettings(c.Request.Context(), normalized); err != nil {
		h.logger.Error("save settings", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, normalized)
}

// GetProfile returns userProfile.
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.settings.LoadProfile(c.Request.Context())
	if err != nil {
		h.logger.Error("load profile", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// PutProfile replaces userProfile.
func (h *Handler) PutProfile(c *gin.Context) {
	var profile domain.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.settings.SaveProfile(c.Request.Context(), profile); err != nil {
		h.logger.Error("save profile", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// History lists past verdicts with filter, search and sort, plus totals.
func (h *Handler) History(c *gin.Context) {
	q, err := ParseHistoryQuery(c.Query("site"), c.Query("label"), c.Query("q"), c.Query("since"), c.Query("sort"), c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.history.ListHistory(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("list history", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"summary": report.Summarize(report.FromHistory(entries)),
	})
}

// Health reports liveness and the supported sites.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().Format(time.RFC3339),
		"sites":     h.orch.Sites(),
	})
}

// ParseHistoryQuery turns query-string values into a HistoryQuery. since
// accepts RFC 3339 or a Go duration such as 72h; sort is newest or oldest.
func ParseHistoryQuery(site, label, keyword, since, sort, limit string) (domain.HistoryQuery, error) {
	q := domain.HistoryQuery{Site: domain.ParseSiteID(site), Keyword: strings.TrimSpace(keyword)}

	if label != "" {
		l, err := domain.ParseLabel(label)
		if err != nil {
			return q, err
		}
		q.Label = l
	}

	if since != "" {
		if d, err := time.ParseDuration(since); err == nil {
			q.Since = time.Now().Add(-d)
		} else if t, err := time.Parse(time.RFC3339, since); err == nil {
			q.Since = t
		} else {
			return q, errors.New("since must be RFC 3339 or a duration")
		}
	}

	switch strings.ToLower(sort) {
	case "", "newest", "date_desc":
	case "oldest", "date_asc":
		q.Oldest = true
	default:
		return q, errors.New("sort must be newest or oldest")
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return q, errors.New("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	return q, nil
}

func (h *Handler) lookup(c *gin.Context) (*usecase.Run, bool) {
	run, ok := h.orch.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return nil, false
	}
	return run, true
}

// session prefers the request's bearer token over the process session.
func (h *Handler) session(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return h.sessions.Optional()
}

func (h *Handler) ack(c *gin.Context, ack ports.Ack) {
	if ack.Message == "" {
		ack.Message = i18n.Sprintf(h.language(c), i18n.FeedbackThanks)
	}
	c.JSON(http.StatusOK, ack)
}

func (h *Handler) language(c *gin.Context) string {
	if h.settings == nil {
		return "en"
	}
	s, err := h.settings.LoadSettings(c.Request.Context())
	if err != nil {
		return "en"
	}
	return s.Language
}

func (h *Handler) writeError(c *gin.Context, err error, extra gin.H) {
	body := gin.H{"error": err.Error()}
	kind := domain.KindOf(err)
	if kind != "" {
		body["kind"] = kind
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(statusFor(kind), body)
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindUnsupportedSite, domain.KindPageUnavailable:
		return http.StatusBadRequest
	case domain.KindAuthRequired:
		return http.StatusUnauthorized
	case domain.KindScanInProgress:
		return http.StatusConflict
	case domain.KindNoReviewsFound:
		return http.StatusNotFound
	case domain.KindPredictionUnavailable, domain.KindSubmissionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Package presenter renders scan progress and verdict markers into a page
// document. Rendering is keyed by review id so a repeated Render replaces
// the previous marker instead of adding a second one.
package presenter

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/i18n"
	"ReviewScanner/internal/ports"
)

// Attributes and ids written into the document.
const (
	AttrReviewID  = "data-reviewscan-id"
	AttrOrigStyle = "data-reviewscan-style"
	AttrLayout    = "data-reviewscan-layout"
	AttrLanguage  = "data-reviewscan-lang"
	LoadingID     = "reviewscan-loading"
	StylesheetID  = "reviewscan-stylesheet"
	DarkModeClass = "dark-mode"

	markers = ".reviewscan-flag, .reviewscan-controls, .reviewscan-detail"
)

const stylesheet = `.reviewscan-flag{font-weight:bold;margin-right:6px;padding:1px 4px;border-radius:3px;color:#fff}
.flag-red{background:#d93025}.flag-yellow{background:#f9ab00}.flag-green{background:#188038}
.reviewscan-controls button{margin-right:2px}
#reviewscan-loading{position:fixed;top:8px;right:8px;padding:6px 10px;background:#202124;color:#fff;z-index:99999}
body.dark-mode{background:#202124;color:#e8eaed}`

type look struct {
	class string
	color string
}

var looks = map[domain.Label]look{
	domain.LabelFake:       {"flag-red", "#d93025"},
	domain.LabelSuspicious: {"flag-yellow", "#f9ab00"},
	domain.LabelGenuine:    {"flag-green", "#188038"},
}

// Presenter is stateless; everything it needs lives on the document.
// It is not safe for concurrent use on the same document.
type Presenter struct {
	policy *bluemonday.Policy
}

var _ ports.Presenter = (*Presenter)(nil)

// New builds a presenter that strips markup from server-provided text.
func New() *Presenter {
	return &Presenter{policy: bluemonday.StrictPolicy()}
}

// Reset removes every marker and the loading indicator, and restores
// original element styles.
func (p *Presenter) Reset(doc *goquery.Document) {
	if doc == nil {
		return
	}
	doc.Find(markers).Remove()
	doc.Find("#" + LoadingID).Remove()
	doc.Find("[" + AttrOrigStyle + "]").Each(func(_ int, s *goquery.Selection) {
		orig := s.AttrOr(AttrOrigStyle, "")
		if orig == "" {
			s.RemoveAttr("style")
		} else {
			s.SetAttr("style", orig)
		}
		s.RemoveAttr(AttrOrigStyle)
	})
	doc.Find("[" + AttrReviewID + "]").RemoveAttr(AttrReviewID)
}

// ApplySettings records layout and language on <body> and toggles dark mode.
func (p *Presenter) ApplySettings(doc *goquery.Document, settings domain.Settings) {
	if doc == nil {
		return
	}
	body := doc.Find("body").First()
	body.SetAttr(AttrLayout, string(settings.Layout))
	body.SetAttr(AttrLanguage, settings.Language)
	if settings.DarkMode {
		body.AddClass(DarkModeClass)
	} else {
		body.RemoveClass(DarkModeClass)
	}

	if doc.Find("#"+StylesheetID).Length() == 0 {
		target := doc.Find("head").First()
		if target.Length() == 0 {
			target = body
		}
		target.AppendHtml(fmt.Sprintf(`<style id="%s">%s</style>`, StylesheetID, stylesheet))
	}
}

// ShowLoading adds the loading indicator once.
func (p *Presenter) ShowLoading(doc *goquery.Document) {
	if doc == nil || doc.Find("#"+LoadingID).Length() > 0 {
		return
	}
	lang := doc.Find("body").First().AttrOr(AttrLanguage, "en")
	doc.Find("body").First().PrependHtml(fmt.Sprintf(
		`<div id="%s" class="reviewscan-loading">%s</div>`,
		LoadingID, html.EscapeString(i18n.Sprintf(lang, i18n.Loading)),
	))
}

// HideLoading removes the loading indicator if present.
func (p *Presenter) HideLoading(doc *goquery.Document) {
	if doc == nil {
		return
	}
	doc.Find("#" + LoadingID).Remove()
}

// Render attaches exactly one marker to the review element.
func (p *Presenter) Render(raw domain.RawReview, verdict domain.Verdict) {
	node := raw.Node
	if node == nil || node.Length() == 0 {
		return
	}
	lk, ok := looks[verdict.Label]
	if !ok {
		return
	}

	body := node.Closest("body")
	lang := body.AttrOr(AttrLanguage, "en")
	layout := domain.Layout(body.AttrOr(AttrLayout, string(domain.LayoutCompact)))

	node.SetAttr(AttrReviewID, raw.ID)
	node.ChildrenFiltered(markers).Remove()

	orig, saved := node.Attr(AttrOrigStyle)
	if !saved {
		orig = node.AttrOr("style", "")
		node.SetAttr(AttrOrigStyle, orig)
	}
	node.SetAttr("style", mergeStyle(orig, "border: 2px solid "+lk.color))

	detail := p.Detail(verdict)
	node.PrependHtml(fmt.Sprintf(
		`<span class="reviewscan-flag %s" data-review-id="%s" data-label="%s" title="%s">%s</span>`,
		lk.class,
		html.EscapeString(raw.ID),
		html.EscapeString(string(verdict.Label)),
		html.EscapeString(detail),
		html.EscapeString(i18n.Sprintf(lang, verdict.Label.Title())),
	))
	node.AppendHtml(controls(raw.ID, lang))

	if layout == domain.LayoutDetailed && detail != "" {
		node.AppendHtml(fmt.Sprintf(
			`<div class="reviewscan-detail">%s</div>`,
			strings.ReplaceAll(html.EscapeString(detail), "\n", "<br>"),
		))
	}
}

// Detail is the hover text: message, reasons and sentiment, one per line.
func (p *Presenter) Detail(verdict domain.Verdict) string {
	var lines []string
	if msg := p.clean(verdict.Message); msg != "" {
		lines = append(lines, "Message: "+msg)
	}
	if len(verdict.Reasons) > 0 {
		reasons := make([]string, 0, len(verdict.Reasons))
		for _, r := range verdict.Reasons {
			if r = p.clean(r); r != "" {
				reasons = append(reasons, r)
			}
		}
		if len(reasons) > 0 {
			lines = append(lines, "Reasons: "+strings.Join(reasons, ", "))
		}
	}
	if verdict.SentimentScore != nil {
		lines = append(lines, fmt.Sprintf("Sentiment: %.2f", *verdict.SentimentScore))
	}
	return strings.Join(lines, "\n")
}

// clean strips any markup the backend sent and decodes entities.
func (p *Presenter) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(p.policy.Sanitize(s)))
}

func controls(reviewID, lang string) string {
	id := html.EscapeString(reviewID)
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="reviewscan-controls" data-review-id="%s">`, id)
	fmt.Fprintf(&b, `<button data-action="feedback" data-review-id="%s" data-positive="true">👍</button>`, id)
	fmt.Fprintf(&b, `<button data-action="feedback" data-review-id="%s" data-positive="false">👎</button>`, id)
	for star := 1; star <= 5; star++ {
		fmt.Fprintf(&b, `<button data-action="rate" data-review-id="%s" data-rating="%d">%d★</button>`, id, star, star)
	}
	fmt.Fprintf(&b, `<button data-action="report" data-review-id="%s">%s</button>`, id, html.EscapeString(i18n.Sprintf(lang, i18n.Report)))
	b.WriteString(`</div>`)
	return b.String()
}

func mergeStyle(orig, extra string) string {
	orig = strings.TrimSpace(orig)
	if orig == "" {
		return extra
	}
	if !strings.HasSuffix(orig, ";") {
		orig += ";"
	}
	return orig + " " + extra
}

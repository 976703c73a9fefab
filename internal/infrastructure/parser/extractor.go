package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/ports"
	"ReviewScanner/internal/scanner"
)

// reviewNamespace seeds UUIDv5 review ids.
var reviewNamespace = uuid.MustParse("6f1c1b52-9a7e-4c51-8d7e-3f0c2a4be0d1")

// invisible lists nodes whose text never reaches innerText, plus the
// markers this tool renders itself.
const invisible = "script, style, noscript, template, .reviewscan-flag, .reviewscan-controls, .reviewscan-detail"

// Extractor maps a site's matched elements to raw reviews.
type Extractor struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.ReviewExtractor = (*Extractor)(nil)

// NewExtractor wires the site registry.
func NewExtractor(reg *scanner.Registry, logger *slog.Logger) *Extractor {
	return &Extractor{registry: reg, logger: logger}
}

// Extract applies the site's selector once; it does not wait for content
// that scripts would add later. Zero matches yield an empty slice.
func (e *Extractor) Extract(doc *goquery.Document, site domain.SiteID) ([]domain.RawReview, error) {
	if e.registry == nil {
		return nil, fmt.Errorf("site registry is not configured")
	}
	rule, err := e.registry.Resolve(site)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.NewError(domain.KindPageUnavailable, "no document", nil)
	}

	matches := doc.Find(rule.Selector)
	reviews := make([]domain.RawReview, 0, matches.Length())
	matches.Each(func(i int, sel *goquery.Selection) {
		text := VisibleText(sel)
		reviews = append(reviews, domain.RawReview{
			ID:    ReviewID(rule.Site, i, text),
			Site:  rule.Site,
			Index: i,
			Text:  text,
			Node:  sel,
		})
	})

	e.debug("extracted reviews", "site", rule.Site, "selector", rule.Selector, "count", len(reviews))
	return reviews, nil
}

// VisibleText approximates innerText: hidden nodes dropped, whitespace collapsed.
func VisibleText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find(invisible).Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}

// ReviewID is stable for the same element position and text, so a
// re-scanned page keeps its review identities.
func ReviewID(site domain.SiteID, index int, text string) string {
	return uuid.NewSHA1(reviewNamespace, fmt.Appendf(nil, "%s|%d|%s", site, index, text)).String()
}

func (e *Extractor) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

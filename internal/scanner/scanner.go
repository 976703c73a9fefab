package scanner

import (
	"fmt"
	"sort"
	"strings"

	"ReviewScanner/internal/domain"
)

var defaultRules = []domain.ExtractionRule{
	{Site: domain.SiteGoogle, Selector: ".section-review-content"},
	{Site: domain.SiteYelp, Selector: ".review"},
	{Site: domain.SiteAmazon, Selector: ".review-text"},
	{Site: domain.SiteTripadvisor, Selector: ".partial_entry"},
	{Site: domain.SiteTrustpilot, Selector: ".review-content__text"},
}

// Registry keeps a mapping from site identifiers to extraction rules.
// It is filled at wiring time and only read afterwards.
type Registry struct {
	rules map[domain.SiteID]domain.ExtractionRule
}

// NewRegistry builds a registry holding the built-in site rules.
func NewRegistry() *Registry {
	r := &Registry{rules: map[domain.SiteID]domain.ExtractionRule{}}
	for _, rule := range defaultRules {
		r.rules[rule.Site] = rule
	}
	return r
}

// Register adds or replaces a rule.
func (r *Registry) Register(rule domain.ExtractionRule) error {
	site := domain.ParseSiteID(string(rule.Site))
	if site == "" {
		return fmt.Errorf("site id is empty")
	}
	if strings.TrimSpace(rule.Selector) == "" {
		return fmt.Errorf("site %s: selector is empty", site)
	}
	if r.rules == nil {
		r.rules = map[domain.SiteID]domain.ExtractionRule{}
	}
	r.rules[site] = domain.ExtractionRule{Site: site, Selector: strings.TrimSpace(rule.Selector)}
	return nil
}

// Resolve returns the rule for a site or an UnsupportedSite error.
func (r *Registry) Resolve(site domain.SiteID) (domain.ExtractionRule, error) {
	if rule, ok := r.rules[domain.ParseSiteID(string(site))]; ok {
		return rule, nil
	}
	return domain.ExtractionRule{}, domain.NewError(domain.KindUnsupportedSite, fmt.Sprintf("site %q is not registered", site), nil)
}

// Sites lists registered ids in alphabetical order.
func (r *Registry) Sites() []domain.SiteID {
	sites := make([]domain.SiteID, 0, len(r.rules))
	for site := range r.rules {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
	return sites
}

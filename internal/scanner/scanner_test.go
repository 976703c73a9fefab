package scanner

import (
	"errors"
	"testing"

	"ReviewScanner/internal/domain"
)

func TestResolveBuiltInSites(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	rule, err := reg.Resolve("Yelp")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if rule.Selector != ".review" {
		t.Fatalf("unexpected selector: %s", rule.Selector)
	}
	if len(reg.Sites()) != 5 {
		t.Fatalf("expected 5 built-in sites, got %d", len(reg.Sites()))
	}
}

func TestResolveUnknownSite(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Resolve("ebay")
	if !errors.Is(err, domain.ErrUnsupportedSite) {
		t.Fatalf("expected unsupported site, got %v", err)
	}
}

func TestRegisterAddsSite(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(domain.ExtractionRule{Site: "Etsy", Selector: " .review-body "}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	rule, err := reg.Resolve("etsy")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if rule.Selector != ".review-body" {
		t.Fatalf("unexpected selector: %q", rule.Selector)
	}

	if err := reg.Register(domain.ExtractionRule{Site: "x"}); err == nil {
		t.Fatalf("expected error for empty selector")
	}
}

package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestSprintfTranslates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		lang string
		key  string
		args []any
		want string
	}{
		{"en", NoReviewsFound, nil, "No reviews found for the selected site."},
		{"fr", NewReviews, []any{3}, "3 nouveaux avis trouvés !"},
		{"es-MX", Fake, nil, "Falsa"},
		{"de", NewReviews, []any{2}, "Found 2 new reviews!"},
		{"", ScanStarted, nil, "Scanning for fake reviews..."},
	}

	for _, tc := range cases {
		if got := Sprintf(tc.lang, tc.key, tc.args...); got != tc.want {
			t.Fatalf("Sprintf(%q, %q) = %q, want %q", tc.lang, tc.key, got, tc.want)
		}
	}
}

func TestTagMatchesRegionalVariants(t *testing.T) {
	t.Parallel()

	if Tag("fr-CA") != language.French {
		t.Fatalf("fr-CA should resolve to French, got %v", Tag("fr-CA"))
	}
	if Tag("zz") != language.English {
		t.Fatalf("unknown language should resolve to English, got %v", Tag("zz"))
	}
}

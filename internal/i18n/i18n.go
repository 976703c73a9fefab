// Package i18n holds the user-facing strings in every supported language.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the key.
const (
	ScanStarted           = "Scanning for fake reviews..."
	Loading               = "Loading reviews..."
	NoReviewsFound        = "No reviews found for the selected site."
	PredictionUnavailable = "An error occurred while fetching the prediction. Please try again."
	UnsupportedSite       = "This site is not supported."
	AuthRequired          = "Please log in to scan reviews."
	ScanInProgress        = "A scan of this page is already running."
	PageUnavailable       = "The page could not be loaded."
	SubmissionFailed      = "Your submission could not be sent. Please try again."
	NewReviews            = "Found %d new reviews!"
	FeedbackThanks        = "Thank you for your feedback!"
	Report                = "Report"
	Fake                  = "Fake"
	Suspicious            = "Suspicious"
	Genuine               = "Genuine"
)

var supported = []language.Tag{language.English, language.French, language.Spanish}

var translations = map[language.Tag]map[string]string{
	language.French: {
		ScanStarted:           "Recherche de faux avis...",
		Loading:               "Chargement des avis...",
		NoReviewsFound:        "Aucun avis trouvé pour le site sélectionné.",
		PredictionUnavailable: "Une erreur est survenue lors de la prédiction. Veuillez réessayer.",
		UnsupportedSite:       "Ce site n'est pas pris en charge.",
		AuthRequired:          "Veuillez vous connecter pour analyser les avis.",
		ScanInProgress:        "Une analyse de cette page est déjà en cours.",
		PageUnavailable:       "La page n'a pas pu être chargée.",
		SubmissionFailed:      "Votre envoi a échoué. Veuillez réessayer.",
		NewReviews:            "%d nouveaux avis trouvés !",
		FeedbackThanks:        "Merci pour votre retour !",
		Report:                "Signaler",
		Fake:                  "Faux",
		Suspicious:            "Suspect",
		Genuine:               "Authentique",
	},
	language.Spanish: {
		ScanStarted:           "Buscando reseñas falsas...",
		Loading:               "Cargando reseñas...",
		NoReviewsFound:        "No se encontraron reseñas para el sitio seleccionado.",
		PredictionUnavailable: "Se produjo un error al obtener la predicción. Inténtalo de nuevo.",
		UnsupportedSite:       "Este sitio no es compatible.",
		AuthRequired:          "Inicia sesión para analizar reseñas.",
		ScanInProgress:        "Ya se está analizando esta página.",
		PageUnavailable:       "No se pudo cargar la página.",
		SubmissionFailed:      "No se pudo enviar. Inténtalo de nuevo.",
		NewReviews:            "¡Se encontraron %d reseñas nuevas!",
		FeedbackThanks:        "¡Gracias por tus comentarios!",
		Report:                "Denunciar",
		Fake:                  "Falsa",
		Suspicious:            "Sospechosa",
		Genuine:               "Auténtica",
	},
}

var (
	cat     = newCatalog()
	matcher = language.NewMatcher(supported)
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, tag := range supported {
		for _, key := range keys() {
			text := key
			if tr, ok := translations[tag][key]; ok {
				text = tr
			}
			_ = b.SetString(tag, key, text)
		}
	}
	return b
}

func keys() []string {
	return []string{
		ScanStarted, Loading, NoReviewsFound, PredictionUnavailable, UnsupportedSite,
		AuthRequired, ScanInProgress, PageUnavailable, SubmissionFailed, NewReviews,
		FeedbackThanks, Report, Fake, Suspicious, Genuine,
	}
}

// Tag resolves a settings language to the closest supported tag.
func Tag(lang string) language.Tag {
	tag, _, _ := matcher.Match(language.Make(lang))
	base, _ := tag.Base()
	for _, s := range supported {
		if b, _ := s.Base(); b == base {
			return s
		}
	}
	return language.English
}

// Sprintf formats key in lang, falling back to English.
func Sprintf(lang, key string, args ...any) string {
	return message.NewPrinter(Tag(lang), message.Catalog(cat)).Sprintf(key, args...)
}

package reply

import (
	"regexp"
	"strings"

	"github.com/gostly/gostly-backend/internal/phrases"
)

var (
	croatianDiacritics = regexp.MustCompile(`[čćžšđČĆŽŠĐ]`)
	croatianWords      = regexp.MustCompile(`(?i)(^|[^\p{L}])(bok|pozdrav|hvala|molim|gdje|kada|kako|koliko|može|moze|mogu|ima li|imate|je li|dobar dan|dobro jutro|dobra večer|laku noć|sobe?|apartman\w*|prijava|odjava|parkiralište|parking mjesto|lozinka|doručak|plaža|trgovina|ljubimc\w*)($|[^\p{L}])`)
)

// DetectLanguage is a coarse local guess, used only to pick fixed texts. The
// model is told to mirror the guest's own language.
func DetectLanguage(text string) phrases.Language {
	if croatianDiacritics.MatchString(text) || croatianWords.MatchString(text) {
		return phrases.Croatian
	}
	return phrases.English
}

// ResolveLanguage applies the property's declared preference. A single
// supported language wins over detection; "auto", lists and unsupported tags
// fall back to detection.
func ResolveLanguage(preference, text string) phrases.Language {
	pref := strings.TrimSpace(strings.ToLower(preference))
	if pref != "" && pref != "auto" && !strings.Contains(pref, ",") {
		if lang, ok := phrases.ParseLanguage(pref); ok {
			return lang
		}
	}
	detected := DetectLanguage(text)
	if pref == "" || pref == "auto" || !strings.Contains(pref, ",") {
		return detected
	}

	// A declared list keeps the detected language when listed, otherwise the
	// first supported entry.
	var first phrases.Language
	for _, part := range strings.Split(pref, ",") {
		lang, ok := phrases.ParseLanguage(part)
		if !ok {
			continue
		}
		if lang == detected {
			return detected
		}
		if first == "" {
			first = lang
		}
	}
	if first != "" {
		return first
	}
	return detected
}

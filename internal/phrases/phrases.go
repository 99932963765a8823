// Package phrases holds the fixed guest-facing sentences in every supported
// language. The fallback sentence doubles as the escalation signal, so the
// prompt builder and the classifier both read it from here.
package phrases

import (
	"fmt"
	"strings"
)

// Language is a supported guest language for fixed texts.
type Language string

const (
	English  Language = "en"
	Croatian Language = "hr"
)

// Supported lists languages with a full catalog, default first.
var Supported = []Language{English, Croatian}

// ParseLanguage maps a language tag like "hr" or "en-GB" to a supported language.
func ParseLanguage(value string) (Language, bool) {
	tag := strings.ToLower(strings.TrimSpace(value))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	for _, lang := range Supported {
		if string(lang) == tag {
			return lang, true
		}
	}
	return "", false
}

// Name is the English name of the language used inside prompts.
func (l Language) Name() string {
	return catalogFor(l).name
}

type catalog struct {
	name         string
	fallback     string
	forwarding   string
	technical    string
	missingCode  string
	unknownCode  string
	noPlan       string
	limitReached string
	unavailable  string
	slowDown     string
}

var catalogs = map[Language]catalog{
	English: {
		name:         "English",
		fallback:     "I don't have that information. I'll forward your question to the host.",
		forwarding:   "I'll forward your question to the host. They will get back to you shortly.",
		technical:    "Sorry, I'm having technical difficulties right now. Please try again in a few minutes.",
		missingCode:  "Please start your message with your property code, for example: VILLA1: What time is check-in?",
		unknownCode:  "Unknown property code %s. Please check the code you received from your host.",
		noPlan:       "This property's assistant is not active right now. Please contact the host directly.",
		limitReached: "This property's assistant has reached its monthly message limit. Please contact the host directly.",
		unavailable:  "We can't process your message right now. Please try again later.",
		slowDown:     "You're sending messages too quickly. Please wait a moment and try again.",
	},
	Croatian: {
		name:         "Croatian",
		fallback:     "Nemam tu informaciju. Proslijedit ću vaše pitanje domaćinu.",
		forwarding:   "Proslijedit ću vaše pitanje domaćinu. Javit će vam se uskoro.",
		technical:    "Oprostite, trenutno imam tehničkih poteškoća. Pokušajte ponovno za nekoliko minuta.",
		missingCode:  "Molimo započnite poruku kodom smještaja, na primjer: VILLA1: Kada je prijava?",
		unknownCode:  "Nepoznat kod smještaja %s. Provjerite kod koji ste dobili od domaćina.",
		noPlan:       "Asistent ovog smještaja trenutno nije aktivan. Molimo kontaktirajte domaćina izravno.",
		limitReached: "Asistent ovog smještaja dosegnuo je mjesečni limit poruka. Molimo kontaktirajte domaćina izravno.",
		unavailable:  "Trenutno ne možemo obraditi vašu poruku. Pokušajte ponovno kasnije.",
		slowDown:     "Šaljete poruke prebrzo. Pričekajte trenutak i pokušajte ponovno.",
	},
}

func catalogFor(lang Language) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[English]
}

// Fallback is the literal "unknown fact" sentence the model must emit verbatim.
func Fallback(lang Language) string { return catalogFor(lang).fallback }

// Forwarding replaces the reply whenever the conversation escalates.
func Forwarding(lang Language) string { return catalogFor(lang).forwarding }

// Technical is returned when the completion call fails. It never escalates.
func Technical(lang Language) string { return catalogFor(lang).technical }

func MissingCode(lang Language) string { return catalogFor(lang).missingCode }

func UnknownCode(lang Language, code string) string {
	return fmt.Sprintf(catalogFor(lang).unknownCode, code)
}

func NoPlan(lang Language) string       { return catalogFor(lang).noPlan }
func LimitReached(lang Language) string { return catalogFor(lang).limitReached }
func Unavailable(lang Language) string  { return catalogFor(lang).unavailable }
func SlowDown(lang Language) string     { return catalogFor(lang).slowDown }

// FallbackSentences returns the fallback sentence of every supported language.
func FallbackSentences() []string {
	out := make([]string, 0, len(Supported))
	for _, lang := range Supported {
		out = append(out, Fallback(lang))
	}
	return out
}

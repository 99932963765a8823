// Package escalation decides when a guest turn should be handed to the host.
package escalation

import (
	"regexp"
	"strings"

	"github.com/gostly/gostly-backend/internal/phrases"
)

// Trigger names why a turn escalated.
type Trigger string

const (
	TriggerNone            Trigger = ""
	TriggerExplicitRequest Trigger = "explicit_request"
	TriggerFallbackReply   Trigger = "fallback_reply"
)

type Verdict struct {
	Escalate bool
	Trigger  Trigger
}

// Policy inspects the guest text and the generated reply.
type Policy interface {
	ShouldEscalate(guestText, generatedReply string) Verdict
}

var defaultKeywords = []string{
	// en
	"human", "person", "real person", "host", "owner", "agent", "operator",
	"call me", "call", "phone me", "speak to", "talk to",
	// hr
	"domaćin", "domaćina", "domaćinom", "domacin", "domacina",
	"vlasnik", "vlasnika", "vlasnikom",
	"čovjek", "čovjeka", "covjek", "covjeka",
	"osoba", "osobu", "osobom",
	"nazvati", "nazovite", "nazovi",
}

// KeywordPolicy escalates on handoff keywords in the guest text or when the
// reply is exactly one of the fixed fallback sentences.
type KeywordPolicy struct {
	keywords  *regexp.Regexp
	fallbacks map[string]struct{}
}

// NewKeywordPolicy builds the default policy. Extra keywords extend the list.
func NewKeywordPolicy(extra ...string) *KeywordPolicy {
	words := append(append([]string{}, defaultKeywords...), extra...)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	// \b is ASCII-only, so letter boundaries are spelled out.
	pattern := `(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`

	fallbacks := make(map[string]struct{})
	for _, s := range phrases.FallbackSentences() {
		fallbacks[normalizeReply(s)] = struct{}{}
	}
	return &KeywordPolicy{
		keywords:  regexp.MustCompile(pattern),
		fallbacks: fallbacks,
	}
}

func (p *KeywordPolicy) ShouldEscalate(guestText, generatedReply string) Verdict {
	if p.keywords.MatchString(guestText) {
		return Verdict{Escalate: true, Trigger: TriggerExplicitRequest}
	}
	if _, ok := p.fallbacks[normalizeReply(generatedReply)]; ok {
		return Verdict{Escalate: true, Trigger: TriggerFallbackReply}
	}
	return Verdict{}
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

func normalizeReply(s string) string {
	s = apostrophes.Replace(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

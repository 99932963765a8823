package reply

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/gostly/gostly-backend/internal/phrases"
)

// PromptInput carries what the system instruction is built from.
type PromptInput struct {
	PropertyName  string
	KnowledgeText string
	Language      phrases.Language
}

// BuildSystemPrompt grounds the model in the property's knowledge text and
// pins the literal fallback sentences the classifier matches on.
func BuildSystemPrompt(in PromptInput) string {
	var b strings.Builder
	name := strings.TrimSpace(in.PropertyName)
	if name == "" {
		name = "this property"
	}
	fmt.Fprintf(&b, "You are the WhatsApp guest assistant for %q.\n\n", name)

	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Always reply in the same language the guest writes in. If unsure, reply in %s.\n", in.Language.Name())
	b.WriteString("- You may answer greetings, directions and general questions about the area or tourism from general knowledge.\n")
	b.WriteString("- Facts about the property itself (check-in and check-out times, parking, Wi-Fi, house rules, prices, amenities) must come only from the property information below. Never guess them.\n")
	b.WriteString("- If the guest asks for a property fact that is not in the property information, reply with exactly one of these sentences and nothing else:\n")
	for _, lang := range phrases.Supported {
		fmt.Fprintf(&b, "  - %s: %s\n", lang.Name(), phrases.Fallback(lang))
	}
	fmt.Fprintf(&b, "  For any other language use the %s sentence.\n", phrases.English.Name())
	b.WriteString("- Keep replies short: at most three sentences.\n\n")

	b.WriteString("Property information:\n")
	knowledge := strings.TrimSpace(in.KnowledgeText)
	if knowledge == "" {
		knowledge = "(none provided)"
	}
	b.WriteString(knowledge)
	return b.String()
}

// Truncator caps text to a token budget.
type Truncator struct {
	codec  tokenizer.Codec
	budget int
}

// NewTruncator loads the cl100k_base encoding. A budget of 0 disables the cap.
func NewTruncator(budget int) (*Truncator, error) {
	if budget <= 0 {
		return &Truncator{}, nil
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Truncator{codec: codec, budget: budget}, nil
}

// Truncate returns text unchanged when it fits, otherwise its first budget
// tokens. Tokenizer failures return the input as-is.
func (t *Truncator) Truncate(text string) string {
	if t == nil || t.codec == nil || t.budget <= 0 {
		return text
	}
	ids, _, err := t.codec.Encode(text)
	if err != nil || len(ids) <= t.budget {
		return text
	}
	cut, err := t.codec.Decode(ids[:t.budget])
	if err != nil {
		return text
	}
	return strings.ToValidUTF8(cut, "")
}

package escalation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gostly/gostly-backend/internal/phrases"
)

func TestExplicitRequest(t *testing.T) {
	p := NewKeywordPolicy()
	cases := []string{
		"Can I talk to a human?",
		"I need the HOST please",
		"Molim vas, želim razgovarati s domaćinom.",
		"Možete li me nazvati?",
		"Treba mi čovjek",
		"owner",
	}
	for _, text := range cases {
		v := p.ShouldEscalate(text, "Sure.")
		require.Equal(t, Verdict{Escalate: true, Trigger: TriggerExplicitRequest}, v, text)
	}
}

func TestKeywordsRespectWordBoundaries(t *testing.T) {
	p := NewKeywordPolicy()
	cases := []string{
		"Is there a hostel nearby?",
		"What about the ghost tour?",
		"Is the parking area calm at night?",
		"recall the wifi password",
		"Gdje je osobni prostor?",
	}
	for _, text := range cases {
		require.False(t, p.ShouldEscalate(text, "Sure.").Escalate, text)
	}
}

func TestFallbackReplyEscalates(t *testing.T) {
	p := NewKeywordPolicy()
	for _, lang := range phrases.Supported {
		v := p.ShouldEscalate("Is there a sauna?", phrases.Fallback(lang))
		require.Equal(t, Verdict{Escalate: true, Trigger: TriggerFallbackReply}, v, string(lang))
	}

	// Case, surrounding whitespace and curly apostrophes do not matter.
	v := p.ShouldEscalate("Is there a sauna?", "  I DON’T have that information.   I’ll forward your question to the host.\n")
	require.True(t, v.Escalate)
	require.Equal(t, TriggerFallbackReply, v.Trigger)
}

func TestMentionOfForwardingDoesNotEscalate(t *testing.T) {
	p := NewKeywordPolicy()
	replies := []string{
		"I can forward you the address: Ulica 1, Split.",
		"I don't have that information. I'll forward your question to the host. Meanwhile, enjoy the beach!",
		"Check-in is at 15:00.",
	}
	for _, reply := range replies {
		require.False(t, p.ShouldEscalate("Where is it?", reply).Escalate, reply)
	}
}

func TestExtraKeywords(t *testing.T) {
	p := NewKeywordPolicy("manager", "  ")
	require.True(t, p.ShouldEscalate("get me the manager", "ok").Escalate)
}

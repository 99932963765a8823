package notifications

import (
	"fmt"
	"html"
	"strings"

	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/mailer"
	"github.com/gostly/gostly-backend/pkg/outbox/payloads"
)

// HandoffEmail renders the host email for an escalated question. Every
// guest-controlled value is HTML-escaped.
func HandoffEmail(evt payloads.HandoffRequestedEvent) mailer.Message {
	name := strings.TrimSpace(evt.PropertyName)
	if name == "" {
		name = evt.PropertyCode
	}
	guest := strings.TrimPrefix(strings.TrimSpace(evt.GuestNumber), "whatsapp:")
	question := strings.TrimSpace(evt.GuestMessage)

	var b strings.Builder
	b.WriteString(`<div style="font-family:sans-serif;line-height:1.5">`)
	fmt.Fprintf(&b, "<h2>New guest question for %s</h2>", html.EscapeString(name))
	fmt.Fprintf(&b, "<p><strong>Property:</strong> %s", html.EscapeString(name))
	if evt.PropertyCode != "" && evt.PropertyCode != name {
		fmt.Fprintf(&b, " (%s)", html.EscapeString(evt.PropertyCode))
	}
	b.WriteString("</p>")
	fmt.Fprintf(&b, "<p><strong>Guest:</strong> %s</p>", html.EscapeString(guest))
	b.WriteString(`<blockquote style="border-left:3px solid #ccc;margin:0;padding-left:12px">`)
	b.WriteString(strings.ReplaceAll(html.EscapeString(question), "\n", "<br>"))
	b.WriteString("</blockquote>")
	b.WriteString("<p>Reply to the guest directly in WhatsApp.</p>")
	b.WriteString("</div>")

	text := fmt.Sprintf("New guest question for %s\n\nGuest: %s\n\n%s\n\nReply to the guest directly in WhatsApp.\n", name, guest, question)

	return mailer.Message{
		To:      evt.To,
		Subject: fmt.Sprintf("Guest question for %s", name),
		HTML:    b.String(),
		Text:    text,
	}
}

// guestNumberForLog keeps full numbers out of the relay logs.
func guestNumberForLog(evt payloads.HandoffRequestedEvent) string {
	return logger.MaskPhone(evt.GuestNumber)
}

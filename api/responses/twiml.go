package responses

import (
	"net/http"
	"strings"
)

const twimlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// TwiML renders a messaging response with a single message, or an empty
// response when message is blank.
func TwiML(message string) string {
	if strings.TrimSpace(message) == "" {
		return twimlHeader + "<Response></Response>"
	}
	return twimlHeader + "<Response><Message>" + EscapeXML(message) + "</Message></Response>"
}

// WriteTwiML writes a pre-rendered TwiML document.
func WriteTwiML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// WriteText writes a plain text body.
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

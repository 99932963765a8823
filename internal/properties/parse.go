package properties

import (
	"regexp"
	"strings"
)

var inboundPattern = regexp.MustCompile(`(?s)^\s*([A-Za-z0-9_-]{3,20})\s*:\s*(.+)$`)

// ParseInbound splits "<CODE>: question" into an upper-cased code and the
// trimmed question. ok is false when the body does not follow the convention.
func ParseInbound(body string) (code, question string, ok bool) {
	m := inboundPattern.FindStringSubmatch(body)
	if m == nil {
		return "", "", false
	}
	question = strings.TrimSpace(m[2])
	if question == "" {
		return "", "", false
	}
	return NormalizeCode(m[1]), question, true
}

// NormalizeCode is the canonical stored form of a property code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeLanguages lower-cases a comma separated list and collapses blanks
// to "auto".
func NormalizeLanguages(value string) string {
	parts := strings.Split(strings.ToLower(value), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return LanguagesAuto
	}
	for _, p := range out {
		if p == LanguagesAuto {
			return LanguagesAuto
		}
	}
	return strings.Join(out, ",")
}

// LanguagesAuto lets the guest's own language decide.
const LanguagesAuto = "auto"

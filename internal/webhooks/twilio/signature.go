package twiliowebhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// ComputeSignature signs the public webhook URL followed by every form key and
// value sorted by key, as HMAC-SHA1 in base64.
func ComputeSignature(authToken, webhookURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(webhookURL)
	for _, k := range keys {
		values := append([]string(nil), form[k]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares in constant time. An empty signature never validates.
func ValidSignature(authToken, webhookURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(authToken, webhookURL, form)
	return hmac.Equal([]byte(expected), []byte(signature))
}

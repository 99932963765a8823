package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gostly/gostly-backend/internal/inbound"
	"github.com/gostly/gostly-backend/internal/phrases"
	twiliowebhook "github.com/gostly/gostly-backend/internal/webhooks/twilio"
	"github.com/gostly/gostly-backend/pkg/config"
)

type fakeWhatsAppService struct {
	got   inbound.Message
	text  string
	panic bool
}

func (f *fakeWhatsAppService) Receive(_ context.Context, msg inbound.Message) twiliowebhook.Result {
	if f.panic {
		panic("boom")
	}
	f.got = msg
	return twiliowebhook.Result{Text: f.text}
}

func postForm(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestWhatsAppWebhookRepliesWithTwiML(t *testing.T) {
	svc := &fakeWhatsAppService{text: `Check-in <after> 14:00 & "bring" ID's`}
	handler := WhatsAppWebhook(svc, config.TwilioConfig{}, nil)

	form := url.Values{
		"Body":       {"H1234 check-in?"},
		"From":       {"whatsapp:+385911234567"},
		"To":         {"whatsapp:+14155238886"},
		"MessageSid": {"SM123"},
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm(form))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("expected text/xml, got %q", ct)
	}
	want := `<?xml version="1.0" encoding="UTF-8"?><Response><Message>Check-in &lt;after&gt; 14:00 &amp; &quot;bring&quot; ID&apos;s</Message></Response>`
	if rec.Body.String() != want {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if svc.got.Body != "H1234 check-in?" || svc.got.From != "whatsapp:+385911234567" || svc.got.To != "whatsapp:+14155238886" || svc.got.MessageSID != "SM123" {
		t.Fatalf("unexpected message %+v", svc.got)
	}
}

func TestWhatsAppWebhookPanicStillReplies(t *testing.T) {
	handler := WhatsAppWebhook(&fakeWhatsAppService{panic: true}, config.TwilioConfig{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm(url.Values{"Body": {"H1234 hi"}, "From": {"whatsapp:+1"}}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Message>") {
		t.Fatalf("expected a message, got %s", rec.Body.String())
	}
}

func TestWhatsAppWebhookNilServiceStillReplies(t *testing.T) {
	handler := WhatsAppWebhook(nil, config.TwilioConfig{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm(url.Values{"Body": {"H1234 hi"}}))

	want := "<Message>" + phrases.Unavailable(phrases.English) + "</Message>"
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestWhatsAppWebhookSignature(t *testing.T) {
	cfg := config.TwilioConfig{
		AuthToken:        "token",
		PublicWebhookURL: "https://api.gostly.app/api/v1/webhooks/whatsapp",
		ValidateRequests: true,
	}
	svc := &fakeWhatsAppService{text: "hello"}
	handler := WhatsAppWebhook(svc, cfg, nil)
	form := url.Values{"Body": {"H1234 hi"}, "From": {"whatsapp:+1"}}

	rec := httptest.NewRecorder()
	req := postForm(form)
	req.Header.Set(twiliowebhook.SignatureHeader, "bogus")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<Message>") {
		t.Fatalf("expected empty TwiML, got %s", rec.Body.String())
	}
	if svc.got.Body != "" {
		t.Fatal("service must not run on an invalid signature")
	}

	rec = httptest.NewRecorder()
	req = postForm(form)
	req.Header.Set(twiliowebhook.SignatureHeader, twiliowebhook.ComputeSignature("token", cfg.PublicWebhookURL, form))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<Message>hello</Message>") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestWhatsAppProbe(t *testing.T) {
	rec := httptest.NewRecorder()
	WhatsAppProbe().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/whatsapp", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected probe response %d %q", rec.Code, rec.Body.String())
	}
}

package webhooks

import (
	"context"
	"net/http"

	"github.com/gostly/gostly-backend/api/responses"
	"github.com/gostly/gostly-backend/internal/inbound"
	"github.com/gostly/gostly-backend/internal/phrases"
	twiliowebhook "github.com/gostly/gostly-backend/internal/webhooks/twilio"
	"github.com/gostly/gostly-backend/pkg/config"
	"github.com/gostly/gostly-backend/pkg/logger"
)

const maxTwilioForm = 1 << 16

type WhatsAppService interface {
	Receive(ctx context.Context, msg inbound.Message) twiliowebhook.Result
}

// WhatsAppProbe answers provider console checks on the webhook URL.
func WhatsAppProbe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteText(w, http.StatusOK, "OK")
	}
}

// WhatsAppWebhook turns an inbound message into a TwiML reply. Apart from a
// failed signature check it always answers 200 with a guest-facing message.
func WhatsAppWebhook(svc WhatsAppService, cfg config.TwilioConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		r.Body = http.MaxBytesReader(w, r.Body, maxTwilioForm)
		if err := r.ParseForm(); err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "whatsapp.form_invalid")
			}
			responses.WriteTwiML(w, http.StatusOK, responses.TwiML(phrases.MissingCode(phrases.English)))
			return
		}

		if cfg.ValidateRequests && cfg.AuthToken != "" {
			webhookURL := cfg.PublicWebhookURL
			if webhookURL == "" {
				webhookURL = requestURL(r)
			}
			if !twiliowebhook.ValidSignature(cfg.AuthToken, webhookURL, r.PostForm, r.Header.Get(twiliowebhook.SignatureHeader)) {
				if logg != nil {
					logg.Warn(ctx, "whatsapp.signature_invalid")
				}
				responses.WriteTwiML(w, http.StatusForbidden, responses.TwiML(""))
				return
			}
		}

		msg := inbound.Message{
			Body:       r.PostForm.Get("Body"),
			From:       r.PostForm.Get("From"),
			To:         r.PostForm.Get("To"),
			MessageSID: r.PostForm.Get("MessageSid"),
		}

		text := receive(ctx, svc, msg, logg)
		responses.WriteTwiML(w, http.StatusOK, responses.TwiML(text))
	}
}

func receive(ctx context.Context, svc WhatsAppService, msg inbound.Message, logg *logger.Logger) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			if logg != nil {
				logg.Error(logg.WithField(ctx, "panic", rec), "whatsapp.panic", nil)
			}
			text = phrases.Unavailable(phrases.English)
		}
	}()
	if svc == nil {
		return phrases.Unavailable(phrases.English)
	}
	res := svc.Receive(ctx, msg)
	if res.Text == "" {
		return phrases.Unavailable(phrases.English)
	}
	return res.Text
}

func requestURL(r *http.Request) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

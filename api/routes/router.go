package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gostly/gostly-backend/api/controllers"
	webhookcontrollers "github.com/gostly/gostly-backend/api/controllers/webhooks"
	"github.com/gostly/gostly-backend/api/middleware"
	"github.com/gostly/gostly-backend/internal/billing"
	"github.com/gostly/gostly-backend/internal/conversations"
	"github.com/gostly/gostly-backend/internal/properties"
	"github.com/gostly/gostly-backend/internal/usage"
	stripewebhook "github.com/gostly/gostly-backend/internal/webhooks/stripe"
	"github.com/gostly/gostly-backend/pkg/config"
	"github.com/gostly/gostly-backend/pkg/db"
	"github.com/gostly/gostly-backend/pkg/idempotency"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/redis"
	"github.com/gostly/gostly-backend/pkg/stripe"
)

// Dependencies is everything the HTTP surface serves from. Nil services
// respond with an internal error rather than panicking.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	Properties    properties.Service
	Conversations conversations.Service
	Billing       billing.Service
	Usage         usage.Gate
	WhatsApp      webhookcontrollers.WhatsAppService
	StripeClient  *stripe.Client
	StripeService *stripewebhook.Service
	StripeGuard   *idempotency.Scope
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Get("/whatsapp", webhookcontrollers.WhatsAppProbe())
		r.Post("/whatsapp", webhookcontrollers.WhatsAppWebhook(deps.WhatsApp, cfg.Twilio, logg))
		stripeSvc, stripeClient, stripeGuard := stripeParts(deps)
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeSvc, stripeClient, stripeGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.AllowedOrigins()))
		r.Use(middleware.Auth(cfg.Auth, logg))

		r.Route("/properties", func(r chi.Router) {
			r.Get("/", controllers.PropertyList(deps.Properties, logg))
			r.Post("/", controllers.PropertyCreate(deps.Properties, logg))
			r.Route("/{propertyId}", func(r chi.Router) {
				r.Get("/", controllers.PropertyGet(deps.Properties, logg))
				r.Put("/", controllers.PropertyUpdate(deps.Properties, logg))
				r.Delete("/", controllers.PropertyDelete(deps.Properties, logg))
				r.Get("/messages", controllers.MessageList(deps.Conversations, logg))
			})
		})

		r.Route("/billing", func(r chi.Router) {
			r.Get("/usage", controllers.BillingUsage(deps.Usage, logg))
			r.Get("/profile", controllers.BillingProfile(deps.Billing, logg))
			r.Post("/cancel", controllers.BillingCancel(deps.Billing, logg))
		})
	})

	adminPolicy := middleware.NewRateLimitPolicy("admin", time.Minute, 30)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RateLimit(adminPolicy, redisCounter(deps.Redis), logg))
		r.Use(middleware.AdminSecret(cfg.Admin.Secret, logg))
		r.Post("/properties", controllers.AdminCreateProperty(deps.Properties, logg))
	})

	return r
}

type signingClient interface {
	SigningSecret() string
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// The helpers below keep typed nil pointers out of interface values so the
// controllers' nil checks see them.

func stripeParts(deps Dependencies) (webhookcontrollers.StripeWebhookService, signingClient, eventGuard) {
	var (
		svc    webhookcontrollers.StripeWebhookService
		client signingClient
		guard  eventGuard
	)
	if deps.StripeService != nil {
		svc = deps.StripeService
	}
	if deps.StripeClient != nil {
		client = deps.StripeClient
	}
	if deps.StripeGuard != nil {
		guard = deps.StripeGuard
	}
	return svc, client, guard
}

func redisCounter(c *redis.Client) counterStore {
	if c == nil {
		return nil
	}
	return c
}

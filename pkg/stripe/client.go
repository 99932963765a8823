// Package stripe configures the Stripe SDK for subscription management and
// webhook verification.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/subscription"

	"github.com/gostly/gostly-backend/pkg/config"
	"github.com/gostly/gostly-backend/pkg/logger"
)

var (
	errNotConfigured  = errors.New("stripe: client not configured")
	errMissingKey     = errors.New("stripe: api key is required")
	errMissingSecret  = errors.New("stripe: webhook secret is required")
	errMissingSubject = errors.New("stripe: subscription id is required")
)

// keyPrefixes lists the secret and restricted key prefixes accepted per mode.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

type updateFunc func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)

type Client struct {
	mode          string
	signingSecret string
	update        updateFunc
}

// NewClient checks that the key matches the configured mode and installs it
// as the SDK's package key.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode := cfg.Environment()
	prefixes, ok := keyPrefixes[mode]
	if !ok {
		return nil, fmt.Errorf("stripe: unknown environment %q (want test or live)", mode)
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errMissingKey
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errMissingSecret
	}
	if !hasAnyPrefix(key, prefixes) {
		return nil, fmt.Errorf("stripe: %s environment needs a %s key", mode, strings.Join(prefixes, " or "))
	}

	stripe.Key = key
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", mode), "stripe configured")
	}
	return &Client{mode: mode, signingSecret: secret, update: subscription.Update}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.mode
}

// SigningSecret verifies webhook signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CancelAtPeriodEnd stops renewal. Quota stays in place until Stripe reports
// the subscription deleted.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	if c == nil || c.update == nil {
		return nil, errNotConfigured
	}
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errMissingSubject
	}
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	return c.update(id, params)
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

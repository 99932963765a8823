// Package mailer delivers transactional email through SMTP or Mailgun.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gostly/gostly-backend/pkg/config"
	"github.com/gostly/gostly-backend/pkg/logger"
)

// ErrInvalidMessage marks messages no retry can fix.
var ErrInvalidMessage = errors.New("invalid mail message")

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	return nil
}

// Mailer sends a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// New selects a backend from config. Missing credentials fall back to the
// noop mailer.
func New(ctx context.Context, cfg config.MailConfig, logg *logger.Logger) Mailer {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case config.MailProviderSMTP:
		if cfg.SMTPHost != "" {
			return NewSMTP(cfg)
		}
	case config.MailProviderMailgun:
		if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
			return NewMailgun(cfg)
		}
	case "", config.MailProviderNoop:
		return NewNoop(logg)
	}
	if logg != nil {
		logg.Warn(ctx, "mail provider "+provider+" is missing credentials, email disabled")
	}
	return NewNoop(logg)
}

// Noop drops every message.
type Noop struct {
	logg *logger.Logger
}

func NewNoop(logg *logger.Logger) *Noop {
	return &Noop{logg: logg}
}

func (n *Noop) Name() string { return config.MailProviderNoop }

func (n *Noop) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if n.logg != nil {
		n.logg.Debug(ctx, "email skipped: "+msg.Subject)
	}
	return nil
}

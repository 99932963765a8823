package mailer

import (
	"context"
	"fmt"
	"strings"

	mg "github.com/mailgun/mailgun-go/v5"

	"github.com/gostly/gostly-backend/pkg/config"
)

// Mailgun sends through the Mailgun HTTP API.
type Mailgun struct {
	client *mg.Client
	domain string
	from   string
}

func NewMailgun(cfg config.MailConfig) *Mailgun {
	client := mg.NewMailgun(cfg.MailgunAPIKey)
	if strings.EqualFold(cfg.MailgunRegion, "eu") {
		client.SetAPIBase(mg.APIBaseEU)
	}
	from := cfg.From
	if from == "" {
		from = fmt.Sprintf("noreply@%s", cfg.MailgunDomain)
	}
	return &Mailgun{client: client, domain: cfg.MailgunDomain, from: from}
}

func (m *Mailgun) Name() string { return config.MailProviderMailgun }

func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	message := mg.NewMessage(m.domain, m.from, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		message.SetHTML(msg.HTML)
	}
	if _, err := m.client.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}

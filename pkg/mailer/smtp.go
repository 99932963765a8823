package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/gostly/gostly-backend/pkg/config"
)

// SMTP sends through an authenticated SMTP relay.
type SMTP struct {
	from     string
	host     string
	port     int
	username string
	password string
	tls      string
}

func NewSMTP(cfg config.MailConfig) *SMTP {
	return &SMTP{
		from:     cfg.From,
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		tls:      strings.ToLower(strings.TrimSpace(cfg.SMTPTLS)),
	}
}

func (s *SMTP) Name() string { return config.MailProviderSMTP }

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMsg(msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(s.host, s.options()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *SMTP) buildMsg(msg Message) (*mail.Msg, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: set to: %v", ErrInvalidMessage, err)
	}
	m.Subject(msg.Subject)
	switch {
	case msg.HTML != "" && msg.Text != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}
	m.SetMessageID()
	return m, nil
}

func (s *SMTP) options() []mail.Option {
	port := s.port
	if port <= 0 {
		port = 587
	}
	opts := []mail.Option{mail.WithPort(port)}
	if s.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
		)
	}
	switch s.tls {
	case "ssl":
		opts = append(opts, mail.WithSSLPort(false))
	case "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return opts
}

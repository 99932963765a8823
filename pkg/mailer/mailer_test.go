package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/gostly/gostly-backend/pkg/config"
)

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  config.MailConfig
		want string
	}{
		{name: "default", cfg: config.MailConfig{}, want: config.MailProviderNoop},
		{name: "smtp", cfg: config.MailConfig{Provider: "SMTP", SMTPHost: "smtp.example.com"}, want: config.MailProviderSMTP},
		{name: "smtp without host", cfg: config.MailConfig{Provider: "smtp"}, want: config.MailProviderNoop},
		{name: "mailgun", cfg: config.MailConfig{Provider: "mailgun", MailgunDomain: "mg.example.com", MailgunAPIKey: "key"}, want: config.MailProviderMailgun},
		{name: "mailgun without key", cfg: config.MailConfig{Provider: "mailgun", MailgunDomain: "mg.example.com"}, want: config.MailProviderNoop},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := New(ctx, tc.cfg, nil).Name(); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestNoopValidatesMessage(t *testing.T) {
	n := NewNoop(nil)
	if err := n.Send(context.Background(), Message{Subject: "hi"}); err == nil {
		t.Fatal("expected missing recipient error")
	}
	if err := n.Send(context.Background(), Message{To: "host@example.com", Subject: "hi", HTML: "<p>x</p>"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSMTPBuildMsg(t *testing.T) {
	s := NewSMTP(config.MailConfig{From: "Gostly <no-reply@gostly.app>", SMTPHost: "smtp.example.com"})
	m, err := s.buildMsg(Message{To: "host@example.com", Subject: "Guest question for Villa", HTML: "<p>hello</p>"})
	if err != nil {
		t.Fatalf("build msg: %v", err)
	}
	var buf strings.Builder
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("write msg: %v", err)
	}
	raw := buf.String()
	if !strings.Contains(raw, "Subject: Guest question for Villa") {
		t.Fatalf("subject missing from message: %s", raw)
	}
	if !strings.Contains(raw, "host@example.com") {
		t.Fatalf("recipient missing from message: %s", raw)
	}
}

func TestSMTPBuildMsgRejectsBadAddress(t *testing.T) {
	s := NewSMTP(config.MailConfig{From: "no-reply@gostly.app", SMTPHost: "smtp.example.com"})
	if _, err := s.buildMsg(Message{To: "not an address", Subject: "x", Text: "y"}); err == nil {
		t.Fatal("expected invalid recipient error")
	}
}

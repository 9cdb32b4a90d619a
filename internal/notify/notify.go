package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs emails instead of sending them — used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("alert email (local dev)", "to", to, "subject", subject, "body", body)
	return nil
}

// ResendSender sends emails via the Resend API — used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// CredentialAlerter emails the operator when the credential needs manual
// attention. It satisfies the scheduler's AlertSink.
type CredentialAlerter struct {
	sender Sender
	to     string
	logger *slog.Logger
}

func NewCredentialAlerter(sender Sender, to string, logger *slog.Logger) *CredentialAlerter {
	return &CredentialAlerter{sender: sender, to: to, logger: logger.With("component", "alerter")}
}

func (a *CredentialAlerter) CredentialExpired(ctx context.Context) {
	if a.to == "" {
		return
	}
	body := "<p>The stored refresh secret is expired or missing. " +
		"Scheduled bookings will fail until a new refresh secret is supplied " +
		"via <code>POST /api/v1/token</code>.</p>"
	if err := a.sender.Send(ctx, a.to, "court-scheduler: credential needs attention", body); err != nil {
		a.logger.Error("send credential alert", "error", err)
	}
}

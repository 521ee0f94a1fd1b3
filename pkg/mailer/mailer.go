// Package mailer delivers transactional email through SendGrid.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

var ErrRecipientRequired = errors.New("email recipient is required")

// Message is a single plain-text plus HTML email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends one message. Implementations must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer is the production Mailer.
type SendGridMailer struct {
	client sender
	from   *mail.Email
}

// New returns a SendGrid-backed mailer, or a logging no-op when no API key is configured.
func New(cfg config.SendgridConfig, logg *logger.Logger) Mailer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &LogMailer{logg: logg}
	}
	return newSendGridMailer(sendgrid.NewSendClient(cfg.APIKey), cfg)
}

func newSendGridMailer(client sender, cfg config.SendgridConfig) *SendGridMailer {
	return &SendGridMailer{
		client: client,
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrRecipientRequired
	}
	html := msg.HTML
	if html == "" {
		html = "<p>" + strings.ReplaceAll(msg.Text, "\n", "<br>") + "</p>"
	}
	email := mail.NewSingleEmail(m.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), msg.Text, html)

	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp == nil {
		return errors.New("sendgrid send: empty response")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	return nil
}

// LogMailer records the email instead of sending it. Used in dev.
type LogMailer struct {
	logg *logger.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrRecipientRequired
	}
	if m.logg != nil {
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
		}), "email suppressed: sendgrid not configured")
	}
	return nil
}

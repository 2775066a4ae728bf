package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/models"
)

// Mailer delivers a single HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NewMailer picks the provider named in MAIL_PROVIDER. Without usable
// credentials the messages are only logged.
func NewMailer(cfg config.MailConfig, log *zap.Logger) Mailer {
	switch cfg.Provider {
	case "resend":
		if cfg.ResendAPIKey != "" {
			log.Info("using resend mail provider")
			return NewResendMailer(cfg.ResendAPIKey, cfg.From)
		}
	case "smtp", "":
		if cfg.SMTPHost != "" {
			log.Info("using smtp mail provider", zap.String("host", cfg.SMTPHost))
			return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.From)
		}
	}

	log.Warn("mail provider not configured, messages will only be logged", zap.String("provider", cfg.Provider))
	return &LogMailer{log: log}
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	d := gomail.NewDialer(host, port, username, password)
	d.TLSConfig = &tls.Config{ServerName: host}
	return &SMTPMailer{dialer: d, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send canceled: %w", ctx.Err())
	}
}

// ResendMailer sends mail through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	log *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.Info("mail not delivered, no provider configured",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// otpMessage renders the subject and body of a one-time code email.
func otpMessage(purpose models.OTPPurpose, code string, ttlMinutes int) (string, string) {
	subject := "Verify your email"
	intro := "Use the code below to finish creating your account."
	if purpose == models.OTPPurposeResetPassword {
		subject = "Reset your password"
		intro = "Use the code below to reset your password. If you did not ask for this, ignore this email."
	}

	body := fmt.Sprintf(`<div style="font-family:sans-serif;max-width:480px">
<p>%s</p>
<p style="font-size:28px;letter-spacing:6px"><b>%s</b></p>
<p>The code expires in %d minutes.</p>
</div>`, html.EscapeString(intro), html.EscapeString(code), ttlMinutes)

	return subject, body
}

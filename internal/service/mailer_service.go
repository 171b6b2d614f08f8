package service

import (
	"context"
	"fmt"

	mail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/pkg/config"
)

// Mailer sends a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// MailerService delivers email over SMTP. When SMTP is disabled it logs and
// drops the message so the rest of the pipeline (inbox rows, ledger claims)
// keeps working in development.
type MailerService struct {
	client  *mail.Client
	from    string
	enabled bool
	logger  *zap.Logger
}

// NewMailerService constructs a MailerService from SMTP configuration.
func NewMailerService(cfg config.SMTPConfig, logger *zap.Logger) (*MailerService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &MailerService{enabled: false, from: cfg.From, logger: logger}, nil
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &MailerService{client: client, from: cfg.From, enabled: true, logger: logger}, nil
}

// Send delivers one message.
func (s *MailerService) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !s.enabled {
		s.logger.Debug("smtp disabled, dropping email",
			zap.String("to", to), zap.String("subject", subject))
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set email sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set email recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

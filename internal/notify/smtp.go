package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rekur/backend/internal/config"
	"github.com/rekur/backend/internal/domain"
	gomail "github.com/wneessen/go-mail"
)

// SMTP sends email through an SMTP relay.
type SMTP struct {
	cfg  config.SMTPConfig
	dial func(ctx context.Context, msg *gomail.Msg) error
}

// NewSMTP returns an SMTP sender, or Disabled when the relay is not configured.
func NewSMTP(cfg config.SMTPConfig) EmailSender {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return Disabled{Channel: domain.ChannelEmail}
	}
	s := &SMTP{cfg: cfg}
	s.dial = func(ctx context.Context, msg *gomail.Msg) error {
		client, err := gomail.NewClient(cfg.Host,
			gomail.WithPort(cfg.Port),
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
			gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		)
		if err != nil {
			return err
		}
		return client.DialAndSendWithContext(ctx, msg)
	}
	return s
}

func (s *SMTP) SendHTML(ctx context.Context, to, subject, body string) error {
	msg, err := s.message(to, subject)
	if err != nil {
		return err
	}
	msg.SetBodyString(gomail.TypeTextHTML, body)
	if err := s.dial(ctx, msg); err != nil {
		var sendErr *gomail.SendError
		if errors.As(err, &sendErr) && sendErr.Reason == gomail.ErrSMTPRcptTo && !sendErr.IsTemp() {
			return fmt.Errorf("smtp: %w: %w", ErrRecipientRejected, err)
		}
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

// SendTemplate renders the reminder fields into a simple HTML body.
func (s *SMTP) SendTemplate(ctx context.Context, to, subject string, f domain.EmailFields) error {
	body, err := renderReminderHTML(f)
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return s.SendHTML(ctx, to, subject, body)
}

func (s *SMTP) message(to, subject string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp: %w: invalid address: %w", ErrRecipientRejected, err)
	}
	msg.Subject(subject)
	return msg, nil
}

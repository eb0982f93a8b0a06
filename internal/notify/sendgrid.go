package notify

import (
	"context"
	"fmt"

	"github.com/rekur/backend/internal/config"
	"github.com/rekur/backend/internal/domain"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGrid sends reminder emails through a SendGrid dynamic template.
// SendHTML is delegated to fallback so one EmailSender covers both uses.
type SendGrid struct {
	client     *sendgrid.Client
	cfg        config.SendGridConfig
	fallback   EmailSender
	sendSingle func(ctx context.Context, m *mail.SGMailV3) (int, string, error)
}

// NewSendGrid returns a SendGrid sender. Without SendGrid credentials the
// fallback handles everything.
func NewSendGrid(cfg config.SendGridConfig, fallback EmailSender) EmailSender {
	if fallback == nil {
		fallback = Disabled{Channel: domain.ChannelEmail}
	}
	if cfg.APIKey == "" || cfg.FromEmail == "" || cfg.TemplateID == "" {
		return fallback
	}
	s := &SendGrid{client: sendgrid.NewSendClient(cfg.APIKey), cfg: cfg, fallback: fallback}
	s.sendSingle = func(ctx context.Context, m *mail.SGMailV3) (int, string, error) {
		resp, err := s.client.SendWithContext(ctx, m)
		if err != nil {
			return 0, "", err
		}
		return resp.StatusCode, resp.Body, nil
	}
	return s
}

func (s *SendGrid) SendTemplate(ctx context.Context, to, subject string, fields domain.EmailFields) error {
	status, body, err := s.sendSingle(ctx, s.buildTemplate(to, subject, fields))
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if rejectedStatus(status) {
		return fmt.Errorf("sendgrid: %w: status %d: %s", ErrRecipientRejected, status, body)
	}
	if status >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", status, body)
	}
	return nil
}

func (s *SendGrid) SendHTML(ctx context.Context, to, subject, html string) error {
	return s.fallback.SendHTML(ctx, to, subject, html)
}

func (s *SendGrid) buildTemplate(to, subject string, fields domain.EmailFields) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail))
	m.SetTemplateID(s.cfg.TemplateID)

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", to))
	p.Subject = subject
	p.SetDynamicTemplateData("subject", subject)
	fields.Price = dollars(fields.Price)
	for k, v := range fields.Map() {
		p.SetDynamicTemplateData(k, v)
	}
	m.AddPersonalizations(p)

	if s.cfg.ASMGroupID > 0 {
		asm := mail.NewASM()
		asm.SetGroupID(s.cfg.ASMGroupID)
		asm.AddGroupsToDisplay(s.cfg.ASMGroupID)
		m.SetASM(asm)
	}
	return m
}

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rekur/backend/internal/config"
	"github.com/rekur/backend/internal/domain"
	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Twilio sends SMS through the Twilio REST API.
type Twilio struct {
	api  messageCreator
	from string
}

// NewTwilio returns a Twilio sender, or Disabled when credentials are missing.
func NewTwilio(cfg config.TwilioConfig) TextSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return Disabled{Channel: domain.ChannelSMS}
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Twilio{api: client.Api, from: cfg.From}
}

// Send delivers body to the number, forcing E.164 '+' form.
// The Twilio client has no context support; callers bound it with Guarded.
func (t *Twilio) Send(_ context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(withPlus(to))
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		var restErr *twilioClient.TwilioRestError
		if errors.As(err, &restErr) && rejectedStatus(restErr.Status) {
			return fmt.Errorf("twilio: %w: %w", ErrRecipientRejected, err)
		}
		return fmt.Errorf("twilio: %w", err)
	}
	if resp != nil && resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio: %w: %s", ErrRecipientRejected, *resp.ErrorMessage)
	}
	return nil
}

// Package notify delivers reminders and transactional messages over email,
// SMS and WhatsApp.
package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rekur/backend/internal/domain"
)

// ErrChannelDisabled is returned by senders whose provider is not configured.
var ErrChannelDisabled = errors.New("channel not configured")

// ErrRecipientRejected marks a provider refusal tied to a single message, such
// as an invalid phone number or an unknown mailbox. It does not count against
// the channel breaker.
var ErrRecipientRejected = errors.New("recipient rejected")

// rejectedStatus reports whether a provider HTTP status refuses one message
// rather than signalling a fault with the channel itself.
func rejectedStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}

// EmailSender sends email.
type EmailSender interface {
	// SendTemplate sends a templated reminder email built from fields.
	SendTemplate(ctx context.Context, to, subject string, fields domain.EmailFields) error
	// SendHTML sends a transactional email with an inline HTML body.
	SendHTML(ctx context.Context, to, subject, html string) error
}

// TextSender sends a plain text message to a phone number.
type TextSender interface {
	Send(ctx context.Context, to, body string) error
}

// Disabled stands in for any unconfigured sender.
type Disabled struct {
	Channel domain.Channel
}

func (d Disabled) SendTemplate(context.Context, string, string, domain.EmailFields) error {
	return d.err()
}

func (d Disabled) SendHTML(context.Context, string, string, string) error {
	return d.err()
}

func (d Disabled) Send(context.Context, string, string) error {
	return d.err()
}

func (d Disabled) err() error {
	if d.Channel == "" {
		return ErrChannelDisabled
	}
	return &channelError{channel: d.Channel, err: ErrChannelDisabled}
}

type channelError struct {
	channel domain.Channel
	err     error
}

func (e *channelError) Error() string { return string(e.channel) + ": " + e.err.Error() }
func (e *channelError) Unwrap() error { return e.err }

// withPlus returns the number with a single leading '+'.
func withPlus(phone string) string {
	return "+" + strings.TrimLeft(strings.TrimSpace(phone), "+")
}

// withoutPlus returns the number with no leading '+'.
func withoutPlus(phone string) string {
	return strings.TrimLeft(strings.TrimSpace(phone), "+")
}

// dollars renders a bare amount such as "15.49" as "$15.49".
func dollars(amount string) string {
	if amount == "" || strings.HasPrefix(amount, "$") {
		return amount
	}
	return "$" + amount
}

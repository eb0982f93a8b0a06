package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while a channel's breaker rejects calls.
var ErrCircuitOpen = errors.New("channel circuit open")

// BreakerSettings tunes a channel breaker.
type BreakerSettings struct {
	Timeout          time.Duration // per-call deadline
	FailureThreshold uint32        // consecutive failures before opening
	OpenFor          time.Duration // how long the breaker stays open
}

// DefaultBreakerSettings returns the settings used for every channel.
func DefaultBreakerSettings(callTimeout time.Duration) BreakerSettings {
	return BreakerSettings{Timeout: callTimeout, FailureThreshold: 5, OpenFor: 30 * time.Second}
}

type breaker struct {
	channel domain.Channel
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[any]
}

func newBreaker(ch domain.Channel, s BreakerSettings) *breaker {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        string(ch),
		MaxRequests: 1,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		// Only channel-wide faults trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrChannelDisabled) || errors.Is(err, ErrRecipientRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("channel", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
			metrics.BreakerTransitionsTotal.WithLabelValues(name, to.String()).Inc()
		},
	})
	return &breaker{channel: ch, timeout: s.Timeout, cb: cb}
}

// do runs fn under the breaker with a deadline. A call that outlives the
// deadline counts as failed even if the provider later completes it.
func (b *breaker) do(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	defer func() {
		metrics.ChannelSendDuration.WithLabelValues(string(b.channel)).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.cb.Execute(func() (any, error) {
		done := make(chan error, 1)
		go func() { done <- fn(ctx) }()
		select {
		case err := <-done:
			return nil, err
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: send timed out after %s: %w", b.channel, b.timeout, ctx.Err())
		}
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", b.channel, ErrCircuitOpen)
	}
	return err
}

// GuardedEmail wraps an EmailSender with a breaker and per-call timeout.
type GuardedEmail struct {
	next EmailSender
	b    *breaker
}

// GuardEmail wraps next. Disabled senders are returned unchanged.
func GuardEmail(next EmailSender, s BreakerSettings) EmailSender {
	if _, ok := next.(Disabled); ok {
		return next
	}
	return &GuardedEmail{next: next, b: newBreaker(domain.ChannelEmail, s)}
}

func (g *GuardedEmail) SendTemplate(ctx context.Context, to, subject string, fields domain.EmailFields) error {
	return g.b.do(ctx, func(ctx context.Context) error {
		return g.next.SendTemplate(ctx, to, subject, fields)
	})
}

func (g *GuardedEmail) SendHTML(ctx context.Context, to, subject, html string) error {
	return g.b.do(ctx, func(ctx context.Context) error {
		return g.next.SendHTML(ctx, to, subject, html)
	})
}

// GuardedText wraps a TextSender with a breaker and per-call timeout.
type GuardedText struct {
	next TextSender
	b    *breaker
}

// GuardText wraps next for channel ch. Disabled senders are returned unchanged.
func GuardText(ch domain.Channel, next TextSender, s BreakerSettings) TextSender {
	if _, ok := next.(Disabled); ok {
		return next
	}
	return &GuardedText{next: next, b: newBreaker(ch, s)}
}

func (g *GuardedText) Send(ctx context.Context, to, body string) error {
	return g.b.do(ctx, func(ctx context.Context) error {
		return g.next.Send(ctx, to, body)
	})
}

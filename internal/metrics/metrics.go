package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReminderRunsTotal counts reminder batches by outcome (ok, error, locked).
	ReminderRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rekur",
		Subsystem: "reminders",
		Name:      "runs_total",
		Help:      "Total reminder batches by outcome.",
	}, []string{"outcome"})

	// ReminderDispatchTotal counts individual channel send attempts.
	ReminderDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rekur",
		Subsystem: "reminders",
		Name:      "dispatch_total",
		Help:      "Reminder send attempts by channel and outcome.",
	}, []string{"channel", "outcome"})

	// ReminderRunDuration tracks batch latency.
	ReminderRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rekur",
		Subsystem: "reminders",
		Name:      "run_duration_seconds",
		Help:      "Reminder batch duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// ChannelSendDuration tracks outbound channel latency.
	ChannelSendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rekur",
		Subsystem: "channels",
		Name:      "send_duration_seconds",
		Help:      "Outbound channel call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"channel"})

	// BreakerTransitionsTotal counts circuit breaker transitions per channel.
	BreakerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rekur",
		Subsystem: "channels",
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker state transitions by channel and target state.",
	}, []string{"channel", "state"})

	// WebhookRequestsTotal counts payment webhook requests by provider, event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rekur",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Payment webhook requests by provider, event type and HTTP status.",
	}, []string{"provider", "event_type", "status"})

	// PlanChangesTotal counts plan writes by source and resulting plan.
	PlanChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rekur",
		Subsystem: "billing",
		Name:      "plan_changes_total",
		Help:      "Plan writes by source (lemonsqueezy, stripe, admin, reset) and plan.",
	}, []string{"source", "plan"})

	// UnmappedProductsTotal counts provider product ids that matched no paid plan.
	UnmappedProductsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rekur",
		Subsystem: "billing",
		Name:      "unmapped_products_total",
		Help:      "Provider variant/price ids that mapped to the free plan.",
	}, []string{"provider"})

	// RateLimitedTotal counts requests rejected by a per-IP limiter.
	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rekur",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429 by limiter.",
	}, []string{"limiter"})
)

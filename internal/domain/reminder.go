package domain

import (
	"errors"
	"time"
)

// Channel is a notification delivery mechanism.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists every channel in dispatch order.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp}

// ErrRunInProgress is returned when another reminder run holds the lock.
var ErrRunInProgress = errors.New("reminder run already in progress")

// ReminderLog is one append-only send attempt record.
type ReminderLog struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscriptionId"`
	UserID         string    `json:"userId"`
	Channel        Channel   `json:"channel"`
	DaysBefore     int       `json:"daysBefore"`
	Success        bool      `json:"success"`
	Error          *string   `json:"error"`
	RunID          string    `json:"runId"`
	RunAt          time.Time `json:"runAt"`  // shared by every entry of a batch
	SentAt         time.Time `json:"sentAt"` // when this attempt settled
}

// RunSummary is the result of one reminder batch.
type RunSummary struct {
	Status    string    `json:"status"`
	RunID     string    `json:"runId"`
	RunAt     time.Time `json:"runAt"`
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Attempts  int       `json:"attempts"`
	Failures  int       `json:"failures"`
	Skipped   int       `json:"skipped"`
}

// RunStatus describes the latest batch for the admin "last run" display.
type RunStatus struct {
	LastRun *time.Time `json:"lastRun"`
	Sent    int        `json:"sent"`
}

// EmailFields are the structured template fields of a reminder email.
type EmailFields struct {
	UserName    string `json:"userName"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	RenewalDate string `json:"renewalDate"`
	Plan        string `json:"plan"`
	RenewalLink string `json:"renewalLink"`
	BillingLink string `json:"billingLink"`
	PrivacyURL  string `json:"privacyUrl"`
}

// Map returns the fields keyed by template variable name.
func (f EmailFields) Map() map[string]string {
	return map[string]string{
		"userName":    f.UserName,
		"name":        f.Name,
		"price":       f.Price,
		"renewalDate": f.RenewalDate,
		"plan":        f.Plan,
		"renewalLink": f.RenewalLink,
		"billingLink": f.BillingLink,
		"privacyUrl":  f.PrivacyURL,
	}
}

package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rekur/backend/internal/domain"
)

// SkipReason explains why a subscription produced no reminders.
type SkipReason string

const (
	SkipNoRemindDays   SkipReason = "no remind days"
	SkipBadRenewalDate SkipReason = "invalid renewal date"
	SkipOwnerNotFound  SkipReason = "owner not found"
	SkipOwnerLookup    SkipReason = "owner lookup failed"
)

// ParseRenewalDate reads a stored renewal date as a calendar day in loc.
// Both "2006-01-02" and RFC 3339 timestamps are accepted.
func ParseRenewalDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}

// sameDay reports calendar equality in a's location.
func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DueOffsets returns the offsets whose reminder day is today.
// Coinciding offsets are all returned.
func DueOffsets(renewal time.Time, remindDays []int, today time.Time) []int {
	var due []int
	for _, d := range domain.NormalizeRemindDays(remindDays) {
		if sameDay(renewal.AddDate(0, 0, -d), today) {
			due = append(due, d)
		}
	}
	return due
}

func dayWord(d int) string {
	if d == 1 {
		return "day"
	}
	return "days"
}

// FormatRenewalDate renders a date as "Jan 2, 2006".
func FormatRenewalDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// ReminderMessage is the SMS and WhatsApp body.
func ReminderMessage(sub *domain.Subscription, days int, renewal time.Time) string {
	return fmt.Sprintf("Reminder: %s renews in %d %s on %s for $%s.",
		sub.Name, days, dayWord(days), FormatRenewalDate(renewal), sub.Price.StringFixed(2))
}

// ReminderSubject is the email subject line.
func ReminderSubject(sub *domain.Subscription, days int) string {
	return fmt.Sprintf("%s - Renewal Reminder (%d %s)", sub.Name, days, dayWord(days))
}

// ReminderEmailFields builds the template fields for a reminder email.
func ReminderEmailFields(user *domain.User, sub *domain.Subscription, renewal time.Time, appURL string) domain.EmailFields {
	plan := string(user.Plan)
	if plan == "" {
		plan = "Personal"
	}
	return domain.EmailFields{
		UserName:    user.GreetingName(),
		Name:        sub.Name,
		Price:       sub.Price.StringFixed(2),
		RenewalDate: FormatRenewalDate(renewal),
		Plan:        plan,
		RenewalLink: appURL + "/dashboard",
		BillingLink: appURL + "/account",
		PrivacyURL:  appURL + "/privacy",
	}
}

// EligibleChannels lists the channels a reminder goes out on, in dispatch order.
func EligibleChannels(user *domain.User, sub *domain.Subscription) []domain.Channel {
	var out []domain.Channel
	if sub.EmailEnabled() && user.Email != "" {
		out = append(out, domain.ChannelEmail)
	}
	phone := user.Plan.AllowsPhoneChannels() && user.Phone != ""
	if sub.SMSReminder && phone {
		out = append(out, domain.ChannelSMS)
	}
	if sub.WhatsAppReminder && phone {
		out = append(out, domain.ChannelWhatsApp)
	}
	return out
}

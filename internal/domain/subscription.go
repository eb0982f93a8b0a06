package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is a recurring charge tracked by its owner.
// RenewalDate is kept as stored; it is parsed at the scheduling boundary.
type Subscription struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	RenewalDate      string          `json:"renewalDate"`
	RemindDays       []int           `json:"remindDays"`
	EmailReminder    *bool           `json:"emailReminder,omitempty"` // nil means enabled
	SMSReminder      bool            `json:"smsReminder"`
	WhatsAppReminder bool            `json:"whatsappReminder"`
	Category         string          `json:"category,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// EmailEnabled reports whether email reminders are on. Only an explicit false disables them.
func (s *Subscription) EmailEnabled() bool {
	return s.EmailReminder == nil || *s.EmailReminder
}

// NormalizeRemindDays drops negative offsets, removes duplicates and sorts.
func NormalizeRemindDays(days []int) []int {
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// SubscriptionRequest is the validated input for creating or editing a subscription.
type SubscriptionRequest struct {
	Name             string          `json:"name" validate:"required,min=1,max=100"`
	Price            decimal.Decimal `json:"price"`
	RenewalDate      string          `json:"renewalDate" validate:"required,datetime=2006-01-02"`
	RemindDays       []int           `json:"remindDays" validate:"max=10,dive,min=0,max=365"`
	EmailReminder    *bool           `json:"emailReminder"`
	SMSReminder      bool            `json:"smsReminder"`
	WhatsAppReminder bool            `json:"whatsappReminder"`
	Category         string          `json:"category" validate:"max=50"`
}

// UserCategory is a custom category in a user's palette.
type UserCategory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// CategoryRequest is the validated input for creating a category.
type CategoryRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// TeamInvite is a workspace member invitation.
type TeamInvite struct {
	ID             string    `json:"id"`
	WorkspaceOwner string    `json:"workspaceOwner"`
	Email          string    `json:"email"`
	Status         string    `json:"status"` // pending, accepted
	CreatedAt      time.Time `json:"createdAt"`
}

// InviteRequest is the validated input for inviting a member.
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

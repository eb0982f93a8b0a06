package domain

import "strings"

// PlanTier is the canonical entitlement level stored on the user record.
type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanPro      PlanTier = "pro"
	PlanBusiness PlanTier = "business"
)

// ParsePlanTier normalizes a stored or requested plan value.
// Unknown and empty values are reported with ok=false.
func ParsePlanTier(s string) (PlanTier, bool) {
	switch PlanTier(strings.ToLower(strings.TrimSpace(s))) {
	case PlanFree:
		return PlanFree, true
	case PlanPro:
		return PlanPro, true
	case PlanBusiness:
		return PlanBusiness, true
	}
	return "", false
}

// AllowsPhoneChannels reports whether SMS and WhatsApp reminders are available.
func (p PlanTier) AllowsPhoneChannels() bool {
	return p == PlanPro || p == PlanBusiness
}

// AllowsCategories reports whether custom subscription categories are available.
func (p PlanTier) AllowsCategories() bool {
	return p == PlanBusiness
}

// Paid reports whether the tier is backed by a payment provider.
func (p PlanTier) Paid() bool {
	return p == PlanPro || p == PlanBusiness
}

// Plan represents a pricing tier shown on the pricing page.
type Plan struct {
	ID            PlanTier `json:"id"`
	Name          string   `json:"name"`
	MonthlyUSD    int      `json:"monthlyUsd"`    // price in USD cents
	YearlyUSD     int      `json:"yearlyUsd"`     // price in USD cents
	MaxTracked    int      `json:"maxTracked"`    // 0 = unlimited
	PhoneChannels bool     `json:"phoneChannels"` // SMS + WhatsApp reminders
	Categories    bool     `json:"categories"`
	Popular       bool     `json:"popular"`
}

// AvailablePlans returns all available plans.
func AvailablePlans() []Plan {
	return []Plan{
		{
			ID:         PlanFree,
			Name:       "Free",
			MaxTracked: 5,
		},
		{
			ID:            PlanPro,
			Name:          "Pro",
			MonthlyUSD:    300,  // $3/mo
			YearlyUSD:     2500, // $25/yr
			PhoneChannels: true,
			Popular:       true,
		},
		{
			ID:            PlanBusiness,
			Name:          "Business",
			MonthlyUSD:    1000,  // $10/mo
			YearlyUSD:     10000, // $100/yr
			PhoneChannels: true,
			Categories:    true,
		},
	}
}

// GetPlan returns the plan for a given tier, or the free plan if not found.
func GetPlan(id PlanTier) Plan {
	for _, p := range AvailablePlans() {
		if p.ID == id {
			return p
		}
	}
	return AvailablePlans()[0]
}

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role values for User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account profile.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	DisplayName          string    `json:"displayName,omitempty"`
	Phone                string    `json:"phone,omitempty"` // E.164, encrypted at rest
	Plan                 PlanTier  `json:"plan"`
	Role                 string    `json:"role"`
	Password             string    `json:"-"` // bcrypt hash, admins only
	StripeCustomerID     *string   `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID *string   `json:"stripeSubscriptionId,omitempty"`
	LemonCustomerID      *string   `json:"lemonCustomerId,omitempty"`
	LemonSubscriptionID  *string   `json:"lemonSubscriptionId,omitempty"`
	Disabled             bool      `json:"disabled"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// GreetingName is the name used to address the user in emails.
func (u *User) GreetingName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// PlanUpdate is the single-document write produced by reconciliation.
// Nil provider ids are persisted as NULL.
type PlanUpdate struct {
	Plan           PlanTier
	Provider       Provider
	CustomerID     *string
	SubscriptionID *string
	UpdatedAt      time.Time
}

// Provider identifies a payment provider.
type Provider string

const (
	ProviderLemon  Provider = "lemonsqueezy"
	ProviderStripe Provider = "stripe"
)

// LoginRequest is the validated input for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// LoginResponse is the API response after successful login.
type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// LoginUser is the user info returned after login.
type LoginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CreateUserRequest is the validated input for creating a user.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateAccountRequest is the validated input for account settings.
type UpdateAccountRequest struct {
	DisplayName string `json:"displayName" validate:"max=100"`
	Phone       string `json:"phone" validate:"omitempty,e164"`
}

// ChangePlanRequest is the admin override input.
type ChangePlanRequest struct {
	UserID string `json:"userId" validate:"required"`
	Plan   string `json:"plan" validate:"required,oneof=free pro business"`
}

// UserIDRequest carries a single user id.
type UserIDRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// UserResponse is the safe API response for a user (no password).
type UserResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Plan             PlanTier  `json:"plan"`
	Role             string    `json:"role"`
	StripeCustomerID *string   `json:"stripeCustomerId,omitempty"`
	Disabled         bool      `json:"disabled"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ToResponse strips credentials from a user.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		Phone:            u.Phone,
		Plan:             u.Plan,
		Role:             u.Role,
		StripeCustomerID: u.StripeCustomerID,
		Disabled:         u.Disabled,
		CreatedAt:        u.CreatedAt,
	}
}

// NewUserID generates a new UUID for a user.
func NewUserID() string {
	return uuid.New().String()
}

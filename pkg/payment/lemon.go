package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultLemonBaseURL is the Lemon Squeezy API root.
const DefaultLemonBaseURL = "https://api.lemonsqueezy.com"

// Lemon talks to the Lemon Squeezy API and verifies its webhooks.
type Lemon struct {
	apiKey        string
	storeID       string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

// NewLemon creates a Lemon client. baseURL may be empty.
func NewLemon(apiKey, storeID, webhookSecret, baseURL string) *Lemon {
	if baseURL == "" {
		baseURL = DefaultLemonBaseURL
	}
	return &Lemon{
		apiKey:        apiKey,
		storeID:       storeID,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

// WebhookConfigured reports whether webhooks can be verified.
func (l *Lemon) WebhookConfigured() bool { return l.webhookSecret != "" }

// VerifySignature checks the hex HMAC-SHA256 of payload in constant time.
func (l *Lemon) VerifySignature(payload []byte, signature string) bool {
	return VerifyLemonSignature(payload, signature, l.webhookSecret)
}

// VerifyLemonSignature checks an X-Signature header value against secret.
func VerifyLemonSignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignLemonPayload returns the X-Signature value for payload.
func SignLemonPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// FlexID is an identifier Lemon sends either as a JSON number or string.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*f = FlexID(n.String())
	return nil
}

// LemonEvent is the subset of a Lemon Squeezy webhook body the app reads.
type LemonEvent struct {
	Meta struct {
		EventName  string         `json:"event_name"`
		CustomData map[string]json.RawMessage `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         FlexID          `json:"id"`
		Type       string          `json:"type"`
		Attributes LemonAttributes `json:"attributes"`
	} `json:"data"`
}

// LemonAttributes are the order or subscription attributes.
type LemonAttributes struct {
	VariantID      FlexID `json:"variant_id"`
	CustomerID     FlexID `json:"customer_id"`
	Identifier     string `json:"identifier"`
	UserEmail      string `json:"user_email"`
	Status         string `json:"status"`
	FirstOrderItem *struct {
		VariantID FlexID `json:"variant_id"`
	} `json:"first_order_item"`
}

// ParseLemonEvent decodes a verified webhook body.
func ParseLemonEvent(payload []byte) (*LemonEvent, error) {
	var ev LemonEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("invalid lemon webhook payload: %w", err)
	}
	return &ev, nil
}

// UserID returns meta.custom_data.user_id, or "".
func (e *LemonEvent) UserID() string {
	raw, ok := e.Meta.CustomData["user_id"]
	if !ok {
		return ""
	}
	var id FlexID
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return strings.TrimSpace(string(id))
}

// VariantID returns the purchased variant, falling back to the first order item.
func (e *LemonEvent) VariantID() string {
	if v := string(e.Data.Attributes.VariantID); v != "" {
		return v
	}
	if item := e.Data.Attributes.FirstOrderItem; item != nil {
		return string(item.VariantID)
	}
	return ""
}

// SubscriptionID is data.id for subscription objects and the order
// identifier otherwise. It is "" when neither is present.
func (e *LemonEvent) SubscriptionID() string {
	if e.Data.Type == "subscriptions" {
		return string(e.Data.ID)
	}
	return e.Data.Attributes.Identifier
}

type lemonCheckoutBody struct {
	Data lemonCheckoutData `json:"data"`
}

type lemonCheckoutData struct {
	Type          string                  `json:"type"`
	Attributes    lemonCheckoutAttributes `json:"attributes"`
	Relationships map[string]lemonRel     `json:"relationships"`
}

type lemonCheckoutAttributes struct {
	CheckoutData struct {
		Email  string            `json:"email,omitempty"`
		Custom map[string]string `json:"custom"`
	} `json:"checkout_data"`
	ProductOptions struct {
		RedirectURL         string `json:"redirect_url"`
		ReceiptButtonText   string `json:"receipt_button_text"`
		ReceiptThankYouNote string `json:"receipt_thank_you_note"`
	} `json:"product_options"`
}

type lemonRel struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

type lemonCheckoutResponse struct {
	Data struct {
		Attributes struct {
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

// CreateCheckout creates a hosted checkout carrying the user id as custom data.
func (l *Lemon) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if l.apiKey == "" || l.storeID == "" {
		return "", ErrNotConfigured
	}

	var data lemonCheckoutData
	data.Type = "checkouts"
	data.Attributes.CheckoutData.Email = req.Email
	data.Attributes.CheckoutData.Custom = map[string]string{"user_id": req.UserID}
	data.Attributes.ProductOptions.RedirectURL = req.SuccessURL
	data.Attributes.ProductOptions.ReceiptButtonText = "Go to Dashboard"
	data.Attributes.ProductOptions.ReceiptThankYouNote = "Thank you for subscribing to ReKur!"
	store, variant := lemonRel{}, lemonRel{}
	store.Data.Type, store.Data.ID = "stores", l.storeID
	variant.Data.Type, variant.Data.ID = "variants", req.ProductID
	data.Relationships = map[string]lemonRel{"store": store, "variant": variant}

	body, err := json.Marshal(lemonCheckoutBody{Data: data})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)
	httpReq.Header.Set("Accept", "application/vnd.api+json")
	httpReq.Header.Set("Content-Type", "application/vnd.api+json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("lemon checkout: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("lemon checkout: %w", err)
	}
	var out lemonCheckoutResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("lemon checkout: status %d: invalid response", resp.StatusCode)
	}
	if len(out.Errors) > 0 {
		return "", fmt.Errorf("lemon checkout: %s", out.Errors[0].Detail)
	}
	if resp.StatusCode >= 300 || out.Data.Attributes.URL == "" {
		return "", fmt.Errorf("lemon checkout: status %d", resp.StatusCode)
	}
	return out.Data.Attributes.URL, nil
}

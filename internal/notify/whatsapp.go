package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rekur/backend/internal/config"
	"github.com/rekur/backend/internal/domain"
)

// WhatsApp sends text messages through the WhatsApp Cloud API.
type WhatsApp struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewWhatsApp returns a WhatsApp sender, or Disabled when credentials are missing.
func NewWhatsApp(cfg config.WhatsAppConfig) TextSender {
	if cfg.PhoneID == "" || cfg.Token == "" {
		return Disabled{Channel: domain.ChannelWhatsApp}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &WhatsApp{
		endpoint: fmt.Sprintf("%s/%s/%s/messages", base, cfg.APIVersion, cfg.PhoneID),
		token:    cfg.Token,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type whatsappText struct {
	Body string `json:"body"`
}

type whatsappMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsappText `json:"text"`
}

// Send posts a text message. The API expects the number without '+'.
func (w *WhatsApp) Send(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(whatsappMessage{
		MessagingProduct: "whatsapp",
		To:               withoutPlus(to),
		Type:             "text",
		Text:             whatsappText{Body: body},
	})
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if rejectedStatus(resp.StatusCode) {
			return fmt.Errorf("whatsapp: %w: %w", ErrRecipientRejected, err)
		}
		return fmt.Errorf("whatsapp: %w", err)
	}
	return nil
}

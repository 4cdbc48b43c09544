// Package whatsapp delivers outbound replies through the WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutardo/chatrelay/internal/observability"
)

// DefaultBaseURL is the Graph API root used when none is configured.
const DefaultBaseURL = "https://graph.facebook.com/v21.0"

// Options configures the delivery client.
type Options struct {
	Token         string
	PhoneNumberID string
	BaseURL       string
	// NumberRewrites maps an inbound sender id to the outbound recipient id
	// for numbers the provider stores in a different canonical form.
	NumberRewrites map[string]string
}

// Client sends text messages keyed by user identifier.
type Client struct {
	opts   Options
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a delivery client.
func NewClient(opts Options, logger zerolog.Logger) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("whatsapp token is required")
	}
	if opts.PhoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp phone number id is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	return &Client{
		opts:   opts,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}, nil
}

// SendText posts a text message to the user. The recipient id is rewritten
// first when a rewrite rule exists for it.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	if rewritten, ok := c.opts.NumberRewrites[to]; ok {
		c.logger.Debug().Str("from", to).Str("to", rewritten).Msg("Rewriting recipient number")
		to = rewritten
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"text":              map[string]string{"body": text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.opts.BaseURL, c.opts.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		observability.RecordDelivery(false)
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		observability.RecordDelivery(false)
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("whatsapp api returned %d: %s", res.StatusCode, detail)
	}

	observability.RecordDelivery(true)
	c.logger.Debug().Str("to", to).Int("chars", len(text)).Msg("Message delivered")

	return nil
}

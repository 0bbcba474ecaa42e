// Package zapi integrates with the Z-API WhatsApp gateway: outbound text
// messages, webhook registration, and inbound webhook payload handling.
package zapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.z-api.io"

// Config holds the Z-API credentials.
type Config struct {
	BaseURL       string
	InstanceID    string
	InstanceToken string
	ClientToken   string
	WebhookSecret string
	HTTPClient    *http.Client
}

// Client calls the Z-API instance endpoints.
type Client struct {
	baseURL       string
	instanceID    string
	token         string
	clientToken   string
	webhookSecret string
	http          *http.Client
}

// New creates a Z-API client.
func New(cfg Config) (*Client, error) {
	if cfg.InstanceID == "" || cfg.InstanceToken == "" {
		return nil, fmt.Errorf("zapi: instance id and token are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		instanceID:    cfg.InstanceID,
		token:         cfg.InstanceToken,
		clientToken:   cfg.ClientToken,
		webhookSecret: cfg.WebhookSecret,
		http:          cfg.HTTPClient,
	}, nil
}

// SendText sends a plain text message to a phone in E.164-ish digits form.
func (c *Client) SendText(ctx context.Context, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("zapi: missing target phone")
	}
	return c.request(ctx, http.MethodPost, "send-text", map[string]any{
		"phone":   strings.TrimPrefix(phone, "+"),
		"message": message,
	})
}

// UpdateWebhookReceived points the incoming-message webhook at url.
func (c *Client) UpdateWebhookReceived(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("zapi: empty webhook url")
	}
	return c.request(ctx, http.MethodPut, "update-webhook-received", map[string]any{"value": url})
}

// UpdateEveryWebhooks points every webhook at url, including messages sent by
// the instance itself.
func (c *Client) UpdateEveryWebhooks(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("zapi: empty webhook url")
	}
	return c.request(ctx, http.MethodPut, "update-every-webhooks", map[string]any{
		"value":          url,
		"notifySentByMe": true,
	})
}

func (c *Client) request(ctx context.Context, method, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("zapi: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s/%s", c.baseURL, c.instanceID, c.token, path)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("zapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.clientToken != "" {
		req.Header.Set("Client-Token", c.clientToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("zapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("zapi: %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	return nil
}

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

	"go.uber.org/zap"
)

// Client registers and unregisters the device for push notifications against
// the relay's notification endpoint. Callers treat it as best-effort: the
// session logs failures and moves on.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *zap.Logger
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a client for the given endpoint base URL
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers the device token for notifications of the given kind
func (c *Client) Subscribe(ctx context.Context, token, kind string) error {
	c.log.Debug("registering for notifications", zap.String("kind", kind))
	return c.post(ctx, "/v1/subscriptions", map[string]string{
		"token": token,
		"type":  kind,
	})
}

// Unsubscribe removes the registration tied to the pairing code
func (c *Client) Unsubscribe(ctx context.Context, code, kind string) error {
	c.log.Debug("unregistering from notifications", zap.String("kind", kind))
	return c.post(ctx, "/v1/subscriptions/delete", map[string]string{
		"code": code,
		"type": kind,
	})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}

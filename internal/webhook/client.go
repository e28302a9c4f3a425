package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Client delivers trade notifications to an external HTTP endpoint. Delivery
// is best effort with a fixed retry delay; trading never blocks on it.
type Client struct {
	url        string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
}

// NewClient builds a webhook client. An empty url disables delivery.
func NewClient(url string, timeout time.Duration, retries int) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		retryDelay: time.Second,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool { return c.url != "" }

// Notify posts payload as JSON. It retries on transport errors and 5xx
// responses; 4xx responses are treated as permanent and not retried.
func (c *Client) Notify(ctx context.Context, event string, payload any) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"event":   event,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		status, err := c.post(ctx, body)
		if err == nil && status < 300 {
			return nil
		}
		if err == nil && status >= 400 && status < 500 {
			return fmt.Errorf("webhook rejected: status %d", status)
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("webhook status %d", status)
		}
		log.Printf("webhook: attempt %d failed: %v", attempt+1, lastErr)
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

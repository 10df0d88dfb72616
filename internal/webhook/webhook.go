package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/metrics"
	"github.com/shehryarbajwa/walla-export/pkg/models"
)

// Client posts export results to caller-supplied URLs. Delivery is
// best-effort: every outcome is reported as a WebhookResult, never an error.
type Client struct {
	http    *http.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewClient(timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		logger:  logger,
	}
}

// Validate rejects URLs that cannot be delivered to
func Validate(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook url must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url has no host")
	}
	return nil
}

// Deliver POSTs payload as JSON to target
func (c *Client) Deliver(ctx context.Context, target string, payload models.WebhookPayload) *models.WebhookResult {
	result := c.deliver(ctx, target, payload)
	c.metrics.ObserveWebhook(result.OK)

	if result.OK {
		c.logger.Info("webhook delivered", zap.Int("status", result.StatusCode))
	} else {
		c.logger.Warn("webhook delivery failed", zap.Int("status", result.StatusCode), zap.String("error", result.Error))
	}
	return result
}

func (c *Client) deliver(ctx context.Context, target string, payload models.WebhookPayload) *models.WebhookResult {
	if err := Validate(target); err != nil {
		return &models.WebhookResult{Error: err.Error()}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &models.WebhookResult{Error: fmt.Sprintf("failed to marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &models.WebhookResult{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "walla-export")

	resp, err := c.http.Do(req)
	if err != nil {
		return &models.WebhookResult{Error: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &models.WebhookResult{StatusCode: resp.StatusCode, Error: fmt.Sprintf("webhook returned %s", resp.Status)}
	}
	return &models.WebhookResult{OK: true, StatusCode: resp.StatusCode}
}

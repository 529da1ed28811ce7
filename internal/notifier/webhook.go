// Package notifier delivers backtest completion webhooks.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/arblens/internal/config"
	"github.com/yourusername/arblens/internal/logger"
	"github.com/yourusername/arblens/internal/metrics"
	"github.com/yourusername/arblens/internal/models"
	"golang.org/x/time/rate"
)

// Delivery outcomes recorded in arblens_notifications_total
const (
	statusDelivered = "delivered"
	statusFailed    = "failed"
	statusSkipped   = "skipped"
)

// Config holds configuration for the webhook notifier
type Config struct {
	WebhookURL   string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // deliveries per second, 0 = unlimited
}

// FromConfig maps the notifier section of the application config
func FromConfig(cfg config.NotifierConfig) Config {
	c := DefaultConfig()
	c.WebhookURL = cfg.WebhookURL
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	c.MaxRetries = cfg.MaxRetries
	c.RateLimit = cfg.RateLimit
	return c
}

// DefaultConfig returns recommended defaults
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 10 * time.Second,
		RateLimit:    5,
	}
}

// Payload is the JSON body posted for a finished backtest
type Payload struct {
	BacktestID  string                `json:"backtest_id"`
	Name        string                `json:"name"`
	UserID      string                `json:"user_id"`
	Status      models.BacktestStatus `json:"status"`
	Metrics     models.BacktestResult `json:"metrics"`
	Error       string                `json:"error,omitempty"`
	Attempts    int                   `json:"attempts"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// WebhookNotifier posts completion payloads with retries and rate limiting
type WebhookNotifier struct {
	url     string
	client  *retryablehttp.Client
	limiter *rate.Limiter
	audit   *logger.AuditLogger
}

// NewWebhookNotifier creates a notifier for the configured webhook URL
func NewWebhookNotifier(cfg Config, log *logrus.Logger) (*WebhookNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if log == nil {
		log = logrus.New()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = retryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &WebhookNotifier{
		url:     cfg.WebhookURL,
		client:  retryClient,
		limiter: rate.NewLimiter(limit, 1),
		audit:   logger.NewAuditLogger(log),
	}, nil
}

// NotifyCompletion posts the backtest outcome. Backtests that have not
// reached a terminal status are skipped.
func (n *WebhookNotifier) NotifyCompletion(ctx context.Context, bt *models.Backtest) error {
	if bt == nil || !bt.Status.IsTerminal() {
		metrics.RecordNotification(statusSkipped)
		return nil
	}

	statusCode, err := n.deliver(ctx, newPayload(bt))
	if err != nil {
		metrics.RecordNotification(statusFailed)
		n.audit.LogWebhookDelivery(bt.ID.String(), string(bt.Status), statusCode, err)
		return err
	}

	metrics.RecordNotification(statusDelivered)
	n.audit.LogWebhookDelivery(bt.ID.String(), string(bt.Status), statusCode, nil)
	return nil
}

// Close releases idle connections
func (n *WebhookNotifier) Close() error {
	n.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (n *WebhookNotifier) deliver(ctx context.Context, payload Payload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "arblens-notifier/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func newPayload(bt *models.Backtest) Payload {
	p := Payload{
		BacktestID:  bt.ID.String(),
		Name:        bt.Name,
		UserID:      bt.UserID,
		Status:      bt.Status,
		Metrics:     bt.BacktestResult,
		Attempts:    bt.Attempts,
		CompletedAt: bt.CompletedAt,
	}
	if bt.ErrorMessage != nil {
		p.Error = *bt.ErrorMessage
	}
	return p
}

// retryPolicy retries network errors, 429 and gateway failures
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

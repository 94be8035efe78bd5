// Package notify delivers auto-degrade notifications.
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

	"github.com/example/scenegov/internal/ports/secondary"
)

// Channel names.
const (
	ChannelLog    = "log"
	webhookPrefix = "webhook:"
)

// Kind returns the channel family ("log", "webhook" or "unknown").
func Kind(channel string) string {
	switch {
	case channel == ChannelLog:
		return ChannelLog
	case strings.HasPrefix(channel, webhookPrefix):
		return "webhook"
	}
	return "unknown"
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier for the "log" channel.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

var _ secondary.Notifier = (*LogNotifier)(nil)

// Channel returns "log".
func (n *LogNotifier) Channel() string { return ChannelLog }

// Notify logs the payload at warn level.
func (n *LogNotifier) Notify(ctx context.Context, p secondary.NotificationPayload) error {
	n.logger.Warn("auto-degrade notification",
		zap.String("trace_id", p.TraceID),
		zap.String("scope", p.Scope),
		zap.String("action_taken", p.ActionTaken),
		zap.Strings("reason_codes", p.ReasonCodes),
		zap.String("triggered_at", p.TriggeredAt))
	return nil
}

// WebhookNotifier posts notifications as JSON to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a notifier for a "webhook:<url>" channel.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, client: client}
}

var _ secondary.Notifier = (*WebhookNotifier)(nil)

// Channel returns "webhook:<url>".
func (n *WebhookNotifier) Channel() string { return webhookPrefix + n.url }

// Notify posts the payload. Any non-2xx response is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, p secondary.NotificationPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trace-Id", p.TraceID)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", n.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s: unexpected status %d", n.url, resp.StatusCode)
	}
	return nil
}

// Resolver maps channel names onto notifiers.
type Resolver struct {
	logger *zap.Logger
	client *http.Client
}

// NewResolver creates a resolver for the log and webhook channel families.
func NewResolver(logger *zap.Logger, client *http.Client) *Resolver {
	return &Resolver{logger: logger, client: client}
}

// Resolve returns the notifier serving channel.
func (r *Resolver) Resolve(channel string) (secondary.Notifier, error) {
	switch Kind(channel) {
	case ChannelLog:
		return NewLogNotifier(r.logger), nil
	case "webhook":
		url := strings.TrimPrefix(channel, webhookPrefix)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("webhook channel %q must carry an http(s) URL", channel)
		}
		return NewWebhookNotifier(url, r.client), nil
	}
	return nil, fmt.Errorf("unknown notify channel %q", channel)
}

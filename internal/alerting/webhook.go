package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Webhook payload flavours.
const (
	WebhookSlack = "slack"
	WebhookTeams = "teams"
	WebhookHTTP  = "http"
)

// WebhookConfig is one outbound webhook target.
type WebhookConfig struct {
	Type string `mapstructure:"type"`
	URL  string `mapstructure:"url"`
}

// WebhookNotifier posts alerts to a chat or generic HTTP webhook.
type WebhookNotifier struct {
	kind   string
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier validates the target type and builds a notifier.
func NewWebhookNotifier(cfg WebhookConfig, timeout time.Duration, logger zerolog.Logger) (*WebhookNotifier, error) {
	switch cfg.Type {
	case WebhookSlack, WebhookTeams, WebhookHTTP:
	default:
		return nil, fmt.Errorf("unknown webhook type %q", cfg.Type)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook %s: url is required", cfg.Type)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		kind:   cfg.Type,
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "alert_webhook").Str("type", cfg.Type).Logger(),
	}, nil
}

// Notify posts the payload matching the webhook type.
func (n *WebhookNotifier) Notify(ctx context.Context, note Notification) error {
	var payload any
	switch n.kind {
	case WebhookSlack:
		payload = map[string]string{
			"text": fmt.Sprintf("*%s* %s", severityLabel(note.Severity()), renderMessage(note)),
		}
	case WebhookTeams:
		payload = map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(note.Severity()),
			"summary":    note.Message,
			"title":      fmt.Sprintf("HealthGuard: risk %s", note.Status),
			"text":       renderMessage(note),
		}
	default:
		payload = map[string]any{"alert": note, "severity": note.Severity()}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	n.logger.Debug().Str("status", string(note.Status)).Msg("webhook delivered")
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}

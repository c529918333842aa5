package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/karl-ai/corehub/internal/common/config"
)

// Channel delivers alert notifications to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// ChannelsFromConfig builds the enabled notification channels.
func ChannelsFromConfig(cfg config.AlertsConfig) []Channel {
	var out []Channel
	if cfg.Email.Enabled {
		out = append(out, NewEmailChannel(cfg.Email))
	}
	if cfg.Webhook.Enabled {
		out = append(out, NewWebhookChannel(cfg.Webhook))
	}
	if cfg.Slack.Enabled {
		out = append(out, NewSlackChannel(cfg.Slack))
	}
	return out
}

// EmailChannel sends alerts over SMTP.
type EmailChannel struct {
	cfg config.EmailConfig
}

// NewEmailChannel creates an email channel.
func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return "email" }

// Send implements Channel. smtp.SendMail has no context support, so the
// deadline is enforced by the caller's dispatch timeout only loosely here.
func (c *EmailChannel) Send(ctx context.Context, alert *Alert) error {
	if len(c.cfg.To) == 0 {
		return fmt.Errorf("email channel has no recipients")
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Severity), alert.Title)
	metadata, _ := json.MarshalIndent(alert.Metadata, "", "  ")
	body := fmt.Sprintf("Alert: %s\r\nSeverity: %s\r\nSource: %s\r\nCreated: %s\r\n\r\n%s\r\n\r\nMetadata:\r\n%s\r\n",
		alert.ID, alert.Severity, alert.Source, alert.CreatedAt.Format(time.RFC3339), alert.Message, metadata)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		c.cfg.From, strings.Join(c.cfg.To, ", "), subject, body)

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, c.cfg.From, c.cfg.To, []byte(msg))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WebhookChannel POSTs the alert as JSON to a configured URL.
type WebhookChannel struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// NewWebhookChannel creates a webhook channel.
func NewWebhookChannel(cfg config.WebhookConfig) *WebhookChannel {
	return &WebhookChannel{cfg: cfg, client: &http.Client{}}
}

// Name implements Channel.
func (c *WebhookChannel) Name() string { return "webhook" }

// Send implements Channel.
func (c *WebhookChannel) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return postJSON(ctx, c.client, c.cfg.URL, payload)
}

// SlackChannel posts a formatted message to a Slack incoming webhook.
type SlackChannel struct {
	cfg    config.SlackConfig
	client *http.Client
}

// NewSlackChannel creates a Slack channel.
func NewSlackChannel(cfg config.SlackConfig) *SlackChannel {
	return &SlackChannel{cfg: cfg, client: &http.Client{}}
}

// Name implements Channel.
func (c *SlackChannel) Name() string { return "slack" }

// Send implements Channel.
func (c *SlackChannel) Send(ctx context.Context, alert *Alert) error {
	body := map[string]interface{}{
		"text": fmt.Sprintf(":rotating_light: *%s* [%s]\n%s", alert.Title, alert.Severity, alert.Message),
	}
	if c.cfg.Channel != "" {
		body["channel"] = c.cfg.Channel
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}
	return postJSON(ctx, c.client, c.cfg.WebhookURL, payload)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}

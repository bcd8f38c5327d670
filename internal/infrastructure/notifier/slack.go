package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/ports"
)

// SlackNotifier posts digests to an incoming webhook. Slack ignores the
// recipients list: the webhook itself determines the channel.
type SlackNotifier struct {
	webhookURL string
	prefix     string
	client     *http.Client
}

var _ ports.Notifier = (*SlackNotifier)(nil)

// NewSlackNotifier registers the webhook URL.
func NewSlackNotifier(cfg config.SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: cfg.WebhookURL,
		prefix:     cfg.MessagePrefix,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a Markdown message to the webhook.
func (n *SlackNotifier) Send(ctx context.Context, recipients []string, subject, body string) error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack notifier misconfigured")
	}

	text := subject + "\n\n" + body
	if n.prefix != "" {
		text = n.prefix + " " + text
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack error: %s", resp.Status)
	}

	return nil
}

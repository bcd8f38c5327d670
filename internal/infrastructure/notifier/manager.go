package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/ports"
)

// Manager fans a digest out to every configured provider. Delivery
// succeeds when at least one provider accepts the message.
type Manager struct {
	providers map[string]ports.Notifier
	order     []string
	log       *slog.Logger
}

var _ ports.Notifier = (*Manager)(nil)

// NewManager builds the provider set from configuration. Unknown
// provider names are rejected up front.
func NewManager(cfg config.NotificationConfig, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		providers: make(map[string]ports.Notifier),
		log:       log,
	}

	for _, name := range cfg.Providers {
		switch name {
		case "email":
			m.providers[name] = NewEmailNotifier(cfg.Email)
		case "slack":
			m.providers[name] = NewSlackNotifier(cfg.Slack)
		default:
			return nil, fmt.Errorf("unknown notification provider %q", name)
		}
		m.order = append(m.order, name)
	}

	return m, nil
}

// Send tries every provider in configuration order.
func (m *Manager) Send(ctx context.Context, recipients []string, subject, body string) error {
	if len(m.order) == 0 {
		return fmt.Errorf("no notification providers configured")
	}

	delivered := 0
	var lastErr error
	for _, name := range m.order {
		if err := m.providers[name].Send(ctx, recipients, subject, body); err != nil {
			m.log.Warn("notification failed", "provider", name, "error", err)
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("all notification providers failed: %w", lastErr)
	}
	return nil
}

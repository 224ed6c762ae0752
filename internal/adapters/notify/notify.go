// Package notify tells operators about failed sync runs.
package notify

import (
	"context"

	"github.com/dlystyr/fantasypl-mcp/internal/config"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

// Nop drops every notification.
type Nop struct{}

// NotifySyncFailure implements ingest.Notifier.
func (Nop) NotifySyncFailure(context.Context, ingest.Report) error { return nil }

// New returns a Telegram notifier when cfg enables one and Nop otherwise.
func New(cfg config.TelegramConfig, l logger.Logger) (ingest.Notifier, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewTelegram(cfg.BotToken, cfg.ChatID, WithLogger(l))
}

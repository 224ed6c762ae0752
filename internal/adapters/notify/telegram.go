package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

const channel = "telegram"

// ErrNoChat is returned when no chat id or channel name is configured.
var ErrNoChat = errors.New("telegram chat id not set")

// Telegram sends MarkdownV2 messages to one chat.
type Telegram struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	username string
	logger   logger.Logger
	endpoint string
}

// TelegramOption configures a Telegram notifier.
type TelegramOption func(*Telegram)

// WithLogger sets the notifier logger.
func WithLogger(l logger.Logger) TelegramOption {
	return func(t *Telegram) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithAPIEndpoint overrides the Bot API endpoint format.
func WithAPIEndpoint(endpoint string) TelegramOption {
	return func(t *Telegram) {
		if endpoint != "" {
			t.endpoint = endpoint
		}
	}
}

// NewTelegram authorizes the bot. chat is a numeric chat id or an
// @channel name.
func NewTelegram(token, chat string, opts ...TelegramOption) (*Telegram, error) {
	t := &Telegram{
		logger:   logger.Named("notify"),
		endpoint: tgbotapi.APIEndpoint,
	}
	for _, opt := range opts {
		opt(t)
	}

	chat = strings.TrimSpace(chat)
	switch {
	case chat == "":
		return nil, ErrNoChat
	case strings.HasPrefix(chat, "@"):
		t.username = chat
	default:
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse chat id %q: %w", chat, err)
		}
		t.chatID = id
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("authorize telegram bot: %w", err)
	}
	t.bot = bot
	return t, nil
}

// NotifySyncFailure implements ingest.Notifier.
func (t *Telegram) NotifySyncFailure(ctx context.Context, report ingest.Report) error {
	err := t.send(FailureMessage(report))
	if err != nil {
		metrics.RecordNotification(channel, "failed")
		t.logger.Error(ctx, "failed to send sync failure notification",
			logger.String("run_id", report.RunID), logger.Error(err))
		return err
	}
	metrics.RecordNotification(channel, "sent")
	return nil
}

func (t *Telegram) send(text string) error {
	var msg tgbotapi.MessageConfig
	if t.username != "" {
		msg = tgbotapi.NewMessageToChannel(t.username, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

// FailureMessage renders a failed run as MarkdownV2.
func FailureMessage(report ingest.Report) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s) }

	var b strings.Builder
	b.WriteString("*FPL sync failed*\n")
	fmt.Fprintf(&b, "Run: %s\n", esc(report.RunID))
	if report.ErrorKind != "" {
		fmt.Fprintf(&b, "Kind: %s\n", esc(string(report.ErrorKind)))
	}
	if report.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", esc(report.Error))
	}
	fmt.Fprintf(&b, "Serving epoch: %s\n", esc(strconv.FormatInt(int64(report.PreviousEpoch), 10)))
	if !report.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started: %s", esc(report.StartedAt.UTC().Format(time.RFC3339)))
	}
	return strings.TrimRight(b.String(), "\n")
}

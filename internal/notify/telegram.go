package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const telegramChannel = "telegram"

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramConfig struct {
	Token  string
	ChatID int64
	// Endpoint overrides the Bot API URL template, e.g. for a local Bot API server.
	Endpoint string
	Timeout  time.Duration
}

// Telegram sends notes as plain chat messages to one chat.
type Telegram struct {
	bot    messageSender
	chatID int64
	logger *zap.Logger
}

func NewTelegram(cfg TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("telegram bot authorized", zap.String("bot", bot.Self.UserName))

	return &Telegram{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

func (t *Telegram) Name() string {
	return telegramChannel
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return &NotifyError{Channel: telegramChannel, Err: err}
	}

	msg, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text))
	if err != nil {
		return &NotifyError{Channel: telegramChannel, Err: err}
	}

	t.logger.Debug("telegram message sent", zap.Int("message_id", msg.MessageID), zap.Int64("chat_id", t.chatID))
	return nil
}

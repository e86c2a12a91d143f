package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
)

// Telegram sends operator alerts to a telegram chat
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// NewTelegram creates a telegram alert sink
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	tgBot, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{
		bot:    tgBot,
		chatID: chatID,
		logger: logger.With("component", "alerting"),
	}, nil
}

// ConsistencyFailure implements Alerter. Errors are swallowed: the alert is a
// best-effort signal on top of the error already returned to the caller.
func (t *Telegram) ConsistencyFailure(ctx context.Context, event Event) {
	// Detached context so an aborted request still delivers the alert
	apiCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	text := fmt.Sprintf(
		"Provisioning inconsistency on %q\nuser: %d\nidentifier: %s\n%s\nManual reconciliation required.",
		event.Integration, event.UserID, event.Identifier, event.Detail,
	)
	_, err := t.bot.SendMessage(apiCtx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		t.logger.Warn("failed to deliver consistency alert",
			"integration", event.Integration,
			"user_id", event.UserID,
			"error", err)
	}
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

// TelegramNotifier sends operator notifications through a bot chat.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
	log    *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, log *zap.Logger, opts ...bot.Option) (*TelegramNotifier, error) {
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{
		bot:    b,
		chatID: chatID,
		log:    log,
	}, nil
}

// Bot exposes the underlying bot for command registration.
func (n *TelegramNotifier) Bot() *bot.Bot {
	return n.bot
}

func (n *TelegramNotifier) SendLogMessage(ctx context.Context, text string) error {
	if n.chatID == 0 {
		n.log.Warn("Notification chat not configured, skipping notification")
		return nil
	}

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	return err
}

func (n *TelegramNotifier) SendSignalResult(ctx context.Context, result domain.ExecutionResult) error {
	return n.SendLogMessage(ctx, formatSignalResult(result))
}

func formatSignalResult(result domain.ExecutionResult) string {
	signal := result.Signal

	// Truncate on a rune boundary; a byte slice could split multi-byte text
	// and send invalid UTF-8.
	raw := result.RawMessage
	if r := []rune(raw); len(r) > 100 {
		raw = string(r[:100])
	}

	text := "<b>🔔 Signal Processing Result</b>\n\n"
	text += fmt.Sprintf("📅 <b>Time:</b> %s\n", time.Now().UTC().Format(time.RFC3339))
	text += fmt.Sprintf("📱 <b>Source:</b> Chat %d\n", result.SourceChatID)
	text += fmt.Sprintf("📊 <b>Signal:</b> %s %s\n", signal.Action, signal.Symbol)
	text += fmt.Sprintf("💰 <b>Price:</b> %s\n", orNA(signal.Price))
	text += fmt.Sprintf("🎯 <b>Confidence:</b> %.1f%%\n", signal.Confidence*100)
	text += fmt.Sprintf("📝 <b>Message:</b> %s...\n\n", raw)

	if result.IsSuccess {
		text += "✅ <b>Status:</b> Successfully executed\n"
	} else {
		text += "❌ <b>Status:</b> Failed to execute\n"
	}
	if result.Details != "" {
		text += fmt.Sprintf("📋 <b>Details:</b> %s\n", result.Details)
	}
	return text
}

func (n *TelegramNotifier) SendErrorNotification(ctx context.Context, errText, errContext string) error {
	text := "<b>🚨 Error Notification</b>\n\n"
	text += fmt.Sprintf("📅 <b>Time:</b> %s\n", time.Now().UTC().Format(time.RFC3339))
	if errContext != "" {
		text += fmt.Sprintf("🔍 <b>Context:</b> %s\n", errContext)
	}
	text += fmt.Sprintf("❌ <b>Error:</b> %s", errText)

	return n.SendLogMessage(ctx, text)
}

func (n *TelegramNotifier) SendStartupNotification(ctx context.Context) error {
	return n.SendLogMessage(ctx, "🚀 <b>Signal Trader started</b>\nListening for trading signals.")
}

func (n *TelegramNotifier) SendShutdownNotification(ctx context.Context) error {
	return n.SendLogMessage(ctx, "🛑 <b>Signal Trader stopped</b>")
}

func orNA(v float64) string {
	if v == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%g", v)
}

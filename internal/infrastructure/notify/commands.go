package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/vitos/signal_trader/internal/domain"
	"github.com/vitos/signal_trader/internal/usecase"
	"go.uber.org/zap"
)

// Commands wires an operator command surface onto the notification bot.
// Only the configured operator chat is honored.
type Commands struct {
	notifier *TelegramNotifier
	accounts *usecase.AccountService
	policy   *usecase.PolicySynchronizer
	chatID   int64
	log      *zap.Logger
}

func NewCommands(
	notifier *TelegramNotifier,
	accounts *usecase.AccountService,
	policy *usecase.PolicySynchronizer,
	log *zap.Logger,
) *Commands {
	c := &Commands{
		notifier: notifier,
		accounts: accounts,
		policy:   policy,
		chatID:   notifier.chatID,
		log:      log,
	}

	b := notifier.Bot()
	b.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact, c.onStatus)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/balance", bot.MatchTypeExact, c.onBalance)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/positions", bot.MatchTypeExact, c.onPositions)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/enable", bot.MatchTypeExact, c.onEnable)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/disable", bot.MatchTypeExact, c.onDisable)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/risk", bot.MatchTypePrefix, c.onRisk)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/size", bot.MatchTypePrefix, c.onSize)

	return c
}

// Run starts long polling until ctx is cancelled.
func (c *Commands) Run(ctx context.Context) {
	c.notifier.Bot().Start(ctx)
}

func (c *Commands) fromOperator(update *models.Update) bool {
	return update.Message != nil && update.Message.Chat.ID == c.chatID
}

func (c *Commands) onStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !c.fromOperator(update) {
		return
	}

	cfg := c.policy.Current()
	state := "disabled"
	if cfg.IsEnabled {
		state = "enabled"
	}
	text := fmt.Sprintf(
		"<b>⚙️ Trading policy</b>\nTrading: <b>%s</b>\nMax position size: %g\nRisk: %g%%",
		state, cfg.MaxPositionSize, cfg.RiskPercentage)
	_ = c.notifier.SendLogMessage(ctx, text)
}

func (c *Commands) onBalance(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !c.fromOperator(update) {
		return
	}

	free := c.accounts.Balance(ctx, "USDT", 0)
	_ = c.notifier.SendLogMessage(ctx, fmt.Sprintf("💵 Free USDT balance: <b>%.2f</b>", free))
}

func (c *Commands) onPositions(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !c.fromOperator(update) {
		return
	}

	positions := c.accounts.Positions(ctx, "", 0)
	if len(positions) == 0 {
		_ = c.notifier.SendLogMessage(ctx, "No open positions.")
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>📈 Open positions</b>\n")
	for _, p := range positions {
		sb.WriteString(fmt.Sprintf("%s %s %.6f @ %.4f (PnL %.2f)\n",
			p.Symbol, p.Side, p.Size, p.EntryPrice, p.UnrealizedPnL))
	}
	_ = c.notifier.SendLogMessage(ctx, sb.String())
}

func (c *Commands) onEnable(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !c.fromOperator(update) {
		return
	}
	c.setEnabled(ctx, true)
}

func (c *Commands) onDisable(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !c.fromOperator(update) {
		return
	}
	c.setEnabled(ctx, false)
}

func (c *Commands) setEnabled(ctx context.Context, enabled bool) {
	if err := c.policy.Update(ctx, domain.PolicyUpdate{IsEnabled: &enabled}); err != nil {
		c.log.Error("Failed to update trading policy", zap.Error(err))
		_ = c.notifier.SendErrorNotification(ctx, err.Error(), "Policy Update")
		return
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	_ = c.notifier.SendLogMessage(ctx, fmt.Sprintf("Trading <b>%s</b>.", state))
}

func (c *Commands) onRisk(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !c.fromOperator(update) {
		return
	}

	value, ok := parseFloatArg(update.Message.Text, "/risk")
	if !ok {
		_ = c.notifier.SendLogMessage(ctx, "Usage: /risk &lt;percentage&gt;")
		return
	}
	if err := c.policy.Update(ctx, domain.PolicyUpdate{RiskPercentage: &value}); err != nil {
		c.log.Error("Failed to update risk percentage", zap.Error(err))
		_ = c.notifier.SendErrorNotification(ctx, err.Error(), "Policy Update")
		return
	}
	_ = c.notifier.SendLogMessage(ctx, fmt.Sprintf("Risk percentage set to <b>%g%%</b>.", value))
}

func (c *Commands) onSize(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !c.fromOperator(update) {
		return
	}

	value, ok := parseFloatArg(update.Message.Text, "/size")
	if !ok {
		_ = c.notifier.SendLogMessage(ctx, "Usage: /size &lt;max position size&gt;")
		return
	}
	if err := c.policy.Update(ctx, domain.PolicyUpdate{MaxPositionSize: &value}); err != nil {
		c.log.Error("Failed to update max position size", zap.Error(err))
		_ = c.notifier.SendErrorNotification(ctx, err.Error(), "Policy Update")
		return
	}
	_ = c.notifier.SendLogMessage(ctx, fmt.Sprintf("Max position size set to <b>%g</b>.", value))
}

func parseFloatArg(text, command string) (float64, bool) {
	arg := strings.TrimSpace(strings.TrimPrefix(text, command))
	if arg == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(arg, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

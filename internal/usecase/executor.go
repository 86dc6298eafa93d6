package usecase

import (
	"context"

	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

// PolicyReader exposes the most recently delivered trading policy snapshot.
type PolicyReader interface {
	Current() domain.TradingConfig
}

// ExecutionCoordinator submits the legs of a signal to the routed account and
// reports a single success/failure outcome per signal.
type ExecutionCoordinator struct {
	policy   PolicyReader
	router   *AccountRouter
	builder  *OrderBuilder
	journal  domain.OrderJournal
	notifier domain.Notifier
	log      *zap.Logger
}

func NewExecutionCoordinator(
	policy PolicyReader,
	router *AccountRouter,
	builder *OrderBuilder,
	journal domain.OrderJournal,
	notifier domain.Notifier,
	log *zap.Logger,
) *ExecutionCoordinator {
	return &ExecutionCoordinator{
		policy:   policy,
		router:   router,
		builder:  builder,
		journal:  journal,
		notifier: notifier,
		log:      log,
	}
}

// ExecuteSignal runs the full per-signal pipeline: policy gate, routing,
// leverage, then leg submission. It never returns an error; every failure
// mode resolves to false.
func (c *ExecutionCoordinator) ExecuteSignal(ctx context.Context, signal domain.Signal) bool {
	cfg := c.policy.Current()
	if !cfg.IsEnabled {
		c.log.Info("Trading is disabled, skipping signal execution")
		return false
	}

	if !signal.Complete() {
		c.log.Info("Invalid signal, skipping execution",
			zap.String("action", string(signal.Action)),
			zap.String("symbol", signal.Symbol))
		return false
	}

	account, err := c.router.RouteAccount(signal.SourceChatID)
	if err != nil {
		c.log.Error("Signal has no routable account",
			zap.Int64("chat_id", signal.SourceChatID),
			zap.Error(err))
		return false
	}

	c.applyLeverage(ctx, account, signal)

	legs := c.builder.BuildLegs(signal, cfg)
	return c.Execute(ctx, legs, account)
}

// Execute submits legs strictly in order. Entry failure aborts immediately.
// A stop or take-profit failure makes the overall result false but does not
// cancel the already placed entry; that gap between reported failure and
// exchange state is a deliberate, tested policy.
func (c *ExecutionCoordinator) Execute(ctx context.Context, legs []domain.OrderLeg, account *RoutedAccount) bool {
	if len(legs) == 0 {
		return false
	}

	entry := legs[0]
	order, err := account.Client.CreateOrder(ctx, entry)
	if err != nil {
		c.log.Error("Failed to submit entry order",
			zap.String("symbol", entry.Symbol),
			zap.Error(err))
		return false
	}
	c.log.Info("Created order",
		zap.String("order_id", order.ID),
		zap.String("kind", string(entry.Kind)),
		zap.String("position_side", string(entry.PositionSide)))
	c.record(ctx, account, entry, order)

	success := true
	for _, leg := range legs[1:] {
		order, err := account.Client.CreateOrder(ctx, leg)
		if err != nil {
			// The entry may already be live; it is not cancelled here.
			c.log.Error("Failed to submit protective order",
				zap.String("symbol", leg.Symbol),
				zap.String("kind", string(leg.Kind)),
				zap.Error(err))
			success = false
			continue
		}
		c.log.Info("Created order",
			zap.String("order_id", order.ID),
			zap.String("kind", string(leg.Kind)),
			zap.String("position_side", string(leg.PositionSide)))
		c.record(ctx, account, leg, order)
	}

	return success
}

// applyLeverage is non-fatal: a leverage failure is logged and notified, and
// execution proceeds with whatever leverage the account already has.
func (c *ExecutionCoordinator) applyLeverage(ctx context.Context, account *RoutedAccount, signal domain.Signal) {
	leverage := c.builder.Leverage(signal)
	if err := account.Client.SetLeverage(ctx, leverage, signal.Symbol); err != nil {
		c.log.Error("Failed to set leverage",
			zap.String("symbol", signal.Symbol),
			zap.Int("leverage", leverage),
			zap.Error(err))
		if c.notifier != nil {
			if nerr := c.notifier.SendErrorNotification(ctx, err.Error(), "Leverage"); nerr != nil {
				c.log.Error("Failed to send leverage notification", zap.Error(nerr))
			}
		}
		return
	}
	c.log.Info("Set leverage",
		zap.String("symbol", signal.Symbol),
		zap.Int("leverage", leverage))
}

func (c *ExecutionCoordinator) record(ctx context.Context, account *RoutedAccount, leg domain.OrderLeg, order *domain.Order) {
	if c.journal == nil {
		return
	}
	if err := c.journal.SaveOrder(ctx, account.Account.ID, leg, order); err != nil {
		c.log.Error("Failed to journal order",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

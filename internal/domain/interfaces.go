package domain

import "context"

// ExchangeClient defines the operations required from a futures exchange
// account client.
type ExchangeClient interface {
	LoadMarkets(ctx context.Context) error
	FetchBalance(ctx context.Context) (map[string]Balance, error)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	SetLeverage(ctx context.Context, leverage int, symbol string) error
	CreateOrder(ctx context.Context, leg OrderLeg) (*Order, error)
	FetchPositions(ctx context.Context, symbols []string) ([]*Position, error)
	CancelOrder(ctx context.Context, orderID, symbol string) error
	FetchOpenOrders(ctx context.Context, symbol string) ([]*Order, error)
}

// PolicyStore persists the trading policy keyed by user/exchange/tradeType
// and pushes full snapshots on every change. The returned cancel func must be
// safe to call more than once.
type PolicyStore interface {
	GetTradingConfig(ctx context.Context) (TradingConfig, error)
	SetTradingConfig(ctx context.Context, cfg TradingConfig) error
	UpdateTradingConfig(ctx context.Context, update PolicyUpdate) error
	WatchTradingConfig(ctx context.Context, onChange func(TradingConfig)) (cancel func(), err error)
}

// OrderJournal records orders accepted by the exchange.
type OrderJournal interface {
	SaveOrder(ctx context.Context, accountID string, leg OrderLeg, order *Order) error
	ListOrders(ctx context.Context, limit int) ([]*Order, error)
}

// SignalExtractor turns an inbound message into zero or more candidate
// signals. Extraction failures yield an empty slice, never an error.
type SignalExtractor interface {
	ExtractSignals(ctx context.Context, msg InboundMessage) []Signal
}

// Notifier is the outbound notification sink.
type Notifier interface {
	SendSignalResult(ctx context.Context, result ExecutionResult) error
	SendErrorNotification(ctx context.Context, errText, errContext string) error
	SendStartupNotification(ctx context.Context) error
	SendShutdownNotification(ctx context.Context) error
	SendLogMessage(ctx context.Context, text string) error
}

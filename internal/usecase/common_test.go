package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitos/signal_trader/internal/domain"
)

type MockExchange struct {
	CreatedLegs  []domain.OrderLeg
	FailKinds    map[domain.LegKind]bool
	PanicOn      string
	LeverageErr  error
	Leverages    []int
	CancelCalled bool
	Balances     map[string]domain.Balance
	TickerPrice  float64
	Positions    []*domain.Position
	OpenOrders   []*domain.Order

	nextID int
}

func (m *MockExchange) LoadMarkets(ctx context.Context) error { return nil }

func (m *MockExchange) FetchBalance(ctx context.Context) (map[string]domain.Balance, error) {
	return m.Balances, nil
}

func (m *MockExchange) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	return &domain.Ticker{Symbol: symbol, Last: m.TickerPrice}, nil
}

func (m *MockExchange) SetLeverage(ctx context.Context, leverage int, symbol string) error {
	if m.LeverageErr != nil {
		return m.LeverageErr
	}
	m.Leverages = append(m.Leverages, leverage)
	return nil
}

func (m *MockExchange) CreateOrder(ctx context.Context, leg domain.OrderLeg) (*domain.Order, error) {
	if m.PanicOn != "" && leg.Symbol == m.PanicOn {
		panic("exchange client wedged")
	}
	if m.FailKinds[leg.Kind] {
		return nil, errors.New("exchange rejected order")
	}
	m.CreatedLegs = append(m.CreatedLegs, leg)
	m.nextID++
	return &domain.Order{
		ID:     fmt.Sprintf("order-%d", m.nextID),
		Symbol: leg.Symbol,
		Side:   leg.Side,
		Type:   leg.Type,
		Status: "NEW",
		Amount: leg.Amount,
		Price:  leg.Price,
	}, nil
}

func (m *MockExchange) FetchPositions(ctx context.Context, symbols []string) ([]*domain.Position, error) {
	return m.Positions, nil
}

func (m *MockExchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	m.CancelCalled = true
	return nil
}

func (m *MockExchange) FetchOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	return m.OpenOrders, nil
}

type MockNotifier struct {
	Results   []domain.ExecutionResult
	Errors    []string
	Contexts  []string
	LogTexts  []string
	ResultErr error
}

func (m *MockNotifier) SendSignalResult(ctx context.Context, result domain.ExecutionResult) error {
	m.Results = append(m.Results, result)
	return m.ResultErr
}

func (m *MockNotifier) SendErrorNotification(ctx context.Context, errText, errContext string) error {
	m.Errors = append(m.Errors, errText)
	m.Contexts = append(m.Contexts, errContext)
	return nil
}

func (m *MockNotifier) SendStartupNotification(ctx context.Context) error  { return nil }
func (m *MockNotifier) SendShutdownNotification(ctx context.Context) error { return nil }

func (m *MockNotifier) SendLogMessage(ctx context.Context, text string) error {
	m.LogTexts = append(m.LogTexts, text)
	return nil
}

type MockPolicyStore struct {
	Config    domain.TradingConfig
	GetErr    error
	WatchErr  error
	OnChange  func(domain.TradingConfig)
	Updates   []domain.PolicyUpdate
	UpdateErr error
	Cancels   int
}

func (m *MockPolicyStore) GetTradingConfig(ctx context.Context) (domain.TradingConfig, error) {
	return m.Config, m.GetErr
}

func (m *MockPolicyStore) SetTradingConfig(ctx context.Context, cfg domain.TradingConfig) error {
	m.Config = cfg
	return nil
}

func (m *MockPolicyStore) UpdateTradingConfig(ctx context.Context, update domain.PolicyUpdate) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.Updates = append(m.Updates, update)
	return nil
}

func (m *MockPolicyStore) WatchTradingConfig(ctx context.Context, onChange func(domain.TradingConfig)) (func(), error) {
	if m.WatchErr != nil {
		return nil, m.WatchErr
	}
	m.OnChange = onChange
	return func() { m.Cancels++ }, nil
}

type MockExtractor struct {
	Signals  []domain.Signal
	DoPanic  bool
	Messages []domain.InboundMessage
}

func (m *MockExtractor) ExtractSignals(ctx context.Context, msg domain.InboundMessage) []domain.Signal {
	if m.DoPanic {
		panic("extractor blew up")
	}
	m.Messages = append(m.Messages, msg)
	return m.Signals
}

type staticPolicy struct {
	cfg domain.TradingConfig
}

func (p staticPolicy) Current() domain.TradingConfig { return p.cfg }

type MockJournal struct {
	Saved []string
}

func (m *MockJournal) SaveOrder(ctx context.Context, accountID string, leg domain.OrderLeg, order *domain.Order) error {
	m.Saved = append(m.Saved, order.ID)
	return nil
}

func (m *MockJournal) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	return nil, nil
}

package usecase

import (
	"context"
	"testing"

	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

func newTestAccountService(mock *MockExchange) *AccountService {
	router := newTestRouter(RoutedAccount{
		Account: domain.Account{ID: "primary", AllowedChatIDs: []int64{100}},
		Client:  mock,
	})
	return NewAccountService(router, "primary", zap.NewNop())
}

func TestBalanceDefaultAccount(t *testing.T) {
	mock := &MockExchange{Balances: map[string]domain.Balance{
		"USDT": {Free: 1234.5, Total: 2000},
	}}
	s := newTestAccountService(mock)

	if got := s.Balance(context.Background(), "USDT", 0); got != 1234.5 {
		t.Errorf("Balance = %v, want 1234.5", got)
	}
	if got := s.Balance(context.Background(), "BTC", 0); got != 0 {
		t.Errorf("Unknown currency must report zero, got %v", got)
	}
}

func TestBalanceUnroutableChat(t *testing.T) {
	s := newTestAccountService(&MockExchange{})

	if got := s.Balance(context.Background(), "USDT", 999); got != 0 {
		t.Errorf("Unroutable chat must report zero, got %v", got)
	}
}

func TestClosePositionLong(t *testing.T) {
	mock := &MockExchange{Positions: []*domain.Position{
		{Symbol: "BTCUSDT", Side: domain.PositionLong, Size: 0.5, EntryPrice: 45000},
	}}
	s := newTestAccountService(mock)

	if !s.ClosePosition(context.Background(), "BTCUSDT", "", 100) {
		t.Fatalf("Expected the position to close")
	}
	if len(mock.CreatedLegs) != 1 {
		t.Fatalf("Expected one closing order")
	}
	leg := mock.CreatedLegs[0]
	if leg.Side != domain.SideSell || leg.PositionSide != domain.PositionLong {
		t.Errorf("Long closes with a sell on the long side: %+v", leg)
	}
	if leg.Amount != 0.5 || leg.Type != domain.OrderTypeMarket {
		t.Errorf("Close must be a market order for the full size: %+v", leg)
	}
}

func TestClosePositionShort(t *testing.T) {
	mock := &MockExchange{Positions: []*domain.Position{
		{Symbol: "BTCUSDT", Side: domain.PositionShort, Size: 0.2},
	}}
	s := newTestAccountService(mock)

	if !s.ClosePosition(context.Background(), "BTCUSDT", domain.PositionShort, 100) {
		t.Fatalf("Expected the position to close")
	}
	if mock.CreatedLegs[0].Side != domain.SideBuy {
		t.Errorf("Short closes with a buy, got %s", mock.CreatedLegs[0].Side)
	}
}

func TestClosePositionNothingOpen(t *testing.T) {
	mock := &MockExchange{Positions: []*domain.Position{
		{Symbol: "BTCUSDT", Side: domain.PositionLong, Size: 0},
	}}
	s := newTestAccountService(mock)

	if s.ClosePosition(context.Background(), "BTCUSDT", "", 100) {
		t.Errorf("Zero-size positions are not closable")
	}
	if len(mock.CreatedLegs) != 0 {
		t.Errorf("No order expected")
	}
}

func TestPositionsFiltersZeroSize(t *testing.T) {
	mock := &MockExchange{Positions: []*domain.Position{
		{Symbol: "BTCUSDT", Side: domain.PositionLong, Size: 0.5},
		{Symbol: "ETHUSDT", Side: domain.PositionShort, Size: 0},
	}}
	s := newTestAccountService(mock)

	open := s.Positions(context.Background(), "", 100)
	if len(open) != 1 || open[0].Symbol != "BTCUSDT" {
		t.Errorf("Expected only the open BTC position, got %+v", open)
	}
}

func TestCancelOrder(t *testing.T) {
	mock := &MockExchange{}
	s := newTestAccountService(mock)

	if !s.CancelOrder(context.Background(), "order-1", "BTCUSDT", 100) {
		t.Errorf("Expected cancel to succeed")
	}
	if !mock.CancelCalled {
		t.Errorf("Cancel must reach the exchange")
	}
}

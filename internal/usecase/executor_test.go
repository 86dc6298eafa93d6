package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

func newTestCoordinator(enabled bool, mock *MockExchange) (*ExecutionCoordinator, *MockNotifier, *MockJournal) {
	notifier := &MockNotifier{}
	journal := &MockJournal{}
	router := newTestRouter(RoutedAccount{
		Account: domain.Account{ID: "primary", AllowedChatIDs: []int64{100}},
		Client:  mock,
	})
	policy := staticPolicy{cfg: domain.TradingConfig{
		IsEnabled:       enabled,
		MaxPositionSize: 100,
		RiskPercentage:  2,
	}}
	c := NewExecutionCoordinator(policy, router, NewOrderBuilder(), journal, notifier, zap.NewNop())
	return c, notifier, journal
}

func testSignal() domain.Signal {
	return domain.Signal{
		Action:       domain.ActionBuy,
		Symbol:       "BTC/USDT",
		Price:        45000,
		StopLoss:     44000,
		TakeProfit:   47000,
		OrderType:    domain.OrderTypeMarket,
		Confidence:   0.9,
		SourceChatID: 100,
	}
}

func TestExecuteSignalDisabledPolicy(t *testing.T) {
	mock := &MockExchange{}
	c, _, _ := newTestCoordinator(false, mock)

	if c.ExecuteSignal(context.Background(), testSignal()) {
		t.Errorf("Disabled policy must block execution")
	}
	if len(mock.CreatedLegs) != 0 || len(mock.Leverages) != 0 {
		t.Errorf("Disabled policy must not touch the exchange")
	}
}

func TestExecuteSignalIncomplete(t *testing.T) {
	mock := &MockExchange{}
	c, _, _ := newTestCoordinator(true, mock)

	signal := testSignal()
	signal.Symbol = ""
	if c.ExecuteSignal(context.Background(), signal) {
		t.Errorf("Incomplete signal must not execute")
	}
	if len(mock.CreatedLegs) != 0 {
		t.Errorf("No orders expected for incomplete signal")
	}
}

func TestExecuteSignalNoRoute(t *testing.T) {
	mock := &MockExchange{}
	c, _, _ := newTestCoordinator(true, mock)

	signal := testSignal()
	signal.SourceChatID = 999
	if c.ExecuteSignal(context.Background(), signal) {
		t.Errorf("Unroutable signal must not execute")
	}
}

func TestExecuteSignalHappyPath(t *testing.T) {
	mock := &MockExchange{}
	c, _, journal := newTestCoordinator(true, mock)

	if !c.ExecuteSignal(context.Background(), testSignal()) {
		t.Fatalf("Expected successful execution")
	}
	if len(mock.CreatedLegs) != 3 {
		t.Fatalf("Expected 3 orders, got %d", len(mock.CreatedLegs))
	}
	if mock.CreatedLegs[0].Kind != domain.LegEntry ||
		mock.CreatedLegs[1].Kind != domain.LegStop ||
		mock.CreatedLegs[2].Kind != domain.LegTakeProfit {
		t.Errorf("Legs submitted out of order: %+v", mock.CreatedLegs)
	}
	if len(mock.Leverages) != 1 || mock.Leverages[0] != 5 {
		t.Errorf("Expected BTC default leverage 5, got %v", mock.Leverages)
	}
	if len(journal.Saved) != 3 {
		t.Errorf("Every placed order must be journaled, got %d", len(journal.Saved))
	}
}

func TestExecuteSignalLeverageFailureIsNonFatal(t *testing.T) {
	mock := &MockExchange{LeverageErr: errors.New("leverage rejected")}
	c, notifier, _ := newTestCoordinator(true, mock)

	if !c.ExecuteSignal(context.Background(), testSignal()) {
		t.Errorf("Leverage failure must not abort execution")
	}
	if len(mock.CreatedLegs) != 3 {
		t.Errorf("Orders must still be submitted, got %d", len(mock.CreatedLegs))
	}
	if len(notifier.Contexts) != 1 || notifier.Contexts[0] != "Leverage" {
		t.Errorf("Expected a Leverage error notification, got %v", notifier.Contexts)
	}
}

func TestExecuteEntryFailureAborts(t *testing.T) {
	mock := &MockExchange{FailKinds: map[domain.LegKind]bool{domain.LegEntry: true}}
	c, _, journal := newTestCoordinator(true, mock)

	if c.ExecuteSignal(context.Background(), testSignal()) {
		t.Errorf("Entry failure must fail the signal")
	}
	if len(mock.CreatedLegs) != 0 {
		t.Errorf("No protective legs after a failed entry, got %+v", mock.CreatedLegs)
	}
	if len(journal.Saved) != 0 {
		t.Errorf("Nothing to journal after a failed entry")
	}
}

func TestExecuteStopFailureNoRollback(t *testing.T) {
	mock := &MockExchange{FailKinds: map[domain.LegKind]bool{domain.LegStop: true}}
	c, _, _ := newTestCoordinator(true, mock)

	if c.ExecuteSignal(context.Background(), testSignal()) {
		t.Errorf("Stop failure must produce an overall failure")
	}
	if mock.CancelCalled {
		t.Errorf("The live entry must not be cancelled")
	}
	// The take-profit leg is still attempted after the stop fails.
	if len(mock.CreatedLegs) != 2 {
		t.Fatalf("Expected entry and take-profit, got %d legs", len(mock.CreatedLegs))
	}
	if mock.CreatedLegs[1].Kind != domain.LegTakeProfit {
		t.Errorf("Expected take-profit after failed stop, got %s", mock.CreatedLegs[1].Kind)
	}
}

func TestExecuteTakeProfitFailure(t *testing.T) {
	mock := &MockExchange{FailKinds: map[domain.LegKind]bool{domain.LegTakeProfit: true}}
	c, _, _ := newTestCoordinator(true, mock)

	if c.ExecuteSignal(context.Background(), testSignal()) {
		t.Errorf("Take-profit failure must produce an overall failure")
	}
	if mock.CancelCalled {
		t.Errorf("Entry and stop must stay live")
	}
	if len(mock.CreatedLegs) != 2 {
		t.Errorf("Expected entry and stop, got %d legs", len(mock.CreatedLegs))
	}
}

func TestExecuteNoLegs(t *testing.T) {
	mock := &MockExchange{}
	c, _, _ := newTestCoordinator(true, mock)

	account, _ := c.router.RouteAccount(100)
	if c.Execute(context.Background(), nil, account) {
		t.Errorf("Empty leg list must not report success")
	}
}
